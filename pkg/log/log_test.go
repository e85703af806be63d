package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleEvent(category Category) Event {
	event := Event{
		Timestamp:    time.Now(),
		SessionID:    "session-1",
		ConnectionID: "conn-1",
		Direction:    DirectionIn,
		Category:     category,
		RemoteAddr:   "192.168.1.10:51234",
	}

	switch category {
	case CategoryFrame:
		event.Frame = &FrameEvent{Size: 42}
	case CategoryMessage:
		status := uint8(0)
		event.Message = &MessageEvent{Type: 3, Name: "CREDENTIALS", Status: &status, Sealed: true}
	case CategoryState:
		event.Direction = DirectionLocal
		event.StateChange = &StateChangeEvent{OldState: "IDLE", NewState: "ACTIVE", Reason: "session opened"}
	case CategoryError:
		event.Error = &ErrorEventData{Message: "read failed", Context: "credentials"}
	}
	return event
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, category := range []Category{CategoryFrame, CategoryMessage, CategoryState, CategoryError} {
		t.Run(category.String(), func(t *testing.T) {
			want := sampleEvent(category)

			data, err := EncodeEvent(want)
			if err != nil {
				t.Fatalf("EncodeEvent() error: %v", err)
			}

			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent() error: %v", err)
			}

			if got.SessionID != want.SessionID || got.ConnectionID != want.ConnectionID {
				t.Errorf("identifier mismatch: got %s/%s", got.SessionID, got.ConnectionID)
			}
			if got.Category != want.Category || got.Direction != want.Direction {
				t.Errorf("classification mismatch: got %s/%s", got.Category, got.Direction)
			}
			if !got.Timestamp.Equal(want.Timestamp) {
				t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, want.Timestamp)
			}
		})
	}
}

func TestStringNames(t *testing.T) {
	if got := DirectionLocal.String(); got != "LOCAL" {
		t.Errorf("DirectionLocal.String() = %q", got)
	}
	if got := CategoryState.String(); got != "STATE" {
		t.Errorf("CategoryState.String() = %q", got)
	}
	if got := Direction(99).String(); got != "UNKNOWN" {
		t.Errorf("unknown direction = %q", got)
	}
	if got := Category(99).String(); got != "UNKNOWN" {
		t.Errorf("unknown category = %q", got)
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}

	logger.Log(sampleEvent(CategoryFrame))
	logger.Log(sampleEvent(CategoryMessage))
	logger.Log(sampleEvent(CategoryState))

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	// Close is idempotent and later writes are dropped.
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	logger.Log(sampleEvent(CategoryError))

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 events, got %d", count)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	logger.Log(sampleEvent(CategoryFrame))
	logger.Log(sampleEvent(CategoryMessage))
	logger.Log(sampleEvent(CategoryMessage))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	category := CategoryMessage
	reader, err := NewFilteredReader(path, Filter{Category: &category})
	if err != nil {
		t.Fatalf("NewFilteredReader() error: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if event.Category != CategoryMessage {
			t.Errorf("filter leaked category %s", event.Category)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 message events, got %d", count)
	}

	// A filter that matches nothing.
	reader2, err := NewFilteredReader(path, Filter{SessionID: "other"})
	if err != nil {
		t.Fatalf("NewFilteredReader() error: %v", err)
	}
	defer reader2.Close()
	if _, err := reader2.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestMultiLogger(t *testing.T) {
	var first, second recordingLogger

	multi := NewMultiLogger(&first, &second, NoopLogger{})
	multi.Log(sampleEvent(CategoryFrame))
	multi.Log(sampleEvent(CategoryError))

	if len(first.events) != 2 || len(second.events) != 2 {
		t.Errorf("expected 2 events each, got %d and %d", len(first.events), len(second.events))
	}
}

type recordingLogger struct {
	events []Event
}

func (l *recordingLogger) Log(event Event) {
	l.events = append(l.events, event)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	adapter := NewSlogAdapter(slogger)
	adapter.Log(sampleEvent(CategoryMessage))

	out := buf.String()
	for _, want := range []string{"provisioning", "msg=CREDENTIALS", "session_id=session-1", "sealed=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
