package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger. Useful for
// development when you want to see the exchange in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("frame_size", event.Frame.Size))
	case event.Message != nil:
		attrs = append(attrs,
			slog.Uint64("msg_type", uint64(event.Message.Type)),
			slog.String("msg", event.Message.Name),
		)
		if event.Message.Status != nil {
			attrs = append(attrs, slog.Uint64("status", uint64(*event.Message.Status)))
		}
		if event.Message.Sealed {
			attrs = append(attrs, slog.Bool("sealed", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "provisioning", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
