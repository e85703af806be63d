package provisioning

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	want := Credentials{MsgType: MsgCredentials, SSID: "Home", Passphrase: "secret"}
	if err := writeFrame(&buf, want); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	data, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}

	msgType, err := peekMsgType(data)
	if err != nil {
		t.Fatalf("peekMsgType failed: %v", err)
	}
	if msgType != MsgCredentials {
		t.Errorf("peekMsgType = %d, want %d", msgType, MsgCredentials)
	}

	var got Credentials
	if err := cbor.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.SSID != want.SSID || got.Passphrase != want.Passphrase {
		t.Errorf("decoded = %+v, want %+v", got, want)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer

	msg := Credentials{MsgType: MsgCredentials, Sealed: make([]byte, MaxFrameSize+1)}
	if err := writeFrame(&buf, msg); err == nil {
		t.Error("writeFrame accepted an oversized frame")
	}
}

func TestReadFrameRejectsBadSizes(t *testing.T) {
	// Zero-length frame.
	if _, err := readFrame(bytes.NewReader([]byte{0x00, 0x00})); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("readFrame(zero) error = %v, want ErrInvalidMessage", err)
	}

	// Declared size beyond the limit.
	if _, err := readFrame(bytes.NewReader([]byte{0xff, 0xff})); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("readFrame(oversize) error = %v, want ErrInvalidMessage", err)
	}

	// Truncated payload.
	if _, err := readFrame(bytes.NewReader([]byte{0x00, 0x10, 0x01})); err == nil {
		t.Error("readFrame accepted a truncated frame")
	}
}

func TestPeekMsgTypeInvalid(t *testing.T) {
	if _, err := peekMsgType([]byte{0xff, 0x00}); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("peekMsgType error = %v, want ErrInvalidMessage", err)
	}
}
