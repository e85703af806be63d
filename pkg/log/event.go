package log

import (
	"time"
)

// Event represents one trace event on the provisioning link.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the provisioning session (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// ConnectionID identifies the connection within the session (UUID).
	ConnectionID string `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"`
}

// Direction indicates the direction of message flow. Local events
// (state changes, internal errors) use DirectionLocal.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event with no peer involvement.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a raw frame at the transport layer.
	CategoryFrame Category = 0
	// CategoryMessage indicates a decoded protocol message.
	CategoryMessage Category = 1
	// CategoryState indicates a session state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw frame on the provisioning link.
type FrameEvent struct {
	// Size is the frame size in bytes (excluding the length prefix).
	Size int `cbor:"1,keyasint"`
}

// MessageEvent captures a decoded provisioning message.
type MessageEvent struct {
	// Type is the raw message type byte.
	Type uint8 `cbor:"1,keyasint"`

	// Name is the human-readable message type name.
	Name string `cbor:"2,keyasint,omitempty"`

	// Status is the result status for response messages.
	Status *uint8 `cbor:"3,keyasint,omitempty"`

	// Sealed indicates the payload was encrypted on the wire.
	Sealed bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures a session lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors on the provisioning link.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
