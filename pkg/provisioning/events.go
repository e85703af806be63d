package provisioning

// EventType identifies a provisioning protocol event.
type EventType uint8

const (
	// EventSessionStarted - the provisioning session is open and
	// advertised.
	EventSessionStarted EventType = iota

	// EventCredentialsReceived - credentials were offered by the remote
	// party.
	EventCredentialsReceived

	// EventCredentialsRejected - offered credentials failed verification.
	EventCredentialsRejected

	// EventCredentialsAccepted - offered credentials were verified and
	// applied.
	EventCredentialsAccepted

	// EventSessionEndRequested - the session is over; the consumer must
	// perform teardown.
	EventSessionEndRequested
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventSessionStarted:
		return "SESSION_STARTED"
	case EventCredentialsReceived:
		return "CREDENTIALS_RECEIVED"
	case EventCredentialsRejected:
		return "CREDENTIALS_REJECTED"
	case EventCredentialsAccepted:
		return "CREDENTIALS_ACCEPTED"
	case EventSessionEndRequested:
		return "SESSION_END_REQUESTED"
	default:
		return "UNKNOWN"
	}
}

// RejectReason explains a credentials rejection.
type RejectReason uint8

const (
	// RejectAuthenticationFailed - the network rejected the credential
	// material.
	RejectAuthenticationFailed RejectReason = iota

	// RejectNetworkNotFound - the offered network is not reachable.
	RejectNetworkNotFound
)

// String returns the reject reason name.
func (r RejectReason) String() string {
	switch r {
	case RejectAuthenticationFailed:
		return "AUTHENTICATION_FAILED"
	case RejectNetworkNotFound:
		return "NETWORK_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Event is a provisioning protocol event. Each event kind carries its
// own payload fields; unrelated fields are zero.
type Event struct {
	// Type is the event type.
	Type EventType

	// SSID is the offered network identifier (credential events).
	SSID string

	// Reason explains the rejection (EventCredentialsRejected only).
	Reason RejectReason
}

// EventHandler handles provisioning events.
type EventHandler func(Event)
