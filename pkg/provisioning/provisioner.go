package provisioning

import (
	"errors"
	"log/slog"

	tracelog "github.com/provlink/provlink-go/pkg/log"
	"github.com/provlink/provlink-go/pkg/netif"
)

// Provisioner errors.
var (
	ErrNotInitialized   = errors.New("provisioner not initialized")
	ErrAlreadyActive    = errors.New("provisioning session already active")
	ErrInvalidConfig    = errors.New("invalid provisioner configuration")
	ErrInvalidSecurity  = errors.New("security level mismatch")
	ErrHandshakeFailed  = errors.New("provisioning handshake failed")
	ErrSessionClosed    = errors.New("provisioning session closed")
	ErrInvalidMessage   = errors.New("invalid provisioning message")
	ErrCredentialDenied = errors.New("credentials rejected by device")
)

// Scheme selects the out-of-band transport used for the exchange.
type Scheme uint8

const (
	// SchemeMDNS advertises the session over mDNS and exchanges
	// credentials over a local TCP connection.
	SchemeMDNS Scheme = iota
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeMDNS:
		return "MDNS"
	default:
		return "UNKNOWN"
	}
}

// SecurityLevel selects the security of the credential exchange.
type SecurityLevel uint8

const (
	// SecurityNone exchanges credentials in the clear (development only).
	SecurityNone SecurityLevel = iota

	// SecurityEncrypted seals credentials with a key derived from an
	// X25519 exchange bound to the shared setup key.
	SecurityEncrypted
)

// String returns the security level name.
func (l SecurityLevel) String() string {
	switch l {
	case SecurityNone:
		return "NONE"
	case SecurityEncrypted:
		return "ENCRYPTED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Provisioner.
type Config struct {
	// Scheme is the out-of-band transport scheme.
	Scheme Scheme

	// Security is the security level of the exchange.
	Security SecurityLevel

	// SetupKey is the shared proof-of-possession secret. Required for
	// SecurityEncrypted.
	SetupKey string

	// ListenAddress is the TCP listen address for SchemeMDNS
	// (e.g., ":0" for an ephemeral port).
	ListenAddress string

	// Network is where verified credentials are applied.
	Network netif.Network

	// Station verifies offered credentials with a connection attempt.
	Station netif.Station

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trace is the optional trace logger for the exchange.
	// If nil, tracing is disabled.
	Trace tracelog.Logger
}

// Validate checks if the provisioner config is valid.
func (c *Config) Validate() error {
	if c.Network == nil || c.Station == nil {
		return ErrInvalidConfig
	}
	if c.Security == SecurityEncrypted && c.SetupKey == "" {
		return ErrInvalidConfig
	}
	if c.Scheme != SchemeMDNS {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults. Network and
// Station must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		Scheme:        SchemeMDNS,
		Security:      SecurityEncrypted,
		ListenAddress: ":0",
	}
}

// Provisioner is the provisioning transport/security capability consumed
// by the onboarding core.
type Provisioner interface {
	// Init prepares the provisioning capability. It does not open a
	// session.
	Init(cfg Config) error

	// IsProvisioned reports whether valid station credentials already
	// exist.
	IsProvisioned() (bool, error)

	// StartSession opens a provisioning session advertised under
	// serviceName.
	StartSession(serviceName string) error

	// StopSession forces the open session to end. It is a no-op when no
	// session is active.
	StopSession() error

	// Deinit releases the provisioning capability. Any open session is
	// stopped first.
	Deinit() error

	// OnEvent registers the handler for protocol events. Must be called
	// before StartSession.
	OnEvent(handler EventHandler)
}
