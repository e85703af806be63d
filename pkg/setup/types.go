package setup

import (
	"errors"
	"log/slog"
	"time"

	tracelog "github.com/provlink/provlink-go/pkg/log"
	"github.com/provlink/provlink-go/pkg/netif"
	"github.com/provlink/provlink-go/pkg/provisioning"
)

// Setup errors.
var (
	ErrInvalidConfig  = errors.New("invalid setup configuration")
	ErrSessionActive  = errors.New("provisioning session already active")
	ErrNetworkBringUp = errors.New("network bring-up failed")
)

// ServiceNamePrefix prefixes the advertised provisioning service name,
// per the transport convention.
const ServiceNamePrefix = "PROV_"

// DefaultSessionTimeout is the default provisioning session deadline.
const DefaultSessionTimeout = 120 * time.Second

// SessionState represents the provisioning session controller state.
type SessionState uint8

const (
	// SessionIdle - controller created, session not started.
	SessionIdle SessionState = iota

	// SessionActive - session open, awaiting protocol events.
	SessionActive

	// SessionEnded - terminal; the controller is discarded.
	SessionEnded
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "IDLE"
	case SessionActive:
		return "ACTIVE"
	case SessionEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the connectivity decision reached when a provisioning
// session ends.
type Outcome uint8

const (
	// OutcomeCredentialsEstablished - the session left verified
	// credentials in place.
	OutcomeCredentialsEstablished Outcome = iota

	// OutcomeFallbackToStartup - the session established nothing; the
	// pre-session configuration was restored.
	OutcomeFallbackToStartup

	// OutcomeNoConnectivity - no credentials exist at all; the device
	// has no network path.
	OutcomeNoConnectivity
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCredentialsEstablished:
		return "CREDENTIALS_ESTABLISHED"
	case OutcomeFallbackToStartup:
		return "FALLBACK_TO_STARTUP"
	case OutcomeNoConnectivity:
		return "NO_CONNECTIVITY"
	default:
		return "UNKNOWN"
	}
}

// Network combines the control and connection surfaces of the network
// stack. Satisfied by *netif.SimNetwork and by real stacks.
type Network interface {
	netif.Network
	netif.Station
}

// Reconnector is the reconnection engine surface the bootstrapper
// drives. Satisfied by *reconnect.Engine.
type Reconnector interface {
	// Start arms the engine. Must happen before any connection attempt.
	Start() error

	// Resume asks the engine to (re)attempt the connection.
	Resume() error
}

// Config configures a Bootstrapper.
type Config struct {
	// ProjectName is the build metadata project name used for the
	// derived device name.
	ProjectName string

	// HardwareID is the 48-bit hardware-unique identifier.
	HardwareID uint64

	// SessionTimeout is the provisioning session deadline.
	SessionTimeout time.Duration

	// Security is the provisioning exchange security level.
	Security provisioning.SecurityLevel

	// SetupKey is the shared proof-of-possession secret. Required for
	// SecurityEncrypted.
	SetupKey string

	// ListenAddress is the provisioning TCP listen address.
	ListenAddress string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trace is the optional trace logger for the provisioning exchange.
	// If nil, tracing is disabled.
	Trace tracelog.Logger
}

// DefaultConfig returns a Config with sensible defaults. ProjectName
// and HardwareID must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		SessionTimeout: DefaultSessionTimeout,
		Security:       provisioning.SecurityEncrypted,
		ListenAddress:  ":0",
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return ErrInvalidConfig
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.Security == provisioning.SecurityEncrypted && c.SetupKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
