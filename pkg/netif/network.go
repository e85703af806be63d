package netif

import "context"

// Network is the control surface of the network/radio subsystem consumed
// by the onboarding core. Implementations wrap a real WiFi stack or a
// simulation.
type Network interface {
	// Init brings up the network interface and radio. Must be called
	// before any other operation.
	Init() error

	// SetStationMode puts the radio into station (client) mode.
	SetStationMode() error

	// SetHostname sets the interface's advertised host name.
	SetHostname(name string) error

	// SetStorageMode selects where station configuration writes land.
	SetStorageMode(mode StorageMode) error

	// Start begins active radio operation.
	Start() error

	// GetStationConfig returns the station configuration currently held
	// by the stack's own store. A zero StationConfig means none.
	GetStationConfig() (StationConfig, error)

	// SetStationConfig replaces the station configuration. With
	// StorageDurable the write persists across reboots.
	SetStationConfig(cfg StationConfig) error
}

// Station is the connection surface of the network subsystem, consumed
// by the reconnection engine and by provisioning-time credential
// verification.
type Station interface {
	// Connect attempts to join the configured network. It returns
	// ErrNoCredentials, ErrNetworkNotFound, or ErrAuthFailed on the
	// corresponding failure.
	Connect(ctx context.Context) error

	// IsConnected reports whether the station currently holds a
	// connection.
	IsConnected() bool
}
