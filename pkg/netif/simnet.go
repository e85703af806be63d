package netif

import (
	"context"
	"sync"
)

// SimNetwork is a simulated network/radio subsystem. It implements
// Network and Station against an in-memory set of known networks, with
// optional durable persistence of the station configuration through a
// ConfigStore.
type SimNetwork struct {
	mu sync.Mutex

	initialized bool
	stationMode bool
	started     bool
	hostname    string
	storage     StorageMode

	// Station configuration (RAM copy; mirrored to the store when
	// storage mode is durable).
	config StationConfig

	// Optional durable backing store.
	store *ConfigStore

	// Simulated radio environment: reachable networks by SSID.
	networks map[string]string

	connected bool

	// Callback for connection state changes.
	onConnectionChange func(connected bool)
}

// NewSimNetwork creates a simulated network. store may be nil, in which
// case durable storage mode behaves like volatile storage.
func NewSimNetwork(store *ConfigStore) *SimNetwork {
	return &SimNetwork{
		store:    store,
		networks: make(map[string]string),
	}
}

// AddNetwork makes a network reachable in the simulated environment.
func (n *SimNetwork) AddNetwork(ssid, passphrase string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.networks[ssid] = passphrase
}

// RemoveNetwork removes a network from the simulated environment.
func (n *SimNetwork) RemoveNetwork(ssid string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.networks, ssid)
}

// Init brings up the simulated interface and radio. The persisted
// station configuration, if any, is restored from the store.
func (n *SimNetwork) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.initialized {
		return nil
	}

	if n.store != nil {
		cfg, err := n.store.Load()
		if err != nil {
			return err
		}
		n.config = cfg
	}

	n.initialized = true
	return nil
}

// SetStationMode puts the simulated radio into station mode.
func (n *SimNetwork) SetStationMode() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}
	n.stationMode = true
	return nil
}

// SetHostname sets the advertised host name.
func (n *SimNetwork) SetHostname(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}
	n.hostname = name
	return nil
}

// Hostname returns the configured host name.
func (n *SimNetwork) Hostname() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hostname
}

// SetStorageMode selects where station configuration writes land.
func (n *SimNetwork) SetStorageMode(mode StorageMode) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}
	n.storage = mode
	return nil
}

// Start begins active radio operation.
func (n *SimNetwork) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}
	if !n.stationMode {
		return ErrNotStationMode
	}
	n.started = true
	return nil
}

// GetStationConfig returns the current station configuration.
func (n *SimNetwork) GetStationConfig() (StationConfig, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return StationConfig{}, ErrNotInitialized
	}
	return n.config, nil
}

// SetStationConfig replaces the station configuration. With durable
// storage and a backing store the write persists across restarts.
func (n *SimNetwork) SetStationConfig(cfg StationConfig) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}

	n.config = cfg
	if n.storage == StorageDurable && n.store != nil {
		return n.store.Save(cfg)
	}
	return nil
}

// Connect attempts to join the configured network.
func (n *SimNetwork) Connect(ctx context.Context) error {
	n.mu.Lock()

	if !n.started {
		n.mu.Unlock()
		return ErrNotStarted
	}
	if n.config.Empty() {
		n.mu.Unlock()
		return ErrNoCredentials
	}

	passphrase, ok := n.networks[n.config.SSID]
	if !ok {
		n.mu.Unlock()
		return ErrNetworkNotFound
	}
	if passphrase != n.config.Passphrase {
		n.mu.Unlock()
		return ErrAuthFailed
	}

	wasConnected := n.connected
	n.connected = true
	fn := n.onConnectionChange
	n.mu.Unlock()

	if !wasConnected && fn != nil {
		fn(true)
	}
	return ctx.Err()
}

// Disconnect drops the simulated connection.
func (n *SimNetwork) Disconnect() {
	n.mu.Lock()
	wasConnected := n.connected
	n.connected = false
	fn := n.onConnectionChange
	n.mu.Unlock()

	if wasConnected && fn != nil {
		fn(false)
	}
}

// IsConnected reports whether the station holds a connection.
func (n *SimNetwork) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// OnConnectionChange sets a callback for connection state changes.
func (n *SimNetwork) OnConnectionChange(fn func(connected bool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onConnectionChange = fn
}

// Compile-time checks: SimNetwork implements the subsystem interfaces.
var (
	_ Network = (*SimNetwork)(nil)
	_ Station = (*SimNetwork)(nil)
)
