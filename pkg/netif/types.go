package netif

import "errors"

// Network errors.
var (
	ErrNotInitialized  = errors.New("network not initialized")
	ErrNotStarted      = errors.New("network not started")
	ErrNotStationMode  = errors.New("network not in station mode")
	ErrNoCredentials   = errors.New("no station credentials configured")
	ErrNetworkNotFound = errors.New("network not found")
	ErrAuthFailed      = errors.New("station authentication failed")
)

// StorageMode selects where station configuration writes land.
type StorageMode uint8

const (
	// StorageVolatile keeps configuration in RAM only; it is lost on
	// restart.
	StorageVolatile StorageMode = iota

	// StorageDurable persists configuration across reboots.
	StorageDurable
)

// String returns the storage mode name.
func (m StorageMode) String() string {
	switch m {
	case StorageVolatile:
		return "VOLATILE"
	case StorageDurable:
		return "DURABLE"
	default:
		return "UNKNOWN"
	}
}

// StationConfig holds the credentials for joining a network in station
// mode. An empty SSID means no network is configured.
type StationConfig struct {
	// SSID is the network identifier.
	SSID string

	// Passphrase is the credential material for the network.
	Passphrase string
}

// Empty reports whether no network is configured.
func (c StationConfig) Empty() bool {
	return c.SSID == ""
}
