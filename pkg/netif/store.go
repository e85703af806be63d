package netif

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StoreVersion is the current version of the config file format.
const StoreVersion = 1

// storedConfig is the on-disk representation of a station configuration.
type storedConfig struct {
	// Version is the config file format version.
	Version int `json:"version"`

	// SavedAt is when the configuration was last saved.
	SavedAt time.Time `json:"saved_at"`

	// SSID is the network identifier.
	SSID string `json:"ssid,omitempty"`

	// Passphrase is the credential material.
	Passphrase string `json:"passphrase,omitempty"`
}

// ConfigStore manages persistence of the station configuration to a JSON
// file. It backs SimNetwork's durable storage mode.
type ConfigStore struct {
	mu   sync.Mutex
	path string
}

// NewConfigStore creates a new station config store.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// Save persists the station configuration to disk.
func (s *ConfigStore) Save(cfg StationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	stored := storedConfig{
		Version:    StoreVersion,
		SavedAt:    time.Now(),
		SSID:       cfg.SSID,
		Passphrase: cfg.Passphrase,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load reads the station configuration from disk.
// Returns a zero StationConfig if the file doesn't exist.
func (s *ConfigStore) Load() (StationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return StationConfig{}, nil
	}
	if err != nil {
		return StationConfig{}, err
	}

	stored := storedConfig{}
	if err := json.Unmarshal(data, &stored); err != nil {
		return StationConfig{}, err
	}

	return StationConfig{SSID: stored.SSID, Passphrase: stored.Passphrase}, nil
}

// Clear removes the config file.
func (s *ConfigStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
