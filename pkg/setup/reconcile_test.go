package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provlink/provlink-go/pkg/netif"
)

// countingNetwork wraps a SimNetwork and counts config writes.
type countingNetwork struct {
	*netif.SimNetwork
	setCalls int
}

func (n *countingNetwork) SetStationConfig(cfg netif.StationConfig) error {
	n.setCalls++
	return n.SimNetwork.SetStationConfig(cfg)
}

func newReconcileBootstrapper(t *testing.T, current, startup netif.StationConfig) (*Bootstrapper, *countingNetwork) {
	t.Helper()

	network := &countingNetwork{SimNetwork: netif.NewSimNetwork(nil)}
	require.NoError(t, network.Init())
	require.NoError(t, network.SimNetwork.SetStationConfig(current))

	b := &Bootstrapper{
		cfg:             testConfig(),
		network:         network,
		startupCfg:      startup,
		startupCaptured: true,
	}
	return b, network
}

func TestReconcile_CredentialsEstablished(t *testing.T) {
	current := netif.StationConfig{SSID: "new-net", Passphrase: "new-pass"}
	startup := netif.StationConfig{SSID: "old-net", Passphrase: "old-pass"}
	b, network := newReconcileBootstrapper(t, current, startup)

	outcome, err := b.reconcile()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCredentialsEstablished, outcome)

	// Established credentials are left alone.
	assert.Equal(t, 0, network.setCalls)
	cfg, err := network.GetStationConfig()
	require.NoError(t, err)
	assert.Equal(t, current, cfg)
}

func TestReconcile_FallbackToStartup(t *testing.T) {
	startup := netif.StationConfig{SSID: "old-net", Passphrase: "old-pass"}
	b, network := newReconcileBootstrapper(t, netif.StationConfig{}, startup)

	outcome, err := b.reconcile()
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallbackToStartup, outcome)

	assert.Equal(t, 1, network.setCalls)
	cfg, err := network.GetStationConfig()
	require.NoError(t, err)
	assert.Equal(t, startup, cfg)
}

func TestReconcile_NoConnectivity(t *testing.T) {
	b, network := newReconcileBootstrapper(t, netif.StationConfig{}, netif.StationConfig{})

	outcome, err := b.reconcile()
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoConnectivity, outcome)

	// No credentials anywhere means no writes at all.
	assert.Equal(t, 0, network.setCalls)
}

func TestReconcile_UninitializedNetwork(t *testing.T) {
	b := &Bootstrapper{
		cfg:     testConfig(),
		network: netif.NewSimNetwork(nil),
	}

	outcome, err := b.reconcile()
	assert.ErrorIs(t, err, netif.ErrNotInitialized)
	assert.Equal(t, OutcomeNoConnectivity, outcome)
}
