package setup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provlink/provlink-go/pkg/netif"
	"github.com/provlink/provlink-go/pkg/provisioning"
)

// fakeProvisioner mimics the provisioning server surface: StartSession
// takes ownership of the station config slot, StopSession emits the end
// request exactly once per open session.
type fakeProvisioner struct {
	mu      sync.Mutex
	handler provisioning.EventHandler

	provisioned bool
	active      bool

	cfg         provisioning.Config
	serviceName string

	initCalls   int
	startCalls  int
	stopCalls   int
	deinitCalls int

	startErr error

	// endDuringStart makes StartSession request the session end before
	// returning, the way the real server can when the remote party acts
	// immediately.
	endDuringStart bool
}

func (p *fakeProvisioner) Init(cfg provisioning.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.initCalls++
	return nil
}

func (p *fakeProvisioner) IsProvisioned() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisioned, nil
}

func (p *fakeProvisioner) StartSession(serviceName string) error {
	p.mu.Lock()
	if p.startErr != nil {
		err := p.startErr
		p.mu.Unlock()
		return err
	}
	p.serviceName = serviceName
	p.active = true
	p.startCalls++
	network := p.cfg.Network
	p.mu.Unlock()

	// The session owns the config slot while open.
	if network != nil {
		_ = network.SetStationConfig(netif.StationConfig{})
	}

	p.emit(provisioning.Event{Type: provisioning.EventSessionStarted})

	if p.endDuringStart {
		_ = p.StopSession()
	}
	return nil
}

func (p *fakeProvisioner) StopSession() error {
	p.mu.Lock()
	wasActive := p.active
	p.active = false
	p.stopCalls++
	p.mu.Unlock()

	if wasActive {
		p.emit(provisioning.Event{Type: provisioning.EventSessionEndRequested})
	}
	return nil
}

func (p *fakeProvisioner) Deinit() error {
	p.mu.Lock()
	p.active = false
	p.deinitCalls++
	p.mu.Unlock()
	return nil
}

func (p *fakeProvisioner) OnEvent(handler provisioning.EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

func (p *fakeProvisioner) emit(event provisioning.Event) {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func (p *fakeProvisioner) counts() (init, start, stop, deinit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initCalls, p.startCalls, p.stopCalls, p.deinitCalls
}

var _ provisioning.Provisioner = (*fakeProvisioner)(nil)

// fakeReconnector records the call order of Start and Resume.
type fakeReconnector struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeReconnector) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "start")
	return nil
}

func (r *fakeReconnector) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "resume")
	return nil
}

func (r *fakeReconnector) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

var _ Reconnector = (*fakeReconnector)(nil)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ProjectName = "sensor"
	cfg.HardwareID = 0xa1b2c3d4e5f6
	cfg.Security = provisioning.SecurityNone
	return cfg
}

func newTestBootstrapper(t *testing.T, cfg Config) (*Bootstrapper, *netif.SimNetwork, *fakeProvisioner, *fakeReconnector) {
	t.Helper()

	network := netif.NewSimNetwork(nil)
	prov := &fakeProvisioner{}
	rec := &fakeReconnector{}

	b, err := New(network, prov, rec, cfg)
	require.NoError(t, err)
	return b, network, prov, rec
}

func TestNew_Validation(t *testing.T) {
	network := netif.NewSimNetwork(nil)
	prov := &fakeProvisioner{}
	rec := &fakeReconnector{}

	_, err := New(network, prov, rec, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig()
	_, err = New(nil, prov, rec, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(network, nil, rec, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(network, prov, nil, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Encrypted exchanges need a setup key.
	cfg.Security = provisioning.SecurityEncrypted
	cfg.SetupKey = ""
	_, err = New(network, prov, rec, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// Unprovisioned boot: a session opens under the derived service name and
// the reconnect engine stays armed but unresumed.
func TestSetupConnectivity_OpensSessionWhenUnprovisioned(t *testing.T) {
	b, network, prov, rec := newTestBootstrapper(t, testConfig())

	err := b.SetupConnectivity(false)
	require.NoError(t, err)

	assert.Equal(t, SessionActive, b.SessionState())
	assert.Equal(t, "sensor-d4e5f6", b.Identity().Name)
	assert.Equal(t, "PROV_sensor-d4e5f6", prov.serviceName)
	assert.Equal(t, b.Identity().Name, network.Hostname())

	init, start, stop, deinit := prov.counts()
	assert.Equal(t, 1, init)
	assert.Equal(t, 1, start)
	assert.Equal(t, 0, stop)
	assert.Equal(t, 0, deinit)

	// Armed, not resumed: the session decides when connectivity starts.
	assert.Equal(t, []string{"start"}, rec.callLog())
}

// Provisioned boot: no session, the capability is released and the
// engine is resumed immediately.
func TestSetupConnectivity_SkipsSessionWhenProvisioned(t *testing.T) {
	b, _, prov, rec := newTestBootstrapper(t, testConfig())
	prov.provisioned = true

	err := b.SetupConnectivity(false)
	require.NoError(t, err)

	assert.Equal(t, SessionIdle, b.SessionState())

	_, start, _, deinit := prov.counts()
	assert.Equal(t, 0, start)
	assert.Equal(t, 1, deinit)

	assert.Equal(t, []string{"start", "resume"}, rec.callLog())
}

// forceReconfigure opens a session even on a provisioned device.
func TestSetupConnectivity_ForceReconfigure(t *testing.T) {
	b, _, prov, _ := newTestBootstrapper(t, testConfig())
	prov.provisioned = true

	err := b.SetupConnectivity(true)
	require.NoError(t, err)

	assert.Equal(t, SessionActive, b.SessionState())
	_, start, _, _ := prov.counts()
	assert.Equal(t, 1, start)
}

func TestSetupConnectivity_RejectsWhileSessionActive(t *testing.T) {
	b, _, _, _ := newTestBootstrapper(t, testConfig())

	require.NoError(t, b.SetupConnectivity(false))
	assert.ErrorIs(t, b.SetupConnectivity(false), ErrSessionActive)
}

// A session that ends before StartSession returns still reconciles,
// reports its outcome, and hands connectivity back to the engine.
func TestSessionEnd_DuringStart(t *testing.T) {
	b, _, prov, rec := newTestBootstrapper(t, testConfig())
	prov.endDuringStart = true

	var outcomes []Outcome
	b.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, b.SetupConnectivity(false))

	assert.Equal(t, SessionEnded, b.SessionState())
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeNoConnectivity, outcomes[0])
	assert.Equal(t, []string{"start", "resume"}, rec.callLog())
}

// Session ends with credentials in place: outcome is
// CredentialsEstablished and the engine resumes against the new network.
func TestSessionEnd_CredentialsEstablished(t *testing.T) {
	b, network, prov, rec := newTestBootstrapper(t, testConfig())

	var outcomes []Outcome
	b.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, b.SetupConnectivity(false))

	// Credentials land during the session.
	require.NoError(t, network.SetStationConfig(netif.StationConfig{SSID: "home", Passphrase: "secret"}))
	require.NoError(t, prov.StopSession())

	assert.Equal(t, SessionEnded, b.SessionState())
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeCredentialsEstablished, outcomes[0])
	assert.Equal(t, []string{"start", "resume"}, rec.callLog())

	_, _, _, deinit := prov.counts()
	assert.Equal(t, 1, deinit)
}

// Session ends empty-handed on a device that had prior credentials: the
// pre-session configuration comes back.
func TestSessionEnd_FallbackToStartup(t *testing.T) {
	b, network, prov, _ := newTestBootstrapper(t, testConfig())

	require.NoError(t, network.Init())
	startup := netif.StationConfig{SSID: "old-net", Passphrase: "old-pass"}
	require.NoError(t, network.SetStationConfig(startup))

	var outcomes []Outcome
	b.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, b.SetupConnectivity(true))

	// The open session cleared the slot.
	cfg, err := network.GetStationConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Empty())

	require.NoError(t, prov.StopSession())

	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeFallbackToStartup, outcomes[0])

	cfg, err = network.GetStationConfig()
	require.NoError(t, err)
	assert.Equal(t, startup, cfg)
}

// Session ends empty-handed on a blank device: nothing to restore.
func TestSessionEnd_NoConnectivity(t *testing.T) {
	b, network, prov, rec := newTestBootstrapper(t, testConfig())

	var outcomes []Outcome
	b.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, b.SetupConnectivity(false))
	require.NoError(t, prov.StopSession())

	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeNoConnectivity, outcomes[0])

	cfg, err := network.GetStationConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Empty())

	// The engine is still resumed; it gives up on its own when it finds
	// no credentials.
	assert.Equal(t, []string{"start", "resume"}, rec.callLog())
}

// Duplicate end signals (deadline racing natural completion) tear down
// exactly once.
func TestSessionEnd_Idempotent(t *testing.T) {
	b, _, prov, rec := newTestBootstrapper(t, testConfig())

	var outcomes []Outcome
	b.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, b.SetupConnectivity(false))

	require.NoError(t, prov.StopSession())
	require.NoError(t, prov.StopSession())
	prov.emit(provisioning.Event{Type: provisioning.EventSessionEndRequested})

	assert.Len(t, outcomes, 1)
	assert.Equal(t, []string{"start", "resume"}, rec.callLog())

	_, _, _, deinit := prov.counts()
	assert.Equal(t, 1, deinit)
}

// A rejection keeps the session open for a retry.
func TestSession_RejectionDoesNotEndSession(t *testing.T) {
	b, _, prov, rec := newTestBootstrapper(t, testConfig())

	require.NoError(t, b.SetupConnectivity(false))

	prov.emit(provisioning.Event{
		Type:   provisioning.EventCredentialsRejected,
		SSID:   "home",
		Reason: provisioning.RejectAuthenticationFailed,
	})

	assert.Equal(t, SessionActive, b.SessionState())
	assert.Equal(t, []string{"start"}, rec.callLog())
}

// The deadline timer forces the session shut through the provisioner.
func TestSession_TimeoutEndsSession(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 20 * time.Millisecond

	b, _, prov, rec := newTestBootstrapper(t, cfg)

	outcomes := make(chan Outcome, 1)
	b.OnOutcome(func(o Outcome) { outcomes <- o })

	require.NoError(t, b.SetupConnectivity(false))

	select {
	case o := <-outcomes:
		assert.Equal(t, OutcomeNoConnectivity, o)
	case <-time.After(time.Second):
		t.Fatal("session did not time out")
	}

	assert.Equal(t, SessionEnded, b.SessionState())
	assert.Equal(t, []string{"start", "resume"}, rec.callLog())

	_, _, stop, _ := prov.counts()
	assert.Equal(t, 1, stop)
}

// A fresh setup run is possible after a previous session ended.
func TestSetupConnectivity_AfterEndedSession(t *testing.T) {
	b, _, prov, _ := newTestBootstrapper(t, testConfig())

	require.NoError(t, b.SetupConnectivity(false))
	require.NoError(t, prov.StopSession())
	require.Equal(t, SessionEnded, b.SessionState())

	require.NoError(t, b.SetupConnectivity(true))
	assert.Equal(t, SessionActive, b.SessionState())

	_, start, _, _ := prov.counts()
	assert.Equal(t, 2, start)
}
