package setup

import (
	"fmt"
	"sync"

	"github.com/provlink/provlink-go/pkg/identity"
	"github.com/provlink/provlink-go/pkg/netif"
	"github.com/provlink/provlink-go/pkg/provisioning"
	"github.com/provlink/provlink-go/pkg/reconnect"
)

// Bootstrapper runs the one-time connectivity setup at boot and owns
// the provisioning session lifecycle.
type Bootstrapper struct {
	mu sync.Mutex

	cfg         Config
	network     Network
	provisioner provisioning.Provisioner
	reconnector Reconnector

	// Device identity, derived once during SetupConnectivity.
	deviceIdentity identity.DeviceIdentity

	// Pre-session configuration snapshot, captured at most once per
	// boot and never mutated afterwards.
	startupCfg      netif.StationConfig
	startupCaptured bool

	// Current session controller; nil when no session exists.
	session *sessionController

	// Callback observing the terminal connectivity decision.
	onOutcome func(Outcome)
}

// Compile-time check: *reconnect.Engine implements Reconnector.
var _ Reconnector = (*reconnect.Engine)(nil)

// New creates a Bootstrapper over the given collaborators.
func New(network Network, prov provisioning.Provisioner, rec Reconnector, cfg Config) (*Bootstrapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if network == nil || prov == nil || rec == nil {
		return nil, ErrInvalidConfig
	}

	return &Bootstrapper{
		cfg:         cfg,
		network:     network,
		provisioner: prov,
		reconnector: rec,
	}, nil
}

// OnOutcome sets a callback observing the connectivity decision reached
// when a provisioning session ends. Diagnostic only; the skip path
// (already provisioned) does not produce an outcome.
func (b *Bootstrapper) OnOutcome(fn func(Outcome)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOutcome = fn
}

// Identity returns the derived device identity. Valid after
// SetupConnectivity.
func (b *Bootstrapper) Identity() identity.DeviceIdentity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deviceIdentity
}

// SessionState returns the current provisioning session state, or
// SessionIdle when no session was ever created.
func (b *Bootstrapper) SessionState() SessionState {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil {
		return SessionIdle
	}
	return session.State()
}

// SetupConnectivity brings up connectivity once at boot. When valid
// credentials already exist (and forceReconfigure is false) it resumes
// station connectivity directly; otherwise it opens a provisioning
// session bounded by the configured timeout.
//
// All bring-up failures are fatal and returned immediately: no
// connectivity path can exist without the network stack. Session-level
// anomalies never escape here; the outcome is observable through the
// reconnect engine and OnOutcome.
func (b *Bootstrapper) SetupConnectivity(forceReconfigure bool) error {
	b.mu.Lock()
	if b.session != nil && b.session.State() == SessionActive {
		b.mu.Unlock()
		return ErrSessionActive
	}
	cfg := b.cfg
	b.mu.Unlock()

	// Derive the device identity.
	id := identity.Derive(cfg.ProjectName, cfg.HardwareID)
	b.mu.Lock()
	b.deviceIdentity = id
	b.mu.Unlock()
	b.debugLog("device name derived", "name", id.Name)

	// Bring up the network stack in station mode. Storage is forced
	// durable before any config read or write so every subsequent
	// mutation persists.
	if err := b.network.Init(); err != nil {
		return fmt.Errorf("%w: init: %w", ErrNetworkBringUp, err)
	}
	if err := b.network.SetStorageMode(netif.StorageDurable); err != nil {
		return fmt.Errorf("%w: storage mode: %w", ErrNetworkBringUp, err)
	}
	if err := b.network.SetStationMode(); err != nil {
		return fmt.Errorf("%w: station mode: %w", ErrNetworkBringUp, err)
	}
	if err := b.network.SetHostname(id.Name); err != nil {
		return fmt.Errorf("%w: hostname: %w", ErrNetworkBringUp, err)
	}

	// The reconnect engine must listen before any connection attempt,
	// otherwise it can miss the connected event.
	if err := b.reconnector.Start(); err != nil {
		return fmt.Errorf("%w: reconnect engine: %w", ErrNetworkBringUp, err)
	}

	// Capture the pre-session configuration, at most once per boot.
	if err := b.captureStartupConfig(); err != nil {
		return fmt.Errorf("%w: startup config: %w", ErrNetworkBringUp, err)
	}

	// Register for protocol events and initialize the provisioning
	// capability, whether or not a session will actually run.
	b.provisioner.OnEvent(b.handleProvisioningEvent)
	if err := b.provisioner.Init(provisioning.Config{
		Scheme:        provisioning.SchemeMDNS,
		Security:      cfg.Security,
		SetupKey:      cfg.SetupKey,
		ListenAddress: cfg.ListenAddress,
		Network:       b.network,
		Station:       b.network,
		Logger:        cfg.Logger,
		Trace:         cfg.Trace,
	}); err != nil {
		return fmt.Errorf("%w: provisioner: %w", ErrNetworkBringUp, err)
	}

	provisioned, err := b.provisioner.IsProvisioned()
	if err != nil {
		return fmt.Errorf("%w: provisioned query: %w", ErrNetworkBringUp, err)
	}

	if !provisioned || forceReconfigure {
		return b.startSession(id)
	}

	// Nothing to provision: release the capability, connect to the
	// existing network.
	if err := b.provisioner.Deinit(); err != nil {
		b.debugLog("provisioner deinit failed", "err", err)
	}
	if err := b.network.Start(); err != nil {
		return fmt.Errorf("%w: start: %w", ErrNetworkBringUp, err)
	}
	if err := b.reconnector.Resume(); err != nil {
		return fmt.Errorf("%w: reconnect resume: %w", ErrNetworkBringUp, err)
	}
	return nil
}

// startSession creates a fresh session controller and opens the
// session. The radio is started first: credential verification during
// the session needs it active.
func (b *Bootstrapper) startSession(id identity.DeviceIdentity) error {
	if err := b.network.Start(); err != nil {
		return fmt.Errorf("%w: start: %w", ErrNetworkBringUp, err)
	}

	session := newSessionController(b.provisioner, b.cfg.SessionTimeout, b.cfg.Logger, b.sessionEnded)

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()

	if err := session.start(ServiceNamePrefix + id.Name); err != nil {
		b.mu.Lock()
		b.session = nil
		b.mu.Unlock()
		return fmt.Errorf("%w: provisioning session: %w", ErrNetworkBringUp, err)
	}
	return nil
}

// sessionEnded runs inside the session's Active -> Ended transition:
// reconcile the configuration, then unconditionally hand connectivity
// back to the reconnect engine.
func (b *Bootstrapper) sessionEnded() {
	outcome, err := b.reconcile()
	if err != nil {
		b.debugLog("reconciliation failed", "err", err)
	}
	b.debugLog("provisioning outcome", "outcome", outcome.String())

	if err := b.reconnector.Resume(); err != nil {
		b.debugLog("reconnect resume failed", "err", err)
	}

	b.mu.Lock()
	fn := b.onOutcome
	b.mu.Unlock()
	if fn != nil {
		fn(outcome)
	}
}

// handleProvisioningEvent routes protocol events to the session
// controller owning the current session.
func (b *Bootstrapper) handleProvisioningEvent(event provisioning.Event) {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session != nil {
		session.handleEvent(event)
	}
}

func (b *Bootstrapper) captureStartupConfig() error {
	b.mu.Lock()
	captured := b.startupCaptured
	b.mu.Unlock()
	if captured {
		return nil
	}

	cfg, err := b.network.GetStationConfig()
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.startupCfg = cfg
	b.startupCaptured = true
	b.mu.Unlock()
	return nil
}

func (b *Bootstrapper) startupConfig() netif.StationConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startupCfg
}

func (b *Bootstrapper) debugLog(msg string, args ...any) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Debug(msg, args...)
	}
}
