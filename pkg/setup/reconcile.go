package setup

import (
	"fmt"

	"github.com/provlink/provlink-go/pkg/netif"
)

// reconcile inspects the post-session station configuration and decides
// the connectivity outcome. It runs exactly once, inside the session's
// Active -> Ended transition.
//
// When the session established credentials they are left untouched.
// When it established nothing, the configuration captured before the
// session is written back: the provisioning layer cannot restore prior
// configuration after an unsuccessful session, so the core compensates.
func (b *Bootstrapper) reconcile() (Outcome, error) {
	// Force durable storage before touching the config slot, so the
	// decision both reads and writes the persistent state.
	if err := b.network.SetStorageMode(netif.StorageDurable); err != nil {
		return OutcomeNoConnectivity, err
	}

	current, err := b.network.GetStationConfig()
	if err != nil {
		return OutcomeNoConnectivity, err
	}

	if !current.Empty() {
		return OutcomeCredentialsEstablished, nil
	}

	startup := b.startupConfig()
	if !startup.Empty() {
		b.debugLog("no credentials after provisioning, restoring startup config", "ssid", startup.SSID)
		if err := b.network.SetStationConfig(startup); err != nil {
			return OutcomeNoConnectivity, fmt.Errorf("restore startup config: %w", err)
		}
		return OutcomeFallbackToStartup, nil
	}

	// Nothing we can do, no connectivity.
	b.debugLog("no credentials found")
	return OutcomeNoConnectivity, nil
}
