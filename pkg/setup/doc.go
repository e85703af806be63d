// Package setup orchestrates onboarding a headless device onto a WiFi
// network.
//
// SetupConnectivity brings up the network stack, restores persisted
// station credentials, and hands continuous reconnection to the
// reconnect engine. When no credentials exist (or reconfiguration is
// forced) it opens a bounded provisioning session instead and reacts to
// the protocol's events.
//
// However a session terminates - explicit completion or deadline - the
// device ends in a well-defined state: either it holds verified
// credentials and is connecting, or the session closed cleanly without
// any. The reconciler guarantees this by falling back to the
// configuration captured before the session when the session itself
// established nothing.
package setup
