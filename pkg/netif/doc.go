// Package netif defines the boundary to the network/radio subsystem and
// provides a complete simulated implementation for tests and the
// reference binaries.
//
// The Network interface mirrors what an embedded WiFi stack offers the
// onboarding core: one-time initialization, station mode selection,
// hostname configuration, a storage mode switch for the persistent
// station configuration, and read/write access to that configuration.
// Connection attempts are a separate concern (Station) consumed by the
// reconnection engine.
//
// SimNetwork simulates a radio against a set of known networks and can
// persist its station configuration durably through a ConfigStore, so
// the full onboarding flow is exercisable without hardware.
package netif
