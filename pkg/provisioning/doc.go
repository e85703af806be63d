// Package provisioning implements the out-of-band credential exchange
// used to onboard a device onto a WiFi network.
//
// The onboarding core consumes the Provisioner interface and its typed
// event stream. Server is the device-side implementation: while a
// session is open it advertises the session's service name over mDNS
// and accepts a CBOR-framed credential exchange on a TCP listener,
// standing in for a short-range transport such as BLE. Client is the
// controller-side counterpart used by cmd/provlink-provision.
//
// # Security
//
// SecurityEncrypted (level 1) performs an X25519 key exchange bound to
// a shared setup key via HKDF; credentials are sealed with
// ChaCha20-Poly1305. SecurityNone (level 0) exchanges credentials in
// the clear and is intended for development only.
//
// # Session semantics
//
// Received credentials are applied to the network and verified with a
// connection attempt. A failed verification is reported to the remote
// party and surfaced as EventCredentialsRejected, but does not end the
// session: the remote party may retry until the session is stopped.
// EventSessionEndRequested is emitted exactly once per session, whether
// the end was requested by the remote party or forced by StopSession.
package provisioning
