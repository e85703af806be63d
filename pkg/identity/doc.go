// Package identity derives the stable, human-readable device name used
// for hostname configuration and provisioning service advertisement.
//
// The name is built from build metadata (the project name) and the 48-bit
// hardware identifier. The provisioning transport limits advertised names
// to 32 characters, so the project portion is truncated to 25 characters
// and the identifier is rendered as a fixed-width 6-digit hex suffix.
//
// Derivation is deterministic: the same inputs always produce the same
// name, and there is no failure path beyond truncation.
package identity
