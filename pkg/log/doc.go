// Package log provides structured trace logging for the provisioning
// exchange.
//
// Events capture frames, decoded messages, session state changes, and
// errors on the provisioning link. They can be written to a CBOR trace
// file for later inspection, mirrored to an slog.Logger for console
// output, or both at once through a MultiLogger.
package log
