// Package reconnect maintains the station connection once credentials
// exist.
//
// The engine must be started before any connection attempt is requested,
// otherwise a connection event could fire before anyone is listening.
// Start only arms the engine; Resume asks it to (re)attempt the
// connection, and is a no-op when there is nothing to connect to.
// Attempts retry with exponential backoff.
package reconnect
