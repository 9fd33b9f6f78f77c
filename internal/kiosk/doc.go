// Package kiosk is the facade the HTTP server and CLI drive.
//
// It wires the credential store, the authorized executor, the picker session
// manager, the acquisition pipeline and the cache index into one Service and
// exposes the viewer, status/poll and cache-admin operations. Cache writes
// are serialised across processes with a file lock next to the cache so the
// CLI and a running server never acquire media at the same time.
package kiosk
