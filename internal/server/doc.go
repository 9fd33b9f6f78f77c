// Package server exposes the kiosk over a small JSON HTTP API: status and
// picker polling, fetch, cached media bytes for the viewer, cache admin and
// the OAuth start/callback pair.
package server
