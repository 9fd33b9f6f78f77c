// Package preflight provides readiness checks for the filesystem paths,
// OAuth client settings, Google endpoints and optional binaries photokiosk
// depends on.
//
// The "photokiosk doctor" command prints every result; "serve" runs the
// filesystem checks before binding so a misconfigured data directory fails
// fast instead of on the first fetch.
package preflight
