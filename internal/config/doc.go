// Package config loads, normalizes, and validates photokiosk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_CLIENT_ID. The Config type centralizes every knob the server and CLI
// need, and derives the persisted layout (tokens.json, cache.db, media/) from
// the single data directory.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
