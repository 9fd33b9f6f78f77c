// Package logging assembles structured slog loggers and formatting helpers used
// across photokiosk components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context helpers so acquisition code can tag every line of a run with
// the same run_id. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
