// Package logging assembles structured slog loggers and formatting helpers used
// across labtriage.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workflow code tags log lines with work
// item IDs, phases, and pass IDs automatically. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
