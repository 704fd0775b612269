// Package services defines shared utilities consumed by the workflow steps
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp work item IDs, phase names, pass IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that let the
//     workflow classify failures (recoverable per item vs. stop-the-pass).
//
// Use these helpers when wiring new step logic so error handling and
// observability stay uniform across the workflow.
package services
