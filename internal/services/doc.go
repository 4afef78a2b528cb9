// Package services defines shared utilities consumed by the reconciliation
// session and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and image tags for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     per-image (recorded in the report, processing continues) or
//     session-fatal (the run aborts and exits non-zero).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// stays uniform across the clients and the core.
package services
