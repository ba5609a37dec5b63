// Package services defines shared utilities consumed by the merge stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, segment indices, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep job-level and
//     segment-level failures distinguishable in reports and history.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
