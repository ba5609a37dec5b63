// Package preflight provides readiness checks for the external binaries,
// filesystem paths, and services dramamerge depends on.
//
// These checks run in two contexts:
//   - The job coordinator calls CheckCapacity before merging so a job that
//     cannot fit on the output volume fails before ffmpeg starts.
//   - The CLI "dramamerge check" command runs RunAll to display tool, path,
//     and metadata-service health.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
