// Package jobs drives one merge job from request to report.
//
// A Coordinator runs the stages in a fixed order: resolve metadata, discover
// and order source files, probe them in parallel behind a barrier, plan
// segments, name outputs, and merge each segment. Stage failures before the
// merge stage abort the job before any ffmpeg process starts. Segment
// failures are isolated: each attempted segment ends with its own status in
// the Report and siblings keep running unless fail-fast is requested.
//
// Optional tail stages write a season playlist and record the report in the
// job history store. Failures there are logged and never change the job
// status.
package jobs
