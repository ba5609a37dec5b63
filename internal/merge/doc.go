// Package merge concatenates planned segments into output files with
// ffmpeg's concat demuxer in stream-copy mode.
//
// Each Merge call writes a temporary concat manifest next to the output,
// runs ffmpeg into a hidden partial file, verifies the result, and renames it
// into place. The manifest and any partial output are removed on every exit
// path, including cancellation. Writers targeting the same output path are
// serialized by an advisory lock file in the output directory.
package merge
