// Package main hosts the dramamerge CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into merge jobs,
// dry-run plans, title lookups, history queries, and environment checks. It
// centralizes configuration resolution and structured logging setup so
// subcommands only deal with flags and rendering.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
