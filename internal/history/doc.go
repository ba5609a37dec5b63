// Package history persists merge job reports in SQLite so past runs can be
// listed by the history command.
//
// The store mirrors a small relational model: one jobs row per run and one
// segments row per attempted output. Busy errors from concurrent writers are
// retried with bounded backoff. The schema is versioned; a mismatch is
// reported with ErrSchemaMismatch rather than migrated in place.
package history
