package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dramamerge/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages job history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// JobRecord is one persisted job run.
type JobRecord struct {
	ID             string          `json:"id"`
	WorkDir        string          `json:"work_dir"`
	OutputDir      string          `json:"output_dir"`
	Title          string          `json:"title"`
	Season         int             `json:"season"`
	EpisodeStart   int             `json:"episode_start"`
	MetadataSource string          `json:"metadata_source,omitempty"`
	Status         string          `json:"status"`
	SegmentCount   int             `json:"segment_count"`
	Succeeded      int             `json:"succeeded"`
	Failed         int             `json:"failed"`
	Cancelled      int             `json:"cancelled"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Segments       []SegmentRecord `json:"segments,omitempty"`
}

// SegmentRecord is one attempted output of a job.
type SegmentRecord struct {
	Index        int           `json:"index"`
	OutputPath   string        `json:"output_path"`
	FileCount    int           `json:"file_count"`
	Duration     time.Duration `json:"duration"`
	SizeBytes    int64         `json:"size_bytes"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Open initializes or connects to the history database at cfg.Paths.HistoryDB.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	dbPath := cfg.Paths.HistoryDB
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts or replaces rec and its segments in one transaction.
func (s *Store) Record(ctx context.Context, rec JobRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("job id required")
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE job_id = ?`, rec.ID); err != nil {
			return fmt.Errorf("clear segments %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, rec.ID); err != nil {
			return fmt.Errorf("clear job %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO jobs (
			id, work_dir, output_dir, title, season, episode_start, metadata_source, status,
			segment_count, succeeded, failed, cancelled, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.WorkDir, rec.OutputDir, rec.Title, rec.Season, rec.EpisodeStart,
			rec.MetadataSource, rec.Status, rec.SegmentCount, rec.Succeeded, rec.Failed, rec.Cancelled,
			rec.ErrorMessage, formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
		); err != nil {
			return fmt.Errorf("insert job %s: %w", rec.ID, err)
		}
		for _, seg := range rec.Segments {
			if _, err := tx.ExecContext(ctx, `INSERT INTO segments (
				job_id, segment_index, output_path, file_count, duration_ms, size_bytes, status, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, seg.Index, seg.OutputPath, seg.FileCount, seg.Duration.Milliseconds(),
				seg.SizeBytes, seg.Status, seg.ErrorMessage,
			); err != nil {
				return fmt.Errorf("insert segment %d: %w", seg.Index, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit record: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit jobs, newest first. Segments are not loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, work_dir, output_dir, title, season, episode_start, metadata_source, status,
		segment_count, succeeded, failed, cancelled, error_message, started_at, finished_at
		FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			rec               JobRecord
			started, finished string
		)
		if err := rows.Scan(
			&rec.ID, &rec.WorkDir, &rec.OutputDir, &rec.Title, &rec.Season, &rec.EpisodeStart,
			&rec.MetadataSource, &rec.Status, &rec.SegmentCount, &rec.Succeeded, &rec.Failed,
			&rec.Cancelled, &rec.ErrorMessage, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Get returns the job with the given ID including its segments, or nil when
// it does not exist. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (*JobRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("job id required")
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, work_dir, output_dir, title, season, episode_start, metadata_source, status,
		segment_count, succeeded, failed, cancelled, error_message, started_at, finished_at
		FROM jobs WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`, id, likePrefix(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	defer rows.Close()

	var matches []JobRecord
	for rows.Next() {
		var (
			rec               JobRecord
			started, finished string
		)
		if err := rows.Scan(
			&rec.ID, &rec.WorkDir, &rec.OutputDir, &rec.Title, &rec.Season, &rec.EpisodeStart,
			&rec.MetadataSource, &rec.Status, &rec.SegmentCount, &rec.Succeeded, &rec.Failed,
			&rec.Cancelled, &rec.ErrorMessage, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		matches = append(matches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job: %w", err)
	}
	switch {
	case len(matches) == 0:
		return nil, nil
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", id)
	}
	rec := matches[0]
	segments, err := s.Segments(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Segments = segments
	return &rec, nil
}

// Segments returns the segments recorded for jobID in index order.
func (s *Store) Segments(ctx context.Context, jobID string) ([]SegmentRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT
		segment_index, output_path, file_count, duration_ms, size_bytes, status, error_message
		FROM segments WHERE job_id = ? ORDER BY segment_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []SegmentRecord
	for rows.Next() {
		var (
			seg        SegmentRecord
			durationMS int64
		)
		if err := rows.Scan(&seg.Index, &seg.OutputPath, &seg.FileCount, &durationMS,
			&seg.SizeBytes, &seg.Status, &seg.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

// Prune deletes jobs that started before cutoff, with their segments, and
// returns how many jobs were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin prune tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		ts := formatTime(cutoff)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM segments WHERE job_id IN (SELECT id FROM jobs WHERE started_at < ?)`, ts); err != nil {
			return fmt.Errorf("prune segments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE started_at < ?`, ts)
		if err != nil {
			return fmt.Errorf("prune jobs: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("prune jobs: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// formatTime stores UTC RFC3339 with fixed-width nanoseconds so string order
// matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(value string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05.000000000Z", value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// likePrefix drops LIKE wildcards from a user-supplied id prefix.
func likePrefix(value string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(value)
}
