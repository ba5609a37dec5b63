package jobs

import (
	"errors"
	"time"

	"dramamerge/internal/discovery"
	"dramamerge/internal/history"
	"dramamerge/internal/merge"
	"dramamerge/internal/metadata"
	"dramamerge/internal/planner"
	"dramamerge/internal/services"
)

// Job outcomes reported in Report.Status.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusPlanned = "planned"
)

// Request describes one merge job. Zero values fall back to configuration
// defaults; nothing in a Request is written back to configuration.
type Request struct {
	WorkDir   string
	OutputDir string
	Title     string
	Season    *int
	Episode   *int
	// MaxDuration and MaxSize override the configured caps when positive.
	MaxDuration time.Duration
	MaxSize     int64
	Extension   string
	FailFast    bool
	DryRun      bool
}

// MergeJob is the per-run working state, populated stage by stage.
type MergeJob struct {
	ID          string
	WorkDir     string
	OutputDir   string
	Extension   string
	Constraints planner.Constraints
	Metadata    metadata.SeriesMetadata
	Files       []discovery.SourceFile
	Plans       []planner.SegmentPlan
	FileNames   []string
	// Streams maps source paths to their probed stream parameters.
	Streams map[string]merge.StreamInfo
}

// SegmentResult is the terminal state of one planned segment.
type SegmentResult struct {
	Index      int           `json:"index"`
	FileName   string        `json:"file_name"`
	OutputPath string        `json:"output_path"`
	Sources    []string      `json:"sources"`
	Duration   time.Duration `json:"duration"`
	SourceSize int64         `json:"source_size"`
	Oversized  bool          `json:"oversized,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	OutputSize int64         `json:"output_size,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	Err        error         `json:"-"`
}

// Succeeded reports whether the segment produced its output.
func (r SegmentResult) Succeeded() bool {
	return r.Status == services.StatusSucceeded
}

// Report is the result of Coordinator.Run.
type Report struct {
	JobID          string                  `json:"job_id"`
	WorkDir        string                  `json:"work_dir"`
	OutputDir      string                  `json:"output_dir"`
	Metadata       metadata.SeriesMetadata `json:"metadata"`
	MetadataSource metadata.Source         `json:"metadata_source,omitempty"`
	FallbackUsed   bool                    `json:"fallback_used,omitempty"`
	LookupError    string                  `json:"lookup_error,omitempty"`
	Candidates     []metadata.Candidate    `json:"candidates,omitempty"`
	Constraints    planner.Constraints     `json:"constraints"`
	Files          []discovery.SourceFile  `json:"files,omitempty"`
	DuplicateKeys  []string                `json:"duplicate_keys,omitempty"`
	Segments       []SegmentResult         `json:"segments"`
	Succeeded      int                     `json:"succeeded"`
	Failed         int                     `json:"failed"`
	Cancelled      int                     `json:"cancelled"`
	Status         string                  `json:"status"`
	Error          string                  `json:"error,omitempty"`
	PlaylistPath   string                  `json:"playlist_path,omitempty"`
	DryRun         bool                    `json:"dry_run,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
}

// tally counts segment outcomes and derives the job status. Partial success
// is its own status and is never folded into success or failure.
func (r *Report) tally() {
	r.Succeeded, r.Failed, r.Cancelled = 0, 0, 0
	for _, seg := range r.Segments {
		switch {
		case seg.Succeeded():
			r.Succeeded++
		case errors.Is(seg.Err, services.ErrCancelled):
			r.Cancelled++
		default:
			r.Failed++
		}
	}
	switch {
	case len(r.Segments) > 0 && r.Succeeded == len(r.Segments):
		r.Status = StatusSuccess
	case r.Succeeded > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusFailed
	}
}

// HistoryRecord converts the report into its persisted form.
func (r *Report) HistoryRecord() history.JobRecord {
	rec := history.JobRecord{
		ID:             r.JobID,
		WorkDir:        r.WorkDir,
		OutputDir:      r.OutputDir,
		Title:          r.Metadata.Title,
		Season:         r.Metadata.Season,
		EpisodeStart:   r.Metadata.EpisodeStart,
		MetadataSource: string(r.MetadataSource),
		Status:         r.Status,
		SegmentCount:   len(r.Segments),
		Succeeded:      r.Succeeded,
		Failed:         r.Failed,
		Cancelled:      r.Cancelled,
		ErrorMessage:   r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
	for _, seg := range r.Segments {
		rec.Segments = append(rec.Segments, history.SegmentRecord{
			Index:        seg.Index,
			OutputPath:   seg.OutputPath,
			FileCount:    len(seg.Sources),
			Duration:     seg.Duration,
			SizeBytes:    seg.OutputSize,
			Status:       seg.Status,
			ErrorMessage: seg.Error,
		})
	}
	return rec
}
