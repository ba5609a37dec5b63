package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"dramamerge/internal/config"
	"dramamerge/internal/discovery"
	"dramamerge/internal/history"
	"dramamerge/internal/logging"
	"dramamerge/internal/merge"
	"dramamerge/internal/metadata"
	"dramamerge/internal/naming"
	"dramamerge/internal/notifications"
	"dramamerge/internal/planner"
	"dramamerge/internal/playlist"
	"dramamerge/internal/preflight"
	"dramamerge/internal/probe"
	"dramamerge/internal/services"
)

// Recorder persists finished job reports.
type Recorder interface {
	Record(ctx context.Context, rec history.JobRecord) error
}

// Coordinator runs merge jobs. It is safe for sequential reuse; each Run
// owns its MergeJob exclusively.
type Coordinator struct {
	cfg      config.Config
	logger   *slog.Logger
	resolver *metadata.Resolver
	prober   *probe.Prober
	executor *merge.Executor
	recorder Recorder
	notifier notifications.Service
	newID    func() string
	now      func() time.Time
}

type options struct {
	logger      *slog.Logger
	searcher    metadata.Searcher
	searcherSet bool
	recorder    Recorder
	notifier    notifications.Service
	runner      merge.CommandRunner
	inspector   probe.InspectFunc
	newID       func() string
}

// Option configures a Coordinator.
type Option func(*options)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSearcher overrides the metadata search backend built from config. A nil
// searcher disables lookup.
func WithSearcher(s metadata.Searcher) Option {
	return func(o *options) {
		o.searcher = s
		o.searcherSet = true
	}
}

// WithRecorder enables history recording through r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithNotifier overrides the ntfy service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithMergeRunner replaces the ffmpeg process runner.
func WithMergeRunner(r merge.CommandRunner) Option {
	return func(o *options) { o.runner = r }
}

// WithProbeInspector replaces the ffprobe invocation.
func WithProbeInspector(fn probe.InspectFunc) Option {
	return func(o *options) { o.inspector = fn }
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// NewCoordinator wires the stage components from cfg. The config is copied;
// later changes to cfg do not affect the coordinator.
func NewCoordinator(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	searcher := o.searcher
	if !o.searcherSet {
		s, err := metadata.NewSearcherFromConfig(cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "setup", "metadata search", "", err)
		}
		searcher = s
	}

	probeOpts := []probe.Option{probe.WithLogger(logger)}
	if o.inspector != nil {
		probeOpts = append(probeOpts, probe.WithInspector(o.inspector))
	}
	mergeOpts := []merge.Option{
		merge.WithLogger(logger),
		merge.WithTimeout(cfg.MergeTimeout()),
		merge.WithConsistencyCheck(cfg.Media.CheckConsistency),
	}
	if o.runner != nil {
		mergeOpts = append(mergeOpts, merge.WithCommandRunner(o.runner))
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	newID := o.newID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	return &Coordinator{
		cfg:    *cfg,
		logger: logging.NewComponentLogger(logger, "jobs"),
		resolver: metadata.NewResolver(
			metadata.WithSearcher(searcher),
			metadata.WithRawDirectoryFallback(cfg.Metadata.AllowRawDirectoryNameFallback),
			metadata.WithLogger(logger),
		),
		prober:   probe.New(cfg.FFprobeBinary(), cfg.ProbeTimeout(), cfg.Media.ProbeConcurrency, probeOpts...),
		executor: merge.NewExecutor(cfg.FFmpegBinary(), mergeOpts...),
		recorder: o.recorder,
		notifier: notifier,
		newID:    newID,
		now:      time.Now,
	}, nil
}

// Run executes req. Stage errors (no media, unresolved metadata, probe
// failure, invalid request) are returned with a report whose Status is
// failed, and no ffmpeg process is started. Once merging begins Run returns a
// nil error and the per-segment outcome is in the report.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Report, error) {
	job := c.newJob(req)
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, c.logger)

	report := &Report{
		JobID:       job.ID,
		WorkDir:     job.WorkDir,
		OutputDir:   job.OutputDir,
		Constraints: job.Constraints,
		DryRun:      req.DryRun,
		StartedAt:   c.now(),
	}
	logger.Info("merge job started",
		logging.String("work_dir", job.WorkDir),
		logging.String("output_dir", job.OutputDir),
		logging.Duration("max_duration", job.Constraints.MaxDuration),
		logging.Int64("max_size", job.Constraints.MaxSize),
		logging.Bool("dry_run", req.DryRun),
	)

	if err := c.prepare(ctx, job, req, report); err != nil {
		return c.abort(ctx, report, err)
	}

	if req.DryRun {
		report.Status = StatusPlanned
		report.FinishedAt = c.now()
		logger.Info("merge job planned",
			logging.Int("segment_count", len(job.Plans)),
			logging.Int("file_count", len(job.Files)),
		)
		return report, nil
	}

	var required int64
	for _, plan := range job.Plans {
		required += plan.Size
	}
	if err := preflight.CheckCapacity(job.OutputDir, required); err != nil {
		return c.abort(ctx, report, err)
	}

	stageCtx := services.WithStage(ctx, "merge")
	report.Segments = c.mergeSegments(stageCtx, job, report.Segments, req.FailFast || c.cfg.Job.FailFast)
	report.tally()

	if c.cfg.Job.WritePlaylist && report.Succeeded > 0 {
		c.writePlaylist(ctx, job, report)
	}

	report.FinishedAt = c.now()
	logger.Info("merge job finished",
		logging.String("status", report.Status),
		logging.Int("segment_count", len(report.Segments)),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("cancelled", report.Cancelled),
		logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	c.record(ctx, report)
	c.notifyFinished(ctx, report)
	return report, nil
}

func (c *Coordinator) newJob(req Request) *MergeJob {
	workDir := filepath.Clean(strings.TrimSpace(req.WorkDir))
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = c.cfg.Paths.OutputDir
	}
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}
	constraints := planner.Constraints{MaxDuration: c.cfg.MaxDuration(), MaxSize: c.cfg.Defaults.MaxSizeBytes}
	if req.MaxDuration > 0 {
		constraints.MaxDuration = req.MaxDuration
	}
	if req.MaxSize > 0 {
		constraints.MaxSize = req.MaxSize
	}
	ext := req.Extension
	if strings.TrimSpace(ext) == "" {
		ext = c.cfg.Defaults.Extension
	}
	return &MergeJob{
		ID:          c.newID(),
		WorkDir:     workDir,
		OutputDir:   outputDir,
		Extension:   naming.NormalizeExtension(ext),
		Constraints: constraints,
	}
}

// prepare runs every stage up to naming and fills report.Segments with the
// planned segments.
func (c *Coordinator) prepare(ctx context.Context, job *MergeJob, req Request, report *Report) error {
	if strings.TrimSpace(req.WorkDir) == "" {
		return services.Wrap(services.ErrValidation, "validate", "work directory", "work directory required", nil)
	}
	info, err := os.Stat(job.WorkDir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "validate", "work directory", job.WorkDir, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "validate", "work directory", job.WorkDir+" is not a directory", nil)
	}
	if job.OutputDir == job.WorkDir {
		return services.Wrap(services.ErrValidation, "validate", "output directory",
			"output directory must differ from the work directory", nil)
	}

	// Metadata.
	outcome, err := c.resolver.Resolve(services.WithStage(ctx, "metadata"), c.metadataRequest(job, req))
	report.MetadataSource = outcome.Source
	report.FallbackUsed = outcome.FallbackUsed
	report.Candidates = outcome.Candidates
	if outcome.LookupErr != nil {
		report.LookupError = outcome.LookupErr.Error()
	}
	if err != nil {
		return err
	}
	job.Metadata = outcome.Metadata
	report.Metadata = outcome.Metadata

	// Discovery.
	files, err := discovery.Discover(job.WorkDir, c.cfg.Media.Extensions)
	if err != nil {
		return err
	}
	logger := logging.WithContext(services.WithStage(ctx, "discover"), c.logger)
	if dups := discovery.DuplicateKeys(files); len(dups) > 0 {
		for _, key := range dups {
			report.DuplicateKeys = append(report.DuplicateKeys, key.String())
		}
		logging.WarnWithContext(logger, "files share an episode number; ordered by file name", "parse_ambiguous",
			logging.Any("keys", report.DuplicateKeys),
			logging.String(logging.FieldErrorHint, "rename files if the order is wrong"),
			logging.String(logging.FieldImpact, "ties broken lexicographically"),
		)
	}
	logger.Info("source files discovered", logging.Int("file_count", len(files)))

	// Probe (barrier: planning waits for every file).
	details, err := c.prober.Inspect(services.WithStage(ctx, "probe"), files)
	if err != nil {
		return err
	}
	streams := make(map[string]merge.StreamInfo, len(details))
	job.Files = make([]discovery.SourceFile, len(details))
	for i, d := range details {
		job.Files[i] = d.File
		streams[d.File.Path] = merge.StreamInfo{Name: d.File.Name, Signature: d.Result.Signature()}
	}
	report.Files = job.Files

	// Plan.
	job.Plans = planner.Plan(job.Files, job.Constraints)
	if err := planner.Validate(job.Plans, job.Files, job.Constraints); err != nil {
		return services.Wrap(services.ErrValidation, "plan", "validate segments", "", err)
	}

	// Name.
	job.FileNames = make([]string, len(job.Plans))
	report.Segments = make([]SegmentResult, len(job.Plans))
	for i, plan := range job.Plans {
		name := naming.OutputName(job.Metadata.Title, job.Metadata.Season, job.Metadata.EpisodeStart, plan.Index, job.Extension)
		job.FileNames[i] = name
		sources := make([]string, len(plan.Files))
		for j, f := range plan.Files {
			sources[j] = f.Path
		}
		report.Segments[i] = SegmentResult{
			Index:      plan.Index,
			FileName:   name,
			OutputPath: filepath.Join(job.OutputDir, name),
			Sources:    sources,
			Duration:   plan.Duration,
			SourceSize: plan.Size,
			Oversized:  plan.Oversized,
			Status:     StatusPlanned,
		}
	}
	if dup := firstDuplicate(job.FileNames); dup != "" {
		return services.Wrap(services.ErrValidation, "name", "output names", "duplicate output name "+dup, nil)
	}
	job.Streams = streams
	logging.WithContext(services.WithStage(ctx, "plan"), c.logger).Info("segments planned",
		logging.Int("segment_count", len(job.Plans)),
		logging.String("first_output", job.FileNames[0]),
	)
	return nil
}

func (c *Coordinator) metadataRequest(job *MergeJob, req Request) metadata.Request {
	mreq := metadata.Request{
		DirName: filepath.Base(job.WorkDir),
		Title:   req.Title,
		Season:  req.Season,
		Episode: req.Episode,
	}
	if strings.TrimSpace(mreq.Title) == "" {
		mreq.Title = c.cfg.Defaults.Title
	}
	// Configured numbering only applies when it differs from the built-in
	// default, so directory season hints still win over an untouched config.
	if mreq.Season == nil && c.cfg.Defaults.Season > 1 {
		season := c.cfg.Defaults.Season
		mreq.Season = &season
	}
	if mreq.Episode == nil && c.cfg.Defaults.Episode > 1 {
		episode := c.cfg.Defaults.Episode
		mreq.Episode = &episode
	}
	return mreq
}

func (c *Coordinator) abort(ctx context.Context, report *Report, err error) (*Report, error) {
	report.Status = StatusFailed
	report.Error = err.Error()
	report.FinishedAt = c.now()
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "merge job aborted", "job_aborted",
		logging.String("status", services.Classify(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, abortHint(err)),
	)
	if !report.DryRun {
		c.record(ctx, report)
		c.notifyAborted(ctx, report, err)
	}
	return report, err
}

func abortHint(err error) string {
	switch {
	case errors.Is(err, services.ErrNoMediaFiles):
		return "check the directory and the media.extensions setting"
	case errors.Is(err, services.ErrMetadataUnresolved):
		return "pass --title to name the series explicitly"
	case errors.Is(err, services.ErrExternalTool):
		return "run dramamerge check to verify ffprobe"
	default:
		return "check logs for details"
	}
}

func (c *Coordinator) writePlaylist(ctx context.Context, job *MergeJob, report *Report) {
	var entries []playlist.Entry
	for _, seg := range report.Segments {
		if !seg.Succeeded() {
			continue
		}
		entries = append(entries, playlist.Entry{
			Path:    seg.OutputPath,
			Seconds: seg.Duration.Seconds(),
			Title:   strings.TrimSuffix(seg.FileName, filepath.Ext(seg.FileName)),
		})
	}
	path, err := playlist.Write(job.OutputDir, job.Metadata.Title, job.Metadata.Season, entries)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "playlist not written", "playlist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "merged files are unaffected"),
		)
		return
	}
	report.PlaylistPath = path
}

func (c *Coordinator) record(ctx context.Context, report *Report) {
	if c.recorder == nil || !c.cfg.Job.RecordHistory {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), report.HistoryRecord()); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "job history not recorded", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job missing from dramamerge history"),
		)
	}
}

func (c *Coordinator) notifyFinished(ctx context.Context, report *Report) {
	err := c.notifier.NotifyJobFinished(context.WithoutCancel(ctx), notifications.JobSummary{
		Title:     report.Metadata.Title,
		Season:    report.Metadata.Season,
		Status:    report.Status,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Cancelled: report.Cancelled,
		Total:     len(report.Segments),
		OutputDir: report.OutputDir,
		Elapsed:   report.FinishedAt.Sub(report.StartedAt),
	})
	c.logNotifyError(ctx, err)
}

func (c *Coordinator) notifyAborted(ctx context.Context, report *Report, cause error) {
	if errors.Is(cause, services.ErrCancelled) {
		return
	}
	title := report.Metadata.Title
	if title == "" {
		title = filepath.Base(report.WorkDir)
	}
	c.logNotifyError(ctx, c.notifier.NotifyJobFailed(context.WithoutCancel(ctx), title, cause))
}

func (c *Coordinator) logNotifyError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "job notification not sent", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "merge results are unaffected"),
	)
}

func firstDuplicate(names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i]
		}
	}
	return ""
}
