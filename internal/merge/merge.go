package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"dramamerge/internal/fileutil"
	"dramamerge/internal/logging"
	"dramamerge/internal/planner"
	"dramamerge/internal/services"
)

const (
	stageName = "merge"

	defaultLockPoll = 200 * time.Millisecond
)

// Request describes one segment to merge.
type Request struct {
	Plan      planner.SegmentPlan
	OutputDir string
	FileName  string
	// Streams holds probed signatures in plan order. When consistency checks
	// are enabled and Streams is non-empty, mismatched inputs fail the segment
	// before ffmpeg runs.
	Streams []StreamInfo
}

// Result describes a merged output file.
type Result struct {
	Index      int
	OutputPath string
	SizeBytes  int64
	Elapsed    time.Duration
}

// Executor merges segments with ffmpeg.
type Executor struct {
	ffmpeg           string
	timeout          time.Duration
	checkConsistency bool
	lockPoll         time.Duration
	run              CommandRunner
	logger           *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithCommandRunner injects a custom command runner for tests.
func WithCommandRunner(r CommandRunner) Option {
	return func(e *Executor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithTimeout bounds each Merge call. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithConsistencyCheck toggles the stream parameter check.
func WithConsistencyCheck(enabled bool) Option {
	return func(e *Executor) {
		e.checkConsistency = enabled
	}
}

// WithLockPoll sets how often a blocked Merge retries the output lock.
func WithLockPoll(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.lockPoll = d
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logging.NewComponentLogger(logger, "merge")
	}
}

// NewExecutor constructs an Executor that runs the given ffmpeg binary.
func NewExecutor(ffmpegBinary string, opts ...Option) *Executor {
	bin := strings.TrimSpace(ffmpegBinary)
	if bin == "" {
		bin = "ffmpeg"
	}
	e := &Executor{
		ffmpeg:   bin,
		lockPoll: defaultLockPoll,
		run:      defaultCommandRunner,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge concatenates req.Plan's files into OutputDir/FileName. Errors wrap
// services.ErrMergeFailed, or services.ErrCancelled when ctx ends first. A
// per-segment timeout is reported as ErrMergeFailed wrapping ErrTimeout.
// Existing output at the target path is replaced only after the new file has
// been verified.
func (e *Executor) Merge(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	result := Result{Index: req.Plan.Index}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return result, e.fail("validate request", fmt.Sprintf("invalid output file name %q", req.FileName), nil)
	}
	if len(req.Plan.Files) == 0 {
		return result, e.fail("validate request", "segment has no files", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return result, e.fail("prepare output", req.OutputDir, err)
	}
	finalPath := filepath.Join(req.OutputDir, fileName)
	result.OutputPath = finalPath

	if e.checkConsistency {
		if err := CheckConsistency(req.Streams); err != nil {
			return result, e.fail("consistency check", fileName, err)
		}
	}

	segCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		segCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	lock := flock.New(filepath.Join(req.OutputDir, "."+fileName+".lock"))
	locked, err := lock.TryLockContext(segCtx, e.lockPoll)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return result, e.classify(ctx, segCtx, "acquire output lock", fileName, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("output lock release failed",
				logging.String("lock", lock.Path()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "merge_lock_release_failed"),
			)
		}
	}()

	paths := make([]string, len(req.Plan.Files))
	for i, file := range req.Plan.Files {
		paths[i] = file.Path
	}
	manifest, err := writeManifest(req.OutputDir, paths)
	if err != nil {
		return result, e.fail("write manifest", fileName, err)
	}
	defer func() {
		_ = fileutil.RemoveIfExists(manifest)
	}()

	partial := partialPath(req.OutputDir, fileName)
	_ = fileutil.RemoveIfExists(partial)
	renamed := false
	defer func() {
		if !renamed {
			_ = fileutil.RemoveIfExists(partial)
		}
	}()

	args := buildArgs(manifest, partial, filepath.Ext(fileName))
	e.logger.Debug("executing ffmpeg concat",
		logging.String("output", finalPath),
		logging.Int("file_count", len(paths)),
		logging.String("command", e.ffmpeg+" "+strings.Join(args, " ")),
	)
	if err := e.run(segCtx, e.ffmpeg, args...); err != nil {
		return result, e.classify(ctx, segCtx, "ffmpeg concat", fileName, err)
	}
	if ctx.Err() != nil {
		return result, e.classify(ctx, segCtx, "ffmpeg concat", fileName, ctx.Err())
	}

	size, err := fileutil.NonEmpty(partial)
	if err != nil {
		return result, e.fail("verify output", fileName, err)
	}
	if err := fileutil.ReplaceFile(partial, finalPath); err != nil {
		return result, e.fail("finalize output", fileName, err)
	}
	renamed = true

	result.SizeBytes = size
	result.Elapsed = time.Since(start)
	return result, nil
}

func (e *Executor) fail(operation, message string, err error) error {
	return services.Wrap(services.ErrMergeFailed, stageName, operation, message, err)
}

// classify maps a failure to ErrCancelled when the caller's context ended,
// to ErrMergeFailed+ErrTimeout when only the segment deadline expired, and
// to ErrMergeFailed otherwise.
func (e *Executor) classify(parent, segCtx context.Context, operation, message string, err error) error {
	if parent.Err() != nil {
		return services.Wrap(services.ErrCancelled, stageName, operation, message, parent.Err())
	}
	if errors.Is(segCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrMergeFailed, stageName, operation, message,
			fmt.Errorf("%w after %s", services.ErrTimeout, e.timeout))
	}
	return e.fail(operation, message, err)
}

// partialPath names the hidden in-progress file. The real extension is kept
// last so ffmpeg still infers the output container from it.
func partialPath(dir, fileName string) string {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	return filepath.Join(dir, "."+stem+".partial"+ext)
}

func buildArgs(manifest, output, ext string) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-map", "0:v?", "-map", "0:a?", "-c", "copy",
	}
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v", ".mov":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, output)
}
