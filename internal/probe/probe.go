// Package probe measures the duration and size of source files with ffprobe.
//
// ProbeAll fans out one inspection per file with bounded concurrency and
// returns only after every inspection has finished, so the planner never sees
// a partially probed sequence.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"dramamerge/internal/discovery"
	"dramamerge/internal/logging"
	"dramamerge/internal/media/ffprobe"
	"dramamerge/internal/services"
)

const stageName = "probe"

// InspectFunc runs a media inspection. ffprobe.Inspect satisfies it.
type InspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Prober probes source files in parallel.
type Prober struct {
	binary      string
	timeout     time.Duration
	concurrency int
	inspect     InspectFunc
	logger      *slog.Logger
}

// Option customizes a Prober.
type Option func(*Prober)

// WithInspector overrides the inspection function (used by tests).
func WithInspector(fn InspectFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.inspect = fn
		}
	}
}

// WithLogger sets the logger used for per-file debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logging.NewComponentLogger(logger, "probe")
	}
}

// New constructs a Prober. A timeout of zero disables the per-file limit and
// a concurrency below one is treated as one.
func New(binary string, timeout time.Duration, concurrency int, opts ...Option) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Prober{
		binary:      binary,
		timeout:     timeout,
		concurrency: concurrency,
		inspect:     ffprobe.Inspect,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Details holds the full inspection result for one file.
type Details struct {
	File   discovery.SourceFile
	Result ffprobe.Result
}

// ProbeAll returns a copy of files with Duration and Size populated, in the
// same order. When any probe fails, the error for the earliest file is
// returned after all in-flight probes have finished.
func (p *Prober) ProbeAll(ctx context.Context, files []discovery.SourceFile) ([]discovery.SourceFile, error) {
	details, err := p.Inspect(ctx, files)
	if err != nil {
		return nil, err
	}
	out := make([]discovery.SourceFile, len(details))
	for i, d := range details {
		out[i] = d.File
	}
	return out, nil
}

// Inspect behaves like ProbeAll but also returns the raw inspection results,
// which the stream consistency check consumes.
func (p *Prober) Inspect(ctx context.Context, files []discovery.SourceFile) ([]Details, error) {
	results := make([]Details, len(files))
	errs := make([]error, len(files))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[idx], errs[idx] = p.probeOne(ctx, files[idx])
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, services.Wrap(services.ErrCancelled, stageName, "probe files", "", ctx.Err())
	}
	for i, err := range errs {
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "ffprobe", files[i].Name, err)
		}
	}
	return results, nil
}

func (p *Prober) probeOne(ctx context.Context, file discovery.SourceFile) (Details, error) {
	probeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.inspect(probeCtx, p.binary, file.Path)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Details{}, fmt.Errorf("%w after %s: %w", services.ErrTimeout, p.timeout, err)
		}
		return Details{}, err
	}

	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return Details{}, fmt.Errorf("no usable duration reported (%q)", result.Format.Duration)
	}
	size := result.SizeBytes()
	if size <= 0 {
		info, statErr := os.Stat(file.Path)
		if statErr != nil {
			return Details{}, fmt.Errorf("stat source: %w", statErr)
		}
		size = info.Size()
	}

	file.Duration = time.Duration(seconds * float64(time.Second))
	file.Size = size
	p.logger.Debug("probed source file",
		logging.String("file", file.Name),
		logging.Duration("duration", file.Duration),
		logging.Int64("size_bytes", file.Size),
		logging.Duration("elapsed", time.Since(start)),
	)
	return Details{File: file, Result: result}, nil
}
