package jobs

import (
	"context"
	"sync"

	"dramamerge/internal/logging"
	"dramamerge/internal/merge"
	"dramamerge/internal/services"
)

// mergeSegments merges every planned segment with at most
// media.merge_concurrency running at once. Segments start in index order.
// With failFast the first failure cancels running merges and every segment
// not yet started is reported as cancelled.
func (c *Coordinator) mergeSegments(ctx context.Context, job *MergeJob, planned []SegmentResult, failFast bool) []SegmentResult {
	results := make([]SegmentResult, len(planned))
	copy(results, planned)

	mergeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := c.cfg.Media.MergeConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i := range job.Plans {
		if !acquire(mergeCtx, sem) {
			results[i].fail(services.Wrap(services.ErrCancelled, "merge", "schedule segment",
				results[i].FileName+" not started", mergeCtx.Err()))
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := c.mergeOne(mergeCtx, job, idx, &results[idx]); err != nil && failFast {
				cancel()
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) mergeOne(ctx context.Context, job *MergeJob, idx int, result *SegmentResult) error {
	ctx = services.WithSegmentIndex(ctx, idx)
	logger := logging.WithContext(ctx, c.logger)
	plan := job.Plans[idx]

	streams := make([]merge.StreamInfo, 0, len(plan.Files))
	for _, f := range plan.Files {
		if info, ok := job.Streams[f.Path]; ok {
			streams = append(streams, info)
		}
	}

	logger.Info("segment merge started",
		logging.String("output", result.FileName),
		logging.Int("file_count", len(plan.Files)),
		logging.Duration("duration", plan.Duration),
		logging.Int64("size_bytes", plan.Size),
		logging.Bool("oversized", plan.Oversized),
	)
	res, err := c.executor.Merge(ctx, merge.Request{
		Plan:      plan,
		OutputDir: job.OutputDir,
		FileName:  job.FileNames[idx],
		Streams:   streams,
	})
	result.Elapsed = res.Elapsed
	if res.OutputPath != "" {
		result.OutputPath = res.OutputPath
	}
	if err != nil {
		result.fail(err)
		if result.Status == services.StatusCancelled {
			logger.Info("segment merge cancelled", logging.String("output", result.FileName))
		} else {
			logging.ErrorWithContext(logger, "segment merge failed", "segment_failed",
				logging.String("output", result.FileName),
				logging.String("status", result.Status),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the ffmpeg error tail; sibling segments continue"),
			)
		}
		return err
	}
	result.Status = services.StatusSucceeded
	result.OutputSize = res.SizeBytes
	logger.Info("segment merged",
		logging.String("output", result.OutputPath),
		logging.Int64("output_size", res.SizeBytes),
		logging.Duration("elapsed", res.Elapsed),
	)
	return nil
}

func (r *SegmentResult) fail(err error) {
	r.Err = err
	r.Status = services.Classify(err)
	r.Error = err.Error()
}

func acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sem <- struct{}{}:
		if ctx.Err() != nil {
			<-sem
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}
