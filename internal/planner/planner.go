// Package planner partitions an ordered source sequence into contiguous
// segments that respect optional duration and size caps.
package planner

import (
	"fmt"
	"time"

	"dramamerge/internal/discovery"
)

// Constraints caps each segment. Zero values mean "no limit".
type Constraints struct {
	MaxDuration time.Duration
	MaxSize     int64
}

// Unlimited reports whether no cap is configured.
func (c Constraints) Unlimited() bool {
	return c.MaxDuration <= 0 && c.MaxSize <= 0
}

// SegmentPlan is one output file's worth of source files. Oversized is set
// when a single file alone exceeds a cap and was placed on its own.
type SegmentPlan struct {
	Index     int
	Files     []discovery.SourceFile
	Duration  time.Duration
	Size      int64
	Oversized bool
}

// Plan walks files in order and greedily appends each one to the open segment
// while both running totals stay within the caps. A file that would push the
// segment over a cap closes it and opens the next. A file that exceeds a cap
// by itself always becomes a singleton segment. Without caps the whole
// sequence becomes one segment; an empty input yields no segments.
func Plan(files []discovery.SourceFile, c Constraints) []SegmentPlan {
	if len(files) == 0 {
		return nil
	}

	var plans []SegmentPlan
	current := SegmentPlan{}
	flush := func() {
		if len(current.Files) == 0 {
			return
		}
		current.Index = len(plans)
		plans = append(plans, current)
		current = SegmentPlan{}
	}

	for _, file := range files {
		if c.exceeds(file.Duration, file.Size) {
			flush()
			current = SegmentPlan{
				Files:     []discovery.SourceFile{file},
				Duration:  file.Duration,
				Size:      file.Size,
				Oversized: true,
			}
			flush()
			continue
		}
		if len(current.Files) > 0 && c.exceeds(current.Duration+file.Duration, current.Size+file.Size) {
			flush()
		}
		current.Files = append(current.Files, file)
		current.Duration += file.Duration
		current.Size += file.Size
	}
	flush()
	return plans
}

func (c Constraints) exceeds(duration time.Duration, size int64) bool {
	if c.MaxDuration > 0 && duration > c.MaxDuration {
		return true
	}
	if c.MaxSize > 0 && size > c.MaxSize {
		return true
	}
	return false
}

// Validate checks that plans cover files exactly once in their original order,
// that indexes are sequential, that totals match their files, and that only
// singleton segments exceed a cap.
func Validate(plans []SegmentPlan, files []discovery.SourceFile, c Constraints) error {
	pos := 0
	for i, plan := range plans {
		if plan.Index != i {
			return fmt.Errorf("segment %d has index %d", i, plan.Index)
		}
		if len(plan.Files) == 0 {
			return fmt.Errorf("segment %d is empty", i)
		}
		var duration time.Duration
		var size int64
		for _, file := range plan.Files {
			if pos >= len(files) {
				return fmt.Errorf("segment %d lists more files than the input", i)
			}
			if file.Path != files[pos].Path {
				return fmt.Errorf("segment %d: expected %s at position %d, found %s", i, files[pos].Path, pos, file.Path)
			}
			duration += file.Duration
			size += file.Size
			pos++
		}
		if duration != plan.Duration || size != plan.Size {
			return fmt.Errorf("segment %d totals %s/%d do not match its files %s/%d", i, plan.Duration, plan.Size, duration, size)
		}
		if c.exceeds(plan.Duration, plan.Size) && len(plan.Files) > 1 {
			return fmt.Errorf("segment %d exceeds limits with %d files", i, len(plan.Files))
		}
	}
	if pos != len(files) {
		return fmt.Errorf("segments cover %d of %d files", pos, len(files))
	}
	return nil
}
