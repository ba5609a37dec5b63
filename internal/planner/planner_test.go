package planner

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"dramamerge/internal/discovery"
)

func makeFiles(durations []time.Duration, sizes []int64) []discovery.SourceFile {
	files := make([]discovery.SourceFile, len(durations))
	for i := range durations {
		var size int64
		if i < len(sizes) {
			size = sizes[i]
		}
		name := fmt.Sprintf("%02d.mp4", i+1)
		files[i] = discovery.SourceFile{Path: "/w/" + name, Name: name, Duration: durations[i], Size: size}
	}
	return files
}

func repeat(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func segmentSizes(plans []SegmentPlan) []int {
	out := make([]int, len(plans))
	for i, p := range plans {
		out[i] = len(p.Files)
	}
	return out
}

func TestPlanTenThreeMinuteFilesIntoTenMinuteSegments(t *testing.T) {
	files := makeFiles(repeat(3*time.Minute, 10), nil)
	c := Constraints{MaxDuration: 600 * time.Second}

	plans := Plan(files, c)
	if got := fmt.Sprint(segmentSizes(plans)); got != "[3 3 3 1]" {
		t.Fatalf("segment sizes = %s, want [3 3 3 1]", got)
	}
	wantDurations := []time.Duration{9 * time.Minute, 9 * time.Minute, 9 * time.Minute, 3 * time.Minute}
	for i, p := range plans {
		if p.Duration != wantDurations[i] {
			t.Fatalf("segment %d duration = %s, want %s", i, p.Duration, wantDurations[i])
		}
		if p.Oversized {
			t.Fatalf("segment %d unexpectedly oversized", i)
		}
	}
	if err := Validate(plans, files, c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPlanOversizedFileBecomesSingleton(t *testing.T) {
	files := makeFiles([]time.Duration{2 * time.Minute, 2 * time.Minute, 15 * time.Minute, 2 * time.Minute}, nil)
	c := Constraints{MaxDuration: 10 * time.Minute}

	plans := Plan(files, c)
	if got := fmt.Sprint(segmentSizes(plans)); got != "[2 1 1]" {
		t.Fatalf("segment sizes = %s, want [2 1 1]", got)
	}
	if !plans[1].Oversized || plans[1].Files[0].Name != "03.mp4" {
		t.Fatalf("expected 03.mp4 alone and flagged oversized, got %+v", plans[1])
	}
	if err := Validate(plans, files, c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPlanSizeLimit(t *testing.T) {
	files := makeFiles(repeat(time.Minute, 5), []int64{400, 400, 300, 900, 100})
	c := Constraints{MaxSize: 1000}

	plans := Plan(files, c)
	if got := fmt.Sprint(segmentSizes(plans)); got != "[2 1 2]" {
		t.Fatalf("segment sizes = %s, want [2 1 2]", got)
	}
	if plans[0].Size != 800 || plans[1].Size != 300 || plans[2].Size != 1000 {
		t.Fatalf("unexpected sizes %d %d %d", plans[0].Size, plans[1].Size, plans[2].Size)
	}
}

func TestPlanExactLimitStaysInSegment(t *testing.T) {
	files := makeFiles(repeat(5*time.Minute, 2), nil)
	plans := Plan(files, Constraints{MaxDuration: 10 * time.Minute})
	if len(plans) != 1 {
		t.Fatalf("expected files summing to exactly the cap to share a segment, got %d", len(plans))
	}
}

func TestPlanWithoutLimitsIsOneSegment(t *testing.T) {
	files := makeFiles(repeat(time.Hour, 7), []int64{1 << 40})
	plans := Plan(files, Constraints{})
	if len(plans) != 1 || len(plans[0].Files) != 7 {
		t.Fatalf("expected one segment of 7 files, got %v", segmentSizes(plans))
	}
	if Plan(nil, Constraints{}) != nil {
		t.Fatal("expected no segments for empty input")
	}
}

func TestPlanPropertiesRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := range 200 {
		n := 1 + rng.Intn(30)
		durations := make([]time.Duration, n)
		sizes := make([]int64, n)
		for i := range n {
			durations[i] = time.Duration(1+rng.Intn(20)) * time.Minute
			sizes[i] = int64(1 + rng.Intn(2000))
		}
		files := makeFiles(durations, sizes)
		c := Constraints{}
		if rng.Intn(3) > 0 {
			c.MaxDuration = time.Duration(5+rng.Intn(40)) * time.Minute
		}
		if rng.Intn(3) > 0 {
			c.MaxSize = int64(500 + rng.Intn(5000))
		}

		plans := Plan(files, c)
		if err := Validate(plans, files, c); err != nil {
			t.Fatalf("iteration %d: %v", iter, err)
		}
		again := Plan(files, c)
		if fmt.Sprint(segmentSizes(plans)) != fmt.Sprint(segmentSizes(again)) {
			t.Fatalf("iteration %d: plan not deterministic", iter)
		}
		if c.Unlimited() && len(plans) != 1 {
			t.Fatalf("iteration %d: expected one segment without limits", iter)
		}
	}
}

func TestValidateDetectsProblems(t *testing.T) {
	files := makeFiles(repeat(time.Minute, 3), nil)
	good := Plan(files, Constraints{MaxDuration: 2 * time.Minute})

	reordered := []SegmentPlan{good[1], good[0]}
	reordered[0].Index, reordered[1].Index = 0, 1
	if err := Validate(reordered, files, Constraints{}); err == nil {
		t.Fatal("expected reordering to be rejected")
	}
	if err := Validate(good[:1], files, Constraints{}); err == nil {
		t.Fatal("expected missing files to be rejected")
	}
	merged := Plan(files, Constraints{})
	if err := Validate(merged, files, Constraints{MaxDuration: 2 * time.Minute}); err == nil {
		t.Fatal("expected over-limit multi-file segment to be rejected")
	}
}
