package probe_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dramamerge/internal/discovery"
	"dramamerge/internal/media/ffprobe"
	"dramamerge/internal/probe"
	"dramamerge/internal/services"
	"dramamerge/internal/testsupport"
)

func sourceFiles(n int) []discovery.SourceFile {
	files := make([]discovery.SourceFile, n)
	for i := range files {
		name := fmt.Sprintf("%02d.mp4", i+1)
		files[i] = discovery.SourceFile{Path: "/w/" + name, Name: name}
	}
	return files
}

func TestProbeAllPopulatesInOrderWithBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	inspect := func(ctx context.Context, _ string, path string) (ffprobe.Result, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		idx, _ := strconv.Atoi(strings.TrimSuffix(filepath.Base(path), ".mp4"))
		return ffprobe.Result{Format: ffprobe.Format{
			Duration: fmt.Sprintf("%d", idx*10),
			Size:     fmt.Sprintf("%d", idx*1000),
		}}, nil
	}

	p := probe.New("ffprobe", time.Second, 3, probe.WithInspector(inspect))
	files, err := p.ProbeAll(context.Background(), sourceFiles(8))
	if err != nil {
		t.Fatalf("ProbeAll: %v", err)
	}
	for i, f := range files {
		if f.Duration != time.Duration(i+1)*10*time.Second {
			t.Fatalf("file %d duration = %s", i, f.Duration)
		}
		if f.Size != int64(i+1)*1000 {
			t.Fatalf("file %d size = %d", i, f.Size)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("concurrency exceeded: %d", peak.Load())
	}
}

func TestProbeAllReportsEarliestFailure(t *testing.T) {
	var calls atomic.Int32
	inspect := func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		calls.Add(1)
		switch filepath.Base(path) {
		case "02.mp4", "04.mp4":
			return ffprobe.Result{}, errors.New("invalid data")
		}
		return ffprobe.Result{Format: ffprobe.Format{Duration: "60", Size: "10"}}, nil
	}

	p := probe.New("ffprobe", 0, 2, probe.WithInspector(inspect))
	_, err := p.ProbeAll(context.Background(), sourceFiles(5))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "02.mp4") {
		t.Fatalf("expected earliest failing file in error, got %q", got)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected every file probed before returning, got %d", calls.Load())
	}
}

func TestProbeAllRejectsMissingDuration(t *testing.T) {
	inspect := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Format: ffprobe.Format{Size: "10"}}, nil
	}
	p := probe.New("ffprobe", 0, 1, probe.WithInspector(inspect))
	if _, err := p.ProbeAll(context.Background(), sourceFiles(1)); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestProbeAllTimeout(t *testing.T) {
	inspect := func(ctx context.Context, _ string, _ string) (ffprobe.Result, error) {
		<-ctx.Done()
		return ffprobe.Result{}, ctx.Err()
	}
	p := probe.New("ffprobe", 10*time.Millisecond, 1, probe.WithInspector(inspect))
	_, err := p.ProbeAll(context.Background(), sourceFiles(1))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestProbeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inspect := func(ctx context.Context, _ string, _ string) (ffprobe.Result, error) {
		return ffprobe.Result{}, ctx.Err()
	}
	p := probe.New("ffprobe", 0, 1, probe.WithInspector(inspect))
	if _, err := p.ProbeAll(ctx, sourceFiles(3)); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestProbeAllWithFakeBinary(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.FakeFFprobe(t, filepath.Join(dir, "bin"), map[string]float64{"a.mp4": 180})
	path := filepath.Join(dir, "a.mp4")
	testsupport.WriteFile(t, path, 2048)

	p := probe.New(bin, 5*time.Second, 1)
	files, err := p.ProbeAll(context.Background(), []discovery.SourceFile{{Path: path, Name: "a.mp4"}})
	if err != nil {
		t.Fatalf("ProbeAll: %v", err)
	}
	if files[0].Duration != 3*time.Minute || files[0].Size != 2048 {
		t.Fatalf("unexpected probe result %+v", files[0])
	}
}
