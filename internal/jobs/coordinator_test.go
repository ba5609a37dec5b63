package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"dramamerge/internal/config"
	"dramamerge/internal/jobs"
	"dramamerge/internal/metadata"
	"dramamerge/internal/notifications"
	"dramamerge/internal/services"
	"dramamerge/internal/testsupport"
)

// seedEpisodes writes count files named EP01.mp4... of size bytes each into
// dir and returns a probe duration map giving each the same length.
func seedEpisodes(t *testing.T, dir string, count int, size int64, seconds float64) map[string]float64 {
	t.Helper()
	durations := make(map[string]float64, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("EP%02d.mp4", i)
		testsupport.WriteFile(t, filepath.Join(dir, name), size)
		durations[name] = seconds
	}
	return durations
}

func newCoordinator(t *testing.T, cfg *config.Config, opts ...jobs.Option) *jobs.Coordinator {
	t.Helper()
	c, err := jobs.NewCoordinator(cfg, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func ffmpegLog(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	return testsupport.FFmpegLog(t, filepath.Join(testsupport.BaseDir(cfg), "bin"))
}

func segmentNames(report *jobs.Report) []string {
	out := make([]string, len(report.Segments))
	for i, s := range report.Segments {
		out[i] = s.FileName
	}
	return out
}

func segmentSizes(report *jobs.Report) []int {
	out := make([]int, len(report.Segments))
	for i, s := range report.Segments {
		out[i] = len(s.Sources)
	}
	return out
}

func visibleFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var out []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out
}

func workDir(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	dir := filepath.Join(testsupport.BaseDir(cfg), "in", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

type recordingNotifier struct {
	finished []notifications.JobSummary
	failed   []string
}

func (n *recordingNotifier) NotifyJobFinished(_ context.Context, s notifications.JobSummary) error {
	n.finished = append(n.finished, s)
	return nil
}

func (n *recordingNotifier) NotifyJobFailed(_ context.Context, title string, _ error) error {
	n.failed = append(n.failed, title)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type countingSearcher struct {
	calls      atomic.Int32
	candidates []metadata.Candidate
}

func (s *countingSearcher) Search(context.Context, string) ([]metadata.Candidate, error) {
	s.calls.Add(1)
	return s.candidates, nil
}

func TestRunSplitsTenEpisodesIntoFourSegments(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 10, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(600, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}),
	)

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := segmentSizes(report); !slices.Equal(got, []int{3, 3, 3, 1}) {
		t.Fatalf("segment sizes = %v, want [3 3 3 1]", got)
	}
	wantNames := []string{"MyShow_S01E01.mp4", "MyShow_S01E02.mp4", "MyShow_S01E03.mp4", "MyShow_S01E04.mp4"}
	if got := segmentNames(report); !slices.Equal(got, wantNames) {
		t.Fatalf("names = %v, want %v", got, wantNames)
	}
	if report.Status != jobs.StatusSuccess || report.Succeeded != 4 || report.Failed != 0 {
		t.Fatalf("unexpected report status %q (%d ok, %d failed)", report.Status, report.Succeeded, report.Failed)
	}
	if report.Segments[0].Duration != 9*time.Minute {
		t.Fatalf("segment duration = %v", report.Segments[0].Duration)
	}
	for i, seg := range report.Segments {
		info, err := os.Stat(seg.OutputPath)
		if err != nil {
			t.Fatalf("segment %d output missing: %v", i, err)
		}
		if info.Size() != int64(len(seg.Sources))*10 || seg.OutputSize != info.Size() {
			t.Fatalf("segment %d size = %d (reported %d)", i, info.Size(), seg.OutputSize)
		}
	}

	var first []string
	for _, line := range ffmpegLog(t, cfg) {
		fields := strings.Fields(line)
		if fields[0] == ".MyShow_S01E01.partial.mp4" {
			first = append(first, filepath.Base(fields[1]))
		}
	}
	if !slices.Equal(first, []string{"EP01.mp4", "EP02.mp4", "EP03.mp4"}) {
		t.Fatalf("first segment concatenated %v", first)
	}
	if _, err := uuid.Parse(report.JobID); err != nil {
		t.Fatalf("job id %q is not a uuid: %v", report.JobID, err)
	}
}

func TestRunExplicitTitleSkipsLookup(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "whatever S03")
	durations := seedEpisodes(t, src, 2, 10, 60)
	cfg := testsupport.NewConfig(t, testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}))
	searcher := &countingSearcher{}

	report, err := newCoordinator(t, cfg, jobs.WithSearcher(searcher)).Run(context.Background(),
		jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := metadata.SeriesMetadata{Title: "MyShow", Season: 1, EpisodeStart: 1}
	if report.Metadata != want {
		t.Fatalf("metadata = %+v, want %+v", report.Metadata, want)
	}
	if searcher.calls.Load() != 0 {
		t.Fatal("explicit title must not trigger a lookup")
	}
	if got := segmentNames(report); !slices.Equal(got, []string{"MyShow_S01E01.mp4"}) {
		t.Fatalf("names = %v", got)
	}
}

func TestRunUsesDirectorySeasonHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := workDir(t, cfg, "庆余年 第二季")
	durations := seedEpisodes(t, src, 1, 10, 60)
	cfg = withTools(t, cfg, durations, testsupport.FFmpegBehavior{})

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Episode: intPtr(5)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.MetadataSource != metadata.SourceDerived {
		t.Fatalf("source = %q", report.MetadataSource)
	}
	if got := segmentNames(report); !slices.Equal(got, []string{"庆余年_S02E05.mp4"}) {
		t.Fatalf("names = %v", got)
	}
}

// withTools installs fake media tools for a config built without them.
func withTools(t *testing.T, cfg *config.Config, durations map[string]float64, behavior testsupport.FFmpegBehavior) *config.Config {
	t.Helper()
	binDir := filepath.Join(testsupport.BaseDir(cfg), "bin")
	cfg.Media.FFprobeBinary = testsupport.FakeFFprobe(t, binDir, durations)
	cfg.Media.FFmpegBinary = testsupport.FakeFFmpeg(t, binDir, behavior)
	return cfg
}

func intPtr(v int) *int { return &v }

func TestRunOversizedFileGetsOwnSegment(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 3, 10, 100)
	durations["EP02.mp4"] = 900
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(600, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}),
	)

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "X"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := segmentSizes(report); !slices.Equal(got, []int{1, 1, 1}) {
		t.Fatalf("segment sizes = %v", got)
	}
	if !report.Segments[1].Oversized || report.Segments[0].Oversized {
		t.Fatalf("oversized flags wrong: %+v", report.Segments)
	}
	if report.Status != jobs.StatusSuccess {
		t.Fatalf("oversized segment should still merge, status %q", report.Status)
	}
}

func TestRunIsolatesSegmentFailure(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 9, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(600, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{FailOn: []string{"E02"}}),
	)

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("segment failures must not fail Run: %v", err)
	}
	statuses := []string{report.Segments[0].Status, report.Segments[1].Status, report.Segments[2].Status}
	want := []string{services.StatusSucceeded, services.StatusMergeFailed, services.StatusSucceeded}
	if !slices.Equal(statuses, want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	if report.Status != jobs.StatusPartial || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected summary %q %d/%d", report.Status, report.Succeeded, report.Failed)
	}
	if !errors.Is(report.Segments[1].Err, services.ErrMergeFailed) || !strings.Contains(report.Segments[1].Error, "simulated concat failure") {
		t.Fatalf("segment error should carry ffmpeg stderr: %v", report.Segments[1].Err)
	}
	if _, err := os.Stat(report.Segments[1].OutputPath); !os.IsNotExist(err) {
		t.Fatalf("failed segment must not leave output, stat err %v", err)
	}
	if got := visibleFiles(t, cfg.Paths.OutputDir); !slices.Equal(got, []string{"MyShow_S01E01.mp4", "MyShow_S01E03.mp4"}) {
		t.Fatalf("output dir = %v", got)
	}
}

func TestRunFailFastCancelsRemaining(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 9, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(600, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{FailOn: []string{"E01"}}),
	)

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow", FailFast: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Cancelled != 2 || report.Status != jobs.StatusFailed {
		t.Fatalf("unexpected summary %q failed=%d cancelled=%d", report.Status, report.Failed, report.Cancelled)
	}
	for _, seg := range report.Segments[1:] {
		if seg.Status != services.StatusCancelled {
			t.Fatalf("segment %d status %q, want cancelled", seg.Index, seg.Status)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 5, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(400, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}),
	)
	coord := newCoordinator(t, cfg)

	first, err := coord.Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := coord.Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !slices.Equal(segmentNames(first), segmentNames(second)) || !slices.Equal(segmentSizes(first), segmentSizes(second)) {
		t.Fatalf("plans differ: %v vs %v", segmentNames(first), segmentNames(second))
	}
	if first.JobID == second.JobID {
		t.Fatal("each run should get its own job id")
	}
	if got := visibleFiles(t, cfg.Paths.OutputDir); !slices.Equal(got, segmentNames(first)) {
		t.Fatalf("outputs should be overwritten, not duplicated: %v", got)
	}
}

func TestRunNoMediaFilesAbortsBeforeMerge(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	testsupport.WriteFile(t, filepath.Join(src, "notes.txt"), 4)
	testsupport.WriteFile(t, filepath.Join(src, ".hidden.mp4"), 4)
	cfg := testsupport.NewConfig(t, testsupport.WithFakeMediaTools(nil, testsupport.FFmpegBehavior{}))

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "X"})
	if !errors.Is(err, services.ErrNoMediaFiles) {
		t.Fatalf("expected ErrNoMediaFiles, got %v", err)
	}
	if report == nil || report.Status != jobs.StatusFailed || len(report.Segments) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if lines := ffmpegLog(t, cfg); len(lines) != 0 {
		t.Fatalf("ffmpeg must not run, log: %v", lines)
	}
}

func TestRunProbeFailureAbortsBeforeMerge(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 3, 10, 60)
	durations["EP02.mp4"] = -1
	cfg := testsupport.NewConfig(t, testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}))

	_, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src, Title: "X"})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "EP02.mp4") {
		t.Fatalf("expected ErrExternalTool naming EP02.mp4, got %v", err)
	}
	if lines := ffmpegLog(t, cfg); len(lines) != 0 {
		t.Fatalf("ffmpeg must not run, log: %v", lines)
	}
}

func TestRunAmbiguousMetadataAbortsWithCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := workDir(t, cfg, "《长相思》")
	durations := seedEpisodes(t, src, 2, 10, 60)
	cfg = withTools(t, cfg, durations, testsupport.FFmpegBehavior{})
	searcher := &countingSearcher{candidates: []metadata.Candidate{
		{ID: 1, Name: "长相思", Year: 2023},
		{ID: 2, Name: "长相思", Year: 2011},
	}}

	report, err := newCoordinator(t, cfg, jobs.WithSearcher(searcher)).Run(context.Background(), jobs.Request{WorkDir: src})
	amb, ok := metadata.IsAmbiguous(err)
	if !ok || len(amb.Candidates) != 2 {
		t.Fatalf("expected ambiguity with two candidates, got %v", err)
	}
	if len(report.Candidates) != 2 {
		t.Fatalf("report should list candidates, got %+v", report.Candidates)
	}
	if lines := ffmpegLog(t, cfg); len(lines) != 0 {
		t.Fatalf("ffmpeg must not run, log: %v", lines)
	}
}

func TestRunUnresolvedMetadataWithoutFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metadata.AllowRawDirectoryNameFallback = false
	src := workDir(t, cfg, "【1080p】")
	durations := seedEpisodes(t, src, 1, 10, 60)
	cfg = withTools(t, cfg, durations, testsupport.FFmpegBehavior{})

	_, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src})
	if !errors.Is(err, services.ErrMetadataUnresolved) {
		t.Fatalf("expected ErrMetadataUnresolved, got %v", err)
	}
}

func TestRunRawDirectoryFallbackIsReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := workDir(t, cfg, "【1080p】")
	durations := seedEpisodes(t, src, 1, 10, 60)
	cfg = withTools(t, cfg, durations, testsupport.FFmpegBehavior{})

	report, err := newCoordinator(t, cfg).Run(context.Background(), jobs.Request{WorkDir: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.FallbackUsed || report.MetadataSource != metadata.SourceRawDirectory {
		t.Fatalf("fallback must be explicit in the report: %+v", report)
	}
}

func TestRunDryRunPlansWithoutMerging(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 10, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(600, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}),
		testsupport.WithHistory(),
	)
	recorder := testsupport.MustOpenHistory(t, cfg)

	report, err := newCoordinator(t, cfg, jobs.WithRecorder(recorder)).Run(context.Background(),
		jobs.Request{WorkDir: src, Title: "MyShow", DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != jobs.StatusPlanned || len(report.Segments) != 4 || len(report.Files) != 10 {
		t.Fatalf("unexpected dry-run report %+v", report)
	}
	for _, seg := range report.Segments {
		if seg.Status != jobs.StatusPlanned {
			t.Fatalf("segment %d status %q", seg.Index, seg.Status)
		}
	}
	if lines := ffmpegLog(t, cfg); len(lines) != 0 {
		t.Fatalf("dry run must not invoke ffmpeg: %v", lines)
	}
	recent, err := recorder.Recent(context.Background(), 10)
	if err != nil || len(recent) != 0 {
		t.Fatalf("dry runs are not recorded, got %v, %v", recent, err)
	}
}

func TestRunRecordsHistoryAndPlaylist(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 4, 10, 180)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(400, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}),
		testsupport.WithHistory(),
	)
	cfg.Job.WritePlaylist = true
	store := testsupport.MustOpenHistory(t, cfg)

	report, err := newCoordinator(t, cfg, jobs.WithRecorder(store), jobs.WithIDGenerator(func() string { return "job-fixed" })).
		Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PlaylistPath != filepath.Join(cfg.Paths.OutputDir, "MyShow_S01.m3u8") {
		t.Fatalf("playlist path = %q", report.PlaylistPath)
	}
	if _, err := os.Stat(report.PlaylistPath); err != nil {
		t.Fatalf("playlist missing: %v", err)
	}

	rec, err := store.Get(context.Background(), "job-fixed")
	if err != nil || rec == nil {
		t.Fatalf("history Get = %v, %v", rec, err)
	}
	if rec.Status != jobs.StatusSuccess || rec.SegmentCount != 2 || len(rec.Segments) != 2 || rec.Title != "MyShow" {
		t.Fatalf("unexpected history record %+v", rec)
	}
}

func TestRunRejectsBadDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	coord := newCoordinator(t, cfg)

	if _, err := coord.Run(context.Background(), jobs.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty work dir, got %v", err)
	}
	missing := filepath.Join(testsupport.BaseDir(cfg), "missing")
	if _, err := coord.Run(context.Background(), jobs.Request{WorkDir: missing}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing dir, got %v", err)
	}
	if _, err := coord.Run(context.Background(), jobs.Request{WorkDir: cfg.Paths.LogDir, OutputDir: cfg.Paths.LogDir}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for identical dirs, got %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 2, 10, 60)
	cfg := testsupport.NewConfig(t, testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newCoordinator(t, cfg).Run(ctx, jobs.Request{WorkDir: src, Title: "X"})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRunNotifiesOnFinishAndAbort(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	durations := seedEpisodes(t, src, 3, 10, 120)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLimits(250, 0),
		testsupport.WithFakeMediaTools(durations, testsupport.FFmpegBehavior{FailOn: []string{"MyShow_S01E02"}}),
	)
	notifier := &recordingNotifier{}
	coord := newCoordinator(t, cfg, jobs.WithNotifier(notifier))

	if _, err := coord.Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.finished) != 1 {
		t.Fatalf("expected one finish notification, got %+v", notifier.finished)
	}
	got := notifier.finished[0]
	if got.Status != jobs.StatusPartial || got.Succeeded != 1 || got.Failed != 1 || got.Total != 2 || got.Title != "MyShow" {
		t.Fatalf("unexpected summary %+v", got)
	}

	empty := filepath.Join(base, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := coord.Run(context.Background(), jobs.Request{WorkDir: empty, Title: "Other"}); err == nil {
		t.Fatal("expected abort for empty directory")
	}
	if !slices.Equal(notifier.failed, []string{"Other"}) {
		t.Fatalf("unexpected failure notifications %v", notifier.failed)
	}

	if _, err := coord.Run(context.Background(), jobs.Request{WorkDir: src, Title: "MyShow", DryRun: true}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(notifier.finished) != 1 {
		t.Fatal("dry runs must not notify")
	}
}
