package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dramamerge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Metadata search is disabled so tests never reach the network unless they
// opt in with WithTMDB.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Metadata.SearchEnabled = false
	cfgVal.TMDB.WebFallback = false
	cfgVal.Job.RecordHistory = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDB enables metadata search against baseURL with the given key.
func WithTMDB(key, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.SearchEnabled = true
		b.cfg.TMDB.APIKey = key
		b.cfg.TMDB.BaseURL = baseURL
	}
}

// WithHistory enables job history recording in the temp state directory.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Job.RecordHistory = true
	}
}

// WithLimits sets the default duration (seconds) and size (bytes) caps.
func WithLimits(maxDurationSeconds int, maxSizeBytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Defaults.MaxDurationSeconds = maxDurationSeconds
		b.cfg.Defaults.MaxSizeBytes = maxSizeBytes
	}
}

// WithFakeMediaTools installs fake ffprobe and ffmpeg scripts and points the
// config at them. See FakeFFprobe and FakeFFmpeg for their behaviour.
func WithFakeMediaTools(durations map[string]float64, ffmpeg FFmpegBehavior) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Media.FFprobeBinary = FakeFFprobe(b.t, binDir, durations)
		b.cfg.Media.FFmpegBinary = FakeFFmpeg(b.t, binDir, ffmpeg)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "stubs")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
