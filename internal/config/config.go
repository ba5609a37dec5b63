package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Defaults seeds merge requests that omit a value. Zero limits mean "unset".
type Defaults struct {
	Title              string `toml:"title"`
	Season             int    `toml:"season"`
	Episode            int    `toml:"episode"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	MaxSizeBytes       int64  `toml:"max_size_bytes"`
	Extension          string `toml:"extension"`
}

// Media contains settings for discovery, probing, and merging.
type Media struct {
	Extensions       []string `toml:"extensions"`
	FFmpegBinary     string   `toml:"ffmpeg_binary"`
	FFprobeBinary    string   `toml:"ffprobe_binary"`
	ProbeTimeout     int      `toml:"probe_timeout"`
	MergeTimeout     int      `toml:"merge_timeout"`
	ProbeConcurrency int      `toml:"probe_concurrency"`
	MergeConcurrency int      `toml:"merge_concurrency"`
	CheckConsistency bool     `toml:"check_consistency"`
}

// Metadata controls title resolution policy.
type Metadata struct {
	// AllowRawDirectoryNameFallback lets a job continue with the raw directory
	// name as title when no candidate title can be derived.
	AllowRawDirectoryNameFallback bool `toml:"allow_raw_directory_name_fallback"`
	SearchEnabled                 bool `toml:"search_enabled"`
}

// TMDB contains configuration for The Movie Database lookups.
type TMDB struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	Language    string `toml:"language"`
	WebFallback bool   `toml:"web_fallback"`
	WebBaseURL  string `toml:"web_base_url"`
}

// Job contains per-job execution policy.
type Job struct {
	FailFast      bool `toml:"fail_fast"`
	WritePlaylist bool `toml:"write_playlist"`
	RecordHistory bool `toml:"record_history"`
}

// Notifications configures ntfy job notifications. An empty topic disables
// them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dramamerge.
//
// Configuration sections by subsystem:
//   - Paths: output, log, and history locations
//   - Defaults: title/season/episode/limit defaults for merge requests
//   - Media: container extensions, tool binaries, timeouts, concurrency
//   - Metadata: title resolution policy
//   - TMDB: metadata search service
//   - Job: fail-fast, playlist, and history switches
//   - Notifications: ntfy endpoint for job completion messages
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Defaults      Defaults      `toml:"defaults"`
	Media         Media         `toml:"media"`
	Metadata      Metadata      `toml:"metadata"`
	TMDB          TMDB          `toml:"tmdb"`
	Job           Job           `toml:"job"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dramamerge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the history database's
// parent. The output directory is created per job since requests may
// override it.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.HistoryDB) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for concatenation.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Media.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Media.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// ProbeTimeout returns the per-file probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Media.ProbeTimeout) * time.Second
}

// MergeTimeout returns the per-segment merge timeout; zero disables it.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.Media.MergeTimeout) * time.Second
}

// MaxDuration returns the default output duration cap; zero means unset.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Defaults.MaxDurationSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
