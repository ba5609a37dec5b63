package config

const (
	defaultConfigPath       = "~/.config/dramamerge/config.toml"
	defaultOutputDir        = "~/dramamerge/output"
	defaultLogDir           = "~/.local/share/dramamerge/logs"
	defaultHistoryDB        = "~/.local/share/dramamerge/history.db"
	defaultSeason           = 1
	defaultEpisode          = 1
	defaultExtension        = ".mp4"
	defaultProbeTimeout     = 10
	defaultProbeConcurrency = 4
	defaultMergeConcurrency = 1
	defaultTMDBLanguage     = "zh-CN"
	defaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	defaultTMDBWebBaseURL   = "https://www.themoviedb.org"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultNtfyTimeout      = 10
)

var defaultExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".wmv", ".ts"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Defaults: Defaults{
			Season:    defaultSeason,
			Episode:   defaultEpisode,
			Extension: defaultExtension,
		},
		Media: Media{
			Extensions:       append([]string(nil), defaultExtensions...),
			FFmpegBinary:     "ffmpeg",
			FFprobeBinary:    "ffprobe",
			ProbeTimeout:     defaultProbeTimeout,
			ProbeConcurrency: defaultProbeConcurrency,
			MergeConcurrency: defaultMergeConcurrency,
			CheckConsistency: true,
		},
		Metadata: Metadata{
			AllowRawDirectoryNameFallback: true,
			SearchEnabled:                 true,
		},
		TMDB: TMDB{
			BaseURL:     defaultTMDBBaseURL,
			Language:    defaultTMDBLanguage,
			WebFallback: true,
			WebBaseURL:  defaultTMDBWebBaseURL,
		},
		Job: Job{
			RecordHistory: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
