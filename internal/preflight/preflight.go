package preflight

import (
	"context"
	"strings"

	"dramamerge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Output directory (always checked)
	results = append(results, CheckWritableTarget("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckWritableTarget("Log directory", cfg.Paths.LogDir))

	if cfg.Job.RecordHistory {
		results = append(results, CheckWritableTarget("History database", parentDir(cfg.Paths.HistoryDB)))
	}

	if cfg.Metadata.SearchEnabled {
		switch {
		case cfg.TMDB.APIKey != "":
			results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
		case cfg.TMDB.WebFallback:
			results = append(results, CheckReachable(ctx, "TMDB website", cfg.TMDB.WebBaseURL))
		default:
			results = append(results, Result{Name: "TMDB", Detail: "search enabled but no api key and web fallback disabled"})
		}
	}

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		results = append(results, CheckReachable(ctx, "ntfy", topic))
	}

	return results
}
