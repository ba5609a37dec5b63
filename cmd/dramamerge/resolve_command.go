package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dramamerge/internal/metadata"
	"dramamerge/internal/metadata/tmdb"
)

type resolveResult struct {
	Outcome     metadata.Outcome      `json:"outcome"`
	LookupError string                `json:"lookup_error,omitempty"`
	Details     *metadata.ShowDetails `json:"details,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var details bool

	cmd := &cobra.Command{
		Use:   "resolve <directory>",
		Short: "Resolve the series title and numbering for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			req, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			if req.Title == "" {
				req.Title = strings.TrimSpace(cfg.Defaults.Title)
			}
			dir := filepath.Clean(strings.TrimSpace(args[0]))
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}

			searcher, err := metadata.NewSearcherFromConfig(cfg)
			if err != nil {
				return err
			}
			resolver := metadata.NewResolver(
				metadata.WithSearcher(searcher),
				metadata.WithRawDirectoryFallback(cfg.Metadata.AllowRawDirectoryNameFallback),
				metadata.WithLogger(logger),
			)

			runCtx, stop := signalContext(cmd)
			defer stop()

			outcome, resolveErr := resolver.Resolve(runCtx, metadata.Request{
				DirName: filepath.Base(dir),
				Title:   req.Title,
				Season:  req.Season,
				Episode: req.Episode,
			})
			result := resolveResult{Outcome: outcome}
			if outcome.LookupErr != nil {
				result.LookupError = outcome.LookupErr.Error()
			}

			if resolveErr == nil && details {
				if outcome.Match == nil || outcome.Match.ID == 0 {
					return errors.New("--details needs a confident search match; none was found")
				}
				if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
					return errors.New("--details requires tmdb.api_key")
				}
				client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
				if err != nil {
					return err
				}
				show, err := metadata.LookupDetails(runCtx, client, outcome.Match.ID, outcome.Metadata.Season)
				if err != nil {
					return fmt.Errorf("lookup details: %w", err)
				}
				result.Details = show
			}

			if flags.jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				renderResolve(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			}
			return resolveErr
		},
	}

	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Series title (skips metadata lookup)")
	cmd.Flags().IntVarP(&flags.season, "season", "s", 1, "Season number")
	cmd.Flags().IntVarP(&flags.episode, "episode", "e", 1, "Episode number of the first output")
	cmd.Flags().BoolVar(&details, "details", false, "Show seasons, episodes, and cast of the matched show")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderResolve(out io.Writer, result resolveResult, colorize bool) {
	outcome := result.Outcome
	for _, line := range renderSectionHeader("Metadata", colorize) {
		fmt.Fprintln(out, line)
	}
	if outcome.Metadata.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusOK, outcome.Metadata.Title, colorize))
		fmt.Fprintln(out, renderStatusLine("Season", statusInfo, strconv.Itoa(outcome.Metadata.Season), colorize))
		fmt.Fprintln(out, renderStatusLine("First episode", statusInfo, strconv.Itoa(outcome.Metadata.EpisodeStart), colorize))
	}
	if outcome.Source != "" {
		kind := statusInfo
		if outcome.FallbackUsed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Source", kind, string(outcome.Source), colorize))
	}
	if outcome.Query != "" {
		fmt.Fprintln(out, renderStatusLine("Query", statusInfo, outcome.Query, colorize))
	}
	if outcome.Match != nil {
		fmt.Fprintln(out, renderStatusLine("Match", statusOK, outcome.Match.String(), colorize))
	}
	if result.LookupError != "" {
		fmt.Fprintln(out, renderStatusLine("Lookup", statusWarn, result.LookupError, colorize))
	}
	if outcome.Match == nil && len(outcome.Candidates) > 1 {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderCandidates(outcome.Candidates))
		fmt.Fprintln(out)
	}

	show := result.Details
	if show == nil {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(show.Name, colorize) {
		fmt.Fprintln(out, line)
	}
	rows := make([][]string, len(show.Seasons))
	for i, s := range show.Seasons {
		rows[i] = []string{strconv.Itoa(s.Number), valueOrDash(s.Name), strconv.Itoa(s.EpisodeCount), valueOrDash(s.AirDate)}
	}
	fmt.Fprint(out, renderTable(
		[]column{{"Season", alignRight}, {"Name", alignLeft}, {"Episodes", alignRight}, {"Air date", alignLeft}},
		rows,
	))
	fmt.Fprintln(out)
	for _, ep := range show.Episodes {
		fmt.Fprintln(out, statusIndent+ep)
	}
	if len(show.Cast) > 0 {
		fmt.Fprintln(out, renderStatusLine("Cast", statusInfo, strings.Join(show.Cast, ", "), colorize))
	}
}
