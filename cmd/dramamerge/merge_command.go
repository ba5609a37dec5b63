package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dramamerge/internal/jobs"
	"dramamerge/internal/metadata"
)

// jobFlags holds the flags shared by merge and plan.
type jobFlags struct {
	title       string
	season      int
	episode     int
	outputDir   string
	maxDuration time.Duration
	maxSize     string
	extension   string
	failFast    bool
	jsonOutput  bool
}

func (f *jobFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.title, "title", "t", "", "Series title (skips metadata lookup)")
	flags.IntVarP(&f.season, "season", "s", 1, "Season number")
	flags.IntVarP(&f.episode, "episode", "e", 1, "Episode number of the first output")
	flags.StringVarP(&f.outputDir, "output", "o", "", "Output directory (defaults to paths.output_dir)")
	flags.DurationVar(&f.maxDuration, "max-duration", 0, "Maximum duration per output, e.g. 45m")
	flags.StringVar(&f.maxSize, "max-size", "", "Maximum size per output, e.g. 4GiB")
	flags.StringVar(&f.extension, "ext", "", "Output container extension (defaults to defaults.extension)")
	flags.BoolVar(&f.jsonOutput, "json", false, "Output as JSON")
}

// request builds a job request. Season and episode are only set when the
// flags were given so configuration and directory hints still apply.
func (f *jobFlags) request(cmd *cobra.Command, workDir string) (jobs.Request, error) {
	req := jobs.Request{
		WorkDir:     workDir,
		OutputDir:   strings.TrimSpace(f.outputDir),
		Title:       strings.TrimSpace(f.title),
		MaxDuration: f.maxDuration,
		Extension:   f.extension,
		FailFast:    f.failFast,
	}
	if f.maxDuration < 0 {
		return req, errors.New("--max-duration must not be negative")
	}
	size, err := parseSize(f.maxSize)
	if err != nil {
		return req, err
	}
	req.MaxSize = size
	if cmd.Flags().Changed("season") {
		if f.season < 1 {
			return req, errors.New("--season must be at least 1")
		}
		season := f.season
		req.Season = &season
	}
	if cmd.Flags().Changed("episode") {
		if f.episode < 1 {
			return req, errors.New("--episode must be at least 1")
		}
		episode := f.episode
		req.Episode = &episode
	}
	return req, nil
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "merge <directory>",
		Short: "Merge the episodes in a directory into size-capped outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			return runJob(ctx, cmd, req, flags.jsonOutput)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "Cancel remaining segments after the first failure")
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "plan <directory>",
		Short: "Show how a directory would be merged without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			req.DryRun = true
			return runJob(ctx, cmd, req, flags.jsonOutput)
		},
	}
	flags.bind(cmd)
	return cmd
}

func runJob(ctx *commandContext, cmd *cobra.Command, req jobs.Request, jsonOutput bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	opts := []jobs.Option{jobs.WithLogger(logger)}
	if !req.DryRun {
		store, err := ctx.openHistory()
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		if store != nil {
			defer store.Close()
			opts = append(opts, jobs.WithRecorder(store))
		}
	}

	coordinator, err := jobs.NewCoordinator(cfg, opts...)
	if err != nil {
		return err
	}

	runCtx, stop := signalContext(cmd)
	defer stop()

	report, runErr := coordinator.Run(runCtx, req)
	if report != nil {
		if jsonOutput {
			if err := writeJSON(cmd, report); err != nil {
				return err
			}
		} else {
			renderReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
		}
	}
	if runErr != nil {
		if _, ok := metadata.IsAmbiguous(runErr); ok && !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), "Re-run with --title using one of the candidates above.")
		}
		return runErr
	}
	switch report.Status {
	case jobs.StatusPartial:
		return &exitError{
			code: exitPartial,
			err:  fmt.Errorf("merge partially succeeded: %d of %d segments failed", report.Failed+report.Cancelled, len(report.Segments)),
		}
	case jobs.StatusFailed:
		return errors.New("merge failed: no segment succeeded")
	}
	return nil
}

func renderReport(out io.Writer, report *jobs.Report, colorize bool) {
	title := "Merge job " + report.JobID
	if report.DryRun {
		title = "Merge plan " + report.JobID
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, renderStatusLine("Directory", statusInfo, report.WorkDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Output", statusInfo, report.OutputDir, colorize))
	if report.Metadata.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Series", statusInfo, fmt.Sprintf("%s season %d from episode %d",
			report.Metadata.Title, report.Metadata.Season, report.Metadata.EpisodeStart), colorize))
	}
	if report.MetadataSource != "" {
		kind := statusInfo
		if report.FallbackUsed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Metadata", kind, string(report.MetadataSource), colorize))
	}
	if report.LookupError != "" {
		fmt.Fprintln(out, renderStatusLine("Lookup", statusWarn, report.LookupError, colorize))
	}
	if len(report.DuplicateKeys) > 0 {
		fmt.Fprintln(out, renderStatusLine("Duplicate episodes", statusWarn, strings.Join(report.DuplicateKeys, ", "), colorize))
	}
	if len(report.Candidates) > 0 && report.Status == jobs.StatusFailed {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderCandidates(report.Candidates))
		fmt.Fprintln(out)
	}

	if report.DryRun && len(report.Files) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, len(report.Files))
		for i, f := range report.Files {
			rows[i] = []string{strconv.Itoa(i + 1), f.Name, f.Key.String(), formatDuration(f.Duration), formatBytes(f.Size)}
		}
		fmt.Fprint(out, renderTable(
			[]column{{"#", alignRight}, {"File", alignLeft}, {"Episode", alignLeft}, {"Duration", alignRight}, {"Size", alignRight}},
			rows,
		))
		fmt.Fprintln(out)
	}

	if len(report.Segments) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, len(report.Segments))
		var totalDuration time.Duration
		var totalSize int64
		for i, seg := range report.Segments {
			status := seg.Status
			if seg.Oversized {
				status += " (oversized)"
			}
			size := seg.SourceSize
			if seg.OutputSize > 0 {
				size = seg.OutputSize
			}
			totalDuration += seg.Duration
			totalSize += size
			rows[i] = []string{
				strconv.Itoa(seg.Index + 1),
				seg.FileName,
				strconv.Itoa(len(seg.Sources)),
				formatDuration(seg.Duration),
				formatBytes(size),
				status,
			}
		}
		fmt.Fprint(out, renderTable(segmentColumns, rows, segmentFooter(len(rows), totalDuration, totalSize)...))
		fmt.Fprintln(out)
		for _, seg := range report.Segments {
			if seg.Error != "" {
				fmt.Fprintln(out, renderStatusLine(seg.FileName, statusError, seg.Error, colorize))
			}
		}
	}

	fmt.Fprintln(out)
	summary := report.Status
	if !report.DryRun && len(report.Segments) > 0 {
		summary = fmt.Sprintf("%s (%d succeeded, %d failed, %d cancelled)", report.Status, report.Succeeded, report.Failed, report.Cancelled)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(report.Status), summary, colorize))
	if report.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, report.Error, colorize))
	}
	if report.PlaylistPath != "" {
		fmt.Fprintln(out, renderStatusLine("Playlist", statusInfo, filepath.Base(report.PlaylistPath), colorize))
	}
}

func renderCandidates(candidates []metadata.Candidate) string {
	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		year := "-"
		if c.Year > 0 {
			year = strconv.Itoa(c.Year)
		}
		rows[i] = []string{strconv.FormatInt(c.ID, 10), c.Name, valueOrDash(c.OriginalName), year}
	}
	return renderTable(
		[]column{{"ID", alignRight}, {"Name", alignLeft}, {"Original name", alignLeft}, {"Year", alignRight}},
		rows,
	)
}
