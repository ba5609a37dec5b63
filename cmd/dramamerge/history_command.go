package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dramamerge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past merge jobs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent merge jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if records == nil {
					records = []history.JobRecord{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No merge jobs recorded")
				return nil
			}
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{
					shortID(rec.ID),
					formatTime(rec.StartedAt),
					valueOrDash(rec.Title),
					fmt.Sprintf("S%02d", rec.Season),
					fmt.Sprintf("%d/%d", rec.Succeeded, rec.SegmentCount),
					rec.Status,
				}
			}
			fmt.Fprint(out, renderTable(
				[]column{{"ID", alignLeft}, {"Started", alignLeft}, {"Title", alignLeft}, {"Season", alignLeft}, {"Merged", alignRight}, {"Status", alignLeft}},
				rows,
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one merge job and its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("job %s not found", args[0])
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Merge job "+rec.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Directory", statusInfo, rec.WorkDir, colorize))
			fmt.Fprintln(out, renderStatusLine("Output", statusInfo, rec.OutputDir, colorize))
			fmt.Fprintln(out, renderStatusLine("Series", statusInfo, fmt.Sprintf("%s season %d from episode %d",
				valueOrDash(rec.Title), rec.Season, rec.EpisodeStart), colorize))
			fmt.Fprintln(out, renderStatusLine("Metadata", statusInfo, valueOrDash(rec.MetadataSource), colorize))
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatTime(rec.StartedAt), colorize))
			fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, formatTime(rec.FinishedAt), colorize))
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(rec.Status),
				fmt.Sprintf("%s (%d succeeded, %d failed, %d cancelled)", rec.Status, rec.Succeeded, rec.Failed, rec.Cancelled), colorize))
			if rec.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, rec.ErrorMessage, colorize))
			}
			if len(rec.Segments) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			rows := make([][]string, len(rec.Segments))
			var totalDuration time.Duration
			var totalSize int64
			for i, seg := range rec.Segments {
				totalDuration += seg.Duration
				totalSize += seg.SizeBytes
				rows[i] = []string{
					strconv.Itoa(seg.Index + 1),
					seg.OutputPath,
					strconv.Itoa(seg.FileCount),
					formatDuration(seg.Duration),
					formatBytes(seg.SizeBytes),
					seg.Status,
				}
			}
			fmt.Fprint(out, renderTable(segmentColumns, rows, segmentFooter(len(rows), totalDuration, totalSize)...))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete merge jobs older than a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return errors.New("--days must be at least 1")
			}
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s) older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Remove jobs that started more than this many days ago")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
