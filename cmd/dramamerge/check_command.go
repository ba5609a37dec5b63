package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dramamerge/internal/deps"
	"dramamerge/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify tools, directories, and metadata access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			runCtx, stop := signalContext(cmd)
			defer stop()

			configLine := ctx.configPath
			if !ctx.configSeen {
				configLine += " (not found, defaults in use)"
			}
			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configLine, colorize))
			fmt.Fprintln(out)

			failed := 0
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(runCtx, cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			missing := writeDependencyLines(out, preflight.CheckSystemDeps(runCtx, cfg), colorize)
			failed += missing

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

// writeDependencyLines renders one line per tool and returns how many
// required tools are unavailable.
func writeDependencyLines(out io.Writer, statuses []deps.Status, colorize bool) int {
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = dep.Detail
			}
			fmt.Fprintln(out, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	missing := deps.Missing(statuses)
	if len(missing) > 0 {
		hints := make([]string, len(missing))
		for i, dep := range missing {
			hints[i] = dep.Hint()
		}
		fmt.Fprintln(out, renderStatusLine("Missing dependencies", statusWarn, strings.Join(hints, "; "), colorize))
	}
	return len(missing)
}
