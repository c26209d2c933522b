package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenyongqd/anniversary/internal/preflight"
	"github.com/wenyongqd/anniversary/internal/timeline"
	"github.com/wenyongqd/anniversary/internal/timelinestore"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, gateway and model access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Workspace", colorize) {
				fmt.Fprintln(out, line)
			}
			store, err := timelinestore.Open(cfg)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Timeline database", statusError, err.Error(), colorize))
			} else {
				defer store.Close()
				counts, err := store.StatusCounts(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("Timeline database", statusError, err.Error(), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Timeline database", statusOK, store.Path(), colorize))
					for _, status := range []timeline.Status{timeline.StatusIdle, timeline.StatusDone, timeline.StatusError, timeline.StatusUploading, timeline.StatusPending} {
						if n := counts[status]; n > 0 {
							fmt.Fprintln(out, renderStatusLine(statusLabel(status), entryStatusKind(status), pluralize(n, "entry", "entries"), colorize))
						}
					}
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%s failed", pluralize(len(failed), "check", "checks"))
			}
			return nil
		},
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", title)
	rule := make([]byte, len(line))
	for i := range rule {
		rule[i] = '-'
	}
	if colorize {
		return []string{ansiBlue + line + ansiReset, ansiBlue + string(rule) + ansiReset}
	}
	return []string{line, string(rule)}
}
