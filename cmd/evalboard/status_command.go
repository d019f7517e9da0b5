package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.getJSON("/api/status", &status); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:      %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:          %d\n", status.PID)
			fmt.Fprintf(out, "Sessions DB:  %s\n", status.SessionDBPath)
			fmt.Fprintf(out, "Lock file:    %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Evaluation:   %s\n", configuredLabel(status.EvaluationConfigured))
			fmt.Fprintf(out, "Translation:  %s\n", configuredLabel(status.TranslateConfigured))
			if status.ActiveSession != nil {
				fmt.Fprintf(out, "Active:       %s (run %s, %s)\n",
					status.ActiveSession.ID, status.ActiveSession.RunID, status.ActiveSession.RunStatus)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

func configuredLabel(configured bool) string {
	if configured {
		return "configured"
	}
	return "not configured"
}
