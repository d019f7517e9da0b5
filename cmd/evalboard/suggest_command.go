package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
	"evalboard/internal/services/evaluation"
)

// newSuggestCommand triggers a label-suggestion job through the daemon and
// polls it until the job finishes.
func newSuggestCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var noWait bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate taxonomy label suggestions for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var job evaluation.SuggestionJob
			if err := ctx.postJSON("/api/suggestions", api.SuggestionRequest{RunID: runID}, &job); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if noWait {
				if jsonOut {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(out, "Suggestion job %s started (%s)\n", job.ID, job.Status)
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			interval := time.Duration(cfg.Workflow.SuggestionPollInterval) * time.Second
			if interval <= 0 {
				interval = 3 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for !job.Status.Terminal() {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
				}
				if err := ctx.getJSON("/api/suggestions/"+job.ID, &job); err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, job)
			}
			if job.Status == evaluation.SuggestionStatusFailed {
				return fmt.Errorf("suggestion job %s failed: %s", job.ID, job.Error)
			}
			fmt.Fprintf(out, "Suggested labels: %s\n", strings.Join(job.Labels, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to suggest labels for")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Start the job without waiting for it to finish")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
