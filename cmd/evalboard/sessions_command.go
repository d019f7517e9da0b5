package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sessions [id]",
		Short: "List stored sessions or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				var sess api.SessionView
				if err := ctx.getJSON("/api/sessions/"+args[0], &sess); err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sess)
				}
				printSession(cmd, sess)
				return nil
			}

			var list api.SessionListResponse
			if err := ctx.getJSON("/api/sessions", &list); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, list)
			}

			rows := make([][]string, 0, len(list.Sessions))
			for _, sess := range list.Sessions {
				rows = append(rows, []string{
					sess.ID, sess.Name, sess.State, sess.RunID, sess.RunStatus, sess.CreatedAt,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"SESSION", "NAME", "STATE", "RUN", "STATUS", "CREATED"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit sessions as JSON")
	return cmd
}

func printSession(cmd *cobra.Command, sess api.SessionView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s\n", sess.ID)
	if sess.Name != "" {
		fmt.Fprintf(out, "Name:     %s\n", sess.Name)
	}
	fmt.Fprintf(out, "State:    %s\n", sess.State)
	if sess.FileID != "" {
		fmt.Fprintf(out, "File:     %s\n", sess.FileID)
	}
	if sess.EvalID != "" {
		fmt.Fprintf(out, "Eval:     %s\n", sess.EvalID)
	}
	if sess.RunID != "" {
		fmt.Fprintf(out, "Run:      %s (%s)\n", sess.RunID, sess.RunStatus)
	}
	if sess.ReportURL != "" {
		fmt.Fprintf(out, "Report:   %s\n", sess.ReportURL)
	}
	if sess.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", sess.ErrorMessage)
	}
}
