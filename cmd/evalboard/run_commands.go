package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
	"evalboard/internal/services/evaluation"
	"evalboard/internal/watcher"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Manage evaluation runs",
	}

	runCmd.AddCommand(newRunStartCommand(ctx))
	runCmd.AddCommand(newRunShowCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))
	runCmd.AddCommand(newRunWatchCommand(ctx))
	return runCmd
}

// newRunStartCommand uploads a dataset through the daemon, which converts it
// if needed, creates the eval and run upstream, and opens a session.
func newRunStartCommand(ctx *commandContext) *cobra.Command {
	var name string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "start <dataset>",
		Short: "Start an evaluation run from a dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer file.Close()

			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			part, err := writer.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return fmt.Errorf("build upload: %w", err)
			}
			if _, err := io.Copy(part, file); err != nil {
				return fmt.Errorf("read dataset: %w", err)
			}
			if name != "" {
				if err := writer.WriteField("name", name); err != nil {
					return fmt.Errorf("build upload: %w", err)
				}
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("build upload: %w", err)
			}

			resp, err := http.Post(ctx.apiBase()+"/api/runs", writer.FormDataContentType(), &buf)
			if err != nil {
				return wrapDialError(err)
			}
			defer resp.Body.Close()

			var started api.RunStartResponse
			if err := decodeAPIResponse(resp, &started); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, started)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s started (eval %s, session %s)\n", started.Run.ID, started.Session.EvalID, started.Session.ID)
			fmt.Fprintf(out, "Watch it with `evalboard run watch %s --eval %s`\n", started.Run.ID, started.Session.EvalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name for the eval and run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run details as JSON")
	return cmd
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	var evalID string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the current state of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/runs/" + args[0]
			if evalID != "" {
				path += "?eval=" + evalID
			}
			var run evaluation.Run
			if err := ctx.getJSON(path, &run); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, run)
			}
			printRun(cmd, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&evalID, "eval", "", "Eval id owning the run (defaults to session linkage)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run as JSON")
	return cmd
}

// newRunListCommand talks to the evaluation service directly since run listing
// is scoped to an eval, not a session.
func newRunListCommand(ctx *commandContext) *cobra.Command {
	var evalID string
	var cursor string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs for an eval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := evaluation.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("evaluation client: %w", err)
			}
			runs, page, err := client.ListRuns(cmd.Context(), evalID, evaluation.PageRequest{Limit: limit, Cursor: cursor})
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Runs       []evaluation.Run `json:"runs"`
					NextCursor string           `json:"next_cursor,omitempty"`
					HasMore    bool             `json:"has_more"`
				}{Runs: runs, NextCursor: page.NextCursor, HasMore: page.HasMore})
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{run.ID, string(run.Status), run.ReportURL, run.CreatedAt})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"RUN", "STATUS", "REPORT", "CREATED"}, rows))
			if page.HasMore {
				fmt.Fprintf(out, "More runs available; continue with --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&evalID, "eval", "", "Eval id to list runs for")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (defaults to the configured page limit)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit runs as JSON")
	_ = cmd.MarkFlagRequired("eval")
	return cmd
}

// newRunWatchCommand polls the run at the configured interval until it reaches
// a terminal state, printing each status change.
func newRunWatchCommand(ctx *commandContext) *cobra.Command {
	var evalID string

	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Poll a run until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := evaluation.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("evaluation client: %w", err)
			}

			runID := args[0]
			out := cmd.OutOrStdout()
			interval := time.Duration(cfg.Workflow.RunPollInterval) * time.Second
			w := watcher.New(nil, &statusPrinter{client: client, out: out}, client, interval, interval, nil)
			run, err := w.WatchRun(cmd.Context(), "", evalID, runID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s finished: %s\n", run.ID, run.Status)
			if run.ReportURL != "" {
				fmt.Fprintf(out, "Report: %s\n", run.ReportURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&evalID, "eval", "", "Eval id owning the run")
	_ = cmd.MarkFlagRequired("eval")
	return cmd
}

// statusPrinter wraps the evaluation client to echo each status change while
// the watcher polls.
type statusPrinter struct {
	client *evaluation.Client
	out    io.Writer
	last   string
}

func (p *statusPrinter) GetRun(ctx context.Context, evalID, runID string) (evaluation.Run, error) {
	run, err := p.client.GetRun(ctx, evalID, runID)
	if err == nil && string(run.Status) != p.last {
		fmt.Fprintf(p.out, "status: %s\n", run.Status)
		p.last = string(run.Status)
	}
	return run, err
}

func printRun(cmd *cobra.Command, run evaluation.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Eval:     %s\n", run.EvalID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	if run.ReportURL != "" {
		fmt.Fprintf(out, "Report:   %s\n", run.ReportURL)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}
	if len(run.ResultCounts) > 0 {
		parts := make([]string, 0, len(run.ResultCounts))
		for key, count := range run.ResultCounts {
			parts = append(parts, fmt.Sprintf("%s=%d", key, count))
		}
		fmt.Fprintf(out, "Results:  %s\n", strings.Join(parts, " "))
	}
}
