package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
)

// newExportCommand downloads a run's results through the daemon proxy.
func newExportCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a run's results",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(api.ExportRequest{RunID: runID, Format: format})
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}
			resp, err := http.Post(ctx.apiBase()+"/api/export", "application/json", bytes.NewReader(payload))
			if err != nil {
				return wrapDialError(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= http.StatusMultipleChoices {
				return decodeAPIResponse(resp, nil)
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = "export"
				if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
					if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
						target = params["filename"]
					}
				}
			}

			out, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			written, err := io.Copy(out, resp.Body)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(target)
				return fmt.Errorf("write export: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to export results for")
	cmd.Flags().StringVar(&format, "format", "", "Export format requested upstream")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the upstream filename)")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
