package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"evalboard/internal/dataset"
	"evalboard/internal/logging"
	"evalboard/internal/services/translate"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "convert <spreadsheet>",
		Short: "Convert a spreadsheet to the JSONL dataset format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := args[0]
			if !dataset.SupportedExtension(inputPath) {
				return fmt.Errorf("unsupported file type %q (expected .xlsx, .xlsm, or .csv)", filepath.Ext(inputPath))
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			translator, err := translate.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("translate client: %w", err)
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
				target = base + ".jsonl"
			}

			out, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}

			converter := dataset.NewConverter(translator, logging.NewNop())
			result, err := converter.ConvertFile(cmd.Context(), inputPath, out)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(target)
				return fmt.Errorf("convert %s: %w", inputPath, err)
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Output string `json:"output"`
					dataset.Result
				}{Output: target, Result: result})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d rows read, %d emitted, %d skipped, %d translation fallbacks)\n",
				target, result.RowsRead, result.RowsEmitted, result.RowsSkipped, result.TranslationFallback)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination for the JSONL file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the conversion summary as JSON")
	return cmd
}
