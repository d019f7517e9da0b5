package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"evalboard/internal/api"
)

func newAnnotationsCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var cursor string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "annotations",
		Short: "List annotations produced by a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("run_id", runID)
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			var page api.AnnotationListResponse
			if err := ctx.getJSON("/api/annotations?"+query.Encode(), &page); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, page)
			}

			rows := make([][]string, 0, len(page.Data))
			for _, annotation := range page.Data {
				rows = append(rows, []string{
					annotation.ID,
					annotation.ConversationID,
					formatAttributes(annotation.Attributes),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"ANNOTATION", "CONVERSATION", "ATTRIBUTES"}, rows))
			if page.HasMore {
				fmt.Fprintf(out, "More annotations available; continue with --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to list annotations for")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (defaults to the configured page limit)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit annotations as JSON")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func formatAttributes(attributes map[string]any) string {
	if len(attributes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, attributes[key]))
	}
	return strings.Join(parts, " ")
}
