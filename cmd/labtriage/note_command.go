package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/notes"
	"labtriage/internal/queue"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "note <id>",
		Short: "Print or export the clinical note for a work item",
		Long: "Print or export the clinical note for a work item. When no note file exists\n" +
			"one is assembled from the stored analysis.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := lookupItem(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				export, err := notes.ExportNote(item, cfg.Paths.NotesDir, time.Now())
				if err != nil {
					return err
				}

				target := strings.TrimSpace(output)
				if target == "" {
					fmt.Fprint(cmd.OutOrStdout(), export.Content)
					if !strings.HasSuffix(export.Content, "\n") {
						fmt.Fprintln(cmd.OutOrStdout())
					}
					return nil
				}

				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				if info, statErr := os.Stat(expanded); statErr == nil && info.IsDir() {
					expanded = filepath.Join(expanded, export.Filename)
				}
				if err := os.WriteFile(expanded, []byte(export.Content), 0o644); err != nil {
					return fmt.Errorf("write note: %w", err)
				}
				suffix := ""
				if export.Synthesized {
					suffix = " (assembled from stored analysis)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s%s\n", expanded, suffix)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the note to this file or directory instead of stdout")
	return cmd
}
