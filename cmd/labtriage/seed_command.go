package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/ingest"
	"labtriage/internal/queue"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load pending results into the queue",
		Long: "Load pending results into the queue. Without --file the bundled demo batch is used.\n" +
			"Results that were already processed, failed, or are claimed by a running pass are left unchanged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reports []ingest.Report
				err     error
				source  = "demo batch"
			)
			if path := strings.TrimSpace(file); path != "" {
				expanded, expandErr := config.ExpandPath(path)
				if expandErr != nil {
					return fmt.Errorf("resolve report file: %w", expandErr)
				}
				reports, err = ingest.LoadFile(expanded)
				source = expanded
			} else {
				reports, err = ingest.Demo()
			}
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No reports found in %s\n", source)
				return nil
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return err
				}
				result, err := ingest.Seed(cmd.Context(), store, reports, logger)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Seeded %d reports from %s\n", result.Written, source)
				if len(result.Skipped) > 0 {
					fmt.Fprintf(out, "Left unchanged: %s\n", strings.Join(result.Skipped, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of reports to load")
	return cmd
}
