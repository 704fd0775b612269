package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labtriage/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		lines  int
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display labtriage logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			out := cmd.OutOrStdout()
			runCtx := cmd.Context()

			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			if lines <= 0 {
				opts.Offset = 0
			}
			printed := false
			for {
				result, err := logs.Tail(runCtx, path, opts)
				if err != nil {
					if follow && errors.Is(err, runCtx.Err()) {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Second, Filter: filter}
				select {
				case <-runCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filter.ItemID, "item", "", "Only show lines for this work item")
	cmd.Flags().StringVar(&filter.PassID, "pass", "", "Only show lines for this pass id")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
