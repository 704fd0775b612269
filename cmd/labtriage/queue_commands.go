package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueReclaimCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{queue.StatusPending.Label(), strconv.Itoa(health.Pending)},
					{queue.StatusInProgress.Label(), strconv.Itoa(health.InProgress)},
					{queue.StatusProcessed.Label(), strconv.Itoa(health.Processed)},
					{queue.StatusFailed.Label(), strconv.Itoa(health.Failed)},
					{"Claimed", strconv.Itoa(health.Claimed)},
					{"Total", strconv.Itoa(health.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					out := make([]itemJSON, 0, len(items))
					for _, item := range items {
						out = append(out, toItemJSON(item))
					}
					return writeJSON(cmd, out)
				}
				w := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(w, "Queue is empty")
					return nil
				}
				colorize := shouldColorize(w)
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.PatientName,
						item.TestName,
						item.Status.Label(),
						colorRisk(item.RiskLevel, colorize),
						valueOrDash(item.FinalStatus),
					})
				}
				fmt.Fprintln(w, renderTable(
					[]string{"ID", "Patient", "Test", "Status", "Risk", "Result"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, in_progress, processed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed items to pending",
		Long:  "Return failed items to pending. With no ids every failed item is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), args...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if count == 0 {
					fmt.Fprintln(out, "No failed items to retry")
					return nil
				}
				fmt.Fprintf(out, "Retried %d failed items\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all, failed, processed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			switch {
			case all:
			case failed || processed:
				if failed {
					statuses = append(statuses, queue.StatusFailed)
				}
				if processed {
					statuses = append(statuses, queue.StatusProcessed)
				}
			default:
				return errors.New("specify --failed, --processed, or --all")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				count, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d items\n", count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every item")
	cmd.Flags().BoolVar(&failed, "failed", false, "Remove failed items")
	cmd.Flags().BoolVar(&processed, "processed", false, "Remove processed items")
	return cmd
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Release claims whose heartbeat has gone stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				cutoff := time.Now().UTC().Add(-cfg.HeartbeatTimeout())
				count, err := store.ReclaimStale(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d stale claims\n", count)
				return nil
			})
		},
	}
}

func parseStatusFlags(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok || value == "" {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
