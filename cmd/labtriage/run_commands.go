package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/queue"
	"labtriage/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one triage pass over every pending result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(cmd, ctx, jsonOutput, func(ctx context.Context, engine *workflow.Engine) (workflow.Summary, error) {
				return engine.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the pass summary as JSON")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <id>...",
		Short: "Run a triage pass over specific results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(cmd, ctx, jsonOutput, func(ctx context.Context, engine *workflow.Engine) (workflow.Summary, error) {
				return engine.RunItems(ctx, args...)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the pass summary as JSON")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run triage passes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return err
				}
				engine, err := ctx.newEngine(cfg, store, logger)
				if err != nil {
					return err
				}
				wait := interval
				if wait <= 0 {
					wait = cfg.PollInterval()
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching for pending results every %s (Ctrl+C to stop)\n", wait)
				return engine.Watch(signalCtx, wait, func(summary workflow.Summary) {
					fmt.Fprintln(out, passLine(summary))
				})
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between passes (defaults to workflow.poll_interval)")
	return cmd
}

type passFunc func(context.Context, *workflow.Engine) (workflow.Summary, error)

func runPass(cmd *cobra.Command, ctx *commandContext, jsonOutput bool, run passFunc) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
		logger, err := ctx.newLogger(cfg)
		if err != nil {
			return err
		}
		engine, err := ctx.newEngine(cfg, store, logger)
		if err != nil {
			return err
		}
		summary, err := run(signalCtx, engine)
		if err != nil {
			if errors.Is(err, workflow.ErrPassInProgress) {
				return errors.New("another triage pass is running; try again when it finishes")
			}
			if errors.Is(err, context.Canceled) && summary.PassID != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Pass interrupted: %s\n", passLine(summary))
			}
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, toPassJSON(summary))
		}
		out := cmd.OutOrStdout()
		printPassSummary(out, summary, shouldColorize(out))
		return nil
	})
}
