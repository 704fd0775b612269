package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/policy"
	"labtriage/internal/queue"
	"labtriage/internal/stage"
)

const llmCheckTimeout = 30 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that labtriage is ready to run a pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				checkers := []stage.Checker{
					stage.CheckerFunc(func(context.Context) stage.Health {
						detail := ctx.configPath
						if !ctx.configExists {
							detail += " (not found, using defaults)"
						}
						return stage.HealthyWithDetail("Config", detail)
					}),
					queueChecker(store),
					policyChecker(cfg),
					notesDirChecker(cfg),
					llmChecker(cfg, skipLLM),
					notifyChecker(cfg),
				}
				results := stage.RunChecks(cmd.Context(), checkers...)

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("labtriage doctor", colorize) {
					fmt.Fprintln(out, line)
				}
				failed := 0
				for _, result := range results {
					kind := statusOK
					if !result.Ready {
						kind = statusError
						failed++
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d checks failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Do not call the reasoning service")
	return cmd
}

func queueChecker(store *queue.Store) stage.Checker {
	return stage.CheckerFunc(func(ctx context.Context) stage.Health {
		health, err := store.CheckHealth(ctx)
		if err != nil {
			return stage.Unhealthy("Queue database", err.Error())
		}
		if health.SchemaVersion != queue.SchemaVersion {
			return stage.Unhealthy("Queue database",
				fmt.Sprintf("schema v%d, expected v%d", health.SchemaVersion, queue.SchemaVersion))
		}
		if !health.IntegrityCheck {
			return stage.Unhealthy("Queue database", "integrity check failed for "+health.DBPath)
		}
		return stage.HealthyWithDetail("Queue database",
			fmt.Sprintf("%s (schema v%d, %d items)", health.DBPath, health.SchemaVersion, health.TotalItems))
	})
}

func policyChecker(cfg *config.Config) stage.Checker {
	return stage.CheckerFunc(func(ctx context.Context) stage.Health {
		text, err := policy.NewFileSource(cfg.Paths.PolicyFile).Read(ctx)
		if err != nil {
			return stage.Unhealthy("Policy", err.Error())
		}
		lines := len(strings.Split(text, "\n"))
		return stage.HealthyWithDetail("Policy", fmt.Sprintf("%s (%d lines)", cfg.Paths.PolicyFile, lines))
	})
}

func notesDirChecker(cfg *config.Config) stage.Checker {
	return stage.CheckerFunc(func(context.Context) stage.Health {
		dir := cfg.Paths.NotesDir
		probe, err := os.CreateTemp(dir, ".labtriage-probe-*")
		if err != nil {
			return stage.Unhealthy("Notes directory", fmt.Sprintf("%s is not writable: %v", dir, err))
		}
		name := probe.Name()
		probe.Close()
		os.Remove(name)
		return stage.HealthyWithDetail("Notes directory", dir)
	})
}

func llmChecker(cfg *config.Config, skip bool) stage.Checker {
	return stage.CheckerFunc(func(ctx context.Context) stage.Health {
		if err := cfg.RequireLLM(); err != nil {
			return stage.Unhealthy("Reasoning service", "api key not configured")
		}
		model := cfg.GetLLM().Model
		if skip {
			return stage.HealthyWithDetail("Reasoning service", model+" (not contacted)")
		}
		checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
		defer cancel()
		if err := newLLMClient(cfg).HealthCheck(checkCtx); err != nil {
			return stage.Unhealthy("Reasoning service", err.Error())
		}
		return stage.HealthyWithDetail("Reasoning service", model)
	})
}

func notifyChecker(cfg *config.Config) stage.Checker {
	return stage.CheckerFunc(func(context.Context) stage.Health {
		topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
		if topic == "" {
			return stage.HealthyWithDetail("Notifications", "disabled")
		}
		return stage.HealthyWithDetail("Notifications", topic)
	})
}
