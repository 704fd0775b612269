package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"labtriage/internal/config"
	"labtriage/internal/queue"
	"labtriage/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Display one work item and its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := lookupItem(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, toItemJSON(item))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderDetails(itemDetails(item, shouldColorize(out))))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func lookupItem(ctx context.Context, store *queue.Store, id string) (*queue.Item, error) {
	item, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "lookup", fmt.Sprintf("work item %s not found", id), nil)
	}
	return item, nil
}
