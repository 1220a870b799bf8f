package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spacebot/internal/app"
)

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch and print the current space status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			msg, err := app.FetchStatus(ctx, *configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Body)
			return nil
		},
	}
}
