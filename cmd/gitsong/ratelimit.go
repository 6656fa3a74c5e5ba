package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/gitsong/internal/app"
)

func newRateLimitCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit SERVICE",
		Short: "Show live-call accounting for an external service (github, gemini, suno)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd, global, func(a *app.App) error {
				counter, err := a.Cache.Tracker().Snapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					Service   string `json:"service"`
					Limit     int    `json:"limit"`
					Used      int    `json:"used"`
					Remaining int    `json:"remaining"`
					ResetAt   string `json:"reset_at"`
				}{counter.Service, counter.Limit, counter.Used, counter.Remaining(), counter.ResetAt.Format(time.RFC3339)})
			})
		},
	}
}
