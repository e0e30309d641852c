package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-group-bot/internal/config"
	"github.com/tbourn/go-group-bot/internal/observability"
)

func newWeightsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "Print the fortune weight table with draw probabilities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.SetupLogging("warn", cfg.LogPretty, cmd.ErrOrStderr())

			a, err := wireApp(cmd.Context(), cfg, opts.settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			ws, err := a.fortune.WeightTable(cmd.Context())
			if err != nil {
				return err
			}
			total := 0
			for _, w := range ws {
				total += w.Weight
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tWEIGHT\tCHANCE")
			for _, w := range ws {
				chance := 0.0
				if total > 0 {
					chance = 100 * float64(w.Weight) / float64(total)
				}
				fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", w.Name, w.Weight, chance)
			}
			return tw.Flush()
		},
	}
}
