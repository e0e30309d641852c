package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-group-bot/internal/sysutil"
)

type rootOptions struct {
	envFile      string
	settingsPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "groupbot",
		Short:         "Group chat bot with daily fortune and lottery draws",
		Long:          "groupbot answers group chat commands (daily fortune, daily lottery and rerolls) posted by a chat gateway over HTTP, and keeps the draw history.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Local dev convenience only; production relies on real env.
			if sysutil.EnvTruthy(sysutil.EnvSkipDotenv) {
				return
			}
			_ = godotenv.Load(opts.envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "TOML or YAML settings file (overrides SETTINGS_PATH)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newWeightsCmd(opts),
		newMigrateCmd(),
	)
	return rootCmd
}
