package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-group-bot/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQLite schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DBPath)
			return err
		},
	}
}
