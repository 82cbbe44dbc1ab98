package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fkhayef/splitledger/internal/config"
	"github.com/fkhayef/splitledger/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|reset]",
	Short:     "Run database migrations",
	Long:      `Apply or roll back the embedded schema migrations.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status", "reset"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.Migrate(db, args[0])
	},
}
