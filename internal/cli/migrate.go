package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildtall-systems/panelbot/internal/config"
	"github.com/buildtall-systems/panelbot/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		v, err := database.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s migrated to version %d\n", cfg.Database.Path, v)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version without migrating",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		v, err := database.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s at version %d\n", cfg.Database.Path, v)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
