// Package commands provides CLI commands for the admin tool
package commands

import (
	"database/sql"
	"fmt"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, cfg config.DatabaseConfig, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for SafeReport.

Available commands:
  info      - Show connection and schema version
  migrate   - Apply pending migrations`,
	}

	dbCmd.AddCommand(infoCmd(dbManager, cfg, db))
	dbCmd.AddCommand(migrateCmd(dbManager, cfg, logger))

	return dbCmd
}

func infoCmd(dbManager *database.Manager, cfg config.DatabaseConfig, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show connection and schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			state, err := dbManager.MigrationStatus(ctx, cfg)
			if err != nil {
				return contextutils.WrapError(err, "failed to read migration status")
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Database:  %s\n", maskDatabaseURL(cfg.URL))
			_, _ = fmt.Fprintf(out, "Status:    %s\n", getDatabaseInfo(ctx, db))
			switch {
			case !state.Applied:
				_, _ = fmt.Fprintln(out, "Schema:    no migrations applied")
			case state.Dirty:
				_, _ = fmt.Fprintf(out, "Schema:    version %d (dirty)\n", state.Version)
			default:
				_, _ = fmt.Fprintf(out, "Schema:    version %d\n", state.Version)
			}
			return nil
		},
	}
}

func migrateCmd(dbManager *database.Manager, cfg config.DatabaseConfig, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := dbManager.RunMigrations(ctx, cfg); err != nil {
				logger.Error(ctx, "Migration failed", err, nil)
				return contextutils.WrapError(err, "failed to run migrations")
			}

			state, err := dbManager.MigrationStatus(ctx, cfg)
			if err != nil {
				return contextutils.WrapError(err, "failed to read migration status")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", state.Version)
			return nil
		},
	}
}
