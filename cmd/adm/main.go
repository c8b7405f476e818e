// Package main provides the SafeReport administration CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"safereport/cmd/adm/commands"
	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/observability"
	"safereport/internal/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "safereport-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// Migrations are an explicit subcommand, never a side effect of connecting
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService := services.NewUserServiceWithLogger(db, cfg, logger)
	triageService := services.NewTriageService(db, cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "SafeReport administration tool",
		Long: `SafeReport administration tool

Manages staff accounts and reporter credibility, applies database
migrations and prints the agency triage queue.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, commands.TerminalPassword))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, cfg.Database, logger, db))
	rootCmd.AddCommand(commands.TriageCommands(triageService))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
