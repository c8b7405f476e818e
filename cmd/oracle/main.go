// Package main runs the reference scoring oracle: the keyword, spam and image
// heuristics behind POST /analyze.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safereport/internal/analysis"
	"safereport/internal/config"
	"safereport/internal/observability"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "safereport-oracle")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if tp != nil {
			if sdk, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				_ = sdk.Shutdown(shutdownCtx)
			}
		}
		if mp != nil {
			_ = mp.Shutdown(shutdownCtx)
		}
	}()

	if cfg.OracleServer.APIKey == "" {
		logger.Warn(ctx, "Oracle API key not set, /analyze accepts unauthenticated requests", nil)
	}

	engine := analysis.NewEngine(cfg.OracleServer.MediaRoot)
	srv := &http.Server{
		Addr:              ":" + cfg.OracleServer.Port,
		Handler:           analysis.NewServer(engine, cfg.OracleServer.APIKey, logger),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting scoring oracle", map[string]interface{}{
			"port":       cfg.OracleServer.Port,
			"media_root": cfg.OracleServer.MediaRoot,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "Received shutdown signal, shutting down gracefully", nil)
	case err := <-serverErr:
		logger.Error(context.Background(), "Oracle server failed", err, nil)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during oracle shutdown", err, nil)
	}
}
