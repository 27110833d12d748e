package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/apartment-recommender/internal/adapters/mcp"
	"github.com/kirillkom/apartment-recommender/internal/bootstrap"
	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/observability/logging"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()
	// stdout carries the protocol.
	logger, closeLog, err := logging.NewLogger("mcp", cfg.LogLevel, os.Stderr, cfg.LogFile)
	if err != nil {
		slog.Error("logger_init_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		slog.Error("mcp_failed", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Recommender, app.Nearby, app.CatalogUC, logger)
	slog.Info("mcp_serving", "transport", "stdio", "version", version)
	if err := server.ServeStdio(ctx, version); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}
