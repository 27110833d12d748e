package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/apartment-recommender/internal/adapters/http"
	"github.com/kirillkom/apartment-recommender/internal/bootstrap"
	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/observability/logging"
	"github.com/kirillkom/apartment-recommender/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger, closeLog, err := logging.NewLogger("api", cfg.LogLevel, os.Stdout, cfg.LogFile)
	if err != nil {
		slog.Error("logger_init_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("api_failed", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// run serves the API until ctx is done. Every resource it opens is released
// before it returns.
func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithBreakerHook(httpMetrics.RecordBreakerTransition))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		return fmt.Errorf("listen on :%s: %w", cfg.APIPort, err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	router := httpadapter.NewRouter(cfg, app.Recommender, app.Nearby, app.CatalogUC, app.Catalogs, httpMetrics).Handler()
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("api_listening",
			"addr", listener.Addr().String(),
			"artifact_source", cfg.ArtifactSource,
			"max_connections", cfg.APIMaxConnections,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}
