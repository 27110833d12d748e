package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/apartment-recommender/internal/bootstrap"
	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/apartment-recommender/internal/observability/logging"
	"github.com/kirillkom/apartment-recommender/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger, closeLog, err := logging.NewLogger("worker", cfg.LogLevel, os.Stdout, cfg.LogFile)
	if err != nil {
		slog.Error("logger_init_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("worker_failed", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithCatalogHook(workerMetrics.ObserveCatalog),
		bootstrap.WithBreakerHook(workerMetrics.RecordBreakerTransition),
	)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	natsURL := cfg.NATSURL
	if cfg.NATSEmbedded {
		embedded, err := nats.StartEmbedded("127.0.0.1", cfg.NATSEmbeddedPort)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		defer embedded.Shutdown()
		natsURL = embedded.ClientURL()
		slog.Info("nats_embedded_started", "url", natsURL)
	}

	conn, err := nats.Connect(natsURL, nats.ConnectOptions{Name: "apartment-recommender-worker"})
	if err != nil {
		return fmt.Errorf("connect nats %s: %w", natsURL, err)
	}
	defer conn.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	subjects := nats.NewSubjects(cfg.NATSSubjectPrefix)
	server := nats.NewServer(conn, subjects, cfg.NATSQueueGroup, app.Recommender, app.Nearby, workerMetrics)
	slog.Info("worker_subscribed",
		"recommend_subject", subjects.Recommend,
		"nearby_subject", subjects.Nearby,
		"queue_group", cfg.NATSQueueGroup,
	)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
