package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/kirillkom/hybrid-retrieval/internal/adapters/nats"
	"github.com/kirillkom/hybrid-retrieval/internal/bootstrap"
	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-retrieval/internal/observability/logging"
	"github.com/kirillkom/hybrid-retrieval/internal/observability/metrics"
)

const service = "retrieval-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responderMetrics := metrics.NewResponderMetrics(service)
	app, err := bootstrap.New(ctx, cfg, logger, responderMetrics.Observer(service))
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	bus, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{Name: service, Logger: logger})
	if err != nil {
		logger.Error("nats_connect_failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           responderMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	responder := natsadapter.NewResponder(natsadapter.ResponderConfig{
		Subjects:        natsadapter.Subjects{Prefix: cfg.NATSSubjectPrefix},
		SearchDefaults:  cfg.Search,
		RelatedDefaults: cfg.Related,
		Timeout:         cfg.NATSRequestTimeout,
		Metrics:         responderMetrics,
		Logger:          logger,
	}, app.SearchUC, app.RelatedUC, app.StatsUC)

	logger.Info("worker_subscribed", "subjects", responder.Subjects(), "queue_group", cfg.NATSQueueGroup)
	if err := bus.Serve(ctx, cfg.NATSQueueGroup, responder.Handle, responder.Subjects()...); err != nil {
		logger.Error("worker_serve_failed", "error", err)
		os.Exit(1)
	}
}
