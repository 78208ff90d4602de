package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/hybrid-retrieval/internal/adapters/mcp"
	natsadapter "github.com/kirillkom/hybrid-retrieval/internal/adapters/nats"
	"github.com/kirillkom/hybrid-retrieval/internal/bootstrap"
	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-retrieval/internal/observability/logging"
)

const service = "retrieval-mcp"

// stdout carries the MCP protocol, so logs go to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		searcher ports.HybridSearcher
		related  ports.RelatedRecommender
		stats    ports.CorpusStatsReader
	)
	switch cfg.MCPBackend {
	case config.MCPBackendNATS:
		executor := resilience.NewExecutor(resilience.DefaultConfig().WithRetryAttempts(cfg.StoreRetryMaxAttempts).WithBreaker(cfg.BreakerEnabled), logger)
		bus, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{Name: service, Logger: logger, ResilienceExecutor: executor})
		if err != nil {
			logger.Error("nats_connect_failed", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		client := natsadapter.NewClient(bus, natsadapter.Subjects{Prefix: cfg.NATSSubjectPrefix}, cfg.NATSRequestTimeout)
		searcher, related, stats = client, client, client
	default:
		app, err := bootstrap.New(ctx, cfg, logger, nil)
		if err != nil {
			logger.Error("bootstrap_failed", "error", err)
			os.Exit(1)
		}
		defer app.Close()
		searcher, related, stats = app.SearchUC, app.RelatedUC, app.StatsUC
	}

	server, err := mcpadapter.NewServer(cfg.Search, cfg.Related, searcher, related, stats, logger)
	if err != nil {
		logger.Error("mcp_init_failed", "error", err)
		os.Exit(1)
	}

	logger.Info("mcp_serving_stdio", "backend", cfg.MCPBackend)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_serve_failed", "error", err)
		os.Exit(1)
	}
}
