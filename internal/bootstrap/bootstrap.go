package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
	"github.com/kirillkom/hybrid-retrieval/internal/core/usecase"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/search/elasticsearch"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	SearchUC  ports.HybridSearcher
	RelatedUC ports.RelatedRecommender
	StatsUC   ports.CorpusStatsReader

	closeFn func()
}

// backends holds the concrete stores; unused ones are nil.
type backends struct {
	postgres *postgres.ChunkRepository
	qdrant   *qdrant.Client
	elastic  *elasticsearch.Index
}

// breakerObserver is optionally implemented by the RetrievalObserver passed to New.
type breakerObserver interface {
	BreakerStateChanged(operation string, open bool)
}

type retrievalPorts struct {
	vectors ports.VectorStore
	lexical ports.LexicalIndex
	anchors ports.AnchorSource
}

// New connects the configured backends and assembles the retrieval use cases.
// observer may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.RetrievalObserver) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedExecutor := resilience.NewExecutor(executorConfig(cfg, cfg.EmbedRetryMaxAttempts), logger)
	storeExecutor := resilience.NewExecutor(executorConfig(cfg, cfg.StoreRetryMaxAttempts), logger)
	if bo, ok := observer.(breakerObserver); ok {
		embedExecutor.WithStateObserver(bo.BreakerStateChanged)
		storeExecutor.WithStateObserver(bo.BreakerStateChanged)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	b := backends{postgres: postgres.NewChunkRepository(db, cfg.EmbeddingDimensions, cfg.TextSearchConfig)}
	if cfg.EnsureSchema {
		if err := b.postgres.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if cfg.UsesBackend(config.BackendQdrant) {
		b.qdrant = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorTimeout, storeExecutor)
		if cfg.EnsureSchema {
			if err := b.qdrant.EnsureCollection(ctx, cfg.EmbeddingDimensions); err != nil {
				closeAll()
				return nil, fmt.Errorf("ensure qdrant collection: %w", err)
			}
		}
	}
	if cfg.UsesBackend(config.BackendElasticsearch) {
		b.elastic, err = elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.ElasticsearchURLs,
			Username:  cfg.ElasticsearchUsername,
			Password:  cfg.ElasticsearchPassword,
			Index:     cfg.ElasticsearchIndex,
			Timeout:   cfg.KeywordTimeout,
		}, storeExecutor)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init elasticsearch: %w", err)
		}
	}

	selected, err := selectPorts(cfg, b)
	if err != nil {
		closeAll()
		return nil, err
	}

	pool, err := ants.NewPool(cfg.RelatedWorkerPoolSize)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init related worker pool: %w", err)
	}
	closers = append(closers, pool.Release)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.EmbedTimeout)
	embedder := ollama.NewEmbedder(ollamaClient, embedExecutor)

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithObserver(observer),
		usecase.WithAnchorLimit(cfg.RelatedAnchorLimit),
		usecase.WithCandidateMultiplier(cfg.RelatedCandidateMultiplier),
		usecase.WithMaxResultsLimit(cfg.MaxResultsLimit),
	}
	queryEmbedder := usecase.NewQueryEmbedder(embedder, cfg.EmbeddingDimensions, cfg.EmbedTimeout)
	vectorSearcher := usecase.NewVectorSearcher(selected.vectors, cfg.VectorTimeout)
	keywordSearcher := usecase.NewKeywordSearcher(selected.lexical, cfg.Fusion.KeywordConfidence, cfg.KeywordTimeout, opts...)

	searchUC, err := usecase.NewHybridSearchUseCase(queryEmbedder, vectorSearcher, keywordSearcher, cfg.Fusion, opts...)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init hybrid search: %w", err)
	}
	relatedUC, err := usecase.NewRelatedDocumentsUseCase(selected.anchors, vectorSearcher, pool, opts...)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init related documents: %w", err)
	}
	statsUC, err := usecase.NewStatsUseCase(b.postgres)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init corpus stats: %w", err)
	}

	logger.Info("retrieval_backends_selected",
		"vector", cfg.VectorBackend,
		"keyword", cfg.KeywordBackend,
		"anchor", cfg.AnchorBackend,
	)

	return &App{
		Config:    cfg,
		SearchUC:  searchUC,
		RelatedUC: relatedUC,
		StatsUC:   statsUC,
		closeFn:   closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func executorConfig(cfg config.Config, attempts int) resilience.Config {
	return resilience.DefaultConfig().WithRetryAttempts(attempts).WithBreaker(cfg.BreakerEnabled)
}

// selectPorts maps backend names to the stores that serve each retrieval path.
func selectPorts(cfg config.Config, b backends) (retrievalPorts, error) {
	if b.postgres == nil {
		return retrievalPorts{}, fmt.Errorf("postgres backend is not initialized")
	}
	var out retrievalPorts

	switch cfg.VectorBackend {
	case config.BackendPostgres:
		out.vectors = b.postgres
	case config.BackendQdrant:
		if b.qdrant == nil {
			return retrievalPorts{}, fmt.Errorf("vector backend %q is not initialized", cfg.VectorBackend)
		}
		out.vectors = b.qdrant
	default:
		return retrievalPorts{}, fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
	}

	switch cfg.KeywordBackend {
	case config.BackendPostgres:
		out.lexical = b.postgres
	case config.BackendQdrant:
		if b.qdrant == nil {
			return retrievalPorts{}, fmt.Errorf("keyword backend %q is not initialized", cfg.KeywordBackend)
		}
		out.lexical = b.qdrant
	case config.BackendElasticsearch:
		if b.elastic == nil {
			return retrievalPorts{}, fmt.Errorf("keyword backend %q is not initialized", cfg.KeywordBackend)
		}
		out.lexical = b.elastic
	default:
		return retrievalPorts{}, fmt.Errorf("unsupported keyword backend %q", cfg.KeywordBackend)
	}

	switch cfg.AnchorBackend {
	case config.BackendPostgres:
		out.anchors = b.postgres
	case config.BackendQdrant:
		if b.qdrant == nil {
			return retrievalPorts{}, fmt.Errorf("anchor backend %q is not initialized", cfg.AnchorBackend)
		}
		out.anchors = b.qdrant
	default:
		return retrievalPorts{}, fmt.Errorf("unsupported anchor backend %q", cfg.AnchorBackend)
	}

	return out, nil
}
