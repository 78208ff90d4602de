package ports

import (
	"context"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

// Embedder turns texts into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore returns chunks ranked by similarity to a query vector.
// Results are expected above the threshold and sorted descending.
type VectorStore interface {
	MatchChunks(ctx context.Context, query domain.VectorQuery) ([]domain.SearchResult, error)
}

// LexicalIndex performs full-text search over chunk text.
type LexicalIndex interface {
	SearchText(ctx context.Context, query domain.KeywordQuery) ([]domain.Chunk, error)
}

// AnchorSource reads embedded chunks of a single document.
type AnchorSource interface {
	AnchorChunks(ctx context.Context, documentID, scope string, limit int) ([]domain.Chunk, error)
}

// StatsSource aggregates corpus counters for a scope. Empty scope means the whole corpus.
type StatsSource interface {
	Stats(ctx context.Context, scope string) (domain.CorpusStats, error)
}

// RetrievalObserver receives best-effort degradation events.
type RetrievalObserver interface {
	KeywordDegraded()
	AnchorSkipped()
}
