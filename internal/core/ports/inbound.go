package ports

import (
	"context"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

// HybridSearcher is the inbound contract for fused vector+keyword search.
type HybridSearcher interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// RelatedRecommender is the inbound contract for document-to-document recommendations.
type RelatedRecommender interface {
	Related(ctx context.Context, documentID string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// CorpusStatsReader is the inbound read model for corpus counters.
type CorpusStatsReader interface {
	Stats(ctx context.Context, scope string) (domain.CorpusStats, error)
}
