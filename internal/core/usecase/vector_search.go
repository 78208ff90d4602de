package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

type VectorSearcher struct {
	store   ports.VectorStore
	timeout time.Duration
}

func NewVectorSearcher(store ports.VectorStore, timeout time.Duration) *VectorSearcher {
	return &VectorSearcher{store: store, timeout: timeout}
}

// Search returns filtered hits sorted by similarity, each at or above the threshold.
func (s *VectorSearcher) Search(
	ctx context.Context,
	queryVector []float32,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if opts.MaxResults <= 0 {
		return []domain.SearchResult{}, nil
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.store.MatchChunks(callCtx, domain.VectorQuery{
		Embedding: queryVector,
		Scope:     opts.ProjectScope,
		Threshold: opts.SimilarityThreshold,
		Limit:     opts.MaxResults,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "vector search", err)
	}

	hits := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.Similarity < opts.SimilarityThreshold {
			continue
		}
		r.Similarity = clampUnit(r.Similarity)
		hits = append(hits, r)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	return FilterResults(trimResults(hits, opts.MaxResults), opts), nil
}
