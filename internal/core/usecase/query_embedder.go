package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

// QueryEmbedder embeds a single query string. It neither retries nor caches.
type QueryEmbedder struct {
	embedder   ports.Embedder
	dimensions int
	timeout    time.Duration
}

// NewQueryEmbedder validates vectors against dimensions when it is positive.
func NewQueryEmbedder(embedder ports.Embedder, dimensions int, timeout time.Duration) *QueryEmbedder {
	return &QueryEmbedder{
		embedder:   embedder,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

func (e *QueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.embedder.Embed(callCtx, []string{text})
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", err)
	}
	if len(vectors) != 1 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query",
			fmt.Errorf("expected 1 vector, got %d", len(vectors)))
	}

	vector := vectors[0]
	if err := e.validate(vector); err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", err)
	}
	return vector, nil
}

func (e *QueryEmbedder) validate(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if e.dimensions > 0 && len(vector) != e.dimensions {
		return fmt.Errorf("expected %d dimensions, got %d", e.dimensions, len(vector))
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value at position %d", i)
		}
	}
	return nil
}
