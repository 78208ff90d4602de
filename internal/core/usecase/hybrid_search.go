package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

type HybridSearchUseCase struct {
	embedder *QueryEmbedder
	vectors  *VectorSearcher
	keywords *KeywordSearcher
	policy   domain.FusionPolicy
	logger   *slog.Logger

	maxResultsLimit int
}

func NewHybridSearchUseCase(
	embedder *QueryEmbedder,
	vectors *VectorSearcher,
	keywords *KeywordSearcher,
	policy domain.FusionPolicy,
	opts ...Option,
) (*HybridSearchUseCase, error) {
	switch {
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case vectors == nil:
		return nil, ErrVectorStoreRequired
	case keywords == nil:
		return nil, ErrLexicalIndexRequired
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := applyOptions(opts)
	return &HybridSearchUseCase{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		policy:   policy,
		logger:   s.logger,

		maxResultsLimit: s.maxResultsLimit,
	}, nil
}

// Search runs the vector and keyword paths concurrently and fuses them.
// The vector path is mandatory; a keyword failure degrades to vector-only fusion.
func (uc *HybridSearchUseCase) Search(
	ctx context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid search", errEmptyQuery)
	}
	if err := opts.ValidateLimit(uc.maxResultsLimit); err != nil {
		return nil, err
	}
	if opts.MaxResults == 0 {
		return []domain.SearchResult{}, nil
	}

	var (
		vectorResults []domain.SearchResult
		keyword       KeywordOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryVector, err := uc.embedder.Embed(gctx, query)
		if err != nil {
			return err
		}
		results, err := uc.vectors.Search(gctx, queryVector, opts)
		if err != nil {
			return err
		}
		vectorResults = results
		return nil
	})
	g.Go(func() error {
		keyword = uc.keywords.Search(gctx, query, opts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := trimResults(fuseWeighted(vectorResults, keyword.Results, uc.policy), opts.MaxResults)
	uc.logger.DebugContext(ctx, "hybrid_search_completed",
		"scope", opts.ProjectScope,
		"vector_hits", len(vectorResults),
		"keyword_hits", len(keyword.Results),
		"keyword_degraded", keyword.Degraded(),
		"results", len(fused),
	)
	return fused, nil
}
