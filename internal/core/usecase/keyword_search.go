package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

// KeywordOutcome carries keyword hits and, when the lexical path failed, the reason.
// A degraded outcome always has no results.
type KeywordOutcome struct {
	Results []domain.SearchResult
	Err     error
}

func (o KeywordOutcome) Degraded() bool {
	return o.Err != nil
}

type KeywordSearcher struct {
	index      ports.LexicalIndex
	confidence float64
	timeout    time.Duration
	logger     *slog.Logger
	observer   ports.RetrievalObserver
}

// NewKeywordSearcher assigns confidence to every lexical hit in place of the store's own ranking.
func NewKeywordSearcher(index ports.LexicalIndex, confidence float64, timeout time.Duration, opts ...Option) *KeywordSearcher {
	s := applyOptions(opts)
	return &KeywordSearcher{
		index:      index,
		confidence: clampUnit(confidence),
		timeout:    timeout,
		logger:     s.logger,
		observer:   s.observer,
	}
}

// Search never fails: lexical errors degrade to an empty outcome.
func (s *KeywordSearcher) Search(ctx context.Context, queryText string, opts domain.SearchOptions) KeywordOutcome {
	if opts.MaxResults <= 0 {
		return KeywordOutcome{Results: []domain.SearchResult{}}
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	chunks, err := s.index.SearchText(callCtx, domain.KeywordQuery{
		Query: queryText,
		Scope: opts.ProjectScope,
		Limit: opts.MaxResults,
	})
	if err != nil {
		// Parent cancellation is not a lexical failure.
		if ctx.Err() == nil {
			s.observer.KeywordDegraded()
			s.logger.WarnContext(ctx, "keyword_search_degraded",
				"scope", opts.ProjectScope,
				"error", err,
			)
		}
		return KeywordOutcome{Results: []domain.SearchResult{}, Err: err}
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, domain.ResultFromChunk(chunk, s.confidence))
	}
	return KeywordOutcome{Results: FilterResults(trimResults(results, opts.MaxResults), opts)}
}
