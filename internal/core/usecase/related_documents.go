package usecase

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

type RelatedDocumentsUseCase struct {
	anchors             ports.AnchorSource
	vectors             *VectorSearcher
	pool                *ants.Pool
	anchorLimit         int
	candidateMultiplier int
	maxResultsLimit     int
	logger              *slog.Logger
	observer            ports.RetrievalObserver
}

// NewRelatedDocumentsUseCase runs anchor searches on pool. A nil pool runs each anchor on its own goroutine.
func NewRelatedDocumentsUseCase(
	anchors ports.AnchorSource,
	vectors *VectorSearcher,
	pool *ants.Pool,
	opts ...Option,
) (*RelatedDocumentsUseCase, error) {
	if anchors == nil {
		return nil, ErrAnchorSourceRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}

	s := applyOptions(opts)
	return &RelatedDocumentsUseCase{
		anchors:             anchors,
		vectors:             vectors,
		pool:                pool,
		anchorLimit:         s.anchorLimit,
		candidateMultiplier: s.candidateMultiplier,
		maxResultsLimit:     s.maxResultsLimit,
		logger:              s.logger,
		observer:            s.observer,
	}, nil
}

// Related recommends other documents whose chunks are close to the anchor document's chunks.
// Failing anchors are skipped; if every anchor fails the result is empty.
func (uc *RelatedDocumentsUseCase) Related(
	ctx context.Context,
	documentID string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "related documents", errEmptyDocumentID)
	}
	if err := opts.ValidateLimit(uc.maxResultsLimit); err != nil {
		return nil, err
	}
	if opts.MaxResults == 0 {
		return []domain.SearchResult{}, nil
	}

	anchors, err := uc.anchors.AnchorChunks(ctx, documentID, opts.ProjectScope, uc.anchorLimit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "load anchor chunks", err)
	}
	if len(anchors) > uc.anchorLimit {
		anchors = anchors[:uc.anchorLimit]
	}

	perAnchor := make([][]domain.SearchResult, len(anchors))
	var wg sync.WaitGroup
	for i, anchor := range anchors {
		if len(anchor.Embedding) == 0 {
			continue
		}
		task := func() {
			defer wg.Done()
			perAnchor[i] = uc.searchAnchor(ctx, documentID, anchor, opts)
		}
		wg.Add(1)
		if uc.pool == nil {
			go task()
			continue
		}
		if err := uc.pool.Submit(task); err != nil {
			wg.Done()
			uc.skipAnchor(ctx, documentID, anchor, err)
		}
	}
	wg.Wait()

	best := make(map[string]domain.SearchResult)
	order := make([]string, 0)
	for _, hits := range perAnchor {
		for _, hit := range hits {
			if hit.DocumentID == documentID {
				continue
			}
			current, seen := best[hit.DocumentID]
			if !seen {
				order = append(order, hit.DocumentID)
				best[hit.DocumentID] = hit
				continue
			}
			if hit.Similarity > current.Similarity {
				best[hit.DocumentID] = hit
			}
		}
	}

	out := make([]domain.SearchResult, 0, len(best))
	for _, docID := range order {
		out = append(out, best[docID])
	}
	sortResults(out)
	return trimResults(out, opts.MaxResults), nil
}

func (uc *RelatedDocumentsUseCase) searchAnchor(
	ctx context.Context,
	documentID string,
	anchor domain.Chunk,
	opts domain.SearchOptions,
) []domain.SearchResult {
	anchorOpts := opts
	if anchor.ProjectScope != "" {
		anchorOpts.ProjectScope = anchor.ProjectScope
	}
	anchorOpts.MaxResults = candidateLimit(opts.MaxResults, uc.candidateMultiplier)

	hits, err := uc.vectors.Search(ctx, anchor.Embedding, anchorOpts)
	if err != nil {
		uc.skipAnchor(ctx, documentID, anchor, err)
		return nil
	}
	return hits
}

// candidateLimit is maxResults*multiplier, saturating at math.MaxInt.
func candidateLimit(maxResults, multiplier int) int {
	if maxResults > 0 && multiplier > 0 && maxResults > math.MaxInt/multiplier {
		return math.MaxInt
	}
	return maxResults * multiplier
}

func (uc *RelatedDocumentsUseCase) skipAnchor(ctx context.Context, documentID string, anchor domain.Chunk, err error) {
	uc.observer.AnchorSkipped()
	uc.logger.WarnContext(ctx, "anchor_lookup_skipped",
		"document_id", documentID,
		"chunk_id", anchor.ID,
		"chunk_index", anchor.ChunkIndex,
		"error", err,
	)
}
