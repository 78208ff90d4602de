package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

type embedderFake struct {
	mu      sync.Mutex
	texts   []string
	vectors [][]float32
	err     error
	calls   int32
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.texts = append(f.texts, texts...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	return [][]float32{{0.1, 0.2, 0.3}}, nil
}

type vectorStoreFake struct {
	mu      sync.Mutex
	queries []domain.VectorQuery
	results []domain.SearchResult
	err     error
	// byFirstComponent keys results by the first component of the query vector.
	byFirstComponent map[float32][]domain.SearchResult
	errByFirst       map[float32]error
	before           func(ctx context.Context) error
}

func (f *vectorStoreFake) MatchChunks(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.before != nil {
		if err := f.before(ctx); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(q.Embedding) > 0 && f.byFirstComponent != nil {
		first := q.Embedding[0]
		if err := f.errByFirst[first]; err != nil {
			return nil, err
		}
		return copyResults(f.byFirstComponent[first]), nil
	}
	return copyResults(f.results), nil
}

func (f *vectorStoreFake) Queries() []domain.VectorQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.VectorQuery, len(f.queries))
	copy(out, f.queries)
	return out
}

type lexicalIndexFake struct {
	mu      sync.Mutex
	queries []domain.KeywordQuery
	chunks  []domain.Chunk
	err     error
	before  func(ctx context.Context) error
}

func (f *lexicalIndexFake) SearchText(ctx context.Context, q domain.KeywordQuery) ([]domain.Chunk, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.before != nil {
		if err := f.before(ctx); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out, nil
}

type anchorSourceFake struct {
	documentID string
	scope      string
	limit      int
	chunks     []domain.Chunk
	err        error
}

func (f *anchorSourceFake) AnchorChunks(_ context.Context, documentID, scope string, limit int) ([]domain.Chunk, error) {
	f.documentID = documentID
	f.scope = scope
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type statsSourceFake struct {
	scope string
	stats domain.CorpusStats
	err   error
}

func (f *statsSourceFake) Stats(_ context.Context, scope string) (domain.CorpusStats, error) {
	f.scope = scope
	if f.err != nil {
		return domain.CorpusStats{}, f.err
	}
	return f.stats, nil
}

type observerFake struct {
	keywordDegraded int32
	anchorsSkipped  int32
}

func (o *observerFake) KeywordDegraded() { atomic.AddInt32(&o.keywordDegraded, 1) }
func (o *observerFake) AnchorSkipped()   { atomic.AddInt32(&o.anchorsSkipped, 1) }

func copyResults(in []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(in))
	copy(out, in)
	return out
}

func hit(id, docID string, chunkIndex int, similarity float64) domain.SearchResult {
	return domain.SearchResult{
		ID:         id,
		DocumentID: docID,
		ChunkIndex: chunkIndex,
		Title:      "title " + docID,
		Content:    "content " + id,
		Similarity: similarity,
	}
}

func chunk(id, docID string, chunkIndex int) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		ChunkIndex: chunkIndex,
		Title:      "title " + docID,
		Content:    "content " + id,
	}
}
