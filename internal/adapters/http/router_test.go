package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

type searcherFake struct {
	results []domain.SearchResult
	err     error

	query string
	opts  domain.SearchOptions
}

func (f *searcherFake) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	f.query = query
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type recommenderFake struct {
	results []domain.SearchResult
	err     error

	documentID string
	opts       domain.SearchOptions
}

func (f *recommenderFake) Related(_ context.Context, documentID string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	f.documentID = documentID
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type statsFake struct {
	stats domain.CorpusStats
	err   error
	scope string
}

func (f *statsFake) Stats(_ context.Context, scope string) (domain.CorpusStats, error) {
	f.scope = scope
	return f.stats, f.err
}

func testConfig() config.Config {
	return config.Config{
		Search:       domain.DefaultSearchOptions(),
		Related:      domain.DefaultRelatedOptions(),
		APIQueueWait: 10 * time.Millisecond,
	}
}

func newTestHandler(cfg config.Config) http.Handler {
	if cfg.Search.MaxResults == 0 {
		cfg.Search = domain.DefaultSearchOptions()
	}
	if cfg.Related.MaxResults == 0 {
		cfg.Related = domain.DefaultRelatedOptions()
	}
	return NewRouter(cfg, &searcherFake{}, &recommenderFake{}, &statsFake{}, nil).Handler()
}
