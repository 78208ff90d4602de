package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/hybrid-retrieval/internal/adapters/dto"
	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

func TestSearchMapsDomainErrorsToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "hybrid search", errors.New("query is empty")), http.StatusBadRequest, "invalid_input"},
		{"embedding", domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", errors.New("ollama down")), http.StatusBadGateway, "embedding_unavailable"},
		{"store", domain.WrapError(domain.ErrStoreUnavailable, "vector search", errors.New("pg down")), http.StatusServiceUnavailable, "store_unavailable"},
		{"temporary", domain.WrapError(domain.ErrTemporary, "qdrant", errors.New("503")), http.StatusServiceUnavailable, "temporary"},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "internal"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(testConfig(), &searcherFake{err: tc.err}, &recommenderFake{}, &statsFake{}, nil).Handler()

			req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			var body dto.ErrorResponse
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Kind != tc.kind || body.Error == "" {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestSearchRejectsMalformedJSON(t *testing.T) {
	searcher := &searcherFake{}
	handler := NewRouter(testConfig(), searcher, &recommenderFake{}, &statsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if searcher.query != "" {
		t.Fatalf("search should not run for malformed body")
	}
}

func TestRelatedRejectsMalformedQueryParams(t *testing.T) {
	for _, target := range []string{
		"/v1/documents/doc-1/related?limit=many",
		"/v1/documents/doc-1/related?threshold=high",
		"/v1/documents/doc-1/related?from=yesterday",
	} {
		recommender := &recommenderFake{}
		handler := NewRouter(testConfig(), &searcherFake{}, recommender, &statsFake{}, nil).Handler()

		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, target, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
		if recommender.documentID != "" {
			t.Fatalf("%s: recommender should not run", target)
		}
	}
}

func TestStatsMapsStoreErrorTo503(t *testing.T) {
	stats := &statsFake{err: domain.WrapError(domain.ErrStoreUnavailable, "corpus stats", errors.New("pg down"))}
	handler := NewRouter(testConfig(), &searcherFake{}, &recommenderFake{}, stats, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestSearchRejectsWrongMethod(t *testing.T) {
	handler := newTestHandler(testConfig())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
