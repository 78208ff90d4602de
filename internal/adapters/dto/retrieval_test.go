package dto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

func TestFiltersOptionsKeepsDefaultsForMissingFields(t *testing.T) {
	var req SearchRequest
	if err := json.Unmarshal([]byte(`{"query":"budget","project_scope":"tenant-1"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opts := req.Options(domain.DefaultSearchOptions())
	if opts.ProjectScope != "tenant-1" || opts.SimilarityThreshold != 0.7 || opts.MaxResults != 10 || opts.DateRange != nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestFiltersOptionsAppliesExplicitZeroAndDates(t *testing.T) {
	var req RelatedRequest
	raw := `{"document_id":"doc-1","max_results":0,"similarity_threshold":0,"document_types":["memo"],"date_from":"2024-01-01T00:00:00Z"}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opts := req.Options(domain.DefaultRelatedOptions())
	if opts.MaxResults != 0 || opts.SimilarityThreshold != 0 {
		t.Fatalf("expected explicit zero values to override defaults, got %+v", opts)
	}
	if len(opts.DocumentTypes) != 1 || opts.DateRange == nil || opts.DateRange.From == nil || opts.DateRange.To != nil {
		t.Fatalf("unexpected filters: %+v", opts)
	}
	if !opts.DateRange.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date from: %v", opts.DateRange.From)
	}
}

func TestNewResultsResponseNeverNil(t *testing.T) {
	resp := NewResultsResponse(nil)
	raw, _ := json.Marshal(resp)
	if string(raw) != `{"results":[],"count":0}` {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(domain.WrapError(domain.ErrStoreUnavailable, "op", errors.New("down"))); got != "store_unavailable" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := ErrorKind(errors.New("boom")); got != "internal" {
		t.Fatalf("unexpected kind %q", got)
	}
}

func TestFiltersFromOptionsRoundTripsThroughDefaults(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := domain.SearchOptions{
		ProjectScope:        "tenant-1",
		SimilarityThreshold: 0,
		MaxResults:          0,
		DocumentTypes:       []string{"memo"},
		DateRange:           &domain.DateRange{From: &from},
	}
	got := FiltersFromOptions(opts).Options(domain.DefaultSearchOptions())
	if got.SimilarityThreshold != 0 || got.MaxResults != 0 || got.ProjectScope != "tenant-1" {
		t.Fatalf("expected explicit values to survive, got %+v", got)
	}
	if got.DateRange == nil || !got.DateRange.From.Equal(from) {
		t.Fatalf("unexpected date range: %+v", got.DateRange)
	}
}

func TestKindErrorRestoresKinds(t *testing.T) {
	for _, kind := range []struct {
		name string
		want error
	}{
		{"invalid_input", domain.ErrInvalidInput},
		{"embedding_unavailable", domain.ErrEmbeddingUnavailable},
		{"store_unavailable", domain.ErrStoreUnavailable},
		{"temporary", domain.ErrTemporary},
	} {
		err := KindError(kind.name, "boom")
		if !domain.IsKind(err, kind.want) || ErrorKind(err) != kind.name {
			t.Fatalf("kind %s not restored: %v", kind.name, err)
		}
	}
	if err := KindError("internal", "boom"); ErrorKind(err) != "internal" {
		t.Fatalf("unexpected kind for internal error: %v", err)
	}
}

func TestParseDateBound(t *testing.T) {
	cases := []struct {
		value string
		upper bool
		want  time.Time
	}{
		{"2026-01-31", false, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"2026-01-31", true, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC)},
		{"2026-01-31T12:00:00Z", true, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)},
		{"2026-01-31T12:00:00Z", false, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDateBound(tc.value, tc.upper)
		if err != nil {
			t.Fatalf("ParseDateBound(%q, %v) error = %v", tc.value, tc.upper, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDateBound(%q, %v) = %v, want %v", tc.value, tc.upper, got, tc.want)
		}
	}
	if _, err := ParseDateBound("31/01/2026", true); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}
