// Package dto holds the wire shapes shared by the HTTP, NATS and MCP surfaces.
package dto

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

// Filters are optional overrides applied on top of configured defaults.
type Filters struct {
	ProjectScope        string     `json:"project_scope,omitempty"`
	SimilarityThreshold *float64   `json:"similarity_threshold,omitempty"`
	MaxResults          *int       `json:"max_results,omitempty"`
	DocumentTypes       []string   `json:"document_types,omitempty"`
	DateFrom            *time.Time `json:"date_from,omitempty"`
	DateTo              *time.Time `json:"date_to,omitempty"`
}

// Options merges f into defaults. Validation happens in the use case.
func (f Filters) Options(defaults domain.SearchOptions) domain.SearchOptions {
	opts := defaults
	if f.ProjectScope != "" {
		opts.ProjectScope = f.ProjectScope
	}
	if f.SimilarityThreshold != nil {
		opts.SimilarityThreshold = *f.SimilarityThreshold
	}
	if f.MaxResults != nil {
		opts.MaxResults = *f.MaxResults
	}
	if len(f.DocumentTypes) > 0 {
		opts.DocumentTypes = append([]string(nil), f.DocumentTypes...)
	}
	if f.DateFrom != nil || f.DateTo != nil {
		opts.DateRange = &domain.DateRange{From: f.DateFrom, To: f.DateTo}
	}
	return opts
}

const dateOnlyLayout = "2006-01-02"

// ParseDateBound reads an RFC3339 timestamp or a YYYY-MM-DD date. A date-only
// upper bound covers the whole day, so it resolves to the last nanosecond of it.
func ParseDateBound(value string, upper bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	day, err := time.Parse(dateOnlyLayout, value)
	if err != nil {
		return time.Time{}, errors.New("must be RFC3339 or YYYY-MM-DD")
	}
	if upper {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

type SearchRequest struct {
	Query string `json:"query"`
	Filters
}

type RelatedRequest struct {
	DocumentID string `json:"document_id"`
	Filters
}

type StatsRequest struct {
	ProjectScope string `json:"project_scope,omitempty"`
}

type ResultsResponse struct {
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func NewResultsResponse(results []domain.SearchResult) ResultsResponse {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return ResultsResponse{Results: results, Count: len(results)}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ErrorKind names the semantic error class for clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case domain.IsKind(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

// FiltersFromOptions renders fully resolved options so the receiver applies none of its own defaults.
func FiltersFromOptions(opts domain.SearchOptions) Filters {
	threshold := opts.SimilarityThreshold
	maxResults := opts.MaxResults
	f := Filters{
		ProjectScope:        opts.ProjectScope,
		SimilarityThreshold: &threshold,
		MaxResults:          &maxResults,
		DocumentTypes:       opts.DocumentTypes,
	}
	if opts.DateRange != nil {
		f.DateFrom = opts.DateRange.From
		f.DateTo = opts.DateRange.To
	}
	return f
}

// Reply is the message-bus envelope. Exactly one of Results, Stats or Error is meaningful.
type Reply struct {
	Results []domain.SearchResult `json:"results,omitempty"`
	Count   int                   `json:"count"`
	Stats   *domain.CorpusStats   `json:"stats,omitempty"`
	Error   string                `json:"error,omitempty"`
	Kind    string                `json:"kind,omitempty"`
}

// KindError restores the semantic error class named by ErrorKind.
func KindError(kind, message string) error {
	cause := errors.New(message)
	switch kind {
	case "invalid_input":
		return domain.WrapError(domain.ErrInvalidInput, "remote", cause)
	case "embedding_unavailable":
		return domain.WrapError(domain.ErrEmbeddingUnavailable, "remote", cause)
	case "store_unavailable":
		return domain.WrapError(domain.ErrStoreUnavailable, "remote", cause)
	case "temporary":
		return domain.WrapError(domain.ErrTemporary, "remote", cause)
	default:
		return fmt.Errorf("remote: %w", cause)
	}
}
