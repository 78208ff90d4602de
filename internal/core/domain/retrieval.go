package domain

import (
	"math"
	"strings"
	"time"
)

// DateRange bounds a chunk's metadata creation timestamp. Both ends are inclusive and optional.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (r DateRange) Contains(ts time.Time) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil && ts.After(*r.To) {
		return false
	}
	return true
}

type SearchOptions struct {
	ProjectScope        string     `json:"project_scope,omitempty"`
	SimilarityThreshold float64    `json:"similarity_threshold"`
	MaxResults          int        `json:"max_results"`
	DocumentTypes       []string   `json:"document_types,omitempty"`
	DateRange           *DateRange `json:"date_range,omitempty"`
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		SimilarityThreshold: 0.7,
		MaxResults:          10,
	}
}

func DefaultRelatedOptions() SearchOptions {
	return SearchOptions{
		SimilarityThreshold: 0.8,
		MaxResults:          5,
	}
}

// MaxResultsLimit is the default ceiling on MaxResults for a single request.
const MaxResultsLimit = 1000

// Validate is called once at the request boundary.
func (o SearchOptions) Validate() error {
	return o.ValidateLimit(MaxResultsLimit)
}

// ValidateLimit is Validate with a caller-supplied MaxResults ceiling.
// A non-positive limit means MaxResultsLimit.
func (o SearchOptions) ValidateLimit(limit int) error {
	if limit <= 0 {
		limit = MaxResultsLimit
	}
	if math.IsNaN(o.SimilarityThreshold) || o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		return invalidInput("similarity threshold must be within [0,1], got %v", o.SimilarityThreshold)
	}
	if o.MaxResults < 0 {
		return invalidInput("max results must not be negative, got %d", o.MaxResults)
	}
	if o.MaxResults > limit {
		return invalidInput("max results must be at most %d, got %d", limit, o.MaxResults)
	}
	if o.DateRange != nil && o.DateRange.From != nil && o.DateRange.To != nil && o.DateRange.From.After(*o.DateRange.To) {
		return invalidInput("date range start %s is after end %s",
			o.DateRange.From.Format(time.RFC3339), o.DateRange.To.Format(time.RFC3339))
	}
	for _, t := range o.DocumentTypes {
		if strings.TrimSpace(t) == "" {
			return invalidInput("document type allow-list contains an empty entry")
		}
	}
	return nil
}

// FusionPolicy holds the tunable weights used to blend vector and keyword evidence.
type FusionPolicy struct {
	VectorSimilarityWeight float64 `json:"vector_similarity_weight" yaml:"vector_similarity_weight"`
	VectorRankWeight       float64 `json:"vector_rank_weight" yaml:"vector_rank_weight"`
	KeywordWeight          float64 `json:"keyword_weight" yaml:"keyword_weight"`
	KeywordConfidence      float64 `json:"keyword_confidence" yaml:"keyword_confidence"`
}

func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{
		VectorSimilarityWeight: 0.7,
		VectorRankWeight:       0.3,
		KeywordWeight:          0.5,
		KeywordConfidence:      0.8,
	}
}

// Validate keeps every fused score inside [0,1].
func (p FusionPolicy) Validate() error {
	for name, v := range map[string]float64{
		"vector similarity weight": p.VectorSimilarityWeight,
		"vector rank weight":       p.VectorRankWeight,
		"keyword weight":           p.KeywordWeight,
		"keyword confidence":       p.KeywordConfidence,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return invalidInput("%s must be within [0,1], got %v", name, v)
		}
	}
	if p.VectorSimilarityWeight+p.VectorRankWeight > 1+1e-9 {
		return invalidInput("vector similarity and rank weights must sum to at most 1, got %v",
			p.VectorSimilarityWeight+p.VectorRankWeight)
	}
	return nil
}
