package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

var (
	ErrEmbedderRequired     = errors.New("usecase: embedder is required")
	ErrVectorStoreRequired  = errors.New("usecase: vector store is required")
	ErrLexicalIndexRequired = errors.New("usecase: lexical index is required")
	ErrAnchorSourceRequired = errors.New("usecase: anchor source is required")
	ErrStatsSourceRequired  = errors.New("usecase: stats source is required")

	errEmptyQuery      = errors.New("query is empty")
	errEmptyDocumentID = errors.New("document id is empty")
)

type settings struct {
	logger              *slog.Logger
	observer            ports.RetrievalObserver
	anchorLimit         int
	candidateMultiplier int
	maxResultsLimit     int
}

func defaultSettings() settings {
	return settings{
		logger:              slog.Default(),
		observer:            noopObserver{},
		anchorLimit:         3,
		candidateMultiplier: 3,
		maxResultsLimit:     domain.MaxResultsLimit,
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Option configures the retrieval use cases.
type Option func(*settings)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithObserver receives keyword degradation and anchor skip events.
func WithObserver(observer ports.RetrievalObserver) Option {
	return func(s *settings) {
		if observer == nil {
			observer = noopObserver{}
		}
		s.observer = observer
	}
}

// WithAnchorLimit caps how many embedded chunks of a document are used as anchors.
func WithAnchorLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.anchorLimit = n
		}
	}
}

// WithCandidateMultiplier scales the per-anchor search limit relative to the requested result count.
func WithCandidateMultiplier(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.candidateMultiplier = n
		}
	}
}

// WithMaxResultsLimit sets the largest MaxResults a request may ask for.
// Default is domain.MaxResultsLimit.
func WithMaxResultsLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxResultsLimit = n
		}
	}
}

type noopObserver struct{}

func (noopObserver) KeywordDegraded() {}
func (noopObserver) AnchorSkipped()   {}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
