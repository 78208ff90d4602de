package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/adapters/dto"
	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
	"github.com/kirillkom/hybrid-retrieval/internal/observability/metrics"
)

const serviceName = "retrieval-worker"

type searchMessage struct {
	dto.SearchRequest
	SentAt *time.Time `json:"sent_at,omitempty"`
}

type relatedMessage struct {
	dto.RelatedRequest
	SentAt *time.Time `json:"sent_at,omitempty"`
}

type statsMessage struct {
	dto.StatsRequest
	SentAt *time.Time `json:"sent_at,omitempty"`
}

// Responder answers retrieval requests received over the bus.
type Responder struct {
	subjects Subjects
	searcher ports.HybridSearcher
	related  ports.RelatedRecommender
	stats    ports.CorpusStatsReader

	searchDefaults  domain.SearchOptions
	relatedDefaults domain.SearchOptions
	timeout         time.Duration

	metrics *metrics.ResponderMetrics
	logger  *slog.Logger
}

type ResponderConfig struct {
	Subjects        Subjects
	SearchDefaults  domain.SearchOptions
	RelatedDefaults domain.SearchOptions
	Timeout         time.Duration
	Metrics         *metrics.ResponderMetrics
	Logger          *slog.Logger
}

func NewResponder(
	cfg ResponderConfig,
	searcher ports.HybridSearcher,
	related ports.RelatedRecommender,
	stats ports.CorpusStatsReader,
) *Responder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		subjects:        cfg.Subjects,
		searcher:        searcher,
		related:         related,
		stats:           stats,
		searchDefaults:  cfg.SearchDefaults,
		relatedDefaults: cfg.RelatedDefaults,
		timeout:         cfg.Timeout,
		metrics:         cfg.Metrics,
		logger:          logger,
	}
}

func (r *Responder) Subjects() []string {
	return r.subjects.All()
}

// Handle always produces a reply; failures travel inside the envelope.
func (r *Responder) Handle(ctx context.Context, subject string, data []byte) ([]byte, error) {
	op := r.subjects.operation(subject)
	if op == "" {
		return nil, fmt.Errorf("unexpected subject %q", subject)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.metrics != nil {
		r.metrics.StartMessage()
	}
	start := time.Now()

	var (
		reply   dto.Reply
		results int
		err     error
	)
	switch op {
	case opSearch:
		reply, err = r.handleSearch(ctx, data)
		results = reply.Count
	case opRelated:
		reply, err = r.handleRelated(ctx, data)
		results = reply.Count
	case opStats:
		reply, err = r.handleStats(ctx, data)
		results = 1
	}

	if r.metrics != nil {
		r.metrics.FinishMessage(serviceName, op, results, time.Since(start), err)
	}
	if err != nil {
		reply = dto.Reply{Error: err.Error(), Kind: dto.ErrorKind(err)}
		if kind := reply.Kind; kind != "invalid_input" {
			r.logger.Error("retrieval_failed", "operation", op, "kind", kind, "error", err)
		}
	}
	return json.Marshal(reply)
}

func (r *Responder) handleSearch(ctx context.Context, data []byte) (dto.Reply, error) {
	if r.searcher == nil {
		return dto.Reply{}, fmt.Errorf("search is not configured")
	}
	var msg searchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return dto.Reply{}, domain.WrapError(domain.ErrInvalidInput, "decode search request", err)
	}
	r.observeAge(msg.SentAt)

	results, err := r.searcher.Search(ctx, msg.Query, msg.Options(r.searchDefaults))
	if err != nil {
		return dto.Reply{}, err
	}
	return resultsReply(results), nil
}

func (r *Responder) handleRelated(ctx context.Context, data []byte) (dto.Reply, error) {
	if r.related == nil {
		return dto.Reply{}, fmt.Errorf("related documents are not configured")
	}
	var msg relatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return dto.Reply{}, domain.WrapError(domain.ErrInvalidInput, "decode related request", err)
	}
	r.observeAge(msg.SentAt)

	results, err := r.related.Related(ctx, msg.DocumentID, msg.Options(r.relatedDefaults))
	if err != nil {
		return dto.Reply{}, err
	}
	return resultsReply(results), nil
}

func (r *Responder) handleStats(ctx context.Context, data []byte) (dto.Reply, error) {
	if r.stats == nil {
		return dto.Reply{}, fmt.Errorf("stats are not configured")
	}
	var msg statsMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return dto.Reply{}, domain.WrapError(domain.ErrInvalidInput, "decode stats request", err)
		}
	}
	r.observeAge(msg.SentAt)

	stats, err := r.stats.Stats(ctx, msg.ProjectScope)
	if err != nil {
		return dto.Reply{}, err
	}
	return dto.Reply{Stats: &stats}, nil
}

func (r *Responder) observeAge(sentAt *time.Time) {
	if r.metrics == nil || sentAt == nil {
		return
	}
	r.metrics.ObserveRequestAge(serviceName, time.Since(*sentAt))
}

func resultsReply(results []domain.SearchResult) dto.Reply {
	resp := dto.NewResultsResponse(results)
	return dto.Reply{Results: resp.Results, Count: resp.Count}
}
