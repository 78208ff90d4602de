package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/adapters/dto"
	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
	"github.com/kirillkom/hybrid-retrieval/internal/observability/metrics"
)

const (
	serviceName     = "retrieval-api"
	maxRequestBytes = 1 << 20
)

type Router struct {
	cfg      config.Config
	searcher ports.HybridSearcher
	related  ports.RelatedRecommender
	stats    ports.CorpusStatsReader
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

// NewRouter wires the retrieval endpoints. A nil metrics disables /metrics and request instrumentation.
func NewRouter(
	cfg config.Config,
	searcher ports.HybridSearcher,
	related ports.RelatedRecommender,
	stats ports.CorpusStatsReader,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		searcher: searcher,
		related:  related,
		stats:    stats,
		metrics:  m,
		logger:   slog.Default(),
	}
}

// WithLogger replaces the default logger used for access and error logs.
func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("GET /v1/documents/{id}/related", rt.relatedDocuments)
	mux.HandleFunc("GET /v1/stats", rt.corpusStats)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if rt.searcher == nil {
		writeJSON(w, http.StatusNotImplemented, dto.ErrorResponse{Error: "search is not configured"})
		return
	}

	var req dto.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid json", Kind: "invalid_input"})
		return
	}

	start := time.Now()
	results, err := rt.searcher.Search(r.Context(), req.Query, req.Options(rt.cfg.Search))
	rt.record("search", len(results), start, err)
	if err != nil {
		rt.writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewResultsResponse(results))
}

func (rt *Router) relatedDocuments(w http.ResponseWriter, r *http.Request) {
	if rt.related == nil {
		writeJSON(w, http.StatusNotImplemented, dto.ErrorResponse{Error: "related documents are not configured"})
		return
	}

	filters, err := filtersFromQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Kind: "invalid_input"})
		return
	}

	start := time.Now()
	results, err := rt.related.Related(r.Context(), r.PathValue("id"), filters.Options(rt.cfg.Related))
	rt.record("related", len(results), start, err)
	if err != nil {
		rt.writeError(w, r, "related", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewResultsResponse(results))
}

func (rt *Router) corpusStats(w http.ResponseWriter, r *http.Request) {
	if rt.stats == nil {
		writeJSON(w, http.StatusNotImplemented, dto.ErrorResponse{Error: "stats are not configured"})
		return
	}

	start := time.Now()
	stats, err := rt.stats.Stats(r.Context(), r.URL.Query().Get("scope"))
	rt.record("stats", 1, start, err)
	if err != nil {
		rt.writeError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) record(operation string, results int, start time.Time, err error) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(serviceName, operation, results, time.Since(start), err)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("retrieval_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: dto.ErrorKind(err)})
}

// filtersFromQuery reads scope, threshold, limit, type (repeatable or comma separated), from and to.
func filtersFromQuery(q url.Values) (dto.Filters, error) {
	f := dto.Filters{ProjectScope: strings.TrimSpace(q.Get("scope"))}

	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return dto.Filters{}, fmt.Errorf("threshold must be a number")
		}
		f.SimilarityThreshold = &threshold
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return dto.Filters{}, fmt.Errorf("limit must be an integer")
		}
		f.MaxResults = &limit
	}
	for _, raw := range q["type"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.DocumentTypes = append(f.DocumentTypes, t)
			}
		}
	}

	var err error
	if f.DateFrom, err = parseTimeParam(q, "from", false); err != nil {
		return dto.Filters{}, err
	}
	if f.DateTo, err = parseTimeParam(q, "to", true); err != nil {
		return dto.Filters{}, err
	}
	return f, nil
}

func parseTimeParam(q url.Values, key string, upper bool) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	ts, err := dto.ParseDateBound(v, upper)
	if err != nil {
		return nil, fmt.Errorf("%s %w", key, err)
	}
	return &ts, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
