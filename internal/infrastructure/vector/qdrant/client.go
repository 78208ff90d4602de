package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "text"
)

// Client reads chunk points that carry a named dense vector and a named sparse "text" vector.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type queryPoint struct {
	ID      json.RawMessage            `json:"id"`
	Score   float64                    `json:"score"`
	Payload map[string]any             `json:"payload"`
	Vector  map[string]json.RawMessage `json:"vector"`
}

type pointsResponse struct {
	Result struct {
		Points []queryPoint `json:"points"`
	} `json:"result"`
}

func (c *Client) MatchChunks(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"query":           q.Embedding,
		"using":           denseVectorName,
		"limit":           q.Limit,
		"score_threshold": q.Threshold,
		"with_payload":    true,
	}
	if filter := buildScopeFilter(q.Scope, ""); filter != nil {
		reqBody["filter"] = filter
	}

	points, err := c.queryPoints(ctx, "points/query", reqBody, "match chunks")
	if err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		out = append(out, domain.ResultFromChunk(pointToChunk(p), p.Score))
	}
	return out, nil
}

// SearchText queries the sparse BM25 vector. Qdrant's sparse score is discarded.
func (c *Client) SearchText(ctx context.Context, q domain.KeywordQuery) ([]domain.Chunk, error) {
	sparse := encodeSparseQuery(q.Query)
	if len(sparse.Indices) == 0 {
		return []domain.Chunk{}, nil
	}

	reqBody := map[string]any{
		"query":        sparse,
		"using":        sparseVectorName,
		"limit":        q.Limit,
		"with_payload": true,
	}
	if filter := buildScopeFilter(q.Scope, ""); filter != nil {
		reqBody["filter"] = filter
	}

	points, err := c.queryPoints(ctx, "points/query", reqBody, "search text")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, 0, len(points))
	for _, p := range points {
		out = append(out, pointToChunk(p))
	}
	return out, nil
}

// AnchorChunks scrolls a document's points with their dense vectors and orders them by chunk index.
func (c *Client) AnchorChunks(ctx context.Context, documentID, scope string, limit int) ([]domain.Chunk, error) {
	reqBody := map[string]any{
		"filter":       buildScopeFilter(scope, documentID),
		"limit":        limit,
		"with_payload": true,
		"with_vector":  []string{denseVectorName},
	}

	points, err := c.queryPoints(ctx, "points/scroll", reqBody, "load anchor chunks")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, 0, len(points))
	for _, p := range points {
		chunk := pointToChunk(p)
		if raw, ok := p.Vector[denseVectorName]; ok {
			if err := json.Unmarshal(raw, &chunk.Embedding); err != nil {
				return nil, fmt.Errorf("decode anchor vector: %w", err)
			}
		}
		if len(chunk.Embedding) == 0 {
			continue
		}
		out = append(out, chunk)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

// EnsureCollection creates the collection with the dense and sparse vector layout used by the readers.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	_, err := resilience.Call(ctx, c.executor, "qdrant.ensure_collection", func(callCtx context.Context) (struct{}, error) {
		// 409 means the collection already exists.
		return struct{}{}, c.doJSON(callCtx, http.MethodPut, url, reqBody, nil, "ensure collection", http.StatusConflict)
	}, classifyQdrantError)
	if err != nil {
		return wrapTemporaryIfNeeded("qdrant ensure collection", err)
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) queryPoints(ctx context.Context, path string, reqBody map[string]any, operation string) ([]queryPoint, error) {
	url := fmt.Sprintf("%s/collections/%s/%s", c.baseURL, c.collection, path)
	points, err := resilience.Call(ctx, c.executor, "qdrant."+strings.ReplaceAll(operation, " ", "_"),
		func(callCtx context.Context) ([]queryPoint, error) {
			var resp pointsResponse
			if err := c.doJSON(callCtx, http.MethodPost, url, reqBody, &resp, operation); err != nil {
				return nil, err
			}
			return resp.Result.Points, nil
		}, classifyQdrantError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant "+operation, err)
	}
	return points, nil
}

// buildScopeFilter returns nil when neither scope nor document id is set.
func buildScopeFilter(scope, documentID string) map[string]any {
	must := make([]map[string]any, 0, 2)
	if documentID != "" {
		must = append(must, matchCondition("doc_id", documentID))
	}
	if scope != "" {
		must = append(must, matchCondition("project_scope", scope))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func pointToChunk(p queryPoint) domain.Chunk {
	chunk := domain.Chunk{
		ID:           pointID(p.ID),
		DocumentID:   getStringPayload(p.Payload, "doc_id"),
		ChunkIndex:   getIntPayload(p.Payload, "chunk_index"),
		Title:        getStringPayload(p.Payload, "title"),
		Content:      getStringPayload(p.Payload, "text"),
		ProjectScope: getStringPayload(p.Payload, "project_scope"),
	}
	meta, _ := p.Payload["metadata"].(map[string]any)
	chunk.Metadata = domain.MetadataFromMap(meta)
	if chunk.Metadata.CreatedAt == nil {
		if v, ok := p.Payload["created_at"]; ok {
			chunk.Metadata.CreatedAt = domain.MetadataFromMap(map[string]any{"created_at": v}).CreatedAt
		}
	}
	if chunk.Metadata.CreatedAt != nil {
		chunk.CreatedAt = *chunk.Metadata.CreatedAt
	}
	return chunk
}

// pointID renders numeric and UUID point ids as plain strings.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return strings.TrimSpace(string(raw))
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
