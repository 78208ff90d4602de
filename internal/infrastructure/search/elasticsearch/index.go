package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/resilience"
)

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Timeout   time.Duration
}

// Index runs lexical chunk queries against an Elasticsearch index whose documents
// mirror the chunk record (document_id, chunk_index, title, content, metadata, project_scope, created_at).
type Index struct {
	client   *elasticsearch.Client
	index    string
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Index, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// Retries are owned by the executor.
		DisableRetry: true,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return NewWithClient(client, cfg.Index, executor), nil
}

func NewWithClient(client *elasticsearch.Client, index string, executor *resilience.Executor) *Index {
	return &Index{client: client, index: index, executor: executor}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string      `json:"_id"`
			Source chunkSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type chunkSource struct {
	DocumentID   string         `json:"document_id"`
	ChunkIndex   int            `json:"chunk_index"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	ProjectScope string         `json:"project_scope"`
	CreatedAt    *time.Time     `json:"created_at"`
}

// SearchText runs a multi_match over title (boosted) and content. Scores are not returned.
func (i *Index) SearchText(ctx context.Context, q domain.KeywordQuery) ([]domain.Chunk, error) {
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshal elasticsearch query: %w", err)
	}

	resp, err := resilience.Call(ctx, i.executor, "elasticsearch.search_text", func(callCtx context.Context) (searchResponse, error) {
		return i.search(callCtx, body)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("elasticsearch search text", err, resilience.ClassifyHTTPError)
	}

	out := make([]domain.Chunk, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		out = append(out, hit.Source.toChunk(hit.ID))
	}
	return out, nil
}

func (i *Index) search(ctx context.Context, body []byte) (searchResponse, error) {
	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return searchResponse{}, fmt.Errorf("elasticsearch search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return searchResponse{}, &HTTPStatusError{
			StatusCode: res.StatusCode,
			Status:     res.Status(),
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return searchResponse{}, fmt.Errorf("decode elasticsearch response: %w", err)
	}
	return out, nil
}

func buildSearchBody(q domain.KeywordQuery) map[string]any {
	boolQuery := map[string]any{
		"must": []any{
			map[string]any{
				"multi_match": map[string]any{
					"query":  q.Query,
					"fields": []string{"title^2", "content"},
				},
			},
		},
	}
	if q.Scope != "" {
		boolQuery["filter"] = []any{
			map[string]any{"term": map[string]any{"project_scope": q.Scope}},
		}
	}
	return map[string]any{
		"size":  q.Limit,
		"query": map[string]any{"bool": boolQuery},
	}
}

func (s chunkSource) toChunk(id string) domain.Chunk {
	chunk := domain.Chunk{
		ID:           id,
		DocumentID:   s.DocumentID,
		ChunkIndex:   s.ChunkIndex,
		Title:        s.Title,
		Content:      s.Content,
		Metadata:     domain.MetadataFromMap(s.Metadata),
		ProjectScope: s.ProjectScope,
	}
	if s.CreatedAt != nil {
		chunk.CreatedAt = s.CreatedAt.UTC()
		if chunk.Metadata.CreatedAt == nil {
			ts := chunk.CreatedAt
			chunk.Metadata.CreatedAt = &ts
		}
	}
	return chunk
}

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "elasticsearch status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("elasticsearch search status: %s", e.Status)
	}
	return fmt.Sprintf("elasticsearch search status: %s: %s", e.Status, e.Body)
}

func (e *HTTPStatusError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
