package domain

import (
	"strings"
	"time"
)

// Chunk is the unit of retrieval owned by the ingestion pipeline.
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Metadata     Metadata  `json:"metadata"`
	Embedding    []float32 `json:"-"`
	ProjectScope string    `json:"project_scope,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Metadata is the parsed form of a chunk's open key/value metadata.
type Metadata struct {
	DocumentType string         `json:"document_type,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

var (
	documentTypeKeys = []string{"document_type", "documentType", "type"}
	createdAtKeys    = []string{"created_at", "createdAt"}
)

// MetadataFromMap parses raw store metadata. Unrecognized keys are kept in Attributes.
func MetadataFromMap(raw map[string]any) Metadata {
	var md Metadata
	consumed := make(map[string]struct{}, 2)

	for _, key := range documentTypeKeys {
		v, ok := raw[key].(string)
		if !ok {
			continue
		}
		if s := strings.TrimSpace(v); s != "" {
			md.DocumentType = s
			consumed[key] = struct{}{}
			break
		}
	}
	for _, key := range createdAtKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if ts, ok := parseTimestamp(v); ok {
			md.CreatedAt = &ts
			consumed[key] = struct{}{}
			break
		}
	}

	for k, v := range raw {
		if _, ok := consumed[k]; ok {
			continue
		}
		if md.Attributes == nil {
			md.Attributes = make(map[string]any, len(raw))
		}
		md.Attributes[k] = v
	}
	return md
}

func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	}
	return time.Time{}, false
}

// SearchResult is built fresh per query and never persisted.
type SearchResult struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	ChunkIndex int      `json:"chunk_index"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata"`
	Similarity float64  `json:"similarity"`
}

func ResultFromChunk(chunk Chunk, similarity float64) SearchResult {
	return SearchResult{
		ID:         chunk.ID,
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.ChunkIndex,
		Title:      chunk.Title,
		Content:    chunk.Content,
		Metadata:   chunk.Metadata,
		Similarity: similarity,
	}
}

type CorpusStats struct {
	TotalDocuments int64      `json:"total_documents"`
	TotalChunks    int64      `json:"total_chunks"`
	LastUpdate     *time.Time `json:"last_update"`
}

// VectorQuery is the request sent to a similarity-capable store.
type VectorQuery struct {
	Embedding []float32
	Scope     string
	Threshold float64
	Limit     int
}

// KeywordQuery is the request sent to a lexical search facility.
type KeywordQuery struct {
	Query string
	Scope string
	Limit int
}
