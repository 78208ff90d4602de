package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

const (
	defaultTextSearchConfig = "simple"
	// Row slices grow past this on demand; the query limit is caller controlled.
	maxPreallocRows = 64
)

var textSearchConfigPattern = regexp.MustCompile(`^[a-z_]+$`)

// ChunkRepository reads document chunks stored with a pgvector embedding column
// and a generated tsvector column.
type ChunkRepository struct {
	db               *sql.DB
	dimensions       int
	textSearchConfig string
}

func NewChunkRepository(db *sql.DB, dimensions int, textSearchConfig string) *ChunkRepository {
	if !textSearchConfigPattern.MatchString(textSearchConfig) {
		textSearchConfig = defaultTextSearchConfig
	}
	return &ChunkRepository{
		db:               db,
		dimensions:       dimensions,
		textSearchConfig: textSearchConfig,
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	if r.dimensions <= 0 {
		return fmt.Errorf("ensure schema: embedding dimensions must be positive, got %d", r.dimensions)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d),
	project_scope TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	search_tsv tsvector GENERATED ALWAYS AS (
		to_tsvector('%s'::regconfig, coalesce(title, '') || ' ' || content)
	) STORED,
	UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_scope ON document_chunks(project_scope);
CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id, chunk_index);
CREATE INDEX IF NOT EXISTS idx_document_chunks_tsv ON document_chunks USING GIN (search_tsv);
CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops);
`, r.dimensions, r.textSearchConfig)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// MatchChunks orders by cosine distance and reports similarity as 1 - distance.
func (r *ChunkRepository) MatchChunks(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, chunk_index, title, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
FROM document_chunks
WHERE embedding IS NOT NULL
	AND ($2::text = '' OR project_scope = $2)
	AND 1 - (embedding <=> $1) >= $3
ORDER BY embedding <=> $1, document_id, chunk_index
LIMIT $4
`, pgvector.NewVector(q.Embedding), q.Scope, q.Threshold, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchResult, 0, min(q.Limit, maxPreallocRows))
	for rows.Next() {
		var (
			c           domain.Chunk
			metadataRaw []byte
			similarity  float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Title, &c.Content, &metadataRaw, &c.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan matched chunk: %w", err)
		}
		if c.Metadata, err = decodeMetadata(metadataRaw, c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, domain.ResultFromChunk(c, similarity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matched chunks: %w", err)
	}
	return out, nil
}

// SearchText matches with websearch_to_tsquery and orders by ts_rank. The rank itself is not returned.
func (r *ChunkRepository) SearchText(ctx context.Context, q domain.KeywordQuery) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.document_id, c.chunk_index, c.title, c.content, c.metadata, c.project_scope, c.created_at
FROM document_chunks c, websearch_to_tsquery($1::regconfig, $2) AS query
WHERE c.search_tsv @@ query
	AND ($3::text = '' OR c.project_scope = $3)
ORDER BY ts_rank(c.search_tsv, query) DESC, c.document_id, c.chunk_index
LIMIT $4
`, r.textSearchConfig, q.Query, q.Scope, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0, min(q.Limit, maxPreallocRows))
	for rows.Next() {
		var (
			c           domain.Chunk
			metadataRaw []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Title, &c.Content, &metadataRaw, &c.ProjectScope, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan text match: %w", err)
		}
		if c.Metadata, err = decodeMetadata(metadataRaw, c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text matches: %w", err)
	}
	return out, nil
}

// AnchorChunks returns the lowest-indexed embedded chunks of a document.
func (r *ChunkRepository) AnchorChunks(ctx context.Context, documentID, scope string, limit int) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, chunk_index, title, content, metadata, project_scope, created_at, embedding
FROM document_chunks
WHERE document_id = $1
	AND embedding IS NOT NULL
	AND ($2::text = '' OR project_scope = $2)
ORDER BY chunk_index
LIMIT $3
`, documentID, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("load anchor chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0, min(limit, maxPreallocRows))
	for rows.Next() {
		var (
			c           domain.Chunk
			metadataRaw []byte
			embedding   pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Title, &c.Content, &metadataRaw, &c.ProjectScope, &c.CreatedAt, &embedding); err != nil {
			return nil, fmt.Errorf("scan anchor chunk: %w", err)
		}
		if c.Metadata, err = decodeMetadata(metadataRaw, c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anchor chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) Stats(ctx context.Context, scope string) (domain.CorpusStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(DISTINCT document_id), COUNT(*), MAX(created_at)
FROM document_chunks
WHERE ($1::text = '' OR project_scope = $1)
`, scope)

	var (
		stats      domain.CorpusStats
		lastUpdate sql.NullTime
	)
	if err := row.Scan(&stats.TotalDocuments, &stats.TotalChunks, &lastUpdate); err != nil {
		return domain.CorpusStats{}, fmt.Errorf("scan corpus stats: %w", err)
	}
	if lastUpdate.Valid {
		ts := lastUpdate.Time.UTC()
		stats.LastUpdate = &ts
	}
	return stats, nil
}

// decodeMetadata falls back to the row's created_at when the metadata carries no timestamp.
func decodeMetadata(raw []byte, rowCreatedAt time.Time) (domain.Metadata, error) {
	var values map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return domain.Metadata{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	meta := domain.MetadataFromMap(values)
	if meta.CreatedAt == nil && !rowCreatedAt.IsZero() {
		ts := rowCreatedAt.UTC()
		meta.CreatedAt = &ts
	}
	return meta, nil
}
