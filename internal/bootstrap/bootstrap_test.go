package bootstrap

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/config"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/search/elasticsearch"
	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/vector/qdrant"
)

func testBackends() backends {
	return backends{
		postgres: postgres.NewChunkRepository(nil, 3, "simple"),
		qdrant:   qdrant.New("http://qdrant:6333", "docs", time.Second, nil),
		elastic:  elasticsearch.NewWithClient(nil, "docs", nil),
	}
}

func TestSelectPortsDefaultsToPostgres(t *testing.T) {
	b := testBackends()
	cfg := config.Config{
		VectorBackend:  config.BackendPostgres,
		KeywordBackend: config.BackendPostgres,
		AnchorBackend:  config.BackendPostgres,
	}

	got, err := selectPorts(cfg, b)
	if err != nil {
		t.Fatalf("selectPorts() error = %v", err)
	}
	if got.vectors != b.postgres || got.lexical != b.postgres || got.anchors != b.postgres {
		t.Fatalf("expected postgres for every path, got %+v", got)
	}
}

func TestSelectPortsMixesBackends(t *testing.T) {
	b := testBackends()
	cfg := config.Config{
		VectorBackend:  config.BackendQdrant,
		KeywordBackend: config.BackendElasticsearch,
		AnchorBackend:  config.BackendQdrant,
	}

	got, err := selectPorts(cfg, b)
	if err != nil {
		t.Fatalf("selectPorts() error = %v", err)
	}
	if got.vectors != b.qdrant || got.lexical != b.elastic || got.anchors != b.qdrant {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestSelectPortsRejectsUninitializedBackend(t *testing.T) {
	b := testBackends()
	b.elastic = nil
	cfg := config.Config{
		VectorBackend:  config.BackendPostgres,
		KeywordBackend: config.BackendElasticsearch,
		AnchorBackend:  config.BackendPostgres,
	}

	_, err := selectPorts(cfg, b)
	if err == nil || !strings.Contains(err.Error(), "elasticsearch") {
		t.Fatalf("expected uninitialized elasticsearch error, got %v", err)
	}
}

func TestSelectPortsRequiresPostgres(t *testing.T) {
	b := testBackends()
	b.postgres = nil
	cfg := config.Config{
		VectorBackend:  config.BackendQdrant,
		KeywordBackend: config.BackendQdrant,
		AnchorBackend:  config.BackendQdrant,
	}

	if _, err := selectPorts(cfg, b); err == nil {
		t.Fatalf("expected error without postgres")
	}
}

func TestExecutorConfigHonorsAttemptsAndBreaker(t *testing.T) {
	cfg := config.Config{BreakerEnabled: false}

	rc := executorConfig(cfg, 1)
	if rc.RetryMaxAttempts != 1 || rc.BreakerEnabled {
		t.Fatalf("unexpected executor config: %+v", rc)
	}
}
