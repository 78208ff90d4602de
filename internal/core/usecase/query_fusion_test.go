package usecase

import (
	"testing"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

func TestFuseWeightedDedupesByDocumentAndChunkIndex(t *testing.T) {
	policy := domain.DefaultFusionPolicy()
	vector := []domain.SearchResult{
		hit("vec-id", "doc-1", 0, 0.9),
		hit("vec-id-2", "doc-1", 1, 0.8),
	}
	// Same logical chunk under a different record id from the lexical store.
	keyword := []domain.SearchResult{
		{ID: "lex-id", DocumentID: "doc-1", ChunkIndex: 0, Similarity: 0.8},
	}

	out := fuseWeighted(vector, keyword, policy)
	if len(out) != 2 {
		t.Fatalf("expected 2 fused results, got %d", len(out))
	}
	if out[0].ID != "vec-id" {
		t.Fatalf("expected first-seen record to be kept, got %q", out[0].ID)
	}
	if out[0].Content == "" {
		t.Fatalf("expected content to survive merge")
	}
}

func TestFuseWeightedRankTermDecreasesWithPosition(t *testing.T) {
	policy := domain.DefaultFusionPolicy()
	vector := []domain.SearchResult{
		hit("a", "doc-a", 0, 0.8),
		hit("b", "doc-b", 0, 0.8),
		hit("c", "doc-c", 0, 0.8),
		hit("d", "doc-d", 0, 0.8),
	}

	out := fuseWeighted(vector, nil, policy)
	want := []float64{0.56 + 0.3, 0.56 + 0.225, 0.56 + 0.15, 0.56 + 0.075}
	for i := range want {
		if !approxEqual(out[i].Similarity, want[i]) {
			t.Fatalf("rank %d: expected %v got %v", i, want[i], out[i].Similarity)
		}
	}
}

func TestFuseWeightedKeywordOnlyUsesFlatScore(t *testing.T) {
	policy := domain.DefaultFusionPolicy()
	keyword := []domain.SearchResult{
		hit("k1", "doc-b", 0, 0.8),
		hit("k2", "doc-a", 3, 0.8),
		hit("k3", "doc-a", 1, 0.8),
	}

	out := fuseWeighted(nil, keyword, policy)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	for _, r := range out {
		if !approxEqual(r.Similarity, 0.4) {
			t.Fatalf("expected flat keyword score 0.4, got %v", r.Similarity)
		}
	}
	// Equal scores break ties by document id then chunk index.
	if out[0].ID != "k3" || out[1].ID != "k2" || out[2].ID != "k1" {
		t.Fatalf("unexpected tie-break order: %s,%s,%s", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestFuseWeightedEmptyInputs(t *testing.T) {
	out := fuseWeighted(nil, nil, domain.DefaultFusionPolicy())
	if out == nil || len(out) != 0 {
		t.Fatalf("expected non-nil empty slice, got %#v", out)
	}
}

func TestFuseWeightedRecordsWithoutDocumentIDStayDistinct(t *testing.T) {
	vector := []domain.SearchResult{{ID: "x", Similarity: 0.9}, {ID: "y", Similarity: 0.9}}

	out := fuseWeighted(vector, nil, domain.DefaultFusionPolicy())
	if len(out) != 2 {
		t.Fatalf("expected records without document id to stay distinct, got %d", len(out))
	}
}

func TestPreferRicherResultFillsMissingFields(t *testing.T) {
	current := domain.SearchResult{DocumentID: "doc-1"}
	candidate := domain.SearchResult{
		ID:       "c1",
		Title:    "Plan",
		Content:  "body",
		Metadata: domain.Metadata{DocumentType: "rfp"},
	}

	got := preferRicherResult(current, candidate)
	if got.ID != "c1" || got.Title != "Plan" || got.Content != "body" || got.Metadata.DocumentType != "rfp" {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestTrimResults(t *testing.T) {
	results := []domain.SearchResult{hit("a", "a", 0, 1), hit("b", "b", 0, 1)}

	if got := trimResults(results, 0); len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
	if got := trimResults(results, 1); len(got) != 1 {
		t.Fatalf("expected 1, got %d", len(got))
	}
	if got := trimResults(results, 5); len(got) != 2 {
		t.Fatalf("expected no padding, got %d", len(got))
	}
}
