package usecase

import (
	"sort"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

type chunkKey struct {
	documentID string
	chunkIndex int
}

type fusedCandidate struct {
	result domain.SearchResult
	score  float64
}

// fuseWeighted blends rank-aware vector scores with flat keyword scores.
// A chunk found by both paths keeps the larger of the two scores.
func fuseWeighted(vector, keyword []domain.SearchResult, policy domain.FusionPolicy) []domain.SearchResult {
	acc := make(map[chunkKey]fusedCandidate, len(vector)+len(keyword))
	order := make([]chunkKey, 0, len(vector)+len(keyword))

	n := float64(len(vector))
	for rank, r := range vector {
		key := resultKey(r)
		rankTerm := 1 - float64(rank)/n
		score := clampUnit(r.Similarity*policy.VectorSimilarityWeight + rankTerm*policy.VectorRankWeight)

		current, seen := acc[key]
		if !seen {
			order = append(order, key)
			acc[key] = fusedCandidate{result: r, score: score}
			continue
		}
		current.result = preferRicherResult(current.result, r)
		if score > current.score {
			current.score = score
		}
		acc[key] = current
	}

	for _, r := range keyword {
		key := resultKey(r)
		score := clampUnit(r.Similarity * policy.KeywordWeight)

		current, seen := acc[key]
		if !seen {
			order = append(order, key)
			acc[key] = fusedCandidate{result: r, score: score}
			continue
		}
		current.result = preferRicherResult(current.result, r)
		if score > current.score {
			current.score = score
		}
		acc[key] = current
	}

	out := make([]domain.SearchResult, 0, len(acc))
	for _, key := range order {
		c := acc[key]
		result := c.result
		result.Similarity = c.score
		out = append(out, result)
	}

	sortResults(out)
	return out
}

func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].ID < results[j].ID
	})
}

func trimResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 {
		return results[:0]
	}
	if len(results) <= limit {
		return results
	}
	return results[:limit]
}

func resultKey(r domain.SearchResult) chunkKey {
	if r.DocumentID != "" {
		return chunkKey{documentID: r.DocumentID, chunkIndex: r.ChunkIndex}
	}
	// Records without a document id only dedupe against themselves.
	return chunkKey{documentID: "\x00" + r.ID, chunkIndex: r.ChunkIndex}
}

func preferRicherResult(current, candidate domain.SearchResult) domain.SearchResult {
	if current.ID == "" && candidate.ID != "" {
		current.ID = candidate.ID
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Metadata.DocumentType == "" && candidate.Metadata.DocumentType != "" {
		current.Metadata.DocumentType = candidate.Metadata.DocumentType
	}
	if current.Metadata.CreatedAt == nil && candidate.Metadata.CreatedAt != nil {
		current.Metadata.CreatedAt = candidate.Metadata.CreatedAt
	}
	return current
}
