package usecase

import (
	"strings"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

// FilterResults drops entries outside the document type allow-list or the date range.
// Survivors keep their input order.
func FilterResults(results []domain.SearchResult, opts domain.SearchOptions) []domain.SearchResult {
	if len(opts.DocumentTypes) == 0 && opts.DateRange == nil {
		return results
	}

	allowed := make(map[string]struct{}, len(opts.DocumentTypes))
	for _, t := range opts.DocumentTypes {
		allowed[normalizeDocumentType(t)] = struct{}{}
	}

	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if len(allowed) > 0 {
			if _, ok := allowed[normalizeDocumentType(r.Metadata.DocumentType)]; !ok {
				continue
			}
		}
		if opts.DateRange != nil {
			// No timestamp means the entry cannot be placed in the range.
			if r.Metadata.CreatedAt == nil || !opts.DateRange.Contains(*r.Metadata.CreatedAt) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func normalizeDocumentType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
