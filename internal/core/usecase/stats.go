package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

type StatsUseCase struct {
	source ports.StatsSource
}

func NewStatsUseCase(source ports.StatsSource) (*StatsUseCase, error) {
	if source == nil {
		return nil, ErrStatsSourceRequired
	}
	return &StatsUseCase{source: source}, nil
}

func (uc *StatsUseCase) Stats(ctx context.Context, scope string) (domain.CorpusStats, error) {
	stats, err := uc.source.Stats(ctx, strings.TrimSpace(scope))
	if err != nil {
		return domain.CorpusStats{}, domain.WrapError(domain.ErrStoreUnavailable, "corpus stats", err)
	}
	if stats.TotalChunks == 0 {
		stats.LastUpdate = nil
	}
	return stats, nil
}
