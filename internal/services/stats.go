package services

import (
	"context"

	"automatch/internal/models"
	"automatch/internal/money"
)

type StatsReport struct {
	models.Stats
	Revenue               string `json:"revenue"`
	AveragePricePerCredit string `json:"average_price_per_credit"`
}

func (s *ProvisioningService) Stats(ctx context.Context) (StatsReport, error) {
	stats, err := s.stats.Summary(ctx)
	if err != nil {
		return StatsReport{}, err
	}
	return StatsReport{
		Stats:                 stats,
		Revenue:               money.FormatBRL(stats.RevenueCents),
		AveragePricePerCredit: money.UnitPrice(stats.RevenueCents, stats.CreditsSold),
	}, nil
}
