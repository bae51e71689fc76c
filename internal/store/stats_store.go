package store

import (
	"context"

	"automatch/internal/models"
)

type StatsStore struct {
	db DB
}

func NewStatsStore(db DB) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) Summary(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(1) FROM dealers WHERE status = 'active') AS active_dealers,
			(SELECT COUNT(1) FROM dealers WHERE status = 'pending') AS pending_dealers,
			(SELECT COUNT(1) FROM dealers WHERE status = 'blocked') AS blocked_dealers,
			(SELECT COUNT(1) FROM leads WHERE status = 'new') AS new_leads,
			(SELECT COUNT(1) FROM leads WHERE status = 'unlocked') AS unlocked_leads,
			(SELECT COUNT(1) FROM credit_ledger_entries WHERE kind = 'unlock-debit') AS total_unlocks,
			(SELECT COALESCE(SUM(credits), 0) FROM credit_purchases WHERE status = 'completed') AS credits_sold,
			(SELECT COALESCE(SUM(price_cents), 0) FROM credit_purchases WHERE status = 'completed') AS revenue_cents
	`)
	if err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}
