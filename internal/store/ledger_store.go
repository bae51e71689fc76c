package store

import (
	"context"

	"automatch/internal/models"
)

type LedgerStore struct {
	db DB
}

const ledgerColumns = `id, dealer_id, kind, amount, note, reference, client_request_id, created_at`

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Insert(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	query := `
		INSERT INTO credit_ledger_entries (id, dealer_id, kind, amount, note, reference, client_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.DealerID, entry.Kind, entry.Amount, entry.Note, entry.Reference, entry.ClientRequestID, entry.CreatedAt,
	)
	return err
}

func (s *LedgerStore) SumByDealer(ctx context.Context, dealerID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_ledger_entries
		WHERE dealer_id = $1
	`, dealerID)
	return sum, err
}

func (s *LedgerStore) ListByDealer(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM credit_ledger_entries
		WHERE dealer_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM credit_ledger_entries
		WHERE reference = $1
		ORDER BY created_at, id
	`, reference)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UnlockedLeadIDs lists the leads the dealer has paid to unlock.
func (s *LedgerStore) UnlockedLeadIDs(ctx context.Context, dealerID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT reference
		FROM credit_ledger_entries
		WHERE dealer_id = $1 AND kind = 'unlock-debit' AND reference IS NOT NULL
	`, dealerID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
