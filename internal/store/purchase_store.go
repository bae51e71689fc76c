package store

import (
	"context"
	"time"

	"automatch/internal/models"
)

type PurchaseStore struct {
	db DB
}

const purchaseColumns = `id, dealer_id, package_id, credits, price_cents, status, provider_ref, ledger_entry_id,
	client_request_id, failure_reason, created_at, updated_at`

func NewPurchaseStore(db DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func (s *PurchaseStore) Create(ctx context.Context, tx Execer, purchase models.CreditPurchase) error {
	query := `
		INSERT INTO credit_purchases (id, dealer_id, package_id, credits, price_cents, status, client_request_id)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
	`
	_, err := tx.ExecContext(ctx, query,
		purchase.ID, purchase.DealerID, purchase.PackageID, purchase.Credits, purchase.PriceCents, purchase.ClientRequestID,
	)
	return err
}

func (s *PurchaseStore) GetByID(ctx context.Context, purchaseID string) (models.CreditPurchase, error) {
	var row models.CreditPurchase
	err := s.db.GetContext(ctx, &row, `SELECT `+purchaseColumns+` FROM credit_purchases WHERE id = $1`, purchaseID)
	if err != nil {
		return models.CreditPurchase{}, err
	}
	return row, nil
}

func (s *PurchaseStore) GetForUpdate(ctx context.Context, tx Getter, purchaseID string) (models.CreditPurchase, error) {
	var row models.CreditPurchase
	err := tx.GetContext(ctx, &row, `SELECT `+purchaseColumns+` FROM credit_purchases WHERE id = $1 FOR UPDATE`, purchaseID)
	if err != nil {
		return models.CreditPurchase{}, err
	}
	return row, nil
}

// MarkCompleted also accepts failed and expired rows; a late provider
// approval still has to credit the dealer.
func (s *PurchaseStore) MarkCompleted(ctx context.Context, tx Execer, purchaseID, ledgerEntryID, providerRef string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_purchases
		SET status = 'completed', ledger_entry_id = $1, provider_ref = $2, failure_reason = NULL, updated_at = NOW()
		WHERE id = $3 AND status IN ('pending', 'failed', 'expired')
	`, ledgerEntryID, providerRef, purchaseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PurchaseStore) MarkFailed(ctx context.Context, tx Execer, purchaseID, reason string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_purchases
		SET status = 'failed', failure_reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, reason, purchaseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetProviderRef stores the provider's reference while the purchase is still pending.
func (s *PurchaseStore) SetProviderRef(ctx context.Context, tx Execer, purchaseID, providerRef string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_purchases
		SET provider_ref = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, providerRef, purchaseID)
	return err
}

func (s *PurchaseStore) ExpireStale(ctx context.Context, tx Execer, createdBefore time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_purchases
		SET status = 'expired', failure_reason = 'payment confirmation timed out', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`, createdBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PurchaseStore) ListByDealer(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error) {
	var rows []models.CreditPurchase
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+purchaseColumns+`
		FROM credit_purchases
		WHERE dealer_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
