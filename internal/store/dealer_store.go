package store

import (
	"context"

	"automatch/internal/models"
)

type DealerStore struct {
	db DB
}

type DealerUpdate struct {
	Name   string
	Email  string
	TaxID  string
	Region string
	Plan   models.Plan
}

const dealerColumns = `id, name, email, tax_id, region, plan, balance, status, password_hash, joined_at`

func NewDealerStore(db DB) *DealerStore {
	return &DealerStore{db: db}
}

// Create inserts the dealer with a zero balance; opening credits are posted
// through the ledger so the stored balance always matches its entries.
func (s *DealerStore) Create(ctx context.Context, tx Execer, dealer models.Dealer) error {
	query := `
		INSERT INTO dealers (id, name, email, tax_id, region, plan, balance, status, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		dealer.ID, dealer.Name, dealer.Email, dealer.TaxID, dealer.Region, dealer.Plan, dealer.Status, dealer.PasswordHash,
	)
	return err
}

func (s *DealerStore) GetByID(ctx context.Context, dealerID string) (models.Dealer, error) {
	var row models.Dealer
	err := s.db.GetContext(ctx, &row, `SELECT `+dealerColumns+` FROM dealers WHERE id = $1`, dealerID)
	if err != nil {
		return models.Dealer{}, err
	}
	return row, nil
}

func (s *DealerStore) GetByEmail(ctx context.Context, email string) (models.Dealer, error) {
	var row models.Dealer
	err := s.db.GetContext(ctx, &row, `SELECT `+dealerColumns+` FROM dealers WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return models.Dealer{}, err
	}
	return row, nil
}

func (s *DealerStore) GetForUpdate(ctx context.Context, tx Getter, dealerID string) (models.Dealer, error) {
	var row models.Dealer
	err := tx.GetContext(ctx, &row, `
		SELECT `+dealerColumns+`
		FROM dealers
		WHERE id = $1
		FOR UPDATE
	`, dealerID)
	if err != nil {
		return models.Dealer{}, err
	}
	return row, nil
}

// ApplyDelta moves the balance by delta unless that would make it negative.
// Zero rows affected means the guard rejected the change or the dealer is gone.
func (s *DealerStore) ApplyDelta(ctx context.Context, tx Execer, dealerID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE dealers
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
	`, delta, dealerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *DealerStore) Update(ctx context.Context, tx Execer, dealerID string, update DealerUpdate) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE dealers
		SET name = $1, email = $2, tax_id = $3, region = $4, plan = $5, updated_at = NOW()
		WHERE id = $6
	`, update.Name, update.Email, update.TaxID, update.Region, update.Plan, dealerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *DealerStore) SetStatus(ctx context.Context, tx Execer, dealerID string, status models.DealerStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE dealers
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, dealerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *DealerStore) List(ctx context.Context) ([]models.Dealer, error) {
	var rows []models.Dealer
	err := s.db.SelectContext(ctx, &rows, `SELECT `+dealerColumns+` FROM dealers ORDER BY joined_at DESC, id`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile returns every dealer whose stored balance differs from the sum of
// its ledger entries.
func (s *DealerStore) Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error) {
	var rows []models.BalanceDiscrepancy
	err := s.db.SelectContext(ctx, &rows, `
		SELECT d.id AS dealer_id,
		       d.name,
		       d.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (d.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM dealers d
		LEFT JOIN credit_ledger_entries l ON l.dealer_id = d.id
		GROUP BY d.id, d.name, d.balance
		HAVING d.balance <> COALESCE(SUM(l.amount), 0)
		ORDER BY d.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
