package store

import (
	"context"

	"automatch/internal/models"
)

type LeadStore struct {
	db DB
}

const leadColumns = `id, brands, models, year_min, year_max, km_max, price_min, price_max, urgency,
	buyer_name, buyer_email, buyer_phone, location, accepts_remote_proposals, status, unlock_count, created_at`

func NewLeadStore(db DB) *LeadStore {
	return &LeadStore{db: db}
}

func (s *LeadStore) Create(ctx context.Context, tx Execer, lead models.Lead) error {
	query := `
		INSERT INTO leads (id, brands, models, year_min, year_max, km_max, price_min, price_max, urgency,
		                   buyer_name, buyer_email, buyer_phone, location, accepts_remote_proposals, status, unlock_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'new', 0)
	`
	_, err := tx.ExecContext(ctx, query,
		lead.ID, lead.Brands, lead.Models, lead.YearMin, lead.YearMax, lead.KmMax, lead.PriceMin, lead.PriceMax, lead.Urgency,
		lead.BuyerName, lead.BuyerEmail, lead.BuyerPhone, lead.Location, lead.AcceptsRemoteProposals,
	)
	return err
}

// List returns all leads, oldest first.
func (s *LeadStore) List(ctx context.Context) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.db.SelectContext(ctx, &rows, `SELECT `+leadColumns+` FROM leads ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LeadStore) GetByID(ctx context.Context, leadID string) (models.Lead, error) {
	var row models.Lead
	err := s.db.GetContext(ctx, &row, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	return row, nil
}

func (s *LeadStore) GetForUpdate(ctx context.Context, tx Getter, leadID string) (models.Lead, error) {
	var row models.Lead
	err := tx.GetContext(ctx, &row, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	return row, nil
}

// MarkUnlocked records one more unlock and returns the updated lead.
func (s *LeadStore) MarkUnlocked(ctx context.Context, tx Getter, leadID string) (models.Lead, error) {
	var row models.Lead
	err := tx.GetContext(ctx, &row, `
		UPDATE leads
		SET status = 'unlocked', unlock_count = unlock_count + 1
		WHERE id = $1
		RETURNING `+leadColumns, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	return row, nil
}

func (s *LeadStore) Delete(ctx context.Context, tx Execer, leadID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, leadID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
