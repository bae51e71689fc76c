package store

import (
	"context"

	"automatch/internal/models"
)

type AdminStore struct {
	db DB
}

const adminColumns = `id, name, email, role, status, password_hash, last_login_at, created_at`

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) Create(ctx context.Context, tx Execer, admin models.AdminUser) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_users (id, name, email, role, status, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, admin.ID, admin.Name, admin.Email, admin.Role, admin.Status, admin.PasswordHash)
	return err
}

func (s *AdminStore) GetByID(ctx context.Context, adminID string) (models.AdminUser, error) {
	var row models.AdminUser
	err := s.db.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, adminID)
	if err != nil {
		return models.AdminUser{}, err
	}
	return row, nil
}

func (s *AdminStore) GetByEmail(ctx context.Context, email string) (models.AdminUser, error) {
	var row models.AdminUser
	err := s.db.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM admin_users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return models.AdminUser{}, err
	}
	return row, nil
}

func (s *AdminStore) GetForUpdate(ctx context.Context, tx Getter, adminID string) (models.AdminUser, error) {
	var row models.AdminUser
	err := tx.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1 FOR UPDATE`, adminID)
	if err != nil {
		return models.AdminUser{}, err
	}
	return row, nil
}

func (s *AdminStore) List(ctx context.Context) ([]models.AdminUser, error) {
	var rows []models.AdminUser
	err := s.db.SelectContext(ctx, &rows, `SELECT `+adminColumns+` FROM admin_users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AdminStore) Update(ctx context.Context, tx Execer, adminID, name, email string, role models.AdminRole) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE admin_users
		SET name = $1, email = $2, role = $3
		WHERE id = $4
	`, name, email, role, adminID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AdminStore) SetStatus(ctx context.Context, tx Execer, adminID string, status models.AdminStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE admin_users SET status = $1 WHERE id = $2`, status, adminID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AdminStore) TouchLastLogin(ctx context.Context, tx Execer, adminID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE admin_users SET last_login_at = NOW() WHERE id = $1`, adminID)
	return err
}

func (s *AdminStore) HasAny(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM admin_users`)
	return count > 0, err
}
