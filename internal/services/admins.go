package services

import (
	"context"
	"fmt"
	"strings"

	"automatch/internal/auth"
	"automatch/internal/models"
	"automatch/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AdminInput struct {
	Name     string           `json:"name" validate:"required"`
	Email    string           `json:"email" validate:"required,email"`
	Role     models.AdminRole `json:"role" validate:"required"`
	Password string           `json:"password" validate:"required,min=8"`
}

type AdminUpdateInput struct {
	Name  string           `json:"name" validate:"required"`
	Email string           `json:"email" validate:"required,email"`
	Role  models.AdminRole `json:"role" validate:"required"`
}

func (s *ProvisioningService) CreateAdmin(ctx context.Context, actorID string, input AdminInput) (models.AdminUser, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validate(input); err != nil {
		return models.AdminUser{}, err
	}
	if !input.Role.Valid() {
		return models.AdminUser{}, ValidationError{Field: "role", Reason: "oneof"}
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return models.AdminUser{}, err
	}
	admin := models.AdminUser{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		Status:       models.AdminStatusActive,
		PasswordHash: hash,
		CreatedAt:    s.ledger.now().UTC(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.admins.Create(ctx, tx, admin); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, "admin.create", "admin", admin.ID, auditData(map[string]any{
			"email": admin.Email,
			"role":  admin.Role,
		}))
	})
	if err != nil {
		return models.AdminUser{}, err
	}
	return admin, nil
}

func (s *ProvisioningService) UpdateAdmin(ctx context.Context, actorID, adminID string, input AdminUpdateInput) (models.AdminUser, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validate(input); err != nil {
		return models.AdminUser{}, err
	}
	if !input.Role.Valid() {
		return models.AdminUser{}, ValidationError{Field: "role", Reason: "oneof"}
	}
	var admin models.AdminUser
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		admin, err = s.admins.GetForUpdate(ctx, tx, adminID)
		if err != nil {
			return translateNotFound(err, ErrUnknownAdmin)
		}
		rows, err := s.admins.Update(ctx, tx, adminID, input.Name, input.Email, input.Role)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUnknownAdmin
		}
		admin.Name = input.Name
		admin.Email = input.Email
		admin.Role = input.Role
		return s.audit.Log(ctx, tx, actorID, "admin.update", "admin", adminID, auditData(map[string]any{
			"email": input.Email,
			"role":  input.Role,
		}))
	})
	if err != nil {
		return models.AdminUser{}, err
	}
	return admin, nil
}

// ToggleAdminStatus flips an admin between active and inactive. An admin
// may not switch their own account off.
func (s *ProvisioningService) ToggleAdminStatus(ctx context.Context, actorID, adminID string) (models.AdminUser, error) {
	if actorID == adminID {
		return models.AdminUser{}, ErrSelfDeactivation
	}
	var admin models.AdminUser
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		admin, err = s.admins.GetForUpdate(ctx, tx, adminID)
		if err != nil {
			return translateNotFound(err, ErrUnknownAdmin)
		}
		previous := admin.Status
		admin.Status = previous.Toggled()
		rows, err := s.admins.SetStatus(ctx, tx, adminID, admin.Status)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUnknownAdmin
		}
		return s.audit.Log(ctx, tx, actorID, "admin.toggle_status", "admin", adminID, auditData(map[string]any{
			"from": previous,
			"to":   admin.Status,
		}))
	})
	if err != nil {
		return models.AdminUser{}, err
	}
	return admin, nil
}

func (s *ProvisioningService) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []models.AdminUser{}
	}
	return admins, nil
}

// EnsureBootstrapAdmin creates the first Super Admin when the table is empty
// and credentials were configured. It reports whether an admin was created.
// Malformed credentials are rejected even when admins already exist.
func (s *ProvisioningService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if err := validator.ValidateEmail(email); err != nil {
		return false, fmt.Errorf("bootstrap admin email: %w", err)
	}
	if err := validator.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("bootstrap admin password: %w", err)
	}
	exists, err := s.admins.HasAny(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = s.CreateAdmin(ctx, "", AdminInput{
		Name:     "Administrator",
		Email:    email,
		Role:     models.RoleSuperAdmin,
		Password: password,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
