package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"automatch/internal/auth"
	"automatch/internal/db"
	"automatch/internal/models"
	"automatch/internal/validator"

	"github.com/jmoiron/sqlx"
)

type AuthService struct {
	txRunner db.TxRunner
	dealers  DealerStore
	admins   AdminStore
	secret   string
	ttl      time.Duration
}

func NewAuthService(txRunner db.TxRunner, dealers DealerStore, admins AdminStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		txRunner: txRunner,
		dealers:  dealers,
		admins:   admins,
		secret:   secret,
		ttl:      ttl,
	}
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DealerLogin checks a dealer's password. Blocked dealers cannot sign in;
// pending ones can, so they can see their profile while awaiting review.
func (s *AuthService) DealerLogin(ctx context.Context, email, password string) (Session, models.Dealer, error) {
	if err := validator.ValidateEmail(email); err != nil {
		return Session{}, models.Dealer{}, ValidationError{Field: "email", Reason: "email"}
	}
	dealer, err := s.dealers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, models.Dealer{}, ErrInvalidCredentials
		}
		return Session{}, models.Dealer{}, err
	}
	if dealer.PasswordHash == nil || !auth.CheckPassword(*dealer.PasswordHash, password) {
		return Session{}, models.Dealer{}, ErrInvalidCredentials
	}
	if dealer.Status == models.DealerStatusBlocked {
		return Session{}, models.Dealer{}, ErrDealerBlocked
	}
	session, err := s.issue(dealer.ID, auth.RoleDealer)
	if err != nil {
		return Session{}, models.Dealer{}, err
	}
	return session, dealer, nil
}

func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (Session, models.AdminUser, error) {
	if err := validator.ValidateEmail(email); err != nil {
		return Session{}, models.AdminUser{}, ValidationError{Field: "email", Reason: "email"}
	}
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, models.AdminUser{}, ErrInvalidCredentials
		}
		return Session{}, models.AdminUser{}, err
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return Session{}, models.AdminUser{}, ErrInvalidCredentials
	}
	if admin.Status != models.AdminStatusActive {
		return Session{}, models.AdminUser{}, ErrAdminInactive
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.admins.TouchLastLogin(ctx, tx, admin.ID)
	})
	if err != nil {
		return Session{}, models.AdminUser{}, err
	}
	now := time.Now().UTC()
	admin.LastLoginAt = &now
	session, err := s.issue(admin.ID, auth.RoleAdmin)
	if err != nil {
		return Session{}, models.AdminUser{}, err
	}
	return session, admin, nil
}

func (s *AuthService) issue(userID string, role auth.Role) (Session, error) {
	token, err := auth.GenerateToken(s.secret, userID, role, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: time.Now().Add(s.ttl).UTC()}, nil
}
