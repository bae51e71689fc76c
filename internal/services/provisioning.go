package services

import (
	"context"
	"strings"

	"automatch/internal/auth"
	"automatch/internal/db"
	"automatch/internal/models"
	"automatch/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const openingBalanceNote = "opening balance"

// ProvisioningService is the administrator's write path for dealers and
// admin users. Credit changes go through the CreditLedger.
type ProvisioningService struct {
	txRunner       db.TxRunner
	dealers        DealerStore
	admins         AdminStore
	audit          AuditStore
	stats          StatsStore
	ledger         *CreditLedger
	defaultCredits int64
}

func NewProvisioningService(txRunner db.TxRunner, dealers DealerStore, admins AdminStore, audit AuditStore, stats StatsStore, ledger *CreditLedger, defaultCredits int64) *ProvisioningService {
	return &ProvisioningService{
		txRunner:       txRunner,
		dealers:        dealers,
		admins:         admins,
		audit:          audit,
		stats:          stats,
		ledger:         ledger,
		defaultCredits: defaultCredits,
	}
}

type DealerInput struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	TaxID    string      `json:"tax_id" validate:"required"`
	Region   string      `json:"region" validate:"required"`
	Plan     models.Plan `json:"plan" validate:"omitempty,oneof=Starter Professional Enterprise"`
	Credits  *int64      `json:"credits" validate:"omitempty,gte=0"`
	Password string      `json:"password" validate:"omitempty,min=8"`
}

type DealerUpdateInput struct {
	Name   string      `json:"name" validate:"required"`
	Email  string      `json:"email" validate:"required,email"`
	TaxID  string      `json:"tax_id" validate:"required"`
	Region string      `json:"region" validate:"required"`
	Plan   models.Plan `json:"plan" validate:"omitempty,oneof=Starter Professional Enterprise"`
}

type DealerDetail struct {
	models.Dealer
	LedgerSum int64 `json:"ledger_sum"`
}

// Adjustment reports the result of a manual credit change. Applied differs
// from the requested delta when the balance was clamped at zero.
type Adjustment struct {
	Balance   int64               `json:"credits"`
	Requested int64               `json:"requested"`
	Applied   int64               `json:"applied"`
	Entry     *models.LedgerEntry `json:"entry,omitempty"`
}

func (s *ProvisioningService) CreateDealer(ctx context.Context, actorID string, input DealerInput) (models.Dealer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.TaxID = strings.TrimSpace(input.TaxID)
	input.Region = strings.TrimSpace(input.Region)
	if err := validate(input); err != nil {
		return models.Dealer{}, err
	}
	plan := input.Plan
	if plan == "" {
		plan = models.PlanStarter
	}
	credits := s.defaultCredits
	if input.Credits != nil {
		credits = *input.Credits
	}
	var passwordHash *string
	if input.Password != "" {
		hash, err := auth.HashPassword(input.Password)
		if err != nil {
			return models.Dealer{}, err
		}
		passwordHash = &hash
	}

	dealer := models.Dealer{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		TaxID:        input.TaxID,
		Region:       input.Region,
		Plan:         plan,
		Status:       models.DealerStatusActive,
		PasswordHash: passwordHash,
		JoinedAt:     s.ledger.now().UTC(),
	}
	var opening *Posting
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		opening = nil
		if err := s.dealers.Create(ctx, tx, dealer); err != nil {
			return err
		}
		if credits > 0 {
			entry := s.ledger.newEntry(dealer.ID, models.EntryAdminAdjustment, credits, openingBalanceNote, "", "")
			posting, err := s.ledger.postLocked(ctx, tx, dealer, entry)
			if err != nil {
				return err
			}
			opening = &posting
		}
		return s.audit.Log(ctx, tx, actorID, "dealer.create", "dealer", dealer.ID, auditData(map[string]any{
			"email":   dealer.Email,
			"plan":    dealer.Plan,
			"credits": credits,
		}))
	})
	if err != nil {
		return models.Dealer{}, err
	}
	if opening != nil {
		dealer.Balance = opening.Balance
		s.ledger.published(*opening)
	}
	return dealer, nil
}

func (s *ProvisioningService) UpdateDealer(ctx context.Context, actorID, dealerID string, input DealerUpdateInput) (models.Dealer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.TaxID = strings.TrimSpace(input.TaxID)
	input.Region = strings.TrimSpace(input.Region)
	if err := validate(input); err != nil {
		return models.Dealer{}, err
	}
	var updated models.Dealer
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.ledger.lockDealer(ctx, tx, dealerID)
		if err != nil {
			return err
		}
		plan := input.Plan
		if plan == "" {
			plan = current.Plan
		}
		rows, err := s.dealers.Update(ctx, tx, dealerID, store.DealerUpdate{
			Name:   input.Name,
			Email:  input.Email,
			TaxID:  input.TaxID,
			Region: input.Region,
			Plan:   plan,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUnknownDealer
		}
		updated = current
		updated.Name = input.Name
		updated.Email = input.Email
		updated.TaxID = input.TaxID
		updated.Region = input.Region
		updated.Plan = plan
		return s.audit.Log(ctx, tx, actorID, "dealer.update", "dealer", dealerID, auditData(map[string]any{
			"email":  input.Email,
			"region": input.Region,
			"plan":   plan,
		}))
	})
	if err != nil {
		return models.Dealer{}, err
	}
	return updated, nil
}

// AdjustCredits posts an admin-adjustment. A delta that would take the
// balance below zero is truncated so the balance lands on exactly zero.
func (s *ProvisioningService) AdjustCredits(ctx context.Context, actorID, dealerID string, delta int64, note string) (Adjustment, error) {
	if delta == 0 {
		return Adjustment{}, ErrInvalidAmount
	}
	var result Adjustment
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		dealer, err := s.ledger.lockDealer(ctx, tx, dealerID)
		if err != nil {
			return err
		}
		applied := delta
		if dealer.Balance+delta < 0 {
			applied = -dealer.Balance
		}
		result = Adjustment{Balance: dealer.Balance, Requested: delta, Applied: applied}
		if applied != 0 {
			entry := s.ledger.newEntry(dealer.ID, models.EntryAdminAdjustment, applied, strings.TrimSpace(note), "", "")
			posting, err := s.ledger.postLocked(ctx, tx, dealer, entry)
			if err != nil {
				return err
			}
			result.Balance = posting.Balance
			result.Entry = &posting.Entry
		}
		return s.audit.Log(ctx, tx, actorID, "dealer.adjust_credits", "dealer", dealer.ID, auditData(map[string]any{
			"requested": delta,
			"applied":   applied,
			"note":      note,
		}))
	})
	if err != nil {
		return Adjustment{}, err
	}
	if result.Entry != nil {
		s.ledger.published(Posting{Entry: *result.Entry, Balance: result.Balance})
	}
	return result, nil
}

func (s *ProvisioningService) ToggleDealerStatus(ctx context.Context, actorID, dealerID string) (models.Dealer, error) {
	var dealer models.Dealer
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		dealer, err = s.ledger.lockDealer(ctx, tx, dealerID)
		if err != nil {
			return err
		}
		previous := dealer.Status
		dealer.Status = previous.Toggled()
		rows, err := s.dealers.SetStatus(ctx, tx, dealer.ID, dealer.Status)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUnknownDealer
		}
		return s.audit.Log(ctx, tx, actorID, "dealer.toggle_status", "dealer", dealer.ID, auditData(map[string]any{
			"from": previous,
			"to":   dealer.Status,
		}))
	})
	if err != nil {
		return models.Dealer{}, err
	}
	return dealer, nil
}

func (s *ProvisioningService) ListDealers(ctx context.Context) ([]models.Dealer, error) {
	dealers, err := s.dealers.List(ctx)
	if err != nil {
		return nil, err
	}
	if dealers == nil {
		dealers = []models.Dealer{}
	}
	return dealers, nil
}

func (s *ProvisioningService) GetDealer(ctx context.Context, dealerID string) (DealerDetail, error) {
	dealer, err := s.dealers.GetByID(ctx, dealerID)
	if err != nil {
		return DealerDetail{}, translateNotFound(err, ErrUnknownDealer)
	}
	sum, err := s.ledger.LedgerSum(ctx, dealerID)
	if err != nil {
		return DealerDetail{}, err
	}
	return DealerDetail{Dealer: dealer, LedgerSum: sum}, nil
}
