package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"automatch/internal/db"
	"automatch/internal/events"
	"automatch/internal/metrics"
	"automatch/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// UnlockService is the only path by which a dealer spends a credit. The
// debit and the lead transition commit together or not at all.
type UnlockService struct {
	txRunner  db.TxRunner
	ledger    *CreditLedger
	leads     LeadStore
	audit     AuditStore
	publisher EventPublisher
	log       *zap.Logger
}

func NewUnlockService(txRunner db.TxRunner, ledger *CreditLedger, leads LeadStore, audit AuditStore, publisher EventPublisher, log *zap.Logger) *UnlockService {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &UnlockService{
		txRunner:  txRunner,
		ledger:    ledger,
		leads:     leads,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

type UnlockRequest struct {
	DealerID        string
	LeadID          string
	ClientRequestID string
}

type UnlockResult struct {
	Lead    models.Lead        `json:"lead"`
	Balance int64              `json:"credits"`
	Entry   models.LedgerEntry `json:"entry"`
}

// Unlock debits one credit and marks the lead unlocked. It is not idempotent:
// every successful call debits again and bumps the shared counter, even for
// the same dealer and lead. A repeated ClientRequestID is rejected by the
// ledger's unique index instead.
func (s *UnlockService) Unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error) {
	var result UnlockResult
	var dealer models.Dealer
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		dealer, err = s.ledger.lockDealer(ctx, tx, req.DealerID)
		if err != nil {
			return err
		}
		if dealer.Status != models.DealerStatusActive {
			return ErrDealerBlocked
		}
		if dealer.Balance < 1 {
			return ErrInsufficientFunds
		}
		lead, err := s.leads.GetForUpdate(ctx, tx, req.LeadID)
		if err != nil {
			return translateNotFound(err, ErrLeadNotFound)
		}
		entry := s.ledger.newEntry(dealer.ID, models.EntryUnlockDebit, -1, "", lead.ID, req.ClientRequestID)
		posting, err := s.ledger.postLocked(ctx, tx, dealer, entry)
		if err != nil {
			return err
		}
		updated, err := s.leads.MarkUnlocked(ctx, tx, lead.ID)
		if err != nil {
			return translateNotFound(err, ErrLeadNotFound)
		}
		result = UnlockResult{Lead: updated, Balance: posting.Balance, Entry: posting.Entry}
		return s.audit.Log(ctx, tx, dealer.ID, "lead.unlock", "lead", lead.ID, auditData(map[string]any{
			"entry_id":     entry.ID,
			"unlock_count": updated.UnlockCount,
		}))
	})
	metrics.RecordUnlock(unlockOutcome(err))
	if err != nil {
		return UnlockResult{}, err
	}

	s.ledger.published(Posting{Entry: result.Entry, Balance: result.Balance})
	event := events.LeadUnlocked{
		DealerID:    dealer.ID,
		DealerName:  dealer.Name,
		DealerEmail: dealer.Email,
		LeadID:      result.Lead.ID,
		EntryID:     result.Entry.ID,
		Vehicle:     vehicleSummary(result.Lead),
		BuyerName:   result.Lead.BuyerName,
		BuyerEmail:  result.Lead.BuyerEmail,
		BuyerPhone:  result.Lead.BuyerPhone,
		Balance:     result.Balance,
		UnlockedAt:  result.Entry.CreatedAt,
	}
	if err := s.publisher.PublishLeadUnlocked(context.WithoutCancel(ctx), event); err != nil {
		metrics.RecordIntegrationError("amqp")
		s.log.Warn("publish lead unlocked", zap.String("lead_id", result.Lead.ID), zap.String("dealer_id", dealer.ID), zap.Error(err))
	}
	return result, nil
}

func unlockOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_credits"
	case errors.Is(err, ErrDealerBlocked):
		return "dealer_blocked"
	case errors.Is(err, ErrLeadNotFound):
		return "lead_not_found"
	case errors.Is(err, ErrUnknownDealer):
		return "dealer_not_found"
	default:
		return "error"
	}
}

func vehicleSummary(lead models.Lead) string {
	parts := []string{strings.Join(lead.Brands, "/")}
	if len(lead.Models) > 0 {
		parts = append(parts, strings.Join(lead.Models, "/"))
	}
	if lead.YearMin == lead.YearMax {
		parts = append(parts, fmt.Sprint(lead.YearMin))
	} else {
		parts = append(parts, fmt.Sprintf("%d-%d", lead.YearMin, lead.YearMax))
	}
	return strings.Join(parts, " ")
}
