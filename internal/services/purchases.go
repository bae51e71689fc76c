package services

import (
	"context"
	"fmt"
	"time"

	"automatch/internal/db"
	"automatch/internal/events"
	"automatch/internal/metrics"
	"automatch/internal/models"
	"automatch/internal/money"
	"automatch/internal/payments"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PurchaseService sells credit packages. The provider is called outside any
// transaction; only a confirmed charge posts credits.
type PurchaseService struct {
	txRunner  db.TxRunner
	dealers   DealerStore
	purchases PurchaseStore
	ledger    *CreditLedger
	audit     AuditStore
	provider  payments.Provider
	publisher EventPublisher
	timeout   time.Duration
	log       *zap.Logger
}

func NewPurchaseService(txRunner db.TxRunner, dealers DealerStore, purchases PurchaseStore, ledger *CreditLedger, audit AuditStore, provider payments.Provider, publisher EventPublisher, timeout time.Duration, log *zap.Logger) *PurchaseService {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PurchaseService{
		txRunner:  txRunner,
		dealers:   dealers,
		purchases: purchases,
		ledger:    ledger,
		audit:     audit,
		provider:  provider,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

type PackageQuote struct {
	models.CreditPackage
	Price     string `json:"price"`
	UnitPrice string `json:"unit_price"`
}

type PurchaseRequest struct {
	DealerID        string
	PackageID       string
	ClientRequestID string
}

type PurchaseResult struct {
	Purchase models.CreditPurchase `json:"purchase"`
	Balance  int64                 `json:"credits"`
}

// SettleRequest carries a provider verdict. AmountCents, when the provider
// reports it, must match the purchase price.
type SettleRequest struct {
	PurchaseID  string
	ProviderRef string
	Status      payments.Status
	AmountCents *int64
}

func (s *PurchaseService) Packages() []PackageQuote {
	quotes := make([]PackageQuote, 0, len(models.CreditPackages))
	for _, pkg := range models.CreditPackages {
		quotes = append(quotes, PackageQuote{
			CreditPackage: pkg,
			Price:         money.FormatBRL(pkg.PriceCents),
			UnitPrice:     money.UnitPrice(pkg.PriceCents, pkg.Credits),
		})
	}
	return quotes
}

// Purchase records a pending purchase, charges the provider and settles the
// result. A decline or a provider error answer leaves the balance untouched
// and the purchase failed. A pending answer, a timeout or a lost connection
// keep the purchase pending until Settle receives the provider's verdict.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	pkg, ok := models.FindPackage(req.PackageID)
	if !ok {
		return PurchaseResult{}, ErrUnknownPackage
	}
	dealer, err := s.dealers.GetByID(ctx, req.DealerID)
	if err != nil {
		return PurchaseResult{}, translateNotFound(err, ErrUnknownDealer)
	}
	if dealer.Status != models.DealerStatusActive {
		return PurchaseResult{}, ErrDealerBlocked
	}

	now := s.ledger.now().UTC()
	purchase := models.CreditPurchase{
		ID:              uuid.NewString(),
		DealerID:        dealer.ID,
		PackageID:       pkg.ID,
		Credits:         pkg.Credits,
		PriceCents:      pkg.PriceCents,
		Status:          models.PurchasePending,
		ClientRequestID: optional(req.ClientRequestID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.purchases.Create(ctx, tx, purchase); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, dealer.ID, "purchase.create", "purchase", purchase.ID, auditData(map[string]any{
			"package_id":  pkg.ID,
			"price_cents": pkg.PriceCents,
		}))
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	charge, err := s.provider.Charge(chargeCtx, payments.ChargeRequest{
		PurchaseID:  purchase.ID,
		DealerID:    dealer.ID,
		DealerEmail: dealer.Email,
		AmountCents: pkg.PriceCents,
		Description: fmt.Sprintf("AutoMatch %d credits", pkg.Credits),
	})
	cancel()
	if err != nil {
		metrics.RecordIntegrationError("payments")
		if payments.Unconfirmed(err) {
			s.log.Warn("charge outcome unknown, awaiting provider confirmation",
				zap.String("purchase_id", purchase.ID), zap.Error(err))
			return PurchaseResult{Purchase: purchase, Balance: dealer.Balance}, nil
		}
		s.fail(context.WithoutCancel(ctx), purchase.ID, err.Error())
		return PurchaseResult{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	switch charge.Status {
	case payments.StatusApproved:
		completed, posting, err := s.settle(ctx, purchase.ID, charge.Reference, nil)
		if err != nil {
			return PurchaseResult{}, err
		}
		return PurchaseResult{Purchase: completed, Balance: posting.Balance}, nil
	case payments.StatusPending:
		err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.purchases.SetProviderRef(ctx, tx, purchase.ID, charge.Reference)
		})
		if err != nil {
			return PurchaseResult{}, err
		}
		purchase.ProviderRef = optional(charge.Reference)
		return PurchaseResult{Purchase: purchase, Balance: dealer.Balance}, nil
	default:
		s.fail(context.WithoutCancel(ctx), purchase.ID, "declined")
		return PurchaseResult{}, ErrPaymentFailed
	}
}

// Settle applies an asynchronous provider verdict to a pending purchase.
func (s *PurchaseService) Settle(ctx context.Context, req SettleRequest) (models.CreditPurchase, error) {
	switch req.Status {
	case payments.StatusApproved:
		purchase, _, err := s.settle(ctx, req.PurchaseID, req.ProviderRef, req.AmountCents)
		return purchase, err
	case payments.StatusDeclined:
		var purchase models.CreditPurchase
		err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			purchase, err = s.markFailed(ctx, tx, req.PurchaseID, "declined")
			return err
		})
		if err != nil {
			return models.CreditPurchase{}, err
		}
		metrics.RecordPurchase(string(models.PurchaseFailed))
		return purchase, nil
	default:
		return s.Get(ctx, req.PurchaseID)
	}
}

func (s *PurchaseService) Get(ctx context.Context, purchaseID string) (models.CreditPurchase, error) {
	purchase, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return models.CreditPurchase{}, translateNotFound(err, ErrPurchaseNotFound)
	}
	return purchase, nil
}

func (s *PurchaseService) History(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error) {
	purchases, err := s.purchases.ListByDealer(ctx, dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []models.CreditPurchase{}
	}
	return purchases, nil
}

// ExpireStale marks purchases pending for longer than ttl as expired.
func (s *PurchaseService) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.ledger.now().Add(-ttl).UTC()
	var expired int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		expired, err = s.purchases.ExpireStale(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordPurchases(string(models.PurchaseExpired), expired)
	return expired, nil
}

// settle locks the purchase, then the dealer, posts the credits and marks the
// purchase completed in one transaction. Failed and expired purchases are
// settled too: an approval means the provider captured the money.
func (s *PurchaseService) settle(ctx context.Context, purchaseID, providerRef string, amountCents *int64) (models.CreditPurchase, Posting, error) {
	var purchase models.CreditPurchase
	var previous models.PurchaseStatus
	var dealer models.Dealer
	var posting Posting
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		purchase, err = s.purchases.GetForUpdate(ctx, tx, purchaseID)
		if err != nil {
			return translateNotFound(err, ErrPurchaseNotFound)
		}
		if purchase.Status == models.PurchaseCompleted {
			return ErrPurchaseSettled
		}
		previous = purchase.Status
		if amountCents != nil && *amountCents != purchase.PriceCents {
			return ErrAmountMismatch
		}
		dealer, err = s.ledger.lockDealer(ctx, tx, purchase.DealerID)
		if err != nil {
			return err
		}
		entry := s.ledger.newEntry(dealer.ID, models.EntryPurchase, purchase.Credits, purchase.PackageID, purchase.ID, "")
		posting, err = s.ledger.postLocked(ctx, tx, dealer, entry)
		if err != nil {
			return err
		}
		rows, err := s.purchases.MarkCompleted(ctx, tx, purchase.ID, entry.ID, providerRef)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPurchaseSettled
		}
		purchase.Status = models.PurchaseCompleted
		purchase.LedgerEntryID = &entry.ID
		purchase.ProviderRef = optional(providerRef)
		purchase.FailureReason = nil
		purchase.UpdatedAt = entry.CreatedAt
		return s.audit.Log(ctx, tx, dealer.ID, "purchase.complete", "purchase", purchase.ID, auditData(map[string]any{
			"entry_id":        entry.ID,
			"credits":         purchase.Credits,
			"previous_status": previous,
		}))
	})
	if err != nil {
		return models.CreditPurchase{}, Posting{}, err
	}

	metrics.RecordPurchase(string(models.PurchaseCompleted))
	if previous != models.PurchasePending {
		s.log.Error("late payment confirmation credited",
			zap.String("purchase_id", purchase.ID),
			zap.String("previous_status", string(previous)),
			zap.String("dealer_id", dealer.ID),
		)
	}
	s.ledger.published(posting)
	event := events.CreditsPurchased{
		DealerID:    dealer.ID,
		DealerName:  dealer.Name,
		DealerEmail: dealer.Email,
		PurchaseID:  purchase.ID,
		EntryID:     posting.Entry.ID,
		Credits:     purchase.Credits,
		PriceCents:  purchase.PriceCents,
		Balance:     posting.Balance,
		CompletedAt: posting.Entry.CreatedAt,
	}
	if err := s.publisher.PublishCreditsPurchased(context.WithoutCancel(ctx), event); err != nil {
		metrics.RecordIntegrationError("amqp")
		s.log.Warn("publish credits purchased", zap.String("purchase_id", purchase.ID), zap.Error(err))
	}
	return purchase, posting, nil
}

func (s *PurchaseService) fail(ctx context.Context, purchaseID, reason string) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.markFailed(ctx, tx, purchaseID, reason)
		return err
	})
	if err != nil {
		s.log.Error("mark purchase failed", zap.String("purchase_id", purchaseID), zap.Error(err))
		return
	}
	metrics.RecordPurchase(string(models.PurchaseFailed))
}

func (s *PurchaseService) markFailed(ctx context.Context, tx *sqlx.Tx, purchaseID, reason string) (models.CreditPurchase, error) {
	purchase, err := s.purchases.GetForUpdate(ctx, tx, purchaseID)
	if err != nil {
		return models.CreditPurchase{}, translateNotFound(err, ErrPurchaseNotFound)
	}
	rows, err := s.purchases.MarkFailed(ctx, tx, purchaseID, reason)
	if err != nil {
		return models.CreditPurchase{}, err
	}
	if rows == 0 {
		return models.CreditPurchase{}, ErrPurchaseSettled
	}
	purchase.Status = models.PurchaseFailed
	purchase.FailureReason = &reason
	if err := s.audit.Log(ctx, tx, purchase.DealerID, "purchase.fail", "purchase", purchaseID, auditData(map[string]any{
		"reason": reason,
	})); err != nil {
		return models.CreditPurchase{}, err
	}
	return purchase, nil
}
