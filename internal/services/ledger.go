package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"automatch/internal/db"
	"automatch/internal/metrics"
	"automatch/internal/models"
	"automatch/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CreditLedger owns every change to a dealer's credit balance. A posting
// appends one ledger entry and moves the cached balance by the same amount
// inside one transaction, so the balance always equals the ledger sum.
type CreditLedger struct {
	txRunner db.TxRunner
	dealers  DealerStore
	ledger   LedgerStore
	audit    AuditStore
	hub      BalanceHub
	log      *zap.Logger
	now      func() time.Time
}

func NewCreditLedger(txRunner db.TxRunner, dealers DealerStore, ledger LedgerStore, audit AuditStore, hub BalanceHub, log *zap.Logger) *CreditLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreditLedger{
		txRunner: txRunner,
		dealers:  dealers,
		ledger:   ledger,
		audit:    audit,
		hub:      hub,
		log:      log,
		now:      time.Now,
	}
}

type PostEntryRequest struct {
	ActorID         string
	DealerID        string
	Kind            models.EntryKind
	Amount          int64
	Note            string
	Reference       string
	ClientRequestID string
}

type Posting struct {
	Entry   models.LedgerEntry `json:"entry"`
	Balance int64              `json:"credits"`
}

func (l *CreditLedger) PostEntry(ctx context.Context, req PostEntryRequest) (Posting, error) {
	if !req.Kind.Valid() {
		return Posting{}, ErrInvalidEntryKind
	}
	if req.Amount == 0 {
		return Posting{}, ErrInvalidAmount
	}
	var posting Posting
	err := l.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		dealer, err := l.lockDealer(ctx, tx, req.DealerID)
		if err != nil {
			return err
		}
		entry := l.newEntry(dealer.ID, req.Kind, req.Amount, req.Note, req.Reference, req.ClientRequestID)
		posting, err = l.postLocked(ctx, tx, dealer, entry)
		if err != nil {
			return err
		}
		return l.audit.Log(ctx, tx, req.ActorID, "ledger.post", "dealer", dealer.ID, auditData(map[string]any{
			"entry_id": entry.ID,
			"kind":     entry.Kind,
			"amount":   entry.Amount,
		}))
	})
	if err != nil {
		return Posting{}, err
	}
	l.published(posting)
	return posting, nil
}

func (l *CreditLedger) GetBalance(ctx context.Context, dealerID string) (int64, error) {
	dealer, err := l.dealers.GetByID(ctx, dealerID)
	if err != nil {
		return 0, translateNotFound(err, ErrUnknownDealer)
	}
	return dealer.Balance, nil
}

// LedgerSum recomputes a dealer's balance from its entries.
func (l *CreditLedger) LedgerSum(ctx context.Context, dealerID string) (int64, error) {
	return l.ledger.SumByDealer(ctx, dealerID)
}

func (l *CreditLedger) History(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error) {
	if _, err := l.dealers.GetByID(ctx, dealerID); err != nil {
		return nil, translateNotFound(err, ErrUnknownDealer)
	}
	entries, err := l.ledger.ListByDealer(ctx, dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

// EntriesByReference finds postings tied to a lead or purchase id. The
// reference is weak, so entries stay reachable after the lead is deleted.
func (l *CreditLedger) EntriesByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	entries, err := l.ledger.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

// Reconcile lists dealers whose stored balance differs from their ledger sum.
func (l *CreditLedger) Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error) {
	discrepancies, err := l.dealers.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetDiscrepancies(len(discrepancies))
	if discrepancies == nil {
		discrepancies = []models.BalanceDiscrepancy{}
	}
	return discrepancies, nil
}

func (l *CreditLedger) lockDealer(ctx context.Context, tx *sqlx.Tx, dealerID string) (models.Dealer, error) {
	dealer, err := l.dealers.GetForUpdate(ctx, tx, dealerID)
	if err != nil {
		return models.Dealer{}, translateNotFound(err, ErrUnknownDealer)
	}
	return dealer, nil
}

func (l *CreditLedger) newEntry(dealerID string, kind models.EntryKind, amount int64, note, reference, clientRequestID string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:              uuid.NewString(),
		DealerID:        dealerID,
		Kind:            kind,
		Amount:          amount,
		Note:            optional(note),
		Reference:       optional(reference),
		ClientRequestID: optional(clientRequestID),
		CreatedAt:       l.now().UTC(),
	}
}

// postLocked applies entry to a dealer whose row is already locked by tx.
func (l *CreditLedger) postLocked(ctx context.Context, tx *sqlx.Tx, dealer models.Dealer, entry models.LedgerEntry) (Posting, error) {
	newBalance := dealer.Balance + entry.Amount
	if newBalance < 0 {
		return Posting{}, ErrInsufficientFunds
	}
	rows, err := l.dealers.ApplyDelta(ctx, tx, dealer.ID, entry.Amount)
	if err != nil {
		return Posting{}, err
	}
	if rows == 0 {
		return Posting{}, ErrInsufficientFunds
	}
	if err := l.ledger.Insert(ctx, tx, entry); err != nil {
		return Posting{}, err
	}
	return Posting{Entry: entry, Balance: newBalance}, nil
}

// published runs the after-commit side effects of a posting.
func (l *CreditLedger) published(posting Posting) {
	metrics.RecordCredits(string(posting.Entry.Kind), posting.Entry.Amount)
	if l.hub == nil {
		return
	}
	l.hub.BroadcastBalance(posting.Entry.DealerID, websocket.BalanceUpdate{
		DealerID: posting.Entry.DealerID,
		Credits:  posting.Balance,
		Reason:   string(posting.Entry.Kind),
	})
}

func translateNotFound(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func auditData(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}
