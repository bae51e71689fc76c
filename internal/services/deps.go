package services

import (
	"context"
	"time"

	"automatch/internal/events"
	"automatch/internal/models"
	"automatch/internal/store"
	"automatch/internal/websocket"
)

type DealerStore interface {
	Create(ctx context.Context, tx store.Execer, dealer models.Dealer) error
	GetByID(ctx context.Context, dealerID string) (models.Dealer, error)
	GetByEmail(ctx context.Context, email string) (models.Dealer, error)
	GetForUpdate(ctx context.Context, tx store.Getter, dealerID string) (models.Dealer, error)
	ApplyDelta(ctx context.Context, tx store.Execer, dealerID string, delta int64) (int64, error)
	Update(ctx context.Context, tx store.Execer, dealerID string, update store.DealerUpdate) (int64, error)
	SetStatus(ctx context.Context, tx store.Execer, dealerID string, status models.DealerStatus) (int64, error)
	List(ctx context.Context) ([]models.Dealer, error)
	Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	SumByDealer(ctx context.Context, dealerID string) (int64, error)
	ListByDealer(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error)
	ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error)
	UnlockedLeadIDs(ctx context.Context, dealerID string) ([]string, error)
}

type LeadStore interface {
	Create(ctx context.Context, tx store.Execer, lead models.Lead) error
	List(ctx context.Context) ([]models.Lead, error)
	GetByID(ctx context.Context, leadID string) (models.Lead, error)
	GetForUpdate(ctx context.Context, tx store.Getter, leadID string) (models.Lead, error)
	MarkUnlocked(ctx context.Context, tx store.Getter, leadID string) (models.Lead, error)
	Delete(ctx context.Context, tx store.Execer, leadID string) (int64, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, tx store.Execer, purchase models.CreditPurchase) error
	GetByID(ctx context.Context, purchaseID string) (models.CreditPurchase, error)
	GetForUpdate(ctx context.Context, tx store.Getter, purchaseID string) (models.CreditPurchase, error)
	MarkCompleted(ctx context.Context, tx store.Execer, purchaseID, ledgerEntryID, providerRef string) (int64, error)
	MarkFailed(ctx context.Context, tx store.Execer, purchaseID, reason string) (int64, error)
	SetProviderRef(ctx context.Context, tx store.Execer, purchaseID, providerRef string) error
	ExpireStale(ctx context.Context, tx store.Execer, createdBefore time.Time) (int64, error)
	ListByDealer(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error)
}

type AdminStore interface {
	Create(ctx context.Context, tx store.Execer, admin models.AdminUser) error
	GetByID(ctx context.Context, adminID string) (models.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (models.AdminUser, error)
	GetForUpdate(ctx context.Context, tx store.Getter, adminID string) (models.AdminUser, error)
	List(ctx context.Context) ([]models.AdminUser, error)
	Update(ctx context.Context, tx store.Execer, adminID, name, email string, role models.AdminRole) (int64, error)
	SetStatus(ctx context.Context, tx store.Execer, adminID string, status models.AdminStatus) (int64, error)
	TouchLastLogin(ctx context.Context, tx store.Execer, adminID string) error
	HasAny(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type StatsStore interface {
	Summary(ctx context.Context) (models.Stats, error)
}

type BalanceHub interface {
	BroadcastBalance(dealerID string, update websocket.BalanceUpdate)
}

type EventPublisher interface {
	PublishLeadUnlocked(ctx context.Context, event events.LeadUnlocked) error
	PublishCreditsPurchased(ctx context.Context, event events.CreditsPurchased) error
}
