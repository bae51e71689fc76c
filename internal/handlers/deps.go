package handlers

import (
	"context"

	"automatch/internal/matching"
	"automatch/internal/models"
	"automatch/internal/services"
)

type LeadService interface {
	Submit(ctx context.Context, input services.LeadInput) (models.Lead, error)
	ListForDealer(ctx context.Context, dealerID string, filter matching.Filter) ([]services.DealerLead, error)
	ListForAdmin(ctx context.Context, filter matching.AdminFilter) ([]models.Lead, error)
	Delete(ctx context.Context, actorID, leadID string) error
}

type UnlockService interface {
	Unlock(ctx context.Context, req services.UnlockRequest) (services.UnlockResult, error)
}

type CreditLedger interface {
	GetBalance(ctx context.Context, dealerID string) (int64, error)
	History(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error)
	EntriesByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error)
	Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error)
}

type ProvisioningService interface {
	CreateDealer(ctx context.Context, actorID string, input services.DealerInput) (models.Dealer, error)
	UpdateDealer(ctx context.Context, actorID, dealerID string, input services.DealerUpdateInput) (models.Dealer, error)
	AdjustCredits(ctx context.Context, actorID, dealerID string, delta int64, note string) (services.Adjustment, error)
	ToggleDealerStatus(ctx context.Context, actorID, dealerID string) (models.Dealer, error)
	ListDealers(ctx context.Context) ([]models.Dealer, error)
	GetDealer(ctx context.Context, dealerID string) (services.DealerDetail, error)
	CreateAdmin(ctx context.Context, actorID string, input services.AdminInput) (models.AdminUser, error)
	UpdateAdmin(ctx context.Context, actorID, adminID string, input services.AdminUpdateInput) (models.AdminUser, error)
	ToggleAdminStatus(ctx context.Context, actorID, adminID string) (models.AdminUser, error)
	ListAdmins(ctx context.Context) ([]models.AdminUser, error)
	Stats(ctx context.Context) (services.StatsReport, error)
}

type PurchaseService interface {
	Packages() []services.PackageQuote
	Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
	Settle(ctx context.Context, req services.SettleRequest) (models.CreditPurchase, error)
	History(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error)
}

type AuthService interface {
	DealerLogin(ctx context.Context, email, password string) (services.Session, models.Dealer, error)
	AdminLogin(ctx context.Context, email, password string) (services.Session, models.AdminUser, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type DealerStore interface {
	GetByID(ctx context.Context, dealerID string) (models.Dealer, error)
}

type AdminStore interface {
	GetByID(ctx context.Context, adminID string) (models.AdminUser, error)
}
