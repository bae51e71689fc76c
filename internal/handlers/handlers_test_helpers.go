package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"automatch/internal/auth"
	"automatch/internal/config"
	"automatch/internal/matching"
	"automatch/internal/models"
	"automatch/internal/services"
	"automatch/internal/websocket"
)

const testSecret = "secret"

type stubLeadService struct {
	submitFn        func(ctx context.Context, input services.LeadInput) (models.Lead, error)
	listForDealerFn func(ctx context.Context, dealerID string, filter matching.Filter) ([]services.DealerLead, error)
	listForAdminFn  func(ctx context.Context, filter matching.AdminFilter) ([]models.Lead, error)
	deleteFn        func(ctx context.Context, actorID, leadID string) error
}

func (s stubLeadService) Submit(ctx context.Context, input services.LeadInput) (models.Lead, error) {
	if s.submitFn == nil {
		return models.Lead{}, nil
	}
	return s.submitFn(ctx, input)
}

func (s stubLeadService) ListForDealer(ctx context.Context, dealerID string, filter matching.Filter) ([]services.DealerLead, error) {
	if s.listForDealerFn == nil {
		return []services.DealerLead{}, nil
	}
	return s.listForDealerFn(ctx, dealerID, filter)
}

func (s stubLeadService) ListForAdmin(ctx context.Context, filter matching.AdminFilter) ([]models.Lead, error) {
	if s.listForAdminFn == nil {
		return []models.Lead{}, nil
	}
	return s.listForAdminFn(ctx, filter)
}

func (s stubLeadService) Delete(ctx context.Context, actorID, leadID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, actorID, leadID)
}

type stubUnlockService struct {
	unlockFn func(ctx context.Context, req services.UnlockRequest) (services.UnlockResult, error)
}

func (s stubUnlockService) Unlock(ctx context.Context, req services.UnlockRequest) (services.UnlockResult, error) {
	if s.unlockFn == nil {
		return services.UnlockResult{}, nil
	}
	return s.unlockFn(ctx, req)
}

type stubLedger struct {
	getBalanceFn  func(ctx context.Context, dealerID string) (int64, error)
	historyFn     func(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error)
	byReferenceFn func(ctx context.Context, reference string) ([]models.LedgerEntry, error)
	reconcileFn   func(ctx context.Context) ([]models.BalanceDiscrepancy, error)
}

func (s stubLedger) GetBalance(ctx context.Context, dealerID string) (int64, error) {
	if s.getBalanceFn == nil {
		return 0, nil
	}
	return s.getBalanceFn(ctx, dealerID)
}

func (s stubLedger) History(ctx context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error) {
	if s.historyFn == nil {
		return []models.LedgerEntry{}, nil
	}
	return s.historyFn(ctx, dealerID, limit, offset)
}

func (s stubLedger) EntriesByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	if s.byReferenceFn == nil {
		return []models.LedgerEntry{}, nil
	}
	return s.byReferenceFn(ctx, reference)
}

func (s stubLedger) Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

type stubProvisioning struct {
	createDealerFn func(ctx context.Context, actorID string, input services.DealerInput) (models.Dealer, error)
	updateDealerFn func(ctx context.Context, actorID, dealerID string, input services.DealerUpdateInput) (models.Dealer, error)
	adjustFn       func(ctx context.Context, actorID, dealerID string, delta int64, note string) (services.Adjustment, error)
	toggleDealerFn func(ctx context.Context, actorID, dealerID string) (models.Dealer, error)
	listDealersFn  func(ctx context.Context) ([]models.Dealer, error)
	getDealerFn    func(ctx context.Context, dealerID string) (services.DealerDetail, error)
	createAdminFn  func(ctx context.Context, actorID string, input services.AdminInput) (models.AdminUser, error)
	updateAdminFn  func(ctx context.Context, actorID, adminID string, input services.AdminUpdateInput) (models.AdminUser, error)
	toggleAdminFn  func(ctx context.Context, actorID, adminID string) (models.AdminUser, error)
	listAdminsFn   func(ctx context.Context) ([]models.AdminUser, error)
	statsFn        func(ctx context.Context) (services.StatsReport, error)
}

func (s stubProvisioning) CreateDealer(ctx context.Context, actorID string, input services.DealerInput) (models.Dealer, error) {
	if s.createDealerFn == nil {
		return models.Dealer{}, nil
	}
	return s.createDealerFn(ctx, actorID, input)
}

func (s stubProvisioning) UpdateDealer(ctx context.Context, actorID, dealerID string, input services.DealerUpdateInput) (models.Dealer, error) {
	if s.updateDealerFn == nil {
		return models.Dealer{}, nil
	}
	return s.updateDealerFn(ctx, actorID, dealerID, input)
}

func (s stubProvisioning) AdjustCredits(ctx context.Context, actorID, dealerID string, delta int64, note string) (services.Adjustment, error) {
	if s.adjustFn == nil {
		return services.Adjustment{}, nil
	}
	return s.adjustFn(ctx, actorID, dealerID, delta, note)
}

func (s stubProvisioning) ToggleDealerStatus(ctx context.Context, actorID, dealerID string) (models.Dealer, error) {
	if s.toggleDealerFn == nil {
		return models.Dealer{}, nil
	}
	return s.toggleDealerFn(ctx, actorID, dealerID)
}

func (s stubProvisioning) ListDealers(ctx context.Context) ([]models.Dealer, error) {
	if s.listDealersFn == nil {
		return []models.Dealer{}, nil
	}
	return s.listDealersFn(ctx)
}

func (s stubProvisioning) GetDealer(ctx context.Context, dealerID string) (services.DealerDetail, error) {
	if s.getDealerFn == nil {
		return services.DealerDetail{}, nil
	}
	return s.getDealerFn(ctx, dealerID)
}

func (s stubProvisioning) CreateAdmin(ctx context.Context, actorID string, input services.AdminInput) (models.AdminUser, error) {
	if s.createAdminFn == nil {
		return models.AdminUser{}, nil
	}
	return s.createAdminFn(ctx, actorID, input)
}

func (s stubProvisioning) UpdateAdmin(ctx context.Context, actorID, adminID string, input services.AdminUpdateInput) (models.AdminUser, error) {
	if s.updateAdminFn == nil {
		return models.AdminUser{}, nil
	}
	return s.updateAdminFn(ctx, actorID, adminID, input)
}

func (s stubProvisioning) ToggleAdminStatus(ctx context.Context, actorID, adminID string) (models.AdminUser, error) {
	if s.toggleAdminFn == nil {
		return models.AdminUser{}, nil
	}
	return s.toggleAdminFn(ctx, actorID, adminID)
}

func (s stubProvisioning) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	if s.listAdminsFn == nil {
		return []models.AdminUser{}, nil
	}
	return s.listAdminsFn(ctx)
}

func (s stubProvisioning) Stats(ctx context.Context) (services.StatsReport, error) {
	if s.statsFn == nil {
		return services.StatsReport{}, nil
	}
	return s.statsFn(ctx)
}

type stubPurchases struct {
	purchaseFn func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
	settleFn   func(ctx context.Context, req services.SettleRequest) (models.CreditPurchase, error)
	historyFn  func(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error)
}

func (s stubPurchases) Packages() []services.PackageQuote {
	return []services.PackageQuote{{CreditPackage: models.CreditPackages[0], Price: "R$ 99,00", UnitPrice: "9.90"}}
}

func (s stubPurchases) Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
	if s.purchaseFn == nil {
		return services.PurchaseResult{}, nil
	}
	return s.purchaseFn(ctx, req)
}

func (s stubPurchases) Settle(ctx context.Context, req services.SettleRequest) (models.CreditPurchase, error) {
	if s.settleFn == nil {
		return models.CreditPurchase{}, nil
	}
	return s.settleFn(ctx, req)
}

func (s stubPurchases) History(ctx context.Context, dealerID string, limit, offset int) ([]models.CreditPurchase, error) {
	if s.historyFn == nil {
		return []models.CreditPurchase{}, nil
	}
	return s.historyFn(ctx, dealerID, limit, offset)
}

type stubAuthService struct {
	dealerLoginFn func(ctx context.Context, email, password string) (services.Session, models.Dealer, error)
	adminLoginFn  func(ctx context.Context, email, password string) (services.Session, models.AdminUser, error)
}

func (s stubAuthService) DealerLogin(ctx context.Context, email, password string) (services.Session, models.Dealer, error) {
	if s.dealerLoginFn == nil {
		return services.Session{}, models.Dealer{}, services.ErrInvalidCredentials
	}
	return s.dealerLoginFn(ctx, email, password)
}

func (s stubAuthService) AdminLogin(ctx context.Context, email, password string) (services.Session, models.AdminUser, error) {
	if s.adminLoginFn == nil {
		return services.Session{}, models.AdminUser{}, services.ErrInvalidCredentials
	}
	return s.adminLoginFn(ctx, email, password)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return []models.AuditLog{}, nil
	}
	return s.listFn(ctx, limit, offset)
}

// stubDealerStore knows every dealer id unless getByIDFn says otherwise.
type stubDealerStore struct {
	getByIDFn func(ctx context.Context, dealerID string) (models.Dealer, error)
}

func (s stubDealerStore) GetByID(ctx context.Context, dealerID string) (models.Dealer, error) {
	if s.getByIDFn == nil {
		return models.Dealer{ID: dealerID, Region: "Florianópolis - SC", Status: models.DealerStatusActive}, nil
	}
	return s.getByIDFn(ctx, dealerID)
}

// stubAdminStore maps admin ids to roles; unknown ids are missing.
type stubAdminStore map[string]models.AdminRole

func (s stubAdminStore) GetByID(_ context.Context, adminID string) (models.AdminUser, error) {
	role, ok := s[adminID]
	if !ok {
		return models.AdminUser{}, sql.ErrNoRows
	}
	return models.AdminUser{ID: adminID, Role: role, Status: models.AdminStatusActive}, nil
}

type testDeps struct {
	leads        stubLeadService
	unlocks      stubUnlockService
	ledger       stubLedger
	provisioning stubProvisioning
	purchases    stubPurchases
	authn        stubAuthService
	audit        stubAuditStore
	dealers      stubDealerStore
	admins       stubAdminStore
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:               "test",
		Port:                 "0",
		JWTSecret:            testSecret,
		TokenTTL:             time.Minute,
		AllowedOrigins:       "*",
		PaymentWebhookSecret: "whsec",
	}
	if deps.admins == nil {
		deps.admins = stubAdminStore{}
	}
	return New(cfg, deps.leads, deps.unlocks, deps.ledger, deps.provisioning, deps.purchases, deps.authn, deps.audit, deps.dealers, deps.admins, websocket.NewHub(), nil)
}

func tokenFor(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, role, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// serve routes a request through the full router, so authentication and role
// checks apply exactly as in production.
func serve(t *testing.T, h *Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}
