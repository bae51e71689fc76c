package services

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"automatch/internal/events"
	"automatch/internal/models"
	"automatch/internal/payments"
	"automatch/internal/store"
	"automatch/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// memWorld is an in-memory database. WithTx serialises transactions and
// restores a snapshot when fn fails, which is what the real serializable
// transaction guarantees to callers.
type memWorld struct {
	txMu sync.Mutex
	mu   sync.Mutex

	dealers   map[string]models.Dealer
	leads     []models.Lead
	entries   []models.LedgerEntry
	purchases map[string]models.CreditPurchase
	admins    map[string]models.AdminUser
	audit     []string

	markUnlockedErr error
	insertErr       error
}

func newMemWorld() *memWorld {
	return &memWorld{
		dealers:   map[string]models.Dealer{},
		purchases: map[string]models.CreditPurchase{},
		admins:    map[string]models.AdminUser{},
	}
}

type memSnapshot struct {
	dealers   map[string]models.Dealer
	leads     []models.Lead
	entries   []models.LedgerEntry
	purchases map[string]models.CreditPurchase
	admins    map[string]models.AdminUser
	audit     []string
}

func (w *memWorld) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	w.txMu.Lock()
	defer w.txMu.Unlock()
	snap := w.snapshot()
	if err := fn(nil); err != nil {
		w.restore(snap)
		return err
	}
	return nil
}

func (w *memWorld) snapshot() memSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := memSnapshot{
		dealers:   map[string]models.Dealer{},
		leads:     append([]models.Lead(nil), w.leads...),
		entries:   append([]models.LedgerEntry(nil), w.entries...),
		purchases: map[string]models.CreditPurchase{},
		admins:    map[string]models.AdminUser{},
		audit:     append([]string(nil), w.audit...),
	}
	for k, v := range w.dealers {
		snap.dealers[k] = v
	}
	for k, v := range w.purchases {
		snap.purchases[k] = v
	}
	for k, v := range w.admins {
		snap.admins[k] = v
	}
	return snap
}

func (w *memWorld) restore(snap memSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dealers = snap.dealers
	w.leads = snap.leads
	w.entries = snap.entries
	w.purchases = snap.purchases
	w.admins = snap.admins
	w.audit = snap.audit
}

func (w *memWorld) addDealer(id string, balance int64, status models.DealerStatus) models.Dealer {
	w.mu.Lock()
	defer w.mu.Unlock()
	dealer := models.Dealer{
		ID:     id,
		Name:   "Dealer " + id,
		Email:  id + "@dealer.test",
		TaxID:  "00.000.000/0001-00",
		Region: "Florianópolis - SC",
		Plan:   models.PlanStarter,
		Status: status,
	}
	if balance != 0 {
		dealer.Balance = balance
		w.entries = append(w.entries, models.LedgerEntry{
			ID:       "seed-" + id,
			DealerID: id,
			Kind:     models.EntryAdminAdjustment,
			Amount:   balance,
		})
	}
	w.dealers[id] = dealer
	return dealer
}

func (w *memWorld) addLead(id, location string, remote bool) models.Lead {
	w.mu.Lock()
	defer w.mu.Unlock()
	lead := models.Lead{
		ID:                     id,
		Brands:                 []string{"Toyota"},
		Models:                 []string{"Corolla"},
		YearMin:                2018,
		YearMax:                2022,
		PriceMin:               8000000,
		PriceMax:               12000000,
		Urgency:                models.UrgencyUrgent,
		BuyerName:              "Carlos Silva",
		BuyerEmail:             "carlos@email.com",
		BuyerPhone:             "+55 48 99999-0000",
		Location:               location,
		AcceptsRemoteProposals: remote,
		Status:                 models.LeadStatusNew,
		CreatedAt:              time.Date(2024, 1, len(w.leads)+1, 0, 0, 0, 0, time.UTC),
	}
	w.leads = append(w.leads, lead)
	return lead
}

func (w *memWorld) dealer(id string) models.Dealer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dealers[id]
}

func (w *memWorld) lead(id string) (models.Lead, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, lead := range w.leads {
		if lead.ID == id {
			return lead, true
		}
	}
	return models.Lead{}, false
}

func (w *memWorld) ledgerSum(dealerID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sum int64
	for _, entry := range w.entries {
		if entry.DealerID == dealerID {
			sum += entry.Amount
		}
	}
	return sum
}

func (w *memWorld) entryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

type memDealers struct{ w *memWorld }

func (s memDealers) Create(_ context.Context, _ store.Execer, dealer models.Dealer) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, existing := range s.w.dealers {
		if strings.EqualFold(existing.Email, dealer.Email) {
			return &pq.Error{Code: "23505"}
		}
	}
	dealer.Balance = 0
	s.w.dealers[dealer.ID] = dealer
	return nil
}

func (s memDealers) GetByID(_ context.Context, dealerID string) (models.Dealer, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	dealer, ok := s.w.dealers[dealerID]
	if !ok {
		return models.Dealer{}, sql.ErrNoRows
	}
	return dealer, nil
}

func (s memDealers) GetByEmail(_ context.Context, email string) (models.Dealer, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, dealer := range s.w.dealers {
		if strings.EqualFold(dealer.Email, email) {
			return dealer, nil
		}
	}
	return models.Dealer{}, sql.ErrNoRows
}

func (s memDealers) GetForUpdate(ctx context.Context, _ store.Getter, dealerID string) (models.Dealer, error) {
	return s.GetByID(ctx, dealerID)
}

func (s memDealers) ApplyDelta(_ context.Context, _ store.Execer, dealerID string, delta int64) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	dealer, ok := s.w.dealers[dealerID]
	if !ok || dealer.Balance+delta < 0 {
		return 0, nil
	}
	dealer.Balance += delta
	s.w.dealers[dealerID] = dealer
	return 1, nil
}

func (s memDealers) Update(_ context.Context, _ store.Execer, dealerID string, update store.DealerUpdate) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	dealer, ok := s.w.dealers[dealerID]
	if !ok {
		return 0, nil
	}
	dealer.Name, dealer.Email, dealer.TaxID, dealer.Region, dealer.Plan = update.Name, update.Email, update.TaxID, update.Region, update.Plan
	s.w.dealers[dealerID] = dealer
	return 1, nil
}

func (s memDealers) SetStatus(_ context.Context, _ store.Execer, dealerID string, status models.DealerStatus) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	dealer, ok := s.w.dealers[dealerID]
	if !ok {
		return 0, nil
	}
	dealer.Status = status
	s.w.dealers[dealerID] = dealer
	return 1, nil
}

func (s memDealers) List(_ context.Context) ([]models.Dealer, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	out := make([]models.Dealer, 0, len(s.w.dealers))
	for _, dealer := range s.w.dealers {
		out = append(out, dealer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memDealers) Reconcile(_ context.Context) ([]models.BalanceDiscrepancy, error) {
	s.w.mu.Lock()
	sums := map[string]int64{}
	for _, entry := range s.w.entries {
		sums[entry.DealerID] += entry.Amount
	}
	var out []models.BalanceDiscrepancy
	for _, dealer := range s.w.dealers {
		if sums[dealer.ID] != dealer.Balance {
			out = append(out, models.BalanceDiscrepancy{
				DealerID:          dealer.ID,
				Name:              dealer.Name,
				StoredBalance:     dealer.Balance,
				CalculatedBalance: sums[dealer.ID],
				Difference:        dealer.Balance - sums[dealer.ID],
			})
		}
	}
	s.w.mu.Unlock()
	return out, nil
}

type memLedger struct{ w *memWorld }

func (s memLedger) Insert(_ context.Context, _ store.Execer, entry models.LedgerEntry) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.insertErr != nil {
		return s.w.insertErr
	}
	if entry.ClientRequestID != nil {
		for _, existing := range s.w.entries {
			if existing.ClientRequestID != nil && *existing.ClientRequestID == *entry.ClientRequestID {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	s.w.entries = append(s.w.entries, entry)
	return nil
}

func (s memLedger) SumByDealer(_ context.Context, dealerID string) (int64, error) {
	return s.w.ledgerSum(dealerID), nil
}

func (s memLedger) ListByDealer(_ context.Context, dealerID string, limit, offset int) ([]models.LedgerEntry, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(s.w.entries) - 1; i >= 0; i-- {
		if s.w.entries[i].DealerID == dealerID {
			out = append(out, s.w.entries[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s memLedger) ListByReference(_ context.Context, reference string) ([]models.LedgerEntry, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.LedgerEntry
	for _, entry := range s.w.entries {
		if entry.Reference != nil && *entry.Reference == reference {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s memLedger) UnlockedLeadIDs(_ context.Context, dealerID string) ([]string, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, entry := range s.w.entries {
		if entry.DealerID != dealerID || entry.Kind != models.EntryUnlockDebit || entry.Reference == nil {
			continue
		}
		if !seen[*entry.Reference] {
			seen[*entry.Reference] = true
			out = append(out, *entry.Reference)
		}
	}
	return out, nil
}

type memLeads struct{ w *memWorld }

func (s memLeads) Create(_ context.Context, _ store.Execer, lead models.Lead) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.leads = append(s.w.leads, lead)
	return nil
}

func (s memLeads) List(_ context.Context) ([]models.Lead, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return append([]models.Lead(nil), s.w.leads...), nil
}

func (s memLeads) GetByID(_ context.Context, leadID string) (models.Lead, error) {
	lead, ok := s.w.lead(leadID)
	if !ok {
		return models.Lead{}, sql.ErrNoRows
	}
	return lead, nil
}

func (s memLeads) GetForUpdate(ctx context.Context, _ store.Getter, leadID string) (models.Lead, error) {
	return s.GetByID(ctx, leadID)
}

func (s memLeads) MarkUnlocked(_ context.Context, _ store.Getter, leadID string) (models.Lead, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.markUnlockedErr != nil {
		return models.Lead{}, s.w.markUnlockedErr
	}
	for i, lead := range s.w.leads {
		if lead.ID == leadID {
			lead.Status = models.LeadStatusUnlocked
			lead.UnlockCount++
			s.w.leads[i] = lead
			return lead, nil
		}
	}
	return models.Lead{}, sql.ErrNoRows
}

func (s memLeads) Delete(_ context.Context, _ store.Execer, leadID string) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for i, lead := range s.w.leads {
		if lead.ID == leadID {
			s.w.leads = append(s.w.leads[:i:i], s.w.leads[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type memPurchases struct{ w *memWorld }

func (s memPurchases) Create(_ context.Context, _ store.Execer, purchase models.CreditPurchase) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.purchases[purchase.ID] = purchase
	return nil
}

func (s memPurchases) GetByID(_ context.Context, purchaseID string) (models.CreditPurchase, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	purchase, ok := s.w.purchases[purchaseID]
	if !ok {
		return models.CreditPurchase{}, sql.ErrNoRows
	}
	return purchase, nil
}

func (s memPurchases) GetForUpdate(ctx context.Context, _ store.Getter, purchaseID string) (models.CreditPurchase, error) {
	return s.GetByID(ctx, purchaseID)
}

// transition applies fn when the purchase is in one of the from states,
// pending when none are given.
func (s memPurchases) transition(purchaseID string, fn func(*models.CreditPurchase), from ...models.PurchaseStatus) int64 {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if len(from) == 0 {
		from = []models.PurchaseStatus{models.PurchasePending}
	}
	purchase, ok := s.w.purchases[purchaseID]
	if !ok || !slices.Contains(from, purchase.Status) {
		return 0
	}
	fn(&purchase)
	s.w.purchases[purchaseID] = purchase
	return 1
}

func (s memPurchases) MarkCompleted(_ context.Context, _ store.Execer, purchaseID, ledgerEntryID, providerRef string) (int64, error) {
	return s.transition(purchaseID, func(p *models.CreditPurchase) {
		p.Status = models.PurchaseCompleted
		p.LedgerEntryID = &ledgerEntryID
		p.ProviderRef = &providerRef
		p.FailureReason = nil
	}, models.PurchasePending, models.PurchaseFailed, models.PurchaseExpired), nil
}

func (s memPurchases) MarkFailed(_ context.Context, _ store.Execer, purchaseID, reason string) (int64, error) {
	return s.transition(purchaseID, func(p *models.CreditPurchase) {
		p.Status = models.PurchaseFailed
		p.FailureReason = &reason
	}), nil
}

func (s memPurchases) SetProviderRef(_ context.Context, _ store.Execer, purchaseID, providerRef string) error {
	s.transition(purchaseID, func(p *models.CreditPurchase) {
		p.ProviderRef = &providerRef
	})
	return nil
}

func (s memPurchases) ExpireStale(_ context.Context, _ store.Execer, createdBefore time.Time) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var n int64
	for id, purchase := range s.w.purchases {
		if purchase.Status == models.PurchasePending && purchase.CreatedAt.Before(createdBefore) {
			purchase.Status = models.PurchaseExpired
			s.w.purchases[id] = purchase
			n++
		}
	}
	return n, nil
}

func (s memPurchases) ListByDealer(_ context.Context, dealerID string, _, _ int) ([]models.CreditPurchase, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.CreditPurchase
	for _, purchase := range s.w.purchases {
		if purchase.DealerID == dealerID {
			out = append(out, purchase)
		}
	}
	return out, nil
}

type memAdmins struct{ w *memWorld }

func (s memAdmins) Create(_ context.Context, _ store.Execer, admin models.AdminUser) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, existing := range s.w.admins {
		if strings.EqualFold(existing.Email, admin.Email) {
			return &pq.Error{Code: "23505"}
		}
	}
	s.w.admins[admin.ID] = admin
	return nil
}

func (s memAdmins) GetByID(_ context.Context, adminID string) (models.AdminUser, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	admin, ok := s.w.admins[adminID]
	if !ok {
		return models.AdminUser{}, sql.ErrNoRows
	}
	return admin, nil
}

func (s memAdmins) GetByEmail(_ context.Context, email string) (models.AdminUser, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, admin := range s.w.admins {
		if strings.EqualFold(admin.Email, email) {
			return admin, nil
		}
	}
	return models.AdminUser{}, sql.ErrNoRows
}

func (s memAdmins) GetForUpdate(ctx context.Context, _ store.Getter, adminID string) (models.AdminUser, error) {
	return s.GetByID(ctx, adminID)
}

func (s memAdmins) List(_ context.Context) ([]models.AdminUser, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.AdminUser
	for _, admin := range s.w.admins {
		out = append(out, admin)
	}
	return out, nil
}

func (s memAdmins) Update(_ context.Context, _ store.Execer, adminID, name, email string, role models.AdminRole) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	admin, ok := s.w.admins[adminID]
	if !ok {
		return 0, nil
	}
	admin.Name, admin.Email, admin.Role = name, email, role
	s.w.admins[adminID] = admin
	return 1, nil
}

func (s memAdmins) SetStatus(_ context.Context, _ store.Execer, adminID string, status models.AdminStatus) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	admin, ok := s.w.admins[adminID]
	if !ok {
		return 0, nil
	}
	admin.Status = status
	s.w.admins[adminID] = admin
	return 1, nil
}

func (s memAdmins) TouchLastLogin(_ context.Context, _ store.Execer, adminID string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	admin := s.w.admins[adminID]
	now := time.Now()
	admin.LastLoginAt = &now
	s.w.admins[adminID] = admin
	return nil
}

func (s memAdmins) HasAny(_ context.Context) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return len(s.w.admins) > 0, nil
}

type memAudit struct{ w *memWorld }

func (s memAudit) Log(_ context.Context, _ store.Execer, _, action, _, entityID, _ string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.audit = append(s.w.audit, action+":"+entityID)
	return nil
}

type stubStats struct {
	summaryFn func(ctx context.Context) (models.Stats, error)
}

func (s stubStats) Summary(ctx context.Context) (models.Stats, error) {
	if s.summaryFn == nil {
		return models.Stats{}, nil
	}
	return s.summaryFn(ctx)
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHub) last() (websocket.BalanceUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return websocket.BalanceUpdate{}, false
	}
	return h.updates[len(h.updates)-1], true
}

type recordingPublisher struct {
	mu        sync.Mutex
	unlocked  []events.LeadUnlocked
	purchased []events.CreditsPurchased
	err       error
}

func (p *recordingPublisher) PublishLeadUnlocked(_ context.Context, event events.LeadUnlocked) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = append(p.unlocked, event)
	return p.err
}

func (p *recordingPublisher) PublishCreditsPurchased(_ context.Context, event events.CreditsPurchased) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchased = append(p.purchased, event)
	return p.err
}

type stubProvider struct {
	chargeFn func(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error)
}

func (p stubProvider) Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	if p.chargeFn == nil {
		return payments.ChargeResult{Reference: "ref-" + req.PurchaseID, Status: payments.StatusApproved}, nil
	}
	return p.chargeFn(ctx, req)
}

// testEnv wires every service to one memWorld.
type testEnv struct {
	world        *memWorld
	hub          *recordingHub
	publisher    *recordingPublisher
	ledger       *CreditLedger
	unlock       *UnlockService
	leads        *LeadService
	provisioning *ProvisioningService
	purchases    *PurchaseService
	auth         *AuthService
}

func newTestEnv(provider payments.Provider) *testEnv {
	world := newMemWorld()
	hub := &recordingHub{}
	publisher := &recordingPublisher{}
	if provider == nil {
		provider = stubProvider{}
	}
	dealers := memDealers{w: world}
	ledgerStore := memLedger{w: world}
	leads := memLeads{w: world}
	audit := memAudit{w: world}
	admins := memAdmins{w: world}

	ledger := NewCreditLedger(world, dealers, ledgerStore, audit, hub, nil)
	return &testEnv{
		world:        world,
		hub:          hub,
		publisher:    publisher,
		ledger:       ledger,
		unlock:       NewUnlockService(world, ledger, leads, audit, publisher, nil),
		leads:        NewLeadService(world, leads, dealers, ledgerStore, audit),
		provisioning: NewProvisioningService(world, dealers, admins, audit, stubStats{}, ledger, 10),
		purchases:    NewPurchaseService(world, dealers, memPurchases{w: world}, ledger, audit, provider, publisher, time.Second, nil),
		auth:         NewAuthService(world, dealers, admins, "test-secret", time.Hour),
	}
}
