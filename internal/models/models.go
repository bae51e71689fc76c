package models

import (
	"time"

	"github.com/lib/pq"
)

type Urgency string

const (
	UrgencyUrgent  Urgency = "urgent"
	Urgency15Days  Urgency = "15days"
	Urgency30Days  Urgency = "30days"
	UrgencyAnytime Urgency = "anytime"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyUrgent, Urgency15Days, Urgency30Days, UrgencyAnytime:
		return true
	}
	return false
}

type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusUnlocked LeadStatus = "unlocked"
)

func (s LeadStatus) Valid() bool {
	return s == LeadStatusNew || s == LeadStatusUnlocked
}

type DealerStatus string

const (
	DealerStatusActive  DealerStatus = "active"
	DealerStatusPending DealerStatus = "pending"
	DealerStatusBlocked DealerStatus = "blocked"
)

func (s DealerStatus) Valid() bool {
	switch s {
	case DealerStatusActive, DealerStatusPending, DealerStatusBlocked:
		return true
	}
	return false
}

// Toggled returns the status an administrator toggle moves to. Pending
// dealers are activated; active and blocked flip between each other.
func (s DealerStatus) Toggled() DealerStatus {
	if s == DealerStatusActive {
		return DealerStatusBlocked
	}
	return DealerStatusActive
}

type Plan string

const (
	PlanStarter      Plan = "Starter"
	PlanProfessional Plan = "Professional"
	PlanEnterprise   Plan = "Enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

type EntryKind string

const (
	EntryPurchase        EntryKind = "purchase"
	EntryAdminAdjustment EntryKind = "admin-adjustment"
	EntryUnlockDebit     EntryKind = "unlock-debit"
)

func (k EntryKind) Valid() bool {
	switch k {
	case EntryPurchase, EntryAdminAdjustment, EntryUnlockDebit:
		return true
	}
	return false
}

type AdminRole string

const (
	RoleSuperAdmin AdminRole = "Super Admin"
	RoleModerator  AdminRole = "Moderator"
	RoleSupport    AdminRole = "Support"
)

func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleModerator, RoleSupport:
		return true
	}
	return false
}

type AdminStatus string

const (
	AdminStatusActive   AdminStatus = "active"
	AdminStatusInactive AdminStatus = "inactive"
)

func (s AdminStatus) Toggled() AdminStatus {
	if s == AdminStatusActive {
		return AdminStatusInactive
	}
	return AdminStatusActive
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseExpired   PurchaseStatus = "expired"
)

type Lead struct {
	ID                     string         `db:"id" json:"id"`
	Brands                 pq.StringArray `db:"brands" json:"brands"`
	Models                 pq.StringArray `db:"models" json:"models"`
	YearMin                int            `db:"year_min" json:"year_min"`
	YearMax                int            `db:"year_max" json:"year_max"`
	KmMax                  int            `db:"km_max" json:"km_max"`
	PriceMin               int64          `db:"price_min" json:"price_min"`
	PriceMax               int64          `db:"price_max" json:"price_max"`
	Urgency                Urgency        `db:"urgency" json:"urgency"`
	BuyerName              string         `db:"buyer_name" json:"buyer_name,omitempty"`
	BuyerEmail             string         `db:"buyer_email" json:"buyer_email,omitempty"`
	BuyerPhone             string         `db:"buyer_phone" json:"buyer_phone,omitempty"`
	Location               string         `db:"location" json:"location"`
	AcceptsRemoteProposals bool           `db:"accepts_remote_proposals" json:"accepts_remote_proposals"`
	Status                 LeadStatus     `db:"status" json:"status"`
	UnlockCount            int            `db:"unlock_count" json:"unlock_count"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
}

// Redacted hides the buyer's contact details.
func (l Lead) Redacted() Lead {
	l.BuyerName = ""
	l.BuyerEmail = ""
	l.BuyerPhone = ""
	return l
}

type Dealer struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Email        string       `db:"email" json:"email"`
	TaxID        string       `db:"tax_id" json:"tax_id"`
	Region       string       `db:"region" json:"region"`
	Plan         Plan         `db:"plan" json:"plan"`
	Balance      int64        `db:"balance" json:"credits"`
	Status       DealerStatus `db:"status" json:"status"`
	PasswordHash *string      `db:"password_hash" json:"-"`
	JoinedAt     time.Time    `db:"joined_at" json:"joined_at"`
}

type LedgerEntry struct {
	ID              string    `db:"id" json:"id"`
	DealerID        string    `db:"dealer_id" json:"dealer_id"`
	Kind            EntryKind `db:"kind" json:"kind"`
	Amount          int64     `db:"amount" json:"amount"`
	Note            *string   `db:"note" json:"note,omitempty"`
	Reference       *string   `db:"reference" json:"reference,omitempty"`
	ClientRequestID *string   `db:"client_request_id" json:"client_request_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type AdminUser struct {
	ID           string      `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Email        string      `db:"email" json:"email"`
	Role         AdminRole   `db:"role" json:"role"`
	Status       AdminStatus `db:"status" json:"status"`
	PasswordHash string      `db:"password_hash" json:"-"`
	LastLoginAt  *time.Time  `db:"last_login_at" json:"last_login_at"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

type CreditPackage struct {
	ID         string `json:"id"`
	Credits    int64  `json:"credits"`
	PriceCents int64  `json:"price_cents"`
}

var CreditPackages = []CreditPackage{
	{ID: "pack-10", Credits: 10, PriceCents: 9900},
	{ID: "pack-50", Credits: 50, PriceCents: 39900},
	{ID: "pack-150", Credits: 150, PriceCents: 99900},
}

func FindPackage(id string) (CreditPackage, bool) {
	for _, pkg := range CreditPackages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return CreditPackage{}, false
}

type CreditPurchase struct {
	ID              string         `db:"id" json:"id"`
	DealerID        string         `db:"dealer_id" json:"dealer_id"`
	PackageID       string         `db:"package_id" json:"package_id"`
	Credits         int64          `db:"credits" json:"credits"`
	PriceCents      int64          `db:"price_cents" json:"price_cents"`
	Status          PurchaseStatus `db:"status" json:"status"`
	ProviderRef     *string        `db:"provider_ref" json:"provider_ref,omitempty"`
	LedgerEntryID   *string        `db:"ledger_entry_id" json:"ledger_entry_id,omitempty"`
	ClientRequestID *string        `db:"client_request_id" json:"client_request_id,omitempty"`
	FailureReason   *string        `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type BalanceDiscrepancy struct {
	DealerID          string `db:"dealer_id" json:"dealer_id"`
	Name              string `db:"name" json:"name"`
	StoredBalance     int64  `db:"stored_balance" json:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance" json:"calculated_balance"`
	Difference        int64  `db:"difference" json:"difference"`
}

type Stats struct {
	ActiveDealers  int64 `db:"active_dealers" json:"active_dealers"`
	PendingDealers int64 `db:"pending_dealers" json:"pending_dealers"`
	BlockedDealers int64 `db:"blocked_dealers" json:"blocked_dealers"`
	NewLeads       int64 `db:"new_leads" json:"new_leads"`
	UnlockedLeads  int64 `db:"unlocked_leads" json:"unlocked_leads"`
	TotalUnlocks   int64 `db:"total_unlocks" json:"total_unlocks"`
	CreditsSold    int64 `db:"credits_sold" json:"credits_sold"`
	RevenueCents   int64 `db:"revenue_cents" json:"revenue_cents"`
}
