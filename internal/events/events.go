package events

import (
	"context"
	"time"
)

const (
	ExchangeName       = "automatch.events"
	DLXName            = "automatch.events.dlx"
	NotificationsQueue = "automatch.notifications"
	NotificationsDLQ   = "automatch.notifications.dlq"

	KeyLeadUnlocked     = "lead.unlocked"
	KeyCreditsPurchased = "credits.purchased"
)

type LeadUnlocked struct {
	DealerID    string    `json:"dealer_id"`
	DealerName  string    `json:"dealer_name"`
	DealerEmail string    `json:"dealer_email"`
	LeadID      string    `json:"lead_id"`
	EntryID     string    `json:"entry_id"`
	Vehicle     string    `json:"vehicle"`
	BuyerName   string    `json:"buyer_name"`
	BuyerEmail  string    `json:"buyer_email"`
	BuyerPhone  string    `json:"buyer_phone"`
	Balance     int64     `json:"balance"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

type CreditsPurchased struct {
	DealerID    string    `json:"dealer_id"`
	DealerName  string    `json:"dealer_name"`
	DealerEmail string    `json:"dealer_email"`
	PurchaseID  string    `json:"purchase_id"`
	EntryID     string    `json:"entry_id"`
	Credits     int64     `json:"credits"`
	PriceCents  int64     `json:"price_cents"`
	Balance     int64     `json:"balance"`
	CompletedAt time.Time `json:"completed_at"`
}

// Noop discards events; used when no broker is configured.
type Noop struct{}

func (Noop) PublishLeadUnlocked(context.Context, LeadUnlocked) error {
	return nil
}

func (Noop) PublishCreditsPurchased(context.Context, CreditsPurchased) error {
	return nil
}
