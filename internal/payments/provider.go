package payments

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusPending  Status = "pending"
)

type ChargeRequest struct {
	PurchaseID  string `json:"external_reference"`
	DealerID    string `json:"customer_id"`
	DealerEmail string `json:"customer_email"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
}

type ChargeResult struct {
	Reference string
	Status    Status
}

// Provider charges a dealer for a credit package. Implementations must
// return promptly once ctx is done.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Unconfirmed reports whether a Charge error left the outcome unknown: the
// call timed out, was cancelled, or never got an answer. The provider may
// still capture the payment and confirm it through the webhook.
func Unconfirmed(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// VerifyWebhookSecret compares the shared secret sent by the provider.
func VerifyWebhookSecret(expected, received string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
