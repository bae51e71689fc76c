package services

import (
	"errors"
	"strings"

	"automatch/internal/validator"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient credits")
	ErrDealerBlocked      = errors.New("dealer is not active")
	ErrUnknownDealer      = errors.New("unknown dealer")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrUnknownAdmin       = errors.New("unknown admin")
	ErrAdminInactive      = errors.New("admin is inactive")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidEntryKind   = errors.New("invalid ledger entry kind")
	ErrUnknownPackage     = errors.New("unknown credit package")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrPurchaseSettled    = errors.New("purchase already settled")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrAmountMismatch     = errors.New("settled amount does not match purchase price")
	ErrSelfDeactivation   = errors.New("admins cannot deactivate themselves")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// normalizeEmail lower-cases an address so uniqueness and login lookups
// agree on what counts as the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(input any) error {
	err := validator.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErr validator.FieldError
	if errors.As(err, &fieldErr) {
		return ValidationError{Field: fieldErr.Field, Reason: fieldErr.Rule}
	}
	return err
}
