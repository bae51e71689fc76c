package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"automatch/internal/db"
	"automatch/internal/logger"
	"automatch/internal/services"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

// respondServiceError maps a service failure onto its HTTP status and error
// code. Anything unrecognised is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation_failed",
			"field": validationErr.Field,
		})
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusConflict, "insufficient_credits")
	case errors.Is(err, services.ErrDealerBlocked):
		respondError(w, http.StatusForbidden, "dealer_blocked")
	case errors.Is(err, services.ErrUnknownDealer):
		respondError(w, http.StatusNotFound, "dealer_not_found")
	case errors.Is(err, services.ErrLeadNotFound):
		respondError(w, http.StatusNotFound, "lead_not_found")
	case errors.Is(err, services.ErrUnknownAdmin):
		respondError(w, http.StatusNotFound, "admin_not_found")
	case errors.Is(err, services.ErrPurchaseNotFound):
		respondError(w, http.StatusNotFound, "purchase_not_found")
	case errors.Is(err, services.ErrPurchaseSettled):
		respondError(w, http.StatusConflict, "purchase_settled")
	case errors.Is(err, services.ErrAmountMismatch):
		respondError(w, http.StatusConflict, "amount_mismatch")
	case errors.Is(err, services.ErrUnknownPackage):
		respondError(w, http.StatusBadRequest, "unknown_package")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInvalidEntryKind):
		respondError(w, http.StatusBadRequest, "invalid_entry_kind")
	case errors.Is(err, services.ErrPaymentFailed):
		respondError(w, http.StatusPaymentRequired, "payment_failed")
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, services.ErrAdminInactive):
		respondError(w, http.StatusForbidden, "admin_inactive")
	case errors.Is(err, services.ErrSelfDeactivation):
		respondError(w, http.StatusConflict, "self_deactivation")
	case db.IsUniqueViolation(err):
		respondError(w, http.StatusConflict, "duplicate_request")
	case errors.Is(err, db.ErrRetryLimit):
		respondError(w, http.StatusServiceUnavailable, "busy")
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

// decodeJSON reads the request body into dest. An empty body is accepted
// when optional is set.
func decodeJSON(r *http.Request, dest any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads limit and page from the query string.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	limit = parseInt(query.Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
