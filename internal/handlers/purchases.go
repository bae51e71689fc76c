package handlers

import (
	"errors"
	"net/http"

	"automatch/internal/middleware"
	"automatch/internal/models"
	"automatch/internal/money"
	"automatch/internal/payments"
	"automatch/internal/services"
)

const webhookSecretHeader = "X-Webhook-Secret"

func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.purchases.Packages())
}

type purchaseRequest struct {
	PackageID       string `json:"package_id"`
	ClientRequestID string `json:"client_request_id"`
}

// PurchaseCredits answers 201 once the charge settled, or 202 while the
// provider is still deciding.
func (h *Handler) PurchaseCredits(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	var req purchaseRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	result, err := h.purchases.Purchase(r.Context(), services.PurchaseRequest{
		DealerID:        dealerID,
		PackageID:       req.PackageID,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Purchase.Status == models.PurchasePending {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}

func (h *Handler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)
	purchases, err := h.purchases.History(r.Context(), dealerID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

type webhookRequest struct {
	PurchaseID string          `json:"purchase_id"`
	Reference  string          `json:"reference"`
	Status     payments.Status `json:"status"`
	Amount     string          `json:"amount"`
}

// PaymentWebhook settles a purchase the provider answered as pending.
// Replayed notifications are acknowledged without posting again.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if !payments.VerifyWebhookSecret(h.cfg.PaymentWebhookSecret, r.Header.Get(webhookSecretHeader)) {
		respondError(w, http.StatusUnauthorized, "invalid_webhook_secret")
		return
	}
	var req webhookRequest
	if err := decodeJSON(r, &req, false); err != nil || req.PurchaseID == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	switch req.Status {
	case payments.StatusApproved, payments.StatusDeclined, payments.StatusPending:
	default:
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "field": "status"})
		return
	}
	settle := services.SettleRequest{
		PurchaseID:  req.PurchaseID,
		ProviderRef: req.Reference,
		Status:      req.Status,
	}
	if req.Amount != "" {
		cents, err := money.ParseMinor(req.Amount)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "field": "amount"})
			return
		}
		settle.AmountCents = &cents
	}
	purchase, err := h.purchases.Settle(r.Context(), settle)
	if errors.Is(err, services.ErrPurchaseSettled) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already_settled"})
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, purchase)
}
