package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"automatch/internal/middleware"
	"automatch/internal/services"
)

func (h *Handler) DealerMe(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	dealer, err := h.dealers.GetByID(r.Context(), dealerID)
	if errors.Is(err, sql.ErrNoRows) {
		err = services.ErrUnknownDealer
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dealer)
}

func (h *Handler) DealerBalance(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	balance, err := h.ledger.GetBalance(r.Context(), dealerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"dealer_id": dealerID,
		"credits":   balance,
	})
}

func (h *Handler) DealerLedger(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)
	entries, err := h.ledger.History(r.Context(), dealerID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
