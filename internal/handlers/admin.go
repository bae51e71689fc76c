package handlers

import (
	"net/http"

	"automatch/internal/middleware"
	"automatch/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) AdminListDealers(w http.ResponseWriter, r *http.Request) {
	dealers, err := h.provisioning.ListDealers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dealers)
}

func (h *Handler) AdminCreateDealer(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var input services.DealerInput
	if err := decodeJSON(r, &input, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	dealer, err := h.provisioning.CreateDealer(r.Context(), actorID, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, dealer)
}

func (h *Handler) AdminGetDealer(w http.ResponseWriter, r *http.Request) {
	detail, err := h.provisioning.GetDealer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) AdminUpdateDealer(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var input services.DealerUpdateInput
	if err := decodeJSON(r, &input, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	dealer, err := h.provisioning.UpdateDealer(r.Context(), actorID, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dealer)
}

func (h *Handler) AdminToggleDealer(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	dealer, err := h.provisioning.ToggleDealerStatus(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dealer)
}

type adjustCreditsRequest struct {
	Delta int64  `json:"delta"`
	Note  string `json:"note"`
}

// AdminAdjustCredits applies a signed correction. Debits larger than the
// balance are clamped; the response reports both requested and applied.
func (h *Handler) AdminAdjustCredits(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req adjustCreditsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	adjustment, err := h.provisioning.AdjustCredits(r.Context(), actorID, chi.URLParam(r, "id"), req.Delta, req.Note)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, adjustment)
}

func (h *Handler) AdminDealerLedger(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.ledger.History(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) AdminEntriesByReference(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.EntriesByReference(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	discrepancies, err := h.ledger.Reconcile(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent":    len(discrepancies) == 0,
		"discrepancies": discrepancies,
	})
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.provisioning.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) AdminListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.provisioning.ListAdmins(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, admins)
}

func (h *Handler) AdminCreateAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var input services.AdminInput
	if err := decodeJSON(r, &input, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	admin, err := h.provisioning.CreateAdmin(r.Context(), actorID, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, admin)
}

func (h *Handler) AdminUpdateAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var input services.AdminUpdateInput
	if err := decodeJSON(r, &input, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	admin, err := h.provisioning.UpdateAdmin(r.Context(), actorID, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, admin)
}

func (h *Handler) AdminToggleAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	admin, err := h.provisioning.ToggleAdminStatus(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, admin)
}
