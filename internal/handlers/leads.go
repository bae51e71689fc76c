package handlers

import (
	"net/http"

	"automatch/internal/matching"
	"automatch/internal/middleware"
	"automatch/internal/services"

	"github.com/go-chi/chi/v5"
)

// SubmitLead is the public buyer intake form.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var input services.LeadInput
	if err := decodeJSON(r, &input, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	lead, err := h.leads.Submit(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":         lead.ID,
		"status":     lead.Status,
		"created_at": lead.CreatedAt,
	})
}

func (h *Handler) DealerLeads(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	query := r.URL.Query()
	scope, err := matching.ParseScope(query.Get("scope"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "field": "scope"})
		return
	}
	urgency, err := matching.ParseUrgency(query.Get("urgency"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "field": "urgency"})
		return
	}
	leads, err := h.leads.ListForDealer(r.Context(), dealerID, matching.Filter{
		Search:  query.Get("search"),
		Urgency: urgency,
		Scope:   scope,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, leads)
}

type unlockRequest struct {
	ClientRequestID string `json:"client_request_id"`
}

func (h *Handler) UnlockLead(w http.ResponseWriter, r *http.Request) {
	dealerID, _ := middleware.UserIDFromContext(r.Context())
	var req unlockRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	result, err := h.unlocks.Unlock(r.Context(), services.UnlockRequest{
		DealerID:        dealerID,
		LeadID:          chi.URLParam(r, "id"),
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) AdminListLeads(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	leads, err := h.leads.ListForAdmin(r.Context(), matching.AdminFilter{
		Brand:  query.Get("brand"),
		Model:  query.Get("model"),
		Search: query.Get("search"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, leads)
}

func (h *Handler) AdminDeleteLead(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.leads.Delete(r.Context(), actorID, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
