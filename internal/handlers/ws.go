package handlers

import (
	"net/http"
	"strings"

	"automatch/internal/auth"
	"automatch/internal/websocket"
)

// WSBalances upgrades a dealer connection for balance pushes. Browsers cannot
// set headers on the handshake, so the token may travel in the query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	if claims.Role != auth.RoleDealer {
		respondError(w, http.StatusForbidden, "dealer_required")
		return
	}
	if _, err := h.dealers.GetByID(r.Context(), claims.UserID); err != nil {
		respondError(w, http.StatusUnauthorized, "dealer_not_found")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
