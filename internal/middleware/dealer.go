package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"automatch/internal/auth"
	"automatch/internal/models"
)

type DealerLookup interface {
	GetByID(ctx context.Context, dealerID string) (models.Dealer, error)
}

// RequireDealer admits dealer tokens whose dealer still exists. Status is
// left to the operations themselves so a blocked dealer can still read.
func RequireDealer(dealers DealerLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			role, _ := RoleFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if role != auth.RoleDealer {
				writeError(w, http.StatusForbidden, "dealer_required")
				return
			}
			if _, err := dealers.GetByID(r.Context(), userID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					writeError(w, http.StatusUnauthorized, "dealer_not_found")
					return
				}
				writeError(w, http.StatusInternalServerError, "unable_to_verify_dealer")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
