package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"automatch/internal/auth"
	"automatch/internal/models"
)

type AdminLookup interface {
	GetByID(ctx context.Context, adminID string) (models.AdminUser, error)
}

// RequireAdmin admits active admins. With no roles listed any admin passes;
// otherwise the admin needs one of them. Super Admin always passes.
func RequireAdmin(admins AdminLookup, roles ...models.AdminRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if role, _ := RoleFromContext(r.Context()); role != auth.RoleAdmin {
				writeError(w, http.StatusForbidden, "admin_required")
				return
			}
			admin, err := admins.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					writeError(w, http.StatusForbidden, "admin_required")
					return
				}
				writeError(w, http.StatusInternalServerError, "unable_to_verify_admin")
				return
			}
			if admin.Status != models.AdminStatusActive {
				writeError(w, http.StatusForbidden, "admin_inactive")
				return
			}
			if admin.Role == models.RoleSuperAdmin || len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if admin.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "missing_required_role")
		})
	}
}
