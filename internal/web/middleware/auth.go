package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/database"
)

type contextKey string

const principalContextKey contextKey = "principal"

// respondError mirrors the handlers' error shape so middleware rejections
// parse like every other error response.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Principal is the authenticated teacher, resolved to a tenant.
// Every storage call downstream is scoped by TenantID.
type Principal struct {
	TenantID uuid.UUID
	Email    string
	Name     string
}

// RequireAuth validates the bearer token and resolves the teacher's tenant.
// The tenant is provisioned lazily on first authenticated request.
func RequireAuth(tokens *auth.Tokens, store database.TenantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			tenantID, err := store.ResolveTenant(r.Context(), claims.Subject)
			if err != nil {
				respondError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}

			principal := &Principal{
				TenantID: tenantID,
				Email:    claims.Subject,
				Name:     claims.Name,
			}
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) *Principal {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}

// SetPrincipal adds a principal to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
