package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/auth"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// identityKey is the context key for the verified caller.
const identityKey ctxKey = "identity"

// GetIdentity returns the verified caller from context.
// Returns 401 error if the request carried no valid token.
func GetIdentity(ctx context.Context) (*auth.Identity, error) {
	ident, ok := ctx.Value(identityKey).(*auth.Identity)
	if !ok || ident == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return ident, nil
}

// RequireCaregiver returns the caller when they are on the caregiver allow-list.
func RequireCaregiver(ctx context.Context) (*auth.Identity, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !ident.IsCaregiver() {
		return nil, domainerrors.Forbidden("Caregiver access required")
	}
	return ident, nil
}

func setIdentity(ctx context.Context, ident *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// authMiddleware validates Bearer tokens and stores the identity in context.
// If no token is present or it is invalid, the request continues without an
// identity and handlers reject it through GetIdentity.
// A verified caller is recorded in the activity log on a best-effort basis.
func authMiddleware(verifier *auth.Verifier, activity *service.ActivityService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if verifier == nil || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			ident, err := verifier.Verify(authHeader[7:])
			if err != nil {
				logger.Debug("rejected identity token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if activity != nil {
				if _, err := activity.TouchUser(r.Context(), ident.Email, ident.Name, ident.Role); err != nil {
					logger.Warn("failed to record user activity", "email", ident.Email, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(setIdentity(r.Context(), ident)))
		})
	}
}
