package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
)

// SessionResolver maps a bearer token onto an active identity
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*auth.Identity, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	resolver SessionResolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handler rejects requests without a valid session with 401
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}
		token := strings.TrimSpace(parts[1])

		identity, err := m.resolver.ResolveSession(r.Context(), token)
		if errors.Is(err, apperr.ErrUnauthenticated) {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		ctx = contextkeys.WithSessionToken(ctx, token)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(identity.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the authenticated identity from the request context
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	return identity
}

// RequireAdmin creates middleware that only lets administrators through
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !identity.IsAdmin() {
			httputil.WriteForbidden(w, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
