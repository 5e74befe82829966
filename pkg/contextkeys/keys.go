// Package contextkeys provides centralized context key definitions
//
// All request-scoped values shared between packages are keyed here so that
// middleware and handlers agree on names and types.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithIdentity(ctx, identity)
//	identity, _ := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: all /api/v1 endpoints except login
	IdentityKey Key = "identity"

	// SessionTokenKey contains the raw bearer token string
	// Set by: middleware.Authenticator
	// Used by: logout handler to revoke the current session
	SessionTokenKey Key = "session_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user id as a string
	// Set by: middleware.Authenticator
	// Used by: logger
	UserIDKey Key = "user_id"

	// OriginKey contains audit.Origin (client address and user agent)
	// Set by: audit.Middleware (pkg/audit/middleware.go)
	// Used by: audit.Recorder
	OriginKey Key = "request_origin"
)

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithSessionToken adds the raw session token to the context
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, SessionTokenKey, token)
}

// GetSessionToken retrieves the raw session token from context
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
