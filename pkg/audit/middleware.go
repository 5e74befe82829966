package audit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/contextkeys"
)

// OriginMiddleware captures the client address and user agent into the
// request context so that entries recorded further down carry them
type OriginMiddleware struct {
	trustProxy bool
}

// NewOriginMiddleware creates the middleware. When trustProxy is set the
// first X-Forwarded-For hop is used as the client address if it is a valid IP.
func NewOriginMiddleware(trustProxy bool) *OriginMiddleware {
	return &OriginMiddleware{trustProxy: trustProxy}
}

// Handler wraps next
func (m *OriginMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := Origin{
			IPAddress: m.clientIP(r),
			UserAgent: CleanText(r.UserAgent(), maxUserAgentLength),
		}
		next.ServeHTTP(w, r.WithContext(WithOrigin(r.Context(), origin)))
	})
}

// WithOrigin stores the request origin in ctx
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, contextkeys.OriginKey, origin)
}

// OriginFromContext returns the request origin, if any
func OriginFromContext(ctx context.Context) (Origin, bool) {
	origin, ok := ctx.Value(contextkeys.OriginKey).(Origin)
	return origin, ok
}

func (m *OriginMiddleware) clientIP(r *http.Request) string {
	if m.trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := cleanIP(first); ip != "" {
			return ip
		}
		if ip := cleanIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
