package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/archive"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/projects"
)

const defaultMaxUploadBytes = 16 << 20

// AuditQuerier reads back the audit trail
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error)
}

// Services are the domain services exposed over HTTP
type Services struct {
	Auth     *auth.Service
	Projects *projects.Service
	Archive  *archive.Service
	Audit    AuditQuerier
}

// Options configures the HTTP surface. Zero values pick defaults.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// LoginLimiter throttles credential submissions per client address; nil disables it
	LoginLimiter middleware.Limiter

	// TrustProxy takes the client address from X-Forwarded-For
	TrustProxy     bool
	MaxUploadBytes int64
	Tracing        bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server with every /api/v1 route registered
func NewServer(services Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewNopMetrics()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
	}
	s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})

	authHandlers := NewAuthHandlers(services.Auth, opts.LoginLimiter, opts.Logger)
	projectHandlers := NewProjectHandlers(services.Projects, services.Archive)
	archiveHandlers := NewArchiveHandlers(services.Archive, opts.MaxUploadBytes)
	auditHandlers := NewAuditHandlers(services.Audit)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes must be registered before the authenticated catch-all subrouter
	authHandlers.RegisterPublicRoutes(v1)

	protected := v1.NewRoute().Subrouter()
	protected.Use(middleware.NewAuthMiddleware(services.Auth).Handler)

	authHandlers.RegisterRoutes(protected)
	projectHandlers.RegisterRoutes(protected)
	archiveHandlers.RegisterRoutes(protected)
	auditHandlers.RegisterRoutes(protected)

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		audit.NewOriginMiddleware(opts.TrustProxy).Handler,
		httputil.MaxBytesMiddleware(opts.MaxUploadBytes),
	}
	if opts.Tracing {
		chain = append(chain, observability.TracingMiddleware("warden-api"))
	}
	s.handler = httputil.Chain(chain...)(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for route inspection
func (s *Server) Router() *mux.Router {
	return s.router
}
