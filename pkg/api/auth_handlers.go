package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
)

// AuthHandlers handles login sessions and identity administration
type AuthHandlers struct {
	users   *auth.Service
	limiter middleware.Limiter
	logger  *observability.Logger
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(users *auth.Service, limiter middleware.Limiter, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:   users,
		limiter: limiter,
		logger:  logger,
	}
}

// RegisterPublicRoutes registers the routes reachable without a session
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.limiter != nil {
		login = middleware.RateLimit(h.limiter, h.logger)(login)
	}
	router.Handle("/auth/login", login).Methods("POST")
}

// RegisterRoutes registers the session and user routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	// Session routes
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/auth/me", h.me).Methods("GET")
	router.HandleFunc("/auth/password", h.changePassword).Methods("PUT")

	// User routes
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users", h.createUser).Methods("POST")
	router.HandleFunc("/users/{id}/password", h.setPassword).Methods("PUT")
	router.HandleFunc("/users/{id}/active", h.setActive).Methods("PUT")
}

// login handles POST /api/v1/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		h.users.RecordFailedLogin(r.Context(), req.Username)
		httputil.WriteBadRequest(w, "username and password are required")
		return
	}

	token, session, identity, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      identity,
	})
}

// logout handles POST /api/v1/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	token := contextkeys.GetSessionToken(r.Context())

	if err := h.users.Logout(r.Context(), identity, token); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// me handles GET /api/v1/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetIdentity(r.Context()))
}

// changePassword handles PUT /api/v1/auth/password
func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.users.ChangePassword(r.Context(), middleware.GetIdentity(r.Context()), req.CurrentPassword, req.NewPassword)
	if errors.Is(err, apperr.ErrInvalidCredentials) {
		// A 401 here would read as an expired session
		httputil.WriteBadRequest(w, "current password is incorrect")
		return
	}
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listUsers handles GET /api/v1/users
func (h *AuthHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := h.users.ListIdentities(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, identities)
}

// createUser handles POST /api/v1/users
func (h *AuthHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req auth.NewIdentity
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity, err := h.users.CreateIdentity(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, identity)
}

// setPassword handles PUT /api/v1/users/{id}/password
func (h *AuthHandlers) setPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req SetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.users.SetCredential(r.Context(), middleware.GetIdentity(r.Context()), userID, req.Password); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// setActive handles PUT /api/v1/users/{id}/active
func (h *AuthHandlers) setActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req SetActiveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Active == nil {
		httputil.WriteBadRequest(w, "active is required")
		return
	}

	if err := h.users.SetActive(r.Context(), middleware.GetIdentity(r.Context()), userID, *req.Active); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
