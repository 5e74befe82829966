package api

import (
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token. It is only ever returned here.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *auth.Identity `json:"user"`
}

// ChangePasswordRequest is the body of PUT /api/v1/auth/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// SetPasswordRequest is the body of PUT /api/v1/users/{id}/password
type SetPasswordRequest struct {
	Password string `json:"password"`
}

// SetActiveRequest is the body of PUT /api/v1/users/{id}/active
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// UpdateStatusRequest is the body of PUT /api/v1/projects/{id}/status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AddMemberRequest is the body of POST /api/v1/projects/{id}/members
type AddMemberRequest struct {
	UserID int64 `json:"user_id"`
}
