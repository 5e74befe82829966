package auth

import "time"

// Role is the fixed global role of an identity
type Role string

const (
	RoleAdministrator Role = "administrator" // Sees and manages everything
	RoleStandard      Role = "standard"      // Works on projects they are a member of
	RoleViewer        Role = "viewer"        // Read-only on projects they are a member of
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleStandard, RoleViewer:
		return true
	}
	return false
}

// Identity represents a user account
type Identity struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose hash
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the identity holds the administrator role
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdministrator
}

// CanWrite reports whether the identity's role permits mutations at all.
// Project membership is checked separately by the access gate.
func (i *Identity) CanWrite() bool {
	return i != nil && (i.Role == RoleAdministrator || i.Role == RoleStandard)
}

// NewIdentity holds the fields needed to create an identity
type NewIdentity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Session is a login session. The raw token is returned once at login and
// only its SHA-256 hash is kept.
type Session struct {
	TokenHash string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
