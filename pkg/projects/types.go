package projects

import (
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Status represents the lifecycle state of a project
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// Project is the unit of audit work
type Project struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	URL               string    `json:"url"`
	Status            Status    `json:"status"`
	CreatedByID       int64     `json:"created_by_id"`
	CreatedByUsername string    `json:"created_by_username,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProject holds the fields supplied when creating a project
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Member is one row of a project's membership set
type Member struct {
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	AddedByID *int64    `json:"added_by_id,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Counts summarizes the projects visible to one identity
type Counts struct {
	Total  int64 `json:"total_projects"`
	Active int64 `json:"active_projects"`
}
