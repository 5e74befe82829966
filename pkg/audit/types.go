package audit

import (
	"time"
)

// Action is the verb recorded in an audit entry
type Action string

const (
	ActionLogin       Action = "LOGIN"
	ActionLoginFailed Action = "LOGIN_FAILED"
	ActionLogout      Action = "LOGOUT"
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionDelete      Action = "DELETE"
	ActionScan        Action = "SCAN"
	ActionScanFailed  Action = "SCAN_FAILED"
	ActionUpload      Action = "UPLOAD"
	ActionGrant       Action = "GRANT"
	ActionRevoke      Action = "REVOKE"
)

// Resource is the kind of object an audit entry refers to
type Resource string

const (
	ResourceUser         Resource = "USER"
	ResourceProject      Resource = "PROJECT"
	ResourceSystemReport Resource = "SYSTEM_REPORT"
	ResourceScan         Resource = "VULNERABILITY_SCAN"
	ResourceMembership   Resource = "MEMBERSHIP"
)

// Outcome records whether the audited attempt took effect
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// OutcomeOf maps an operation error onto an outcome
func OutcomeOf(err error, denied bool) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case denied:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}

// Entry is one append-only audit record
type Entry struct {
	ID            int64     `json:"id"`
	ActorID       *int64    `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Action        Action    `json:"action"`
	Resource      Resource  `json:"resource"`
	ResourceID    *int64    `json:"resource_id,omitempty"`
	Detail        string    `json:"detail"`
	Outcome       Outcome   `json:"outcome"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	CreatedAt     time.Time `json:"created_at"`
}

// Origin is the client information captured from the HTTP request
type Origin struct {
	IPAddress string
	UserAgent string
}

// Filter narrows an audit query
type Filter struct {
	ActorID    *int64
	Action     Action
	Resource   Resource
	ResourceID *int64
	Outcome    Outcome
	Since      *time.Time
	Until      *time.Time

	// Pagination
	Limit  int
	Offset int
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// normalizedLimit clamps the page size
func (f Filter) normalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return defaultQueryLimit
	case f.Limit > maxQueryLimit:
		return maxQueryLimit
	default:
		return f.Limit
	}
}

// Int64 returns a pointer to v, for optional entry ids
func Int64(v int64) *int64 {
	return &v
}
