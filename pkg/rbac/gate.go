package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
)

// Checker decides whether an identity may act on a project
type Checker interface {
	// CanAccess reports whether identity may see the project
	CanAccess(ctx context.Context, identity *auth.Identity, projectID int64) (bool, error)
}

type membershipKey struct {
	projectID int64
	userID    int64
}

// Gate is the single access-control decision point. Administrators pass
// every project check; everyone else needs a project_members row.
type Gate struct {
	db    database.Querier
	cache *lru.LRU[membershipKey, bool]
}

// GateConfig configures the optional membership cache
type GateConfig struct {
	// CacheTTL enables caching of membership lookups when > 0. Within one
	// process grants and revocations invalidate immediately; other processes
	// see them after at most CacheTTL.
	CacheTTL  time.Duration
	CacheSize int
}

// NewGate creates a gate reading memberships through db
func NewGate(db database.Querier, config GateConfig) *Gate {
	g := &Gate{db: db}
	if config.CacheTTL > 0 {
		size := config.CacheSize
		if size <= 0 {
			size = 1024
		}
		g.cache = lru.NewLRU[membershipKey, bool](size, nil, config.CacheTTL)
	}
	return g
}

// CanAccess reports whether identity may see projectID. It has no side effects.
func (g *Gate) CanAccess(ctx context.Context, identity *auth.Identity, projectID int64) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if identity.IsAdmin() {
		return true, nil
	}

	key := membershipKey{projectID: projectID, userID: identity.ID}
	if g.cache != nil {
		if member, ok := g.cache.Get(key); ok {
			return member, nil
		}
	}

	var one int
	err := g.db.QueryRowContext(ctx,
		"SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2",
		projectID, identity.ID,
	).Scan(&one)
	member := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to check project membership: %w", err)
	}

	if g.cache != nil {
		g.cache.Add(key, member)
	}
	return member, nil
}

// Authorize returns apperr.ErrAccessDenied unless identity may see projectID
func (g *Gate) Authorize(ctx context.Context, identity *auth.Identity, projectID int64) error {
	if identity == nil {
		return apperr.ErrUnauthenticated
	}
	ok, err := g.CanAccess(ctx, identity, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("project %d: %w", projectID, apperr.ErrAccessDenied)
	}
	return nil
}

// AuthorizeWrite combines Authorize with RequireWriter
func (g *Gate) AuthorizeWrite(ctx context.Context, identity *auth.Identity, projectID int64) error {
	if err := g.Authorize(ctx, identity, projectID); err != nil {
		return err
	}
	return RequireWriter(identity)
}

// Invalidate drops the cached decision for one membership
func (g *Gate) Invalidate(projectID, userID int64) {
	if g.cache == nil {
		return
	}
	g.cache.Remove(membershipKey{projectID: projectID, userID: userID})
}

// InvalidateProject drops every cached decision for a project
func (g *Gate) InvalidateProject(projectID int64) {
	if g.cache == nil {
		return
	}
	for _, key := range g.cache.Keys() {
		if key.projectID == projectID {
			g.cache.Remove(key)
		}
	}
}

// RequireAdmin returns apperr.ErrAccessDenied for anyone but an administrator
func RequireAdmin(identity *auth.Identity) error {
	if identity == nil {
		return apperr.ErrUnauthenticated
	}
	if !identity.IsAdmin() {
		return fmt.Errorf("administrator role required: %w", apperr.ErrAccessDenied)
	}
	return nil
}

// RequireWriter returns apperr.ErrAccessDenied for viewers
func RequireWriter(identity *auth.Identity) error {
	if identity == nil {
		return apperr.ErrUnauthenticated
	}
	if !identity.CanWrite() {
		return fmt.Errorf("role %s is read-only: %w", identity.Role, apperr.ErrAccessDenied)
	}
	return nil
}
