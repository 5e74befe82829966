// Package rbac is the access-control gate for projects.
//
// # Model
//
// There are three fixed global roles (see auth.Role) and one explicit join
// entity, project_members. The decision rules are:
//
//	administrator  every project, every operation
//	standard       projects it is a member of; may mutate them
//	viewer         projects it is a member of; read-only
//
// Deleting projects and changing membership are administrator-only.
//
// # Usage
//
//	gate := rbac.NewGate(db, rbac.GateConfig{})
//
//	if err := gate.Authorize(ctx, actor, projectID); err != nil {
//		return err // apperr.ErrAccessDenied
//	}
//	if err := gate.AuthorizeWrite(ctx, actor, projectID); err != nil {
//		return err // also rejects viewers
//	}
//
// CanAccess has no side effects and never consults the store for
// administrators. A denial is always an error, never an empty result.
//
// # Membership cache
//
// With GateConfig.CacheTTL > 0 membership lookups are cached in an
// expiring LRU. The project service invalidates entries on grant, revoke and
// project deletion, so staleness is bounded by the TTL only across processes.
package rbac
