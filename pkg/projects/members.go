package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// ListMembers returns a project's membership set ordered by username
func (s *Service) ListMembers(ctx context.Context, actor *auth.Identity, projectID int64) ([]*Member, error) {
	if _, err := s.GetProject(ctx, actor, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pm.project_id, pm.user_id, u.username, u.role, pm.added_by, pm.added_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY u.username
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		member := &Member{}
		var role string
		var addedBy sql.NullInt64
		if err := rows.Scan(&member.ProjectID, &member.UserID, &member.Username, &role, &addedBy, &member.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		member.Role = auth.Role(role)
		if addedBy.Valid {
			member.AddedByID = audit.Int64(addedBy.Int64)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// AddMember grants userID access to a project. Administrators only.
// Administrators already see every project and cannot be added as members.
func (s *Service) AddMember(ctx context.Context, actor *auth.Identity, projectID, userID int64) error {
	attempted := fmt.Sprintf("Attempted to grant user %d access to project %d", userID, projectID)
	if err := rbac.RequireAdmin(actor); err != nil {
		s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}

	project, err := s.lookup(ctx, projectID)
	if err != nil {
		s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}
	username, role, err := s.memberCandidate(ctx, userID)
	if err != nil {
		s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}
	if role == auth.RoleAdministrator {
		err := apperr.Invalid("user %s is an administrator and already has access to every project", username)
		s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID,
			fmt.Sprintf("Attempted to grant administrator %s access to project: %s", username, project.Name), err)
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO project_members (project_id, user_id, added_by, added_at) VALUES ($1, $2, $3, $4)",
		projectID, userID, actor.ID, s.now().UTC(),
	)
	if database.IsUniqueViolation(err) {
		err = apperr.Invalid("user %s is already a member of project %s", username, project.Name)
		s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID,
			fmt.Sprintf("Attempted to grant user %s access to project: %s", username, project.Name), err)
		return err
	}
	if err != nil {
		err = fmt.Errorf("failed to add member: %w", err)
	}

	s.gate.Invalidate(projectID, userID)
	s.recordResource(ctx, actor, audit.ActionGrant, audit.ResourceMembership, &projectID,
		fmt.Sprintf("Granted user %s access to project: %s", username, project.Name), err)

	return err
}

// RemoveMember revokes userID's access to a project. Administrators only.
func (s *Service) RemoveMember(ctx context.Context, actor *auth.Identity, projectID, userID int64) error {
	attempted := fmt.Sprintf("Attempted to revoke user %d access to project %d", userID, projectID)
	if err := rbac.RequireAdmin(actor); err != nil {
		s.recordResource(ctx, actor, audit.ActionRevoke, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}

	project, err := s.lookup(ctx, projectID)
	if err != nil {
		s.recordResource(ctx, actor, audit.ActionRevoke, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id = $1 AND user_id = $2",
		projectID, userID,
	)
	if err != nil {
		err = fmt.Errorf("failed to remove member: %w", err)
	} else if n, _ := result.RowsAffected(); n == 0 {
		err = apperr.NotFound("membership", fmt.Sprintf("%d/%d", projectID, userID))
		s.recordResource(ctx, actor, audit.ActionRevoke, audit.ResourceMembership, &projectID, attempted, err)
		return err
	}

	s.gate.Invalidate(projectID, userID)
	s.recordResource(ctx, actor, audit.ActionRevoke, audit.ResourceMembership, &projectID,
		fmt.Sprintf("Revoked user %d access to project: %s", userID, project.Name), err)

	return err
}

func (s *Service) memberCandidate(ctx context.Context, userID int64) (string, auth.Role, error) {
	var username, role string
	err := s.db.QueryRowContext(ctx, "SELECT username, role FROM users WHERE id = $1", userID).Scan(&username, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apperr.NotFound("user", userID)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}
	return username, auth.Role(role), nil
}
