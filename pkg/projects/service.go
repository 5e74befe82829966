package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

const (
	maxNameLength = 120
	maxURLLength  = 255
)

const projectColumns = `
	p.id, p.name, p.description, p.url, p.status, p.created_by,
	COALESCE(u.username, ''), p.created_at, p.updated_at
`

// Service is the project registry
type Service struct {
	db       *database.DB
	gate     *rbac.Gate
	recorder *audit.Recorder
	logger   *observability.Logger
	now      func() time.Time
}

// NewService creates a project registry over the shared store handle
func NewService(db *database.DB, gate *rbac.Gate, recorder *audit.Recorder, logger *observability.Logger) *Service {
	return &Service{
		db:       db,
		gate:     gate,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateProject stores a new project owned by actor. A non-administrator
// creator becomes a member in the same transaction.
func (s *Service) CreateProject(ctx context.Context, actor *auth.Identity, in NewProject) (*Project, error) {
	if err := rbac.RequireWriter(actor); err != nil {
		s.record(ctx, actor, audit.ActionCreate, nil, "Attempted to create project: "+in.Name, err)
		return nil, err
	}

	in, err := normalizeNewProject(in)
	if err != nil {
		s.record(ctx, actor, audit.ActionCreate, nil, "Attempted to create project: "+in.Name, err)
		return nil, err
	}

	now := s.now().UTC()
	project := &Project{
		Name:              in.Name,
		Description:       in.Description,
		URL:               in.URL,
		Status:            StatusActive,
		CreatedByID:       actor.ID,
		CreatedByUsername: actor.Username,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO projects (name, description, url, status, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, project.Name, project.Description, project.URL, string(project.Status),
			project.CreatedByID, project.CreatedAt, project.UpdatedAt,
		).Scan(&project.ID)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		if actor.IsAdmin() {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO project_members (project_id, user_id, added_by, added_at) VALUES ($1, $2, $3, $4)",
			project.ID, actor.ID, actor.ID, now,
		)
		if err != nil {
			return fmt.Errorf("failed to add creator to project: %w", err)
		}
		return nil
	})
	if err != nil {
		s.record(ctx, actor, audit.ActionCreate, nil, "Failed to create project: "+in.Name, err)
		return nil, err
	}

	s.gate.Invalidate(project.ID, actor.ID)
	s.record(ctx, actor, audit.ActionCreate, &project.ID, "Created project: "+project.Name, nil)

	return project, nil
}

// ListProjects returns the projects actor may see, newest first.
// Administrators see every project; others only their membership set.
func (s *Service) ListProjects(ctx context.Context, actor *auth.Identity) ([]*Project, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}

	var rows *sql.Rows
	var err error
	if actor.IsAdmin() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+projectColumns+`
			FROM projects p
			LEFT JOIN users u ON u.id = p.created_by
			ORDER BY p.created_at DESC, p.id DESC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+projectColumns+`
			FROM projects p
			JOIN project_members pm ON pm.project_id = p.id
			LEFT JOIN users u ON u.id = p.created_by
			WHERE pm.user_id = $1
			ORDER BY p.created_at DESC, p.id DESC
		`, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// GetProject returns a project after the access check. An unknown id is
// reported as not found before access is considered.
func (s *Service) GetProject(ctx context.Context, actor *auth.Identity, id int64) (*Project, error) {
	project, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	return project, nil
}

// Find returns a project without consulting the gate. Callers authorize separately.
func (s *Service) Find(ctx context.Context, id int64) (*Project, error) {
	return s.lookup(ctx, id)
}

func (s *Service) lookup(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		LEFT JOIN users u ON u.id = p.created_by
		WHERE p.id = $1
	`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// DeleteProject removes a project with its scans, reports and memberships in
// one transaction. Administrators only.
func (s *Service) DeleteProject(ctx context.Context, actor *auth.Identity, id int64) error {
	if err := rbac.RequireAdmin(actor); err != nil {
		s.record(ctx, actor, audit.ActionDelete, &id, "Attempted to delete project", err)
		return err
	}

	project, err := s.lookup(ctx, id)
	if err != nil {
		s.record(ctx, actor, audit.ActionDelete, &id, "Attempted to delete project", err)
		return err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []struct{ what, query string }{
			{"scans", "DELETE FROM vulnerability_scans WHERE project_id = $1"},
			{"reports", "DELETE FROM system_reports WHERE project_id = $1"},
			{"members", "DELETE FROM project_members WHERE project_id = $1"},
		} {
			if _, err := tx.ExecContext(ctx, stmt.query, id); err != nil {
				return fmt.Errorf("failed to delete project %s: %w", stmt.what, err)
			}
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("project", id)
		}
		return nil
	})

	s.gate.InvalidateProject(id)
	s.record(ctx, actor, audit.ActionDelete, &id, "Deleted project: "+project.Name, err)

	return err
}

// UpdateStatus changes a project's lifecycle state. Requires access and a writing role.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.Identity, id int64, status Status) (*Project, error) {
	if !status.Valid() {
		err := apperr.Invalid("status must be active, inactive or archived")
		s.record(ctx, actor, audit.ActionUpdate, &id, "Attempted to change project status", err)
		return nil, err
	}

	project, err := s.lookup(ctx, id)
	if err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &id, "Attempted to change project status", err)
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, actor, id); err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &id, "Attempted to change status of project: "+project.Name, err)
		return nil, err
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3",
		string(status), now, id,
	)
	if err != nil {
		err = fmt.Errorf("failed to update project status: %w", err)
	}

	s.record(ctx, actor, audit.ActionUpdate, &id,
		fmt.Sprintf("Changed status of project: %s from %s to %s", project.Name, project.Status, status), err)
	if err != nil {
		return nil, err
	}

	project.Status = status
	project.UpdatedAt = now
	return project, nil
}

// CountVisible counts the projects actor may see
func (s *Service) CountVisible(ctx context.Context, actor *auth.Identity) (Counts, error) {
	var counts Counts
	if actor == nil {
		return counts, apperr.ErrUnauthenticated
	}

	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN p.status = 'active' THEN 1 ELSE 0 END), 0)
		FROM projects p
	`
	var args []interface{}
	if !actor.IsAdmin() {
		query += " JOIN project_members pm ON pm.project_id = p.id WHERE pm.user_id = $1"
		args = append(args, actor.ID)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&counts.Total, &counts.Active); err != nil {
		return counts, fmt.Errorf("failed to count projects: %w", err)
	}
	return counts, nil
}

func normalizeNewProject(in NewProject) (NewProject, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.URL = strings.TrimSpace(in.URL)

	var errs []error
	if in.Name == "" || len(in.Name) > maxNameLength {
		errs = append(errs, apperr.Invalid("name must be 1-%d characters", maxNameLength))
	}
	if err := validateTargetURL(in.URL); err != nil {
		errs = append(errs, err)
	}
	return in, errors.Join(errs...)
}

// validateTargetURL requires an absolute http(s) URL since it is handed to the scanner
func validateTargetURL(raw string) error {
	if raw == "" || len(raw) > maxURLLength {
		return apperr.Invalid("url must be 1-%d characters", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Invalid("url must be an absolute http or https URL")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	project := &Project{}
	var status string
	err := row.Scan(
		&project.ID, &project.Name, &project.Description, &project.URL, &status,
		&project.CreatedByID, &project.CreatedByUsername, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	project.Status = Status(status)
	return project, nil
}

func (s *Service) record(ctx context.Context, actor *auth.Identity, action audit.Action, projectID *int64, detail string, err error) {
	s.recordResource(ctx, actor, action, audit.ResourceProject, projectID, detail, err)
}

func (s *Service) recordResource(ctx context.Context, actor *auth.Identity, action audit.Action, resource audit.Resource, id *int64, detail string, err error) {
	if s.recorder == nil {
		return
	}
	entry := audit.Entry{
		Action:     action,
		Resource:   resource,
		ResourceID: id,
		Detail:     detail,
		Outcome:    audit.OutcomeOf(err, errors.Is(err, apperr.ErrAccessDenied)),
	}
	if actor != nil {
		entry.ActorID = audit.Int64(actor.ID)
		entry.ActorUsername = actor.Username
	}
	s.recorder.Record(ctx, entry)
}
