package projects

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

type testEnv struct {
	db    *database.DB
	users *auth.Service
	svc   *Service
	trail *audit.DBLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := database.NewTestDB(t)

	trail, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})
	recorder := audit.NewRecorder(trail, logger, observability.NewNopMetrics())

	return &testEnv{
		db:    db,
		users: auth.NewService(db, nil, recorder, logger, auth.Options{BcryptCost: bcrypt.MinCost}),
		svc:   NewService(db, rbac.NewGate(db, rbac.GateConfig{}), recorder, logger),
		trail: trail,
	}
}

func (e *testEnv) user(t *testing.T, username string, role auth.Role) *auth.Identity {
	t.Helper()
	identity, err := e.users.CreateIdentity(context.Background(), nil, auth.NewIdentity{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
		Role:     role,
	})
	require.NoError(t, err)
	return identity
}

func (e *testEnv) project(t *testing.T, actor *auth.Identity, name string) *Project {
	t.Helper()
	project, err := e.svc.CreateProject(context.Background(), actor, NewProject{
		Name: name,
		URL:  "https://portal.example.com",
	})
	require.NoError(t, err)
	return project
}

func (e *testEnv) projectEntries(t *testing.T) []*audit.Entry {
	t.Helper()
	entries, err := e.trail.Query(context.Background(), audit.Filter{Resource: audit.ResourceProject})
	require.NoError(t, err)
	return entries
}

func names(projects []*Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "root", auth.RoleAdministrator)
	bob := env.user(t, "bob", auth.RoleStandard)
	vera := env.user(t, "vera", auth.RoleViewer)

	t.Run("standard creator becomes member", func(t *testing.T) {
		project, err := env.svc.CreateProject(ctx, bob, NewProject{
			Name:        " Site A ",
			Description: "customer portal",
			URL:         "https://a.example.com",
		})
		require.NoError(t, err)
		assert.NotZero(t, project.ID)
		assert.Equal(t, "Site A", project.Name)
		assert.Equal(t, StatusActive, project.Status)
		assert.Equal(t, bob.ID, project.CreatedByID)

		members, err := env.svc.ListMembers(ctx, bob, project.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, bob.ID, members[0].UserID)
		assert.Equal(t, auth.RoleStandard, members[0].Role)

		entries := env.projectEntries(t)
		require.NotEmpty(t, entries)
		assert.Equal(t, audit.ActionCreate, entries[0].Action)
		assert.Equal(t, "Created project: Site A", entries[0].Detail)
		assert.Equal(t, project.ID, *entries[0].ResourceID)
		assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
	})

	t.Run("administrator creator is not added as member", func(t *testing.T) {
		project := env.project(t, admin, "Internal")
		members, err := env.svc.ListMembers(ctx, admin, project.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("viewer is denied and audited", func(t *testing.T) {
		_, err := env.svc.CreateProject(ctx, vera, NewProject{Name: "Nope", URL: "https://n.example.com"})
		assert.ErrorIs(t, err, apperr.ErrAccessDenied)

		entries := env.projectEntries(t)
		require.NotEmpty(t, entries)
		assert.Equal(t, audit.OutcomeDenied, entries[0].Outcome)
		assert.Equal(t, vera.ID, *entries[0].ActorID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := env.svc.CreateProject(ctx, nil, NewProject{Name: "x", URL: "https://x.example.com"})
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			in   NewProject
		}{
			{"empty name", NewProject{Name: "  ", URL: "https://a.example.com"}},
			{"long name", NewProject{Name: string(bytes.Repeat([]byte("n"), 121)), URL: "https://a.example.com"}},
			{"missing url", NewProject{Name: "x"}},
			{"relative url", NewProject{Name: "x", URL: "a.example.com/login"}},
			{"unsupported scheme", NewProject{Name: "x", URL: "ftp://a.example.com"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := len(env.projectEntries(t))

				_, err := env.svc.CreateProject(ctx, bob, tt.in)
				assert.ErrorIs(t, err, apperr.ErrInvalidInput)

				entries := env.projectEntries(t)
				require.Len(t, entries, before+1)
				assert.Equal(t, audit.ActionCreate, entries[0].Action)
				assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
			})
		}
	})
}

func TestProjectVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "root", auth.RoleAdministrator)
	bob := env.user(t, "bob", auth.RoleStandard)
	carol := env.user(t, "carol", auth.RoleStandard)

	siteA := env.project(t, bob, "Site A")
	siteB := env.project(t, carol, "Site B")

	t.Run("list is scoped to membership", func(t *testing.T) {
		list, err := env.svc.ListProjects(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, []string{"Site A"}, names(list))

		list, err = env.svc.ListProjects(ctx, carol)
		require.NoError(t, err)
		assert.Equal(t, []string{"Site B"}, names(list))
	})

	t.Run("administrator sees everything newest first", func(t *testing.T) {
		list, err := env.svc.ListProjects(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, []string{"Site B", "Site A"}, names(list))
		assert.Equal(t, "carol", list[0].CreatedByUsername)
	})

	t.Run("get enforces access", func(t *testing.T) {
		project, err := env.svc.GetProject(ctx, bob, siteA.ID)
		require.NoError(t, err)
		assert.Equal(t, siteA.ID, project.ID)

		_, err = env.svc.GetProject(ctx, carol, siteA.ID)
		assert.ErrorIs(t, err, apperr.ErrAccessDenied)

		_, err = env.svc.GetProject(ctx, admin, siteB.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown project is not found before access", func(t *testing.T) {
		_, err := env.svc.GetProject(ctx, carol, 9999)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("counts", func(t *testing.T) {
		_, err := env.svc.UpdateStatus(ctx, carol, siteB.ID, StatusArchived)
		require.NoError(t, err)

		counts, err := env.svc.CountVisible(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, Counts{Total: 2, Active: 1}, counts)

		counts, err = env.svc.CountVisible(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, Counts{Total: 1, Active: 1}, counts)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "root", auth.RoleAdministrator)
	bob := env.user(t, "bob", auth.RoleStandard)
	vera := env.user(t, "vera", auth.RoleViewer)
	project := env.project(t, bob, "Site A")
	require.NoError(t, env.svc.AddMember(ctx, admin, project.ID, vera.ID))

	updated, err := env.svc.UpdateStatus(ctx, bob, project.ID, StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)

	got, err := env.svc.GetProject(ctx, vera, project.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status)

	_, err = env.svc.UpdateStatus(ctx, vera, project.ID, StatusActive)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	before := len(env.projectEntries(t))

	_, err = env.svc.UpdateStatus(ctx, bob, project.ID, Status("paused"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = env.svc.UpdateStatus(ctx, bob, 9999, StatusActive)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	entries := env.projectEntries(t)
	require.Len(t, entries, before+2)
	assert.Equal(t, int64(9999), *entries[0].ResourceID)
	assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
	assert.Equal(t, audit.OutcomeFailure, entries[1].Outcome)
	assert.Equal(t, bob.ID, *entries[1].ActorID)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "root", auth.RoleAdministrator)
	bob := env.user(t, "bob", auth.RoleStandard)
	project := env.project(t, bob, "Site A")
	other := env.project(t, bob, "Site B")

	now := time.Now().UTC()
	for _, id := range []int64{project.ID, other.ID} {
		_, err := env.db.ExecContext(ctx,
			"INSERT INTO vulnerability_scans (project_id, scan_data, target_url, status, created_at) VALUES ($1, $2, $3, $4, $5)",
			id, `{"vulnerabilities":[]}`, "https://portal.example.com", "completed", now)
		require.NoError(t, err)
		_, err = env.db.ExecContext(ctx,
			"INSERT INTO system_reports (project_id, report_data, uploaded_by, report_date, filename, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			id, `{}`, bob.ID, now, "host.json", now)
		require.NoError(t, err)
	}

	count := func(table string, projectID int64) int {
		var n int
		require.NoError(t, env.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE project_id = $1", projectID).Scan(&n))
		return n
	}

	t.Run("standard user is denied", func(t *testing.T) {
		err := env.svc.DeleteProject(ctx, bob, project.ID)
		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
		assert.Equal(t, 1, count("vulnerability_scans", project.ID))

		entries := env.projectEntries(t)
		assert.Equal(t, audit.OutcomeDenied, entries[0].Outcome)
	})

	t.Run("administrator deletes with dependents", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteProject(ctx, admin, project.ID))

		_, err := env.svc.GetProject(ctx, admin, project.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		for _, table := range []string{"vulnerability_scans", "system_reports", "project_members"} {
			assert.Zero(t, count(table, project.ID), table)
		}
		assert.Equal(t, 1, count("vulnerability_scans", other.ID))

		entries := env.projectEntries(t)
		assert.Equal(t, audit.ActionDelete, entries[0].Action)
		assert.Equal(t, "Deleted project: Site A", entries[0].Detail)
		assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
	})

	t.Run("unknown project", func(t *testing.T) {
		before := len(env.projectEntries(t))

		assert.ErrorIs(t, env.svc.DeleteProject(ctx, admin, project.ID), apperr.ErrNotFound)

		entries := env.projectEntries(t)
		require.Len(t, entries, before+1)
		assert.Equal(t, audit.ActionDelete, entries[0].Action)
		assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
		assert.Equal(t, project.ID, *entries[0].ResourceID)
	})
}

func TestDeleteProject_RollsBackOnFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	db := database.New(conn, database.Postgres)
	svc := NewService(db, rbac.NewGate(db, rbac.GateConfig{}), nil, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}))

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM projects p LEFT JOIN users u ON u.id = p.created_by WHERE p.id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "url", "status", "created_by", "username", "created_at", "updated_at",
		}).AddRow(7, "Site A", "", "https://a.example.com", "active", 2, "bob", now, now))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM vulnerability_scans").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM system_reports").WithArgs(int64(7)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = svc.DeleteProject(context.Background(), &auth.Identity{ID: 1, Role: auth.RoleAdministrator}, 7)
	assert.ErrorContains(t, err, "failed to delete project reports")
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
