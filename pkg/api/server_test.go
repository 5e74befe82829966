package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/archive"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/projects"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/scanner"
)

type stubRunner struct {
	payload []byte
	err     error
}

func (s *stubRunner) Run(ctx context.Context, target string) (*scanner.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &scanner.Result{Payload: s.payload, Duration: time.Second}, nil
}

type apiEnv struct {
	server *Server
	users  *auth.Service
	trail  *audit.DBLogger
	runner *stubRunner
}

func newAPIEnv(t *testing.T, limiter middleware.Limiter) *apiEnv {
	t.Helper()
	db := database.NewTestDB(t)

	trail, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})
	metrics := observability.NewNopMetrics()
	recorder := audit.NewRecorder(trail, logger, metrics)
	gate := rbac.NewGate(db, rbac.GateConfig{})
	users := auth.NewService(db, nil, recorder, logger, auth.Options{BcryptCost: bcrypt.MinCost})
	projectSvc := projects.NewService(db, gate, recorder, logger)
	runner := &stubRunner{payload: []byte(`{"summary":{"total":1,"critical":1}}`)}
	archiveSvc := archive.NewService(db, projectSvc, gate, recorder, logger, archive.Options{
		Scanner: runner,
		Metrics: metrics,
	})

	server := NewServer(Services{
		Auth:     users,
		Projects: projectSvc,
		Archive:  archiveSvc,
		Audit:    trail,
	}, Options{
		Logger:       logger,
		Metrics:      metrics,
		LoginLimiter: limiter,
	})

	return &apiEnv{server: server, users: users, trail: trail, runner: runner}
}

func (e *apiEnv) user(t *testing.T, username string, role auth.Role) *auth.Identity {
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

func (e *apiEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/auth/login", "", jsonBody(t, LoginRequest{
		Username: username,
		Password: "password-" + username,
	}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) createProject(t *testing.T, token, name string) *projects.Project {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/projects", token, jsonBody(t, projects.NewProject{
		Name: name,
		URL:  "https://" + name + ".example.com",
	}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var project projects.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	return &project
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func uploadBody(t *testing.T, filename, content, reportDate string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := writer.CreateFormFile("report_file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.WriteField("report_date", reportDate))
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

// TestRegisterRoutes verifies all routes are registered
func TestRegisterRoutes(t *testing.T) {
	env := newAPIEnv(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/auth/login"},
		{"POST", "/api/v1/auth/logout"},
		{"GET", "/api/v1/auth/me"},
		{"PUT", "/api/v1/auth/password"},
		{"GET", "/api/v1/users"},
		{"POST", "/api/v1/users"},
		{"PUT", "/api/v1/users/7/password"},
		{"PUT", "/api/v1/users/7/active"},
		{"GET", "/api/v1/projects"},
		{"POST", "/api/v1/projects"},
		{"GET", "/api/v1/projects/1"},
		{"DELETE", "/api/v1/projects/1"},
		{"PUT", "/api/v1/projects/1/status"},
		{"GET", "/api/v1/projects/1/members"},
		{"POST", "/api/v1/projects/1/members"},
		{"DELETE", "/api/v1/projects/1/members/2"},
		{"GET", "/api/v1/projects/1/scans"},
		{"POST", "/api/v1/projects/1/scans"},
		{"GET", "/api/v1/projects/1/scans/latest"},
		{"GET", "/api/v1/projects/1/reports"},
		{"POST", "/api/v1/projects/1/reports"},
		{"GET", "/api/v1/projects/1/reports/latest"},
		{"GET", "/api/v1/projects/1/stats"},
		{"GET", "/api/v1/stats"},
		{"GET", "/api/v1/audit"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			matched := env.server.Router().Match(req, &match)
			assert.True(t, matched, "Route %s %s should be registered", tt.method, tt.path)
		})
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "bob", auth.RoleStandard)

	t.Run("missing credentials", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/v1/auth/login", "", strings.NewReader(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/v1/auth/login", "", jsonBody(t, LoginRequest{
			Username: "bob",
			Password: "not-the-password",
		}), "application/json")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotContains(t, rec.Body.String(), "not-the-password")
	})

	t.Run("no session", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/v1/auth/me", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, "GET", "/api/v1/auth/me", "bogus", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		token := env.login(t, "bob")

		rec := env.do(t, "GET", "/api/v1/auth/me", token, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var me auth.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
		assert.Equal(t, "bob", me.Username)
		assert.NotContains(t, rec.Body.String(), "password")

		rec = env.do(t, "POST", "/api/v1/auth/logout", token, nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "GET", "/api/v1/auth/me", token, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("change password", func(t *testing.T) {
		token := env.login(t, "bob")

		rec := env.do(t, "PUT", "/api/v1/auth/password", token, jsonBody(t, ChangePasswordRequest{
			CurrentPassword: "wrong-password",
			NewPassword:     "another-password",
		}), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, "PUT", "/api/v1/auth/password", token, jsonBody(t, ChangePasswordRequest{
			CurrentPassword: "password-bob",
			NewPassword:     "password-bob",
		}), "application/json")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func (e *apiEnv) auditEntries(t *testing.T, action audit.Action) []*audit.Entry {
	t.Helper()
	entries, err := e.trail.Query(context.Background(), audit.Filter{Action: action, Limit: 1000})
	require.NoError(t, err)
	return entries
}

func TestLoginFailuresAreAudited(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "bob", auth.RoleStandard)

	t.Run("blank password", func(t *testing.T) {
		before := len(env.auditEntries(t, audit.ActionLoginFailed))

		rec := env.do(t, "POST", "/api/v1/auth/login", "", jsonBody(t, LoginRequest{Username: "bob"}), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		entries := env.auditEntries(t, audit.ActionLoginFailed)
		require.Len(t, entries, before+1)
		assert.Contains(t, entries[0].Detail, "bob")
		assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
	})

	t.Run("blank username", func(t *testing.T) {
		before := len(env.auditEntries(t, audit.ActionLoginFailed))

		rec := env.do(t, "POST", "/api/v1/auth/login", "", strings.NewReader(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Len(t, env.auditEntries(t, audit.ActionLoginFailed), before+1)
	})

	t.Run("invalid utf-8 user agent", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", jsonBody(t, LoginRequest{
			Username: "bob",
			Password: "not-the-password",
		}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "agent\xff\x00/1.0")
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		entries := env.auditEntries(t, audit.ActionLoginFailed)
		require.NotEmpty(t, entries)
		assert.True(t, utf8.ValidString(entries[0].UserAgent))
		assert.NotContains(t, entries[0].UserAgent, "\x00")
		assert.True(t, strings.HasPrefix(entries[0].UserAgent, "agent"))
	})
}

func TestLoginRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Hour,
	})
	env := newAPIEnv(t, limiter)
	env.user(t, "bob", auth.RoleStandard)

	env.login(t, "bob")

	rec := env.do(t, "POST", "/api/v1/auth/login", "", jsonBody(t, LoginRequest{
		Username: "bob",
		Password: "password-bob",
	}), "application/json")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUserAdministration(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "root", auth.RoleAdministrator)
	bob := env.user(t, "bob", auth.RoleStandard)
	adminToken := env.login(t, "root")
	bobToken := env.login(t, "bob")

	newUser := auth.NewIdentity{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "password-dave",
		Role:     auth.RoleViewer,
	}

	rec := env.do(t, "POST", "/api/v1/users", bobToken, jsonBody(t, newUser), "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "POST", "/api/v1/users", adminToken, jsonBody(t, newUser), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/api/v1/users", adminToken, jsonBody(t, newUser), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, "GET", "/api/v1/users", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*auth.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	rec = env.do(t, "GET", "/api/v1/users", bobToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	path := fmt.Sprintf("/api/v1/users/%d/active", bob.ID)
	rec = env.do(t, "PUT", path, adminToken, strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "PUT", path, adminToken, strings.NewReader(`{"active": false}`), "application/json")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/api/v1/auth/me", bobToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProjectEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "root", auth.RoleAdministrator)
	env.user(t, "bob", auth.RoleStandard)
	carol := env.user(t, "carol", auth.RoleStandard)
	env.user(t, "vera", auth.RoleViewer)

	adminToken := env.login(t, "root")
	bobToken := env.login(t, "bob")
	carolToken := env.login(t, "carol")
	veraToken := env.login(t, "vera")

	project := env.createProject(t, bobToken, "alpha")
	projectPath := fmt.Sprintf("/api/v1/projects/%d", project.ID)

	t.Run("viewer cannot create", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/v1/projects", veraToken, jsonBody(t, projects.NewProject{
			Name: "beta",
			URL:  "https://beta.example.com",
		}), "application/json")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid input", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/v1/projects", bobToken, jsonBody(t, projects.NewProject{
			Name: "beta",
			URL:  "ftp://beta.example.com",
		}), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("visibility", func(t *testing.T) {
		rec := env.do(t, "GET", projectPath, bobToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var detail archive.ProjectDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		assert.Equal(t, "alpha", detail.Project.Name)
		assert.Nil(t, detail.LatestScan)
		assert.Equal(t, archive.Summary{}, detail.Stats)

		rec = env.do(t, "GET", projectPath, carolToken, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, "GET", projectPath, adminToken, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, "GET", "/api/v1/projects/999", adminToken, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(t, "GET", "/api/v1/projects", carolToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("membership", func(t *testing.T) {
		membersPath := projectPath + "/members"

		rec := env.do(t, "POST", membersPath, bobToken, jsonBody(t, AddMemberRequest{UserID: carol.ID}), "application/json")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, "POST", membersPath, adminToken, jsonBody(t, AddMemberRequest{UserID: carol.ID}), "application/json")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "GET", projectPath, carolToken, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, "GET", membersPath, carolToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var members []*projects.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
		assert.Len(t, members, 2)

		rec = env.do(t, "DELETE", fmt.Sprintf("%s/%d", membersPath, carol.ID), adminToken, nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "GET", projectPath, carolToken, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("status", func(t *testing.T) {
		rec := env.do(t, "PUT", projectPath+"/status", bobToken, jsonBody(t, UpdateStatusRequest{Status: "archived"}), "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"archived"`)

		rec = env.do(t, "PUT", projectPath+"/status", bobToken, jsonBody(t, UpdateStatusRequest{Status: "gone"}), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("scan", func(t *testing.T) {
		rec := env.do(t, "POST", projectPath+"/scans", bobToken, nil, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, "GET", projectPath+"/stats", bobToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total":1,"critical":1,"high":0,"medium":0,"low":0}`, rec.Body.String())

		rec = env.do(t, "GET", projectPath+"/scans/latest", bobToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)

		env.runner.err = fmt.Errorf("%w: killed", apperr.ErrScanTimedOut)
		rec = env.do(t, "POST", projectPath+"/scans", bobToken, nil, "")
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		env.runner.err = nil
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, "DELETE", projectPath, bobToken, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, "DELETE", projectPath, adminToken, nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "GET", projectPath, adminToken, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUploadReport(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "bob", auth.RoleStandard)
	env.user(t, "carol", auth.RoleStandard)
	bobToken := env.login(t, "bob")
	carolToken := env.login(t, "carol")

	project := env.createProject(t, bobToken, "alpha")
	reportsPath := fmt.Sprintf("/api/v1/projects/%d/reports", project.ID)

	t.Run("txt rejected", func(t *testing.T) {
		body, contentType := uploadBody(t, "notes.txt", `{}`, "2024-02-28T09:30")
		rec := env.do(t, "POST", reportsPath, bobToken, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		body, contentType := uploadBody(t, "", "", "2024-02-28T09:30")
		rec := env.do(t, "POST", reportsPath, bobToken, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "report_file")
	})

	t.Run("bad date", func(t *testing.T) {
		body, contentType := uploadBody(t, "host.json", `{}`, "yesterday")
		rec := env.do(t, "POST", reportsPath, bobToken, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("outsider denied", func(t *testing.T) {
		body, contentType := uploadBody(t, "host.json", `{}`, "2024-02-28T09:30")
		rec := env.do(t, "POST", reportsPath, carolToken, body, contentType)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("json accepted", func(t *testing.T) {
		body, contentType := uploadBody(t, "host.json", `{"os_info":{"name":"Debian"}}`, "2024-02-28T09:30")
		rec := env.do(t, "POST", reportsPath, bobToken, body, contentType)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, "GET", reportsPath+"/latest", bobToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var report archive.ReportRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "host.json", report.Filename)
		assert.JSONEq(t, `{"name":"Debian"}`, string(report.SystemStatus.OSInfo))

		rec = env.do(t, "GET", reportsPath, bobToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var reports []*archive.ReportRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
		assert.Len(t, reports, 1)
	})
}

func TestAuditEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "root", auth.RoleAdministrator)
	env.user(t, "bob", auth.RoleStandard)
	adminToken := env.login(t, "root")
	bobToken := env.login(t, "bob")

	rec := env.do(t, "GET", "/api/v1/audit", bobToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "GET", "/api/v1/audit?action=LOGIN", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*audit.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, audit.ActionLogin, entry.Action)
	}

	rec = env.do(t, "GET", "/api/v1/audit?format=csv", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ID,CreatedAt,ActorID"))

	rec = env.do(t, "GET", "/api/v1/audit?format=xml", adminToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/v1/audit?since=yesterday", adminToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.user(t, "bob", auth.RoleStandard)
	bobToken := env.login(t, "bob")
	env.createProject(t, bobToken, "alpha")

	rec := env.do(t, "GET", "/api/v1/stats", bobToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard archive.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	assert.Equal(t, int64(1), dashboard.TotalProjects)
	assert.NotContains(t, rec.Body.String(), "total_users")

	rec = env.do(t, "GET", "/api/v1/stats", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newAPIEnv(t, nil)
	rec := env.do(t, "GET", "/api/v2/nothing", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
