package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/archive"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/projects"
)

// ProjectHandlers handles project and membership requests
type ProjectHandlers struct {
	projects *projects.Service
	archive  *archive.Service
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(projectSvc *projects.Service, archiveSvc *archive.Service) *ProjectHandlers {
	return &ProjectHandlers{
		projects: projectSvc,
		archive:  archiveSvc,
	}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/projects", h.CreateProject).Methods("POST")
	router.HandleFunc("/projects/{id:[0-9]+}", h.GetProject).Methods("GET")
	router.HandleFunc("/projects/{id:[0-9]+}", h.DeleteProject).Methods("DELETE")
	router.HandleFunc("/projects/{id:[0-9]+}/status", h.UpdateStatus).Methods("PUT")

	// Members
	router.HandleFunc("/projects/{id:[0-9]+}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/projects/{id:[0-9]+}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/projects/{id:[0-9]+}/members/{user_id:[0-9]+}", h.RemoveMember).Methods("DELETE")
}

// ListProjects lists the projects visible to the caller
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.ListProjects(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateProject creates a project; the creator becomes a member
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req projects.NewProject
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.projects.CreateProject(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, project)
}

// GetProject returns a project with its latest scan, latest report and stats
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.archive.ProjectDetail(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

// DeleteProject removes a project and everything archived for it
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(r.Context(), middleware.GetIdentity(r.Context()), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// UpdateStatus changes the lifecycle status of a project
func (h *ProjectHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.projects.UpdateStatus(r.Context(), middleware.GetIdentity(r.Context()), id, projects.Status(req.Status))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// ListMembers lists the membership set of a project
func (h *ProjectHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	members, err := h.projects.ListMembers(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// AddMember grants a user access to a project
func (h *ProjectHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	if err := h.projects.AddMember(r.Context(), middleware.GetIdentity(r.Context()), id, req.UserID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RemoveMember revokes a user's access to a project
func (h *ProjectHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.projects.RemoveMember(r.Context(), middleware.GetIdentity(r.Context()), id, userID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
