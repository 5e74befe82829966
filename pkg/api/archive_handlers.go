package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/archive"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
)

// ArchiveHandlers handles scans, system reports and statistics
type ArchiveHandlers struct {
	archive        *archive.Service
	maxUploadBytes int64
}

// NewArchiveHandlers creates a new ArchiveHandlers
func NewArchiveHandlers(archiveSvc *archive.Service, maxUploadBytes int64) *ArchiveHandlers {
	return &ArchiveHandlers{
		archive:        archiveSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers archive routes
func (h *ArchiveHandlers) RegisterRoutes(router *mux.Router) {
	// Scans
	router.HandleFunc("/projects/{id:[0-9]+}/scans", h.listScans).Methods("GET")
	router.HandleFunc("/projects/{id:[0-9]+}/scans", h.triggerScan).Methods("POST")
	router.HandleFunc("/projects/{id:[0-9]+}/scans/latest", h.latestScan).Methods("GET")

	// Reports
	router.HandleFunc("/projects/{id:[0-9]+}/reports", h.listReports).Methods("GET")
	router.HandleFunc("/projects/{id:[0-9]+}/reports", h.uploadReport).Methods("POST")
	router.HandleFunc("/projects/{id:[0-9]+}/reports/latest", h.latestReport).Methods("GET")

	// Statistics
	router.HandleFunc("/projects/{id:[0-9]+}/stats", h.projectStats).Methods("GET")
	router.HandleFunc("/stats", h.dashboard).Methods("GET")
}

// listScans handles GET /api/v1/projects/{id}/scans
func (h *ArchiveHandlers) listScans(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	scans, err := h.archive.ListScans(r.Context(), middleware.GetIdentity(r.Context()), id, limit)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, scans)
}

// triggerScan handles POST /api/v1/projects/{id}/scans. The request blocks
// until the scanner finishes or times out.
func (h *ArchiveHandlers) triggerScan(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	record, err := h.archive.TriggerScan(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, record)
}

// latestScan handles GET /api/v1/projects/{id}/scans/latest. The body is
// null when the project has never been scanned.
func (h *ArchiveHandlers) latestScan(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.archive.CheckRead(r.Context(), middleware.GetIdentity(r.Context()), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	record, err := h.archive.LatestScan(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, record)
}

// listReports handles GET /api/v1/projects/{id}/reports
func (h *ArchiveHandlers) listReports(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	reports, err := h.archive.ListReports(r.Context(), middleware.GetIdentity(r.Context()), id, limit)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, reports)
}

// uploadReport handles POST /api/v1/projects/{id}/reports with a multipart
// form carrying report_file and report_date
func (h *ArchiveHandlers) uploadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeFormError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("report_file")
	if errors.Is(err, http.ErrMissingFile) {
		httputil.WriteBadRequest(w, "report_file is required")
		return
	}
	if err != nil {
		writeFormError(w, r, err)
		return
	}
	defer file.Close()

	asOf, err := archive.ParseReportDate(r.FormValue("report_date"))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeFormError(w, r, err)
		return
	}

	record, err := h.archive.UploadReport(r.Context(), middleware.GetIdentity(r.Context()), id, header.Filename, content, asOf)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, record)
}

// latestReport handles GET /api/v1/projects/{id}/reports/latest. The body is
// null when nothing has been uploaded.
func (h *ArchiveHandlers) latestReport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.archive.CheckRead(r.Context(), middleware.GetIdentity(r.Context()), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	record, err := h.archive.LatestReport(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, record)
}

// projectStats handles GET /api/v1/projects/{id}/stats
func (h *ArchiveHandlers) projectStats(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.archive.CheckRead(r.Context(), middleware.GetIdentity(r.Context()), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	stats, err := h.archive.VulnerabilityStats(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// dashboard handles GET /api/v1/stats
func (h *ArchiveHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.archive.Dashboard(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, dashboard)
}

// writeFormError answers 413 for oversized bodies and 400 otherwise
func writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteBadRequest(w, "invalid multipart form: "+err.Error())
}
