package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
)

// AuditHandlers serves the audit trail to administrators
type AuditHandlers struct {
	trail AuditQuerier
}

// NewAuditHandlers creates a new AuditHandlers
func NewAuditHandlers(trail AuditQuerier) *AuditHandlers {
	return &AuditHandlers{trail: trail}
}

// RegisterRoutes registers audit routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/audit", middleware.RequireAdmin(http.HandlerFunc(h.query))).Methods("GET")
}

// query handles GET /api/v1/audit. Supported filters: actor_id, action,
// resource, resource_id, outcome, since, until (RFC 3339), limit, offset.
// format=json|ndjson|csv selects the encoding.
func (h *AuditHandlers) query(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	format := audit.ExportFormat(httputil.ParseQueryString(r, "format", string(audit.FormatJSON)))
	switch format {
	case audit.FormatJSON, audit.FormatNDJSON, audit.FormatCSV:
	default:
		httputil.WriteBadRequest(w, fmt.Sprintf("unsupported format: %s", format))
		return
	}

	entries, err := h.trail.Query(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == audit.FormatCSV {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="audit-%s.csv"`, time.Now().UTC().Format("20060102-150405")))
	}
	w.WriteHeader(http.StatusOK)
	if err := audit.Export(w, entries, format); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Failed to write audit export")
	}
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	var err error

	if filter.ActorID, err = httputil.ParseQueryInt64(r, "actor_id"); err != nil {
		return filter, err
	}
	if filter.ResourceID, err = httputil.ParseQueryInt64(r, "resource_id"); err != nil {
		return filter, err
	}
	if filter.Since, err = httputil.ParseQueryTime(r, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = httputil.ParseQueryTime(r, "until"); err != nil {
		return filter, err
	}
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", 0); err != nil {
		return filter, err
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	if filter.Offset < 0 {
		return filter, fmt.Errorf("offset must not be negative")
	}

	filter.Action = audit.Action(r.URL.Query().Get("action"))
	filter.Resource = audit.Resource(r.URL.Query().Get("resource"))
	filter.Outcome = audit.Outcome(r.URL.Query().Get("outcome"))
	return filter, nil
}
