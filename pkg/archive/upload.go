package archive

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
)

// reportDateLayouts are accepted for the as-of date of an upload
var reportDateLayouts = []string{
	"2006-01-02T15:04",
	time.RFC3339,
}

// ParseReportDate parses the as-of date supplied with an upload.
// Dates without a zone are taken as UTC.
func ParseReportDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.Invalid("report_date is required")
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Invalid("report_date must be YYYY-MM-DDTHH:MM or RFC 3339")
}

// UploadReport stores an uploaded system report for a project. The actor must
// have access to the project and a writing role. JSON and YAML files are
// accepted; YAML is stored as its JSON equivalent.
func (s *Service) UploadReport(ctx context.Context, actor *auth.Identity, projectID int64, filename string, content []byte, asOf time.Time) (*ReportRecord, error) {
	if _, err := s.projects.Find(ctx, projectID); err != nil {
		s.record(ctx, actor, audit.ActionUpload, audit.ResourceProject, &projectID,
			"Attempted to upload system report: "+filename, err)
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, actor, projectID); err != nil {
		s.record(ctx, actor, audit.ActionUpload, audit.ResourceProject, &projectID,
			"Attempted to upload system report: "+filename, err)
		return nil, err
	}

	record, format, err := s.storeUpload(ctx, actor, projectID, filename, content, asOf)
	if err != nil {
		s.record(ctx, actor, audit.ActionUpload, audit.ResourceProject, &projectID,
			"Failed to upload system report: "+filename, err)
		return nil, err
	}

	s.metrics.ReportsUploadedTotal.WithLabelValues(string(format)).Inc()
	s.record(ctx, actor, audit.ActionUpload, audit.ResourceSystemReport, &record.ID,
		"Uploaded system report: "+record.Filename, nil)

	return record, nil
}

func (s *Service) storeUpload(ctx context.Context, actor *auth.Identity, projectID int64, filename string, content []byte, asOf time.Time) (*ReportRecord, ReportFormat, error) {
	format, err := reportFormat(filename)
	if err != nil {
		return nil, "", err
	}
	if asOf.IsZero() {
		return nil, "", apperr.Invalid("report_date is required")
	}

	document, err := parseReportPayload(content, format)
	if err != nil {
		return nil, "", err
	}

	safeName := sanitizeFilename(filename)
	if filepath.Ext(safeName) == "" {
		safeName = "report" + strings.ToLower(filepath.Ext(filename))
	}

	record, err := s.RecordReport(ctx, projectID, document, actor.ID, asOf, safeName)
	if err != nil {
		return nil, "", err
	}
	return record, format, nil
}
