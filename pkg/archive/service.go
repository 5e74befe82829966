package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/projects"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/scanner"
	"github.com/platinummonkey/warden/pkg/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service is the scan and report archive
type Service struct {
	db        *database.DB
	projects  *projects.Service
	gate      *rbac.Gate
	scanner   scanner.Runner
	artifacts storage.ArtifactStore
	recorder  *audit.Recorder
	logger    *observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Options wires the optional collaborators of the archive
type Options struct {
	Scanner   scanner.Runner
	Artifacts storage.ArtifactStore
	Metrics   *observability.Metrics
}

// NewService creates the archive
func NewService(db *database.DB, projectSvc *projects.Service, gate *rbac.Gate, recorder *audit.Recorder, logger *observability.Logger, opts Options) *Service {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Service{
		db:        db,
		projects:  projectSvc,
		gate:      gate,
		scanner:   opts.Scanner,
		artifacts: opts.Artifacts,
		recorder:  recorder,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CheckRead returns ErrNotFound for an unknown project, then the gate's verdict
func (s *Service) CheckRead(ctx context.Context, actor *auth.Identity, projectID int64) error {
	_, err := s.projects.GetProject(ctx, actor, projectID)
	return err
}

// RecordScan validates and stores a scanner result. Nothing is written for a malformed payload.
func (s *Service) RecordScan(ctx context.Context, projectID int64, payload []byte, targetURL string, duration time.Duration) (*ScanRecord, error) {
	parsed, err := parseScanPayload(payload)
	if err != nil {
		return nil, err
	}

	record := &ScanRecord{
		ProjectID:       projectID,
		TargetURL:       targetURL,
		Status:          ScanCompleted,
		CreatedAt:       s.now().UTC(),
		Summary:         parsed.summary,
		Vulnerabilities: parsed.vulnerabilities,
		Payload:         parsed.document,
	}

	var seconds sql.NullFloat64
	if duration > 0 {
		seconds = sql.NullFloat64{Float64: duration.Seconds(), Valid: true}
		record.DurationSeconds = &seconds.Float64
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO vulnerability_scans (project_id, scan_data, target_url, status, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, projectID, string(record.Payload), targetURL, string(record.Status), seconds, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	return record, nil
}

// RecordReport stores a system report. payload must be a JSON object document.
func (s *Service) RecordReport(ctx context.Context, projectID int64, payload []byte, uploaderID int64, asOf time.Time, filename string) (*ReportRecord, error) {
	document, err := parseReportPayload(payload, FormatJSON)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		return nil, apperr.Invalid("report date is required")
	}

	record := &ReportRecord{
		ProjectID:    projectID,
		UploadedByID: uploaderID,
		ReportDate:   asOf.UTC(),
		Filename:     filename,
		CreatedAt:    s.now().UTC(),
		SystemStatus: systemStatusView(document),
		Payload:      document,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO system_reports (project_id, report_data, uploaded_by, report_date, filename, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, projectID, string(document), uploaderID, record.ReportDate, filename, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record report: %w", err)
	}

	return record, nil
}

const scanColumns = "id, project_id, scan_data, target_url, status, duration_seconds, created_at"

// LatestScan returns the newest scan of a project, or nil when it has none
func (s *Service) LatestScan(ctx context.Context, projectID int64) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scanColumns+`
		FROM vulnerability_scans
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, projectID)
	record, err := scanScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return record, nil
}

// ListScans returns a project's scans, newest first
func (s *Service) ListScans(ctx context.Context, actor *auth.Identity, projectID int64, limit int) ([]*ScanRecord, error) {
	if err := s.CheckRead(ctx, actor, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanColumns+`
		FROM vulnerability_scans
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, projectID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	scans := []*ScanRecord{}
	for rows.Next() {
		record, err := scanScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan record: %w", err)
		}
		scans = append(scans, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}
	return scans, nil
}

const reportColumns = `
	r.id, r.project_id, r.report_data, r.uploaded_by, COALESCE(u.username, ''),
	r.report_date, r.filename, r.created_at
`

// LatestReport returns the newest report of a project, or nil when it has none
func (s *Service) LatestReport(ctx context.Context, projectID int64) (*ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM system_reports r
		LEFT JOIN users u ON u.id = r.uploaded_by
		WHERE r.project_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT 1
	`, projectID)
	record, err := scanReportRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return record, nil
}

// ListReports returns a project's reports, newest first
func (s *Service) ListReports(ctx context.Context, actor *auth.Identity, projectID int64, limit int) ([]*ReportRecord, error) {
	if err := s.CheckRead(ctx, actor, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM system_reports r
		LEFT JOIN users u ON u.id = r.uploaded_by
		WHERE r.project_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2
	`, projectID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*ReportRecord{}
	for rows.Next() {
		record, err := scanReportRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report record: %w", err)
		}
		reports = append(reports, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// VulnerabilityStats returns the latest scan's summary, or an all-zero summary
// when the project has never been scanned
func (s *Service) VulnerabilityStats(ctx context.Context, projectID int64) (Summary, error) {
	latest, err := s.LatestScan(ctx, projectID)
	if err != nil {
		return Summary{}, err
	}
	if latest == nil {
		return Summary{}, nil
	}
	return latest.Summary, nil
}

// ProjectDetail returns a project with its latest scan, latest report and stats
func (s *Service) ProjectDetail(ctx context.Context, actor *auth.Identity, projectID int64) (*ProjectDetail, error) {
	project, err := s.projects.GetProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	detail := &ProjectDetail{Project: project}
	if detail.LatestScan, err = s.LatestScan(ctx, projectID); err != nil {
		return nil, err
	}
	if detail.LatestReport, err = s.LatestReport(ctx, projectID); err != nil {
		return nil, err
	}
	if detail.LatestScan != nil {
		detail.Stats = detail.LatestScan.Summary
	}
	return detail, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScanRecord(row rowScanner) (*ScanRecord, error) {
	record := &ScanRecord{}
	var document, status string
	var duration sql.NullFloat64
	err := row.Scan(&record.ID, &record.ProjectID, &document, &record.TargetURL, &status, &duration, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.Status = ScanStatus(status)
	record.Payload = []byte(document)
	record.Summary, record.Vulnerabilities = scanView(record.Payload)
	if duration.Valid {
		record.DurationSeconds = &duration.Float64
	}
	return record, nil
}

func scanReportRecord(row rowScanner) (*ReportRecord, error) {
	record := &ReportRecord{}
	var document string
	err := row.Scan(&record.ID, &record.ProjectID, &document, &record.UploadedByID, &record.UploadedByUsername,
		&record.ReportDate, &record.Filename, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.Payload = []byte(document)
	record.SystemStatus = systemStatusView(record.Payload)
	return record, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func (s *Service) record(ctx context.Context, actor *auth.Identity, action audit.Action, resource audit.Resource, id *int64, detail string, err error) {
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
