package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/storage"
)

// TriggerScan runs the external scanner against the project URL and archives
// the result. The actor must have access to the project and a writing role.
// The scanner runs outside any transaction.
func (s *Service) TriggerScan(ctx context.Context, actor *auth.Identity, projectID int64) (*ScanRecord, error) {
	project, err := s.projects.Find(ctx, projectID)
	if err != nil {
		s.record(ctx, actor, audit.ActionScan, audit.ResourceProject, &projectID, "Attempted vulnerability scan", err)
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, actor, projectID); err != nil {
		s.record(ctx, actor, audit.ActionScan, audit.ResourceProject, &projectID, "Attempted vulnerability scan", err)
		return nil, err
	}
	if s.scanner == nil {
		err := fmt.Errorf("%w: no scanner configured", apperr.ErrScanFailed)
		s.record(ctx, actor, audit.ActionScanFailed, audit.ResourceProject, &projectID, "Vulnerability scan failed: no scanner configured", err)
		return nil, err
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"target":     project.URL,
	})

	result, err := s.scanner.Run(ctx, project.URL)
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues(scanFailureKind(err)).Inc()
		s.record(ctx, actor, audit.ActionScanFailed, audit.ResourceProject, &projectID,
			fmt.Sprintf("Vulnerability scan failed (%s): %v", scanFailureKind(err), err), err)
		return nil, err
	}
	s.metrics.ScanDuration.Observe(result.Duration.Seconds())

	record, err := s.RecordScan(ctx, projectID, result.Payload, project.URL, result.Duration)
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues(scanFailureKind(err)).Inc()
		s.record(ctx, actor, audit.ActionScanFailed, audit.ResourceProject, &projectID,
			fmt.Sprintf("Vulnerability scan failed (%s): %v", scanFailureKind(err), err), err)
		return nil, err
	}

	s.archiveOutput(ctx, projectID, result.OutputPath)

	s.metrics.ScansTotal.WithLabelValues("completed").Inc()
	s.record(ctx, actor, audit.ActionScan, audit.ResourceProject, &projectID, "Vulnerability scan completed", nil)
	logger.WithField("scan_id", record.ID).Info("Vulnerability scan archived")

	return record, nil
}

// archiveOutput moves the raw scanner file to the artifact store. The scan
// contents are already stored, so failures are logged and not returned.
func (s *Service) archiveOutput(ctx context.Context, projectID int64, path string) {
	if s.artifacts == nil || path == "" {
		return
	}

	key := fmt.Sprintf("project-%d/%s", projectID, filepath.Base(path))
	location, err := storage.MoveFile(ctx, s.artifacts, path, key, "application/json")

	status := "success"
	if err != nil {
		status = "error"
		s.logger.WithError(err).WithField("path", path).Warn("Failed to archive scanner output")
	} else {
		s.logger.WithField("location", location).Debug("Archived scanner output")
	}
	s.metrics.ArtifactOperationsTotal.WithLabelValues(storage.BackendName(s.artifacts), "put", status).Inc()
}

func scanFailureKind(err error) string {
	switch {
	case errors.Is(err, apperr.ErrScanTimedOut):
		return "timeout"
	case errors.Is(err, apperr.ErrScanOutputMissing):
		return "output_missing"
	case errors.Is(err, apperr.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, apperr.ErrScanFailed):
		return "failed"
	default:
		return "error"
	}
}
