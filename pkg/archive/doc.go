// Package archive stores vulnerability scan results and uploaded system
// reports, and computes the statistics shown on dashboards.
//
// Records are immutable. They are only removed when their project is
// deleted (see projects.Service.DeleteProject).
//
// # Scan payloads
//
// A scan result is a JSON object:
//
//	{
//	  "summary": {"total": 3, "critical": 1, "high": 1, "medium": 1, "low": 0},
//	  "vulnerabilities": [{"severity": "critical", "title": "..."}]
//	}
//
// Both keys are optional. Without a summary one is derived from the
// severities of the findings. Anything else is rejected with
// apperr.ErrMalformedPayload and nothing is written.
//
// # Reports
//
// Uploaded reports may be JSON or YAML; YAML is stored as its JSON
// equivalent. The read model exposes the fixed system_status sections
// (os_info, hardware, software_versions, security_status, services).
//
// # Access
//
// Operations taking an actor consult the rbac gate; the unguarded store
// operations (RecordScan, LatestScan, VulnerabilityStats, ...) are for
// callers that have already authorized the request.
package archive
