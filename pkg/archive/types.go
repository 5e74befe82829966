package archive

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/warden/pkg/projects"
)

// ScanStatus is the completion state of a scan record
type ScanStatus string

const (
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Summary holds finding counts by severity
type Summary struct {
	Total    int64 `json:"total"`
	Critical int64 `json:"critical"`
	High     int64 `json:"high"`
	Medium   int64 `json:"medium"`
	Low      int64 `json:"low"`
}

// Add accumulates other into s
func (s *Summary) Add(other Summary) {
	s.Total += other.Total
	s.Critical += other.Critical
	s.High += other.High
	s.Medium += other.Medium
	s.Low += other.Low
}

// ScanRecord is one archived scanner result
type ScanRecord struct {
	ID              int64             `json:"id"`
	ProjectID       int64             `json:"project_id"`
	TargetURL       string            `json:"target_url"`
	Status          ScanStatus        `json:"status"`
	DurationSeconds *float64          `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Summary         Summary           `json:"stats"`
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"`

	// Payload is the stored JSON document
	Payload json.RawMessage `json:"-"`
}

// ReportRecord is one uploaded system report
type ReportRecord struct {
	ID                 int64        `json:"id"`
	ProjectID          int64        `json:"project_id"`
	UploadedByID       int64        `json:"uploaded_by_id"`
	UploadedByUsername string       `json:"uploaded_by,omitempty"`
	ReportDate         time.Time    `json:"report_date"`
	Filename           string       `json:"filename"`
	CreatedAt          time.Time    `json:"created_at"`
	SystemStatus       SystemStatus `json:"system_status"`

	Payload json.RawMessage `json:"-"`
}

// SystemStatus is the fixed view over a report's top-level sections.
// Missing sections read as empty objects.
type SystemStatus struct {
	OSInfo           json.RawMessage `json:"os_info"`
	Hardware         json.RawMessage `json:"hardware"`
	SoftwareVersions json.RawMessage `json:"software_versions"`
	SecurityStatus   json.RawMessage `json:"security_status"`
	Services         json.RawMessage `json:"services"`
}

// ProjectDetail is a project with its most recent archive entries
type ProjectDetail struct {
	Project      *projects.Project `json:"project"`
	LatestScan   *ScanRecord       `json:"latest_scan"`
	LatestReport *ReportRecord     `json:"latest_report"`
	Stats        Summary           `json:"vulnerability_stats"`
}

// TrendPoint is the vulnerability count of the scans run on one day
type TrendPoint struct {
	Date     string `json:"date"`
	Scans    int64  `json:"scans"`
	Total    int64  `json:"total"`
	Critical int64  `json:"critical"`
}

// Dashboard summarizes everything visible to one identity
type Dashboard struct {
	TotalProjects           int64               `json:"total_projects"`
	ActiveProjects          int64               `json:"active_projects"`
	TotalScans              int64               `json:"total_scans"`
	TotalReports            int64               `json:"total_reports"`
	TotalUsers              int64               `json:"total_users,omitempty"`
	TotalVulnerabilities    int64               `json:"total_vulnerabilities"`
	CriticalVulnerabilities int64               `json:"critical_vulnerabilities"`
	VulnerabilityTrends     []TrendPoint        `json:"vulnerability_trends"`
	RecentProjects          []*projects.Project `json:"recent_projects"`
}
