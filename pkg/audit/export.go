package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportFormat selects the audit export encoding
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatNDJSON ExportFormat = "ndjson"
	FormatCSV    ExportFormat = "csv"
)

// ContentType returns the MIME type for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}

// Export writes entries to w in the requested format
func Export(w io.Writer, entries []*Entry, format ExportFormat) error {
	switch format {
	case FormatJSON, "":
		return json.NewEncoder(w).Encode(entries)
	case FormatNDJSON:
		encoder := json.NewEncoder(w)
		for _, entry := range entries {
			if err := encoder.Encode(entry); err != nil {
				return fmt.Errorf("failed to encode entry: %w", err)
			}
		}
		return nil
	case FormatCSV:
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportCSV(w io.Writer, entries []*Entry) error {
	writer := csv.NewWriter(w)

	header := []string{
		"ID", "CreatedAt", "ActorID", "ActorUsername", "Action", "Resource",
		"ResourceID", "Outcome", "IPAddress", "UserAgent", "Detail",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.CreatedAt.UTC().Format(time.RFC3339),
			formatInt64Ptr(entry.ActorID),
			entry.ActorUsername,
			string(entry.Action),
			string(entry.Resource),
			formatInt64Ptr(entry.ResourceID),
			string(entry.Outcome),
			entry.IPAddress,
			entry.UserAgent,
			entry.Detail,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
