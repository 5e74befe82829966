package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/warden/pkg/apperr"
)

// parsedScan is a validated scan payload
type parsedScan struct {
	document        []byte
	summary         Summary
	vulnerabilities []json.RawMessage
}

// finding is the part of a vulnerability entry the archive reads
type finding struct {
	Severity string `json:"severity"`
}

// parseScanPayload validates a scanner document. It must be a JSON object;
// "summary" when present must hold non-negative counts, and "vulnerabilities"
// when present must be an array of objects. A missing summary is derived from
// the findings and written back into the stored document.
func parseScanPayload(payload []byte) (*parsedScan, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return nil, apperr.Malformed("scan result must be a JSON object")
	}

	parsed := &parsedScan{vulnerabilities: []json.RawMessage{}}

	if raw, ok := doc["vulnerabilities"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &parsed.vulnerabilities); err != nil {
			return nil, apperr.Malformed("vulnerabilities must be an array")
		}
		for i, v := range parsed.vulnerabilities {
			if !isObject(v) {
				return nil, apperr.Malformed("vulnerabilities[%d] must be an object", i)
			}
		}
	}

	raw, hasSummary := doc["summary"]
	if hasSummary && !isNull(raw) {
		if !isObject(raw) {
			return nil, apperr.Malformed("summary must be an object")
		}
		if err := json.Unmarshal(raw, &parsed.summary); err != nil {
			return nil, apperr.Malformed("summary counts must be integers")
		}
		s := parsed.summary
		if s.Total < 0 || s.Critical < 0 || s.High < 0 || s.Medium < 0 || s.Low < 0 {
			return nil, apperr.Malformed("summary counts must not be negative")
		}
		parsed.document = compact(payload)
		return parsed, nil
	}

	summary, err := deriveSummary(parsed.vulnerabilities)
	if err != nil {
		return nil, err
	}
	parsed.summary = summary

	doc["summary"], _ = json.Marshal(summary)
	if parsed.document, err = json.Marshal(doc); err != nil {
		return nil, fmt.Errorf("failed to encode scan result: %w", err)
	}
	return parsed, nil
}

func deriveSummary(vulnerabilities []json.RawMessage) (Summary, error) {
	summary := Summary{Total: int64(len(vulnerabilities))}
	for i, raw := range vulnerabilities {
		var f finding
		if err := json.Unmarshal(raw, &f); err != nil {
			return Summary{}, apperr.Malformed("vulnerabilities[%d].severity must be a string", i)
		}
		switch strings.ToLower(strings.TrimSpace(f.Severity)) {
		case "critical":
			summary.Critical++
		case "high":
			summary.High++
		case "medium":
			summary.Medium++
		case "low":
			summary.Low++
		}
	}
	return summary, nil
}

// scanView reads summary and findings back out of a stored document.
// Stored documents were validated on the way in; anything unreadable reads as empty.
func scanView(document []byte) (Summary, []json.RawMessage) {
	var doc struct {
		Summary         *Summary          `json:"summary"`
		Vulnerabilities []json.RawMessage `json:"vulnerabilities"`
	}
	_ = json.Unmarshal(document, &doc)

	vulnerabilities := doc.Vulnerabilities
	if vulnerabilities == nil {
		vulnerabilities = []json.RawMessage{}
	}
	if doc.Summary == nil {
		return Summary{}, vulnerabilities
	}
	return *doc.Summary, vulnerabilities
}

// ReportFormat is the accepted upload encoding
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
)

// reportFormat maps a filename extension onto a format
func reportFormat(filename string) (ReportFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", apperr.Malformed("report file must be .json, .yaml or .yml")
	}
}

// parseReportPayload decodes report content as UTF-8 text and returns it as a
// compact JSON object document
func parseReportPayload(content []byte, format ReportFormat) ([]byte, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return nil, apperr.Malformed("report is not valid UTF-8 text")
	}

	switch format {
	case FormatJSON:
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(content, &doc); err != nil || doc == nil {
			return nil, apperr.Malformed("report must be a JSON object")
		}
		return compact(content), nil

	case FormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, apperr.Malformed("report is not valid YAML: %v", err)
		}
		normalized := normalizeYAML(doc)
		if _, ok := normalized.(map[string]interface{}); !ok {
			return nil, apperr.Malformed("report must be a mapping at the top level")
		}
		document, err := json.Marshal(normalized)
		if err != nil {
			return nil, apperr.Malformed("report cannot be represented as JSON: %v", err)
		}
		return document, nil
	}

	return nil, apperr.Malformed("unsupported report format %q", format)
}

// normalizeYAML turns non-string mapping keys into strings so the value can be JSON encoded
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	default:
		return v
	}
}

// systemStatusView projects the fixed report sections
func systemStatusView(document []byte) SystemStatus {
	var doc map[string]json.RawMessage
	_ = json.Unmarshal(document, &doc)

	section := func(key string) json.RawMessage {
		if raw, ok := doc[key]; ok && !isNull(raw) {
			return raw
		}
		return json.RawMessage(`{}`)
	}
	return SystemStatus{
		OSInfo:           section("os_info"),
		Hardware:         section("hardware"),
		SoftwareVersions: section("software_versions"),
		SecurityStatus:   section("security_status"),
		Services:         section("services"),
	}
}

const maxFilenameLength = 255

// sanitizeFilename keeps the base name of an uploaded file restricted to a
// safe character set
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), "._")
	if len(cleaned) > maxFilenameLength {
		ext := filepath.Ext(cleaned)
		cleaned = cleaned[:maxFilenameLength-len(ext)] + ext
	}
	return cleaned
}

func compact(document []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, document); err != nil {
		return document
	}
	return buf.Bytes()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
