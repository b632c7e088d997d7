package finding

import (
	"fmt"
	"time"
)

// ExportFormat represents the format for exporting findings.
type ExportFormat string

const (
	// FormatJSON exports findings as JSON.
	FormatJSON ExportFormat = "json"

	// FormatSARIF exports findings in SARIF (Static Analysis Results Interchange Format).
	FormatSARIF ExportFormat = "sarif"

	// FormatCSV exports findings as comma-separated values.
	FormatCSV ExportFormat = "csv"
)

// IsValid returns true if the export format is valid.
func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatSARIF, FormatCSV:
		return true
	default:
		return false
	}
}

// String returns the string representation of the export format.
func (f ExportFormat) String() string {
	return string(f)
}

// FileExtension returns the file extension for the export format.
func (f ExportFormat) FileExtension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatSARIF:
		return ".sarif"
	case FormatCSV:
		return ".csv"
	default:
		return ""
	}
}

// MimeType returns the MIME type for the export format.
func (f ExportFormat) MimeType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatSARIF:
		return "application/sarif+json"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// ParseExportFormat parses a string into an ExportFormat value.
func ParseExportFormat(s string) (ExportFormat, error) {
	format := ExportFormat(s)
	if !format.IsValid() {
		return "", fmt.Errorf("invalid export format: %s", s)
	}
	return format, nil
}

// Filter selects findings by field values. Zero-valued fields match
// everything.
type Filter struct {
	// Statuses limits results to findings in any of the given statuses.
	Statuses []Status

	// Severities limits results to findings with any of the given severities.
	Severities []Severity

	// AssigneeID limits results to findings assigned to the given user.
	AssigneeID string

	// AssetID limits results to findings affecting the given asset.
	AssetID string

	// Tag limits results to findings carrying the given tag.
	Tag string

	// Since limits results to findings updated at or after the given time.
	Since time.Time
}

// Matches reports whether the finding satisfies every set field of the filter.
func (fl Filter) Matches(f *Finding) bool {
	if len(fl.Statuses) > 0 && !containsStatus(fl.Statuses, f.Status) {
		return false
	}
	if len(fl.Severities) > 0 && !containsSeverity(fl.Severities, f.Severity) {
		return false
	}
	if fl.AssigneeID != "" && f.AssigneeID != fl.AssigneeID {
		return false
	}
	if fl.AssetID != "" && !containsString(f.AffectedAssets, fl.AssetID) {
		return false
	}
	if fl.Tag != "" && !containsString(f.Tags, fl.Tag) {
		return false
	}
	if !fl.Since.IsZero() && f.UpdatedAt.Before(fl.Since) {
		return false
	}
	return true
}

// Apply returns the subset of findings matching the filter, preserving order.
func (fl Filter) Apply(findings []*Finding) []*Finding {
	out := make([]*Finding, 0, len(findings))
	for _, f := range findings {
		if fl.Matches(f) {
			out = append(out, f)
		}
	}
	return out
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsSeverity(list []Severity, s Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
