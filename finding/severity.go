package finding

import "fmt"

// Severity represents the qualitative risk level of a security finding.
type Severity string

const (
	// SeverityCritical indicates an issue requiring immediate remediation.
	// Examples: Remote code execution, exposed production credentials
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact security issue.
	// Examples: Privilege escalation, significant data exposure
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate security issue.
	// Examples: Limited information disclosure, missing security headers
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor security issue.
	// Examples: Verbose error messages, cosmetic misconfigurations
	SeverityLow Severity = "low"

	// SeverityInfo indicates an informational finding without direct security impact.
	// Examples: Inventory observations, best practice recommendations
	SeverityInfo Severity = "info"
)

// severityWeights maps severity levels to numeric weights for risk calculation.
// Higher weights indicate more severe findings.
var severityWeights = map[Severity]float64{
	SeverityCritical: 10.0,
	SeverityHigh:     7.5,
	SeverityMedium:   5.0,
	SeverityLow:      2.5,
	SeverityInfo:     1.0,
}

// SeverityMeta holds display metadata and the CVSS band for a severity level.
// The color fields are hex values consumed by dashboard clients.
type SeverityMeta struct {
	Label   string  `json:"label"`
	Color   string  `json:"color"`
	BgColor string  `json:"bg_color"`
	Icon    string  `json:"icon"`
	CVSSMin float64 `json:"cvss_min"`
	CVSSMax float64 `json:"cvss_max"`
}

// severityMeta follows the CVSS v3.1 qualitative rating scale for the
// score bands. Info covers the 0.0 score only.
var severityMeta = map[Severity]SeverityMeta{
	SeverityCritical: {Label: "Critical", Color: "#dc2626", BgColor: "#fef2f2", Icon: "shield-alert", CVSSMin: 9.0, CVSSMax: 10.0},
	SeverityHigh:     {Label: "High", Color: "#ea580c", BgColor: "#fff7ed", Icon: "alert-triangle", CVSSMin: 7.0, CVSSMax: 8.9},
	SeverityMedium:   {Label: "Medium", Color: "#d97706", BgColor: "#fffbeb", Icon: "alert-circle", CVSSMin: 4.0, CVSSMax: 6.9},
	SeverityLow:      {Label: "Low", Color: "#2563eb", BgColor: "#eff6ff", Icon: "info", CVSSMin: 0.1, CVSSMax: 3.9},
	SeverityInfo:     {Label: "Info", Color: "#64748b", BgColor: "#f8fafc", Icon: "file-text", CVSSMin: 0.0, CVSSMax: 0.0},
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight associated with the severity level.
// Returns 0.0 for invalid severity levels.
func (s Severity) Weight() float64 {
	if weight, ok := severityWeights[s]; ok {
		return weight
	}
	return 0.0
}

// Meta returns the display metadata and CVSS band for the severity level.
// Returns the zero value for invalid severity levels.
func (s Severity) Meta() SeverityMeta {
	return severityMeta[s]
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
// Returns an error if the string is not a valid severity level.
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(s)
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}

// SeverityFromCVSS maps a CVSS base score to a severity level using the
// CVSS v3.1 qualitative rating scale.
// Returns an error if the score is outside the 0.0-10.0 range.
func SeverityFromCVSS(score float64) (Severity, error) {
	if score < 0.0 || score > 10.0 {
		return "", fmt.Errorf("CVSS score must be between 0.0 and 10.0, got %.1f", score)
	}
	switch {
	case score >= 9.0:
		return SeverityCritical, nil
	case score >= 7.0:
		return SeverityHigh, nil
	case score >= 4.0:
		return SeverityMedium, nil
	case score > 0.0:
		return SeverityLow, nil
	default:
		return SeverityInfo, nil
	}
}

// CompareSeverity compares two severity levels.
// Returns:
//   - negative if s1 < s2
//   - zero if s1 == s2
//   - positive if s1 > s2
func CompareSeverity(s1, s2 Severity) int {
	w1 := s1.Weight()
	w2 := s2.Weight()
	if w1 < w2 {
		return -1
	}
	if w1 > w2 {
		return 1
	}
	return 0
}

// AllSeverities returns all valid severity levels in order from critical to info.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
	}
}
