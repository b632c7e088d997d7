package finding

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransitionError is returned when a status change is not a legal edge in
// the workflow table. It is produced locally, before any network call.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s (allowed: %v)", e.From, e.To, NextStatuses(e.From))
}

// Source identifies the scanner or integration that produced a finding.
type Source struct {
	// Tool is the scanner name (e.g., "nuclei", "trivy", "manual").
	Tool string `json:"tool"`

	// Integration is the ingest integration identifier, if any.
	Integration string `json:"integration,omitempty"`

	// ExternalID is the finding's identifier in the source system.
	ExternalID string `json:"external_id,omitempty"`
}

// Finding represents a detected security issue tied to one or more assets
// of a tenant. Findings are never hard-deleted; they only move through the
// workflow statuses, ending in a terminal-ish status that remains
// re-openable.
type Finding struct {
	// ID is a unique identifier for the finding.
	ID string `json:"id"`

	// TenantID identifies the tenant that owns this finding.
	TenantID string `json:"tenant_id"`

	// Title is a brief summary of the finding.
	Title string `json:"title"`

	// Description provides detailed information about the finding.
	Description string `json:"description"`

	// Severity indicates the severity level of the finding.
	Severity Severity `json:"severity"`

	// Status indicates the current workflow position of the finding.
	Status Status `json:"status"`

	// Resolution records why the finding entered a resolved or terminal
	// status (e.g., "patched", "risk accepted", "duplicate of F-123").
	Resolution string `json:"resolution,omitempty"`

	// CVE is the CVE identifier, if the finding maps to a known CVE.
	CVE string `json:"cve,omitempty"`

	// CWE is the CWE identifier (e.g., "CWE-79").
	CWE string `json:"cwe,omitempty"`

	// CVSSScore is the CVSS base score (0.0 to 10.0).
	CVSSScore *float64 `json:"cvss_score,omitempty"`

	// CVSSVector is the CVSS vector string.
	CVSSVector string `json:"cvss_vector,omitempty"`

	// RiskScore is calculated from severity weight and asset exposure.
	RiskScore float64 `json:"risk_score"`

	// AffectedAssets lists the IDs of assets affected by this finding.
	AffectedAssets []string `json:"affected_assets,omitempty"`

	// AssigneeID identifies the analyst assigned to this finding.
	AssigneeID string `json:"assignee_id,omitempty"`

	// Source describes the scanner or integration that produced the finding.
	Source Source `json:"source"`

	// Remediation provides guidance on fixing or mitigating the issue.
	Remediation string `json:"remediation,omitempty"`

	// References contains links to relevant documentation or advisories.
	References []string `json:"references,omitempty"`

	// Tags are arbitrary labels for categorization and filtering.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is the timestamp when the finding was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the finding was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a new Finding in status new with an auto-generated ID.
func New(tenantID, title, description string, severity Severity, source Source) *Finding {
	now := time.Now()
	return &Finding{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Title:       title,
		Description: description,
		Severity:    severity,
		Status:      StatusNew,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
		RiskScore:   severity.Weight(),
	}
}

// NewWithID creates a new Finding with a specific ID. Used when re-ingesting
// findings that carry identity from the source system.
func NewWithID(id, tenantID, title, description string, severity Severity, source Source) *Finding {
	f := New(tenantID, title, description, severity, source)
	f.ID = id
	return f
}

// Validate checks if the finding has all required fields and valid values.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding ID is required")
	}
	if f.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if f.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	if !f.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", f.Status)
	}
	if f.CVSSScore != nil && (*f.CVSSScore < 0.0 || *f.CVSSScore > 10.0) {
		return fmt.Errorf("CVSS score must be between 0.0 and 10.0, got %f", *f.CVSSScore)
	}
	if f.Source.Tool == "" {
		return fmt.Errorf("source tool is required")
	}
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp is required")
	}
	if f.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at timestamp is required")
	}
	return nil
}

// Transition moves the finding to a new status along a legal workflow edge.
// Returns a *TransitionError if the edge is not in the transition table.
// An optional resolution is recorded when entering a resolved or
// terminal-ish status and cleared when reopening.
func (f *Finding) Transition(to Status, resolution string) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid status: %s", to)
	}
	if !CanTransition(f.Status, to) {
		return &TransitionError{From: f.Status, To: to}
	}
	f.Status = to
	switch {
	case to == StatusResolved || to.IsTerminal():
		if resolution != "" {
			f.Resolution = resolution
		}
	case to == StatusConfirmed:
		// Reopening discards the recorded resolution; verification and
		// closing keep it.
		f.Resolution = ""
	}
	f.UpdatedAt = time.Now()
	return nil
}

// SetSeverity updates the severity, recalculates the risk score and stores
// the CVSS fields when provided. A non-nil cvssScore must fall inside the
// new severity's CVSS band.
func (f *Finding) SetSeverity(severity Severity, cvssScore *float64, cvssVector string) error {
	if !severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", severity)
	}
	if cvssScore != nil {
		derived, err := SeverityFromCVSS(*cvssScore)
		if err != nil {
			return err
		}
		if derived != severity {
			return fmt.Errorf("CVSS score %.1f maps to severity %s, not %s", *cvssScore, derived, severity)
		}
		f.CVSSScore = cvssScore
		f.CVSSVector = cvssVector
	}
	f.Severity = severity
	f.RiskScore = severity.Weight()
	f.UpdatedAt = time.Now()
	return nil
}

// Assign sets the assignee for the finding.
func (f *Finding) Assign(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	f.AssigneeID = userID
	f.UpdatedAt = time.Now()
	return nil
}

// Unassign clears the finding's assignee.
func (f *Finding) Unassign() {
	f.AssigneeID = ""
	f.UpdatedAt = time.Now()
}

// AddTag adds a tag to the finding if it doesn't already exist.
func (f *Finding) AddTag(tag string) {
	for _, existing := range f.Tags {
		if existing == tag {
			return
		}
	}
	f.Tags = append(f.Tags, tag)
	f.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the finding. The mutation wrapper snapshots
// findings with Clone before applying optimistic changes.
func (f *Finding) Clone() *Finding {
	c := *f
	if f.CVSSScore != nil {
		score := *f.CVSSScore
		c.CVSSScore = &score
	}
	c.AffectedAssets = append([]string(nil), f.AffectedAssets...)
	c.References = append([]string(nil), f.References...)
	c.Tags = append([]string(nil), f.Tags...)
	return &c
}
