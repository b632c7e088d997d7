package client

import (
	"time"

	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/finding"
)

// Wire representations of API resources. Payloads use snake_case JSON; the
// conversion to domain objects happens here, at the boundary, so the rest
// of the SDK only ever sees domain types.

type findingWire struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       string         `json:"severity"`
	Status         string         `json:"status"`
	Resolution     string         `json:"resolution,omitempty"`
	CVE            string         `json:"cve,omitempty"`
	CWE            string         `json:"cwe,omitempty"`
	CVSSScore      *float64       `json:"cvss_score,omitempty"`
	CVSSVector     string         `json:"cvss_vector,omitempty"`
	RiskScore      float64        `json:"risk_score"`
	AffectedAssets []string       `json:"affected_assets,omitempty"`
	AssigneeID     string         `json:"assignee_id,omitempty"`
	Source         finding.Source `json:"source"`
	Remediation    string         `json:"remediation,omitempty"`
	References     []string       `json:"references,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (w *findingWire) toDomain() *finding.Finding {
	return &finding.Finding{
		ID:             w.ID,
		TenantID:       w.TenantID,
		Title:          w.Title,
		Description:    w.Description,
		Severity:       finding.Severity(w.Severity),
		Status:         finding.Status(w.Status),
		Resolution:     w.Resolution,
		CVE:            w.CVE,
		CWE:            w.CWE,
		CVSSScore:      w.CVSSScore,
		CVSSVector:     w.CVSSVector,
		RiskScore:      w.RiskScore,
		AffectedAssets: w.AffectedAssets,
		AssigneeID:     w.AssigneeID,
		Source:         w.Source,
		Remediation:    w.Remediation,
		References:     w.References,
		Tags:           w.Tags,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

type findingPage struct {
	Findings []findingWire `json:"findings"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PerPage  int           `json:"per_page"`
}

type assetWire struct {
	ID            string              `json:"id"`
	TenantID      string              `json:"tenant_id"`
	GroupID       string              `json:"group_id,omitempty"`
	Name          string              `json:"name"`
	Kind          string              `json:"kind"`
	Environment   string              `json:"environment"`
	Criticality   string              `json:"criticality"`
	FindingCounts asset.FindingCounts `json:"finding_counts"`
	RiskScore     float64             `json:"risk_score"`
	Labels        map[string]string   `json:"labels,omitempty"`
	FirstSeen     time.Time           `json:"first_seen"`
	LastSeen      time.Time           `json:"last_seen"`
}

func (w *assetWire) toDomain() *asset.Asset {
	return &asset.Asset{
		ID:            w.ID,
		TenantID:      w.TenantID,
		GroupID:       w.GroupID,
		Name:          w.Name,
		Kind:          asset.Kind(w.Kind),
		Environment:   asset.Environment(w.Environment),
		Criticality:   asset.Criticality(w.Criticality),
		FindingCounts: w.FindingCounts,
		RiskScore:     w.RiskScore,
		Labels:        w.Labels,
		FirstSeen:     w.FirstSeen,
		LastSeen:      w.LastSeen,
	}
}

type assetPage struct {
	Assets  []assetWire `json:"assets"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

type auditWire struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (w *auditWire) toDomain() *audit.Entry {
	return &audit.Entry{
		ID:        w.ID,
		TenantID:  w.TenantID,
		ActorID:   w.ActorID,
		Action:    audit.Action(w.Action),
		Resource:  w.Resource,
		OldValue:  w.OldValue,
		NewValue:  w.NewValue,
		CreatedAt: w.CreatedAt,
	}
}

type auditPage struct {
	Entries []auditWire `json:"entries"`
	Total   int         `json:"total"`
}

// Request bodies.

type statusPatch struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
}

type severityPatch struct {
	Severity   string   `json:"severity"`
	CVSSScore  *float64 `json:"cvss_score,omitempty"`
	CVSSVector string   `json:"cvss_vector,omitempty"`
}

type assignBody struct {
	UserID string `json:"user_id"`
}

// apiError is the error envelope returned by the API.
type apiError struct {
	Error string `json:"error"`
}
