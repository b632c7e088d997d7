package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/finding"
	"github.com/surfacehq/surface/license"
)

// stringList stores a []string as a JSON text column.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *stringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("cannot scan %T into stringList", value)
}

// stringMap stores a map[string]string as a JSON text column.
type stringMap map[string]string

func (m stringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *stringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("cannot scan %T into stringMap", value)
}

// FindingRecord is the persisted form of a finding.
type FindingRecord struct {
	ID                string `gorm:"primaryKey"`
	TenantID          string `gorm:"index"`
	Title             string
	Description       string
	Severity          string `gorm:"index"`
	Status            string `gorm:"index"`
	Resolution        string
	CVE               string
	CWE               string
	CVSSScore         *float64
	CVSSVector        string
	RiskScore         float64
	AffectedAssets    stringList `gorm:"type:text"`
	AssigneeID        string     `gorm:"index"`
	SourceTool        string
	SourceIntegration string
	SourceExternalID  string
	Remediation       string
	References        stringList `gorm:"type:text"`
	Tags              stringList `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides gorm's default pluralization.
func (FindingRecord) TableName() string { return "findings" }

// FindingToRecord converts a domain finding for persistence.
func FindingToRecord(f *finding.Finding) *FindingRecord {
	return &FindingRecord{
		ID:                f.ID,
		TenantID:          f.TenantID,
		Title:             f.Title,
		Description:       f.Description,
		Severity:          f.Severity.String(),
		Status:            f.Status.String(),
		Resolution:        f.Resolution,
		CVE:               f.CVE,
		CWE:               f.CWE,
		CVSSScore:         f.CVSSScore,
		CVSSVector:        f.CVSSVector,
		RiskScore:         f.RiskScore,
		AffectedAssets:    stringList(f.AffectedAssets),
		AssigneeID:        f.AssigneeID,
		SourceTool:        f.Source.Tool,
		SourceIntegration: f.Source.Integration,
		SourceExternalID:  f.Source.ExternalID,
		Remediation:       f.Remediation,
		References:        stringList(f.References),
		Tags:              stringList(f.Tags),
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// ToDomain converts the record back to a domain finding.
func (r *FindingRecord) ToDomain() *finding.Finding {
	return &finding.Finding{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Title:          r.Title,
		Description:    r.Description,
		Severity:       finding.Severity(r.Severity),
		Status:         finding.Status(r.Status),
		Resolution:     r.Resolution,
		CVE:            r.CVE,
		CWE:            r.CWE,
		CVSSScore:      r.CVSSScore,
		CVSSVector:     r.CVSSVector,
		RiskScore:      r.RiskScore,
		AffectedAssets: []string(r.AffectedAssets),
		AssigneeID:     r.AssigneeID,
		Source: finding.Source{
			Tool:        r.SourceTool,
			Integration: r.SourceIntegration,
			ExternalID:  r.SourceExternalID,
		},
		Remediation: r.Remediation,
		References:  []string(r.References),
		Tags:        []string(r.Tags),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// AssetRecord is the persisted form of an asset. Severity counts get their
// own columns so rollups stay queryable.
type AssetRecord struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index"`
	GroupID       string `gorm:"index"`
	Name          string
	Kind          string
	Environment   string
	Criticality   string
	CriticalCount int
	HighCount     int
	MediumCount   int
	LowCount      int
	InfoCount     int
	RiskScore     float64
	Labels        stringMap `gorm:"type:text"`
	FirstSeen     time.Time
	LastSeen      time.Time
}

func (AssetRecord) TableName() string { return "assets" }

// AssetToRecord converts a domain asset for persistence.
func AssetToRecord(a *asset.Asset) *AssetRecord {
	return &AssetRecord{
		ID:            a.ID,
		TenantID:      a.TenantID,
		GroupID:       a.GroupID,
		Name:          a.Name,
		Kind:          a.Kind.String(),
		Environment:   string(a.Environment),
		Criticality:   string(a.Criticality),
		CriticalCount: a.FindingCounts.Critical,
		HighCount:     a.FindingCounts.High,
		MediumCount:   a.FindingCounts.Medium,
		LowCount:      a.FindingCounts.Low,
		InfoCount:     a.FindingCounts.Info,
		RiskScore:     a.RiskScore,
		Labels:        stringMap(a.Labels),
		FirstSeen:     a.FirstSeen,
		LastSeen:      a.LastSeen,
	}
}

// ToDomain converts the record back to a domain asset.
func (r *AssetRecord) ToDomain() *asset.Asset {
	return &asset.Asset{
		ID:          r.ID,
		TenantID:    r.TenantID,
		GroupID:     r.GroupID,
		Name:        r.Name,
		Kind:        asset.Kind(r.Kind),
		Environment: asset.Environment(r.Environment),
		Criticality: asset.Criticality(r.Criticality),
		FindingCounts: asset.FindingCounts{
			Critical: r.CriticalCount,
			High:     r.HighCount,
			Medium:   r.MediumCount,
			Low:      r.LowCount,
			Info:     r.InfoCount,
		},
		RiskScore: r.RiskScore,
		Labels:    map[string]string(r.Labels),
		FirstSeen: r.FirstSeen,
		LastSeen:  r.LastSeen,
	}
}

// AssetGroupRecord is the persisted form of an asset group. Rollup values
// are persisted so list views avoid recomputing them per request.
type AssetGroupRecord struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index"`
	Name          string
	Description   string
	Environment   string
	Criticality   string
	AssetCount    int
	CriticalCount int
	HighCount     int
	MediumCount   int
	LowCount      int
	InfoCount     int
	RiskScore     float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (AssetGroupRecord) TableName() string { return "asset_groups" }

// GroupToRecord converts a domain asset group for persistence.
func GroupToRecord(g *asset.AssetGroup) *AssetGroupRecord {
	return &AssetGroupRecord{
		ID:            g.ID,
		TenantID:      g.TenantID,
		Name:          g.Name,
		Description:   g.Description,
		Environment:   string(g.Environment),
		Criticality:   string(g.Criticality),
		AssetCount:    g.AssetCount,
		CriticalCount: g.FindingCounts.Critical,
		HighCount:     g.FindingCounts.High,
		MediumCount:   g.FindingCounts.Medium,
		LowCount:      g.FindingCounts.Low,
		InfoCount:     g.FindingCounts.Info,
		RiskScore:     g.RiskScore,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}

// ToDomain converts the record back to a domain asset group.
func (r *AssetGroupRecord) ToDomain() *asset.AssetGroup {
	return &asset.AssetGroup{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Name:        r.Name,
		Description: r.Description,
		Environment: asset.Environment(r.Environment),
		Criticality: asset.Criticality(r.Criticality),
		AssetCount:  r.AssetCount,
		FindingCounts: asset.FindingCounts{
			Critical: r.CriticalCount,
			High:     r.HighCount,
			Medium:   r.MediumCount,
			Low:      r.LowCount,
			Info:     r.InfoCount,
		},
		RiskScore: r.RiskScore,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// AuditRecord is the persisted form of an audit entry. Old/new values are
// stored as JSON text.
type AuditRecord struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"index"`
	ActorID   string
	Action    string `gorm:"index"`
	Resource  string
	OldValue  string
	NewValue  string
	CreatedAt time.Time `gorm:"index"`
}

func (AuditRecord) TableName() string { return "audit_entries" }

// AuditToRecord converts a domain audit entry for persistence.
func AuditToRecord(e *audit.Entry) *AuditRecord {
	return &AuditRecord{
		ID:        e.ID,
		TenantID:  e.TenantID,
		ActorID:   e.ActorID,
		Action:    e.Action.String(),
		Resource:  e.Resource,
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
		CreatedAt: e.CreatedAt,
	}
}

// ToDomain converts the record back to a domain audit entry.
func (r *AuditRecord) ToDomain() *audit.Entry {
	return &audit.Entry{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ActorID:   r.ActorID,
		Action:    audit.Action(r.Action),
		Resource:  r.Resource,
		OldValue:  r.OldValue,
		NewValue:  r.NewValue,
		CreatedAt: r.CreatedAt,
	}
}

// TenantRecord holds a tenant's identity and entitlements.
type TenantRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Plan      string
	Modules   stringList `gorm:"type:text"`
	CreatedAt time.Time
}

func (TenantRecord) TableName() string { return "tenants" }

// NewTenant builds a tenant record for the given plan and add-on modules.
func NewTenant(id, name, plan string, modules []string) *TenantRecord {
	return &TenantRecord{
		ID:        id,
		Name:      name,
		Plan:      plan,
		Modules:   stringList(modules),
		CreatedAt: time.Now(),
	}
}

// Entitlements returns the tenant's license entitlements.
func (r *TenantRecord) Entitlements() license.Entitlements {
	mods := make([]license.Module, 0, len(r.Modules))
	for _, m := range r.Modules {
		mods = append(mods, license.Module(m))
	}
	return license.Entitlements{Plan: license.Plan(r.Plan), Modules: mods}
}
