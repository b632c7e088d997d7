// Package asset provides the inventory types for the Surface platform:
// discovered assets (domains, websites, cloud resources, repositories),
// their organizational groups, and the risk score computed from the
// severity profile of open findings.
package asset

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surfacehq/surface/finding"
)

// Kind classifies a discovered asset.
type Kind string

const (
	// KindDomain is a registered domain or subdomain.
	KindDomain Kind = "domain"

	// KindWebsite is a reachable HTTP(S) service.
	KindWebsite Kind = "website"

	// KindCloudResource is a cloud provider resource (bucket, VM, function).
	KindCloudResource Kind = "cloud_resource"

	// KindRepository is a source control repository synced from an SCM.
	KindRepository Kind = "repository"
)

// IsValid returns true if the asset kind is valid.
func (k Kind) IsValid() bool {
	switch k {
	case KindDomain, KindWebsite, KindCloudResource, KindRepository:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Environment indicates where an asset is deployed.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
)

// IsValid returns true if the environment is valid.
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment:
		return true
	default:
		return false
	}
}

// Criticality expresses the business importance of an asset. It scales the
// risk score so a medium finding on a crown-jewel asset outranks the same
// finding on a sandbox.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

var criticalityMultipliers = map[Criticality]float64{
	CriticalityCritical: 1.5,
	CriticalityHigh:     1.2,
	CriticalityMedium:   1.0,
	CriticalityLow:      0.7,
}

// IsValid returns true if the criticality is valid.
func (c Criticality) IsValid() bool {
	_, ok := criticalityMultipliers[c]
	return ok
}

// Multiplier returns the risk-score multiplier for the criticality.
// Returns 1.0 for invalid values so unknown criticalities score neutrally.
func (c Criticality) Multiplier() float64 {
	if m, ok := criticalityMultipliers[c]; ok {
		return m
	}
	return 1.0
}

// FindingCounts aggregates open findings per severity for an asset or group.
type FindingCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the sum of all counts.
func (c FindingCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// weighted returns the severity-weighted sum of the counts.
func (c FindingCounts) weighted() float64 {
	return float64(c.Critical)*finding.SeverityCritical.Weight() +
		float64(c.High)*finding.SeverityHigh.Weight() +
		float64(c.Medium)*finding.SeverityMedium.Weight() +
		float64(c.Low)*finding.SeverityLow.Weight() +
		float64(c.Info)*finding.SeverityInfo.Weight()
}

// Add increments the counter for the given severity.
func (c *FindingCounts) Add(s finding.Severity) {
	switch s {
	case finding.SeverityCritical:
		c.Critical++
	case finding.SeverityHigh:
		c.High++
	case finding.SeverityMedium:
		c.Medium++
	case finding.SeverityLow:
		c.Low++
	case finding.SeverityInfo:
		c.Info++
	}
}

// Remove decrements the counter for the given severity, flooring at zero.
func (c *FindingCounts) Remove(s finding.Severity) {
	dec := func(n *int) {
		if *n > 0 {
			*n--
		}
	}
	switch s {
	case finding.SeverityCritical:
		dec(&c.Critical)
	case finding.SeverityHigh:
		dec(&c.High)
	case finding.SeverityMedium:
		dec(&c.Medium)
	case finding.SeverityLow:
		dec(&c.Low)
	case finding.SeverityInfo:
		dec(&c.Info)
	}
}

// Asset represents a discovered attack-surface asset owned by a tenant.
type Asset struct {
	// ID is a unique identifier for the asset.
	ID string `json:"id"`

	// TenantID identifies the owning tenant.
	TenantID string `json:"tenant_id"`

	// GroupID identifies the asset group this asset belongs to, if any.
	GroupID string `json:"group_id,omitempty"`

	// Name is the asset's display name (hostname, URL, resource ARN, repo slug).
	Name string `json:"name"`

	// Kind classifies the asset.
	Kind Kind `json:"kind"`

	// Environment indicates where the asset is deployed.
	Environment Environment `json:"environment"`

	// Criticality expresses the business importance of the asset.
	Criticality Criticality `json:"criticality"`

	// FindingCounts aggregates the asset's open findings per severity.
	FindingCounts FindingCounts `json:"finding_counts"`

	// RiskScore is computed from the finding counts and criticality.
	RiskScore float64 `json:"risk_score"`

	// Labels are arbitrary key-value annotations.
	Labels map[string]string `json:"labels,omitempty"`

	// FirstSeen is when the asset was first discovered.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when the asset was last observed by a scanner.
	LastSeen time.Time `json:"last_seen"`
}

// New creates a new Asset with an auto-generated ID.
func New(tenantID, name string, kind Kind, env Environment, criticality Criticality) *Asset {
	now := time.Now()
	return &Asset{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        name,
		Kind:        kind,
		Environment: env,
		Criticality: criticality,
		FirstSeen:   now,
		LastSeen:    now,
	}
}

// Validate checks if the asset has all required fields and valid values.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset ID is required")
	}
	if a.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("invalid kind: %s", a.Kind)
	}
	if !a.Environment.IsValid() {
		return fmt.Errorf("invalid environment: %s", a.Environment)
	}
	if !a.Criticality.IsValid() {
		return fmt.Errorf("invalid criticality: %s", a.Criticality)
	}
	return nil
}

// Recalculate recomputes the risk score from the current finding counts
// and criticality.
func (a *Asset) Recalculate() {
	a.RiskScore = a.FindingCounts.weighted() * a.Criticality.Multiplier()
}

// Touch updates LastSeen to now.
func (a *Asset) Touch() {
	a.LastSeen = time.Now()
}

// AssetGroup is an organizational container for assets, carrying rolled-up
// counts and a risk score aggregated across its members.
type AssetGroup struct {
	// ID is a unique identifier for the group.
	ID string `json:"id"`

	// TenantID identifies the owning tenant.
	TenantID string `json:"tenant_id"`

	// Name is the group's display name.
	Name string `json:"name"`

	// Description explains what the group contains.
	Description string `json:"description,omitempty"`

	// Environment indicates the predominant environment of the group.
	Environment Environment `json:"environment"`

	// Criticality expresses the business importance of the group.
	Criticality Criticality `json:"criticality"`

	// AssetCount is the number of assets in the group.
	AssetCount int `json:"asset_count"`

	// FindingCounts aggregates open findings across the group's assets.
	FindingCounts FindingCounts `json:"finding_counts"`

	// RiskScore is the aggregated risk score across member assets.
	RiskScore float64 `json:"risk_score"`

	// CreatedAt is when the group was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the group was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGroup creates a new AssetGroup with an auto-generated ID.
func NewGroup(tenantID, name string, env Environment, criticality Criticality) *AssetGroup {
	now := time.Now()
	return &AssetGroup{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        name,
		Environment: env,
		Criticality: criticality,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks if the group has all required fields and valid values.
func (g *AssetGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group ID is required")
	}
	if g.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if g.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !g.Environment.IsValid() {
		return fmt.Errorf("invalid environment: %s", g.Environment)
	}
	if !g.Criticality.IsValid() {
		return fmt.Errorf("invalid criticality: %s", g.Criticality)
	}
	return nil
}

// Rollup recomputes the group's counts and risk score from its member assets.
func (g *AssetGroup) Rollup(assets []*Asset) {
	g.AssetCount = len(assets)
	g.FindingCounts = FindingCounts{}
	g.RiskScore = 0
	for _, a := range assets {
		g.FindingCounts.Critical += a.FindingCounts.Critical
		g.FindingCounts.High += a.FindingCounts.High
		g.FindingCounts.Medium += a.FindingCounts.Medium
		g.FindingCounts.Low += a.FindingCounts.Low
		g.FindingCounts.Info += a.FindingCounts.Info
		g.RiskScore += a.RiskScore
	}
	g.UpdatedAt = time.Now()
}
