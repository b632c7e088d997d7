package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/finding"
	"github.com/surfacehq/surface/license"
)

func setupStores(t *testing.T) *Stores {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	return s
}

func seedFinding(t *testing.T, s *Stores, tenantID string, sev finding.Severity, status finding.Status) *finding.Finding {
	t.Helper()
	f := finding.New(tenantID, "Exposed admin panel", "Admin panel reachable without authentication",
		sev, finding.Source{Tool: "httpx"})
	f.Status = status
	require.NoError(t, s.SaveFinding(context.Background(), f))
	return f
}

func TestFindingRoundTrip(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	f := finding.New("tenant-1", "SQL injection in search", "User input reaches query builder",
		finding.SeverityCritical, finding.Source{Tool: "zap", Integration: "ci"})
	score := 9.8
	f.CVSSScore = &score
	f.CVSSVector = "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"
	f.AffectedAssets = []string{"asset-1", "asset-2"}
	f.Tags = []string{"injection", "owasp-top10"}

	require.NoError(t, s.SaveFinding(ctx, f))

	got, err := s.GetFinding(ctx, "tenant-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Title, got.Title)
	assert.Equal(t, finding.SeverityCritical, got.Severity)
	assert.Equal(t, []string{"asset-1", "asset-2"}, got.AffectedAssets)
	assert.Equal(t, []string{"injection", "owasp-top10"}, got.Tags)
	require.NotNil(t, got.CVSSScore)
	assert.Equal(t, 9.8, *got.CVSSScore)
	assert.Equal(t, "zap", got.Source.Tool)
}

func TestGetFindingTenantIsolation(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()
	f := seedFinding(t, s, "tenant-1", finding.SeverityHigh, finding.StatusNew)

	_, err := s.GetFinding(ctx, "tenant-2", f.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, surface.ErrFindingNotFound) || surface.IsKind(err, surface.KindNotFound))
}

func TestListFindingsFilters(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	seedFinding(t, s, "tenant-1", finding.SeverityCritical, finding.StatusNew)
	seedFinding(t, s, "tenant-1", finding.SeverityHigh, finding.StatusConfirmed)
	confirmed := seedFinding(t, s, "tenant-1", finding.SeverityCritical, finding.StatusConfirmed)
	seedFinding(t, s, "tenant-2", finding.SeverityCritical, finding.StatusConfirmed)

	got, total, err := s.ListFindings(ctx, "tenant-1", FindingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, got, 3)

	got, total, err = s.ListFindings(ctx, "tenant-1", FindingFilter{
		Status:   finding.StatusConfirmed,
		Severity: finding.SeverityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, confirmed.ID, got[0].ID)
}

func TestListFindingsAssigneeAndAsset(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	f := seedFinding(t, s, "tenant-1", finding.SeverityHigh, finding.StatusConfirmed)
	f.AssigneeID = "user-1"
	f.AffectedAssets = []string{"asset-9"}
	require.NoError(t, s.SaveFinding(ctx, f))
	seedFinding(t, s, "tenant-1", finding.SeverityHigh, finding.StatusConfirmed)

	got, _, err := s.ListFindings(ctx, "tenant-1", FindingFilter{AssigneeID: "user-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.ID, got[0].ID)

	got, _, err = s.ListFindings(ctx, "tenant-1", FindingFilter{AssetID: "asset-9"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.ID, got[0].ID)
}

func TestListFindingsPagination(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedFinding(t, s, "tenant-1", finding.SeverityMedium, finding.StatusNew)
	}

	got, total, err := s.ListFindings(ctx, "tenant-1", FindingFilter{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, got, 2)

	got, _, err = s.ListFindings(ctx, "tenant-1", FindingFilter{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAssetRoundTrip(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	a := asset.New("tenant-1", "api.example.com", asset.KindWebsite,
		asset.EnvironmentProduction, asset.CriticalityCritical)
	a.FindingCounts.Add(finding.SeverityHigh)
	a.FindingCounts.Add(finding.SeverityHigh)
	a.Recalculate()
	a.Labels = map[string]string{"team": "platform"}
	require.NoError(t, s.SaveAsset(ctx, a))

	assets, total, err := s.ListAssets(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, assets, 1)
	assert.Equal(t, 2, assets[0].FindingCounts.High)
	assert.Equal(t, a.RiskScore, assets[0].RiskScore)
	assert.Equal(t, "platform", assets[0].Labels["team"])
}

func TestAuditAppendAndList(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	e1 := audit.NewEntry("tenant-1", "user-1", audit.ActionStatusChanged,
		"finding/f-1", "confirmed", "in_progress")
	e2 := audit.NewEntry("tenant-1", "user-1", audit.ActionAssigned,
		"finding/f-1", "", "user-2")
	require.NoError(t, s.RecordAudit(ctx, e1))
	require.NoError(t, s.RecordAudit(ctx, e2))

	entries, err := s.ListAudit(ctx, "tenant-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.ListAudit(ctx, "tenant-2", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTenantEntitlements(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	require.NoError(t, s.Tenants.Create(ctx, &TenantRecord{
		ID:      "tenant-1",
		Name:    "Acme",
		Plan:    "team",
		Modules: stringList{"triage"},
	}))

	rec, err := s.GetTenant(ctx, "tenant-1")
	require.NoError(t, err)
	ent := rec.Entitlements()
	assert.Equal(t, license.PlanTeam, ent.Plan)
	assert.Equal(t, []license.Module{license.ModuleTriage}, ent.Modules)

	_, err = s.GetTenant(ctx, "missing")
	assert.Error(t, err)
}

func TestDataStoreDelete(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()
	f := seedFinding(t, s, "tenant-1", finding.SeverityLow, finding.StatusNew)

	require.NoError(t, s.Findings.Delete(ctx, f.ID))
	err := s.Findings.Delete(ctx, f.ID)
	assert.True(t, surface.IsKind(err, surface.KindNotFound))
}
