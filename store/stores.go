package store

import (
	"context"

	"gorm.io/gorm"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/finding"
)

// FindingFilter selects findings for list queries. Zero values mean
// "no constraint".
type FindingFilter struct {
	Status     finding.Status
	Severity   finding.Severity
	AssigneeID string
	AssetID    string
	Page       int
	PerPage    int
}

const defaultPerPage = 25

// Stores bundles the typed repositories over one database.
type Stores struct {
	db       *gorm.DB
	Findings *DataStore[FindingRecord]
	Assets   *DataStore[AssetRecord]
	Groups   *DataStore[AssetGroupRecord]
	Audit    *DataStore[AuditRecord]
	Tenants  *DataStore[TenantRecord]
}

// New opens the database at path, migrates the schema, and returns the
// bundled stores.
func New(path string) (*Stores, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Stores{
		db:       db,
		Findings: NewDataStore[FindingRecord](db),
		Assets:   NewDataStore[AssetRecord](db),
		Groups:   NewDataStore[AssetGroupRecord](db),
		Audit:    NewDataStore[AuditRecord](db),
		Tenants:  NewDataStore[TenantRecord](db),
	}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Stores) DB() *gorm.DB {
	return s.db
}

// byTenant scopes a query to one tenant.
func byTenant(tenantID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// findingScopes translates a filter into gorm scopes, pagination excluded.
func findingScopes(tenantID string, f FindingFilter) []func(*gorm.DB) *gorm.DB {
	scopes := []func(*gorm.DB) *gorm.DB{byTenant(tenantID)}
	if f.Status != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", f.Status.String())
		})
	}
	if f.Severity != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("severity = ?", f.Severity.String())
		})
	}
	if f.AssigneeID != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("assignee_id = ?", f.AssigneeID)
		})
	}
	if f.AssetID != "" {
		// Affected assets are a JSON text column; substring match on the
		// quoted ID is exact because IDs are uuids.
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("affected_assets LIKE ?", `%"`+f.AssetID+`"%`)
		})
	}
	return scopes
}

func paginate(page, perPage int) func(*gorm.DB) *gorm.DB {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * perPage).Limit(perPage)
	}
}

// ListFindings returns the tenant's findings matching the filter, newest
// first, plus the total count across all pages.
func (s *Stores) ListFindings(ctx context.Context, tenantID string, f FindingFilter) ([]*finding.Finding, int, error) {
	scopes := findingScopes(tenantID, f)

	total, err := s.Findings.Count(ctx, scopes...)
	if err != nil {
		return nil, 0, err
	}

	scopes = append(scopes,
		func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") },
		paginate(f.Page, f.PerPage),
	)
	recs, err := s.Findings.List(ctx, scopes...)
	if err != nil {
		return nil, 0, err
	}

	findings := make([]*finding.Finding, 0, len(recs))
	for i := range recs {
		findings = append(findings, recs[i].ToDomain())
	}
	return findings, int(total), nil
}

// GetFinding returns one finding, scoped to the tenant.
func (s *Stores) GetFinding(ctx context.Context, tenantID, id string) (*finding.Finding, error) {
	rec, err := s.Findings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.TenantID != tenantID {
		// Cross-tenant lookups read as absent, never as forbidden.
		return nil, surface.NewNotFoundError("store.GetFinding", surface.ErrFindingNotFound)
	}
	return rec.ToDomain(), nil
}

// AllFindings returns every finding of the tenant, newest first. Used by
// the export path, which does not paginate.
func (s *Stores) AllFindings(ctx context.Context, tenantID string) ([]*finding.Finding, error) {
	recs, err := s.Findings.List(ctx, byTenant(tenantID),
		func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") })
	if err != nil {
		return nil, err
	}
	findings := make([]*finding.Finding, 0, len(recs))
	for i := range recs {
		findings = append(findings, recs[i].ToDomain())
	}
	return findings, nil
}

// GetAsset returns one asset, scoped to the tenant.
func (s *Stores) GetAsset(ctx context.Context, tenantID, id string) (*asset.Asset, error) {
	rec, err := s.Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.TenantID != tenantID {
		return nil, surface.NewNotFoundError("store.GetAsset", surface.ErrAssetNotFound)
	}
	return rec.ToDomain(), nil
}

// SaveFinding persists the finding's current state.
func (s *Stores) SaveFinding(ctx context.Context, f *finding.Finding) error {
	return s.Findings.Save(ctx, FindingToRecord(f))
}

// ListAssets returns the tenant's assets plus the total count.
func (s *Stores) ListAssets(ctx context.Context, tenantID string) ([]*asset.Asset, int, error) {
	recs, err := s.Assets.List(ctx, byTenant(tenantID),
		func(db *gorm.DB) *gorm.DB { return db.Order("risk_score DESC") })
	if err != nil {
		return nil, 0, err
	}
	assets := make([]*asset.Asset, 0, len(recs))
	for i := range recs {
		assets = append(assets, recs[i].ToDomain())
	}
	return assets, len(assets), nil
}

// SaveAsset persists the asset's current state.
func (s *Stores) SaveAsset(ctx context.Context, a *asset.Asset) error {
	return s.Assets.Save(ctx, AssetToRecord(a))
}

// ListGroups returns the tenant's asset groups.
func (s *Stores) ListGroups(ctx context.Context, tenantID string) ([]*asset.AssetGroup, error) {
	recs, err := s.Groups.List(ctx, byTenant(tenantID),
		func(db *gorm.DB) *gorm.DB { return db.Order("risk_score DESC") })
	if err != nil {
		return nil, err
	}
	groups := make([]*asset.AssetGroup, 0, len(recs))
	for i := range recs {
		groups = append(groups, recs[i].ToDomain())
	}
	return groups, nil
}

// SaveGroup persists the group's current state.
func (s *Stores) SaveGroup(ctx context.Context, g *asset.AssetGroup) error {
	return s.Groups.Save(ctx, GroupToRecord(g))
}

// AssetsInGroup returns the tenant's assets belonging to the group.
func (s *Stores) AssetsInGroup(ctx context.Context, tenantID, groupID string) ([]*asset.Asset, error) {
	recs, err := s.Assets.List(ctx, byTenant(tenantID),
		func(db *gorm.DB) *gorm.DB { return db.Where("group_id = ?", groupID) })
	if err != nil {
		return nil, err
	}
	assets := make([]*asset.Asset, 0, len(recs))
	for i := range recs {
		assets = append(assets, recs[i].ToDomain())
	}
	return assets, nil
}

// RecordAudit appends an audit entry.
func (s *Stores) RecordAudit(ctx context.Context, e *audit.Entry) error {
	return s.Audit.Create(ctx, AuditToRecord(e))
}

// ListAudit returns the tenant's audit entries, most recent first.
func (s *Stores) ListAudit(ctx context.Context, tenantID string, limit int) ([]*audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := s.Audit.List(ctx, byTenant(tenantID),
		func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC").Limit(limit) })
	if err != nil {
		return nil, err
	}
	entries := make([]*audit.Entry, 0, len(recs))
	for i := range recs {
		entries = append(entries, recs[i].ToDomain())
	}
	return entries, nil
}

// GetTenant returns the tenant record.
func (s *Stores) GetTenant(ctx context.Context, id string) (*TenantRecord, error) {
	return s.Tenants.Get(ctx, id)
}
