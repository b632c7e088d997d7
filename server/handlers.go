package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/cache"
	"github.com/surfacehq/surface/finding"
	"github.com/surfacehq/surface/store"
)

// Request bodies. Responses reuse the domain types, whose JSON tags are
// already snake_case.

type createFindingRequest struct {
	ID             string         `json:"id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       string         `json:"severity"`
	CVE            string         `json:"cve,omitempty"`
	CWE            string         `json:"cwe,omitempty"`
	CVSSScore      *float64       `json:"cvss_score,omitempty"`
	CVSSVector     string         `json:"cvss_vector,omitempty"`
	AffectedAssets []string       `json:"affected_assets,omitempty"`
	Source         finding.Source `json:"source"`
	Remediation    string         `json:"remediation,omitempty"`
	References     []string       `json:"references,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
}

type statusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
}

type severityRequest struct {
	Severity   string   `json:"severity"`
	CVSSScore  *float64 `json:"cvss_score,omitempty"`
	CVSSVector string   `json:"cvss_vector,omitempty"`
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

type createAssetRequest struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Environment string            `json:"environment"`
	Criticality string            `json:"criticality"`
	GroupID     string            `json:"group_id,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// cached loads dest from the cache when one is configured. Cache errors
// other than a miss are logged and treated as misses.
func (s *Server) cached(c *fiber.Ctx, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(c.Context(), key, dest); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	return true
}

func (s *Server) cacheSet(c *fiber.Ctx, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(c.Context(), key, value, s.cfg.Cache.GetDefaultTTL()); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// invalidate drops every cache key containing substr. Mutations call this
// with a broad fragment ("findings", "assets") rather than enumerating the
// per-query keys.
func (s *Server) invalidate(c *fiber.Ctx, substr string) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.Invalidate(c.Context(), substr)
	if err != nil {
		s.logger.Warn("cache invalidation failed", "substr", substr, "error", err)
		return
	}
	s.logger.Debug("cache invalidated", "substr", substr, "keys", n)
}

// findingFilter parses the list query parameters. Unknown enum values are
// validation errors rather than silently empty result sets.
func findingFilter(c *fiber.Ctx) (store.FindingFilter, error) {
	var f store.FindingFilter

	if v := c.Query("status"); v != "" {
		st, err := finding.ParseStatus(v)
		if err != nil {
			return f, surface.NewValidationError("server.ListFindings", err)
		}
		f.Status = st
	}
	if v := c.Query("severity"); v != "" {
		sev, err := finding.ParseSeverity(v)
		if err != nil {
			return f, surface.NewValidationError("server.ListFindings", err)
		}
		f.Severity = sev
	}
	f.AssigneeID = c.Query("assignee_id")
	f.AssetID = c.Query("asset_id")
	f.Page = c.QueryInt("page")
	f.PerPage = c.QueryInt("per_page")
	return f, nil
}

// canonicalQuery renders the filter as a sorted query string so that
// equivalent requests share a cache key.
func canonicalQuery(f store.FindingFilter) string {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", f.Status.String())
	}
	if f.Severity != "" {
		v.Set("severity", f.Severity.String())
	}
	if f.AssigneeID != "" {
		v.Set("assignee_id", f.AssigneeID)
	}
	if f.AssetID != "" {
		v.Set("asset_id", f.AssetID)
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return v.Encode()
}

type findingPage struct {
	Findings []*finding.Finding `json:"findings"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PerPage  int                `json:"per_page"`
}

func (s *Server) handleListFindings(c *fiber.Ctx) error {
	tenant := tenantID(c)
	filter, err := findingFilter(c)
	if err != nil {
		return err
	}

	key := cache.FindingsKey(tenant, canonicalQuery(filter))
	var page findingPage
	if s.cached(c, key, &page) {
		return c.JSON(page)
	}

	findings, total, err := s.stores.ListFindings(c.Context(), tenant, filter)
	if err != nil {
		return err
	}

	page = findingPage{
		Findings: findings,
		Total:    total,
		Page:     max(filter.Page, 1),
		PerPage:  filter.PerPage,
	}
	s.cacheSet(c, key, page)
	return c.JSON(page)
}

func (s *Server) handleGetFinding(c *fiber.Ctx) error {
	f, err := s.stores.GetFinding(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(f)
}

func (s *Server) handleCreateFinding(c *fiber.Ctx) error {
	var req createFindingRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.CreateFinding", err)
	}
	sev, err := finding.ParseSeverity(req.Severity)
	if err != nil {
		return surface.NewValidationError("server.CreateFinding", err)
	}

	tenant := tenantID(c)
	var f *finding.Finding
	if req.ID != "" {
		f = finding.NewWithID(req.ID, tenant, req.Title, req.Description, sev, req.Source)
	} else {
		f = finding.New(tenant, req.Title, req.Description, sev, req.Source)
	}
	f.CVE = req.CVE
	f.CWE = req.CWE
	f.Remediation = req.Remediation
	f.References = req.References
	f.Tags = req.Tags
	f.AffectedAssets = req.AffectedAssets
	if req.CVSSScore != nil {
		if err := f.SetSeverity(sev, req.CVSSScore, req.CVSSVector); err != nil {
			return surface.NewValidationError("server.CreateFinding", err)
		}
	}
	if err := f.Validate(); err != nil {
		return surface.NewValidationError("server.CreateFinding", err)
	}

	// Referenced assets must exist and belong to the tenant before any
	// counters are bumped.
	assets := make([]*asset.Asset, 0, len(f.AffectedAssets))
	for _, id := range f.AffectedAssets {
		a, err := s.stores.GetAsset(c.Context(), tenant, id)
		if err != nil {
			if surface.IsKind(err, surface.KindNotFound) {
				return surface.NewValidationError("server.CreateFinding",
					fmt.Errorf("unknown asset: %s", id))
			}
			return err
		}
		assets = append(assets, a)
	}

	if err := s.stores.SaveFinding(c.Context(), f); err != nil {
		return err
	}
	for _, a := range assets {
		a.FindingCounts.Add(f.Severity)
		a.Recalculate()
		if err := s.stores.SaveAsset(c.Context(), a); err != nil {
			return err
		}
	}

	s.recordAudit(c, audit.ActionFindingCreated, "finding/"+f.ID, "", string(f.Severity))
	s.invalidate(c, "findings")
	if len(assets) > 0 {
		s.invalidate(c, "assets")
	}
	s.publishFinding(EventFindingCreated, tenant, f)
	return c.Status(fiber.StatusCreated).JSON(f)
}

func (s *Server) handleUpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.UpdateStatus", err)
	}
	to, err := finding.ParseStatus(req.Status)
	if err != nil {
		return surface.NewValidationError("server.UpdateStatus", err)
	}

	tenant := tenantID(c)
	f, err := s.stores.GetFinding(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return err
	}

	// Closing out a finding is an approval action reserved for admins.
	if finding.RequiresApproval(to) && role(c) != RoleAdmin {
		return surface.NewPermissionError("server.UpdateStatus", surface.ErrApprovalRequired).
			WithContext(map[string]any{"finding_id": f.ID, "to": to.String()})
	}

	from := f.Status
	if err := f.Transition(to, req.Resolution); err != nil {
		return err
	}
	if err := s.stores.SaveFinding(c.Context(), f); err != nil {
		return err
	}

	s.recordAudit(c, audit.ActionStatusChanged, "finding/"+f.ID, string(from), string(to))
	s.invalidate(c, "findings")
	s.publishFinding(EventStatusChanged, tenant, f)
	return c.JSON(f)
}

func (s *Server) handleUpdateSeverity(c *fiber.Ctx) error {
	var req severityRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.UpdateSeverity", err)
	}
	sev, err := finding.ParseSeverity(req.Severity)
	if err != nil {
		return surface.NewValidationError("server.UpdateSeverity", err)
	}

	tenant := tenantID(c)
	f, err := s.stores.GetFinding(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return err
	}

	from := f.Severity
	if err := f.SetSeverity(sev, req.CVSSScore, req.CVSSVector); err != nil {
		return surface.NewValidationError("server.UpdateSeverity", err)
	}
	if err := s.stores.SaveFinding(c.Context(), f); err != nil {
		return err
	}

	// Re-bucket the finding in each affected asset's per-severity counts.
	if from != f.Severity {
		for _, id := range f.AffectedAssets {
			a, err := s.stores.GetAsset(c.Context(), tenant, id)
			if err != nil {
				s.logger.Warn("skipping asset recount", "asset_id", id, "error", err)
				continue
			}
			a.FindingCounts.Remove(from)
			a.FindingCounts.Add(f.Severity)
			a.Recalculate()
			if err := s.stores.SaveAsset(c.Context(), a); err != nil {
				return err
			}
		}
		s.invalidate(c, "assets")
	}

	s.recordAudit(c, audit.ActionSeverityChanged, "finding/"+f.ID, string(from), string(f.Severity))
	s.invalidate(c, "findings")
	s.publishFinding(EventSeverityChanged, tenant, f)
	return c.JSON(f)
}

// handleAssign serves the assignment route, which is mounted outside the
// tenant path. The tenant comes from the token.
func (s *Server) handleAssign(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.Assign", err)
	}

	tenant := tenantID(c)
	f, err := s.stores.GetFinding(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return err
	}

	from := f.AssigneeID
	if err := f.Assign(req.UserID); err != nil {
		return surface.NewValidationError("server.Assign", err)
	}
	if err := s.stores.SaveFinding(c.Context(), f); err != nil {
		return err
	}

	s.recordAudit(c, audit.ActionAssigned, "finding/"+f.ID, from, f.AssigneeID)
	s.invalidate(c, "findings")
	s.publishFinding(EventAssigneeChanged, tenant, f)
	return c.JSON(f)
}

func (s *Server) handleUnassign(c *fiber.Ctx) error {
	tenant := tenantID(c)
	f, err := s.stores.GetFinding(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return err
	}

	from := f.AssigneeID
	f.Unassign()
	if err := s.stores.SaveFinding(c.Context(), f); err != nil {
		return err
	}

	s.recordAudit(c, audit.ActionUnassigned, "finding/"+f.ID, from, "")
	s.invalidate(c, "findings")
	s.publishFinding(EventAssigneeChanged, tenant, f)
	return c.JSON(f)
}

type assetPage struct {
	Assets []*asset.Asset `json:"assets"`
	Total  int            `json:"total"`
}

func (s *Server) handleListAssets(c *fiber.Ctx) error {
	tenant := tenantID(c)

	key := cache.AssetsKey(tenant, "")
	var page assetPage
	if s.cached(c, key, &page) {
		return c.JSON(page)
	}

	assets, total, err := s.stores.ListAssets(c.Context(), tenant)
	if err != nil {
		return err
	}

	page = assetPage{Assets: assets, Total: total}
	s.cacheSet(c, key, page)
	return c.JSON(page)
}

func (s *Server) handleCreateAsset(c *fiber.Ctx) error {
	var req createAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.CreateAsset", err)
	}

	a := asset.New(tenantID(c), req.Name, asset.Kind(req.Kind),
		asset.Environment(req.Environment), asset.Criticality(req.Criticality))
	a.GroupID = req.GroupID
	a.Labels = req.Labels
	if err := a.Validate(); err != nil {
		return surface.NewValidationError("server.CreateAsset", err)
	}

	if err := s.stores.SaveAsset(c.Context(), a); err != nil {
		return err
	}

	s.recordAudit(c, audit.ActionAssetCreated, "asset/"+a.ID, "", a.Name)
	s.invalidate(c, "assets")
	return c.Status(fiber.StatusCreated).JSON(a)
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Environment string `json:"environment"`
	Criticality string `json:"criticality"`
}

// handleListGroups recomputes each group's rollup from its current members
// before returning it; stored rollups are a snapshot, not a source of truth.
func (s *Server) handleListGroups(c *fiber.Ctx) error {
	tenant := tenantID(c)
	groups, err := s.stores.ListGroups(c.Context(), tenant)
	if err != nil {
		return err
	}

	for _, g := range groups {
		members, err := s.stores.AssetsInGroup(c.Context(), tenant, g.ID)
		if err != nil {
			return err
		}
		g.Rollup(members)
	}
	return c.JSON(fiber.Map{"groups": groups, "total": len(groups)})
}

func (s *Server) handleCreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return surface.NewValidationError("server.CreateGroup", err)
	}

	g := asset.NewGroup(tenantID(c), req.Name,
		asset.Environment(req.Environment), asset.Criticality(req.Criticality))
	g.Description = req.Description
	if err := g.Validate(); err != nil {
		return surface.NewValidationError("server.CreateGroup", err)
	}

	if err := s.stores.SaveGroup(c.Context(), g); err != nil {
		return err
	}

	s.recordAudit(c, audit.ActionGroupCreated, "group/"+g.ID, "", g.Name)
	s.invalidate(c, "assets")
	return c.Status(fiber.StatusCreated).JSON(g)
}

type auditPage struct {
	Entries []*audit.Entry `json:"entries"`
	Total   int            `json:"total"`
}

func (s *Server) handleListAudit(c *fiber.Ctx) error {
	entries, err := s.stores.ListAudit(c.Context(), tenantID(c), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.JSON(auditPage{Entries: entries, Total: len(entries)})
}

func (s *Server) handleTriage(c *fiber.Ctx) error {
	if s.adv == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "triage advisor not configured")
	}

	f, err := s.stores.GetFinding(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return err
	}

	sug, err := s.adv.Suggest(c.Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(sug)
}

// recordAudit appends an audit entry for the current actor. Audit failures
// are logged, not surfaced; the mutation itself already succeeded.
func (s *Server) recordAudit(c *fiber.Ctx, action audit.Action, resource, oldValue, newValue string) {
	e := audit.NewEntry(tenantID(c), userID(c), action, resource, oldValue, newValue)
	if err := s.stores.RecordAudit(c.Context(), e); err != nil {
		s.logger.Error("failed to record audit entry", "action", string(action), "resource", resource, "error", err)
	}
}
