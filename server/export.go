package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/finding"
)

func (s *Server) handleExportFindings(c *fiber.Ctx) error {
	format := finding.FormatJSON
	if v := c.Query("format"); v != "" {
		var err error
		format, err = finding.ParseExportFormat(v)
		if err != nil {
			return surface.NewValidationError("server.ExportFindings", err)
		}
	}

	tenant := tenantID(c)
	findings, err := s.stores.AllFindings(c.Context(), tenant)
	if err != nil {
		return err
	}

	// The export filter is applied in memory; exports are not paginated.
	filter, err := exportFilter(c)
	if err != nil {
		return err
	}
	findings = filter.Apply(findings)

	c.Set(fiber.HeaderContentType, format.MimeType())
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=findings-%s.%s", time.Now().Format("2006-01-02"), format.FileExtension()))

	switch format {
	case finding.FormatCSV:
		data, err := renderCSV(findings)
		if err != nil {
			return err
		}
		return c.Send(data)
	case finding.FormatSARIF:
		return c.JSON(renderSARIF(findings))
	default:
		return c.JSON(findings)
	}
}

func exportFilter(c *fiber.Ctx) (finding.Filter, error) {
	var fl finding.Filter

	if v := c.Query("status"); v != "" {
		st, err := finding.ParseStatus(v)
		if err != nil {
			return fl, surface.NewValidationError("server.ExportFindings", err)
		}
		fl.Statuses = []finding.Status{st}
	}
	if v := c.Query("severity"); v != "" {
		sev, err := finding.ParseSeverity(v)
		if err != nil {
			return fl, surface.NewValidationError("server.ExportFindings", err)
		}
		fl.Severities = []finding.Severity{sev}
	}
	fl.AssigneeID = c.Query("assignee_id")
	fl.AssetID = c.Query("asset_id")
	fl.Tag = c.Query("tag")
	return fl, nil
}

var csvHeader = []string{
	"id", "title", "severity", "status", "cve", "cwe", "cvss_score",
	"risk_score", "assignee_id", "source_tool", "created_at", "updated_at",
}

func renderCSV(findings []*finding.Finding) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, f := range findings {
		cvss := ""
		if f.CVSSScore != nil {
			cvss = strconv.FormatFloat(*f.CVSSScore, 'f', 1, 64)
		}
		row := []string{
			f.ID,
			f.Title,
			string(f.Severity),
			string(f.Status),
			f.CVE,
			f.CWE,
			cvss,
			strconv.FormatFloat(f.RiskScore, 'f', 2, 64),
			f.AssigneeID,
			f.Source.Tool,
			f.CreatedAt.Format(time.RFC3339),
			f.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Minimal SARIF 2.1.0 envelope. One run per export, one result per finding.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string `json:"name"`
	InformationURI string `json:"informationUri,omitempty"`
}

type sarifResult struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level"`
	Message    sarifMessage   `json:"message"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

func renderSARIF(findings []*finding.Finding) sarifLog {
	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		ruleID := f.CVE
		if ruleID == "" {
			ruleID = f.CWE
		}
		if ruleID == "" {
			ruleID = f.ID
		}
		props := map[string]any{
			"severity":   string(f.Severity),
			"status":     string(f.Status),
			"risk_score": f.RiskScore,
		}
		if len(f.AffectedAssets) > 0 {
			props["affected_assets"] = f.AffectedAssets
		}
		results = append(results, sarifResult{
			RuleID:     ruleID,
			Level:      sarifLevel(f.Severity),
			Message:    sarifMessage{Text: f.Title},
			Properties: props,
		})
	}
	return sarifLog{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "surface"}},
			Results: results,
		}},
	}
}

func sarifLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityCritical, finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
