package finding

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tenantID := "tenant-acme"
	title := "Exposed admin panel"
	description := "Admin panel reachable without authentication"
	source := Source{Tool: "nuclei", ExternalID: "nuclei-123"}

	before := time.Now()
	f := New(tenantID, title, description, SeverityHigh, source)
	after := time.Now()

	if f.ID == "" {
		t.Error("New() ID is empty, want auto-generated UUID")
	}
	if f.TenantID != tenantID {
		t.Errorf("New() TenantID = %v, want %v", f.TenantID, tenantID)
	}
	if f.Title != title {
		t.Errorf("New() Title = %v, want %v", f.Title, title)
	}
	if f.Status != StatusNew {
		t.Errorf("New() Status = %v, want %v", f.Status, StatusNew)
	}
	if f.Severity != SeverityHigh {
		t.Errorf("New() Severity = %v, want %v", f.Severity, SeverityHigh)
	}
	if f.RiskScore != SeverityHigh.Weight() {
		t.Errorf("New() RiskScore = %v, want %v", f.RiskScore, SeverityHigh.Weight())
	}
	if f.CreatedAt.Before(before) || f.CreatedAt.After(after) {
		t.Error("New() CreatedAt not in expected range")
	}
}

func TestNewWithID(t *testing.T) {
	f := NewWithID("ext-42", "tenant-1", "Title", "Description", SeverityMedium, Source{Tool: "trivy"})
	if f.ID != "ext-42" {
		t.Errorf("NewWithID() ID = %v, want ext-42", f.ID)
	}
}

func TestFinding_Validate(t *testing.T) {
	valid := New("tenant-1", "Test Finding", "Test Description", SeverityHigh, Source{Tool: "manual"})

	badScore := 11.0

	tests := []struct {
		name    string
		mutate  func(f *Finding)
		wantErr bool
	}{
		{"valid finding", func(f *Finding) {}, false},
		{"missing ID", func(f *Finding) { f.ID = "" }, true},
		{"missing tenant", func(f *Finding) { f.TenantID = "" }, true},
		{"missing title", func(f *Finding) { f.Title = "" }, true},
		{"invalid severity", func(f *Finding) { f.Severity = "urgent" }, true},
		{"invalid status", func(f *Finding) { f.Status = "reopened" }, true},
		{"CVSS out of range", func(f *Finding) { f.CVSSScore = &badScore }, true},
		{"missing source tool", func(f *Finding) { f.Source.Tool = "" }, true},
		{"zero created_at", func(f *Finding) { f.CreatedAt = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid.Clone()
			tt.mutate(f)
			err := f.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFinding_Transition(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityHigh, Source{Tool: "manual"})

	if err := f.Transition(StatusTriaged, ""); err != nil {
		t.Fatalf("Transition(triaged) unexpected error: %v", err)
	}
	if f.Status != StatusTriaged {
		t.Errorf("Status = %v, want triaged", f.Status)
	}
}

func TestFinding_Transition_RejectsIllegalEdge(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityHigh, Source{Tool: "manual"})

	err := f.Transition(StatusResolved, "patched")
	if err == nil {
		t.Fatal("Transition(new -> resolved) expected error, got nil")
	}

	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *TransitionError", err)
	}
	if terr.From != StatusNew || terr.To != StatusResolved {
		t.Errorf("TransitionError = %s -> %s, want new -> resolved", terr.From, terr.To)
	}
	if f.Status != StatusNew {
		t.Errorf("Status after rejected transition = %v, want new", f.Status)
	}
}

func TestFinding_Transition_ResolutionLifecycle(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityHigh, Source{Tool: "manual"})

	steps := []struct {
		to         Status
		resolution string
	}{
		{StatusTriaged, ""},
		{StatusConfirmed, ""},
		{StatusResolved, "patched in v2.1"},
	}
	for _, step := range steps {
		if err := f.Transition(step.to, step.resolution); err != nil {
			t.Fatalf("Transition(%s) unexpected error: %v", step.to, err)
		}
	}
	if f.Resolution != "patched in v2.1" {
		t.Errorf("Resolution = %q, want %q", f.Resolution, "patched in v2.1")
	}

	// Verification and closing keep the resolution on record.
	for _, to := range []Status{StatusVerified, StatusClosed} {
		if err := f.Transition(to, ""); err != nil {
			t.Fatalf("Transition(%s) unexpected error: %v", to, err)
		}
		if f.Resolution != "patched in v2.1" {
			t.Errorf("Resolution after %s = %q, want %q", to, f.Resolution, "patched in v2.1")
		}
	}

	// Reopening clears the resolution.
	if err := f.Transition(StatusConfirmed, ""); err != nil {
		t.Fatalf("reopen unexpected error: %v", err)
	}
	if f.Resolution != "" {
		t.Errorf("Resolution after reopen = %q, want empty", f.Resolution)
	}
}

func TestFinding_SetSeverity(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityLow, Source{Tool: "manual"})

	score := 9.8
	if err := f.SetSeverity(SeverityCritical, &score, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"); err != nil {
		t.Fatalf("SetSeverity() unexpected error: %v", err)
	}
	if f.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", f.Severity)
	}
	if f.CVSSScore == nil || *f.CVSSScore != score {
		t.Errorf("CVSSScore = %v, want %v", f.CVSSScore, score)
	}
	if f.RiskScore != SeverityCritical.Weight() {
		t.Errorf("RiskScore = %v, want %v", f.RiskScore, SeverityCritical.Weight())
	}
}

func TestFinding_SetSeverity_ScoreBandMismatch(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityLow, Source{Tool: "manual"})

	score := 9.8
	if err := f.SetSeverity(SeverityLow, &score, ""); err == nil {
		t.Error("SetSeverity(low, 9.8) expected band mismatch error, got nil")
	}
	if f.Severity != SeverityLow || f.CVSSScore != nil {
		t.Error("finding mutated by rejected SetSeverity")
	}
}

func TestFinding_AssignUnassign(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityMedium, Source{Tool: "manual"})

	if err := f.Assign("user-7"); err != nil {
		t.Fatalf("Assign() unexpected error: %v", err)
	}
	if f.AssigneeID != "user-7" {
		t.Errorf("AssigneeID = %v, want user-7", f.AssigneeID)
	}

	if err := f.Assign(""); err == nil {
		t.Error("Assign(empty) expected error, got nil")
	}

	f.Unassign()
	if f.AssigneeID != "" {
		t.Errorf("AssigneeID after Unassign = %v, want empty", f.AssigneeID)
	}
}

func TestFinding_AddTag(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityMedium, Source{Tool: "manual"})
	f.AddTag("external")
	f.AddTag("external")
	f.AddTag("pci")
	if len(f.Tags) != 2 {
		t.Errorf("Tags = %v, want [external pci]", f.Tags)
	}
}

func TestFinding_Clone(t *testing.T) {
	score := 7.5
	f := New("tenant-1", "Title", "Description", SeverityHigh, Source{Tool: "manual"})
	f.CVSSScore = &score
	f.AffectedAssets = []string{"asset-1"}
	f.Tags = []string{"external"}

	c := f.Clone()
	c.Title = "Changed"
	*c.CVSSScore = 1.0
	c.AffectedAssets[0] = "asset-2"
	c.Tags = append(c.Tags, "internal")

	if f.Title != "Title" {
		t.Error("Clone() shares Title with original")
	}
	if *f.CVSSScore != 7.5 {
		t.Error("Clone() shares CVSSScore pointer with original")
	}
	if f.AffectedAssets[0] != "asset-1" {
		t.Error("Clone() shares AffectedAssets slice with original")
	}
	if len(f.Tags) != 1 {
		t.Error("Clone() shares Tags slice with original")
	}
}

func TestFilter_Matches(t *testing.T) {
	f := New("tenant-1", "Title", "Description", SeverityHigh, Source{Tool: "nuclei"})
	f.AffectedAssets = []string{"asset-1"}
	f.AssigneeID = "user-7"
	f.AddTag("external")

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"status match", Filter{Statuses: []Status{StatusNew, StatusTriaged}}, true},
		{"status miss", Filter{Statuses: []Status{StatusClosed}}, false},
		{"severity match", Filter{Severities: []Severity{SeverityHigh}}, true},
		{"severity miss", Filter{Severities: []Severity{SeverityInfo}}, false},
		{"assignee match", Filter{AssigneeID: "user-7"}, true},
		{"assignee miss", Filter{AssigneeID: "user-8"}, false},
		{"asset match", Filter{AssetID: "asset-1"}, true},
		{"asset miss", Filter{AssetID: "asset-2"}, false},
		{"tag match", Filter{Tag: "external"}, true},
		{"tag miss", Filter{Tag: "internal"}, false},
		{"since in past", Filter{Since: time.Now().Add(-time.Hour)}, true},
		{"since in future", Filter{Since: time.Now().Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(f); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	a := New("tenant-1", "A", "d", SeverityHigh, Source{Tool: "manual"})
	b := New("tenant-1", "B", "d", SeverityLow, Source{Tool: "manual"})
	c := New("tenant-1", "C", "d", SeverityHigh, Source{Tool: "manual"})

	got := Filter{Severities: []Severity{SeverityHigh}}.Apply([]*Finding{a, b, c})
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("Apply() returned wrong subset: %v", got)
	}
}

func TestExportFormat(t *testing.T) {
	for _, f := range []ExportFormat{FormatJSON, FormatSARIF, FormatCSV} {
		if !f.IsValid() {
			t.Errorf("%s.IsValid() = false, want true", f)
		}
		if f.FileExtension() == "" {
			t.Errorf("%s.FileExtension() is empty", f)
		}
		if f.MimeType() == "application/octet-stream" {
			t.Errorf("%s.MimeType() fell through to default", f)
		}
	}
	if _, err := ParseExportFormat("xml"); err == nil {
		t.Error("ParseExportFormat(xml) expected error, got nil")
	}
}
