package license

import (
	"errors"
	"testing"

	surface "github.com/surfacehq/surface"
)

func TestPlanIsValid(t *testing.T) {
	for _, p := range AllPlans() {
		if !p.IsValid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if Plan("platinum").IsValid() {
		t.Error("expected platinum to be invalid")
	}
}

func TestParseModule(t *testing.T) {
	m, err := ParseModule("triage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != ModuleTriage {
		t.Errorf("expected triage, got %s", m)
	}
	if _, err := ParseModule("dashboards"); err == nil {
		t.Error("expected error for unknown module")
	}
}

func TestDefaultRules(t *testing.T) {
	gate, err := NewGate(DefaultRules())
	if err != nil {
		t.Fatalf("failed to compile default rules: %v", err)
	}

	tests := []struct {
		name string
		ent  Entitlements
		mod  Module
		want bool
	}{
		{"free gets findings", Entitlements{Plan: PlanFree}, ModuleFindings, true},
		{"free gets assets", Entitlements{Plan: PlanFree}, ModuleAssets, true},
		{"free denied export", Entitlements{Plan: PlanFree}, ModuleExport, false},
		{"free denied audit", Entitlements{Plan: PlanFree}, ModuleAudit, false},
		{"free denied billing", Entitlements{Plan: PlanFree}, ModuleBilling, false},
		{"team gets export", Entitlements{Plan: PlanTeam}, ModuleExport, true},
		{"team gets audit", Entitlements{Plan: PlanTeam}, ModuleAudit, true},
		{"team denied triage", Entitlements{Plan: PlanTeam}, ModuleTriage, false},
		{"enterprise gets triage", Entitlements{Plan: PlanEnterprise}, ModuleTriage, true},
		{
			"triage add-on unlocks triage on team",
			Entitlements{Plan: PlanTeam, Modules: []Module{ModuleTriage}},
			ModuleTriage, true,
		},
		{
			"export add-on unlocks export on free",
			Entitlements{Plan: PlanFree, Modules: []Module{ModuleExport}},
			ModuleExport, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Allowed(tt.mod, tt.ent)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", tt.mod, tt.ent.Plan, got, tt.want)
			}
		})
	}
}

func TestGateUnknownModuleDenied(t *testing.T) {
	gate, err := NewGate([]Rule{{Module: ModuleFindings, Expr: `true`}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	allowed, err := gate.Allowed(ModuleBilling, Entitlements{Plan: PlanEnterprise})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("modules without a rule must be denied")
	}
}

func TestGateRequire(t *testing.T) {
	gate, err := NewGate(DefaultRules())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := gate.Require(ModuleFindings, Entitlements{Plan: PlanFree}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = gate.Require(ModuleTriage, Entitlements{Plan: PlanFree})
	if !errors.Is(err, surface.ErrModuleGated) {
		t.Errorf("expected ErrModuleGated, got %v", err)
	}
}

func TestNewGateRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"syntax error", Rule{Module: ModuleTriage, Expr: `plan ==`}},
		{"unknown variable", Rule{Module: ModuleTriage, Expr: `tier == "pro"`}},
		{"invalid module", Rule{Module: Module("dashboards"), Expr: `true`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGate([]Rule{tt.rule}); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}
