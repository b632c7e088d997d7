// Package license implements plan-based module gating. Each platform
// module is guarded by a CEL expression evaluated against a tenant's
// entitlements; rules are compiled once and evaluated per request.
package license

import (
	"fmt"

	"github.com/google/cel-go/cel"

	surface "github.com/surfacehq/surface"
)

// Plan represents a tenant's subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanTeam       Plan = "team"
	PlanEnterprise Plan = "enterprise"
)

// IsValid returns true if the plan is recognized.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanTeam, PlanEnterprise:
		return true
	}
	return false
}

// String returns the string representation of the plan.
func (p Plan) String() string {
	return string(p)
}

// ParsePlan converts a string to a Plan.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid plan: %s", s)
	}
	return p, nil
}

// AllPlans returns all valid plans in ascending tier order.
func AllPlans() []Plan {
	return []Plan{PlanFree, PlanTeam, PlanEnterprise}
}

// Module identifies a gateable platform module.
type Module string

const (
	ModuleFindings Module = "findings"
	ModuleAssets   Module = "assets"
	ModuleTriage   Module = "triage"
	ModuleAudit    Module = "audit"
	ModuleExport   Module = "export"
	ModuleBilling  Module = "billing"
)

// IsValid returns true if the module is recognized.
func (m Module) IsValid() bool {
	switch m {
	case ModuleFindings, ModuleAssets, ModuleTriage, ModuleAudit, ModuleExport, ModuleBilling:
		return true
	}
	return false
}

// String returns the string representation of the module.
func (m Module) String() string {
	return string(m)
}

// ParseModule converts a string to a Module.
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid module: %s", s)
	}
	return m, nil
}

// AllModules returns all gateable modules.
func AllModules() []Module {
	return []Module{ModuleFindings, ModuleAssets, ModuleTriage, ModuleAudit, ModuleExport, ModuleBilling}
}

// Entitlements is what a tenant is licensed for: a plan plus any modules
// enabled individually (add-ons, trials).
type Entitlements struct {
	Plan    Plan
	Modules []Module
}

// moduleStrings returns the add-on modules as plain strings for rule
// evaluation.
func (e Entitlements) moduleStrings() []string {
	out := make([]string, 0, len(e.Modules))
	for _, m := range e.Modules {
		out = append(out, m.String())
	}
	return out
}

// Rule guards a module with a CEL expression. The expression sees two
// variables: `plan` (string) and `modules` (list of strings, the tenant's
// individually enabled modules) and must evaluate to a bool.
type Rule struct {
	Module Module `yaml:"module"`
	Expr   string `yaml:"expr"`
}

// DefaultRules returns the built-in gate rules. Findings and assets are
// open to every plan; the rest scale with tier and can be unlocked as
// individual add-ons.
func DefaultRules() []Rule {
	return []Rule{
		{Module: ModuleFindings, Expr: `true`},
		{Module: ModuleAssets, Expr: `true`},
		{Module: ModuleExport, Expr: `plan != "free" || "export" in modules`},
		{Module: ModuleAudit, Expr: `plan != "free" || "audit" in modules`},
		{Module: ModuleTriage, Expr: `plan == "enterprise" || "triage" in modules`},
		{Module: ModuleBilling, Expr: `plan != "free"`},
	}
}

// Gate evaluates compiled module rules against tenant entitlements.
// A Gate is immutable after construction and safe for concurrent use;
// hot reload swaps in a whole new Gate.
type Gate struct {
	programs map[Module]cel.Program
}

// NewGate compiles the rules into a gate. Modules without a rule are
// denied for every tenant.
func NewGate(rules []Rule) (*Gate, error) {
	env, err := cel.NewEnv(
		cel.Variable("plan", cel.StringType),
		cel.Variable("modules", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, surface.NewConfigurationError("license.NewGate", err)
	}

	programs := make(map[Module]cel.Program, len(rules))
	for _, r := range rules {
		if !r.Module.IsValid() {
			return nil, surface.NewConfigurationError("license.NewGate",
				fmt.Errorf("invalid module: %s", r.Module))
		}
		ast, iss := env.Compile(r.Expr)
		if iss.Err() != nil {
			return nil, surface.NewConfigurationError("license.NewGate",
				fmt.Errorf("rule for %s: %w", r.Module, iss.Err()))
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, surface.NewConfigurationError("license.NewGate",
				fmt.Errorf("rule for %s: %w", r.Module, err))
		}
		programs[r.Module] = prg
	}
	return &Gate{programs: programs}, nil
}

// Allowed reports whether the entitlements unlock the module.
func (g *Gate) Allowed(module Module, ent Entitlements) (bool, error) {
	prg, ok := g.programs[module]
	if !ok {
		return false, nil
	}
	out, _, err := prg.Eval(map[string]any{
		"plan":    ent.Plan.String(),
		"modules": ent.moduleStrings(),
	})
	if err != nil {
		return false, surface.NewInternalError(
			fmt.Sprintf("license.Gate.Allowed(%s)", module), err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, surface.NewConfigurationError(
			fmt.Sprintf("license.Gate.Allowed(%s)", module),
			fmt.Errorf("rule did not evaluate to bool, got %T", out.Value()))
	}
	return allowed, nil
}

// Require returns ErrModuleGated (as a permission error with context) when
// the entitlements do not unlock the module.
func (g *Gate) Require(module Module, ent Entitlements) error {
	allowed, err := g.Allowed(module, ent)
	if err != nil {
		return err
	}
	if !allowed {
		return surface.NewPermissionError("license.Gate.Require", surface.ErrModuleGated).
			WithContext(map[string]any{"module": module.String(), "plan": ent.Plan.String()})
	}
	return nil
}
