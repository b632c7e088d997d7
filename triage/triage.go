// Package triage produces AI-assisted triage suggestions for findings: a
// proposed severity and status transition with a rationale and remediation
// text. Suggestions are advisory; a human applies them through the normal
// mutation path, so every lifecycle rule still holds.
package triage

import (
	"context"
	"fmt"

	"github.com/surfacehq/surface/finding"
)

// Suggestion is an advisor's proposal for a finding.
type Suggestion struct {
	// Severity is the proposed severity.
	Severity finding.Severity `json:"severity"`

	// Status is the proposed next status. It must be a legal transition
	// from the finding's current status.
	Status finding.Status `json:"status"`

	// Rationale explains the proposal in one or two sentences.
	Rationale string `json:"rationale"`

	// Remediation is suggested remediation guidance, if any.
	Remediation string `json:"remediation,omitempty"`

	// Confidence is the advisor's self-assessed confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Validate checks that the suggestion is internally consistent and legal
// for the given finding.
func (s *Suggestion) Validate(f *finding.Finding) error {
	if !s.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", s.Severity)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	if s.Status != f.Status && !finding.CanTransition(f.Status, s.Status) {
		return fmt.Errorf("illegal transition %s -> %s", f.Status, s.Status)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", s.Confidence)
	}
	return nil
}

// Advisor produces triage suggestions.
type Advisor interface {
	// Suggest proposes a triage action for the finding.
	Suggest(ctx context.Context, f *finding.Finding) (*Suggestion, error)

	// Close releases the advisor's resources.
	Close() error
}
