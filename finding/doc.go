// Package finding provides the domain types for security findings tracked
// by the Surface platform: severity and status enums with display metadata,
// the status workflow table, and the Finding aggregate itself.
//
// # Workflow
//
// A finding moves through a fixed status workflow:
//
//	new -> triaged -> confirmed -> in_progress -> resolved -> verified -> closed
//
// with short-circuit edges to duplicate and false_positive during triage.
// Legal edges are defined by a single transition table; NextStatuses and
// CanTransition expose it, and Finding.Transition enforces it. The
// terminal-ish statuses (closed, duplicate, false_positive) are not dead
// ends: each reopens back to confirmed. Findings are never hard-deleted.
//
// Some statuses (resolved, false_positive) require an approval step before
// they may be entered; RequiresApproval flags them so clients can raise an
// approval request instead of applying the change.
//
// # Severity
//
// Severity is ranked from Critical to Info with associated weights for risk
// calculation and a CVSS band per level; SeverityFromCVSS maps scores using
// the CVSS v3.1 qualitative rating scale.
//
// Example usage:
//
//	f := finding.New(
//		"tenant-1",
//		"Exposed .git directory",
//		"The web server serves the repository metadata at /.git/",
//		finding.SeverityHigh,
//		finding.Source{Tool: "nuclei"},
//	)
//
//	if err := f.Transition(finding.StatusTriaged, ""); err != nil {
//		log.Fatal(err)
//	}
package finding
