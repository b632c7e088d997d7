package finding

import "fmt"

// Status represents the current position of a finding in its triage workflow.
type Status string

const (
	// StatusNew indicates a finding that has been ingested but not yet reviewed.
	StatusNew Status = "new"

	// StatusTriaged indicates an analyst has reviewed the finding and queued it
	// for confirmation.
	StatusTriaged Status = "triaged"

	// StatusConfirmed indicates the finding has been verified as a real issue.
	StatusConfirmed Status = "confirmed"

	// StatusInProgress indicates remediation work is underway.
	StatusInProgress Status = "in_progress"

	// StatusResolved indicates the underlying issue has been fixed.
	StatusResolved Status = "resolved"

	// StatusVerified indicates the fix has been re-tested and confirmed.
	StatusVerified Status = "verified"

	// StatusClosed indicates the finding is finished and archived.
	StatusClosed Status = "closed"

	// StatusDuplicate indicates the finding duplicates another tracked finding.
	StatusDuplicate Status = "duplicate"

	// StatusFalsePositive indicates the finding was determined not to be a
	// real issue.
	StatusFalsePositive Status = "false_positive"
)

// StatusMeta holds display metadata for a workflow status.
type StatusMeta struct {
	Label   string `json:"label"`
	Color   string `json:"color"`
	BgColor string `json:"bg_color"`
	Icon    string `json:"icon"`
}

var statusMeta = map[Status]StatusMeta{
	StatusNew:           {Label: "New", Color: "#2563eb", BgColor: "#eff6ff", Icon: "sparkles"},
	StatusTriaged:       {Label: "Triaged", Color: "#7c3aed", BgColor: "#f5f3ff", Icon: "list-checks"},
	StatusConfirmed:     {Label: "Confirmed", Color: "#dc2626", BgColor: "#fef2f2", Icon: "shield-check"},
	StatusInProgress:    {Label: "In Progress", Color: "#d97706", BgColor: "#fffbeb", Icon: "loader"},
	StatusResolved:      {Label: "Resolved", Color: "#16a34a", BgColor: "#f0fdf4", Icon: "check-circle"},
	StatusVerified:      {Label: "Verified", Color: "#0d9488", BgColor: "#f0fdfa", Icon: "badge-check"},
	StatusClosed:        {Label: "Closed", Color: "#64748b", BgColor: "#f8fafc", Icon: "archive"},
	StatusDuplicate:     {Label: "Duplicate", Color: "#64748b", BgColor: "#f8fafc", Icon: "copy"},
	StatusFalsePositive: {Label: "False Positive", Color: "#64748b", BgColor: "#f8fafc", Icon: "x-circle"},
}

// statusTransitions is the authoritative workflow table. A status change is
// legal only if the target appears in the source's entry. Every status keeps
// at least one outgoing edge, and the terminal-ish statuses (closed,
// duplicate, false_positive) reopen only to confirmed.
var statusTransitions = map[Status][]Status{
	StatusNew:           {StatusTriaged, StatusDuplicate, StatusFalsePositive},
	StatusTriaged:       {StatusConfirmed, StatusDuplicate, StatusFalsePositive},
	StatusConfirmed:     {StatusInProgress, StatusResolved, StatusDuplicate, StatusFalsePositive},
	StatusInProgress:    {StatusResolved, StatusConfirmed},
	StatusResolved:      {StatusVerified, StatusConfirmed, StatusClosed},
	StatusVerified:      {StatusClosed, StatusConfirmed},
	StatusClosed:        {StatusConfirmed},
	StatusDuplicate:     {StatusConfirmed},
	StatusFalsePositive: {StatusConfirmed},
}

// approvalRequired lists statuses whose entry requires an explicit approval
// step. Clients must surface an approval request instead of applying the
// transition directly.
var approvalRequired = map[Status]bool{
	StatusResolved:      true,
	StatusFalsePositive: true,
}

// IsValid returns true if the status is valid.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Meta returns the display metadata for the status.
// Returns the zero value for invalid statuses.
func (s Status) Meta() StatusMeta {
	return statusMeta[s]
}

// IsTerminal returns true for closed, duplicate and false_positive. These
// statuses end the workflow but remain re-openable back to confirmed;
// findings are never hard-deleted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClosed, StatusDuplicate, StatusFalsePositive:
		return true
	default:
		return false
	}
}

// NextStatuses returns the set of statuses legally reachable from the
// current status. The returned slice is a copy; callers may modify it.
// Returns nil for invalid statuses.
func NextStatuses(current Status) []Status {
	next, ok := statusTransitions[current]
	if !ok {
		return nil
	}
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether moving from one status to another is a legal
// workflow edge.
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether entering the status requires an explicit
// approval step before the transition may be applied.
func RequiresApproval(s Status) bool {
	return approvalRequired[s]
}

// ParseStatus parses a string into a Status value.
// Returns an error if the string is not a valid status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return status, nil
}

// AllStatuses returns all valid statuses in workflow order.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusTriaged,
		StatusConfirmed,
		StatusInProgress,
		StatusResolved,
		StatusVerified,
		StatusClosed,
		StatusDuplicate,
		StatusFalsePositive,
	}
}
