package finding

import "testing"

func TestNextStatuses_NoDeadEnds(t *testing.T) {
	for _, s := range AllStatuses() {
		next := NextStatuses(s)
		if len(next) == 0 {
			t.Errorf("NextStatuses(%s) is empty, every status needs an outgoing edge", s)
		}
		for _, to := range next {
			if !to.IsValid() {
				t.Errorf("NextStatuses(%s) contains invalid status %q", s, to)
			}
			if !CanTransition(s, to) {
				t.Errorf("CanTransition(%s, %s) = false for an edge returned by NextStatuses", s, to)
			}
		}
	}
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusNew)
	next[0] = StatusClosed
	if CanTransition(StatusNew, StatusClosed) {
		t.Error("mutating the NextStatuses result must not change the transition table")
	}
}

func TestNextStatuses_InvalidStatus(t *testing.T) {
	if next := NextStatuses(Status("bogus")); next != nil {
		t.Errorf("NextStatuses(bogus) = %v, want nil", next)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"new to triaged", StatusNew, StatusTriaged, true},
		{"new to duplicate", StatusNew, StatusDuplicate, true},
		{"new to false_positive", StatusNew, StatusFalsePositive, true},
		{"new directly to resolved", StatusNew, StatusResolved, false},
		{"new directly to closed", StatusNew, StatusClosed, false},
		{"triaged to confirmed", StatusTriaged, StatusConfirmed, true},
		{"confirmed to in_progress", StatusConfirmed, StatusInProgress, true},
		{"confirmed to resolved", StatusConfirmed, StatusResolved, true},
		{"in_progress back to confirmed", StatusInProgress, StatusConfirmed, true},
		{"resolved to verified", StatusResolved, StatusVerified, true},
		{"resolved reopened", StatusResolved, StatusConfirmed, true},
		{"verified to closed", StatusVerified, StatusClosed, true},
		{"closed to verified", StatusClosed, StatusVerified, false},
		{"self transition", StatusConfirmed, StatusConfirmed, false},
		{"invalid source", Status("bogus"), StatusConfirmed, false},
		{"invalid target", StatusConfirmed, Status("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatuses_ReopenOnlyToConfirmed(t *testing.T) {
	for _, s := range []Status{StatusClosed, StatusDuplicate, StatusFalsePositive} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
		next := NextStatuses(s)
		if len(next) != 1 || next[0] != StatusConfirmed {
			t.Errorf("NextStatuses(%s) = %v, want [confirmed]", s, next)
		}
	}
}

func TestNonTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusTriaged, StatusConfirmed, StatusInProgress, StatusResolved, StatusVerified} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestRequiresApproval(t *testing.T) {
	approvalStatuses := map[Status]bool{
		StatusResolved:      true,
		StatusFalsePositive: true,
	}
	for _, s := range AllStatuses() {
		if got := RequiresApproval(s); got != approvalStatuses[s] {
			t.Errorf("RequiresApproval(%s) = %v, want %v", s, got, approvalStatuses[s])
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		parsed, err := ParseStatus(s.String())
		if err != nil {
			t.Errorf("ParseStatus(%s) unexpected error: %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseStatus(%s) = %v, want %v", s, parsed, s)
		}
	}

	if _, err := ParseStatus("reopened"); err == nil {
		t.Error("ParseStatus(reopened) expected error, got nil")
	}
}

func TestStatusMeta(t *testing.T) {
	for _, s := range AllStatuses() {
		meta := s.Meta()
		if meta.Label == "" {
			t.Errorf("Status(%s).Meta() has empty label", s)
		}
		if meta.Color == "" || meta.BgColor == "" {
			t.Errorf("Status(%s).Meta() has empty colors", s)
		}
		if meta.Icon == "" {
			t.Errorf("Status(%s).Meta() has empty icon", s)
		}
	}

	if got := Status("bogus").Meta(); got != (StatusMeta{}) {
		t.Errorf("invalid status Meta() = %+v, want zero value", got)
	}
}
