package audit

import "testing"

func TestNewEntry(t *testing.T) {
	e := NewEntry("tenant-1", "user-7", ActionStatusChanged, "finding/f-1", "new", "triaged")

	if e.ID == "" {
		t.Error("NewEntry() ID is empty, want auto-generated UUID")
	}
	if e.CreatedAt.IsZero() {
		t.Error("NewEntry() CreatedAt not set")
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Entry)
		wantErr bool
	}{
		{"valid", func(e *Entry) {}, false},
		{"missing ID", func(e *Entry) { e.ID = "" }, true},
		{"missing tenant", func(e *Entry) { e.TenantID = "" }, true},
		{"missing actor", func(e *Entry) { e.ActorID = "" }, true},
		{"invalid action", func(e *Entry) { e.Action = "finding.deleted" }, true},
		{"missing resource", func(e *Entry) { e.Resource = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEntry("tenant-1", "user-7", ActionAssigned, "finding/f-1", "", "user-9")
			tt.mutate(e)
			if err := e.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
