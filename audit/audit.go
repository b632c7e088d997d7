// Package audit provides the append-only audit log: every mutation on the
// platform records who changed what, with the before and after values.
// Entries are never updated or deleted.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of change an audit entry records.
type Action string

const (
	// ActionStatusChanged records a finding status transition.
	ActionStatusChanged Action = "finding.status_changed"

	// ActionSeverityChanged records a finding severity update.
	ActionSeverityChanged Action = "finding.severity_changed"

	// ActionAssigned records a finding assignment.
	ActionAssigned Action = "finding.assigned"

	// ActionUnassigned records a finding unassignment.
	ActionUnassigned Action = "finding.unassigned"

	// ActionFindingCreated records finding ingestion or manual entry.
	ActionFindingCreated Action = "finding.created"

	// ActionAssetCreated records asset discovery or manual entry.
	ActionAssetCreated Action = "asset.created"

	// ActionAssetUpdated records an asset update.
	ActionAssetUpdated Action = "asset.updated"

	// ActionGroupCreated records asset group creation.
	ActionGroupCreated Action = "group.created"
)

// IsValid returns true if the action is valid.
func (a Action) IsValid() bool {
	switch a {
	case ActionStatusChanged, ActionSeverityChanged, ActionAssigned,
		ActionUnassigned, ActionFindingCreated, ActionAssetCreated,
		ActionAssetUpdated, ActionGroupCreated:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Entry is a single audit log record.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// TenantID identifies the tenant the change belongs to.
	TenantID string `json:"tenant_id"`

	// ActorID identifies the user or system that made the change.
	ActorID string `json:"actor_id"`

	// Action identifies the kind of change.
	Action Action `json:"action"`

	// Resource identifies the changed resource (e.g., "finding/<id>").
	Resource string `json:"resource"`

	// OldValue is the field value before the change.
	OldValue string `json:"old_value,omitempty"`

	// NewValue is the field value after the change.
	NewValue string `json:"new_value,omitempty"`

	// CreatedAt is the timestamp the change was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry creates an audit entry with an auto-generated ID.
func NewEntry(tenantID, actorID string, action Action, resource, oldValue, newValue string) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: time.Now(),
	}
}

// Validate checks if the entry has all required fields.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry ID is required")
	}
	if e.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if e.ActorID == "" {
		return fmt.Errorf("actor ID is required")
	}
	if !e.Action.IsValid() {
		return fmt.Errorf("invalid action: %s", e.Action)
	}
	if e.Resource == "" {
		return fmt.Errorf("resource is required")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp is required")
	}
	return nil
}
