package surface

import (
	"errors"
	"strings"
	"testing"
)

func TestPlatformError_Error(t *testing.T) {
	err := &PlatformError{Op: "Client.UpdateStatus", Kind: KindConflict, Err: ErrApprovalRequired}
	msg := err.Error()
	if !strings.Contains(msg, "Client.UpdateStatus") || !strings.Contains(msg, KindConflict) {
		t.Errorf("Error() = %q, missing op or kind", msg)
	}

	bare := &PlatformError{Op: "Store.Get", Kind: KindNotFound}
	if !strings.Contains(bare.Error(), KindNotFound) {
		t.Errorf("Error() without cause = %q, missing kind", bare.Error())
	}
}

func TestPlatformError_Unwrap(t *testing.T) {
	err := NewNotFoundError("Store.GetFinding", ErrFindingNotFound)
	if !errors.Is(err, ErrFindingNotFound) {
		t.Error("errors.Is should match the wrapped sentinel")
	}

	var perr *PlatformError
	if !errors.As(err, &perr) {
		t.Error("errors.As should extract *PlatformError")
	}
}

func TestPlatformError_Is_KindMatching(t *testing.T) {
	err := NewPermissionError("Server.Gate", ErrModuleGated)

	if !errors.Is(err, &PlatformError{Kind: KindPermission}) {
		t.Error("errors.Is should match on Kind alone")
	}
	if errors.Is(err, &PlatformError{Kind: KindNotFound}) {
		t.Error("errors.Is should not match a different Kind")
	}
	if !errors.Is(err, &PlatformError{Op: "Server.Gate", Kind: KindPermission}) {
		t.Error("errors.Is should match on Op+Kind")
	}
	if errors.Is(err, &PlatformError{Op: "Other.Op", Kind: KindPermission}) {
		t.Error("errors.Is should not match a different Op")
	}
}

func TestPlatformError_WithContext(t *testing.T) {
	base := NewValidationError("Client.UpdateSeverity", ErrInvalidConfig)
	withCtx := base.WithContext(map[string]any{"finding_id": "f-1"})

	if base.Context != nil {
		t.Error("WithContext must not mutate the original error")
	}
	if withCtx.Context["finding_id"] != "f-1" {
		t.Error("WithContext did not record the context value")
	}
	if !strings.Contains(withCtx.Error(), "finding_id") {
		t.Errorf("Error() = %q, missing context", withCtx.Error())
	}
}
