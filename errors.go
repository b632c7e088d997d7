package surface

import (
	"errors"
	"fmt"
)

// Sentinel errors for common platform error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrFindingNotFound indicates the requested finding does not exist.
	ErrFindingNotFound = errors.New("finding not found")

	// ErrAssetNotFound indicates the requested asset does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrTenantNotFound indicates the requested tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrModuleGated indicates the tenant's plan does not include the
	// requested module.
	ErrModuleGated = errors.New("module not included in plan")

	// ErrApprovalRequired indicates the status transition needs an explicit
	// approval step before it can be applied.
	ErrApprovalRequired = errors.New("transition requires approval")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindPermission represents errors related to permissions, licensing,
	// or authorization.
	KindPermission = "permission"

	// KindConflict represents errors caused by illegal state transitions
	// or concurrent updates.
	KindConflict = "conflict"

	// KindNetwork represents errors related to network operations.
	KindNetwork = "network"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal platform errors.
	KindInternal = "internal"
)

// PlatformError is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of
// error. It implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type PlatformError struct {
	// Op is the operation that failed (e.g., "Client.UpdateStatus").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional),
	// such as resource IDs or parameter values.
	Context map[string]any
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("surface: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("surface: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("surface: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Is implements error matching for PlatformError, allowing comparison based
// on the underlying error or on matching Op/Kind.
func (e *PlatformError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*PlatformError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context merged in.
func (e *PlatformError) WithContext(ctx map[string]any) *PlatformError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// IsKind reports whether err is (or wraps) a PlatformError of the given kind.
func IsKind(err error, kind string) bool {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Kind == kind
	}
	return false
}

// NewNotFoundError creates a new PlatformError with KindNotFound.
func NewNotFoundError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new PlatformError with KindValidation.
func NewValidationError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindValidation, Err: err}
}

// NewPermissionError creates a new PlatformError with KindPermission.
func NewPermissionError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindPermission, Err: err}
}

// NewConflictError creates a new PlatformError with KindConflict.
func NewConflictError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindConflict, Err: err}
}

// NewNetworkError creates a new PlatformError with KindNetwork.
func NewNetworkError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindNetwork, Err: err}
}

// NewConfigurationError creates a new PlatformError with KindConfiguration.
func NewConfigurationError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindConfiguration, Err: err}
}

// NewInternalError creates a new PlatformError with KindInternal.
func NewInternalError(op string, err error) *PlatformError {
	return &PlatformError{Op: op, Kind: KindInternal, Err: err}
}
