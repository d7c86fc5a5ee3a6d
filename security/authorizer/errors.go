package authorizer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pitabwire/tenantkit/security"
)

var (
	// ErrPermissionDenied indicates the caller's workspace role is below the one required.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoTenantAccess indicates the caller is not a member of the requested workspace.
	ErrNoTenantAccess = errors.New("no access to workspace")

	// ErrInvalidSubject indicates no authenticated caller is bound to the request.
	ErrInvalidSubject = errors.New("invalid subject reference")

	// ErrInvalidObject indicates the request is not bound to any workspace.
	ErrInvalidObject = errors.New("invalid workspace reference")

	// ErrMembershipLookup indicates the membership relation could not be read.
	ErrMembershipLookup = errors.New("membership lookup failed")
)

// PermissionDeniedError provides detailed denial information.
type PermissionDeniedError struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Required    security.TenantRole
	Held        security.TenantRole
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s holds %q in workspace %s, %q required",
		e.UserID, e.Held, e.WorkspaceID, e.Required)
}

// Is allows checking if an error is a PermissionDeniedError.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Unwrap returns the base error for error wrapping support.
func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// NewPermissionDeniedError creates a new PermissionDeniedError.
func NewPermissionDeniedError(
	workspaceID, userID uuid.UUID,
	required, held security.TenantRole,
) *PermissionDeniedError {
	return &PermissionDeniedError{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Required:    required,
		Held:        held,
	}
}

// MembershipLookupError wraps database failures raised while resolving a role.
type MembershipLookupError struct {
	WorkspaceID uuid.UUID
	Cause       error
}

func (e *MembershipLookupError) Error() string {
	return fmt.Sprintf("membership lookup for workspace %s: %v", e.WorkspaceID, e.Cause)
}

func (e *MembershipLookupError) Is(target error) bool {
	return target == ErrMembershipLookup
}

func (e *MembershipLookupError) Unwrap() error {
	return e.Cause
}
