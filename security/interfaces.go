package security

import (
	"context"

	"github.com/google/uuid"
)

// Authenticator verifies a bearer credential and returns the caller it names.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// MembershipResolver returns the role userID holds in workspaceID.
// ok is false when the user is not a member.
type MembershipResolver interface {
	Resolve(ctx context.Context, userID, workspaceID uuid.UUID) (role TenantRole, ok bool, err error)
}
