package authorizer

import (
	"context"

	"github.com/google/uuid"

	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
)

// Require checks that the role bound to the request is at least required.
func Require(ctx context.Context, required security.TenantRole) error {
	binding, ok := session.BindingFromContext(ctx)
	if !ok || binding.UserID == uuid.Nil {
		return ErrInvalidSubject
	}

	if !binding.Scoped() {
		return ErrInvalidObject
	}

	if !security.Permits(required, binding.Role) {
		return NewPermissionDeniedError(binding.WorkspaceID, binding.UserID, required, binding.Role)
	}

	return nil
}
