package authorizer_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
)

func TestRequire(t *testing.T) {
	userID := uuid.New()
	workspaceID := uuid.New()

	bound := func(role security.TenantRole) context.Context {
		return session.BindingToContext(context.Background(), session.Binding{
			UserID:      userID,
			WorkspaceID: workspaceID,
			Role:        role,
		})
	}

	testCases := []struct {
		name     string
		ctx      context.Context
		required security.TenantRole
		wantErr  error
	}{
		{name: "no binding", ctx: context.Background(), required: security.RoleViewer, wantErr: authorizer.ErrInvalidSubject},
		{
			name:     "unscoped",
			ctx:      session.BindingToContext(context.Background(), session.Binding{UserID: userID}),
			required: security.RoleViewer,
			wantErr:  authorizer.ErrInvalidObject,
		},
		{name: "viewer reads", ctx: bound(security.RoleViewer), required: security.RoleViewer},
		{name: "viewer writes", ctx: bound(security.RoleViewer), required: security.RoleMember, wantErr: authorizer.ErrPermissionDenied},
		{name: "member writes", ctx: bound(security.RoleMember), required: security.RoleMember},
		{name: "member deletes", ctx: bound(security.RoleMember), required: security.RoleAdmin, wantErr: authorizer.ErrPermissionDenied},
		{name: "admin deletes", ctx: bound(security.RoleAdmin), required: security.RoleAdmin},
		{name: "no role", ctx: bound(security.RoleNone), required: security.RoleViewer, wantErr: authorizer.ErrPermissionDenied},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorizer.Require(tc.ctx, tc.required)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
