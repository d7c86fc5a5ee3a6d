package authorizer

import (
	"context"

	"github.com/google/uuid"
	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore/pool"
	"github.com/pitabwire/tenantkit/security"
)

const membershipQuery = `SELECT role FROM workspace_users WHERE workspace_id = ? AND user_id = ?`

// TenantAccessResolver looks up a caller's role in a workspace. The membership table is not
// row level secured, so the lookup runs on an unbound connection. Results are never cached.
type TenantAccessResolver struct {
	pool pool.Pool
}

// NewTenantAccessResolver creates a resolver reading workspace_users through p.
func NewTenantAccessResolver(p pool.Pool) *TenantAccessResolver {
	return &TenantAccessResolver{pool: p}
}

var _ security.MembershipResolver = (*TenantAccessResolver)(nil)

// Resolve returns the role userID holds in workspaceID and whether a membership exists at all.
func (r *TenantAccessResolver) Resolve(
	ctx context.Context,
	userID, workspaceID uuid.UUID,
) (security.TenantRole, bool, error) {
	db := r.pool.DB(ctx, false)
	if db == nil {
		return security.RoleNone, false, &MembershipLookupError{
			WorkspaceID: workspaceID,
			Cause:       pool.ErrNoWritableDatabase,
		}
	}

	var role security.TenantRole
	err := db.Raw(membershipQuery, workspaceID.String(), userID.String()).Row().Scan(&role)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			util.Log(ctx).WithFields(map[string]any{
				"workspace_id": workspaceID.String(),
				"user_id":      userID.String(),
			}).Debug("no workspace membership")
			return security.RoleNone, false, nil
		}
		return security.RoleNone, false, &MembershipLookupError{WorkspaceID: workspaceID, Cause: err}
	}

	return role, true, nil
}
