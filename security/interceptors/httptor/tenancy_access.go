package httptor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
)

// selectWorkspace resolves the binding for an authenticated request. A request without a
// workspace selector is only accepted on routes declared tenant optional, and is rejected
// before any connection is touched otherwise.
func (a *RequestAuthority) selectWorkspace(
	ctx context.Context,
	r *http.Request,
	principal *security.Principal,
	policy routePolicy,
) (session.Binding, error) {
	binding := session.Binding{UserID: principal.UserID}

	raw := strings.TrimSpace(r.Header.Get(a.tenantHeader))
	if raw == "" {
		if policy.tenantOptional {
			return binding, nil
		}
		return binding, ErrWorkspaceRequired
	}

	workspaceID, err := uuid.Parse(raw)
	if err != nil {
		return binding, BadRequest("Invalid workspace ID format")
	}

	role, ok, err := a.resolver.Resolve(ctx, principal.UserID, workspaceID)
	if err != nil {
		return binding, err
	}

	if !ok || !role.IsValid() {
		util.Log(ctx).WithFields(map[string]any{
			"workspace_id": workspaceID.String(),
			"user_id":      principal.UserID.String(),
		}).Info("RequestAuthority -- workspace access denied")
		return binding, fmt.Errorf("%w: %s", authorizer.ErrNoTenantAccess, workspaceID)
	}

	binding.WorkspaceID = workspaceID
	binding.Role = role
	return binding, nil
}
