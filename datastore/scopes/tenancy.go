package scopes

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/tenantkit/datastore/session"
)

// WorkspacePartition narrows a gorm query to the workspace bound for this request.
//
// Behavior:
//   - If no binding is in context, or the binding is outside any workspace: returns the db unchanged
//     (row level security on the connection still applies)
//   - Otherwise filters on <table>.workspace_id so the planner can use the tenant index even
//     when the policy predicate is not inlined
func WorkspacePartition(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		binding, ok := session.BindingFromContext(ctx)
		if !ok || !binding.Scoped() {
			return db
		}

		table := db.Statement.Table
		if table != "" {
			table += "."
		}

		return db.Where(fmt.Sprintf("%sworkspace_id = ?", table), binding.WorkspaceID.String())
	}
}
