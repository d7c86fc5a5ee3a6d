package session

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitabwire/tenantkit/security"
)

type contextKey string

func (c contextKey) String() string {
	return "tenantkit/session/" + string(c)
}

const (
	ctxKeyConn    = contextKey("boundConnKey")
	ctxKeyBinding = contextKey("bindingKey")
)

// Session variables read by the row level security policies.
const (
	SettingUserID      = "app.current_user_id"
	SettingWorkspaceID = "app.current_workspace_id"
	SettingRole        = "app.current_role"
)

// Binding is the identity projected onto one pinned connection for one request.
// WorkspaceID is uuid.Nil and Role is security.RoleNone for requests outside any workspace.
type Binding struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	Role        security.TenantRole
}

// Scoped reports whether the binding selects a workspace.
func (b Binding) Scoped() bool {
	return b.WorkspaceID != uuid.Nil
}

func (b Binding) settings() (string, string, string) {
	workspace := ""
	if b.Scoped() {
		workspace = b.WorkspaceID.String()
	}
	return b.UserID.String(), workspace, b.Role.String()
}

// Querier is the subset of database/sql shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn is the connection a request was bound to. It is only valid inside Binder.Run.
type Conn struct {
	db      *gorm.DB
	raw     *sql.Conn
	binding Binding
}

// DB returns a gorm session pinned to the bound connection.
func (c *Conn) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

// Querier exposes the bound connection for hand written SQL.
func (c *Conn) Querier() Querier {
	return c.raw
}

func (c *Conn) Binding() Binding {
	return c.binding
}

// ToContext stores the bound connection and its binding on ctx.
func ToContext(ctx context.Context, conn *Conn) context.Context {
	ctx = BindingToContext(ctx, conn.binding)
	return context.WithValue(ctx, ctxKeyConn, conn)
}

// BindingToContext records binding on ctx without a connection.
func BindingToContext(ctx context.Context, binding Binding) context.Context {
	return context.WithValue(ctx, ctxKeyBinding, binding)
}

// ConnFromContext returns the connection bound for this request, or nil.
func ConnFromContext(ctx context.Context) *Conn {
	conn, ok := ctx.Value(ctxKeyConn).(*Conn)
	if !ok {
		return nil
	}
	return conn
}

// BindingFromContext returns the binding in effect for this request.
func BindingFromContext(ctx context.Context) (Binding, bool) {
	binding, ok := ctx.Value(ctxKeyBinding).(Binding)
	return binding, ok
}
