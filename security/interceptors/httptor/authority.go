package httptor

import (
	"context"
	"net/http"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
)

// SessionRunner runs fn on a connection bound to binding. *session.Binder implements it.
type SessionRunner interface {
	Run(ctx context.Context, binding session.Binding, fn func(ctx context.Context, conn *session.Conn) error) error
}

// RequestAuthority authenticates a request, resolves the caller's workspace role and runs
// the handler on a connection bound to the result.
type RequestAuthority struct {
	authenticator security.Authenticator
	resolver      security.MembershipResolver
	sessions      SessionRunner
	tenantHeader  string
}

type AuthorityOption func(*RequestAuthority)

// WithTenantHeader changes the header that selects the workspace.
func WithTenantHeader(name string) AuthorityOption {
	return func(a *RequestAuthority) {
		if name != "" {
			a.tenantHeader = name
		}
	}
}

func NewRequestAuthority(
	authenticator security.Authenticator,
	resolver security.MembershipResolver,
	sessions SessionRunner,
	opts ...AuthorityOption,
) *RequestAuthority {
	a := &RequestAuthority{
		authenticator: authenticator,
		resolver:      resolver,
		sessions:      sessions,
		tenantHeader:  config.DefaultTenantHeader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type routePolicy struct {
	tenantOptional bool
}

// RouteOption declares how a group of routes relates to workspaces.
type RouteOption func(*routePolicy)

// TenantOptional accepts requests without a workspace selector. They are bound with the
// caller's id only.
func TenantOptional() RouteOption {
	return func(p *routePolicy) {
		p.tenantOptional = true
	}
}

// Middleware returns the chi compatible middleware for routes described by opts.
func (a *RequestAuthority) Middleware(opts ...RouteOption) func(http.Handler) http.Handler {
	var policy routePolicy
	for _, opt := range opts {
		opt(&policy)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, principal, err := a.authenticate(r.Context(), r)
			if err != nil {
				WriteError(ctx, w, err)
				return
			}

			binding, err := a.selectWorkspace(ctx, r, principal, policy)
			if err != nil {
				WriteError(ctx, w, err)
				return
			}

			handled := false
			err = a.sessions.Run(ctx, binding, func(boundCtx context.Context, _ *session.Conn) error {
				handled = true
				next.ServeHTTP(w, r.WithContext(boundCtx))
				return nil
			})
			if err != nil && !handled {
				WriteError(ctx, w, err)
			}
		})
	}
}
