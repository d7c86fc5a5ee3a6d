package tenantkit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/datastores/contacts"
	"github.com/pitabwire/tenantkit/datastores/products"
	"github.com/pitabwire/tenantkit/datastores/workspaces"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/ratelimiter"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
	httpinterceptor "github.com/pitabwire/tenantkit/security/interceptors/http"
)

// Router assembles the HTTP API.
//
// /healthz is public. /workspaces needs an authenticated caller but no workspace selector.
// /contacts and /products need both and run on a connection bound to the selected workspace.
func (s *Service) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpinterceptor.ContextSetupMiddleware(ctx))

	if cfg, ok := s.Config().(config.ConfigurationTraceRequests); ok && cfg.TraceReq() {
		r.Use(httpinterceptor.LoggingMiddleware(cfg.TraceReqLogBody()))
	}

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/healthz", handlers.Health(s.healthCheckers...))

	if s.authenticator == nil || s.binder == nil {
		s.Log(ctx).Warn("authentication or datastore not configured, only /healthz is served")
		return r
	}

	var authorityOpts []httptor.AuthorityOption
	var pagination config.ConfigurationPagination = &config.ConfigurationDefault{}
	if cfg, ok := s.Config().(config.ConfigurationTenancy); ok {
		authorityOpts = append(authorityOpts, httptor.WithTenantHeader(cfg.TenantHeader()))
	}
	if cfg, ok := s.Config().(config.ConfigurationPagination); ok {
		pagination = cfg
	}

	authority := httptor.NewRequestAuthority(s.authenticator, s.resolver, s.binder, authorityOpts...)
	limit := ratelimiter.Middleware(s.limiter)

	r.Group(func(r chi.Router) {
		r.Use(ratelimiter.AddressMiddleware(s.addressLimiter))

		r.Group(func(r chi.Router) {
			r.Use(authority.Middleware(httptor.TenantOptional()), limit)
			r.Route("/workspaces", workspaces.NewHandler(workspaces.NewRepository()).Routes)
		})

		r.Group(func(r chi.Router) {
			r.Use(authority.Middleware(), limit)
			r.Route("/contacts", contacts.NewHandler(contacts.NewRepository(s.codes), pagination).Routes)
			r.Route("/products", products.NewHandler(products.NewRepository(s.codes), pagination).Routes)
		})
	})

	return r
}
