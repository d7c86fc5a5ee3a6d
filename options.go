package tenantkit

import (
	"context"
	"net/http"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/datastore/codegen"
	"github.com/pitabwire/tenantkit/datastore/pool"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/ratelimiter"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
	"github.com/pitabwire/tenantkit/security/tokens"
)

// WithName specifies the name the service will utilize.
func WithName(name string) Option {
	return func(_ context.Context, s *Service) {
		s.name = name
	}
}

// WithVersion specifies the version the service will utilize.
func WithVersion(version string) Option {
	return func(_ context.Context, s *Service) {
		s.version = version
	}
}

// WithEnvironment specifies the environment the service will utilize.
func WithEnvironment(environment string) Option {
	return func(_ context.Context, s *Service) {
		s.environment = environment
	}
}

// WithConfig sets or overrides the configuration object of the service and reapplies the
// options derived from it.
func WithConfig(cfg any) Option {
	return func(ctx context.Context, s *Service) {
		s.configuration = cfg

		if serviceCfg, ok := cfg.(config.ConfigurationService); ok {
			if serviceCfg.Name() != "" {
				WithName(serviceCfg.Name())(ctx, s)
			}
			if serviceCfg.Environment() != "" {
				WithEnvironment(serviceCfg.Environment())(ctx, s)
			}
			if serviceCfg.Version() != "" {
				WithVersion(serviceCfg.Version())(ctx, s)
			}
		}

		WithLogger()(ctx, s)
	}
}

// WithLogger builds the service logger from the logging configuration, if any, plus opts.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, s *Service) {
		if cfg, ok := s.Config().(config.ConfigurationLogLevel); ok {
			if logLevel, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
				opts = append(opts, util.WithLogLevel(logLevel))
			}
			opts = append(opts,
				util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
				util.WithLogNoColor(!cfg.LoggingColored()))
			if cfg.LoggingShowStackTrace() {
				opts = append(opts, util.WithLogStackTrace())
			}
		}

		s.logger = util.NewLogger(ctx, opts...).WithField("service", s.Name())
	}
}

// WithDatastore opens the database pool described by the configuration plus opts, and
// wires the session binder, membership resolver and health check on top of it.
func WithDatastore(opts ...pool.Option) Option {
	return func(ctx context.Context, s *Service) {
		if cfg, ok := s.Config().(config.ConfigurationDatabase); ok {
			opts = append([]pool.Option{pool.WithConfig(cfg)}, opts...)
		}

		dbPool := pool.NewPool(ctx)
		if err := dbPool.AddConnection(ctx, opts...); err != nil {
			s.Log(ctx).WithError(err).Fatal("error initiating datastore connection")
		}

		WithPool(dbPool)(ctx, s)
		s.AddCleanupMethod(dbPool.Close)
	}
}

// WithPool wires an already opened pool into the service.
func WithPool(dbPool pool.Pool) Option {
	return func(_ context.Context, s *Service) {
		s.pool = dbPool

		var binderOpts []session.BinderOption
		if cfg, ok := s.Config().(config.ConfigurationTenancy); ok {
			binderOpts = append(binderOpts, session.WithUnbindTimeout(cfg.UnbindTimeout()))
		}
		s.binder = session.NewBinder(dbPool, binderOpts...)

		if s.resolver == nil {
			s.resolver = authorizer.NewTenantAccessResolver(dbPool)
		}

		s.AddHealthCheck(handlers.CheckerFunc(dbPool.Ping))
	}
}

// WithMembershipResolver overrides how a caller's workspace role is looked up.
func WithMembershipResolver(resolver security.MembershipResolver) Option {
	return func(_ context.Context, s *Service) {
		s.resolver = resolver
	}
}

// WithTokenCodec sets the bearer token authenticator. Without codec the configured
// JWT secret is used.
func WithTokenCodec(codec security.Authenticator) Option {
	return func(ctx context.Context, s *Service) {
		if codec != nil {
			s.authenticator = codec
			return
		}

		cfg, ok := s.Config().(config.ConfigurationJWT)
		if !ok {
			s.Log(ctx).Warn("configuration object not of type : ConfigurationJWT")
			return
		}

		jwtCodec, err := tokens.NewCodec(cfg.GetJWTSecret())
		if err != nil {
			s.Log(ctx).WithError(err).Fatal("could not set up the token codec")
		}
		s.authenticator = jwtCodec
	}
}

// WithRateLimiter enables rate limiting per client address and per caller. A nil cfg is
// read from the service configuration.
func WithRateLimiter(cfg *ratelimiter.Config) Option {
	return func(_ context.Context, s *Service) {
		if cfg == nil {
			cfg = ratelimiter.DefaultConfig()
			if rateCfg, ok := s.Config().(config.ConfigurationRateLimit); ok {
				cfg = ratelimiter.ConfigFrom(rateCfg)
			}
		}

		for _, previous := range []*ratelimiter.KeyedLimiter{s.limiter, s.addressLimiter} {
			if previous != nil {
				_ = previous.Close()
			}
		}

		callers := ratelimiter.NewKeyedLimiter(cfg)
		addresses := ratelimiter.NewKeyedLimiter(cfg.ForAddresses())
		s.limiter, s.addressLimiter = callers, addresses
		s.AddCleanupMethod(func(_ context.Context) {
			_ = callers.Close()
			_ = addresses.Close()
		})
	}
}

// WithCodeGenerator replaces the generator used for contact and product codes.
func WithCodeGenerator(codes *codegen.Generator) Option {
	return func(_ context.Context, s *Service) {
		if codes != nil {
			s.codes = codes
		}
	}
}

// WithHTTPHandler replaces the default router with h.
func WithHTTPHandler(h http.Handler) Option {
	return func(_ context.Context, s *Service) {
		s.handler = h
	}
}
