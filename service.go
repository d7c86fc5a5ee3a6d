package tenantkit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/datastore/codegen"
	"github.com/pitabwire/tenantkit/datastore/pool"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/ratelimiter"
	"github.com/pitabwire/tenantkit/security"
)

type contextKey string

func (c contextKey) String() string {
	return "tenantkit/" + string(c)
}

const (
	ctxKeyService = contextKey("serviceKey")

	defaultHTTPReadTimeoutSeconds  = 15
	defaultHTTPWriteTimeoutSeconds = 15
	defaultHTTPIdleTimeoutSeconds  = 60
	defaultShutdownTimeoutSeconds  = 10
)

// Service holds together the components of the API for the lifetime of the process.
// It is pushed into and pulled from contexts so handlers and options can reach it.
type Service struct {
	name          string
	version       string
	environment   string
	configuration any
	logger        *util.LogEntry

	pool           pool.Pool
	binder         *session.Binder
	authenticator  security.Authenticator
	resolver       security.MembershipResolver
	limiter        *ratelimiter.KeyedLimiter
	addressLimiter *ratelimiter.KeyedLimiter
	codes          *codegen.Generator

	handler        http.Handler
	healthCheckers []handlers.Checker

	cancelFunc context.CancelFunc
	cleanup    func(ctx context.Context)
	stopMutex  sync.Mutex
}

type Option func(ctx context.Context, service *Service)

// NewService creates a Service configured from the environment and then from opts.
// The returned context is cancelled on SIGINT, SIGTERM, SIGHUP or SIGQUIT.
func NewService(ctx context.Context, opts ...Option) (context.Context, *Service) {
	ctx, signalCancelFunc := signal.NotifyContext(ctx,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	service := &Service{
		name:       "tenantkit",
		cancelFunc: signalCancelFunc,
		logger:     util.Log(ctx),
		codes:      codegen.NewGenerator(),
	}

	if defaultCfg, err := config.FromEnv[config.ConfigurationDefault](); err == nil {
		opts = append([]Option{WithConfig(&defaultCfg)}, opts...)
	} else {
		service.logger.WithError(err).Warn("could not read configuration from environment")
	}

	service.Init(ctx, opts...)

	ctx = ToContext(ctx, service)
	ctx = config.ToContext(ctx, service.Config())
	ctx = util.ContextWithLogger(ctx, service.logger)
	return ctx, service
}

// ToContext pushes a service instance into the supplied context.
func ToContext(ctx context.Context, service *Service) context.Context {
	return context.WithValue(ctx, ctxKeyService, service)
}

// FromContext obtains the service instance propagated through ctx.
func FromContext(ctx context.Context) *Service {
	service, ok := ctx.Value(ctxKeyService).(*Service)
	if !ok {
		return nil
	}
	return service
}

// Init applies opts to the service.
func (s *Service) Init(ctx context.Context, opts ...Option) {
	for _, opt := range opts {
		opt(ctx, s)
	}
}

func (s *Service) Name() string {
	return s.name
}

func (s *Service) Version() string {
	return s.version
}

func (s *Service) Environment() string {
	return s.environment
}

func (s *Service) Config() any {
	return s.configuration
}

func (s *Service) Pool() pool.Pool {
	return s.pool
}

func (s *Service) Log(ctx context.Context) *util.LogEntry {
	return s.logger.WithContext(ctx)
}

// H returns the handler the service serves, building the default router on first use.
func (s *Service) H(ctx context.Context) http.Handler {
	if s.handler == nil {
		s.handler = s.Router(ctx)
	}
	return s.handler
}

// AddCleanupMethod registers f to run when the service stops. Later registrations run first.
func (s *Service) AddCleanupMethod(f func(ctx context.Context)) {
	s.stopMutex.Lock()
	defer s.stopMutex.Unlock()

	if s.cleanup == nil {
		s.cleanup = f
		return
	}

	old := s.cleanup
	s.cleanup = func(ctx context.Context) { f(ctx); old(ctx) }
}

// AddHealthCheck adds a checker consulted by /healthz.
func (s *Service) AddHealthCheck(checker handlers.Checker) {
	s.healthCheckers = append(s.healthCheckers, checker)
}

// Run serves HTTP on address until ctx is cancelled, then drains in flight requests.
// An empty address falls back to the configured HTTP port.
func (s *Service) Run(ctx context.Context, address string) error {
	if address == "" {
		address = ":8080"
		if cfg, ok := s.Config().(config.ConfigurationPorts); ok {
			address = cfg.HTTPPort()
		}
	}

	server := &http.Server{
		Addr:    address,
		Handler: s.H(ctx),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadTimeout:  defaultHTTPReadTimeoutSeconds * time.Second,
		WriteTimeout: defaultHTTPWriteTimeoutSeconds * time.Second,
		IdleTimeout:  defaultHTTPIdleTimeoutSeconds * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.Log(ctx).WithField("address", address).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), defaultShutdownTimeoutSeconds*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	s.Stop(ctx)
	if err != nil {
		s.Log(ctx).WithError(err).Error("system exit in error")
	}
	return err
}

// Stop cancels the service context and runs the cleanup methods once.
func (s *Service) Stop(ctx context.Context) {
	if !s.stopMutex.TryLock() {
		return
	}
	defer s.stopMutex.Unlock()

	s.Log(ctx).Info("service stopping")

	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	if s.cleanup != nil {
		cleanup := s.cleanup
		s.cleanup = nil
		cleanup(context.WithoutCancel(ctx))
	}
}
