package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type contextKey string

func (c contextKey) String() string {
	return "tenantkit/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultUnbindTimeout      = 5 * time.Second
	DefaultTenantHeader       = "X-Workspace-ID"
)

// ToContext adds service configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts service configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests        bool `envDefault:"false" env:"TRACE_REQUESTS"          yaml:"trace_requests"`
	TraceRequestsLogBody bool `envDefault:"false" env:"TRACE_REQUESTS_LOG_BODY" yaml:"trace_requests_log_body"`

	ServiceName        string `envDefault:"tenantkit" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""          env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:""          env:"SERVICE_VERSION"     yaml:"service_version"`

	HTTPServerPort string `envDefault:":8080" env:"HTTP_PORT" yaml:"http_server_port"`

	JWTSecret string        `env:"JWT_SECRET" yaml:"jwt_secret"`
	JWTTTL    time.Duration `env:"JWT_TTL"    yaml:"jwt_ttl"    envDefault:"24h"`

	TenantHeaderName     string        `env:"TENANT_HEADER"          yaml:"tenant_header"          envDefault:"X-Workspace-ID"`
	SessionUnbindTimeout time.Duration `env:"SESSION_UNBIND_TIMEOUT" yaml:"session_unbind_timeout" envDefault:"5s"`

	RateLimitRequestsPerSecond int `envDefault:"100" env:"RATE_LIMIT_REQUESTS_PER_SECOND" yaml:"rate_limit_requests_per_second"`
	RateLimitBurst             int `envDefault:"200" env:"RATE_LIMIT_BURST"               yaml:"rate_limit_burst"`
	RateLimitAddressShare      int `envDefault:"10"  env:"RATE_LIMIT_ADDRESS_SHARE"       yaml:"rate_limit_address_share"`

	PaginationDefaultLimit int `envDefault:"10"  env:"PAGINATION_DEFAULT_LIMIT" yaml:"pagination_default_limit"`
	PaginationMaxLimit     int `envDefault:"100" env:"PAGINATION_MAX_LIMIT"     yaml:"pagination_max_limit"`

	DatabasePrimaryURL             []string `env:"DATABASE_URL"             yaml:"database_url"`
	DatabaseReplicaURL             []string `env:"REPLICA_DATABASE_URL"     yaml:"replica_database_url"`
	DatabaseMigrate                bool     `env:"DO_MIGRATION"             yaml:"do_migration"             envDefault:"false"`
	DatabaseMigrationPath          string   `env:"MIGRATION_PATH"           yaml:"migration_path"           envDefault:"./migrations/0001"`
	DatabaseSkipDefaultTransaction bool     `env:"SKIP_DEFAULT_TRANSACTION" yaml:"skip_default_transaction" envDefault:"true"`
	DatabasePreferSimpleProtocol   bool     `env:"PREFER_SIMPLE_PROTOCOL"   yaml:"prefer_simple_protocol"   envDefault:"true"`

	DatabaseMaxIdleConnections           int `envDefault:"2"   env:"DATABASE_MAX_IDLE_CONNECTIONS"                yaml:"database_max_idle_connections"`
	DatabaseMaxOpenConnections           int `envDefault:"5"   env:"DATABASE_MAX_OPEN_CONNECTIONS"                yaml:"database_max_open_connections"`
	DatabaseMaxConnectionLifeTimeSeconds int `envDefault:"300" env:"DATABASE_MAX_CONNECTION_LIFE_TIME_IN_SECONDS" yaml:"database_max_connection_life_time_seconds"`

	DatabaseTraceQueries          bool   `envDefault:"false" env:"DATABASE_LOG_QUERIES"          yaml:"database_log_queries"`
	DatabaseSlowQueryLogThreshold string `envDefault:"200ms" env:"DATABASE_SLOW_QUERY_THRESHOLD" yaml:"database_slow_query_threshold"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	return c.ServiceVersion
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
	TraceReqLogBody() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

func (c *ConfigurationDefault) TraceReqLogBody() bool {
	return c.TraceRequestsLogBody
}

type ConfigurationPorts interface {
	HTTPPort() string
}

var _ ConfigurationPorts = new(ConfigurationDefault)

func (c *ConfigurationDefault) HTTPPort() string {
	if i, err := strconv.Atoi(c.HTTPServerPort); err == nil && i > 0 {
		return fmt.Sprintf(":%s", strings.TrimSpace(c.HTTPServerPort))
	}

	if strings.HasPrefix(c.HTTPServerPort, ":") || strings.Contains(c.HTTPServerPort, ":") {
		return c.HTTPServerPort
	}

	return ":8080"
}

// ConfigurationJWT exposes the shared secret used to verify bearer tokens.
type ConfigurationJWT interface {
	GetJWTSecret() []byte
	GetJWTTTL() time.Duration
}

var _ ConfigurationJWT = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetJWTSecret() []byte {
	return []byte(c.JWTSecret)
}

func (c *ConfigurationDefault) GetJWTTTL() time.Duration {
	if c.JWTTTL <= 0 {
		return 24 * time.Hour //nolint:mnd // one day
	}
	return c.JWTTTL
}

// ConfigurationTenancy controls how requests select and bind a workspace.
type ConfigurationTenancy interface {
	TenantHeader() string
	UnbindTimeout() time.Duration
}

var _ ConfigurationTenancy = new(ConfigurationDefault)

func (c *ConfigurationDefault) TenantHeader() string {
	if strings.TrimSpace(c.TenantHeaderName) == "" {
		return DefaultTenantHeader
	}
	return c.TenantHeaderName
}

func (c *ConfigurationDefault) UnbindTimeout() time.Duration {
	if c.SessionUnbindTimeout <= 0 {
		return DefaultUnbindTimeout
	}
	return c.SessionUnbindTimeout
}

type ConfigurationRateLimit interface {
	RateLimitRPS() int
	RateLimitBurstSize() int
	// RateLimitAddressFactor is how many callers' worth of requests one client address may send.
	RateLimitAddressFactor() int
}

var _ ConfigurationRateLimit = new(ConfigurationDefault)

func (c *ConfigurationDefault) RateLimitRPS() int {
	return c.RateLimitRequestsPerSecond
}

func (c *ConfigurationDefault) RateLimitBurstSize() int {
	return c.RateLimitBurst
}

func (c *ConfigurationDefault) RateLimitAddressFactor() int {
	return c.RateLimitAddressShare
}

type ConfigurationPagination interface {
	DefaultPageLimit() int
	MaxPageLimit() int
}

var _ ConfigurationPagination = new(ConfigurationDefault)

func (c *ConfigurationDefault) DefaultPageLimit() int {
	if c.PaginationDefaultLimit <= 0 {
		return 10 //nolint:mnd // page size used by list endpoints
	}
	return c.PaginationDefaultLimit
}

func (c *ConfigurationDefault) MaxPageLimit() int {
	if c.PaginationMaxLimit < c.DefaultPageLimit() {
		return c.DefaultPageLimit()
	}
	return c.PaginationMaxLimit
}

type ConfigurationDatabase interface {
	GetDatabasePrimaryHostURL() []string
	GetDatabaseReplicaHostURL() []string
	DoDatabaseMigrate() bool
	SkipDefaultTransaction() bool
	PreferSimpleProtocol() bool
	GetMaxIdleConnections() int
	GetMaxOpenConnections() int
	GetMaxConnectionLifeTimeInSeconds() time.Duration

	GetDatabaseMigrationPath() string
}

type ConfigurationDatabaseTracing interface {
	CanDatabaseTraceQueries() bool
	GetDatabaseSlowQueryLogThreshold() time.Duration
}

var _ ConfigurationDatabase = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatabasePrimaryHostURL() []string {
	return c.DatabasePrimaryURL
}

func (c *ConfigurationDefault) GetDatabaseReplicaHostURL() []string {
	return c.DatabaseReplicaURL
}

func (c *ConfigurationDefault) DoDatabaseMigrate() bool {
	stdArgs := os.Args[1:]
	return c.DatabaseMigrate || (len(stdArgs) > 0 && stdArgs[0] == "migrate")
}

func (c *ConfigurationDefault) PreferSimpleProtocol() bool {
	return c.DatabasePreferSimpleProtocol
}

func (c *ConfigurationDefault) SkipDefaultTransaction() bool {
	return c.DatabaseSkipDefaultTransaction
}

func (c *ConfigurationDefault) GetMaxIdleConnections() int {
	return c.DatabaseMaxIdleConnections
}

func (c *ConfigurationDefault) GetMaxOpenConnections() int {
	return c.DatabaseMaxOpenConnections
}

func (c *ConfigurationDefault) GetMaxConnectionLifeTimeInSeconds() time.Duration {
	return time.Duration(c.DatabaseMaxConnectionLifeTimeSeconds) * time.Second
}

func (c *ConfigurationDefault) GetDatabaseMigrationPath() string {
	return c.DatabaseMigrationPath
}

var _ ConfigurationDatabaseTracing = new(ConfigurationDefault)

func (c *ConfigurationDefault) CanDatabaseTraceQueries() bool {
	return c.DatabaseTraceQueries
}
func (c *ConfigurationDefault) GetDatabaseSlowQueryLogThreshold() time.Duration {
	threshold, err := time.ParseDuration(c.DatabaseSlowQueryLogThreshold)
	if err != nil {
		threshold = DefaultSlowQueryThreshold
	}
	return threshold
}
