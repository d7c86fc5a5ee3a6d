package pool

import (
	"time"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/data"
)

// Option configures database connection settings.
type Option func(*Options)

// Connection is a single database endpoint added to the pool.
type Connection struct {
	DSN      string
	ReadOnly bool
}

// Options holds Datastore connection configuration.
type Options struct {
	Connections []Connection

	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration

	PreferSimpleProtocol   bool
	SkipDefaultTransaction bool

	TraceConfig config.ConfigurationDatabaseTracing
}

// WithConnection adds a DSN to the pool, as primary or as read replica.
func WithConnection(dsn string, readOnly bool) Option {
	return func(o *Options) {
		o.Connections = append(o.Connections, Connection{DSN: dsn, ReadOnly: readOnly})
	}
}

// WithMaxOpen returns an Option to configure the database connection max open connections.
func WithMaxOpen(maxOpen int) Option {
	return func(o *Options) {
		o.MaxOpen = maxOpen
	}
}

// WithMaxIdle returns an Option to configure the database connection max idle connections.
func WithMaxIdle(maxIdle int) Option {
	return func(o *Options) {
		o.MaxIdle = maxIdle
	}
}

// WithMaxLifetime returns an Option to configure the database connection max lifetime.
func WithMaxLifetime(maxLifetime time.Duration) Option {
	return func(o *Options) {
		o.MaxLifetime = maxLifetime
	}
}

// WithPreferSimpleProtocol returns an Option to configure the database connection prefer simple protocol.
func WithPreferSimpleProtocol(preferSimpleProtocol bool) Option {
	return func(o *Options) {
		o.PreferSimpleProtocol = preferSimpleProtocol
	}
}

// WithSkipDefaultTransaction returns an Option to configure the database connection skip default transaction.
func WithSkipDefaultTransaction(skipDefaultTransaction bool) Option {
	return func(o *Options) {
		o.SkipDefaultTransaction = skipDefaultTransaction
	}
}

// WithTraceConfig returns an Option to configure the database connection trace config.
func WithTraceConfig(traceConfig config.ConfigurationDatabaseTracing) Option {
	return func(o *Options) {
		o.TraceConfig = traceConfig
	}
}

// WithConfig applies every database setting from cfg, including its connection strings.
func WithConfig(cfg config.ConfigurationDatabase) Option {
	return func(o *Options) {
		for _, entry := range cfg.GetDatabasePrimaryHostURL() {
			for _, dsn := range data.DSN(entry).ToArray() {
				o.Connections = append(o.Connections, Connection{DSN: dsn.String()})
			}
		}
		for _, entry := range cfg.GetDatabaseReplicaHostURL() {
			for _, dsn := range data.DSN(entry).ToArray() {
				o.Connections = append(o.Connections, Connection{DSN: dsn.String(), ReadOnly: true})
			}
		}
		o.MaxOpen = cfg.GetMaxOpenConnections()
		o.MaxIdle = cfg.GetMaxIdleConnections()
		o.MaxLifetime = cfg.GetMaxConnectionLifeTimeInSeconds()
		o.PreferSimpleProtocol = cfg.PreferSimpleProtocol()
		o.SkipDefaultTransaction = cfg.SkipDefaultTransaction()

		if tracing, ok := cfg.(config.ConfigurationDatabaseTracing); ok {
			o.TraceConfig = tracing
		}
	}
}
