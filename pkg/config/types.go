// Package config provides configuration loading for the A2A runtime.
//
// Configuration is YAML-first: server listen addresses, the task store
// backend, broker/push tuning and auth are all declared in one file and
// loaded through Loader, which supports hot reload from file, consul,
// etcd or zookeeper.
//
// Example:
//
//	server:
//	  http_addr: ":8080"
//	  ws_addr: ":8081"
//	  agent_card: ./agent-card.yaml
//
//	store:
//	  dialect: postgres
//	  dsn: ${DATABASE_URL}
//
//	broker:
//	  buffer_size: 32
//	  gc_interval: 30s
//
//	push:
//	  max_attempts: 5
//	  base_delay: 1s
//	  max_delay: 60s
//
//	auth:
//	  enabled: true
//	  jwks_url: https://auth.example.com/.well-known/jwks.json
//	  issuer: https://auth.example.com
//	  audience: a2arun
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Broker  BrokerConfig  `yaml:"broker,omitempty"`
	Push    PushConfig    `yaml:"push,omitempty"`
	Auth    AuthConfig    `yaml:"auth,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// ServerConfig configures the listening transports and agent discovery.
type ServerConfig struct {
	// HTTPAddr is the listen address for the JSON-RPC/HTTP transport.
	// Default: ":8080"
	HTTPAddr string `yaml:"http_addr,omitempty"`

	// WSAddr is the listen address for the streaming WebSocket transport.
	// Default: ":8081"
	WSAddr string `yaml:"ws_addr,omitempty"`

	// AgentCardPath points at the YAML agent card definition served from
	// /.well-known/agent-card.json.
	AgentCardPath string `yaml:"agent_card,omitempty"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to drain.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// StoreDialect identifies which SQL dialect (or the in-memory backend)
// the task store uses.
type StoreDialect string

const (
	StoreDialectMemory   StoreDialect = "memory"
	StoreDialectPostgres StoreDialect = "postgres"
	StoreDialectMySQL    StoreDialect = "mysql"
	StoreDialectSQLite   StoreDialect = "sqlite"
)

// StoreConfig configures the task store backend.
type StoreConfig struct {
	// Dialect selects the backend. Default: "memory".
	Dialect StoreDialect `yaml:"dialect,omitempty"`

	// DSN is the driver-specific data source name. Required for every
	// dialect other than memory.
	DSN string `yaml:"dsn,omitempty"`

	// MaxHistoryLength is read from the config file, but neither store
	// uses it: CreateTask/UpdateTaskStatus keep every history entry.
	MaxHistoryLength int `yaml:"max_history_length,omitempty"`
}

// BrokerConfig tunes the in-process event broker.
type BrokerConfig struct {
	// BufferSize is the channel capacity of each subscription. Default: 32.
	BufferSize int `yaml:"buffer_size,omitempty"`

	// GCInterval is how often idle subscriber sets are swept. Default: 30s.
	GCInterval time.Duration `yaml:"gc_interval,omitempty"`
}

// PushConfig tunes push-notification webhook delivery retries.
type PushConfig struct {
	// MaxAttempts is the total number of delivery attempts. Default: 5.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// BaseDelay is the delay before the first retry. Default: 1s.
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`

	// MaxDelay caps the exponential backoff. Default: 60s.
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`
}

// AuthConfig configures JWT-based authentication for the HTTP and
// WebSocket transports. Disabled by default.
type AuthConfig struct {
	// Enabled controls whether bearer tokens are required.
	Enabled bool `yaml:"enabled,omitempty"`

	// JWKSURL is the JSON Web Key Set endpoint used to verify tokens.
	JWKSURL string `yaml:"jwks_url,omitempty"`

	// Issuer is the expected token issuer (iss claim).
	Issuer string `yaml:"issuer,omitempty"`

	// Audience is the expected token audience (aud claim).
	Audience string `yaml:"audience,omitempty"`
}

// TracingConfig configures OpenTelemetry span export. Disabled by default.
type TracingConfig struct {
	// Enabled turns on the stdout span exporter.
	Enabled bool `yaml:"enabled,omitempty"`

	// ServiceName tags every span's resource. Default: "a2arun".
	ServiceName string `yaml:"service_name,omitempty"`

	// SamplingRate is the fraction of traces sampled, in [0,1]. A
	// value <= 0 samples everything.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
}

// LoggingConfig configures process-wide structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level,omitempty"`

	// Format defaults to "text". The server does not read it; log output
	// is configured by the CLI's --log-format flag.
	Format string `yaml:"format,omitempty"`
}

// SetDefaults fills in zero-valued fields with their documented defaults.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.WSAddr == "" {
		c.Server.WSAddr = ":8081"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Store.Dialect == "" {
		c.Store.Dialect = StoreDialectMemory
	}
	if c.Broker.BufferSize == 0 {
		c.Broker.BufferSize = 32
	}
	if c.Broker.GCInterval == 0 {
		c.Broker.GCInterval = 30 * time.Second
	}
	if c.Push.MaxAttempts == 0 {
		c.Push.MaxAttempts = 5
	}
	if c.Push.BaseDelay == 0 {
		c.Push.BaseDelay = time.Second
	}
	if c.Push.MaxDelay == 0 {
		c.Push.MaxDelay = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "a2arun"
	}
}

// Validate checks cross-field invariants that defaults alone can't fix.
func (c *Config) Validate() error {
	switch c.Store.Dialect {
	case StoreDialectMemory:
	case StoreDialectPostgres, StoreDialectMySQL, StoreDialectSQLite:
		if c.Store.DSN == "" {
			return errDialectRequiresDSN(c.Store.Dialect)
		}
	default:
		return errUnknownDialect(c.Store.Dialect)
	}

	if c.Auth.Enabled {
		if c.Auth.JWKSURL == "" {
			return errAuthField("jwks_url")
		}
		if c.Auth.Issuer == "" {
			return errAuthField("issuer")
		}
	}

	return nil
}
