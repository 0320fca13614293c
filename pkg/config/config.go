package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/platinummonkey/tome/pkg/orgident"
	"github.com/platinummonkey/tome/pkg/provision"
	"github.com/platinummonkey/tome/pkg/scope"
)

// Config holds all process configuration. It is loaded once at startup and
// treated as immutable afterwards; components receive the pieces they need
// through constructors instead of re-reading the environment.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Org     OrgConfig
	Access  AccessConfig
	Janitor JanitorConfig
	Obs     ObservabilityConfig
}

// ServerConfig holds the health/metrics server settings.
type ServerConfig struct {
	Host            string
	HealthPort      string
	ShutdownTimeout time.Duration
}

// StoreConfig holds relational store and cache settings.
type StoreConfig struct {
	PostgresURL     string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration

	// RedisURL enables the grant cache when set.
	RedisURL      string
	GrantCacheTTL time.Duration
}

// OrgConfig holds the deployment-wide organization policy.
type OrgConfig struct {
	// SingleOrgDomain pins the installation to one team domain. Empty
	// means unrestricted.
	SingleOrgDomain string
	// IDPrefix is spliced into the reserved docs-<n> / o-<n> grammar.
	IDPrefix string
	// PersonalOrgMode gates personal-org creation under a fixed domain.
	PersonalOrgMode provision.CreationMode
}

// AccessConfig holds role-resolution cache settings.
type AccessConfig struct {
	RoleCacheSize int
	RoleCacheTTL  time.Duration
}

// JanitorConfig holds the purge schedule for soft-deleted rows.
type JanitorConfig struct {
	Schedule  string
	Retention time.Duration
}

// ObservabilityConfig holds logging and telemetry settings.
type ObservabilityConfig struct {
	LogLevel string

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// Load reads configuration from TOME_* environment variables and validates
// it.
func Load() (*Config, error) {
	mode, err := provision.ParseCreationMode(getEnv("TOME_PERSONAL_ORG_MODE", "always"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TOME_HOST", "0.0.0.0"),
			HealthPort:      getEnv("TOME_HEALTH_PORT", "9090"),
			ShutdownTimeout: getEnvDuration("TOME_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			PostgresURL:     getEnv("TOME_POSTGRES_URL", ""),
			MaxConns:        getEnvInt("TOME_POSTGRES_MAX_CONNS", 25),
			MinConns:        getEnvInt("TOME_POSTGRES_MIN_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("TOME_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			RedisURL:        getEnv("TOME_REDIS_URL", ""),
			GrantCacheTTL:   getEnvDuration("TOME_GRANT_CACHE_TTL", time.Minute),
		},
		Org: OrgConfig{
			SingleOrgDomain: getEnv("TOME_SINGLE_ORG", ""),
			IDPrefix:        getEnv("TOME_ID_PREFIX", ""),
			PersonalOrgMode: mode,
		},
		Access: AccessConfig{
			RoleCacheSize: getEnvInt("TOME_ROLE_CACHE_SIZE", 4096),
			RoleCacheTTL:  getEnvDuration("TOME_ROLE_CACHE_TTL", time.Minute),
		},
		Janitor: JanitorConfig{
			Schedule:  getEnv("TOME_JANITOR_SCHEDULE", "@hourly"),
			Retention: getEnvDuration("TOME_RETENTION", 30*24*time.Hour),
		},
		Obs: ObservabilityConfig{
			LogLevel:           getEnv("TOME_LOG_LEVEL", "info"),
			OTelEnabled:        getEnvBool("TOME_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("TOME_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("TOME_OTEL_SERVICE_NAME", "tome"),
			OTelServiceVersion: getEnv("TOME_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("TOME_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Policy builds the immutable scope policy components consume.
func (c *Config) Policy() scope.Policy {
	return scope.Policy{
		FixedOrgDomain: c.Org.SingleOrgDomain,
		IDPrefix:       c.Org.IDPrefix,
	}
}

// Validate checks the configuration. A fixed org domain that collides with
// the reserved identifier grammar is fatal here, at startup, so that no
// request ever sees the inconsistency.
func (c *Config) Validate() error {
	if c.Store.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required (TOME_POSTGRES_URL)")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}

	if d := c.Org.SingleOrgDomain; d != "" {
		ref := orgident.Classify(d, c.Org.IDPrefix)
		if ref.Kind != orgident.KindByDomain {
			return fmt.Errorf("misconfigured policy: fixed org domain %q is a reserved identifier (%s)",
				d, ref.Kind)
		}
	}

	if c.Access.RoleCacheSize < 0 {
		return fmt.Errorf("role cache size must not be negative")
	}
	if c.Janitor.Retention <= 0 {
		return fmt.Errorf("retention window must be positive")
	}

	if c.Obs.OTelEnabled && c.Obs.OTelEndpoint == "" {
		return fmt.Errorf("otel endpoint is required when otel is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
