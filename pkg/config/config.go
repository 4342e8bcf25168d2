// Package config loads turnkernel configuration from the environment, with
// an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/governance"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds kernel configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Store    StoreConfig    `yaml:"store"`
	Envelope EnvelopeConfig `yaml:"envelope"`
	Limits   LimitsConfig   `yaml:"limits"`
	Identity IdentityConfig `yaml:"identity"`
	OTel     OTelConfig     `yaml:"otel"`

	Resume     resume.Policy     `yaml:"resume"`
	Governance governance.Policy `yaml:"governance"`
}

// StoreConfig selects the thread-state backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	DatabaseURL   string        `yaml:"database_url"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

// EnvelopeConfig holds the default budget caps stamped on each turn.
type EnvelopeConfig struct {
	MaxGuardFailures  int `yaml:"max_guard_failures"`
	MaxDiagnostics    int `yaml:"max_diagnostics"`
	MaxOutcomeEntries int `yaml:"max_outcome_entries"`
}

// LimitsConfig is the per-tenant turn admission rate feeding the quota domain.
type LimitsConfig struct {
	TurnsPerSecond float64 `yaml:"turns_per_second"`
	Burst          int     `yaml:"burst"`
}

// IdentityConfig configures text-session token verification.
type IdentityConfig struct {
	SigningSecret string `yaml:"signing_secret"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// OTelConfig configures tracing and metrics export.
type OTelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	def := contracts.DefaultEnvelope("", 0)
	return &Config{
		LogLevel: envOr("TURNKERNEL_LOG_LEVEL", "INFO"),
		Store: StoreConfig{
			Backend:       envOr("TURNKERNEL_STORE", BackendMemory),
			DatabaseURL:   envOr("DATABASE_URL", "file:turnkernel.db"),
			RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       envInt("REDIS_DB", 0),
			RedisTTL:      envDuration("TURNKERNEL_THREAD_TTL", 24*time.Hour),
		},
		Envelope: EnvelopeConfig{
			MaxGuardFailures:  envInt("TURNKERNEL_MAX_GUARD_FAILURES", def.MaxGuardFailures),
			MaxDiagnostics:    envInt("TURNKERNEL_MAX_DIAGNOSTICS", def.MaxDiagnostics),
			MaxOutcomeEntries: envInt("TURNKERNEL_MAX_OUTCOME_ENTRIES", def.MaxOutcomeEntries),
		},
		Limits: LimitsConfig{
			TurnsPerSecond: envFloat("TURNKERNEL_TURNS_PER_SECOND", 5),
			Burst:          envInt("TURNKERNEL_TURN_BURST", 10),
		},
		Identity: IdentityConfig{
			SigningSecret: os.Getenv("TURNKERNEL_JWT_SECRET"),
			Issuer:        os.Getenv("TURNKERNEL_JWT_ISSUER"),
			Audience:      os.Getenv("TURNKERNEL_JWT_AUDIENCE"),
		},
		OTel: OTelConfig{
			Enabled:     os.Getenv("OTEL_ENABLED") == "true",
			Endpoint:    envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
			ServiceName: envOr("OTEL_SERVICE_NAME", "turnkernel"),
		},
		Resume:     resume.DefaultPolicy(),
		Governance: governance.DefaultPolicy(),
	}
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path. Keys absent from the file keep their environment value.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	e := c.Envelope
	if e.MaxGuardFailures < 1 || e.MaxGuardFailures > contracts.MaxGuardFailuresCeiling {
		return fmt.Errorf("max_guard_failures %d not in [1,%d]", e.MaxGuardFailures, contracts.MaxGuardFailuresCeiling)
	}
	if e.MaxDiagnostics < 1 || e.MaxDiagnostics > contracts.MaxDiagnosticsCeiling {
		return fmt.Errorf("max_diagnostics %d not in [1,%d]", e.MaxDiagnostics, contracts.MaxDiagnosticsCeiling)
	}
	if e.MaxOutcomeEntries < 1 || e.MaxOutcomeEntries > contracts.MaxOutcomeEntriesCeiling {
		return fmt.Errorf("max_outcome_entries %d not in [1,%d]", e.MaxOutcomeEntries, contracts.MaxOutcomeEntriesCeiling)
	}
	if c.Limits.TurnsPerSecond <= 0 || c.Limits.Burst < 1 {
		return fmt.Errorf("turn limits must be positive")
	}
	return nil
}

// NewEnvelope stamps the configured caps on a new envelope.
func (c *Config) NewEnvelope(correlationID string, turnID uint64) contracts.Envelope {
	env := contracts.DefaultEnvelope(correlationID, turnID)
	env.MaxGuardFailures = c.Envelope.MaxGuardFailures
	env.MaxDiagnostics = c.Envelope.MaxDiagnostics
	env.MaxOutcomeEntries = c.Envelope.MaxOutcomeEntries
	return env
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
