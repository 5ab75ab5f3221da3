package config

import (
	"strings"
	"time"

	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
	"github.com/fragstat/fragstat/internal/odds"
	"github.com/fragstat/fragstat/internal/security"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config represents the complete application configuration. Values come
// from code defaults, an optional YAML file and the environment, in that
// order of precedence.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Security    SecurityConfig `mapstructure:"security"`
	Upstream    UpstreamConfig `mapstructure:"upstream"`
	Odds        OddsConfig     `mapstructure:"odds"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Health      HealthConfig   `mapstructure:"health"`
	Debug       DebugConfig    `mapstructure:"debug"`
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig locates the key-value cache. URL wins over the discrete
// fields; with neither set the service runs without a cache.
type CacheConfig struct {
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Database       int           `mapstructure:"database"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
}

// Settings converts to kvcache settings.
func (c CacheConfig) Settings() kvcache.Settings {
	return kvcache.Settings{
		Driver:         c.Driver,
		URL:            c.URL,
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		Database:       c.Database,
		KeyPrefix:      c.KeyPrefix,
		ConnectTimeout: c.ConnectTimeout,
		DefaultTTL:     c.DefaultTTL,
	}
}

// SecurityConfig configures the API gate.
type SecurityConfig struct {
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ValidAPIKeys    []string      `mapstructure:"valid_api_keys"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitStatus int           `mapstructure:"rate_limit_status"`
	RejectStatus    int           `mapstructure:"reject_status"`

	// RateLimitStore is memory or redis. Redis shares counters across
	// replicas and reuses the cache connection settings.
	RateLimitStore string `mapstructure:"rate_limit_store"`

	// LogEvents defaults to true outside production.
	LogEvents bool `mapstructure:"log_events"`
}

// Gate converts to a security gate config for environment env.
func (s SecurityConfig) Gate(env string) security.Config {
	return security.Config{
		AllowedOrigins:  s.AllowedOrigins,
		Development:     strings.EqualFold(strings.TrimSpace(env), EnvDevelopment),
		ValidAPIKeys:    s.ValidAPIKeys,
		RateLimitWindow: s.RateLimitWindow,
		RateLimitMax:    s.RateLimitMax,
		RateLimitStatus: s.RateLimitStatus,
		RejectStatus:    s.RejectStatus,
		LogEvents:       s.LogEvents,
	}
}

// UpstreamConfig configures the esports data provider.
type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	PageSize          int           `mapstructure:"page_size"`
}

// Client converts to esports client config.
func (u UpstreamConfig) Client() esports.Config {
	return esports.Config{
		BaseURL:           u.BaseURL,
		Token:             u.Token,
		Timeout:           u.Timeout,
		RequestsPerSecond: u.RequestsPerSecond,
		Burst:             u.Burst,
		PageSize:          u.PageSize,
	}
}

// OddsConfig configures the AI odds assistant. It is disabled without an
// API key.
type OddsConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether an inference key is set.
func (o OddsConfig) Enabled() bool {
	return strings.TrimSpace(o.APIKey) != ""
}

// Options converts to predictor options.
func (o OddsConfig) Options() odds.Options {
	return odds.Options{Model: o.Model, Temperature: o.Temperature, MaxTokens: o.MaxTokens}
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects SIMPLE (console) or STRUCTURED (JSON) output.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port. The main HTTP port
	// proxies it at /metrics.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled exposes /debug/pprof. Only enable outside production.
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
