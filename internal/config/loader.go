// Package config loads the fragstat configuration from defaults, an optional
// YAML file and the environment using viper.
package config

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every fragstat environment variable.
const EnvPrefix = "FRAGSTAT"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// envAliases maps config keys to the unprefixed variables the dashboard
// deployment already uses. The prefixed name is always checked first.
var envAliases = map[string][]string{
	"environment":              {"APP_ENV", "NODE_ENV"},
	"cache.url":                {"REDIS_URL", "REDIS_CONNECTION_STRING"},
	"cache.host":               {"REDIS_HOST"},
	"cache.port":               {"REDIS_PORT"},
	"cache.username":           {"REDIS_USERNAME"},
	"cache.password":           {"REDIS_PASSWORD"},
	"cache.database":           {"REDIS_DATABASE", "REDIS_DB"},
	"security.allowed_origins": {"ALLOWED_ORIGINS"},
	"security.valid_api_keys":  {"VALID_API_KEYS"},
	"upstream.token":           {"ESPORTS_API_TOKEN", "PANDASCORE_TOKEN"},
	"odds.api_key":             {"ODDS_API_KEY", "OPENAI_API_KEY"},
	"odds.base_url":            {"ODDS_BASE_URL"},
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("cache.driver", "")
	v.SetDefault("cache.url", "")
	v.SetDefault("cache.host", "")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.username", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.database", 0)
	v.SetDefault("cache.key_prefix", "")
	v.SetDefault("cache.connect_timeout", "5s")
	v.SetDefault("cache.default_ttl", "10m")

	v.SetDefault("security.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("security.valid_api_keys", []string{})
	v.SetDefault("security.rate_limit_window", "3m")
	v.SetDefault("security.rate_limit_max", 100)
	v.SetDefault("security.rate_limit_status", http.StatusForbidden)
	v.SetDefault("security.reject_status", http.StatusForbidden)
	v.SetDefault("security.rate_limit_store", "memory")

	v.SetDefault("upstream.base_url", "https://api.pandascore.co")
	v.SetDefault("upstream.token", "")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.requests_per_second", 10)
	v.SetDefault("upstream.burst", 5)
	v.SetDefault("upstream.page_size", 50)

	v.SetDefault("odds.base_url", "https://api.openai.com/v1")
	v.SetDefault("odds.api_key", "")
	v.SetDefault("odds.model", "gpt-4o-mini")
	v.SetDefault("odds.temperature", 0.2)
	v.SetDefault("odds.max_tokens", 600)
	v.SetDefault("odds.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// BindEnv enables FRAGSTAT_* overrides (server.port -> FRAGSTAT_SERVER_PORT)
// and the unprefixed aliases.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		names = append(names, aliases...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// Load decodes and validates the configuration held by v, then publishes it
// for GetConfig.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToFloat64HookFunc(),
		trimStringSliceHook(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}
	if !v.IsSet("security.log_events") {
		cfg.Security.LogEvents = !cfg.IsProduction()
	}
	cfg.Security.RateLimitStore = strings.ToLower(strings.TrimSpace(cfg.Security.RateLimitStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Security.RateLimitMax <= 0 {
		return fmt.Errorf("security.rate_limit_max must be positive, got %d", c.Security.RateLimitMax)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
	}
	for name, status := range map[string]int{
		"security.rate_limit_status": c.Security.RateLimitStatus,
		"security.reject_status":     c.Security.RejectStatus,
	} {
		if status < 400 || status > 599 {
			return fmt.Errorf("%s must be a 4xx or 5xx status, got %d", name, status)
		}
	}
	switch c.Security.RateLimitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("security.rate_limit_store must be memory or redis, got %q", c.Security.RateLimitStore)
	}
	if c.Security.RateLimitStore == "redis" && c.Cache.Settings().Mode() != "redis" {
		return fmt.Errorf("security.rate_limit_store=redis requires a redis cache")
	}
	return nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// trimStringSliceHook drops blank entries and surrounding spaces so
// "a, b," decodes as [a b].
func trimStringSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		var raw []string
		switch v := data.(type) {
		case []string:
			raw = v
		case []any:
			for _, item := range v {
				raw = append(raw, fmt.Sprint(item))
			}
		default:
			return data, nil
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
}
