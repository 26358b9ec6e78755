package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nexuscrm/formengine/pkg/constants"
)

// EnvPrefix is prepended to every environment override, e.g. FORMENGINE_HTTP_PORT
const EnvPrefix = "formengine"

type AppConfig struct {
	HTTP      HTTPConfig
	Log       LogConfig
	Registry  RegistryConfig
	Database  DatabaseConfig
	Remote    RemoteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Bootstrap BootstrapConfig
}

type HTTPConfig struct {
	Port           int
	SessionTTL     time.Duration
	AllowedOrigins []string
}

type LogConfig struct {
	Level       string
	Development bool
}

type RegistryConfig struct {
	Backend constants.RegistryBackend
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
}

type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	LookupTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type BootstrapConfig struct {
	Tenants []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.session_ttl", 30*time.Minute)
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("registry.backend", string(constants.RegistryBackendSQL))
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 4000)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "formengine")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.retries", 2)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.lookup_ttl", time.Minute)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("bootstrap.tenants", []string{})
}

// Load reads .env (if present), then an optional YAML file, then FORMENGINE_* environment overrides.
// An empty configFile skips the file layer.
func Load(configFile string) (AppConfig, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := AppConfig{
		HTTP: HTTPConfig{
			Port:           v.GetInt("http.port"),
			SessionTTL:     v.GetDuration("http.session_ttl"),
			AllowedOrigins: splitList(v.GetStringSlice("http.allowed_origins")),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Registry: RegistryConfig{
			Backend: constants.RegistryBackend(strings.ToLower(v.GetString("registry.backend"))),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			Name:         v.GetString("database.name"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		Remote: RemoteConfig{
			BaseURL: v.GetString("remote.base_url"),
			Timeout: v.GetDuration("remote.timeout"),
			Retries: v.GetInt("remote.retries"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			LookupTTL: v.GetDuration("cache.lookup_ttl"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Bootstrap: BootstrapConfig{
			Tenants: splitList(v.GetStringSlice("bootstrap.tenants")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field requirements
func (c AppConfig) Validate() error {
	switch c.Registry.Backend {
	case constants.RegistryBackendSQL, constants.RegistryBackendRemote:
	default:
		return fmt.Errorf("unknown registry.backend %q", c.Registry.Backend)
	}
	// candidate lookups and record persistence always go to the hosted backend
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
