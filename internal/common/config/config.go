// Package config provides configuration management for the Radicle browser.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Radicle  RadicleConfig  `mapstructure:"radicle"`
	Cache    CacheConfig    `mapstructure:"cache"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	LocalGit LocalGitConfig `mapstructure:"localGit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// RadicleConfig selects the seed node and tunes requests against it.
type RadicleConfig struct {
	SeedURL        string `mapstructure:"seedURL"`
	APIPath        string `mapstructure:"apiPath"`
	RequestTimeout int    `mapstructure:"requestTimeout"` // in seconds
	DiffPageSize   int    `mapstructure:"diffPageSize"`
	UserAgent      string `mapstructure:"userAgent"`
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DBPath        string `mapstructure:"dbPath"` // empty keeps the cache in memory only
	TTLSeconds    int    `mapstructure:"ttlSeconds"`
	MemoryEntries int    `mapstructure:"memoryEntries"`
	Compress      bool   `mapstructure:"compress"`
}

// NATSConfig holds NATS messaging configuration.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlpEndpoint"`
	ServiceName  string `mapstructure:"serviceName"`
}

// LocalGitConfig points the browser at a local clone instead of a seed node.
type LocalGitConfig struct {
	RepoPath string `mapstructure:"repoPath"`
	RepoID   string `mapstructure:"repoId"` // repository id the clone is served as
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RequestTimeoutDuration returns the per-request timeout.
func (r *RadicleConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(r.RequestTimeout) * time.Second
}

// BaseURL joins the seed URL and API path, without a trailing slash.
func (r *RadicleConfig) BaseURL() string {
	return strings.TrimRight(r.SeedURL, "/") + "/" + strings.Trim(r.APIPath, "/")
}

// TTL returns the cache entry lifetime.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// detectDefaultLogFormat returns "json" in production environments and
// "text" for terminal use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("RADICLE_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Radicle defaults
	v.SetDefault("radicle.seedURL", "https://seed.radicle.garden")
	v.SetDefault("radicle.apiPath", "/api/v1")
	v.SetDefault("radicle.requestTimeout", 30)
	v.SetDefault("radicle.diffPageSize", 50)
	v.SetDefault("radicle.userAgent", "radicle-browser")

	// Cache defaults, 300s matches the lifetime seed responses are trusted for
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dbPath", "")
	v.SetDefault("cache.ttlSeconds", 300)
	v.SetDefault("cache.memoryEntries", 512)
	v.SetDefault("cache.compress", true)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "radicle-browser")
	v.SetDefault("nats.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Tracing defaults - empty endpoint disables export
	v.SetDefault("tracing.otlpEndpoint", "")
	v.SetDefault("tracing.serviceName", "radicle-browser")

	v.SetDefault("localGit.repoPath", "")
	v.SetDefault("localGit.repoId", "")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix RADICLE_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/radicle-browser/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RADICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not map camelCase keys to SNAKE_CASE variables.
	_ = v.BindEnv("radicle.seedURL", "RADICLE_SEED_URL")
	_ = v.BindEnv("radicle.diffPageSize", "RADICLE_DIFF_PAGE_SIZE")
	_ = v.BindEnv("cache.dbPath", "RADICLE_CACHE_DB_PATH")
	_ = v.BindEnv("tracing.otlpEndpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "RADICLE_TRACING_OTLP_ENDPOINT")
	_ = v.BindEnv("localGit.repoPath", "RADICLE_LOCAL_GIT_REPO_PATH")
	_ = v.BindEnv("localGit.repoId", "RADICLE_LOCAL_GIT_REPO_ID")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/radicle-browser/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.LocalGit.RepoPath != "" && cfg.LocalGit.RepoID == "" {
		errs = append(errs, "localGit.repoId is required when localGit.repoPath is set")
	}
	if cfg.LocalGit.RepoPath == "" {
		u, err := url.Parse(cfg.Radicle.SeedURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "radicle.seedURL must be an absolute URL")
		}
	}
	if cfg.Radicle.RequestTimeout <= 0 {
		errs = append(errs, "radicle.requestTimeout must be positive")
	}
	if cfg.Radicle.DiffPageSize <= 0 {
		errs = append(errs, "radicle.diffPageSize must be positive")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.TTLSeconds <= 0 {
			errs = append(errs, "cache.ttlSeconds must be positive")
		}
		if cfg.Cache.MemoryEntries < 0 {
			errs = append(errs, "cache.memoryEntries must not be negative")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
