// Package config loads the cms-proxy configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/cms-content-client/pkg/cache"
	"github.com/Sternrassler/cms-content-client/pkg/logging"
	"github.com/Sternrassler/cms-content-client/pkg/throttle"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the proxy listen port.
	DefaultPort = "8080"

	// DefaultRequestTimeout bounds one proxied request.
	DefaultRequestTimeout = 30 * time.Second
)

// Config is the proxy configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       logging.Config   `yaml:"log"`
	Transport transport.Config `yaml:"transport"`
	Cache     CacheConfig      `yaml:"cache"`
	Throttle  throttle.Config  `yaml:"throttle"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheConfig selects and tunes the response cache.
type CacheConfig struct {
	Disabled   bool          `yaml:"disabled"`
	Strategy   string        `yaml:"strategy"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`

	// RedisURL selects the Redis provider when set. Both host:port and
	// redis:// URLs are accepted.
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Load reads the YAML file at path, applies defaults and then environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer func() { _ = file.Close() }()

		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = logging.LevelInfo
	}

	defaults := transport.DefaultConfig("")
	if c.Transport.BaseURL == "" {
		c.Transport.BaseURL = defaults.BaseURL
	}
	if c.Transport.UserAgent == "" {
		c.Transport.UserAgent = defaults.UserAgent
	}
	if c.Transport.Timeout <= 0 {
		c.Transport.Timeout = defaults.Timeout
	}
	if c.Transport.Retry.MaxAttempts <= 0 {
		c.Transport.Retry = defaults.Retry
	}

	if c.Cache.Strategy == "" {
		c.Cache.Strategy = string(cache.StrategyCacheFirst)
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Minute
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = cache.DefaultMaxEntries
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = cache.DefaultRedisPrefix
	}
}

// applyEnv overrides file values with non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	c.Transport.AccessToken = getEnv(getenv, "CMS_ACCESS_TOKEN", c.Transport.AccessToken)
	c.Transport.BaseURL = getEnv(getenv, "CMS_BASE_URL", c.Transport.BaseURL)
	c.Cache.RedisURL = getEnv(getenv, "REDIS_URL", c.Cache.RedisURL)
	c.Server.Port = getEnv(getenv, "PORT", c.Server.Port)
	c.Log.Level = logging.LogLevel(getEnv(getenv, "LOG_LEVEL", string(c.Log.Level)))
}

// Validate checks the configuration for values the proxy cannot run with.
func (c *Config) Validate() error {
	if c.Transport.AccessToken == "" {
		return fmt.Errorf("access token is required (set CMS_ACCESS_TOKEN)")
	}
	if _, err := cache.ParseStrategy(c.Cache.Strategy); err != nil {
		return err
	}
	if c.Throttle.MaxConcurrent < 0 {
		return fmt.Errorf("throttle max_concurrent must be >= 0 (got %d)", c.Throttle.MaxConcurrent)
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
