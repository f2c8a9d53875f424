// Package config loads the engine configuration from reagent.yaml, the
// REAGENT_* environment, and built-in defaults, in that order of
// precedence (env over file over defaults).
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved engine configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Model         ModelConfig         `mapstructure:"model"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Performance   PerformanceConfig   `mapstructure:"performance"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Task          TaskConfig          `mapstructure:"task"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ModelConfig selects and parameterizes the LLM backend. Provider "mock"
// runs the deterministic in-process model used by tests and offline runs.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type ToolsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	UseTaskRouter bool          `mapstructure:"use_task_router"`
}

type PerformanceConfig struct {
	CacheEnabled bool `mapstructure:"cache_enabled"`
	CacheSize    int  `mapstructure:"cache_size"`
	CacheTTLSec  int  `mapstructure:"cache_ttl"`
}

// CacheTTL returns the request cache TTL as a duration.
func (p PerformanceConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSec) * time.Second
}

type ObservabilityConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxEvents         int  `mapstructure:"max_events"`
	MaxPreview        int  `mapstructure:"max_preview"`
	IncludeInResponse bool `mapstructure:"include_in_response"`
}

type MemoryConfig struct {
	ShortTermSize int `mapstructure:"short_term_size"`
}

type TaskConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	v := newViper()
	cfg := &Config{}
	// Decoding defaults cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from path (optional; "" searches the working
// directory for reagent.yaml), applies REAGENT_* env overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("reagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("REAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("model.provider", "mock")
	v.SetDefault("model.endpoint", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.name", "research-1")
	v.SetDefault("model.temperature", 0.2)
	v.SetDefault("model.max_tokens", 2048)

	v.SetDefault("tools.timeout", "10s")
	v.SetDefault("tools.max_retries", 2)
	v.SetDefault("tools.use_task_router", false)

	v.SetDefault("performance.cache_enabled", true)
	v.SetDefault("performance.cache_size", 256)
	v.SetDefault("performance.cache_ttl", 3600)

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.max_events", 200)
	v.SetDefault("observability.max_preview", 500)
	v.SetDefault("observability.include_in_response", true)

	v.SetDefault("memory.short_term_size", 100)

	v.SetDefault("task.timeout", "300s")

	v.SetDefault("logging.level", "info")

	return v
}

// normalize clamps nonsensical values back to defaults rather than failing
// startup over a typo.
func (c *Config) normalize() {
	if c.Tools.Timeout <= 0 {
		c.Tools.Timeout = 10 * time.Second
	}
	if c.Tools.MaxRetries < 0 {
		c.Tools.MaxRetries = 0
	}
	if c.Performance.CacheSize <= 0 {
		c.Performance.CacheSize = 256
	}
	if c.Performance.CacheTTLSec <= 0 {
		c.Performance.CacheTTLSec = 3600
	}
	if c.Observability.MaxEvents <= 0 {
		c.Observability.MaxEvents = 200
	}
	if c.Observability.MaxPreview <= 0 {
		c.Observability.MaxPreview = 500
	}
	if c.Memory.ShortTermSize <= 0 {
		c.Memory.ShortTermSize = 100
	}
	if c.Task.Timeout <= 0 {
		c.Task.Timeout = 300 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}
