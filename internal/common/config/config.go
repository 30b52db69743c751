// internal/common/config/config.go
package config

import (
	"grain-workers/internal/models"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
	Provider   models.APIConfig        `mapstructure:"provider"`
	HTTP       HTTPConfig              `mapstructure:"http"`
	Generation GenerationConfig        `mapstructure:"generation"`
	Image      ImageConfig             `mapstructure:"image"`
	State      StateConfig             `mapstructure:"state"`
	Registry   RegistryConfig          `mapstructure:"registry"`
	Server     ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Locale      string `mapstructure:"locale"` // default locale for humanized errors
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// HTTPConfig bounds every outbound provider call.
type HTTPConfig struct {
	Timeout int `mapstructure:"timeout"` // milliseconds
}

// AttemptConfig is one generation attempt shape.
type AttemptConfig struct {
	Compact   bool `mapstructure:"compact"`
	MaxTokens int  `mapstructure:"max_tokens"`
}

// GenerationConfig drives the retry controller used for OpenAI-compatible
// providers. An empty attempt list means the built-in two attempts.
type GenerationConfig struct {
	Attempts []AttemptConfig `mapstructure:"attempts"`
}

// ImageConfig tunes the async image providers.
type ImageConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	MaxWait      int `mapstructure:"max_wait"`      // milliseconds
}

// StateConfig holds the per-user presentation state settings.
type StateConfig struct {
	Prefix         string `mapstructure:"prefix"`
	ImageCacheSize int    `mapstructure:"image_cache_size"`
	MaxImageUsers  int    `mapstructure:"max_image_users"`
	TTL            int    `mapstructure:"ttl"` // seconds, 0 keeps keys forever
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}
