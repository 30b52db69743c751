// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grain-workers/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// PROVIDER_BASE_URL overrides provider.base_url and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// config.<env>.yaml is optional
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found from the working directory up to
// the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func envFallback(dst *string, name string) bool {
	if *dst != "" {
		return false
	}
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		*dst = val
		return true
	}
	return false
}

// overrideEmptyConfig fills provider settings the file left blank from the
// GRAIN_* environment.
func overrideEmptyConfig(cfg *Config) {
	p := &cfg.Provider

	if envFallback(&p.BaseURL, "GRAIN_API_BASE_URL") {
		p.Enabled = true
	}
	envFallback(&p.APIKey, "GRAIN_API_KEY")
	kind := string(p.Kind)
	if envFallback(&kind, "GRAIN_API_KIND") {
		p.Kind = models.ProviderKind(kind)
	}
	envFallback(&p.OpenAIModel, "GRAIN_OPENAI_MODEL")
	envFallback(&p.OpenAIVisionModel, "GRAIN_OPENAI_VISION_MODEL")

	imageKind := string(p.ImageKind)
	if envFallback(&imageKind, "GRAIN_IMAGE_KIND") {
		p.ImageKind = models.ProviderKind(imageKind)
	}
	envFallback(&p.ImageBaseURL, "GRAIN_IMAGE_BASE_URL")
	envFallback(&p.ImageAPIKey, "GRAIN_IMAGE_API_KEY")
	envFallback(&p.OpenAIImageModel, "GRAIN_IMAGE_MODEL")
	if !p.ImageEnabled && strings.EqualFold(os.Getenv("GRAIN_IMAGE_ENABLED"), "true") {
		p.ImageEnabled = true
	}

	envFallback(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "grain-workers"
	}
	if cfg.App.Locale == "" {
		cfg.App.Locale = "zh"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	cfg.Provider = models.NormalizeAPIConfig(cfg.Provider)

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 60000
	}
	for i, a := range cfg.Generation.Attempts {
		if a.MaxTokens == 0 {
			cfg.Generation.Attempts[i].MaxTokens = 2600
		}
	}
	if cfg.Image.PollInterval == 0 {
		cfg.Image.PollInterval = 2000
	}
	if cfg.Image.MaxWait == 0 {
		cfg.Image.MaxWait = 90000
	}

	if cfg.State.Prefix == "" {
		cfg.State.Prefix = "grain"
	}
	if cfg.State.ImageCacheSize == 0 {
		cfg.State.ImageCacheSize = 16
	}
	if cfg.State.MaxImageUsers == 0 {
		cfg.State.MaxImageUsers = 1024
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.State.ImageCacheSize < 0 || cfg.State.MaxImageUsers < 0 {
		return fmt.Errorf("state cache sizes must be positive")
	}
	for i, a := range cfg.Generation.Attempts {
		if a.MaxTokens < 0 {
			return fmt.Errorf("generation.attempts[%d].max_tokens must be positive", i)
		}
	}
	if cfg.Provider.Enabled && cfg.Provider.Kind == models.ProviderOpenAICompatible &&
		cfg.Provider.BaseURL != "" && cfg.Provider.OpenAIModel == "" {
		return fmt.Errorf("provider.openai_model is required for %s", models.ProviderOpenAICompatible)
	}
	return nil
}

// ResolveAPIConfig returns the provider config for one call. A config carried
// by the caller replaces the process default wholesale.
func ResolveAPIConfig(perCall *models.APIConfig, def models.APIConfig) models.APIConfig {
	if perCall != nil {
		return models.NormalizeAPIConfig(*perCall)
	}
	return models.NormalizeAPIConfig(def)
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
