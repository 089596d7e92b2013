// Package config loads worker configuration from the environment and an
// optional config file. All knobs carry working defaults for local
// development; only the generation API key has no default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys to env var segments, so generation.api_key
// becomes GRADEPIPE_GENERATION_API_KEY.
var envKeyReplacer = strings.NewReplacer(".", "_")

// TemporalConfig locates the Temporal cluster.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

// RedisConfig locates the cache backing the evaluation idempotency lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig locates the object store holding uploaded artifacts.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// GenerationConfig configures the chat-completions client shared by vision
// recognition and the evaluation agents.
type GenerationConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRepairAttempts int           `mapstructure:"max_repair_attempts"`
}

// PipelineConfig holds pipeline-level limits.
type PipelineConfig struct {
	MaxPagesPerScript int           `mapstructure:"max_pages_per_script"`
	EvaluationLockTTL time.Duration `mapstructure:"evaluation_lock_ttl"`
}

// Config is the full worker configuration.
type Config struct {
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Generation GenerationConfig `mapstructure:"generation"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// Load reads configuration from config.yaml (if present in the working
// directory) and the environment. Environment variables use the GRADEPIPE
// prefix with underscores, e.g. GRADEPIPE_GENERATION_API_KEY.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.bucket", "exam-scripts")
	v.SetDefault("storage.use_ssl", false)
	// An explicit empty default keeps the key visible to Unmarshal so the
	// env binding works.
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "https://api.openai.com/v1")
	v.SetDefault("generation.model", "gpt-4o")
	v.SetDefault("generation.temperature", 0.1)
	v.SetDefault("generation.max_tokens", 4096)
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("generation.max_repair_attempts", 2)
	v.SetDefault("pipeline.max_pages_per_script", 50)
	v.SetDefault("pipeline.evaluation_lock_ttl", 10*time.Minute)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GRADEPIPE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings a worker cannot run without.
func (c *Config) Validate() error {
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required (GRADEPIPE_GENERATION_API_KEY)")
	}
	if c.Pipeline.MaxPagesPerScript < 1 {
		return fmt.Errorf("pipeline.max_pages_per_script must be at least 1")
	}
	if c.Pipeline.EvaluationLockTTL < time.Minute {
		return fmt.Errorf("pipeline.evaluation_lock_ttl must be at least 1m")
	}
	return nil
}
