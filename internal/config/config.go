package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds configuration for the twin gateway.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Generation GenerationConfig `mapstructure:"generation"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Log        LogConfig        `mapstructure:"log"`
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"required"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL              string        `mapstructure:"url" validate:"required"`
	MaxOpenConns     int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	ProfileCacheSize int           `mapstructure:"profile_cache_size" validate:"gte=1"`
	ProfileCacheTTL  time.Duration `mapstructure:"profile_cache_ttl"`
}

// RedisConfig holds Redis connection settings. Redis is optional: when no
// address is configured the history pipeline falls back to in-memory queues.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GeminiConfig configures the Gemini provider adapter.
type GeminiConfig struct {
	APIKey string   `mapstructure:"api_key"`
	Models []string `mapstructure:"models" validate:"min=1"`
}

// OpenAIConfig configures the OpenAI-compatible provider adapter.
type OpenAIConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	BaseURL string   `mapstructure:"base_url" validate:"required,url"`
	Models  []string `mapstructure:"models" validate:"min=1"`
}

// GenerationConfig holds provider-agnostic generation tunables. Adapters
// receive these from the orchestrator rather than hardcoding their own.
type GenerationConfig struct {
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"gte=1"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout" validate:"required"`
	DefaultBackoff  time.Duration `mapstructure:"default_backoff" validate:"required"`
}

// StreamConfig holds the streaming relay settings.
type StreamConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"required"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	BufferSize        int           `mapstructure:"buffer_size" validate:"gte=1"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from:
//  1. Default values
//  2. config.yaml in the working directory (optional)
//  3. TWIN_* environment variables
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TWIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults plus env cover it.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the loaded configuration against the struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("invalid configuration: at least one provider API key must be set")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("http.port", "8080")
	viper.SetDefault("http.read_timeout", 30*time.Second)
	viper.SetDefault("http.write_timeout", 5*time.Minute)
	viper.SetDefault("http.idle_timeout", 120*time.Second)

	viper.SetDefault("auth.token_ttl", 24*time.Hour)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.conn_max_idle_time", 1*time.Minute)
	viper.SetDefault("database.profile_cache_size", 1000)
	viper.SetDefault("database.profile_cache_ttl", 5*time.Minute)

	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("redis.dial_timeout", 5*time.Second)
	viper.SetDefault("redis.read_timeout", 3*time.Second)
	viper.SetDefault("redis.write_timeout", 3*time.Second)

	viper.SetDefault("gemini.models", []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
	})

	viper.SetDefault("openai.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("openai.models", []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"mixtral-8x7b-32768",
	})

	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.max_output_tokens", 2048)
	viper.SetDefault("generation.attempt_timeout", 60*time.Second)
	viper.SetDefault("generation.default_backoff", 60*time.Second)

	viper.SetDefault("stream.idle_timeout", 45*time.Second)
	viper.SetDefault("stream.keep_alive_interval", 15*time.Second)
	viper.SetDefault("stream.buffer_size", 32)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
