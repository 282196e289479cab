// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Completion providers.
const (
	ProviderCohere = "cohere"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	LogLevel            string
	DB                  DBConfig
	JWT                 JWTConfig
	Completion          CompletionConfig
	RateLimitPerMinute  int
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
}

// DBConfig selects the store backend.
type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// JWTConfig controls bearer credential verification.
type JWTConfig struct {
	Secret   string
	Audience string
}

// CompletionConfig controls the generative-completion client.
type CompletionConfig struct {
	Provider   string
	Timeout    time.Duration
	MaxRetries int

	CohereAPIKey  string
	CohereBaseURL string
	CohereModel   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// APIKey returns the credential of the selected provider.
func (c CompletionConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.CohereAPIKey
}

// APIKeyName returns the variable holding the selected provider's key.
func (c CompletionConfig) APIKeyName() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "COHERE_API_KEY"
}

// Model returns the model identifier of the selected provider.
func (c CompletionConfig) Model() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.CohereModel
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "./data/fitcoach.db")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_audience", "authenticated")
	v.SetDefault("completion_provider", ProviderCohere)
	v.SetDefault("completion_timeout", "60s")
	v.SetDefault("completion_max_retries", 2)
	v.SetDefault("cohere_api_key", "")
	v.SetDefault("cohere_base_url", "https://api.cohere.ai")
	v.SetDefault("cohere_model", "command-r-plus")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("rate_limit_per_minute", 20)
	v.SetDefault("max_request_body_bytes", 1<<20)
	v.SetDefault("cors_allowed_origins", "*")
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_PATH, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("config_path"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		slog.Info("Loaded config file", "path", v.ConfigFileUsed())
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:     v.GetString("port"),
		LogLevel: strings.ToLower(v.GetString("log_level")),
		DB: DBConfig{
			Driver:      strings.ToLower(v.GetString("db_driver")),
			DSN:         v.GetString("db_dsn"),
			AutoMigrate: v.GetBool("db_auto_migrate"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("jwt_secret"),
			Audience: v.GetString("jwt_audience"),
		},
		Completion: CompletionConfig{
			Provider:      strings.ToLower(v.GetString("completion_provider")),
			Timeout:       v.GetDuration("completion_timeout"),
			MaxRetries:    v.GetInt("completion_max_retries"),
			CohereAPIKey:  v.GetString("cohere_api_key"),
			CohereBaseURL: strings.TrimRight(v.GetString("cohere_base_url"), "/"),
			CohereModel:   v.GetString("cohere_model"),
			OpenAIAPIKey:  v.GetString("openai_api_key"),
			OpenAIBaseURL: strings.TrimRight(v.GetString("openai_base_url"), "/"),
			OpenAIModel:   v.GetString("openai_model"),
		},
		RateLimitPerMinute:  v.GetInt("rate_limit_per_minute"),
		MaxRequestBodyBytes: v.GetInt64("max_request_body_bytes"),
		CORSAllowedOrigins:  stringList(v, "cors_allowed_origins"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing completion API key is not an error here: the chat endpoint
// reports it per request so the rest of the API keeps working.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("DB_DSN cannot be empty")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET cannot be empty")
	}
	switch c.Completion.Provider {
	case ProviderCohere, ProviderOpenAI:
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be cohere or openai, got %q", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return errors.New("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Completion.MaxRetries < 0 {
		return errors.New("COMPLETION_MAX_RETRIES must be >= 0")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// stringList reads key as either a comma-separated string (env) or a list (config file).
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitList(s)
	}
	return splitList(strings.Join(v.GetStringSlice(key), ","))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
