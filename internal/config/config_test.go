package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "./data/fitcoach.db", cfg.DB.DSN)
	require.True(t, cfg.DB.AutoMigrate)
	require.Equal(t, "authenticated", cfg.JWT.Audience)
	require.Equal(t, ProviderCohere, cfg.Completion.Provider)
	require.Equal(t, "https://api.cohere.ai", cfg.Completion.CohereBaseURL)
	require.Equal(t, "command-r-plus", cfg.Completion.Model())
	require.Equal(t, 60*time.Second, cfg.Completion.Timeout)
	require.Equal(t, 2, cfg.Completion.MaxRetries)
	require.Equal(t, 20, cfg.RateLimitPerMinute)
	require.EqualValues(t, 1<<20, cfg.MaxRequestBodyBytes)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/fitcoach?sslmode=disable")
	t.Setenv("COMPLETION_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COMPLETION_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, http://localhost:5173")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "postgres", cfg.DB.Driver)
	require.Equal(t, "sk-test", cfg.Completion.APIKey())
	require.Equal(t, "gpt-4o-mini", cfg.Completion.Model())
	require.Equal(t, 5*time.Second, cfg.Completion.Timeout)
	require.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret: from-file\nrate_limit_per_minute: 5\ncors_allowed_origins:\n  - https://a.example\n  - \" https://b.example \"\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.JWT.Secret)
	require.Equal(t, 7, cfg.RateLimitPerMinute, "environment wins over file")
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:     "8080",
			LogLevel: "info",
			DB:       DBConfig{Driver: "sqlite", DSN: "x.db"},
			JWT:      JWTConfig{Secret: "s"},
			Completion: CompletionConfig{
				Provider: ProviderCohere,
				Timeout:  time.Second,
			},
			MaxRequestBodyBytes: 1024,
			CORSAllowedOrigins:  []string{"*"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "llama" }},
		{"zero timeout", func(c *Config) { c.Completion.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Completion.MaxRetries = -1 }},
		{"negative rate", func(c *Config) { c.RateLimitPerMinute = -1 }},
		{"zero body cap", func(c *Config) { c.MaxRequestBodyBytes = 0 }},
		{"no cors origins", func(c *Config) { c.CORSAllowedOrigins = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, level)
}
