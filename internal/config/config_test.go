package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "APP_URL", "DATA_DIR", "DB_DRIVER", "JWT_SECRET",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RATE_LIMIT_PER_MIN",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
		"LLM_MAX_TOKENS", "LLM_TEMPERATURE", "ANALYSIS_TIMEOUT", "ANALYSIS_MAX_ATTEMPTS",
		"NARRATIVE_FORMAT", "NARRATIVE_MARKERS_VERSION", "NARRATIVE_MARKERS_FILE",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"LINK_DEFAULT_EXPIRY_DAYS", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "ENABLE_HSTS",
		"ENABLE_PROFILING",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.AppURL)
	assert.Equal(t, database.DriverCGO, cfg.DBDriver)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 120*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 1, cfg.AnalysisMaxAttempts)
	assert.Equal(t, narrative.FormatText, cfg.NarrativeFormat)
	assert.Equal(t, narrative.DefaultVersion, cfg.MarkersVersion)
	assert.Equal(t, 30, cfg.LinkDefaultExpiryDays)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.EnableHSTS)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("APP_URL", "https://avaliacao.example.com/")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANALYSIS_TIMEOUT", "45s")
	t.Setenv("NARRATIVE_FORMAT", "structured")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("ENABLE_HSTS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://avaliacao.example.com", cfg.AppURL)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, 45*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.EnableHSTS)

	llmCfg := cfg.LLMConfig()
	assert.True(t, llmCfg.JSONMode)
	assert.Equal(t, "sk-test", llmCfg.APIKey)
}

func TestLLMAPIKeyTakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "generic")
	t.Setenv("ANTHROPIC_API_KEY", "vendor")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "generic", cfg.LLMAPIKey)
}

func TestFromEnvParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port", key: "PORT", value: "eighty"},
		{name: "timeout", key: "ANALYSIS_TIMEOUT", value: "120"},
		{name: "temperature", key: "LLM_TEMPERATURE", value: "warm"},
		{name: "hsts", key: "ENABLE_HSTS", value: "maybe"},
		{name: "profiling", key: "ENABLE_PROFILING", value: "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "environment", mutate: func(c *Config) { c.Environment = "test" }, want: "APP_ENV"},
		{name: "production secret", mutate: func(c *Config) { c.Environment = EnvProduction }, want: "JWT_SECRET"},
		{name: "short production secret", mutate: func(c *Config) { c.Environment = EnvProduction; c.JWTSecret = "short" }, want: "JWT_SECRET"},
		{name: "port", mutate: func(c *Config) { c.Port = 0 }, want: "PORT"},
		{name: "driver", mutate: func(c *Config) { c.DBDriver = "postgres" }, want: "DB_DRIVER"},
		{name: "provider", mutate: func(c *Config) { c.LLMProvider = "mistral" }, want: "LLM_PROVIDER"},
		{name: "timeout", mutate: func(c *Config) { c.AnalysisTimeout = 0 }, want: "ANALYSIS_TIMEOUT"},
		{name: "attempts", mutate: func(c *Config) { c.AnalysisMaxAttempts = 0 }, want: "ANALYSIS_MAX_ATTEMPTS"},
		{name: "format", mutate: func(c *Config) { c.NarrativeFormat = "xml" }, want: "NARRATIVE_FORMAT"},
		{name: "expiry low", mutate: func(c *Config) { c.LinkDefaultExpiryDays = 0 }, want: "LINK_DEFAULT_EXPIRY_DAYS"},
		{name: "expiry high", mutate: func(c *Config) { c.LinkDefaultExpiryDays = 366 }, want: "LINK_DEFAULT_EXPIRY_DAYS"},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }, want: "LOG_FORMAT"},
		{name: "profiling in production", mutate: func(c *Config) { c.Environment = EnvProduction; c.EnableProfiling = true }, want: "ENABLE_PROFILING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := FromEnv()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateProductionWithStrongSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsProduction())
}
