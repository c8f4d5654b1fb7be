// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/llm"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	devJWTSecret = "dev-secret-change-me-before-production"
)

// Config holds every setting the server and CLI read at startup
type Config struct {
	Environment string
	Port        int
	AppURL      string
	DataDir     string
	DBDriver    string
	JWTSecret   string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitPerMin int

	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	LLMMaxTokens   int
	LLMTemperature float64

	AnalysisTimeout     time.Duration
	AnalysisMaxAttempts int

	NarrativeFormat narrative.Format
	MarkersVersion  string
	MarkersFile     string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	LinkDefaultExpiryDays int
	CORSAllowedOrigins    []string
	LogLevel              string
	LogFormat             string
	EnableHSTS            bool
	EnableProfiling       bool
}

// Load reads an optional .env file and then the environment. Parse errors
// are reported; range checks are left to Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file")
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an integer", key))
			return def
		}
		return v
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "anthropic"))

	cfg := &Config{
		Environment: getEnvOrDefault("APP_ENV", EnvDevelopment),
		Port:        intVar("PORT", 8080),
		DataDir:     getEnvOrDefault("DATA_DIR", "./data"),
		DBDriver:    getEnvOrDefault("DB_DRIVER", database.DriverCGO),
		JWTSecret:   getEnvOrDefault("JWT_SECRET", devJWTSecret),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         intVar("REDIS_DB", 0),
		RateLimitPerMin: intVar("RATE_LIMIT_PER_MIN", 30),

		LLMProvider:  provider,
		LLMModel:     os.Getenv("LLM_MODEL"),
		LLMAPIKey:    apiKey(provider),
		LLMMaxTokens: intVar("LLM_MAX_TOKENS", 4000),

		AnalysisMaxAttempts: intVar("ANALYSIS_MAX_ATTEMPTS", 1),

		NarrativeFormat: narrative.Format(strings.ToLower(getEnvOrDefault("NARRATIVE_FORMAT", string(narrative.FormatText)))),
		MarkersVersion:  getEnvOrDefault("NARRATIVE_MARKERS_VERSION", narrative.DefaultVersion),
		MarkersFile:     os.Getenv("NARRATIVE_MARKERS_FILE"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     intVar("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "noreply@avaliacao.local"),

		LinkDefaultExpiryDays: intVar("LINK_DEFAULT_EXPIRY_DAYS", 30),
		LogLevel:              strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
	}

	cfg.AppURL = strings.TrimRight(getEnvOrDefault("APP_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	temperature, err := strconv.ParseFloat(getEnvOrDefault("LLM_TEMPERATURE", "0.7"), 64)
	if err != nil {
		errs = append(errs, "LLM_TEMPERATURE must be a number")
	}
	cfg.LLMTemperature = temperature

	timeout, err := time.ParseDuration(getEnvOrDefault("ANALYSIS_TIMEOUT", "120s"))
	if err != nil {
		errs = append(errs, "ANALYSIS_TIMEOUT must be a duration such as 90s")
	}
	cfg.AnalysisTimeout = timeout

	hsts, err := strconv.ParseBool(getEnvOrDefault("ENABLE_HSTS", "false"))
	if err != nil {
		errs = append(errs, "ENABLE_HSTS must be a boolean")
	}
	cfg.EnableHSTS = hsts

	profiling, err := strconv.ParseBool(getEnvOrDefault("ENABLE_PROFILING", "false"))
	if err != nil {
		errs = append(errs, "ENABLE_PROFILING must be a boolean")
	}
	cfg.EnableProfiling = profiling

	for _, origin := range strings.Split(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Validate checks ranges and cross-field rules. All problems are reported
// at once.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains([]string{EnvDevelopment, EnvStaging, EnvProduction}, c.Environment) {
		errs = append(errs, "APP_ENV must be one of development, staging, production")
	}
	if c.IsProduction() && (len(c.JWTSecret) < 32 || c.JWTSecret == devJWTSecret) {
		errs = append(errs, "JWT_SECRET must be set to at least 32 characters in production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	if c.DBDriver != database.DriverCGO && c.DBDriver != database.DriverPure {
		errs = append(errs, fmt.Sprintf("DB_DRIVER must be %q or %q", database.DriverCGO, database.DriverPure))
	}
	if !slices.Contains(llm.Providers(), c.LLMProvider) {
		errs = append(errs, fmt.Sprintf("LLM_PROVIDER must be one of %s", strings.Join(llm.Providers(), ", ")))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, "LLM_MAX_TOKENS must be positive")
	}
	if c.AnalysisTimeout <= 0 {
		errs = append(errs, "ANALYSIS_TIMEOUT must be positive")
	}
	if c.AnalysisMaxAttempts < 1 {
		errs = append(errs, "ANALYSIS_MAX_ATTEMPTS must be at least 1")
	}
	if c.NarrativeFormat != narrative.FormatText && c.NarrativeFormat != narrative.FormatStructured {
		errs = append(errs, "NARRATIVE_FORMAT must be text or structured")
	}
	if c.LinkDefaultExpiryDays < 1 || c.LinkDefaultExpiryDays > 365 {
		errs = append(errs, "LINK_DEFAULT_EXPIRY_DAYS must be between 1 and 365")
	}
	if c.RateLimitPerMin <= 0 {
		errs = append(errs, "RATE_LIMIT_PER_MIN must be positive")
	}
	if c.IsProduction() && c.EnableProfiling {
		errs = append(errs, "ENABLE_PROFILING is not allowed in production")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, "LOG_FORMAT must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LLMConfig returns the provider settings for llm.NewProvider.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider: c.LLMProvider,
		Model:    c.LLMModel,
		APIKey:   c.LLMAPIKey,
		JSONMode: c.NarrativeFormat == narrative.FormatStructured,
	}
}

// apiKey prefers LLM_API_KEY and falls back to the vendor's usual variable.
func apiKey(provider string) string {
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "google":
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
