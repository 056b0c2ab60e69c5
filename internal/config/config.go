// Package config loads service settings from the environment and validates
// them once at startup, reporting every problem in a single error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// Prohibited-term handling modes for generated flows.
const (
	ProhibitedTermsWarn   = "warn"
	ProhibitedTermsReject = "reject"
)

// Undo store backends.
const (
	UndoStoreMemory   = "memory"
	UndoStoreDatabase = "database"
)

type Settings struct {
	Environment string
	Port        string

	DatabaseURL      string
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseSSLMode  string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	ClaudeModel       string
	ClaudeMaxTokens   int
	ClaudeTemperature float64

	ProhibitedTermsMode string
	UndoStore           string
	UndoRetention       time.Duration
}

// Load reads settings from the environment, applying development defaults.
// Call Validate before using the result.
func Load() Settings {
	return Settings{
		Environment: envOrDefault("ENVIRONMENT", "development"),
		Port:        envOrDefault("PORT", "8000"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseHost:     envOrDefault("DATABASE_HOST", "localhost"),
		DatabasePort:     envOrDefault("DATABASE_PORT", "5432"),
		DatabaseName:     envOrDefault("DATABASE_NAME", "flowscribe"),
		DatabaseUser:     os.Getenv("DATABASE_USER"),
		DatabasePassword: os.Getenv("DATABASE_PASSWORD"),
		DatabaseSSLMode:  envOrDefault("DATABASE_SSLMODE", "disable"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		ClaudeModel:       envOrDefault("CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		ClaudeMaxTokens:   envIntOrDefault("CLAUDE_MAX_TOKENS", 2048),
		ClaudeTemperature: envFloatOrDefault("CLAUDE_TEMPERATURE", 0.3),

		ProhibitedTermsMode: envOrDefault("PROHIBITED_TERMS_MODE", ProhibitedTermsWarn),
		UndoStore:           envOrDefault("UNDO_STORE", UndoStoreMemory),
		UndoRetention:       envDurationOrDefault("UNDO_RETENTION", 24*time.Hour),
	}
}

// Validate checks every setting and reports all problems at once, so a
// misconfigured deployment fails with the complete list instead of one
// issue per restart.
func (s Settings) Validate() error {
	var issues []string

	if s.DatabaseURL == "" {
		if s.DatabaseUser == "" {
			issues = append(issues, "DATABASE_USER is required when DATABASE_URL is not provided")
		}
		if s.DatabasePassword == "" {
			issues = append(issues, "DATABASE_PASSWORD is required when DATABASE_URL is not provided")
		}
		if s.DatabaseHost == "" {
			issues = append(issues, "DATABASE_HOST is required when DATABASE_URL is not provided")
		}
		if s.DatabaseName == "" {
			issues = append(issues, "DATABASE_NAME is required when DATABASE_URL is not provided")
		}
	}

	if s.OpenAIAPIKey == "" {
		issues = append(issues, "OPENAI_API_KEY is required")
	} else if !strings.HasPrefix(s.OpenAIAPIKey, "sk-") {
		issues = append(issues, "OPENAI_API_KEY appears to be invalid (should start with 'sk-' or 'sk-proj-')")
	}

	if s.AnthropicAPIKey != "" && !strings.HasPrefix(s.AnthropicAPIKey, "sk-ant-") {
		issues = append(issues, "ANTHROPIC_API_KEY appears to be invalid (should start with 'sk-ant-')")
	}

	if len(types.AllowedOrigins()) == 0 {
		issues = append(issues, "ALLOWED_ORIGINS must contain at least one origin")
	}

	switch s.ProhibitedTermsMode {
	case ProhibitedTermsWarn, ProhibitedTermsReject:
	default:
		issues = append(issues, fmt.Sprintf("PROHIBITED_TERMS_MODE must be 'warn' or 'reject', got '%s'", s.ProhibitedTermsMode))
	}

	switch s.UndoStore {
	case UndoStoreMemory, UndoStoreDatabase:
	default:
		issues = append(issues, fmt.Sprintf("UNDO_STORE must be 'memory' or 'database', got '%s'", s.UndoStore))
	}

	if s.UndoRetention < 0 {
		issues = append(issues, "UNDO_RETENTION must not be negative")
	}

	if s.ClaudeMaxTokens <= 0 {
		issues = append(issues, "CLAUDE_MAX_TOKENS must be a positive integer")
	}

	if len(issues) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for _, issue := range issues {
		b.WriteString("  - ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	b.WriteString("Please check your environment variables and ensure all required values are set.")
	return errors.New(b.String())
}

// DSN returns the effective postgres connection string. DATABASE_URL wins
// when set; otherwise the string is assembled from the component settings.
func (s Settings) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		s.DatabaseHost, s.DatabaseUser, s.DatabasePassword, s.DatabaseName, s.DatabasePort, s.DatabaseSSLMode)
}

// SafeSummary reports the loaded configuration without exposing secrets.
// Keys and passwords show up only as configured/not-configured flags.
func (s Settings) SafeSummary() map[string]any {
	return map[string]any{
		"environment":                  s.Environment,
		"port":                         s.Port,
		"database_url_configured":      s.DatabaseURL != "",
		"database_host":                s.DatabaseHost,
		"database_port":                s.DatabasePort,
		"database_name":                s.DatabaseName,
		"openai_api_key_configured":    s.OpenAIAPIKey != "",
		"anthropic_api_key_configured": s.AnthropicAPIKey != "",
		"claude_model":                 s.ClaudeModel,
		"allowed_origins":              types.AllowedOrigins(),
		"prohibited_terms_mode":        s.ProhibitedTermsMode,
		"undo_store":                   s.UndoStore,
		"undo_retention":               s.UndoRetention.String(),
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloatOrDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
