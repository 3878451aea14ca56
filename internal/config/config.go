// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/credlens/credlens/internal/engine"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Risk engine overrides. Zero means "use the engine default".
	RiskLowMax           float64
	RiskMediumMax        float64
	RiskMinActivePeriods int

	// Analysis refresh
	AnalysisRefreshInterval time.Duration // how often the timer re-scores stale users
	AnalysisMaxAge          time.Duration // assessments older than this are considered stale

	// Security
	WebhookSecret string // default HMAC secret for outbound webhook signing
	AdminSecret   string // Admin API secret
	RateLimitRPS  int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; tracing disabled when empty
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultRateLimit       = 100
	DefaultRefreshInterval = 1 * time.Hour
	DefaultAssessmentAge   = 24 * time.Hour
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", DefaultPort),
		Env:                     getEnv("ENV", DefaultEnv),
		LogLevel:                getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:               getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:             os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RiskLowMax:              getEnvFloat("RISK_LOW_MAX", 0),
		RiskMediumMax:           getEnvFloat("RISK_MEDIUM_MAX", 0),
		RiskMinActivePeriods:    int(getEnvInt64("RISK_MIN_ACTIVE_PERIODS", 0)),
		AnalysisRefreshInterval: getEnvDuration("ANALYSIS_REFRESH_INTERVAL", DefaultRefreshInterval),
		AnalysisMaxAge:          getEnvDuration("ANALYSIS_MAX_AGE", DefaultAssessmentAge),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		AdminSecret:             os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:            int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration is coherent
func (c *Config) Validate() error {
	if c.AnalysisRefreshInterval < time.Minute {
		return fmt.Errorf("ANALYSIS_REFRESH_INTERVAL must be at least 1m")
	}
	if c.AnalysisMaxAge < c.AnalysisRefreshInterval {
		return fmt.Errorf("ANALYSIS_MAX_AGE must be at least the refresh interval")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	// Engine overrides are validated together with the rest of the engine
	// config, so a bad boundary pair is caught before the server starts.
	if _, err := engine.New(c.EngineConfig()); err != nil {
		return err
	}
	return nil
}

// EngineConfig returns the risk engine configuration: the engine defaults
// with any environment overrides applied.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	if c.RiskLowMax > 0 {
		ec.LowMax = c.RiskLowMax
	}
	if c.RiskMediumMax > 0 {
		ec.MediumMax = c.RiskMediumMax
	}
	if c.RiskMinActivePeriods > 0 {
		ec.MinActivePeriods = c.RiskMinActivePeriods
	}
	return ec
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
