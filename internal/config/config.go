// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database (optional, uses in-memory stores if not set)
	DatabaseURL string

	// Anomaly scoring collaborator
	ScoringURL     string
	ScoringTimeout time.Duration

	// Fraud reporting collaborator
	ReportingURL      string
	ReportingEntityID string

	// Batch processing
	BatchWorkers int

	// Rules watcher poll interval (0 disables the watcher)
	RulesPollInterval time.Duration

	// Rate limiting
	RateLimitRPM int

	// Tracing (OTLP gRPC endpoint, empty disables)
	OTLPEndpoint string
}

// Defaults.
const (
	DefaultPort              = "8000"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultScoringURL        = "http://localhost:8100/mlpredict"
	DefaultScoringTimeout    = 30 * time.Second
	DefaultReportingURL      = "http://localhost:8200/report"
	DefaultReportingEntityID = "system"
	DefaultBatchWorkers      = 8
	DefaultRulesPollInterval = 15 * time.Second
	DefaultRateLimitRPM      = 120
)

// Load reads configuration from environment variables. A .env file is
// loaded first when present (local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ScoringURL:        getEnv("SCORING_URL", DefaultScoringURL),
		ScoringTimeout:    getEnvDuration("SCORING_TIMEOUT", DefaultScoringTimeout),
		ReportingURL:      getEnv("REPORTING_URL", DefaultReportingURL),
		ReportingEntityID: getEnv("REPORTING_ENTITY_ID", DefaultReportingEntityID),
		BatchWorkers:      int(getEnvInt64("BATCH_WORKERS", DefaultBatchWorkers)),
		RulesPollInterval: getEnvDuration("RULES_POLL_INTERVAL", DefaultRulesPollInterval),
		RateLimitRPM:      int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ScoringURL == "" {
		return fmt.Errorf("SCORING_URL is required")
	}
	if _, err := url.ParseRequestURI(c.ScoringURL); err != nil {
		return fmt.Errorf("SCORING_URL is not a valid URL: %w", err)
	}
	if c.ReportingURL != "" {
		if _, err := url.ParseRequestURI(c.ReportingURL); err != nil {
			return fmt.Errorf("REPORTING_URL is not a valid URL: %w", err)
		}
	}
	if c.ScoringTimeout <= 0 {
		return fmt.Errorf("SCORING_TIMEOUT must be positive")
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
