// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Failed-job escrow policies.
const (
	PolicyTreasury = "treasury" // forfeited escrow accrues to the treasury pool
	PolicyRefund   = "refund"   // forfeited escrow returns to the requester's payout balance
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Marketplace settings
	RegistrationFee     int64  // tokens an agent must pay to register
	SpecialtyMatchBonus int    // score bonus when a job description mentions the specialty
	FailedJobPolicy     string // PolicyTreasury or PolicyRefund

	// Tracing
	OTLPEndpoint string // OTLP gRPC collector; tracing is a no-op when empty
}

const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultRegistrationFee     = 10
	DefaultSpecialtyMatchBonus = 20
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RegistrationFee:     getEnvInt64("REGISTRATION_FEE", DefaultRegistrationFee),
		SpecialtyMatchBonus: int(getEnvInt64("SPECIALTY_MATCH_BONUS", DefaultSpecialtyMatchBonus)),
		FailedJobPolicy:     getEnv("FAILED_JOB_POLICY", PolicyTreasury),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.RegistrationFee <= 0 {
		return fmt.Errorf("REGISTRATION_FEE must be a positive token amount, got %d", c.RegistrationFee)
	}
	if c.SpecialtyMatchBonus < 0 {
		return fmt.Errorf("SPECIALTY_MATCH_BONUS must not be negative, got %d", c.SpecialtyMatchBonus)
	}
	if c.FailedJobPolicy != PolicyTreasury && c.FailedJobPolicy != PolicyRefund {
		return fmt.Errorf("FAILED_JOB_POLICY must be %q or %q, got %q", PolicyTreasury, PolicyRefund, c.FailedJobPolicy)
	}
	return nil
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
