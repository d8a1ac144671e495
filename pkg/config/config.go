// Copyright 2025 Certen Protocol
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"os"
)

// Config holds all configuration for the webvh hosting service.
type Config struct {
	// Server Configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Domain is the public hostname this service hosts did:webvh
	// identifiers under (the "domain" segment of every DID it issues).
	Domain string

	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds
	DatabaseRequired    bool

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// AdminAPIKey authorizes the /admin/* policy and witness-registry
	// management routes.
	AdminAPIKey string

	// Default Policy Configuration — the policy this service reconciles
	// into pkg/policy's Store at startup when no stored policy exists yet.
	PolicyWitnessRequired bool
	PolicyWatcher         string
	PolicyPortability     bool
	PolicyPrerotation     bool
	PolicyEndorsement     bool
	PolicyValidity        int
	WitnessRegistryURL    string

	// InitialWitnesses seeds the known-witness registry at startup: a
	// comma-separated list of bare Ed25519 multikeys (z6Mk...).
	InitialWitnesses []string

	// Tails storage
	TailsDir string

	LogLevel string
}

// Load reads configuration from environment variables. Required variables
// have no defaults and must be explicitly set; call Validate() after Load()
// before starting the service.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		Domain: getEnv("WEBVH_DOMAIN", ""),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", true),

		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		PolicyWitnessRequired: getEnvBool("POLICY_WITNESS_REQUIRED", false),
		PolicyWatcher:         getEnv("POLICY_WATCHER", ""),
		PolicyPortability:     getEnvBool("POLICY_PORTABILITY", false),
		PolicyPrerotation:     getEnvBool("POLICY_PREROTATION", false),
		PolicyEndorsement:     getEnvBool("POLICY_ENDORSEMENT", false),
		PolicyValidity:        getEnvInt("POLICY_VALIDITY", 0),
		WitnessRegistryURL:    getEnv("WITNESS_REGISTRY_URL", ""),

		InitialWitnesses: parseList(getEnv("INITIAL_WITNESSES", "")),

		TailsDir: getEnv("TAILS_DIR", "./data/tails"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and secure.
func (c *Config) Validate() error {
	var errs []string

	if c.Domain == "" {
		errs = append(errs, "WEBVH_DOMAIN is required but not set")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	} else if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		errs = append(errs, "DATABASE_URL must not disable TLS in production (sslmode=disable found)")
	}
	if c.AdminAPIKey == "" {
		errs = append(errs, "ADMIN_API_KEY is required but not set")
	} else if len(c.AdminAPIKey) < 16 {
		errs = append(errs, "ADMIN_API_KEY must be at least 16 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development. Do not use in production — use Validate() instead.
func (c *Config) ValidateForDevelopment() error {
	if c.Domain == "" {
		return fmt.Errorf("development configuration validation failed:\n  - WEBVH_DOMAIN is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
