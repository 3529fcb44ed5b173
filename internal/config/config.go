// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Documents. Locations are file paths, http(s):// URLs, s3://bucket/key
	// or postgres: locations; see source.Open.
	TariffsSource      string
	HealthScoresSource string
	TariffsDocument    string // row name for postgres locations
	FetchTimeout       time.Duration
	FetchAttempts      int
	ReloadInterval     time.Duration // 0 disables periodic catalog reloads

	// Database (optional)
	DatabaseURL string

	// S3-compatible storage (optional)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Secure    bool

	// Editor
	EditorEnabled    bool
	EditorSessionTTL time.Duration

	// Security
	RateLimitRPM   int
	AllowedOrigins []string
	MaxBodyBytes   int64

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultTariffsSource      = "data/tariffs.json"
	DefaultHealthScoresSource = "data/healthScores.json"
	DefaultTariffsDocument    = "tariffs"
	DefaultFetchTimeout       = 10 * time.Second
	DefaultFetchAttempts      = 3
	DefaultSessionTTL         = 2 * time.Hour
	DefaultRateLimitRPM       = 300
	DefaultMaxBodyBytes       = 1 << 20
)

// Load reads configuration from environment variables.
// A .env file is loaded first when present (local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		TariffsSource:      getEnv("TARIFFS_SOURCE", DefaultTariffsSource),
		HealthScoresSource: getEnv("HEALTH_SCORES_SOURCE", DefaultHealthScoresSource),
		TariffsDocument:    getEnv("TARIFFS_DOCUMENT", DefaultTariffsDocument),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", DefaultFetchTimeout),
		FetchAttempts:      int(getEnvInt64("FETCH_ATTEMPTS", DefaultFetchAttempts)),
		ReloadInterval:     getEnvDuration("RELOAD_INTERVAL", 0),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3Region:           os.Getenv("S3_REGION"),
		S3Secure:           getEnvBool("S3_SECURE", true),
		EditorEnabled:      getEnvBool("EDITOR_ENABLED", true),
		EditorSessionTTL:   getEnvDuration("EDITOR_SESSION_TTL", DefaultSessionTTL),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS"),
		MaxBodyBytes:       getEnvInt64("MAX_BODY_BYTES", DefaultMaxBodyBytes),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if strings.TrimSpace(c.TariffsSource) == "" {
		return fmt.Errorf("TARIFFS_SOURCE is required")
	}
	if strings.HasPrefix(c.TariffsSource, "s3://") && c.S3Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required for s3:// sources")
	}
	if strings.HasPrefix(c.TariffsSource, "postgres:") &&
		!strings.HasPrefix(c.TariffsSource, "postgres://") && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for postgres: sources")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("FETCH_ATTEMPTS must be at least 1")
	}
	if c.EditorEnabled && c.EditorSessionTTL < time.Minute {
		return fmt.Errorf("EDITOR_SESSION_TTL must be at least 1m")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
