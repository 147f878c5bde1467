package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port           string
	StoreDriver    string
	DBConn         string
	MigrateOnStart bool
	LogLevel       string
	LogFormat      string
	JWTSecret      string
	TokenTTL       time.Duration

	RecurrenceMode           string
	RecurrenceMaxOccurrences int
	SweepSchedule            string

	CORSOrigins    []string
	CurrencySymbol string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	maxOccurrences, err := strconv.Atoi(getEnv("RECURRENCE_MAX_OCCURRENCES", "366"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECURRENCE_MAX_OCCURRENCES: %w", err)
	}
	migrateOnStart, err := strconv.ParseBool(getEnv("MIGRATE_ON_START", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
	}

	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		StoreDriver:              getEnv("STORE_DRIVER", StoreDriverPostgres),
		DBConn:                   getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=fintrack sslmode=disable"),
		MigrateOnStart:           migrateOnStart,
		LogLevel:                 getEnv("LOG_LEVEL", "INFO"),
		LogFormat:                getEnv("LOG_FORMAT", "json"),
		JWTSecret:                getEnv("JWT_SECRET", "secret"),
		TokenTTL:                 ttl,
		RecurrenceMode:           getEnv("RECURRENCE_MODE", "catch-up"),
		RecurrenceMaxOccurrences: maxOccurrences,
		SweepSchedule:            getEnv("SWEEP_SCHEDULE", ""),
		CORSOrigins:              splitList(getEnv("CORS_ORIGINS", "*")),
		CurrencySymbol:           getEnv("CURRENCY_SYMBOL", "₹"),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 getEnv("SMTP_PORT", "587"),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SenderEmail:              getEnv("SENDER_EMAIL", "noreply@fintrack.local"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.RecurrenceMode != "catch-up" && c.RecurrenceMode != "single-step" {
		return fmt.Errorf("unknown RECURRENCE_MODE %q", c.RecurrenceMode)
	}
	if c.RecurrenceMaxOccurrences <= 0 {
		return fmt.Errorf("RECURRENCE_MAX_OCCURRENCES must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.SMTPHost != "" && c.SenderEmail == "" {
		return fmt.Errorf("SENDER_EMAIL is required when SMTP_HOST is set")
	}
	return nil
}

// NotificationsEnabled reports whether an SMTP server is configured
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
