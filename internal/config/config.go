package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Services ServicesConfig
	Worker   WorkerConfig
	Sender   SenderConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	ResendAPIKey       string
	ResendAPIBaseURL   string
	PrimaryDoHResolver string
	BackupDoHResolver  string
}

// WorkerConfig holds scheduler configuration for the workflow worker
type WorkerConfig struct {
	TickInterval      time.Duration
	ReconcileInterval time.Duration
	ClaimLease        time.Duration
}

// SenderConfig holds campaign batch sender policy
type SenderConfig struct {
	// MarkSentWhenAllFail controls campaign finalization when every
	// recipient send errored. When false the campaign is finalized as
	// failed instead of sent.
	MarkSentWhenAllFail bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Services configuration
	if cfg.Services.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Services.ResendAPIBaseURL = getEnvWithDefault("RESEND_API_BASE_URL", "https://api.resend.com")
	cfg.Services.PrimaryDoHResolver = getEnvWithDefault("PRIMARY_DOH_RESOLVER", "https://dns.google/resolve")
	cfg.Services.BackupDoHResolver = getEnvWithDefault("BACKUP_DOH_RESOLVER", "https://cloudflare-dns.com/dns-query")

	// Worker configuration
	cfg.Worker.TickInterval, err = durationEnv("WORKFLOW_TICK_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Worker.ReconcileInterval, err = durationEnv("ENROLLMENT_RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Worker.ClaimLease, err = durationEnv("EXECUTION_CLAIM_LEASE", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	// Sender policy
	cfg.Sender.MarkSentWhenAllFail = getEnvWithDefault("MARK_SENT_WHEN_ALL_FAIL", "false") == "true"

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// durationEnv parses a duration environment variable with a fallback default
func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}
