// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreHTTP     = "http"
)

// AssistantConfig holds configuration for the chat assistant service.
type AssistantConfig struct {
	ServiceName string `envDefault:"portfolio-assistant" env:"SERVICE_NAME"`
	HTTPAddr    string `envDefault:":8080"               env:"HTTP_ADDR"`

	// Logging
	LogLevel      string `envDefault:"info" env:"LOG_LEVEL"`
	LogFormat     string `envDefault:"text" env:"LOG_FORMAT"`
	LogFile       string `envDefault:""     env:"LOG_FILE"`
	LogMaxSizeMB  int    `envDefault:"10"   env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `envDefault:"5"    env:"LOG_MAX_BACKUPS"`

	// Conversation
	CatalogDir       string        `envDefault:""          env:"CATALOG_DIR"`
	CatalogName      string        `envDefault:"portfolio" env:"CATALOG_NAME"`
	MaxSlotRetries   int           `envDefault:"0"         env:"MAX_SLOT_RETRIES"`
	SessionTTL       time.Duration `envDefault:"30m"       env:"SESSION_TTL"`
	MaxMessageLength int           `envDefault:"2000"      env:"MAX_MESSAGE_LENGTH"`

	// HTTP surface
	AllowedOrigins []string `envDefault:"*" env:"ALLOWED_ORIGINS" envSeparator:","`
	AdminToken     string   `envDefault:""  env:"ADMIN_TOKEN"`

	// Message store
	StoreBackend    string `envDefault:"memory"             env:"STORE_BACKEND"`
	StoreFile       string `envDefault:"./data/messages.json" env:"STORE_FILE"`
	DatabaseURL     string `envDefault:""                   env:"DATABASE_URL"`
	ContactAPIURL   string `envDefault:""                   env:"CONTACT_API_URL"`
	ContactAPIToken string `envDefault:""                   env:"CONTACT_API_TOKEN"`

	// Events
	NATSURL      string `envDefault:""     env:"NATS_URL"`
	EventSubject string `envDefault:"chat" env:"EVENT_SUBJECT"`

	// Webhooks
	WebhookURLs       []string      `env:"WEBHOOK_URLS" envSeparator:","`
	WebhookSecret     string        `envDefault:""    env:"WEBHOOK_SECRET"`
	WebhookWorkers    int           `envDefault:"16"  env:"WEBHOOK_WORKERS"`
	WebhookMaxRetries int           `envDefault:"5"   env:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeout    time.Duration `envDefault:"10s" env:"WEBHOOK_TIMEOUT"`
	WebhookBackoff    time.Duration `envDefault:"1s"  env:"WEBHOOK_BACKOFF_INITIAL"`
	WebhookBackoffMax time.Duration `envDefault:"5m"  env:"WEBHOOK_BACKOFF_MAX"`
	CBFailThreshold   uint32        `envDefault:"5"   env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeout    time.Duration `envDefault:"60s" env:"CB_RESET_TIMEOUT"`

	ShutdownTimeout time.Duration `envDefault:"15s" env:"SHUTDOWN_TIMEOUT"`
}

// ChatConfig holds configuration for the terminal chat client.
type ChatConfig struct {
	LogLevel       string `envDefault:"warn"                 env:"LOG_LEVEL"`
	CatalogDir     string `envDefault:""                     env:"CATALOG_DIR"`
	CatalogName    string `envDefault:"portfolio"            env:"CATALOG_NAME"`
	MaxSlotRetries int    `envDefault:"0"                    env:"MAX_SLOT_RETRIES"`
	StoreFile      string `envDefault:"./data/messages.json" env:"STORE_FILE"`
}

// Validate checks cross-field constraints env tags cannot express.
func (c *AssistantConfig) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreFile:
		if c.StoreFile == "" {
			return errors.New("STORE_FILE is required for the file store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreHTTP:
		if c.ContactAPIURL == "" {
			return errors.New("CONTACT_API_URL is required for the http store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxSlotRetries < 0 {
		return errors.New("MAX_SLOT_RETRIES must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required when WEBHOOK_URLS is set")
	}
	return nil
}

// Load reads an optional .env file, then parses T from the environment.
// Variables already set in the environment win over the file.
func Load[T any](dotenv ...string) (T, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var zero T
		return zero, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := env.ParseAs[T]()
	if err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// LoadAssistant loads and validates AssistantConfig.
func LoadAssistant(dotenv ...string) (AssistantConfig, error) {
	cfg, err := Load[AssistantConfig](dotenv...)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
