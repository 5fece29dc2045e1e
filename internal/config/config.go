package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Telegram
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailtriage.db"`

	// Semantic classifier backend
	ClassifierURL     string        `env:"CLASSIFIER_URL,required"`
	ClassifierAPIKey  string        `env:"CLASSIFIER_API_KEY,required"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`

	// Pipeline budgets
	FilterTimeout time.Duration `env:"FILTER_TIMEOUT" envDefault:"2m"`
	ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`

	// Candidate pool sizing. The pool is widened to at least this floor
	// because classification yield is well below 100%.
	PoolFloor          int `env:"POOL_FLOOR" envDefault:"100"`
	InsightsSampleSize int `env:"INSIGHTS_SAMPLE_SIZE" envDefault:"10"`

	// IMAP
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Security
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate encryption key length (32 bytes for AES-256)
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}

	if cfg.PoolFloor < 1 {
		return nil, fmt.Errorf("POOL_FLOOR must be positive, got %d", cfg.PoolFloor)
	}

	return cfg, nil
}
