package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every externally tunable knob. Values come from the
// environment; cmd/api loads a .env file first so local runs work without
// exporting anything.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	JWTSecret string `env:"JWT_SECRET,required"`

	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"worldbank"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`

	// OwnerUserID is always authorized and manages the officer set.
	OwnerUserID string `env:"OWNER_USER_ID,required"`

	LedgerBaseURL    string        `env:"LEDGER_BASE_URL,required"`
	LedgerToken      string        `env:"LEDGER_TOKEN,required"`
	LedgerAPIDelay   time.Duration `env:"LEDGER_API_DELAY" envDefault:"1s"`
	LedgerMaxRetries int           `env:"LEDGER_MAX_RETRIES" envDefault:"5"`

	MinTransferAmount float64 `env:"MIN_TRANSFER_AMOUNT" envDefault:"1"`
	MaxTransferAmount float64 `env:"MAX_TRANSFER_AMOUNT" envDefault:"1000000"`
	MinExchangeRate   float64 `env:"MIN_EXCHANGE_RATE" envDefault:"0.01"`
	MaxExchangeRate   float64 `env:"MAX_EXCHANGE_RATE" envDefault:"10000"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MinTransferAmount <= 0 || cfg.MaxTransferAmount < cfg.MinTransferAmount {
		return nil, fmt.Errorf("invalid transfer bounds: min=%v max=%v", cfg.MinTransferAmount, cfg.MaxTransferAmount)
	}
	if cfg.MinExchangeRate <= 0 || cfg.MaxExchangeRate < cfg.MinExchangeRate {
		return nil, fmt.Errorf("invalid rate bounds: min=%v max=%v", cfg.MinExchangeRate, cfg.MaxExchangeRate)
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
