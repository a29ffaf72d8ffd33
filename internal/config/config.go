// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all tunables for the server process.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DatabaseDSN enables the PostgreSQL backend when set; the in-memory
	// reference stores are used otherwise.
	DatabaseDSN string `env:"DATABASE_DSN"`

	// JWTKey signs download tokens (required).
	JWTKey string `env:"JWT_KEY,required"`

	// SettlementDelay models payment-gateway latency before a purchase settles.
	SettlementDelay time.Duration `env:"SETTLEMENT_DELAY" envDefault:"2s"`

	// SettlementSuccessRate is the probability a settlement succeeds (0..1).
	SettlementSuccessRate float64 `env:"SETTLEMENT_SUCCESS_RATE" envDefault:"0.95"`

	// TokenTTL is the download token validity window.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"4h"`

	// MaxDownloads caps lifetime downloads per entitlement and per token session.
	MaxDownloads int `env:"MAX_DOWNLOADS" envDefault:"5"`

	// FallbackRegion serves countries missing from the region table.
	FallbackRegion string `env:"FALLBACK_REGION" envDefault:"south-america"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SettlementSuccessRate < 0 || cfg.SettlementSuccessRate > 1 {
		return Config{}, fmt.Errorf("settlement success rate out of range: %v", cfg.SettlementSuccessRate)
	}
	return cfg, nil
}
