// Package config reads the client configuration from environment variables
// with command-line flag fallbacks.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Storage backend names accepted by Parse.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the bookshop client settings.
type Config struct {
	APIBaseURL     string `env:"BOOKSHOP_API_URL"`
	StorageBackend string `env:"BOOKSHOP_STORAGE"`
	StorageDir     string `env:"BOOKSHOP_STORAGE_DIR"`
	RedisAddr      string `env:"BOOKSHOP_REDIS_ADDR"`
	RatesURL       string `env:"BOOKSHOP_RATES_URL"`
}

// Parse reads flags and environment variables; environment wins over flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envAPI := cfg.APIBaseURL
	envBackend := cfg.StorageBackend
	envDir := cfg.StorageDir
	envRedis := cfg.RedisAddr
	envRates := cfg.RatesURL

	flag.StringVar(&cfg.APIBaseURL, "a", "http://localhost:8000", "bookshop API base URL")
	flag.StringVar(&cfg.StorageBackend, "s", BackendFile, "snapshot storage backend: file, memory or redis")
	flag.StringVar(&cfg.StorageDir, "d", ".bookshop", "directory for the file storage backend")
	flag.StringVar(&cfg.RedisAddr, "r", "localhost:6379", "redis address for the redis storage backend")
	flag.StringVar(&cfg.RatesURL, "x", "", "exchange-rates endpoint (empty = fallback rates)")

	flag.Parse()

	if envAPI != "" {
		cfg.APIBaseURL = envAPI
	}
	if envBackend != "" {
		cfg.StorageBackend = envBackend
	}
	if envDir != "" {
		cfg.StorageDir = envDir
	}
	if envRedis != "" {
		cfg.RedisAddr = envRedis
	}
	if envRates != "" {
		cfg.RatesURL = envRates
	}

	switch cfg.StorageBackend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return cfg, nil
}
