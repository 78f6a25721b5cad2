// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends and index modes selectable via environment.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"

	IndexScan    = "scan"
	IndexReverse = "reverse"
)

// Config is the full process configuration, loaded from LOOPD_* environment
// variables (a .env file is honored via godotenv in main).
type Config struct {
	Host     string `default:"" split_words:"true"`
	Port     int    `default:"8080" split_words:"true"`
	LogLevel string `default:"info" split_words:"true"`

	StoreBackend string `default:"memory" split_words:"true"`
	BadgerPath   string `default:"data/rooms" split_words:"true"`
	PostgresDSN  string `split_words:"true"`

	IndexMode string `default:"scan" split_words:"true"`

	EventsEnabled bool   `default:"false" split_words:"true"`
	RedisAddr     string `default:"localhost:6379" split_words:"true"`
	RedisDB       int    `default:"0" split_words:"true"`
	EventQueue    string `default:"" split_words:"true"`

	VenueCatalogPath string `split_words:"true"`

	AutoCloseAfter  time.Duration `default:"1h" split_words:"true"`
	ScheduleGrace   time.Duration `default:"1m" split_words:"true"`
	ScheduleHorizon time.Duration `default:"2h" split_words:"true"`
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("loopd", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch cfg.StoreBackend {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("LOOPD_POSTGRES_DSN is required for the postgres store backend")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.IndexMode {
	case IndexScan, IndexReverse:
	default:
		return nil, fmt.Errorf("unknown index mode %q", cfg.IndexMode)
	}
	return &cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
