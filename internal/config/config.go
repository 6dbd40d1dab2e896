// Package config loads distributord settings from a YAML file, a .env file
// and DISTRIBUTOR_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DISTRIBUTOR_STORAGE_BACKEND.
const EnvPrefix = "distributor"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all service configuration.
type Config struct {
	Listen string `yaml:"listen" envconfig:"LISTEN"`
	Owner  string `yaml:"owner" envconfig:"OWNER"`

	Storage struct {
		Backend       string `yaml:"backend" envconfig:"BACKEND"`
		PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
		SQLitePath    string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
		ClickHouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
	} `yaml:"storage" envconfig:"STORAGE"`

	Auth struct {
		MaxSkew time.Duration `yaml:"max_skew" envconfig:"MAX_SKEW"`
	} `yaml:"auth" envconfig:"AUTH"`

	Feed struct {
		Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
		Buffer       int           `yaml:"buffer" envconfig:"BUFFER"`
		PingInterval time.Duration `yaml:"ping_interval" envconfig:"PING_INTERVAL"`
	} `yaml:"feed" envconfig:"FEED"`

	Snapshot struct {
		Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
		Cron    string `yaml:"cron" envconfig:"CRON"`
	} `yaml:"snapshot" envconfig:"SNAPSHOT"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Default returns a memory-backed configuration with the feed and snapshot
// job enabled. Owner has no default.
func Default() *Config {
	cfg := &Config{
		Listen:          ":8080",
		ShutdownTimeout: 30 * time.Second,
	}
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.SQLitePath = "data/distributor.db"
	cfg.Auth.MaxSkew = 5 * time.Minute
	cfg.Feed.Enabled = true
	cfg.Feed.Buffer = 256
	cfg.Feed.PingInterval = 30 * time.Second
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Cron = "0 */5 * * * *"
	return cfg
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load applies the YAML file at path (if any) over Default, then the
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("owner must be a hex address, got %q", c.Owner)
	}
	if c.OwnerAddress() == (common.Address{}) {
		return errors.New("owner must not be the zero address")
	}
	if c.Listen == "" {
		return errors.New("listen is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Auth.MaxSkew <= 0 {
		return errors.New("auth.max_skew must be positive")
	}
	if c.Feed.Enabled && c.Feed.Buffer <= 0 {
		return errors.New("feed.buffer must be positive")
	}
	if c.Snapshot.Enabled && c.Snapshot.Cron == "" {
		return errors.New("snapshot.cron is required when snapshots are enabled")
	}
	return nil
}

// OwnerAddress returns the parsed owner address.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}
