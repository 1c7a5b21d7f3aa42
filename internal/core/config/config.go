// Package config handles configuration loading and validation for cadence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/colonyops/cadence/internal/core/actor"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported pointer backends.
const (
	PointersSQL   = "sql"
	PointersRedis = "redis"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Pointers PointersConfig `yaml:"pointers"`
	Reset    ResetConfig    `yaml:"reset"`
	Actor    actor.Actor    `yaml:"actor"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// DatabaseConfig selects and tunes the SQL store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite or postgres
	DSN          string `yaml:"dsn"`    // required for postgres
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	BusyTimeout  int    `yaml:"busy_timeout"` // milliseconds, sqlite only
}

// PointersConfig selects where period pointers live.
type PointersConfig struct {
	Backend string      `yaml:"backend"` // sql or redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the connection used by the redis pointer backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ResetConfig tunes reset passes.
type ResetConfig struct {
	Workers  int           `yaml:"workers"`  // items evaluated concurrently
	Interval time.Duration `yaml:"interval"` // pause between passes in watch mode
}

// MetricsConfig configures the Prometheus endpoint served by watch.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		Pointers: PointersConfig{
			Backend: PointersSQL,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "cadence:pointer:",
			},
		},
		Reset: ResetConfig{
			Workers:  4,
			Interval: 5 * time.Minute,
		},
	}
}

// Load reads configuration from configPath. A missing file yields the
// defaults.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values a partial config file left behind.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Database.Driver
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Pointers.Backend == "" {
		c.Pointers.Backend = defaults.Pointers.Backend
	}
	if c.Pointers.Redis.Prefix == "" {
		c.Pointers.Redis.Prefix = defaults.Pointers.Redis.Prefix
	}
	if c.Reset.Workers == 0 {
		c.Reset.Workers = defaults.Reset.Workers
	}
	if c.Reset.Interval == 0 {
		c.Reset.Interval = defaults.Reset.Interval
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("data_dir", c.DataDir, required),
		criterio.Run("database.driver", c.Database.Driver, oneOf(DriverSQLite, DriverPostgres)),
		c.validateDSN(),
		criterio.Run("database.max_open_conns", c.Database.MaxOpenConns, atLeast(1)),
		criterio.Run("database.max_idle_conns", c.Database.MaxIdleConns, atLeast(0)),
		criterio.Run("database.busy_timeout", c.Database.BusyTimeout, atLeast(0)),
		criterio.Run("pointers.backend", c.Pointers.Backend, oneOf(PointersSQL, PointersRedis)),
		c.validateRedis(),
		criterio.Run("reset.workers", c.Reset.Workers, atLeast(1)),
		criterio.Run("reset.interval", c.Reset.Interval, minDuration(time.Second)),
	)
}

func (c *Config) validateDSN() error {
	if c.Database.Driver != DriverPostgres {
		return nil
	}
	return criterio.Run("database.dsn", c.Database.DSN, required)
}

func (c *Config) validateRedis() error {
	if c.Pointers.Backend != PointersRedis {
		return nil
	}
	return criterio.ValidateStruct(
		criterio.Run("pointers.redis.addr", c.Pointers.Redis.Addr, required),
		criterio.Run("pointers.redis.db", c.Pointers.Redis.DB, atLeast(0)),
	)
}
