// Package config loads the service configuration and the workflow definitions.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "KANBAN"

// Config is the root configuration of the kanban service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Workflows WorkflowsConfig `mapstructure:"workflows"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the backends. An empty Redis address keeps inventory
// and locks in process; an empty MySQL DSN does the same for kanbans, jobs and
// orders.
type StorageConfig struct {
	Redis        RedisConfig `mapstructure:"redis"`
	MySQL        MySQLConfig `mapstructure:"mysql"`
	SeedMockData bool        `mapstructure:"seed_mock_data"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	PoolSize int           `mapstructure:"pool_size"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkflowsConfig points at a YAML file of workflow definitions. Empty means
// the built-in workflows.
type WorkflowsConfig struct {
	File string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.redis.addr", "")
	v.SetDefault("storage.redis.pool_size", 100)
	v.SetDefault("storage.redis.lock_ttl", 10*time.Second)
	v.SetDefault("storage.mysql.dsn", "")
	v.SetDefault("storage.mysql.max_open_conns", 50)
	v.SetDefault("storage.mysql.max_idle_conns", 25)
	v.SetDefault("storage.mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("storage.seed_mock_data", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("workflows.file", "")
}

// Load reads path (if non-empty) on top of the defaults, then applies
// KANBAN_* environment overrides such as KANBAN_STORAGE_REDIS_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: at least one of http_addr and grpc_addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Storage.Redis.Addr != "" && c.Storage.Redis.PoolSize < 1 {
		errs = append(errs, errors.New("storage.redis.pool_size must be at least 1"))
	}
	if c.Storage.MySQL.DSN != "" && c.Storage.MySQL.MaxOpenConns < 1 {
		errs = append(errs, errors.New("storage.mysql.max_open_conns must be at least 1"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
