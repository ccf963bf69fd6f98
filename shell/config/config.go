package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "LIBRARY"

const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLX     = "sqlx"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

var (
	// ErrInvalidConfig is returned when a loaded value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Library  LibraryConfig  `mapstructure:"library"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects the driver and tunes the connection pool.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	ReplicaDSN      string        `mapstructure:"replica_dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// LibraryConfig holds the lending rules.
type LibraryConfig struct {
	LoanPeriod time.Duration `mapstructure:"loan_period"`
}

// CacheConfig configures the redis report cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	Prefix    string        `mapstructure:"prefix"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the config file at path (optional, empty means "look for config.yaml in . and ./config"),
// applies LIBRARY_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPGX)
	v.SetDefault("database.dsn", DefaultDSN())
	v.SetDefault("database.replica_dsn", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("library.loan_period", 14*24*time.Hour)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prefix", "library:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", LogFormatJSON)
}

// Validate checks the value ranges Load cannot express through defaults.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPGX, DriverPostgres, DriverSQLX:
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if c.Database.DSN == "" {
		return errors.Join(ErrInvalidConfig, errors.New("database dsn must not be empty"))
	}

	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return errors.Join(ErrInvalidConfig, errors.New("database pool needs 0 <= min_conns <= max_conns and max_conns >= 1"))
	}

	if c.Library.LoanPeriod <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("library loan period must be positive"))
	}

	if c.Cache.Enabled && (c.Cache.RedisAddr == "" || c.Cache.TTL <= 0) {
		return errors.Join(ErrInvalidConfig, errors.New("enabled cache needs a redis address and a positive ttl"))
	}

	if c.Cache.Enabled && c.Cache.Prefix == "" {
		return errors.Join(ErrInvalidConfig, errors.New("enabled cache needs a key prefix"))
	}

	switch c.Log.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return nil
}
