// Package config loads process configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ASSETDESK_SERVER_ADDR.
const EnvPrefix = "ASSETDESK"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	AuthEnabled     bool          `mapstructure:"authEnabled"`
	// Policy is a casbin CSV policy; empty selects the built-in one.
	Policy string `mapstructure:"policy"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend   string `mapstructure:"backend"`
	Root      string `mapstructure:"root"`
	BaseURL   string `mapstructure:"baseURL"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PublicURL string `mapstructure:"publicURL"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RatesConfig struct {
	// Provider is "mock" or "http".
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"baseURL"`
	BaseCurrency string `mapstructure:"baseCurrency"`
	CacheSize    int    `mapstructure:"cacheSize"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

type FormsConfig struct {
	MaxAge      time.Duration `mapstructure:"maxAge"`
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
}

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Log      LogConfig      `mapstructure:"log"`
	Forms    FormsConfig    `mapstructure:"forms"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.authEnabled", true)
	v.SetDefault("server.policy", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:assetdesk.db?_pragma=busy_timeout(5000)")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.root", "media")
	v.SetDefault("storage.baseURL", "/media")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicURL", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rates.provider", "mock")
	v.SetDefault("rates.baseURL", "")
	v.SetDefault("rates.baseCurrency", "USD")
	v.SetDefault("rates.cacheSize", 1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)

	v.SetDefault("forms.maxAge", 2*time.Hour)
	v.SetDefault("forms.idleTimeout", 30*time.Minute)
}

// Load reads .env (when present), then an optional config file, then
// ASSETDESK_* environment variables. Later sources win.
func Load(file string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", file)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects unknown backends and missing settings they need.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite":
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Rates.Provider {
	case "mock":
	case "http":
		if c.Rates.BaseURL == "" {
			return errors.New("rates.baseURL is required for the http provider")
		}
	default:
		return errors.Errorf("unknown rates provider %q", c.Rates.Provider)
	}
	return nil
}
