// Package config loads the cartservice settings.
//
// Precedence, lowest first: built-in defaults, the TOML file named by
// CART_CONFIG, a .env file in the working directory, the process environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/subosito/gotenv"
)

// Config holds the cartservice settings.
type Config struct {
	GRPCPort       string        `toml:"grpc_port"`
	HTTPPort       string        `toml:"http_port"`
	Storage        string        `toml:"storage"`
	DBPath         string        `toml:"db_path"`
	RedisAddr      string        `toml:"redis_addr"`
	StorageKey     string        `toml:"storage_key"`
	PersistTimeout time.Duration `toml:"persist_timeout"`
	LogLevel       string        `toml:"log_level"`
	EnableTracing  bool          `toml:"enable_tracing"`
	OTLPEndpoint   string        `toml:"otlp_endpoint"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		GRPCPort:       "7070",
		HTTPPort:       "8080",
		Storage:        "bunt",
		DBPath:         "cart.db",
		StorageKey:     "@Gomarketplace:product",
		PersistTimeout: 5 * time.Second,
		LogLevel:       "info",
		OTLPEndpoint:   "localhost:4317",
	}
}

// Load reads the configuration using ".env" as the dotenv file.
func Load() (Config, error) {
	return load(".env")
}

func load(envFile string) (Config, error) {
	if envFile != "" {
		// gotenv never overrides variables already set in the environment.
		if err := gotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	}

	cfg := Default()
	if path := os.Getenv("CART_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decode %s", path)
		}
	}

	setString(&cfg.GRPCPort, "PORT")
	setString(&cfg.HTTPPort, "HTTP_PORT")
	setString(&cfg.Storage, "CART_STORAGE")
	setString(&cfg.DBPath, "CART_DB_PATH")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.StorageKey, "CART_STORAGE_KEY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v := os.Getenv("CART_PERSIST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "CART_PERSIST_TIMEOUT")
		}
		cfg.PersistTimeout = d
	}
	if v := os.Getenv("ENABLE_TRACING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "ENABLE_TRACING")
		}
		cfg.EnableTracing = b
	}

	if cfg.StorageKey == "" {
		return Config{}, errors.New("storage key must not be empty")
	}
	if cfg.PersistTimeout <= 0 {
		return Config{}, errors.New("persist timeout must be positive")
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
