package di

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/cache"
	"github.com/goliatone/go-model/internal/datasetinfra"
	"github.com/tailscale/hujson"
)

// Config wires a Container. A nil Cache leaves types without a cache
// backend; CacheBy finders then query the database on every call.
type Config struct {
	Database datasetinfra.Config
	Cache    *cache.Config
	// LogLevel is one of debug, info, warn or error. Empty means info.
	LogLevel string
}

// DefaultConfig returns an in-memory SQLite database with the default
// in-process cache.
func DefaultConfig() Config {
	cacheCfg := cache.DefaultConfig()
	return Config{
		Database: datasetinfra.DefaultConfig(),
		Cache:    &cacheCfg,
		LogLevel: "info",
	}
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "error")),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid container configuration")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Cache != nil {
		if err := c.Cache.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) level() slog.Level {
	var level slog.Level
	if c.LogLevel != "" {
		// validated, cannot fail
		_ = level.UnmarshalText([]byte(c.LogLevel))
	}
	return level
}

// fileConfig is the on-disk shape. Durations are strings such as "5m".
type fileConfig struct {
	LogLevel string `json:"log_level"`
	Database struct {
		Driver          string `json:"driver"`
		DSN             string `json:"dsn"`
		MaxOpenConns    int    `json:"max_open_conns"`
		ConnMaxLifetime string `json:"conn_max_lifetime"`
	} `json:"database"`
	Cache *struct {
		Backend            string            `json:"backend"`
		Capacity           int               `json:"capacity"`
		NumShards          int               `json:"num_shards"`
		TTL                string            `json:"ttl"`
		EvictionPercentage int               `json:"eviction_percentage"`
		EvictionInterval   string            `json:"eviction_interval"`
		Redis              cache.RedisConfig `json:"redis"`
	} `json:"cache"`
}

// LoadConfig reads a HuJSON (JSON with comments and trailing commas)
// configuration file. Unset fields keep their DefaultConfig values; a file
// without a "cache" object disables caching.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "read config file").
			WithTextCode("CONFIG_READ_FAILED").
			WithMetadata(map[string]any{"path": path})
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "invalid config file "+path).
			WithTextCode("CONFIG_INVALID")
	}
	return cfg, nil
}

// ParseConfig decodes and validates HuJSON configuration data.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Cache = nil
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}

	db := &cfg.Database
	if raw.Database.Driver != "" {
		db.Driver = raw.Database.Driver
	}
	if raw.Database.DSN != "" {
		db.DSN = raw.Database.DSN
	}
	if raw.Database.MaxOpenConns != 0 {
		db.MaxOpenConns = raw.Database.MaxOpenConns
	}
	if db.ConnMaxLifetime, err = parseDuration(raw.Database.ConnMaxLifetime, db.ConnMaxLifetime); err != nil {
		return Config{}, err
	}

	if rc := raw.Cache; rc != nil {
		cc := cache.DefaultConfig()
		if rc.Backend != "" {
			cc.Backend = rc.Backend
		}
		if rc.Capacity != 0 {
			cc.Capacity = rc.Capacity
		}
		if rc.NumShards != 0 {
			cc.NumShards = rc.NumShards
		}
		if rc.EvictionPercentage != 0 {
			cc.EvictionPercentage = rc.EvictionPercentage
		}
		if cc.TTL, err = parseDuration(rc.TTL, cc.TTL); err != nil {
			return Config{}, err
		}
		if cc.EvictionInterval, err = parseDuration(rc.EvictionInterval, cc.EvictionInterval); err != nil {
			return Config{}, err
		}
		cc.Redis = rc.Redis
		cfg.Cache = &cc
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryBadInput, "invalid duration "+s).
			WithTextCode("INVALID_DURATION")
	}
	return d, nil
}
