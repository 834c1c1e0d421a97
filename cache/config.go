package cache

import (
	"time"

	"github.com/goliatone/go-model/internal/cacheinfra"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = cacheinfra.BackendMemory
	BackendRedis  = cacheinfra.BackendRedis
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            string        `json:"backend"`
	Capacity           int           `json:"capacity"`
	NumShards          int           `json:"num_shards"`
	TTL                time.Duration `json:"ttl"`
	EvictionPercentage int           `json:"eviction_percentage"`
	EvictionInterval   time.Duration `json:"eviction_interval"`
	Redis              RedisConfig   `json:"redis"`
}

// RedisConfig mirrors the Redis connection settings of the backend.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the cache service selected by cfg.Backend.
// The returned service also implements PrefixInvalidator.
func NewCacheService(cfg Config) (CacheService, error) {
	internal := cfg.toInternal()
	if internal.Backend == BackendRedis {
		svc, err := cacheinfra.NewRedisService(internal)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}

	svc, err := cacheinfra.NewSturdycService(internal)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		Redis: cacheinfra.RedisConfig{
			Addr:     c.Redis.Addr,
			Username: c.Redis.Username,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		},
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		Redis: RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	}
}
