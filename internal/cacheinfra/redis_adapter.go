package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanBatch = 100

// redisService stores cache entries in Redis.
type redisService struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisService validates cfg and connects a go-redis client.
func NewRedisService(cfg Config) (*redisService, error) {
	cfg.Backend = BackendRedis
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisServiceWithClient(client, cfg.TTL), nil
}

// NewRedisServiceWithClient wraps an existing client. defaultTTL applies to
// Set calls with a zero ttl.
func NewRedisServiceWithClient(client *redis.Client, defaultTTL time.Duration) *redisService {
	return &redisService{client: client, defaultTTL: defaultTTL}
}

// Get implements cache.CacheService.Get.
func (s *redisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set implements cache.CacheService.Set.
func (s *redisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements cache.CacheService.Delete.
func (s *redisService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// InvalidateKeys removes keys with a single DEL.
func (s *redisService) InvalidateKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeleteByPrefix implements cache.PrefixInvalidator using SCAN so large
// keyspaces are walked incrementally.
func (s *redisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := prefix + "*"

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying connection pool.
func (s *redisService) Close() error {
	return s.client.Close()
}
