package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// sturdycService stores raw bytes in sturdyc clients.
//
// A sturdyc client has a single TTL fixed at construction, so one client is
// kept per distinct expiration and an index remembers which client owns each
// key.
type sturdycService struct {
	cfg     Config
	clients *xsync.MapOf[time.Duration, *sturdyc.Client[[]byte]]
	owners  *xsync.MapOf[string, time.Duration]
}

// NewSturdycService creates a new sturdyc cache service adapter.
// It validates the configuration; clients are created lazily per TTL with
// the Capacity, NumShards and EvictionPercentage settings from cfg.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &sturdycService{
		cfg:     cfg,
		clients: xsync.NewMapOf[time.Duration, *sturdyc.Client[[]byte]](),
		owners:  xsync.NewMapOf[string, time.Duration](),
	}, nil
}

func (s *sturdycService) client(ttl time.Duration) *sturdyc.Client[[]byte] {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	client, _ := s.clients.LoadOrCompute(ttl, func() *sturdyc.Client[[]byte] {
		return sturdyc.New[[]byte](
			s.cfg.Capacity,
			s.cfg.NumShards,
			ttl,
			s.cfg.EvictionPercentage,
			s.cfg.ToSturdycOptions()...,
		)
	})
	return client
}

// Get implements cache.CacheService.Get.
func (s *sturdycService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ttl, ok := s.owners.Load(key)
	if !ok {
		return nil, false, nil
	}

	value, ok := s.client(ttl).Get(key)
	if !ok {
		// expired or evicted
		s.owners.Delete(key)
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements cache.CacheService.Set. A zero ttl uses Config.TTL.
func (s *sturdycService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}

	if prev, ok := s.owners.Load(key); ok && prev != ttl {
		s.client(prev).Delete(key)
	}

	s.client(ttl).Set(key, append([]byte(nil), value...))
	s.owners.Store(key, ttl)
	return nil
}

// Delete implements cache.CacheService.Delete.
// Removes a single entry from the cache using the provided key.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	if ttl, ok := s.owners.LoadAndDelete(key); ok {
		s.client(ttl).Delete(key)
	}
	return nil
}

// DeleteByPrefix implements cache.PrefixInvalidator.
// Removes all entries from the cache that have keys starting with the given prefix.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.clients.Range(func(_ time.Duration, client *sturdyc.Client[[]byte]) bool {
		for _, key := range client.ScanKeys() {
			if strings.HasPrefix(key, prefix) {
				client.Delete(key)
				s.owners.Delete(key)
			}
		}
		return true
	})
	return nil
}

// InvalidateKeys removes multiple entries from the cache in one call.
func (s *sturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Size reports how many keys are currently tracked.
func (s *sturdycService) Size() int {
	return s.owners.Size()
}
