package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redisService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.Redis.Addr = mr.Addr()

	svc, err := NewRedisService(cfg)
	if err != nil {
		t.Fatalf("NewRedisService() failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, mr
}

func TestNewRedisService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Addr = ""

	_, err := NewRedisService(cfg)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Field != "Redis.Addr" {
		t.Errorf("expected Redis.Addr field, got %q", cfgErr.Field)
	}
}

func TestRedisService_GetSetDelete(t *testing.T) {
	svc, _ := newTestRedis(t)
	ctx := context.Background()

	if _, found, err := svc.Get(ctx, "User.email.a@example.com"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}

	if err := svc.Set(ctx, "User.email.a@example.com", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, found, err := svc.Get(ctx, "User.email.a@example.com")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if string(got) != "payload" {
		t.Errorf("expected payload, got %q", got)
	}

	if err := svc.Delete(ctx, "User.email.a@example.com"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, found, _ := svc.Get(ctx, "User.email.a@example.com"); found {
		t.Error("expected miss after Delete()")
	}
}

func TestRedisService_Expiration(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := svc.Set(ctx, "default", []byte("v"), 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if ttl := mr.TTL("default"); ttl != DefaultConfig().TTL {
		t.Errorf("expected default TTL %v, got %v", DefaultConfig().TTL, ttl)
	}

	mr.FastForward(2 * time.Second)

	if _, found, _ := svc.Get(ctx, "short"); found {
		t.Error("expected short-lived key to expire")
	}
	if _, found, _ := svc.Get(ctx, "default"); !found {
		t.Error("expected default-TTL key to survive")
	}
}

func TestRedisService_DeleteByPrefix(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()

	// more keys than one SCAN batch
	for i := 0; i < redisScanBatch+20; i++ {
		_ = svc.Set(ctx, fmt.Sprintf("User.email.%d", i), []byte("v"), time.Minute)
	}
	_ = svc.Set(ctx, "Post.slug.hello", []byte("v"), time.Minute)

	if err := svc.DeleteByPrefix(ctx, "User."); err != nil {
		t.Fatalf("DeleteByPrefix() failed: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 || keys[0] != "Post.slug.hello" {
		t.Errorf("expected only Post.slug.hello to remain, got %v", keys)
	}
}

func TestRedisService_InvalidateKeys(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_ = svc.Set(ctx, key, []byte(key), time.Minute)
	}
	if err := svc.InvalidateKeys(ctx, []string{"a", "c", "missing"}); err != nil {
		t.Fatalf("InvalidateKeys() failed: %v", err)
	}
	if err := svc.InvalidateKeys(ctx, nil); err != nil {
		t.Fatalf("InvalidateKeys(nil) failed: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("expected only b to remain, got %v", keys)
	}
}

func TestRedisService_BackendFailure(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()

	mr.SetError("server down")

	if _, _, err := svc.Get(ctx, "k"); err == nil {
		t.Error("expected Get() to report the backend error")
	}
	if err := svc.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("expected Set() to report the backend error")
	}
}

func TestNewRedisServiceWithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewRedisServiceWithClient(client, time.Minute)
	t.Cleanup(func() { svc.Close() })

	if err := svc.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if !mr.Exists("k") {
		t.Error("expected key to be written through the supplied client")
	}
}
