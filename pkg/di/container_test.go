package di

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/cache"
	"github.com/goliatone/go-model/internal/datasetinfra"
	"github.com/goliatone/go-model/model"
	"github.com/goliatone/go-model/pkg/testsupport"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func newTestContainer(t *testing.T, mutate func(*Config), opts ...ContainerOption) *Container {
	t.Helper()

	config := DefaultConfig()
	config.Database = testsupport.SQLiteConfig(t)
	if mutate != nil {
		mutate(&config)
	}

	container, err := NewContainer(config, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { container.Close() })
	return container
}

func TestNewContainer(t *testing.T) {
	container := newTestContainer(t, func(c *Config) {
		c.Cache.Capacity = 500
		c.Cache.TTL = 2 * time.Minute
	})

	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Database() == nil || container.Database().Name() != "sqlite" {
		t.Errorf("expected a sqlite database, got %v", container.Database())
	}

	storedConfig := container.Config()
	if storedConfig.Cache.Capacity != 500 {
		t.Errorf("Expected capacity 500, got %d", storedConfig.Cache.Capacity)
	}
	if storedConfig.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected TTL 2m, got %v", storedConfig.Cache.TTL)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	config := container.Config()
	if config.Cache == nil || config.Cache.Capacity != cache.DefaultConfig().Capacity {
		t.Errorf("Expected default cache config, got %+v", config.Cache)
	}
	if config.Database.Driver != datasetinfra.DriverSQLite {
		t.Errorf("Expected sqlite driver, got %q", config.Database.Driver)
	}
}

func TestNewContainer_WithoutCache(t *testing.T) {
	container := newTestContainer(t, func(c *Config) { c.Cache = nil })

	if container.CacheService() != nil {
		t.Error("expected caching to be disabled")
	}
	typ, err := container.NewType("User", model.WithTable("users"))
	if err != nil {
		t.Fatal(err)
	}
	if typ.CacheService() != nil {
		t.Error("types should not get a cache backend")
	}
}

func TestClose_ReleasesRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	config := DefaultConfig()
	config.Database = testsupport.SQLiteConfig(t)
	config.Cache.Backend = cache.BackendRedis
	config.Cache.Redis.Addr = mr.Addr()

	container, err := NewContainer(config)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	svc := container.CacheService()
	ctx := context.Background()
	if err := svc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, _, err := svc.Get(ctx, "k"); !errors.Is(err, redis.ErrClosed) {
		t.Errorf("expected the redis client to be closed, got %v", err)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"redis without address", func(c *Config) { c.Cache.Backend = cache.BackendRedis }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			if _, err := NewContainer(config); err == nil {
				t.Error("expected NewContainer to fail")
			}
		})
	}
}

func TestNewType_ThreadsCollaborators(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	container := newTestContainer(t, nil, WithLogger(logger))

	users, err := container.NewType("User", model.WithTable("users"))
	if err != nil {
		t.Fatalf("NewType() failed: %v", err)
	}

	db, err := users.Database()
	if err != nil || db != container.Database() {
		t.Errorf("expected the container database, got %v (err %v)", db, err)
	}
	if users.CacheService() != container.CacheService() {
		t.Error("expected the container cache service")
	}
	if users.KeySerializer() != container.KeySerializer() {
		t.Error("expected the container key serializer")
	}

	users.Logger().Info("hello")
	if !strings.Contains(logs.String(), "type=User") {
		t.Errorf("expected type-scoped logger, got %q", logs.String())
	}

	got, ok := container.Type("User")
	if !ok || got != users {
		t.Error("expected the type to be registered by name")
	}
}

func TestNewType_DuplicateName(t *testing.T) {
	container := newTestContainer(t, nil)

	if _, err := container.NewType("User"); err != nil {
		t.Fatal(err)
	}
	_, err := container.NewType("User")
	if !goerrors.HasCategory(err, goerrors.CategoryConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	if _, err := container.NewType(""); err == nil {
		t.Error("expected invalid name to fail")
	}
	if diff := cmp.Diff([]string{"User"}, container.TypeNames()); diff != "" {
		t.Errorf("failed declarations should not be registered (-want +got):\n%s", diff)
	}
}

func TestRegistry_HasBuiltinsAndExtras(t *testing.T) {
	container := newTestContainer(t, nil, WithPlugins(&noopPlugin{}))

	for _, name := range []string{"timestamped", "uuid_key", "noop"} {
		if _, err := container.Registry().Lookup(name); err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
		}
	}
	if _, err := container.Registry().Lookup("versioned"); !errors.Is(err, model.ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

type noopPlugin struct{}

func (noopPlugin) Name() string                              { return "noop" }
func (noopPlugin) Apply(*model.Type, model.Options) error    { return nil }
func (noopPlugin) InstanceOps() map[string]model.InstanceOp { return nil }
func (noopPlugin) TypeOps() map[string]model.TypeOp         { return nil }

func TestParseConfig(t *testing.T) {
	data := []byte(`{
		// local development
		"log_level": "debug",
		"database": {
			"driver": "sqlite3",
			"dsn": "file:dev.db",
			"conn_max_lifetime": "30m",
		},
		"cache": {
			"ttl": "90s",
			"capacity": 42,
		},
	}`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.level() != slog.LevelDebug {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
	wantDB := datasetinfra.Config{
		Driver:          datasetinfra.DriverSQLite3,
		DSN:             "file:dev.db",
		MaxOpenConns:    datasetinfra.DefaultConfig().MaxOpenConns,
		ConnMaxLifetime: 30 * time.Minute,
	}
	if diff := cmp.Diff(wantDB, cfg.Database); diff != "" {
		t.Errorf("database config mismatch (-want +got):\n%s", diff)
	}

	wantCache := cache.DefaultConfig()
	wantCache.TTL = 90 * time.Second
	wantCache.Capacity = 42
	if cfg.Cache == nil {
		t.Fatal("expected cache config")
	}
	if diff := cmp.Diff(wantCache, *cfg.Cache); diff != "" {
		t.Errorf("cache config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"database": `},
		{"bad duration", `{"cache": {"ttl": "soon"}}`},
		{"invalid values", `{"database": {"driver": "oracle"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.jsonc")
	if err := os.WriteFile(path, []byte(`{"database": {"dsn": "file:x?mode=memory"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Cache != nil {
		t.Error("a file without a cache section should disable caching")
	}
	if cfg.Database.Driver != datasetinfra.DriverSQLite {
		t.Errorf("expected default driver, got %q", cfg.Database.Driver)
	}

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.jsonc"))
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != "CONFIG_READ_FAILED" {
		t.Errorf("expected CONFIG_READ_FAILED, got %v", err)
	}
}
