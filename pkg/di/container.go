package di

import (
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/cache"
	"github.com/goliatone/go-model/internal/datasetinfra"
	"github.com/goliatone/go-model/model"
	"github.com/goliatone/go-model/plugins"
	"github.com/puzpuzpuz/xsync/v3"
)

// Container owns the shared collaborators of a set of record types: the
// database, the cache backend, the key serializer, the plugin registry and
// the logger. Types built through NewType get all of them threaded in.
type Container struct {
	config        Config
	db            *datasetinfra.Database
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	registry      *model.Registry
	logger        *slog.Logger
	types         *xsync.MapOf[string, *model.Type]
}

// ContainerOption customizes a Container.
type ContainerOption func(*Container)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPlugins registers additional plugins next to the built-in ones.
func WithPlugins(ps ...model.Plugin) ContainerOption {
	return func(c *Container) {
		for _, p := range ps {
			c.registry.Register(p)
		}
	}
}

// NewContainer validates config, opens the database and builds the cache
// backend.
func NewContainer(config Config, opts ...ContainerOption) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:        config,
		keySerializer: cache.NewDefaultKeySerializer(),
		registry:      model.NewRegistry(plugins.Builtin()...),
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: config.level(),
		})),
		types: xsync.NewMapOf[string, *model.Type](),
	}
	for _, opt := range opts {
		opt(c)
	}

	if config.Cache != nil {
		svc, err := cache.NewCacheService(*config.Cache)
		if err != nil {
			return nil, err
		}
		c.cacheService = svc
	}

	db, err := datasetinfra.Open(config.Database)
	if err != nil {
		return nil, err
	}
	c.db = db

	c.logger.Debug("container ready",
		"driver", config.Database.Driver,
		"dialect", db.Name(),
		"cache", config.Cache != nil,
	)
	return c, nil
}

// NewContainerWithDefaults creates a container over DefaultConfig.
func NewContainerWithDefaults(opts ...ContainerOption) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// NewType declares a record type bound to the container's database, cache
// backend, key serializer and logger. opts are applied after those, so a
// type can still override any of them. Names are unique per container.
func (c *Container) NewType(name string, opts ...model.Option) (*model.Type, error) {
	base := []model.Option{
		model.WithDatabase(c.db),
		model.WithKeySerializer(c.keySerializer),
		model.WithLogger(c.logger.With("type", name)),
	}
	if c.cacheService != nil {
		base = append(base, model.WithCache(c.cacheService))
	}

	var buildErr error
	t, loaded := c.types.LoadOrTryCompute(name, func() (*model.Type, bool) {
		t, err := model.New(name, append(base, opts...)...)
		if err != nil {
			buildErr = err
			return nil, true
		}
		return t, false
	})
	if buildErr != nil {
		return nil, buildErr
	}
	if loaded {
		return nil, errors.New("type "+name+" is already declared", errors.CategoryConflict).
			WithTextCode("TYPE_EXISTS").
			WithMetadata(map[string]any{"type": name})
	}
	return t, nil
}

// Type returns the type declared under name.
func (c *Container) Type(name string) (*model.Type, bool) {
	return c.types.Load(name)
}

// TypeNames returns the declared type names, sorted.
func (c *Container) TypeNames() []string {
	names := make([]string, 0, c.types.Size())
	c.types.Range(func(name string, _ *model.Type) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Database returns the container's database handle.
func (c *Container) Database() *datasetinfra.Database {
	return c.db
}

// CacheService returns the shared cache backend, or nil when caching is
// disabled.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Registry returns the plugin registry types can opt into by name.
func (c *Container) Registry() *model.Registry {
	return c.registry
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// Close releases the database connection pool and the cache backend when
// it holds connections of its own.
func (c *Container) Close() error {
	err := c.db.Close()
	if closer, ok := c.cacheService.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}
