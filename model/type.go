package model

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/cache"
	"github.com/goliatone/go-model/dataset"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultPrimaryKey is the primary key column used when no type in the
// ancestor chain declares one.
const DefaultPrimaryKey = "id"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Type is a record type: the metadata, hooks and operations shared by every
// record of one entity.
//
// Unset metadata is inherited from the parent at read time, so a change on
// an ancestor is visible to descendants that do not override it. The bound
// dataset and resolved database are memoized on first use.
type Type struct {
	name   string
	parent *Type

	mu         sync.RWMutex
	table      string
	primaryKey string
	schema     dataset.SchemaGenerator
	db         dataset.Database
	explicit   dataset.Dataset
	resolvedDB dataset.Database
	bound      *Query

	columnsMu sync.Mutex
	columns   []string

	cacheCfg   *CacheConfig
	cache      cache.CacheService
	serializer cache.KeySerializer
	codec      cache.Codec
	logger     *slog.Logger

	hooks   map[Event][]Hook
	plugins map[string]Options

	typeOps     *xsync.MapOf[string, TypeOp]
	instanceOps *xsync.MapOf[string, InstanceOp]
	finders     *xsync.MapOf[string, FinderCommand]
}

// Option configures a Type during New.
type Option func(*builder)

type pendingPlugin struct {
	plugin Plugin
	opts   Options
}

type builder struct {
	t       *Type
	errs    []error
	plugins []pendingPlugin
}

func (b *builder) fail(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

// New declares a record type. Plugins passed through WithPlugin are applied
// after every other option.
func New(name string, opts ...Option) (*Type, error) {
	if err := validation.Validate(name, validation.Required); err != nil {
		return nil, errors.FromOzzoValidation(err, "invalid type name").
			WithTextCode("INVALID_TYPE")
	}

	b := &builder{t: newType(name)}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	for _, p := range b.plugins {
		if err := b.t.Use(p.plugin, p.opts); err != nil {
			return nil, err
		}
	}
	return b.t, nil
}

func newType(name string) *Type {
	return &Type{
		name:        name,
		hooks:       make(map[Event][]Hook),
		plugins:     make(map[string]Options),
		typeOps:     xsync.NewMapOf[string, TypeOp](),
		instanceOps: xsync.NewMapOf[string, InstanceOp](),
		finders:     xsync.NewMapOf[string, FinderCommand](),
	}
}

// WithParent makes the new type inherit from parent.
func WithParent(parent *Type) Option {
	return func(b *builder) { b.t.parent = parent }
}

// WithDatabase sets the database handle datasets are bound from.
func WithDatabase(db dataset.Database) Option {
	return func(b *builder) { b.fail(b.t.SetDatabase(db)) }
}

// WithDataset binds an explicit dataset.
func WithDataset(ds dataset.Dataset) Option {
	return func(b *builder) { b.fail(b.t.SetDataset(ds)) }
}

// WithTable sets the table name.
func WithTable(table string) Option {
	return func(b *builder) { b.fail(b.t.SetTableName(table)) }
}

// WithInferredTable sets the table name to the pluralized snake_case form
// of the type name.
func WithInferredTable() Option {
	return func(b *builder) { b.fail(b.t.SetTableName(inferTableName(b.t.name))) }
}

// WithPrimaryKey sets the primary key column.
func WithPrimaryKey(column string) Option {
	return func(b *builder) { b.t.SetPrimaryKey(column) }
}

// WithSchema attaches a schema generator. A primary key declared by the
// schema becomes the type's primary key.
func WithSchema(schema dataset.SchemaGenerator) Option {
	return func(b *builder) { b.t.SetSchema(schema) }
}

// WithCache sets the cache backend used by CacheBy finders.
func WithCache(svc cache.CacheService) Option {
	return func(b *builder) { b.t.SetCacheService(svc) }
}

// WithKeySerializer overrides the fingerprint builder.
func WithKeySerializer(s cache.KeySerializer) Option {
	return func(b *builder) {
		b.t.mu.Lock()
		b.t.serializer = s
		b.t.mu.Unlock()
	}
}

// WithCodec overrides how cached records are encoded.
func WithCodec(c cache.Codec) Option {
	return func(b *builder) {
		b.t.mu.Lock()
		b.t.codec = c
		b.t.mu.Unlock()
	}
}

// WithLogger sets the logger for cache failures and finder installation.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.t.mu.Lock()
		b.t.logger = logger
		b.t.mu.Unlock()
	}
}

// WithPlugin applies p with opts once the type is otherwise configured.
func WithPlugin(p Plugin, opts Options) Option {
	return func(b *builder) {
		b.plugins = append(b.plugins, pendingPlugin{plugin: p, opts: opts})
	}
}

// Name returns the type name. It is the namespace of cache fingerprints.
func (t *Type) Name() string { return t.name }

// Parent returns the type this one inherits from, or nil for a root type.
func (t *Type) Parent() *Type { return t.parent }

// TableName returns the table of the bound dataset once bound. Before that
// it is the own table name, the table of an explicit dataset, or the
// nearest ancestor's table name.
func (t *Type) TableName() string {
	t.mu.RLock()
	table, explicit, bound := t.table, t.explicit, t.bound
	t.mu.RUnlock()

	switch {
	case bound != nil:
		return bound.ds.Table()
	case table != "":
		return table
	case explicit != nil:
		return explicit.Table()
	case t.parent != nil:
		return t.parent.TableName()
	}
	return ""
}

// SetTableName overrides the table name. It fails with ErrDatasetRebind
// when the type is already bound to a different table.
func (t *Type) SetTableName(table string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bound != nil && t.bound.ds.Table() != table {
		return rebindError(t, t.bound.ds.Table(), table)
	}
	t.table = table
	return nil
}

// PrimaryKey returns the primary key column, DefaultPrimaryKey when unset
// along the whole chain.
func (t *Type) PrimaryKey() string {
	t.mu.RLock()
	pk := t.primaryKey
	t.mu.RUnlock()

	if pk != "" {
		return pk
	}
	if t.parent != nil {
		return t.parent.PrimaryKey()
	}
	return DefaultPrimaryKey
}

func (t *Type) SetPrimaryKey(column string) {
	t.mu.Lock()
	t.primaryKey = column
	t.mu.Unlock()
}

// Schema returns the nearest schema generator, or nil.
func (t *Type) Schema() dataset.SchemaGenerator {
	t.mu.RLock()
	schema := t.schema
	t.mu.RUnlock()

	if schema == nil && t.parent != nil {
		return t.parent.Schema()
	}
	return schema
}

func (t *Type) SetSchema(schema dataset.SchemaGenerator) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.schema = schema
	if schema != nil {
		if pk := schema.PrimaryKeyName(); pk != "" {
			t.primaryKey = pk
		}
	}
}

// SetDatabase sets the type's own database handle.
func (t *Type) SetDatabase(db dataset.Database) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bound != nil && t.bound.ds.Database() != db {
		return newError(ErrDatasetRebind, errors.CategoryConflict, "DATASET_REBIND", t.name,
			"type %s is bound to %q, cannot change its database", t.name, t.bound.ds.Table())
	}
	t.db = db
	t.resolvedDB = nil
	return nil
}

// SetDataset binds ds to the type and tags it so rows decode into records
// of this type. The dataset's database becomes the type's database.
func (t *Type) SetDataset(ds dataset.Dataset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bound != nil && t.bound.ds.Table() != ds.Table() {
		return rebindError(t, t.bound.ds.Table(), ds.Table())
	}
	t.explicit = ds
	t.db = ds.Database()
	t.resolvedDB = nil
	t.bound = &Query{model: t, ds: ds}
	return nil
}

// Database resolves the database handle: the type's own, else the nearest
// ancestor's. The result is memoized.
func (t *Type) Database() (dataset.Database, error) {
	t.mu.RLock()
	db := t.db
	if db == nil {
		db = t.resolvedDB
	}
	t.mu.RUnlock()

	if db != nil {
		return db, nil
	}
	if t.parent == nil {
		return nil, unboundError(t)
	}

	db, err := t.parent.Database()
	if err != nil {
		return nil, unboundError(t)
	}

	t.mu.Lock()
	t.resolvedDB = db
	t.mu.Unlock()
	return db, nil
}

// Dataset returns the bound query. On first use it binds the inherited
// table over the inherited database and memoizes the result.
func (t *Type) Dataset() (*Query, error) {
	t.mu.RLock()
	q := t.bound
	t.mu.RUnlock()
	if q != nil {
		return q, nil
	}

	table := t.TableName()
	if table == "" {
		return nil, unboundError(t)
	}
	db, err := t.Database()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound == nil {
		t.bound = &Query{model: t, ds: db.Dataset(table)}
	}
	return t.bound, nil
}

// Columns returns the column names of the bound table. The first successful
// introspection is memoized.
func (t *Type) Columns(ctx context.Context) ([]string, error) {
	t.columnsMu.Lock()
	defer t.columnsMu.Unlock()

	if t.columns != nil {
		return slices.Clone(t.columns), nil
	}

	q, err := t.Dataset()
	if err != nil {
		return nil, err
	}
	cols, err := q.ds.Columns(ctx)
	if err != nil {
		return nil, err
	}

	t.columns = cols
	return slices.Clone(cols), nil
}

func (t *Type) resetColumns() {
	t.columnsMu.Lock()
	t.columns = nil
	t.columnsMu.Unlock()
}

// CacheService returns the nearest cache backend, or nil.
func (t *Type) CacheService() cache.CacheService {
	t.mu.RLock()
	svc := t.cache
	t.mu.RUnlock()

	if svc == nil && t.parent != nil {
		return t.parent.CacheService()
	}
	return svc
}

func (t *Type) SetCacheService(svc cache.CacheService) {
	t.mu.Lock()
	t.cache = svc
	t.mu.Unlock()
}

// KeySerializer returns the nearest fingerprint builder, defaulting to
// cache.NewDefaultKeySerializer.
func (t *Type) KeySerializer() cache.KeySerializer {
	t.mu.RLock()
	s := t.serializer
	t.mu.RUnlock()

	switch {
	case s != nil:
		return s
	case t.parent != nil:
		return t.parent.KeySerializer()
	}
	return cache.NewDefaultKeySerializer()
}

// Codec returns the nearest cache codec, defaulting to cache.DefaultCodec.
func (t *Type) Codec() cache.Codec {
	t.mu.RLock()
	c := t.codec
	t.mu.RUnlock()

	switch {
	case c != nil:
		return c
	case t.parent != nil:
		return t.parent.Codec()
	}
	return cache.DefaultCodec()
}

// Logger returns the nearest logger. It never returns nil.
func (t *Type) Logger() *slog.Logger {
	t.mu.RLock()
	l := t.logger
	t.mu.RUnlock()

	switch {
	case l != nil:
		return l
	case t.parent != nil:
		return t.parent.Logger()
	}
	return discardLogger
}

// TableExists reports whether the type's table exists in its database.
func (t *Type) TableExists(ctx context.Context) (bool, error) {
	db, err := t.Database()
	if err != nil {
		return false, err
	}
	return db.TableExists(ctx, t.TableName())
}

// CreateTable runs the schema's create statement.
func (t *Type) CreateTable(ctx context.Context) error {
	return t.execSchema(ctx, func(s dataset.SchemaGenerator) string { return s.CreateSQL() })
}

// DropTable runs the schema's drop statement.
func (t *Type) DropTable(ctx context.Context) error {
	return t.execSchema(ctx, func(s dataset.SchemaGenerator) string { return s.DropSQL() })
}

// RecreateTable drops the table when it exists and creates it again.
func (t *Type) RecreateTable(ctx context.Context) error {
	exists, err := t.TableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := t.DropTable(ctx); err != nil {
			return err
		}
	}
	return t.CreateTable(ctx)
}

func (t *Type) execSchema(ctx context.Context, statement func(dataset.SchemaGenerator) string) error {
	schema := t.Schema()
	if schema == nil {
		return errors.New("type "+t.name+" has no schema", errors.CategoryBadInput).
			WithTextCode("NO_SCHEMA")
	}
	db, err := t.Database()
	if err != nil {
		return err
	}

	defer t.resetColumns()
	return db.Execute(ctx, statement(schema))
}
