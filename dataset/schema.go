package dataset

// SchemaGenerator produces the DDL for a table.
type SchemaGenerator interface {
	CreateSQL() string
	DropSQL() string
	// PrimaryKeyName returns the declared primary key column, or "" when the
	// schema does not declare one.
	PrimaryKeyName() string
}

// StaticSchema is a SchemaGenerator backed by literal statements.
type StaticSchema struct {
	Create     string
	Drop       string
	PrimaryKey string
}

func (s StaticSchema) CreateSQL() string      { return s.Create }
func (s StaticSchema) DropSQL() string        { return s.Drop }
func (s StaticSchema) PrimaryKeyName() string { return s.PrimaryKey }
