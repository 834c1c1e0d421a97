package testsupport

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	"github.com/goliatone/go-model/dataset"
	"github.com/goliatone/go-model/internal/datasetinfra"
)

// Schema of the blog fixture database.
const (
	UsersSchema = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT,
	kind TEXT,
	stamp TEXT
)`
	PostsSchema = `CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER REFERENCES users (id),
	title TEXT NOT NULL,
	created_at TEXT
)`
	TokensSchema = `CREATE TABLE tokens (
	id TEXT PRIMARY KEY,
	label TEXT
)`
)

//go:embed testdata/blog.jsonc
var blogFixture []byte

// SQLiteConfig returns a configuration for a private in-memory database
// named after the test. Subtests get their own database.
func SQLiteConfig(t testing.TB) datasetinfra.Config {
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	return datasetinfra.Config{
		Driver:       datasetinfra.DriverSQLite,
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}
}

// OpenSQLite opens an empty in-memory database that is closed when the
// test ends.
func OpenSQLite(t testing.TB) *datasetinfra.Database {
	t.Helper()

	db, err := datasetinfra.Open(SQLiteConfig(t))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Exec runs statements in order, failing the test on the first error.
func Exec(t testing.TB, db dataset.Database, statements ...string) {
	t.Helper()

	ctx := context.Background()
	for _, stmt := range statements {
		if err := db.Execute(ctx, stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}

// Seed inserts rows into table.
func Seed(t testing.TB, db dataset.Database, table string, rows ...dataset.Values) {
	t.Helper()

	ds := db.Dataset(table)
	for _, row := range rows {
		if _, err := ds.Insert(context.Background(), row, "id"); err != nil {
			t.Fatalf("failed to seed %s: %v", table, err)
		}
	}
}

// OpenBlog opens an in-memory database with the users, posts and tokens
// tables, seeded with the embedded blog fixture: users 1 (Alice, admin) and
// 2 (Bob, member), posts 1 and 2 by Alice and 3 by Bob.
func OpenBlog(t testing.TB) *datasetinfra.Database {
	t.Helper()

	db := OpenSQLite(t)
	Exec(t, db, UsersSchema, PostsSchema, TokensSchema)

	var tables map[string]any
	if err := decodeJSONC(blogFixture, &tables); err != nil {
		t.Fatalf("failed to parse blog fixture: %v", err)
	}
	for _, table := range []string{"users", "posts"} {
		for _, row := range tables[table].([]any) {
			Seed(t, db, table, normalizeRow(row.(map[string]any)))
		}
	}
	return db
}
