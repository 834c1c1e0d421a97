package model

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/dataset"
	"github.com/google/go-cmp/cmp"
)

func TestCreate_AssignsKeyAndReloads(t *testing.T) {
	users, db := usersFixture(t)
	ctx := context.Background()

	rec, err := users.Create(ctx, dataset.Values{"name": "Carol", "email": "carol@example.com"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if rec.IsNew() {
		t.Fatal("created record should be persisted")
	}
	if rec.PK() != int64(3) {
		t.Errorf("expected generated key 3, got %v", rec.PK())
	}

	exists, err := rec.Exists(ctx)
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v", exists, err)
	}
	if db.countCalls("commit") != 1 {
		t.Error("expected the insert to commit")
	}
}

func TestCreate_IgnoresSuppliedKeyForNewness(t *testing.T) {
	users, db := usersFixture(t)

	rec, err := users.Create(context.Background(), dataset.Values{"id": int64(10), "name": "Zed"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.PK() != int64(10) {
		t.Errorf("expected supplied key to be kept, got %v", rec.PK())
	}
	if db.countCalls("insert users") != 1 || db.countCalls("update users") != 0 {
		t.Errorf("expected an insert, got calls %v", db.calls)
	}
}

func TestCreate_InsertFailureRestoresRecord(t *testing.T) {
	users, db := usersFixture(t)
	db.insertErr = errors.New("constraint violation")

	rec := users.New(dataset.Values{"name": "Fail"})
	err := rec.Save(context.Background())
	if !errors.Is(err, db.insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if !rec.IsNew() {
		t.Error("record should still be new after a failed insert")
	}
	if diff := cmp.Diff(dataset.Values{"name": "Fail"}, rec.Values()); diff != "" {
		t.Errorf("values changed (-want +got):\n%s", diff)
	}
}

func TestSave_UpdateRoundTrip(t *testing.T) {
	users, _ := usersFixture(t)
	ctx := context.Background()

	rec, err := users.Find(ctx, int64(2))
	if err != nil || rec == nil {
		t.Fatalf("Find() rec=%v err=%v", rec, err)
	}
	rec.Put("name", "Robert")
	if err := rec.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	found, _ := users.Find(ctx, int64(2))
	if diff := cmp.Diff(found.Values(), rec.Values()); diff != "" {
		t.Errorf("refreshed record differs from find (-want +got):\n%s", diff)
	}
	if rec.Get("name") != "Robert" {
		t.Errorf("expected saved name, got %v", rec.Get("name"))
	}
}

func TestSave_NewRecordRefreshMatchesFind(t *testing.T) {
	users, _ := usersFixture(t)
	ctx := context.Background()

	rec := users.New(dataset.Values{"name": "Dana", "email": "dana@example.com"})
	if err := rec.Save(ctx); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if rec.IsNew() {
		t.Fatal("saved record should be persisted")
	}
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	found, err := users.Find(ctx, rec.PK())
	if err != nil || found == nil {
		t.Fatalf("Find(%v) rec=%v err=%v", rec.PK(), found, err)
	}
	if diff := cmp.Diff(found.Values(), rec.Values()); diff != "" {
		t.Errorf("refreshed record differs from find (-want +got):\n%s", diff)
	}
}

func TestSave_UpdateMissingRowFails(t *testing.T) {
	users, db := usersFixture(t)
	ctx := context.Background()

	rec, _ := users.Find(ctx, int64(1))
	db.Dataset("users").Filter(dataset.Cond{"id": int64(1)}).Delete(ctx)

	rec.Put("name", "Ghost")
	err := rec.Save(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !goerrors.HasCategory(err, goerrors.CategoryConflict) {
		t.Errorf("expected conflict category, got %v", err)
	}
	if db.countCalls("rollback") != 1 {
		t.Error("expected the update to roll back")
	}
}

func TestRefresh(t *testing.T) {
	users, db := usersFixture(t)
	ctx := context.Background()

	rec, _ := users.Find(ctx, int64(1))
	rec.Put("name", "Unsaved")
	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if rec.Get("name") != "Alice" {
		t.Errorf("refresh should discard unsaved changes, got %v", rec.Get("name"))
	}

	db.Dataset("users").Filter(dataset.Cond{"id": int64(1)}).Delete(ctx)
	rec.Put("name", "Kept")
	err := rec.Refresh(ctx)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if rec.Get("name") != "Kept" {
		t.Errorf("failed refresh should leave values unchanged, got %v", rec.Get("name"))
	}
}

func TestNewRecordOperations(t *testing.T) {
	users, _ := usersFixture(t)
	ctx := context.Background()
	rec := users.New(dataset.Values{"name": "Draft"})

	if !rec.IsNew() {
		t.Fatal("expected a new record")
	}
	if err := rec.Destroy(ctx); !errors.Is(err, ErrNewRecord) {
		t.Errorf("Destroy: expected ErrNewRecord, got %v", err)
	}
	if err := rec.Delete(ctx); !errors.Is(err, ErrNewRecord) {
		t.Errorf("Delete: expected ErrNewRecord, got %v", err)
	}
	if err := rec.Refresh(ctx); !errors.Is(err, ErrNewRecord) {
		t.Errorf("Refresh: expected ErrNewRecord, got %v", err)
	}
	if err := rec.Set(ctx, dataset.Values{"name": "x"}); !errors.Is(err, ErrNewRecord) {
		t.Errorf("Set: expected ErrNewRecord, got %v", err)
	}
	if ok, err := rec.Exists(ctx); ok || err != nil {
		t.Errorf("Exists: expected false, got %v %v", ok, err)
	}
}

func TestSet_WritesImmediately(t *testing.T) {
	users, db := usersFixture(t)
	ctx := context.Background()

	rec, _ := users.Find(ctx, int64(1))
	rec.Put("kind", "pending")
	if err := rec.Set(ctx, dataset.Values{"name": "Alicia"}); err != nil {
		t.Fatal(err)
	}

	if rec.Get("name") != "Alicia" {
		t.Errorf("expected merged value, got %v", rec.Get("name"))
	}
	if rec.Get("kind") != "pending" {
		t.Error("Set should not discard other in-memory changes")
	}
	row := db.rows("users")[0]
	if row["name"] != "Alicia" || row["kind"] != "admin" {
		t.Errorf("expected only the given column written, got %v", row)
	}
	if db.countCalls("begin") != 0 {
		t.Error("Set should not open a transaction")
	}
}

func TestSet_RejectsWrongArgument(t *testing.T) {
	users, _ := usersFixture(t)
	rec, _ := users.Find(context.Background(), int64(1))

	_, err := rec.Call(context.Background(), "set", map[string]any{"name": "x"})
	if !goerrors.HasCategory(err, goerrors.CategoryBadInput) {
		t.Errorf("expected bad input error, got %v", err)
	}
}

func TestDestroyAndDelete(t *testing.T) {
	users, db := usersFixture(t)
	ctx := context.Background()
	called := false
	users.BeforeDestroy(func(ctx context.Context, r *Record) error {
		called = true
		return nil
	})

	alice, _ := users.Find(ctx, int64(1))
	if err := alice.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("Delete should not run destroy hooks")
	}

	bob, _ := users.Find(ctx, int64(2))
	if err := bob.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("Destroy should run destroy hooks")
	}
	if len(db.rows("users")) != 0 {
		t.Errorf("expected empty table, got %v", db.rows("users"))
	}

	if err := bob.Destroy(ctx); !errors.Is(err, ErrPersistence) {
		t.Errorf("destroying a missing row: expected ErrPersistence, got %v", err)
	}
}

func TestDestroyAll(t *testing.T) {
	noop := func(ctx context.Context, r *Record) error { return nil }
	tests := []struct {
		name        string
		setup       func(users *Type)
		subtype     bool
		wantAll     int
		wantDeletes int
	}{
		{
			name:        "bulk delete without hooks",
			setup:       func(users *Type) {},
			wantDeletes: 1,
		},
		{
			name:        "per record with own hooks",
			setup:       func(users *Type) { users.BeforeDestroy(noop) },
			wantAll:     1,
			wantDeletes: 2,
		},
		{
			name:        "per record with ancestor hooks",
			setup:       func(users *Type) { users.AfterDestroy(noop) },
			subtype:     true,
			wantAll:     1,
			wantDeletes: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, db := usersFixture(t)
			tt.setup(users)
			typ := users
			if tt.subtype {
				typ = mustType(t, "Admin", WithParent(users))
			}
			db.resetCalls()

			n, err := typ.DestroyAll(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if n != 2 {
				t.Errorf("expected 2 rows removed, got %d", n)
			}
			if got := db.countCalls("all users"); got != tt.wantAll {
				t.Errorf("all queries = %d, want %d", got, tt.wantAll)
			}
			if got := db.countCalls("delete users"); got != tt.wantDeletes {
				t.Errorf("delete statements = %d, want %d", got, tt.wantDeletes)
			}
			if len(db.rows("users")) != 0 {
				t.Error("expected every row removed")
			}
		})
	}
}

func TestDestroyAll_HookErrorRollsBack(t *testing.T) {
	users, db := usersFixture(t)
	users.BeforeDestroy(func(ctx context.Context, r *Record) error {
		if r.Get("name") == "Bob" {
			return errors.New("protected")
		}
		return nil
	})

	if _, err := users.DestroyAll(context.Background()); err == nil {
		t.Fatal("expected hook error")
	}
	if len(db.rows("users")) != 2 {
		t.Error("expected every destroy in the pass to roll back")
	}
}

func TestEqual(t *testing.T) {
	users, _ := usersFixture(t)
	posts := mustType(t, "Post", WithDatabase(newFakeDB()), WithTable("posts"))
	ctx := context.Background()

	a1, _ := users.Find(ctx, int64(1))
	a2, _ := users.Get(ctx, dataset.Cond{"email": "alice@example.com"})
	b, _ := users.Find(ctx, int64(2))

	if !a1.Equal(a2) {
		t.Error("records with the same key should be equal")
	}
	if a1.Equal(b) {
		t.Error("records with different keys should differ")
	}
	if a1.Equal(posts.New(dataset.Values{"id": int64(1)})) {
		t.Error("records of different types should differ")
	}
	if users.New(nil).Equal(users.New(nil)) {
		t.Error("new records are never equal")
	}
}

func TestQueryHelpers(t *testing.T) {
	users, _ := usersFixture(t)
	ctx := context.Background()
	q, _ := users.Dataset()

	names, err := q.Order("id").Map(ctx, "name")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"Alice", "Bob"}, names); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}

	byID, err := q.HashColumn(ctx, "id", "email")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"1": "alice@example.com", "2": "bob@example.com"}
	if diff := cmp.Diff(want, byID); diff != "" {
		t.Errorf("HashColumn mismatch (-want +got):\n%s", diff)
	}

	var seen []string
	err = users.Each(ctx, func(r *Record) error {
		seen = append(seen, r.Get("name").(string))
		return nil
	})
	if err != nil || len(seen) != 2 {
		t.Errorf("Each visited %v, err %v", seen, err)
	}

	count, _ := users.Count(ctx)
	all, _ := users.All(ctx)
	if count != int64(len(all)) {
		t.Errorf("Count() = %d, All() returned %d", count, len(all))
	}
}
