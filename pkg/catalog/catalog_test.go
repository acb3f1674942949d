package catalog

import (
	"testing"
	"time"

	"stashdb/pkg/concurrency/lock"
	"stashdb/pkg/concurrency/transaction"
	"stashdb/pkg/memory"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/heap"
	"stashdb/pkg/tuple"
	"stashdb/pkg/types"
)

func newTestEnv(t *testing.T) (*memory.PageStore, *TableCatalog, *memory.BufferPool) {
	t.Helper()
	registry := transaction.NewRegistry()
	timeouts := lock.Timeouts{
		FirstDeadline:   150 * time.Millisecond,
		RunningDeadline: 300 * time.Millisecond,
		InitialSleep:    5 * time.Millisecond,
		RunningSleep:    5 * time.Millisecond,
	}
	store := memory.NewPageStore()
	pool := memory.NewBufferPool(memory.DefaultCapacity, store, lock.NewManager(registry, timeouts), registry)
	return store, NewTableCatalog(store), pool
}

func newCatalogTable(t *testing.T, pool *memory.BufferPool, name string) *heap.HeapFile {
	t.Helper()
	desc, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"id"})
	if err != nil {
		t.Fatalf("descriptor failed: %v", err)
	}
	file, err := heap.NewHeapFile(primitives.Filepath(t.TempDir()).Join(name+".dat"), desc, pool)
	if err != nil {
		t.Fatalf("heap file failed: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

func TestAddAndLookupTable(t *testing.T) {
	store, cat, pool := newTestEnv(t)
	file := newCatalogTable(t, pool, "users")

	if err := cat.AddTable("users", file); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}

	byName, err := cat.TableByName("users")
	if err != nil || byName.ID() != file.ID() {
		t.Errorf("TableByName returned %v, %v", byName, err)
	}
	byID, err := cat.DbFile(file.ID())
	if err != nil || byID.ID() != file.ID() {
		t.Errorf("DbFile returned %v, %v", byID, err)
	}

	// The page store must know the file too, so GetPage can route to it.
	if _, err := store.DbFile(file.ID()); err != nil {
		t.Errorf("page store should know the file: %v", err)
	}
}

func TestAddTableRejectsDuplicates(t *testing.T) {
	_, cat, pool := newTestEnv(t)
	file := newCatalogTable(t, pool, "users")

	if err := cat.AddTable("users", file); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}
	if err := cat.AddTable("users", file); err == nil {
		t.Error("duplicate name must be rejected")
	}
	if err := cat.AddTable("users_again", file); err == nil {
		t.Error("duplicate file id must be rejected")
	}
}

func TestRemoveTable(t *testing.T) {
	store, cat, pool := newTestEnv(t)
	file := newCatalogTable(t, pool, "users")

	if err := cat.AddTable("users", file); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}
	if err := cat.RemoveTable("users"); err != nil {
		t.Fatalf("RemoveTable failed: %v", err)
	}

	if _, err := cat.TableByName("users"); err == nil {
		t.Error("removed table must not resolve by name")
	}
	if _, err := store.DbFile(file.ID()); err == nil {
		t.Error("removed table must be unregistered from the page store")
	}
	if err := cat.RemoveTable("users"); err == nil {
		t.Error("removing an unknown table must fail")
	}
}

func TestTablesSortedByName(t *testing.T) {
	_, cat, pool := newTestEnv(t)
	b := newCatalogTable(t, pool, "bravo")
	a := newCatalogTable(t, pool, "alpha")

	if err := cat.AddTable("bravo", b); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}
	if err := cat.AddTable("alpha", a); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}

	infos := cat.Tables()
	if len(infos) != 2 || infos[0].Name != "alpha" || infos[1].Name != "bravo" {
		t.Errorf("unexpected table listing: %+v", infos)
	}
}
