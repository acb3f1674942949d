// Package catalog maps table names and ids to their database files. It is
// the thin lookup layer the inspector consults; it keeps the page store's
// registry, through which the buffer pool facade resolves tables, in sync as
// tables come and go.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"stashdb/pkg/memory"
	"stashdb/pkg/primitives"
)

// TableInfo pairs a table's name with its backing file.
type TableInfo struct {
	Name string
	File memory.DbFile
}

// TableCatalog is a thread-safe registry of the database's tables.
type TableCatalog struct {
	mu     sync.RWMutex
	store  *memory.PageStore
	byName map[string]memory.DbFile
	byID   map[primitives.FileID]string
}

// NewTableCatalog creates an empty catalog wired to the given page store.
func NewTableCatalog(store *memory.PageStore) *TableCatalog {
	return &TableCatalog{
		store:  store,
		byName: make(map[string]memory.DbFile),
		byID:   make(map[primitives.FileID]string),
	}
}

// AddTable registers f under the given name and with the page store.
func (tc *TableCatalog) AddTable(name string, f memory.DbFile) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, exists := tc.byName[name]; exists {
		return fmt.Errorf("table %s already exists", name)
	}
	if existing, exists := tc.byID[f.ID()]; exists {
		return fmt.Errorf("file id %d already registered as table %s", f.ID(), existing)
	}

	tc.byName[name] = f
	tc.byID[f.ID()] = name
	tc.store.RegisterDbFile(f.ID(), f)
	return nil
}

// RemoveTable drops the table from the catalog and the page store. The
// backing file is not closed or deleted.
func (tc *TableCatalog) RemoveTable(name string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	f, exists := tc.byName[name]
	if !exists {
		return fmt.Errorf("table %s not found", name)
	}
	delete(tc.byName, name)
	delete(tc.byID, f.ID())
	tc.store.UnregisterDbFile(f.ID())
	return nil
}

// TableByName returns the file backing the named table.
func (tc *TableCatalog) TableByName(name string) (memory.DbFile, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	f, exists := tc.byName[name]
	if !exists {
		return nil, fmt.Errorf("table %s not found", name)
	}
	return f, nil
}

// DbFile returns the file backing the table with the given id.
func (tc *TableCatalog) DbFile(id primitives.FileID) (memory.DbFile, error) {
	tc.mu.RLock()
	name, exists := tc.byID[id]
	tc.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no table with id %d", id)
	}
	return tc.TableByName(name)
}

// Tables returns the registered tables sorted by name.
func (tc *TableCatalog) Tables() []TableInfo {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	infos := make([]TableInfo, 0, len(tc.byName))
	for name, f := range tc.byName {
		infos = append(infos, TableInfo{Name: name, File: f})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
