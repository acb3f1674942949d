package memory

import (
	"fmt"
	"sync"

	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
)

// PageStore routes page-level disk I/O to the database file that owns each
// page. Files register themselves under their FileID; a page id whose file is
// not registered does not belong to any table.
type PageStore struct {
	mu    sync.RWMutex
	files map[primitives.FileID]DbFile
}

// NewPageStore creates an empty page store.
func NewPageStore() *PageStore {
	return &PageStore{
		files: make(map[primitives.FileID]DbFile),
	}
}

// RegisterDbFile makes f the owner of its FileID. Re-registering an id
// replaces the previous owner.
func (ps *PageStore) RegisterDbFile(id primitives.FileID, f DbFile) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.files[id] = f
}

// UnregisterDbFile removes the file registered under id, if any.
func (ps *PageStore) UnregisterDbFile(id primitives.FileID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.files, id)
}

// DbFile returns the file registered under id.
func (ps *PageStore) DbFile(id primitives.FileID) (DbFile, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	f, ok := ps.files[id]
	if !ok {
		err := dberror.New(dberror.ErrCategoryUser, dberror.ErrCodePageNotFound,
			fmt.Sprintf("no table registered for file id %d", id))
		err.Component = "PageStore"
		return nil, err
	}
	return f, nil
}

// Files returns a snapshot of the registered files.
func (ps *PageStore) Files() []DbFile {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	files := make([]DbFile, 0, len(ps.files))
	for _, f := range ps.files {
		files = append(files, f)
	}
	return files
}

// ReadPage reads pid from its owning file.
func (ps *PageStore) ReadPage(pid primitives.PageID) (page.Page, error) {
	f, err := ps.DbFile(pid.FileID())
	if err != nil {
		return nil, err
	}
	p, err := f.ReadPage(pid.PageNo())
	if err != nil {
		werr := dberror.Wrap(dberror.ErrCategorySystem, dberror.ErrCodeIO,
			fmt.Sprintf("failed to read %v", pid), err)
		werr.Component = "PageStore"
		return nil, werr
	}
	return p, nil
}

// WritePage writes p back to its owning file.
func (ps *PageStore) WritePage(p page.Page) error {
	f, err := ps.DbFile(p.ID().FileID())
	if err != nil {
		return err
	}
	if err := f.WritePage(p); err != nil {
		werr := dberror.Wrap(dberror.ErrCategorySystem, dberror.ErrCodeIO,
			fmt.Sprintf("failed to write %v", p.ID()), err)
		werr.Component = "PageStore"
		return werr
	}
	return nil
}
