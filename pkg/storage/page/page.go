// Package page defines the page abstraction the buffer pool caches and the
// descriptor used to identify pages across the engine.
package page

import (
	"stashdb/pkg/primitives"
)

// PageSize is the fixed size of every on-disk and in-memory page, in bytes.
const PageSize = 4096

// HeaderSize is the number of bytes a slotted page spends on its header: two
// little-endian int32 counters (total slots, used slots).
const HeaderSize = 8

// Page is a fixed-size container of tuples cached by the buffer pool.
//
// A page is owned by the page cache while resident. Reading it is safe only
// while the caller holds a lock on it; mutating it requires the exclusive
// lock. The before-image is the byte snapshot taken at the last install or
// commit and is what an abort restores.
type Page interface {
	// ID returns the identity of the page.
	ID() primitives.PageID

	// IsDirty returns the transaction that dirtied the page, or nil if the
	// page matches its disk copy.
	IsDirty() *primitives.TransactionID

	// MarkDirty marks or clears the dirty flag. tid is ignored when dirty is
	// false.
	MarkDirty(dirty bool, tid *primitives.TransactionID)

	// PageData serializes the current contents to exactly PageSize bytes.
	PageData() ([]byte, error)

	// BeforeImage returns a fresh page built from the stored before-image.
	BeforeImage() (Page, error)

	// SetBeforeImage snapshots the current contents as the new before-image.
	SetBeforeImage() error
}
