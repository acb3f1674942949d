package memory

import (
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
	"stashdb/pkg/tuple"
)

// DbFile is the contract a table's backing file offers the buffer pool:
// page-level I/O plus tuple-level insert/delete that pin pages back through
// BufferPool.GetPage. The heap layer provides the concrete implementation.
type DbFile interface {
	// ID returns the file's identity, stable across opens.
	ID() primitives.FileID

	// TupleDesc returns the shape of the tuples stored in this file.
	TupleDesc() *tuple.TupleDesc

	// NumPages returns the number of pages currently in the file.
	NumPages() primitives.PageNumber

	// ReadPage reads the page at the given index from disk.
	ReadPage(no primitives.PageNumber) (page.Page, error)

	// WritePage writes the page back to its slot in the file.
	WritePage(p page.Page) error

	// InsertTuple adds t to the file on behalf of tid and returns the pages
	// it modified. Implementations fetch pages through the buffer pool with
	// ReadWrite permission.
	InsertTuple(tid *primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error)

	// DeleteTuple removes t (located by its RecordID) on behalf of tid and
	// returns the page it modified.
	DeleteTuple(tid *primitives.TransactionID, t *tuple.Tuple) (page.Page, error)

	// Iterator returns a pull iterator over the file's tuples, reading pages
	// through the buffer pool with ReadOnly permission. The iterator returns
	// (nil, nil) when exhausted.
	Iterator(tid *primitives.TransactionID) (func() (*tuple.Tuple, error), error)
}
