package heap

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"

	"stashdb/pkg/memory"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
	"stashdb/pkg/tuple"
)

// HeapFile is an unordered collection of tuples backed by one OS file of
// fixed-size pages. All page access during inserts, deletes and scans goes
// through the buffer pool so that locking and caching stay in one place; the
// file touches the disk directly only in ReadPage and WritePage, which the
// pool calls on miss and flush.
type HeapFile struct {
	path primitives.Filepath
	file *os.File
	desc *tuple.TupleDesc
	pool *memory.BufferPool
	id   primitives.FileID

	// mu serializes file growth so two inserts cannot append the same page.
	mu sync.Mutex
}

// NewHeapFile opens (or creates) the heap file at path and registers nothing;
// callers register it with the page store, typically through the catalog.
func NewHeapFile(path primitives.Filepath, desc *tuple.TupleDesc, pool *memory.BufferPool) (*HeapFile, error) {
	if desc == nil {
		return nil, fmt.Errorf("heap file needs a tuple descriptor")
	}
	abs := path.Abs()
	f, err := os.OpenFile(string(abs), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open heap file %s: %w", abs, err)
	}
	return &HeapFile{
		path: abs,
		file: f,
		desc: desc,
		pool: pool,
		id:   fileIDFor(abs),
	}, nil
}

// fileIDFor derives a stable id from the absolute file path, so the same
// table gets the same id across opens.
func fileIDFor(path primitives.Filepath) primitives.FileID {
	h := fnv.New64a()
	h.Write([]byte(path))
	return primitives.FileID(h.Sum64())
}

// ID returns the file's identity.
func (hf *HeapFile) ID() primitives.FileID {
	return hf.id
}

// FilePath returns the absolute path of the backing file.
func (hf *HeapFile) FilePath() primitives.Filepath {
	return hf.path
}

// TupleDesc returns the shape of the tuples stored in this file.
func (hf *HeapFile) TupleDesc() *tuple.TupleDesc {
	return hf.desc
}

// Close releases the backing file handle.
func (hf *HeapFile) Close() error {
	return hf.file.Close()
}

// NumPages returns the number of whole pages in the file.
func (hf *HeapFile) NumPages() primitives.PageNumber {
	info, err := hf.file.Stat()
	if err != nil {
		return 0
	}
	return primitives.PageNumber(info.Size() / page.PageSize)
}

// ReadPage reads the page at the given index from disk.
func (hf *HeapFile) ReadPage(no primitives.PageNumber) (page.Page, error) {
	data := make([]byte, page.PageSize)
	offset := int64(no) * page.PageSize
	n, err := hf.file.ReadAt(data, offset)
	if n < page.PageSize {
		if err == io.EOF || err == io.ErrUnexpectedEOF || err == nil {
			return nil, fmt.Errorf("page %d is beyond the end of %s", no, hf.path)
		}
		return nil, fmt.Errorf("failed to read page %d of %s: %w", no, hf.path, err)
	}
	return ParseHeapPage(page.NewPageDescriptor(hf.id, no), hf.desc, data)
}

// WritePage writes p back to its slot in the file.
func (hf *HeapFile) WritePage(p page.Page) error {
	data, err := p.PageData()
	if err != nil {
		return fmt.Errorf("failed to serialize %v: %w", p.ID(), err)
	}
	offset := int64(p.ID().PageNo()) * page.PageSize
	if _, err := hf.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("failed to write %v to %s: %w", p.ID(), hf.path, err)
	}
	return nil
}

// InsertTuple adds t to the first page with a free slot, fetching candidate
// pages through the buffer pool with ReadWrite permission. When every page is
// full the file grows by one empty page on disk and the tuple lands there.
// The modified page is returned marked dirty for tid.
func (hf *HeapFile) InsertTuple(tid *primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error) {
	numPages := hf.NumPages()
	for no := primitives.PageNumber(0); no < numPages; no++ {
		hp, err := hf.fetchPage(tid, no, primitives.ReadWrite)
		if err != nil {
			return nil, err
		}
		if !hp.HasFreeSlot() {
			continue
		}
		// Dirty before mutating, so a concurrent commit walking clean pages
		// can never snapshot a half-applied change.
		hp.MarkDirty(true, tid)
		if _, err := hp.InsertTuple(t); err != nil {
			return nil, err
		}
		return []page.Page{hp}, nil
	}

	no, err := hf.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	hp, err := hf.fetchPage(tid, no, primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp.MarkDirty(true, tid)
	if _, err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []page.Page{hp}, nil
}

// appendEmptyPage extends the file by one serialized empty page and returns
// its index. The page carries no tuples yet, so writing it to disk does not
// expose uncommitted data.
func (hf *HeapFile) appendEmptyPage() (primitives.PageNumber, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	no := hf.NumPages()
	empty, err := NewHeapPage(page.NewPageDescriptor(hf.id, no), hf.desc)
	if err != nil {
		return 0, err
	}
	if err := hf.WritePage(empty); err != nil {
		return 0, fmt.Errorf("failed to grow %s: %w", hf.path, err)
	}
	return no, nil
}

// DeleteTuple removes t, located by its RecordID, and returns the modified
// page marked dirty for tid.
func (hf *HeapFile) DeleteTuple(tid *primitives.TransactionID, t *tuple.Tuple) (page.Page, error) {
	if t.RID == nil {
		return nil, fmt.Errorf("cannot delete a tuple with no record id")
	}
	if t.RID.PageID.FileID() != hf.id {
		return nil, fmt.Errorf("record id %v does not belong to file %d", t.RID, hf.id)
	}
	hp, err := hf.fetchPage(tid, t.RID.PageID.PageNo(), primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp.MarkDirty(true, tid)
	if err := hp.DeleteTuple(t.RID); err != nil {
		return nil, err
	}
	return hp, nil
}

// Iterator returns a pull iterator over every tuple in the file, pinning
// pages through the buffer pool with ReadOnly permission.
func (hf *HeapFile) Iterator(tid *primitives.TransactionID) (func() (*tuple.Tuple, error), error) {
	no := primitives.PageNumber(0)
	var pageIter func() (*tuple.Tuple, error)

	return func() (*tuple.Tuple, error) {
		for {
			if pageIter == nil {
				if no >= hf.NumPages() {
					return nil, nil
				}
				hp, err := hf.fetchPage(tid, no, primitives.ReadOnly)
				if err != nil {
					return nil, err
				}
				pageIter = hp.Iterator()
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
			pageIter = nil
			no++
		}
	}, nil
}

// fetchPage pins a page through the buffer pool and narrows it to a heap
// page.
func (hf *HeapFile) fetchPage(tid *primitives.TransactionID, no primitives.PageNumber, perm primitives.Permissions) (*HeapPage, error) {
	p, err := hf.pool.GetPage(tid, page.NewPageDescriptor(hf.id, no), perm)
	if err != nil {
		return nil, err
	}
	hp, ok := p.(*HeapPage)
	if !ok {
		return nil, fmt.Errorf("page %v is not a heap page", p.ID())
	}
	return hp, nil
}
