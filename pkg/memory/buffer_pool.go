// Package memory implements the buffer pool: the bounded in-memory page
// cache that mediates every access to disk pages, ties page-level locking to
// transaction lifetime, and enforces the NO STEAL / FORCE completion policy
// using per-page before-images.
package memory

import (
	"fmt"
	"sync"

	"stashdb/pkg/concurrency/lock"
	"stashdb/pkg/concurrency/transaction"
	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
	"stashdb/pkg/tuple"
)

// DefaultCapacity is the stock number of resident pages.
const DefaultCapacity = 50

// BufferPool is the public facade over the page cache, the lock manager and
// the transaction registry.
//
// Concurrency model: the lock manager has its own mutex and is the only
// component that sleeps. The pool's structural mutex serializes every
// cache-structure mutation (install, evict, flush, discard, completion
// walks); it is never held across a disk read, and the only disk write under
// it is the one inside flushPageLocked. Page contents are protected by the page
// locks the callers hold, not by the structural mutex.
type BufferPool struct {
	mu sync.Mutex // structural mutex

	cache    *PageCache
	evictor  *Evictor
	store    *PageStore
	locks    *lock.Manager
	registry *transaction.Registry
	stats    statsTracker
}

// NewBufferPool creates a buffer pool with the given page capacity.
func NewBufferPool(capacity int, store *PageStore, locks *lock.Manager, registry *transaction.Registry) *BufferPool {
	cache := NewPageCache(capacity)
	return &BufferPool{
		cache:    cache,
		evictor:  NewEvictor(cache),
		store:    store,
		locks:    locks,
		registry: registry,
	}
}

// Store returns the page store backing this pool.
func (bp *BufferPool) Store() *PageStore {
	return bp.store
}

// GetPage returns the page identified by pid on behalf of tid, after
// acquiring the lock implied by perm. The transaction is registered as live
// on its first call.
//
// On a cache miss the page is read from its owning file; a full cache evicts
// the least recently used clean page first. Errors:
//
//   - dberror.ErrTransactionAborted when the lock deadline elapsed; the
//     caller must run Complete(tid, false).
//   - dberror.ErrPageNotFound when no registered table owns pid.
//   - dberror.ErrNoEvictableVictim when every resident page is dirty.
//   - I/O errors from the underlying store, wrapped.
func (bp *BufferPool) GetPage(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error) {
	if err := bp.locks.Acquire(tid, pid, perm); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	if p := bp.cache.Get(pid); p != nil {
		bp.mu.Unlock()
		bp.stats.hit()
		return p, nil
	}
	bp.mu.Unlock()
	bp.stats.miss()

	// The disk read happens outside the structural mutex. We hold the page
	// lock, so nobody can be mutating this page's contents meanwhile.
	p, err := bp.store.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	// Another reader of the same page may have installed it while we were at
	// the disk; keep the resident copy in that case.
	if cached := bp.cache.Get(pid); cached != nil {
		bp.stats.hit()
		return cached, nil
	}
	if err := bp.ensureRoom(); err != nil {
		return nil, err
	}
	if err := bp.cache.Install(pid, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureRoom evicts until the cache has space for one more page. Caller
// holds the structural mutex.
func (bp *BufferPool) ensureRoom() error {
	for bp.cache.Full() {
		victim, err := bp.evictor.PickVictim()
		if err != nil {
			bp.stats.evictFail()
			return err
		}
		// The victim is clean, so its disk copy is already current; dropping
		// it is the whole eviction.
		bp.cache.Discard(victim)
		bp.stats.eviction()
	}
	return nil
}

// InsertTuple adds t to the table identified by tableID on behalf of tid.
// The table file pins pages through GetPage with ReadWrite permission; every
// page it reports as modified is re-installed into the cache and marked
// dirty, owned by tid.
//
// The caller must not hold any of the pool's internal locks.
func (bp *BufferPool) InsertTuple(tid *primitives.TransactionID, tableID primitives.FileID, t *tuple.Tuple) error {
	f, err := bp.store.DbFile(tableID)
	if err != nil {
		return err
	}

	dirtied, err := f.InsertTuple(tid, t)
	if err != nil {
		return fmt.Errorf("insert into table %d failed: %w", tableID, err)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, p := range dirtied {
		pid := p.ID()
		if bp.cache.Peek(pid) == nil {
			if err := bp.ensureRoom(); err != nil {
				return err
			}
			if err := bp.cache.Install(pid, p); err != nil {
				return err
			}
		} else {
			bp.cache.Replace(pid, p)
		}
		bp.cache.MarkDirty(pid, tid)
	}
	return nil
}

// DeleteTuple removes t from its table on behalf of tid, resolving the table
// through the tuple's RecordID. The modified page is marked dirty; no
// re-install is needed because deletion never creates a page.
func (bp *BufferPool) DeleteTuple(tid *primitives.TransactionID, t *tuple.Tuple) error {
	if t.RID == nil {
		return fmt.Errorf("cannot delete a tuple with no record id")
	}
	f, err := bp.store.DbFile(t.RID.PageID.FileID())
	if err != nil {
		return err
	}

	p, err := f.DeleteTuple(tid, t)
	if err != nil {
		return fmt.Errorf("delete from table %d failed: %w", f.ID(), err)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if !bp.cache.MarkDirty(p.ID(), tid) {
		p.MarkDirty(true, tid)
	}
	return nil
}

// Complete ends tid. With commit true, every resident page tid dirtied is
// flushed (FORCE) and every page that is then clean has its before-image
// refreshed, so a later abort by another transaction rolls back to the
// post-commit bytes. With commit false, every resident page tid dirtied is
// replaced in place by its before-image and nothing reaches disk.
//
// In both cases all of tid's locks are released, even when a flush fails
// mid-commit; the I/O error is surfaced to the caller.
func (bp *BufferPool) Complete(tid *primitives.TransactionID, commit bool) error {
	bp.registry.Forget(tid)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	defer bp.locks.Table().ReleaseAll(tid)

	if commit {
		bp.stats.commit()
		return bp.commitLocked(tid)
	}
	bp.stats.abort()
	return bp.abortLocked(tid)
}

func (bp *BufferPool) commitLocked(tid *primitives.TransactionID) error {
	for _, pid := range bp.cache.Resident() {
		p := bp.cache.Peek(pid)
		if owner := p.IsDirty(); owner == tid {
			if err := bp.flushPageLocked(pid); err != nil {
				return err
			}
		}
	}
	// Snapshot clean pages (including the ones just flushed) so future
	// aborts restore post-commit contents rather than older ones.
	for _, pid := range bp.cache.Resident() {
		p := bp.cache.Peek(pid)
		if p.IsDirty() == nil {
			if err := p.SetBeforeImage(); err != nil {
				return fmt.Errorf("failed to refresh before-image of %v: %w", pid, err)
			}
		}
	}
	return nil
}

func (bp *BufferPool) abortLocked(tid *primitives.TransactionID) error {
	for _, pid := range bp.cache.Resident() {
		p := bp.cache.Peek(pid)
		if owner := p.IsDirty(); owner != tid {
			continue
		}
		restored, err := p.BeforeImage()
		if err != nil {
			werr := dberror.Wrap(dberror.ErrCategoryInternal, dberror.ErrCodeInvariantViolation,
				fmt.Sprintf("failed to restore before-image of %v", pid), err)
			werr.Component = "BufferPool"
			return werr
		}
		bp.cache.Replace(pid, restored)
	}
	return nil
}

// Release drops tid's locks on pid without completing the transaction.
//
// This breaks two-phase locking: a transaction that releases early loses
// repeatable reads on that page. It exists for operators that know a page is
// finished with, such as index scans past a leaf.
func (bp *BufferPool) Release(tid *primitives.TransactionID, pid primitives.PageID) {
	bp.locks.Table().Release(tid, pid)
}

// Holds reports whether tid currently holds a lock on pid.
func (bp *BufferPool) Holds(tid *primitives.TransactionID, pid primitives.PageID) bool {
	return bp.locks.Table().Holds(tid, pid)
}

// FlushPage writes the resident copy of pid to disk and marks it clean. A
// page that is not resident flushes as a no-op.
func (bp *BufferPool) FlushPage(pid primitives.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

func (bp *BufferPool) flushPageLocked(pid primitives.PageID) error {
	p := bp.cache.Peek(pid)
	if p == nil {
		return nil
	}
	if err := bp.store.WritePage(p); err != nil {
		return err
	}
	p.MarkDirty(false, nil)
	bp.stats.flush()
	return nil
}

// FlushAllPages writes every resident page to disk and marks them clean.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range bp.cache.Resident() {
		if err := bp.flushPageLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without flushing. Used by recovery
// paths that know the resident copy must not survive.
func (bp *BufferPool) DiscardPage(pid primitives.PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.cache.Discard(pid)
}

// Stats returns a snapshot of the pool's counters.
func (bp *BufferPool) Stats() PoolStats {
	return bp.stats.Snapshot()
}

// ResidentPages returns the number of pages in the cache.
func (bp *BufferPool) ResidentPages() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.cache.Len()
}

// DirtyPages returns the number of resident dirty pages.
func (bp *BufferPool) DirtyPages() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.cache.DirtyCount()
}

// Capacity returns the configured page capacity.
func (bp *BufferPool) Capacity() int {
	return bp.cache.Capacity()
}

// LiveTransactions returns the number of registered live transactions.
func (bp *BufferPool) LiveTransactions() int {
	return bp.registry.Live()
}

// LockedPages returns the number of pages with at least one lock held.
func (bp *BufferPool) LockedPages() int {
	return bp.locks.Table().LockedPages()
}
