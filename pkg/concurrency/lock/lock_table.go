// Package lock implements page-granularity shared/exclusive locking for
// two-phase transactions. The table answers instantaneous grant requests;
// Manager layers the blocking acquire protocol with its timeout-based
// deadlock avoidance on top.
package lock

import (
	"sync"

	"stashdb/pkg/primitives"
)

// LockTable holds the shared/exclusive lock state for every page, indexed
// both ways: page -> holders and transaction -> held pages. All four maps are
// guarded by one mutex so each operation is atomic.
//
// Compatibility is the classic S/X matrix with self-upgrade: a transaction
// already reading a page may take the exclusive lock without releasing its
// shared lock, provided no other reader exists.
type LockTable struct {
	mu sync.Mutex

	// readers maps a page to the transactions holding its shared lock.
	readers map[primitives.HashCode]map[*primitives.TransactionID]struct{}

	// writer maps a page to the single transaction holding its exclusive
	// lock, if any.
	writer map[primitives.HashCode]*primitives.TransactionID

	// heldShared and heldExclusive mirror the two maps above keyed by
	// transaction, so releasing everything a transaction holds is a direct
	// walk instead of a scan.
	heldShared    map[*primitives.TransactionID]map[primitives.HashCode]primitives.PageID
	heldExclusive map[*primitives.TransactionID]map[primitives.HashCode]primitives.PageID
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		readers:       make(map[primitives.HashCode]map[*primitives.TransactionID]struct{}),
		writer:        make(map[primitives.HashCode]*primitives.TransactionID),
		heldShared:    make(map[*primitives.TransactionID]map[primitives.HashCode]primitives.PageID),
		heldExclusive: make(map[*primitives.TransactionID]map[primitives.HashCode]primitives.PageID),
	}
}

// TryGrant attempts to grant tid the lock on pid implied by perm, without
// blocking. It returns true when the lock is held by tid on return.
//
// A shared request is granted when the page has no writer, or tid is the
// writer. An exclusive request is granted when tid is the only reader (or
// there are none) and the only writer (or there is none). A shared lock
// already held by tid survives an upgrade; releasing either lock later
// removes only the corresponding entry.
func (lt *LockTable) TryGrant(pid primitives.PageID, tid *primitives.TransactionID, perm primitives.Permissions) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	key := pid.HashCode()
	if perm == primitives.ReadOnly {
		if w, ok := lt.writer[key]; ok && w != tid {
			return false
		}
		lt.grantShared(key, pid, tid)
		return true
	}

	for reader := range lt.readers[key] {
		if reader != tid {
			return false
		}
	}
	if w, ok := lt.writer[key]; ok && w != tid {
		return false
	}
	lt.grantExclusive(key, pid, tid)
	return true
}

func (lt *LockTable) grantShared(key primitives.HashCode, pid primitives.PageID, tid *primitives.TransactionID) {
	if lt.readers[key] == nil {
		lt.readers[key] = make(map[*primitives.TransactionID]struct{})
	}
	lt.readers[key][tid] = struct{}{}
	if lt.heldShared[tid] == nil {
		lt.heldShared[tid] = make(map[primitives.HashCode]primitives.PageID)
	}
	lt.heldShared[tid][key] = pid
}

func (lt *LockTable) grantExclusive(key primitives.HashCode, pid primitives.PageID, tid *primitives.TransactionID) {
	lt.writer[key] = tid
	if lt.heldExclusive[tid] == nil {
		lt.heldExclusive[tid] = make(map[primitives.HashCode]primitives.PageID)
	}
	lt.heldExclusive[tid][key] = pid
}

// Holds reports whether tid currently holds any lock on pid.
func (lt *LockTable) Holds(tid *primitives.TransactionID, pid primitives.PageID) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	key := pid.HashCode()
	if _, ok := lt.readers[key][tid]; ok {
		return true
	}
	w, ok := lt.writer[key]
	return ok && w == tid
}

// Release drops every lock tid holds on pid. Releasing a lock that is not
// held is a no-op.
//
// Callers should be aware this breaks two-phase locking when invoked before
// the transaction completes.
func (lt *LockTable) Release(tid *primitives.TransactionID, pid primitives.PageID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.release(tid, pid.HashCode())
}

func (lt *LockTable) release(tid *primitives.TransactionID, key primitives.HashCode) {
	if readers, ok := lt.readers[key]; ok {
		delete(readers, tid)
		if len(readers) == 0 {
			delete(lt.readers, key)
		}
	}
	if lt.writer[key] == tid {
		delete(lt.writer, key)
	}
	if held, ok := lt.heldShared[tid]; ok {
		delete(held, key)
		if len(held) == 0 {
			delete(lt.heldShared, tid)
		}
	}
	if held, ok := lt.heldExclusive[tid]; ok {
		delete(held, key)
		if len(held) == 0 {
			delete(lt.heldExclusive, tid)
		}
	}
}

// ReleaseAll drops every lock tid holds and forgets its ownership sets.
func (lt *LockTable) ReleaseAll(tid *primitives.TransactionID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for key := range lt.heldExclusive[tid] {
		if lt.writer[key] == tid {
			delete(lt.writer, key)
		}
	}
	for key := range lt.heldShared[tid] {
		if readers, ok := lt.readers[key]; ok {
			delete(readers, tid)
			if len(readers) == 0 {
				delete(lt.readers, key)
			}
		}
	}
	delete(lt.heldShared, tid)
	delete(lt.heldExclusive, tid)
}

// HeldPages returns a snapshot of every page tid holds a lock on.
func (lt *LockTable) HeldPages(tid *primitives.TransactionID) []primitives.PageID {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	seen := make(map[primitives.HashCode]primitives.PageID)
	for key, pid := range lt.heldShared[tid] {
		seen[key] = pid
	}
	for key, pid := range lt.heldExclusive[tid] {
		seen[key] = pid
	}
	pages := make([]primitives.PageID, 0, len(seen))
	for _, pid := range seen {
		pages = append(pages, pid)
	}
	return pages
}

// LockedPages returns the number of pages with at least one lock held.
func (lt *LockTable) LockedPages() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	keys := make(map[primitives.HashCode]struct{})
	for key, readers := range lt.readers {
		if len(readers) > 0 {
			keys[key] = struct{}{}
		}
	}
	for key := range lt.writer {
		keys[key] = struct{}{}
	}
	return len(keys)
}
