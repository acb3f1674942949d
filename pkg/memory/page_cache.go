package memory

import (
	"fmt"
	"math"

	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
)

// PageCache is the bounded map of resident pages together with the recency
// counters that approximate LRU. A page just touched has recency 0; every
// touch ages all other pages by one, so the largest counter marks the least
// recently used page.
//
// PageCache is not safe for concurrent use: the buffer pool serializes every
// structural mutation behind its own mutex.
type PageCache struct {
	capacity int

	resident map[primitives.HashCode]page.Page
	recency  map[primitives.HashCode]uint64
	pids     map[primitives.HashCode]primitives.PageID
}

// NewPageCache creates a cache holding at most capacity pages.
func NewPageCache(capacity int) *PageCache {
	return &PageCache{
		capacity: capacity,
		resident: make(map[primitives.HashCode]page.Page),
		recency:  make(map[primitives.HashCode]uint64),
		pids:     make(map[primitives.HashCode]primitives.PageID),
	}
}

// Capacity returns the maximum number of resident pages.
func (pc *PageCache) Capacity() int {
	return pc.capacity
}

// Len returns the number of resident pages.
func (pc *PageCache) Len() int {
	return len(pc.resident)
}

// Full reports whether the cache is at capacity.
func (pc *PageCache) Full() bool {
	return len(pc.resident) >= pc.capacity
}

// Get returns the resident page for pid and refreshes its recency, or nil on
// a miss.
func (pc *PageCache) Get(pid primitives.PageID) page.Page {
	key := pid.HashCode()
	p, ok := pc.resident[key]
	if !ok {
		return nil
	}
	pc.touch(key)
	return p
}

// Peek returns the resident page for pid without touching recency, or nil.
func (pc *PageCache) Peek(pid primitives.PageID) page.Page {
	return pc.resident[pid.HashCode()]
}

// Install inserts p under pid and makes it the most recent page. The caller
// must have made room first; installing into a full cache is an invariant
// violation.
func (pc *PageCache) Install(pid primitives.PageID, p page.Page) error {
	key := pid.HashCode()
	if _, exists := pc.resident[key]; !exists && pc.Full() {
		err := dberror.New(dberror.ErrCategoryInternal, dberror.ErrCodeInvariantViolation,
			fmt.Sprintf("install of %v into a full cache (%d/%d)", pid, len(pc.resident), pc.capacity))
		err.Component = "PageCache"
		return err
	}
	pc.resident[key] = p
	pc.pids[key] = pid
	pc.touch(key)
	return nil
}

// Replace swaps the resident copy under pid for p, keeping its recency. It is
// a no-op when pid is not resident.
func (pc *PageCache) Replace(pid primitives.PageID, p page.Page) {
	key := pid.HashCode()
	if _, ok := pc.resident[key]; ok {
		pc.resident[key] = p
	}
}

// MarkDirty marks the resident page for pid dirty, owned by tid. It reports
// whether the page was resident.
func (pc *PageCache) MarkDirty(pid primitives.PageID, tid *primitives.TransactionID) bool {
	p, ok := pc.resident[pid.HashCode()]
	if !ok {
		return false
	}
	p.MarkDirty(true, tid)
	return true
}

// Discard removes pid from the cache unconditionally.
func (pc *PageCache) Discard(pid primitives.PageID) {
	key := pid.HashCode()
	delete(pc.resident, key)
	delete(pc.recency, key)
	delete(pc.pids, key)
}

// Resident returns a snapshot of the resident page ids.
func (pc *PageCache) Resident() []primitives.PageID {
	ids := make([]primitives.PageID, 0, len(pc.pids))
	for _, pid := range pc.pids {
		ids = append(ids, pid)
	}
	return ids
}

// DirtyCount returns the number of resident dirty pages.
func (pc *PageCache) DirtyCount() int {
	n := 0
	for _, p := range pc.resident {
		if p.IsDirty() != nil {
			n++
		}
	}
	return n
}

// touch makes key the most recent entry and ages everything else by one.
// Counters are reset when any of them would overflow.
func (pc *PageCache) touch(key primitives.HashCode) {
	for _, v := range pc.recency {
		if v == math.MaxUint64 {
			for k := range pc.recency {
				pc.recency[k] = 0
			}
			break
		}
	}
	for k := range pc.recency {
		pc.recency[k]++
	}
	pc.recency[key] = 0
}
