package memory

import (
	"fmt"

	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
)

// Evictor selects eviction victims for a full cache. Policy: the clean page
// with the largest recency counter, i.e. the least recently used page whose
// disk copy is current. Dirty pages are never candidates (NO STEAL), so a
// cache full of uncommitted work refuses to evict rather than leak it to
// disk.
type Evictor struct {
	cache *PageCache
}

// NewEvictor creates an evictor over the given cache.
func NewEvictor(cache *PageCache) *Evictor {
	return &Evictor{cache: cache}
}

// PickVictim returns the id of the least recently used clean resident page.
// When every resident page is dirty it returns an error wrapping
// dberror.ErrNoEvictableVictim.
//
// The caller holds the buffer pool's structural mutex.
func (e *Evictor) PickVictim() (primitives.PageID, error) {
	var victim primitives.PageID
	var victimAge uint64
	found := false

	for key, p := range e.cache.resident {
		if p.IsDirty() != nil {
			continue
		}
		age := e.cache.recency[key]
		if !found || age > victimAge {
			victim = e.cache.pids[key]
			victimAge = age
			found = true
		}
	}

	if !found {
		err := dberror.New(dberror.ErrCategoryTransient, dberror.ErrCodeNoEvictableVictim,
			fmt.Sprintf("all %d resident pages are dirty", e.cache.Len()))
		err.Component = "Evictor"
		return nil, err
	}
	return victim, nil
}
