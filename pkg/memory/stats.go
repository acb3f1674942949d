package memory

import "sync"

// PoolStats counts what the buffer pool has done since startup. Counters are
// cumulative; Snapshot returns a copy safe to read.
type PoolStats struct {
	Hits       uint64 // GetPage served from the cache
	Misses     uint64 // GetPage that went to disk
	Evictions  uint64 // pages evicted to make room
	Flushes    uint64 // pages written back to disk
	Commits    uint64 // transactions completed with commit
	Aborts     uint64 // transactions completed with abort
	EvictFails uint64 // evictions refused because every page was dirty
}

// statsTracker guards the counters so hot paths update them without holding
// the pool's structural mutex.
type statsTracker struct {
	mu    sync.Mutex
	stats PoolStats
}

func (st *statsTracker) hit()       { st.add(func(s *PoolStats) { s.Hits++ }) }
func (st *statsTracker) miss()      { st.add(func(s *PoolStats) { s.Misses++ }) }
func (st *statsTracker) eviction()  { st.add(func(s *PoolStats) { s.Evictions++ }) }
func (st *statsTracker) flush()     { st.add(func(s *PoolStats) { s.Flushes++ }) }
func (st *statsTracker) commit()    { st.add(func(s *PoolStats) { s.Commits++ }) }
func (st *statsTracker) abort()     { st.add(func(s *PoolStats) { s.Aborts++ }) }
func (st *statsTracker) evictFail() { st.add(func(s *PoolStats) { s.EvictFails++ }) }

func (st *statsTracker) add(f func(*PoolStats)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f(&st.stats)
}

// Snapshot returns a copy of the counters.
func (st *statsTracker) Snapshot() PoolStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stats
}
