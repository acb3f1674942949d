package main

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	dberror "stashdb/pkg/error"
	"stashdb/pkg/memory"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/heap"
	"stashdb/pkg/tuple"
	"stashdb/pkg/types"
)

const demoWorkers = 4

// workload drives a handful of concurrent transactions against the demo
// table so the inspector has something to show: short inserts that mostly
// commit, occasional aborts, and full scans.
type workload struct {
	group *errgroup.Group

	inserted atomic.Int64
	timedOut atomic.Int64
	scans    atomic.Int64
}

func startWorkload(ctx context.Context, pool *memory.BufferPool, file *heap.HeapFile) *workload {
	w := &workload{}
	w.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < demoWorkers; i++ {
		worker := i
		w.group.Go(func() error {
			rng := rand.New(rand.NewSource(int64(worker) + 1))
			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				if rng.Intn(10) == 0 {
					w.scan(pool, file)
				} else {
					w.mutate(pool, file, rng)
				}
			}
		})
	}
	return w
}

func (w *workload) mutate(pool *memory.BufferPool, file *heap.HeapFile, rng *rand.Rand) {
	tid := primitives.NewTransactionID()
	commit := rng.Intn(5) != 0

	for i := 0; i < 3; i++ {
		t, err := tuple.NewTuple(file.TupleDesc(), []types.Field{
			types.NewIntField(rng.Int63n(1 << 30)),
			types.NewStringField("demo payload"),
		})
		if err != nil {
			pool.Complete(tid, false)
			return
		}
		if err := pool.InsertTuple(tid, file.ID(), t); err != nil {
			if errors.Is(err, dberror.ErrTransactionAborted) {
				w.timedOut.Add(1)
			}
			pool.Complete(tid, false)
			return
		}
		w.inserted.Add(1)
	}

	pool.Complete(tid, commit)
}

func (w *workload) scan(pool *memory.BufferPool, file *heap.HeapFile) {
	tid := primitives.NewTransactionID()
	iter, err := file.Iterator(tid)
	if err != nil {
		pool.Complete(tid, false)
		return
	}
	for {
		t, err := iter()
		if err != nil {
			pool.Complete(tid, false)
			return
		}
		if t == nil {
			break
		}
	}
	pool.Complete(tid, true)
	w.scans.Add(1)
}

func (w *workload) wait() {
	w.group.Wait()
}
