package lock

import (
	"fmt"
	"time"

	"stashdb/pkg/concurrency/transaction"
	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
)

// Timeouts carries the deadlines and retry intervals of the blocking acquire
// protocol. The deadline doubles as the deadlock detector: a request that
// cannot be granted before its transaction's deadline aborts that
// transaction, whether the cause was a real deadlock or plain contention.
type Timeouts struct {
	// FirstDeadline bounds how long a transaction's very first acquire may
	// wait, measured from the transaction's start. New transactions are cheap
	// to restart, so they yield quickly.
	FirstDeadline time.Duration

	// RunningDeadline bounds every later acquire, measured from the same
	// start time. A transaction that already holds work gets more latitude.
	RunningDeadline time.Duration

	// InitialSleep is the retry interval for a first acquire.
	InitialSleep time.Duration

	// RunningSleep is the retry interval for later acquires.
	RunningSleep time.Duration
}

// DefaultTimeouts returns the stock acquire timing.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		FirstDeadline:   250 * time.Millisecond,
		RunningDeadline: 500 * time.Millisecond,
		InitialSleep:    200 * time.Millisecond,
		RunningSleep:    10 * time.Millisecond,
	}
}

// Manager combines the lock table with the blocking acquire protocol. It
// registers transactions in the registry on their first acquire and uses the
// recorded start times to anchor deadlines.
type Manager struct {
	table    *LockTable
	registry *transaction.Registry
	timeouts Timeouts
}

// NewManager creates a lock manager over its own lock table.
func NewManager(registry *transaction.Registry, timeouts Timeouts) *Manager {
	return &Manager{
		table:    NewLockTable(),
		registry: registry,
		timeouts: timeouts,
	}
}

// Table exposes the underlying lock table.
func (m *Manager) Table() *LockTable {
	return m.table
}

// Acquire blocks until tid holds the lock on pid implied by perm, or until
// the transaction's deadline elapses, in which case it returns an error
// wrapping dberror.ErrTransactionAborted.
//
// Acquire does not release anything on failure: the caller owns the abort and
// must run Complete(tid, abort) to drop locks and roll back.
func (m *Manager) Acquire(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) error {
	var deadline time.Time
	var interval time.Duration

	if start, live := m.registry.Lookup(tid); live {
		deadline = start.Add(m.timeouts.RunningDeadline)
		interval = m.timeouts.RunningSleep
	} else {
		start = m.registry.Register(tid)
		deadline = start.Add(m.timeouts.FirstDeadline)
		interval = m.timeouts.InitialSleep
	}

	for {
		if m.table.TryGrant(pid, tid, perm) {
			return nil
		}
		if time.Now().After(deadline) {
			err := dberror.New(dberror.ErrCategoryTransient, dberror.ErrCodeTxnAborted,
				fmt.Sprintf("%v gave up waiting for %v on %v", tid, perm, pid))
			err.Operation = "Acquire"
			err.Component = "LockManager"
			return err
		}
		time.Sleep(interval)
	}
}
