package primitives

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var txnCounter atomic.Int64

// TransactionID identifies a transaction for its whole lifetime. Two
// TransactionID pointers are the same transaction iff they are the same
// pointer; the embedded UUID makes ids unique across engine instances and the
// sequence number keeps them readable in logs and tests.
type TransactionID struct {
	uid uuid.UUID
	seq int64
}

// NewTransactionID creates a fresh transaction identity.
func NewTransactionID() *TransactionID {
	return &TransactionID{
		uid: uuid.New(),
		seq: txnCounter.Add(1),
	}
}

// ID returns the process-local sequence number of the transaction.
func (t *TransactionID) ID() int64 {
	return t.seq
}

// UUID returns the globally unique identity of the transaction.
func (t *TransactionID) UUID() uuid.UUID {
	return t.uid
}

// Equals reports whether other is the same transaction.
func (t *TransactionID) Equals(other *TransactionID) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.uid == other.uid
}

func (t *TransactionID) String() string {
	return fmt.Sprintf("txn-%d", t.seq)
}
