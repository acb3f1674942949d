package transaction

import (
	"testing"

	"stashdb/pkg/primitives"
)

func TestRegisterKeepsOriginalStartTime(t *testing.T) {
	reg := NewRegistry()
	tid := primitives.NewTransactionID()

	first := reg.Register(tid)
	second := reg.Register(tid)

	if !first.Equal(second) {
		t.Errorf("re-registering must keep the start time: %v vs %v", first, second)
	}
	if reg.Live() != 1 {
		t.Errorf("expected 1 live transaction, got %d", reg.Live())
	}
}

func TestLookupUnknownTransaction(t *testing.T) {
	reg := NewRegistry()
	if _, live := reg.Lookup(primitives.NewTransactionID()); live {
		t.Error("unknown transaction must not be live")
	}
}

func TestForget(t *testing.T) {
	reg := NewRegistry()
	tid := primitives.NewTransactionID()
	reg.Register(tid)

	reg.Forget(tid)
	if _, live := reg.Lookup(tid); live {
		t.Error("forgotten transaction must not be live")
	}

	// Forgetting twice is fine.
	reg.Forget(tid)
	if reg.Live() != 0 {
		t.Errorf("expected 0 live transactions, got %d", reg.Live())
	}
}
