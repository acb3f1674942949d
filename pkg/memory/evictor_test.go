package memory

import (
	"errors"
	"testing"

	dberror "stashdb/pkg/error"
	"stashdb/pkg/primitives"
)

func TestEvictorPicksLeastRecentlyUsedCleanPage(t *testing.T) {
	pc := NewPageCache(3)
	ev := NewEvictor(pc)

	a := newStubPage(1, 0)
	b := newStubPage(1, 1)
	c := newStubPage(1, 2)
	pc.Install(a.ID(), a)
	pc.Install(b.ID(), b)
	pc.Install(c.ID(), c)

	victim, err := ev.PickVictim()
	if err != nil {
		t.Fatalf("PickVictim failed: %v", err)
	}
	if victim.HashCode() != a.ID().HashCode() {
		t.Errorf("expected the oldest page %v, got %v", a.ID(), victim)
	}
}

func TestEvictorSkipsDirtyPages(t *testing.T) {
	pc := NewPageCache(2)
	ev := NewEvictor(pc)
	tid := primitives.NewTransactionID()

	old := newStubPage(1, 0)
	young := newStubPage(1, 1)
	pc.Install(old.ID(), old)
	pc.Install(young.ID(), young)
	pc.MarkDirty(old.ID(), tid)

	victim, err := ev.PickVictim()
	if err != nil {
		t.Fatalf("PickVictim failed: %v", err)
	}
	if victim.HashCode() != young.ID().HashCode() {
		t.Errorf("the dirty page must be skipped; expected %v, got %v", young.ID(), victim)
	}
}

func TestEvictorRefusesWhenAllDirty(t *testing.T) {
	pc := NewPageCache(2)
	ev := NewEvictor(pc)
	tid := primitives.NewTransactionID()

	for no := primitives.PageNumber(0); no < 2; no++ {
		p := newStubPage(1, no)
		pc.Install(p.ID(), p)
		pc.MarkDirty(p.ID(), tid)
	}

	if _, err := ev.PickVictim(); !errors.Is(err, dberror.ErrNoEvictableVictim) {
		t.Fatalf("expected no-evictable-victim error, got %v", err)
	}
}
