package memory

import (
	"testing"

	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
)

// stubPage is a minimal page for cache and evictor tests; contents are a
// single byte slice and the before-image is a copy of it.
type stubPage struct {
	pid     page.PageDescriptor
	data    []byte
	before  []byte
	dirtyBy *primitives.TransactionID
}

func newStubPage(fileID primitives.FileID, no primitives.PageNumber) *stubPage {
	data := make([]byte, page.PageSize)
	return &stubPage{
		pid:    page.NewPageDescriptor(fileID, no),
		data:   data,
		before: append([]byte(nil), data...),
	}
}

func (s *stubPage) ID() primitives.PageID              { return s.pid }
func (s *stubPage) IsDirty() *primitives.TransactionID { return s.dirtyBy }
func (s *stubPage) PageData() ([]byte, error)          { return s.data, nil }

func (s *stubPage) MarkDirty(dirty bool, tid *primitives.TransactionID) {
	if dirty {
		s.dirtyBy = tid
	} else {
		s.dirtyBy = nil
	}
}

func (s *stubPage) BeforeImage() (page.Page, error) {
	restored := newStubPage(s.pid.FileID(), s.pid.PageNo())
	copy(restored.data, s.before)
	return restored, nil
}

func (s *stubPage) SetBeforeImage() error {
	s.before = append([]byte(nil), s.data...)
	return nil
}

func TestCacheGetMiss(t *testing.T) {
	pc := NewPageCache(2)
	if p := pc.Get(page.NewPageDescriptor(1, 0)); p != nil {
		t.Error("empty cache should miss")
	}
}

func TestCacheInstallAndGet(t *testing.T) {
	pc := NewPageCache(2)
	p := newStubPage(1, 0)

	if err := pc.Install(p.ID(), p); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if got := pc.Get(p.ID()); got != p {
		t.Error("get should return the installed page")
	}
	if pc.Len() != 1 {
		t.Errorf("expected 1 resident page, got %d", pc.Len())
	}
}

func TestCacheInstallIntoFullCacheIsInvariantViolation(t *testing.T) {
	pc := NewPageCache(1)
	a := newStubPage(1, 0)
	b := newStubPage(1, 1)

	if err := pc.Install(a.ID(), a); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if err := pc.Install(b.ID(), b); err == nil {
		t.Fatal("installing into a full cache must fail")
	}
}

func TestCacheRecencyTracksAccessOrder(t *testing.T) {
	pc := NewPageCache(3)
	a := newStubPage(1, 0)
	b := newStubPage(1, 1)
	c := newStubPage(1, 2)

	pc.Install(a.ID(), a)
	pc.Install(b.ID(), b)
	pc.Install(c.ID(), c)

	// a was touched longest ago; its counter must be the largest.
	ageA := pc.recency[a.ID().HashCode()]
	ageB := pc.recency[b.ID().HashCode()]
	ageC := pc.recency[c.ID().HashCode()]
	if !(ageA > ageB && ageB > ageC) {
		t.Errorf("expected ages a > b > c, got %d, %d, %d", ageA, ageB, ageC)
	}

	// Touching a makes it the most recent again.
	pc.Get(a.ID())
	if pc.recency[a.ID().HashCode()] != 0 {
		t.Error("touched page must have recency 0")
	}
	if pc.recency[b.ID().HashCode()] <= ageB {
		t.Error("untouched pages must age on every touch")
	}
}

func TestCachePeekDoesNotTouch(t *testing.T) {
	pc := NewPageCache(2)
	a := newStubPage(1, 0)
	b := newStubPage(1, 1)
	pc.Install(a.ID(), a)
	pc.Install(b.ID(), b)

	ageA := pc.recency[a.ID().HashCode()]
	pc.Peek(a.ID())
	if pc.recency[a.ID().HashCode()] != ageA {
		t.Error("peek must not change recency")
	}
}

func TestCacheDiscard(t *testing.T) {
	pc := NewPageCache(2)
	a := newStubPage(1, 0)
	pc.Install(a.ID(), a)

	pc.Discard(a.ID())
	if pc.Get(a.ID()) != nil {
		t.Error("discarded page must not be resident")
	}
	if len(pc.resident) != len(pc.recency) || len(pc.resident) != len(pc.pids) {
		t.Error("cache maps must share one key set")
	}
}

func TestCacheMarkDirty(t *testing.T) {
	pc := NewPageCache(2)
	a := newStubPage(1, 0)
	tid := primitives.NewTransactionID()
	pc.Install(a.ID(), a)

	if !pc.MarkDirty(a.ID(), tid) {
		t.Fatal("marking a resident page should succeed")
	}
	if a.IsDirty() != tid {
		t.Error("page should be dirty, owned by tid")
	}
	if pc.DirtyCount() != 1 {
		t.Errorf("expected 1 dirty page, got %d", pc.DirtyCount())
	}
	if pc.MarkDirty(page.NewPageDescriptor(9, 9), tid) {
		t.Error("marking a non-resident page should report false")
	}
}

func TestCacheReplaceKeepsKey(t *testing.T) {
	pc := NewPageCache(2)
	a := newStubPage(1, 0)
	pc.Install(a.ID(), a)

	replacement := newStubPage(1, 0)
	pc.Replace(a.ID(), replacement)

	if got := pc.Peek(a.ID()); got != page.Page(replacement) {
		t.Error("replace should swap the resident copy")
	}
	if pc.Len() != 1 {
		t.Errorf("replace must not change residency, got %d pages", pc.Len())
	}
}
