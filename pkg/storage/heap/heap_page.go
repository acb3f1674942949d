// Package heap implements slotted heap pages and the heap files that store
// them: the concrete table storage the buffer pool mediates access to.
package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/page"
	"stashdb/pkg/tuple"
)

// HeapPage is a fixed-size slotted page of fixed-length tuples. The on-disk
// layout is an 8-byte header (total slots, used slots, both int32 LE), an
// occupancy bitmap of ceil(numSlots/8) bytes, then every slot at a fixed
// offset (empty slots are zero filled), padded to PageSize.
//
// Slots keep their positions across serialization, so a RecordID captured
// from a scan stays valid even after the page is flushed, evicted and
// reread.
type HeapPage struct {
	pid      page.PageDescriptor
	desc     *tuple.TupleDesc
	numSlots int32
	used     int32
	tuples   []*tuple.Tuple

	dirtyBy *primitives.TransactionID
	before  []byte
}

// slotsFor returns how many slots of tupleSize bytes fit a page once the
// header and one occupancy bit per slot are accounted for.
func slotsFor(tupleSize int) int {
	return (page.PageSize - page.HeaderSize) * 8 / (tupleSize*8 + 1)
}

func bitmapLen(numSlots int32) int {
	return (int(numSlots) + 7) / 8
}

// NewHeapPage constructs an empty page for the given page id. The slot count is
// derived from the tuple size.
func NewHeapPage(pid page.PageDescriptor, desc *tuple.TupleDesc) (*HeapPage, error) {
	tupleSize := desc.Size()
	if tupleSize <= 0 {
		return nil, fmt.Errorf("tuple descriptor %v has no storable fields", desc)
	}
	numSlots := slotsFor(tupleSize)
	if numSlots == 0 {
		return nil, fmt.Errorf("tuple of %d bytes does not fit a %d byte page", tupleSize, page.PageSize)
	}
	hp := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: int32(numSlots),
		tuples:   make([]*tuple.Tuple, numSlots),
	}
	if err := hp.SetBeforeImage(); err != nil {
		return nil, err
	}
	return hp, nil
}

// ParseHeapPage reconstructs a page from its on-disk bytes. Tuples come back
// in the slots the bitmap records for them. The freshly parsed contents
// become the page's before-image.
func ParseHeapPage(pid page.PageDescriptor, desc *tuple.TupleDesc, data []byte) (*HeapPage, error) {
	if len(data) != page.PageSize {
		return nil, fmt.Errorf("page data is %d bytes, want %d", len(data), page.PageSize)
	}
	buf := bytes.NewBuffer(data)

	var numSlots, used int32
	if err := binary.Read(buf, binary.LittleEndian, &numSlots); err != nil {
		return nil, fmt.Errorf("failed to read slot count: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &used); err != nil {
		return nil, fmt.Errorf("failed to read used slot count: %w", err)
	}
	if numSlots < 0 || used < 0 || used > numSlots {
		return nil, fmt.Errorf("corrupt page header: %d slots, %d used", numSlots, used)
	}

	bitmap := buf.Next(bitmapLen(numSlots))
	if len(bitmap) != bitmapLen(numSlots) {
		return nil, fmt.Errorf("corrupt page: truncated occupancy bitmap")
	}
	bitmap = append([]byte(nil), bitmap...)

	hp := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		used:     used,
		tuples:   make([]*tuple.Tuple, numSlots),
	}

	occupied := int32(0)
	tupleSize := desc.Size()
	for slot := 0; slot < int(numSlots); slot++ {
		if bitmap[slot/8]&(1<<(slot%8)) == 0 {
			if skipped := buf.Next(tupleSize); len(skipped) != tupleSize {
				return nil, fmt.Errorf("corrupt page: slot %d is truncated", slot)
			}
			continue
		}
		t, err := tuple.Parse(buf, desc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tuple in slot %d: %w", slot, err)
		}
		t.RID = &tuple.RecordID{PageID: pid, SlotNo: slot}
		hp.tuples[slot] = t
		occupied++
	}
	if occupied != used {
		return nil, fmt.Errorf("corrupt page: bitmap holds %d tuples, header says %d", occupied, used)
	}

	hp.before = make([]byte, len(data))
	copy(hp.before, data)
	return hp, nil
}

// ID returns the page's identity.
func (hp *HeapPage) ID() primitives.PageID {
	return hp.pid
}

// IsDirty returns the transaction that dirtied the page, or nil.
func (hp *HeapPage) IsDirty() *primitives.TransactionID {
	return hp.dirtyBy
}

// MarkDirty sets or clears the dirty flag.
func (hp *HeapPage) MarkDirty(dirty bool, tid *primitives.TransactionID) {
	if dirty {
		hp.dirtyBy = tid
	} else {
		hp.dirtyBy = nil
	}
}

// PageData serializes the page to exactly PageSize bytes. Every slot is
// written at its fixed offset, so slot numbers survive the round trip.
func (hp *HeapPage) PageData() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(page.PageSize)
	if err := binary.Write(buf, binary.LittleEndian, hp.numSlots); err != nil {
		return nil, fmt.Errorf("failed to write slot count: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, hp.used); err != nil {
		return nil, fmt.Errorf("failed to write used slot count: %w", err)
	}

	bitmap := make([]byte, bitmapLen(hp.numSlots))
	for slot, t := range hp.tuples {
		if t != nil {
			bitmap[slot/8] |= 1 << (slot % 8)
		}
	}
	if _, err := buf.Write(bitmap); err != nil {
		return nil, fmt.Errorf("failed to write occupancy bitmap: %w", err)
	}

	empty := make([]byte, hp.desc.Size())
	for slot, t := range hp.tuples {
		if t == nil {
			buf.Write(empty)
			continue
		}
		if err := t.Serialize(buf); err != nil {
			return nil, fmt.Errorf("failed to serialize tuple in slot %d: %w", slot, err)
		}
	}
	if buf.Len() > page.PageSize {
		return nil, fmt.Errorf("page overflow: %d bytes serialized", buf.Len())
	}
	buf.Write(make([]byte, page.PageSize-buf.Len()))
	return buf.Bytes(), nil
}

// BeforeImage returns a clean page rebuilt from the stored before-image.
func (hp *HeapPage) BeforeImage() (page.Page, error) {
	return ParseHeapPage(hp.pid, hp.desc, hp.before)
}

// SetBeforeImage snapshots the current contents as the new before-image.
func (hp *HeapPage) SetBeforeImage() error {
	data, err := hp.PageData()
	if err != nil {
		return fmt.Errorf("failed to snapshot %v: %w", hp.pid, err)
	}
	hp.before = data
	return nil
}

// NumSlots returns the page's slot count.
func (hp *HeapPage) NumSlots() int {
	return int(hp.numSlots)
}

// UsedSlots returns the number of occupied slots.
func (hp *HeapPage) UsedSlots() int {
	return int(hp.used)
}

// HasFreeSlot reports whether the page can take another tuple.
func (hp *HeapPage) HasFreeSlot() bool {
	return hp.used < hp.numSlots
}

// InsertTuple places t in the first free slot and assigns its RecordID. The
// page itself stores a copy bound to this page's descriptor.
func (hp *HeapPage) InsertTuple(t *tuple.Tuple) (*tuple.RecordID, error) {
	if !hp.desc.Equals(t.Desc) {
		return nil, fmt.Errorf("tuple shape %v does not match page shape %v", t.Desc, hp.desc)
	}
	for slot, existing := range hp.tuples {
		if existing != nil {
			continue
		}
		rid := &tuple.RecordID{PageID: hp.pid, SlotNo: slot}
		hp.tuples[slot] = &tuple.Tuple{Desc: hp.desc, Fields: t.Fields, RID: rid}
		hp.used++
		t.RID = rid
		return rid, nil
	}
	return nil, fmt.Errorf("no free slot on %v", hp.pid)
}

// DeleteTuple clears the slot named by rid.
func (hp *HeapPage) DeleteTuple(rid *tuple.RecordID) error {
	if rid == nil {
		return fmt.Errorf("cannot delete a tuple with no record id")
	}
	if rid.PageID.HashCode() != hp.pid.HashCode() {
		return fmt.Errorf("record id %v does not belong to %v", rid, hp.pid)
	}
	if rid.SlotNo < 0 || rid.SlotNo >= len(hp.tuples) || hp.tuples[rid.SlotNo] == nil {
		return fmt.Errorf("no tuple in slot %d of %v", rid.SlotNo, hp.pid)
	}
	hp.tuples[rid.SlotNo] = nil
	hp.used--
	return nil
}

// Iterator returns a pull iterator over the page's tuples in slot order. It
// returns (nil, nil) when exhausted.
func (hp *HeapPage) Iterator() func() (*tuple.Tuple, error) {
	slot := 0
	return func() (*tuple.Tuple, error) {
		for slot < len(hp.tuples) {
			t := hp.tuples[slot]
			slot++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
