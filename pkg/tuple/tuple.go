// Package tuple defines tuples, their descriptors, and their binary layout.
// All tuples of a table are fixed length, which lets a page compute its slot
// count from the descriptor alone.
package tuple

import (
	"bytes"
	"fmt"
	"strings"

	"stashdb/pkg/primitives"
	"stashdb/pkg/types"
)

// TupleDesc describes the shape of every tuple in a table: ordered field
// types with optional column names.
type TupleDesc struct {
	Types []types.Type
	Names []string
}

// NewTupleDesc creates a descriptor. Names may be nil when columns are
// anonymous; otherwise it must match the length of fieldTypes.
func NewTupleDesc(fieldTypes []types.Type, names []string) (*TupleDesc, error) {
	if len(fieldTypes) == 0 {
		return nil, fmt.Errorf("tuple descriptor needs at least one field")
	}
	if names != nil && len(names) != len(fieldTypes) {
		return nil, fmt.Errorf("descriptor has %d types but %d names", len(fieldTypes), len(names))
	}
	return &TupleDesc{Types: fieldTypes, Names: names}, nil
}

// NumFields returns the number of columns.
func (td *TupleDesc) NumFields() primitives.ColumnID {
	return primitives.ColumnID(len(td.Types))
}

// Size returns the serialized size of one tuple, in bytes.
func (td *TupleDesc) Size() int {
	total := 0
	for _, t := range td.Types {
		total += t.Size()
	}
	return total
}

// Equals reports whether two descriptors have identical field types.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i, t := range td.Types {
		if other.Types[i] != t {
			return false
		}
	}
	return true
}

func (td *TupleDesc) String() string {
	parts := make([]string, len(td.Types))
	for i, t := range td.Types {
		name := ""
		if td.Names != nil {
			name = td.Names[i] + " "
		}
		parts[i] = name + t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RecordID locates a stored tuple: the page it lives on and its slot.
type RecordID struct {
	PageID primitives.PageID
	SlotNo int
}

func (r RecordID) String() string {
	return fmt.Sprintf("%v/slot=%d", r.PageID, r.SlotNo)
}

// Tuple is one row of a table. RID is set once the tuple is stored on a page
// and is required by delete.
type Tuple struct {
	Desc   *TupleDesc
	Fields []types.Field
	RID    *RecordID
}

// NewTuple creates a tuple after checking the fields against the descriptor.
func NewTuple(desc *TupleDesc, fields []types.Field) (*Tuple, error) {
	if desc == nil {
		return nil, fmt.Errorf("tuple descriptor cannot be nil")
	}
	if primitives.ColumnID(len(fields)) != desc.NumFields() {
		return nil, fmt.Errorf("descriptor expects %d fields, got %d", desc.NumFields(), len(fields))
	}
	for i, f := range fields {
		if f.Type() != desc.Types[i] {
			return nil, fmt.Errorf("field %d has type %v, descriptor expects %v", i, f.Type(), desc.Types[i])
		}
	}
	return &Tuple{Desc: desc, Fields: fields}, nil
}

// Serialize writes the tuple's fields to buf in descriptor order.
func (t *Tuple) Serialize(buf *bytes.Buffer) error {
	for i, f := range t.Fields {
		if err := f.Serialize(buf); err != nil {
			return fmt.Errorf("failed to serialize field %d: %w", i, err)
		}
	}
	return nil
}

// Parse reads one tuple of the given shape from buf.
func Parse(buf *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]types.Field, 0, len(desc.Types))
	for i, ft := range desc.Types {
		f, err := types.ParseField(buf, ft)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %d: %w", i, err)
		}
		fields = append(fields, f)
	}
	return &Tuple{Desc: desc, Fields: fields}, nil
}

// Equals compares two tuples by descriptor shape and field values. RIDs are
// ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.Desc.Equals(other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if f != other.Fields[i] {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
