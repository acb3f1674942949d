package tuple

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"stashdb/pkg/types"
)

func desc(t *testing.T) *TupleDesc {
	t.Helper()
	td, err := NewTupleDesc(
		[]types.Type{types.IntType, types.StringType},
		[]string{"id", "name"},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc failed: %v", err)
	}
	return td
}

func TestTupleDescSize(t *testing.T) {
	td := desc(t)
	want := 8 + types.StringLength
	if td.Size() != want {
		t.Errorf("expected size %d, got %d", want, td.Size())
	}
}

func TestTupleDescValidation(t *testing.T) {
	if _, err := NewTupleDesc(nil, nil); err == nil {
		t.Error("an empty descriptor must be rejected")
	}
	if _, err := NewTupleDesc([]types.Type{types.IntType}, []string{"a", "b"}); err == nil {
		t.Error("mismatched name count must be rejected")
	}
}

func TestNewTupleChecksShape(t *testing.T) {
	td := desc(t)

	if _, err := NewTuple(td, []types.Field{types.NewIntField(1)}); err == nil {
		t.Error("wrong field count must be rejected")
	}
	if _, err := NewTuple(td, []types.Field{
		types.NewStringField("x"),
		types.NewStringField("y"),
	}); err == nil {
		t.Error("wrong field type must be rejected")
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	td := desc(t)
	want, err := NewTuple(td, []types.Field{
		types.NewIntField(-17),
		types.NewStringField("hello"),
	})
	if err != nil {
		t.Fatalf("NewTuple failed: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := want.Serialize(buf); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if buf.Len() != td.Size() {
		t.Fatalf("serialized %d bytes, want %d", buf.Len(), td.Size())
	}

	got, err := Parse(buf, td)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !got.Equals(want) {
		t.Errorf("round trip mismatch: %v vs %v", got, want)
	}
}

func TestStringTruncation(t *testing.T) {
	long := make([]byte, types.StringLength+10)
	for i := range long {
		long[i] = 'a'
	}
	f := types.NewStringField(string(long))
	if len(f.Value) != types.StringLength {
		t.Errorf("expected truncation to %d bytes, got %d", types.StringLength, len(f.Value))
	}
}

func TestStringTruncationKeepsRunesWhole(t *testing.T) {
	// 31 ASCII bytes followed by a 3-byte rune straddling the limit.
	v := strings.Repeat("a", types.StringLength-1) + "世"
	f := types.NewStringField(v)

	if len(f.Value) > types.StringLength {
		t.Fatalf("field is %d bytes, limit is %d", len(f.Value), types.StringLength)
	}
	if !utf8.ValidString(f.Value) {
		t.Error("truncation must not split a rune")
	}
	if f.Value != strings.Repeat("a", types.StringLength-1) {
		t.Errorf("expected the straddling rune to be dropped, got %q", f.Value)
	}

	// The truncated value survives the wire unchanged.
	buf := new(bytes.Buffer)
	if err := f.Serialize(buf); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := types.ParseField(buf, types.StringType)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.(types.StringField).Value != f.Value {
		t.Errorf("round trip changed the value: %q vs %q", parsed, f.Value)
	}
}

func TestEqualsIgnoresRecordID(t *testing.T) {
	td := desc(t)
	a, _ := NewTuple(td, []types.Field{types.NewIntField(1), types.NewStringField("x")})
	b, _ := NewTuple(td, []types.Field{types.NewIntField(1), types.NewStringField("x")})
	b.RID = &RecordID{SlotNo: 5}

	if !a.Equals(b) {
		t.Error("tuples with equal fields must be equal regardless of record id")
	}
}
