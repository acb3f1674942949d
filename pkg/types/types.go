// Package types defines the field value model stored inside tuples.
package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// StringLength is the fixed on-disk size of a string field, in bytes. Longer
// values are truncated on construction, backing off to a rune boundary so a
// multi-byte character is never split; shorter values are zero padded.
const StringLength = 32

// Type enumerates the supported field types.
type Type int

const (
	// IntType is a 64-bit signed integer field.
	IntType Type = iota
	// StringType is a fixed-length string field.
	StringType
)

// String returns a string representation of the type.
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "STRING"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Size returns the serialized size of a value of this type, in bytes.
func (t Type) Size() int {
	switch t {
	case IntType:
		return 8
	case StringType:
		return StringLength
	default:
		return 0
	}
}

// Field is a single typed value within a tuple.
type Field interface {
	Type() Type
	Serialize(buf *bytes.Buffer) error
	String() string
}

// IntField holds a 64-bit integer value.
type IntField struct {
	Value int64
}

// NewIntField creates an integer field.
func NewIntField(v int64) IntField {
	return IntField{Value: v}
}

// Type returns IntType.
func (f IntField) Type() Type {
	return IntType
}

// Serialize writes the value in little-endian order.
func (f IntField) Serialize(buf *bytes.Buffer) error {
	return binary.Write(buf, binary.LittleEndian, f.Value)
}

func (f IntField) String() string {
	return fmt.Sprintf("%d", f.Value)
}

// StringField holds a fixed-length string value.
type StringField struct {
	Value string
}

// NewStringField creates a string field, truncating to at most StringLength
// bytes on a rune boundary.
func NewStringField(v string) StringField {
	if len(v) > StringLength {
		cut := StringLength
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return StringField{Value: v}
}

// Type returns StringType.
func (f StringField) Type() Type {
	return StringType
}

// Serialize writes the value zero padded to StringLength bytes.
func (f StringField) Serialize(buf *bytes.Buffer) error {
	raw := make([]byte, StringLength)
	copy(raw, f.Value)
	_, err := buf.Write(raw)
	return err
}

func (f StringField) String() string {
	return f.Value
}

// ParseField reads one field of the given type from buf.
func ParseField(buf *bytes.Buffer, t Type) (Field, error) {
	switch t {
	case IntType:
		var v int64
		if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("failed to read int field: %w", err)
		}
		return IntField{Value: v}, nil
	case StringType:
		raw := make([]byte, StringLength)
		if _, err := io.ReadFull(buf, raw); err != nil {
			return nil, fmt.Errorf("failed to read string field: %w", err)
		}
		return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
	default:
		return nil, fmt.Errorf("unknown field type %v", t)
	}
}
