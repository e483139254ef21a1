package resp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the RESP2 type of a Frame. The values are the protocol's
// own type prefix bytes.
type Kind byte

const (
	SimpleString Kind = '+'
	Error        Kind = '-'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	Array        Kind = '*'
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case SimpleString:
		return "simple-string"
	case Error:
		return "error"
	case Integer:
		return "integer"
	case BulkString:
		return "bulk-string"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("unknown(%q)", byte(k))
	}
}

// Frame is one decoded RESP2 message: a scalar, a bulk string, or an ordered
// sequence of nested frames. The zero value is not a valid frame; use the
// constructors.
type Frame struct {
	// Kind selects which payload field below is meaningful.
	Kind Kind

	// Str holds the payload for SimpleString, Error and BulkString frames.
	Str []byte

	// Int holds the payload for Integer frames.
	Int int64

	// Array holds the payload for Array frames.
	Array []Frame

	// Null marks a null bulk string or null array ($-1 / *-1).
	Null bool
}

// NewSimpleString returns a simple string frame (e.g. +OK).
func NewSimpleString(s string) Frame {
	return Frame{Kind: SimpleString, Str: []byte(s)}
}

// NewError returns an error frame (e.g. -ERR unknown command).
func NewError(msg string) Frame {
	return Frame{Kind: Error, Str: []byte(msg)}
}

// NewInteger returns an integer frame.
func NewInteger(n int64) Frame {
	return Frame{Kind: Integer, Int: n}
}

// NewBulkString returns a bulk string frame.
func NewBulkString(s string) Frame {
	return Frame{Kind: BulkString, Str: []byte(s)}
}

// NewBulkBytes returns a bulk string frame holding raw bytes.
func NewBulkBytes(b []byte) Frame {
	return Frame{Kind: BulkString, Str: b}
}

// NullBulkString returns the null bulk string ($-1).
func NullBulkString() Frame {
	return Frame{Kind: BulkString, Null: true}
}

// NewArray returns an array frame holding the given frames.
func NewArray(items ...Frame) Frame {
	return Frame{Kind: Array, Array: items}
}

// NullArray returns the null array (*-1).
func NullArray() Frame {
	return Frame{Kind: Array, Null: true}
}

// NewCommand returns the conventional client request encoding: an array of
// bulk strings, one per argument.
func NewCommand(args ...string) Frame {
	items := make([]Frame, len(args))
	for i, a := range args {
		items[i] = NewBulkString(a)
	}
	return NewArray(items...)
}

// Equal reports whether two frames are structurally identical: same kind,
// same nullness, and byte-for-byte equal payloads, recursively for arrays.
func (f Frame) Equal(other Frame) bool {
	if f.Kind != other.Kind || f.Null != other.Null {
		return false
	}
	switch f.Kind {
	case Integer:
		return f.Int == other.Int
	case Array:
		if len(f.Array) != len(other.Array) {
			return false
		}
		for i := range f.Array {
			if !f.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(f.Str, other.Str)
	}
}

// String renders the frame compactly for log output. Bulk payloads are
// quoted; arrays are rendered inline.
func (f Frame) String() string {
	var b strings.Builder
	f.render(&b)
	return b.String()
}

func (f Frame) render(b *strings.Builder) {
	if f.Null {
		b.WriteString("(nil)")
		return
	}
	switch f.Kind {
	case SimpleString:
		b.WriteByte('+')
		b.Write(f.Str)
	case Error:
		b.WriteByte('-')
		b.Write(f.Str)
	case Integer:
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(f.Int, 10))
	case BulkString:
		b.WriteString(strconv.Quote(string(f.Str)))
	case Array:
		b.WriteByte('[')
		for i, item := range f.Array {
			if i > 0 {
				b.WriteByte(' ')
			}
			item.render(b)
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "<%s>", f.Kind)
	}
}
