package btree

import (
	"encoding/binary"
	"math"
)

// EncodeInt produces the fixed 8-byte, order-preserving encoding of a
// signed integer column: flipping the sign bit of the two's-complement
// representation makes an unsigned big-endian comparison agree with
// signed numeric ordering.
func EncodeInt(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

func DecodeInt(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// EncodeFloat produces the fixed 8-byte, order-preserving encoding of a
// float64 column. IEEE-754 bit patterns already compare correctly for
// same-sign values once treated as unsigned; flipping the sign bit and,
// for negative numbers, inverting the remaining bits extends that to a
// total order across signs.
func EncodeFloat(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func DecodeFloat(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// EncodeString produces the fixed-width, zero-padded encoding of a
// string column. Encoded values of the same declared length compare in
// lexicographic order because zero padding sorts before any other byte.
func EncodeString(s string, length int) []byte {
	buf := make([]byte, length)
	copy(buf, s)
	return buf
}

func DecodeString(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}

// EncodeKey concatenates one value per schema column, in order, into a
// single composite Key.
func EncodeKey(schema Schema, values []any) Key {
	key := make(Key, 0, schema.KeyLen())
	for i, col := range schema {
		switch col.Type {
		case ColInt:
			key = append(key, EncodeInt(toInt64(values[i]))...)
		case ColFloat:
			key = append(key, EncodeFloat(toFloat64(values[i]))...)
		case ColString:
			key = append(key, EncodeString(values[i].(string), col.Len)...)
		}
	}
	return key
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

// Comparator orders two encoded composite keys, returning a negative
// number, zero, or a positive number the way bytes.Compare does.
type Comparator func(a, b Key) int

// NewComparator builds a Comparator that walks schema's columns in
// order, comparing each column's fixed-width slice byte by byte and
// returning on the first column that differs -- i.e. lexicographic order
// over the typed columns. Because every column has a fixed width and an
// order-preserving encoding, the result is the same as a byte compare
// across the whole concatenation.
func NewComparator(schema Schema) Comparator {
	return func(a, b Key) int {
		offset := 0
		for _, col := range schema {
			end := offset + col.Len
			ca, cb := a[offset:end], b[offset:end]
			for i := range ca {
				if ca[i] != cb[i] {
					if ca[i] < cb[i] {
						return -1
					}
					return 1
				}
			}
			offset = end
		}
		return 0
	}
}
