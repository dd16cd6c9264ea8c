// Package index implements the label index, type index, and per-key
// B-tree property indexes. Property index keys use an
// order-preserving encoding so that a bbolt bucket's native lexicographic
// cursor order directly serves range queries without an extra sort step.
package index

import (
	"encoding/binary"
	"math"

	"github.com/graphdb/core/internal/store"
)

// valueTag orders the total order across mixed types: numbers, then
// strings, then booleans, with null lowest of all — mixed-type
// comparisons fall back to this stable tagged ordering.
type valueTag byte

const (
	tagNull valueTag = iota
	tagNumber
	tagString
	tagBoolFalse
	tagBoolTrue
)

// EncodePropertyKey renders (value, nodeID) as an order-preserving byte
// key: tag byte, encoded value bytes, then the big-endian node id so
// ties break ascending by id.
func EncodePropertyKey(v store.PropValue, nodeID uint64) []byte {
	var buf []byte
	buf = append(buf, encodeValueBytes(v)...)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], nodeID)
	return append(buf, idBuf[:]...)
}

// EncodeValueOnly renders just the value portion of a property index
// key, used to build exact-match and range bounds that compare equal to
// the value prefix of EncodePropertyKey's output regardless of node id.
func EncodeValueOnly(v store.PropValue) []byte {
	return encodeValueBytes(v)
}

func encodeValueBytes(v store.PropValue) []byte {
	switch v.Tag {
	case store.PropNull:
		return []byte{byte(tagNull)}
	case store.PropBool:
		if v.Bool {
			return []byte{byte(tagBoolTrue)}
		}
		return []byte{byte(tagBoolFalse)}
	case store.PropInt:
		return append([]byte{byte(tagNumber)}, encodeOrderedFloat(float64(v.Int))...)
	case store.PropFloat:
		return append([]byte{byte(tagNumber)}, encodeOrderedFloat(v.Float)...)
	case store.PropString:
		return append([]byte{byte(tagString)}, encodeOrderedString(v.Str)...)
	default:
		// Lists/maps are not indexable; callers must not ask for them.
		return []byte{byte(tagNull)}
	}
}

// encodeOrderedFloat renders an IEEE-754 double as an 8-byte big-endian
// key that sorts in numeric order: flip the sign bit for positive
// numbers, and invert every bit for negative numbers, the standard
// order-preserving float encoding.
func encodeOrderedFloat(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

// encodeOrderedString renders s as a 0x00 0x00-terminated byte string
// with any literal 0x00 byte escaped to 0x00 0xFF, so a string value is
// never a byte-level prefix of another and the encoding still sorts in
// the same order as the underlying string: the terminator's second byte
// (0x00) is always less than an escape's second byte (0xFF) or any
// unescaped continuation byte (0x01-0xFF), so a shorter string's
// terminator always sorts before a longer string sharing its prefix.
func encodeOrderedString(s string) []byte {
	buf := make([]byte, 0, len(s)+2)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			buf = append(buf, 0x00, 0xFF)
		} else {
			buf = append(buf, s[i])
		}
	}
	return append(buf, 0x00, 0x00)
}

// DecodeNodeIDFromKey extracts the trailing 8-byte node id from an
// encoded property index key.
func DecodeNodeIDFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
