package store

import (
	"encoding/binary"
	"math"

	"github.com/graphdb/core/internal/graphdberr"
)

// PropValue is the record store's on-disk property value representation:
// a tagged union covering every type Cypher properties may hold. It is
// deliberately simpler than internal/eval's query-time Value (no node/
// relationship/path variants — properties never hold those), and is not
// order-preserving; internal/index defines its own encoding for that.
type PropValue struct {
	Tag     PropTag
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	List    []PropValue
	Map     map[string]PropValue
	Point   PointValue
}

// PointValue is the on-disk form of a point() property: two or three
// coordinates tagged with the coordinate reference system they were
// constructed in.
type PointValue struct {
	X, Y, Z float64
	Has3D   bool
	CRS     byte
}

// PropTag discriminates the PropValue union.
type PropTag byte

const (
	PropNull PropTag = iota
	PropBool
	PropInt
	PropFloat
	PropString
	PropList
	PropMap
	PropPoint
)

func NullValue() PropValue          { return PropValue{Tag: PropNull} }
func BoolValue(b bool) PropValue    { return PropValue{Tag: PropBool, Bool: b} }
func IntValue(i int64) PropValue    { return PropValue{Tag: PropInt, Int: i} }
func FloatValue(f float64) PropValue { return PropValue{Tag: PropFloat, Float: f} }
func StringValue(s string) PropValue { return PropValue{Tag: PropString, Str: s} }
func ListValue(v []PropValue) PropValue { return PropValue{Tag: PropList, List: v} }
func MapValue(v map[string]PropValue) PropValue { return PropValue{Tag: PropMap, Map: v} }
func PointProp(p PointValue) PropValue { return PropValue{Tag: PropPoint, Point: p} }

// EncodeValue serializes a PropValue for storage in a property block.
func EncodeValue(v PropValue) []byte {
	var buf []byte
	buf = append(buf, byte(v.Tag))
	switch v.Tag {
	case PropNull:
		// no payload
	case PropBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case PropInt:
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(v.Int))
		buf = append(buf, n[:]...)
	case PropFloat:
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], math.Float64bits(v.Float))
		buf = append(buf, n[:]...)
	case PropString:
		buf = append(buf, lenPrefix(len(v.Str))...)
		buf = append(buf, v.Str...)
	case PropList:
		buf = append(buf, lenPrefix(len(v.List))...)
		for _, elem := range v.List {
			enc := EncodeValue(elem)
			buf = append(buf, lenPrefix(len(enc))...)
			buf = append(buf, enc...)
		}
	case PropMap:
		buf = append(buf, lenPrefix(len(v.Map))...)
		for k, mv := range v.Map {
			buf = append(buf, lenPrefix(len(k))...)
			buf = append(buf, k...)
			enc := EncodeValue(mv)
			buf = append(buf, lenPrefix(len(enc))...)
			buf = append(buf, enc...)
		}
	case PropPoint:
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], math.Float64bits(v.Point.X))
		buf = append(buf, n[:]...)
		binary.BigEndian.PutUint64(n[:], math.Float64bits(v.Point.Y))
		buf = append(buf, n[:]...)
		binary.BigEndian.PutUint64(n[:], math.Float64bits(v.Point.Z))
		buf = append(buf, n[:]...)
		if v.Point.Has3D {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, v.Point.CRS)
	}
	return buf
}

func lenPrefix(n int) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	return buf[:]
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(buf []byte) (PropValue, error) {
	v, _, err := decodeValueAt(buf, 0)
	return v, err
}

func decodeValueAt(buf []byte, off int) (PropValue, int, error) {
	if off >= len(buf) {
		return PropValue{}, off, graphdberr.New(graphdberr.KindStorage, "truncated property value")
	}
	tag := PropTag(buf[off])
	off++
	switch tag {
	case PropNull:
		return PropValue{Tag: PropNull}, off, nil
	case PropBool:
		return PropValue{Tag: PropBool, Bool: buf[off] == 1}, off + 1, nil
	case PropInt:
		i := int64(binary.BigEndian.Uint64(buf[off : off+8]))
		return PropValue{Tag: PropInt, Int: i}, off + 8, nil
	case PropFloat:
		f := math.Float64frombits(binary.BigEndian.Uint64(buf[off : off+8]))
		return PropValue{Tag: PropFloat, Float: f}, off + 8, nil
	case PropString:
		n := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		s := string(buf[off : off+n])
		return PropValue{Tag: PropString, Str: s}, off + n, nil
	case PropList:
		n := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		list := make([]PropValue, 0, n)
		for i := 0; i < n; i++ {
			elemLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
			off += 4
			elem, _, err := decodeValueAt(buf[off:off+elemLen], 0)
			if err != nil {
				return PropValue{}, off, err
			}
			list = append(list, elem)
			off += elemLen
		}
		return PropValue{Tag: PropList, List: list}, off, nil
	case PropMap:
		n := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		m := make(map[string]PropValue, n)
		for i := 0; i < n; i++ {
			klen := int(binary.BigEndian.Uint32(buf[off : off+4]))
			off += 4
			key := string(buf[off : off+klen])
			off += klen
			vlen := int(binary.BigEndian.Uint32(buf[off : off+4]))
			off += 4
			val, _, err := decodeValueAt(buf[off:off+vlen], 0)
			if err != nil {
				return PropValue{}, off, err
			}
			m[key] = val
			off += vlen
		}
		return PropValue{Tag: PropMap, Map: m}, off, nil
	case PropPoint:
		if off+26 > len(buf) {
			return PropValue{}, off, graphdberr.New(graphdberr.KindStorage, "truncated point property value")
		}
		x := math.Float64frombits(binary.BigEndian.Uint64(buf[off : off+8]))
		y := math.Float64frombits(binary.BigEndian.Uint64(buf[off+8 : off+16]))
		z := math.Float64frombits(binary.BigEndian.Uint64(buf[off+16 : off+24]))
		has3D := buf[off+24] == 1
		crs := buf[off+25]
		return PropValue{Tag: PropPoint, Point: PointValue{X: x, Y: y, Z: z, Has3D: has3D, CRS: crs}}, off + 26, nil
	default:
		return PropValue{}, off, graphdberr.New(graphdberr.KindStorage, "unknown property value tag %d", tag)
	}
}
