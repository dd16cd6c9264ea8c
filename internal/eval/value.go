// Package eval implements the query-time expression evaluator: the tagged
// value union, the recursive evaluator over internal/cypher's AST, and the
// builtin/UDF function registry.
package eval

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/graphdb/core/internal/store"
)

// ValueTag discriminates the Value union. It extends store.PropTag with
// the query-time-only variants (node/relationship/path/date/datetime/
// duration) that never appear in a persisted property; point is the one
// exception, round-tripping through store.PropPoint.
type ValueTag int

const (
	TagNull ValueTag = iota
	TagBool
	TagInt
	TagFloat
	TagString
	TagList
	TagMap
	TagNode
	TagRelationship
	TagPath
	TagPoint
	TagDate
	TagDateTime
	TagDuration
)

// Node is the query-time projection of a node: id, resolved label names,
// and its property map by name (already resolved from store.PropValue by
// the caller holding a catalog).
type Node struct {
	ID     uint64
	Labels []string
	Props  map[string]Value
}

// Relationship is the query-time projection of a relationship.
type Relationship struct {
	ID    uint64
	Type  string
	Src   uint64
	Dst   uint64
	Props map[string]Value
}

// Path is an alternating node/relationship sequence produced by pattern
// matching or variable-length expansion.
type Path struct {
	Nodes []Node
	Rels  []Relationship
}

// CRS is the coordinate reference system of a Point.
type CRS int

const (
	CRSCartesian CRS = iota
	CRSCartesian3D
	CRSWGS84
	CRSWGS84_3D
)

func (c CRS) String() string {
	switch c {
	case CRSCartesian3D:
		return "cartesian-3d"
	case CRSWGS84:
		return "wgs-84"
	case CRSWGS84_3D:
		return "wgs-84-3d"
	default:
		return "cartesian"
	}
}

// Point is a 2D or 3D point in one of four supported coordinate systems.
type Point struct {
	X, Y, Z float64
	Has3D   bool
	CRS     CRS
}

// Duration is an ISO-8601-style duration measured in months, days, and
// seconds, kept separate because month length varies.
type Duration struct {
	Months  int64
	Days    int64
	Seconds float64
}

// Value is the tagged union flowing through expression evaluation. Only
// one field is meaningful per Tag.
type Value struct {
	Tag   ValueTag
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   map[string]Value

	Node         Node
	Relationship Relationship
	Path         Path
	Point        Point
	Time         time.Time // used for TagDate/TagDateTime
	Duration     Duration
}

func Null() Value                 { return Value{Tag: TagNull} }
func Bool(b bool) Value           { return Value{Tag: TagBool, Bool: b} }
func Int(i int64) Value           { return Value{Tag: TagInt, Int: i} }
func Float(f float64) Value       { return Value{Tag: TagFloat, Float: f} }
func String(s string) Value       { return Value{Tag: TagString, Str: s} }
func List(items []Value) Value    { return Value{Tag: TagList, List: items} }
func Map(m map[string]Value) Value { return Value{Tag: TagMap, Map: m} }

func (v Value) IsNull() bool { return v.Tag == TagNull }

func (v Value) Truthy() (bool, bool) {
	if v.Tag != TagBool {
		return false, false
	}
	return v.Bool, true
}

// FromPropValue lifts a storage-layer property value into a query-time
// Value; the two tag enumerations share their first seven variants by
// construction.
func FromPropValue(pv store.PropValue) Value {
	switch pv.Tag {
	case store.PropNull:
		return Null()
	case store.PropBool:
		return Bool(pv.Bool)
	case store.PropInt:
		return Int(pv.Int)
	case store.PropFloat:
		return Float(pv.Float)
	case store.PropString:
		return String(pv.Str)
	case store.PropList:
		items := make([]Value, len(pv.List))
		for i, e := range pv.List {
			items[i] = FromPropValue(e)
		}
		return List(items)
	case store.PropMap:
		m := make(map[string]Value, len(pv.Map))
		for k, e := range pv.Map {
			m[k] = FromPropValue(e)
		}
		return Map(m)
	case store.PropPoint:
		return Value{Tag: TagPoint, Point: Point{
			X: pv.Point.X, Y: pv.Point.Y, Z: pv.Point.Z,
			Has3D: pv.Point.Has3D, CRS: CRS(pv.Point.CRS),
		}}
	default:
		return Null()
	}
}

// ToPropValue lowers a query-time Value back to a storage-layer property
// value; node/relationship/path/date/duration values cannot be stored as
// properties and return ok=false. Points round-trip via store.PropPoint.
func ToPropValue(v Value) (store.PropValue, bool) {
	switch v.Tag {
	case TagNull:
		return store.NullValue(), true
	case TagBool:
		return store.BoolValue(v.Bool), true
	case TagInt:
		return store.IntValue(v.Int), true
	case TagFloat:
		return store.FloatValue(v.Float), true
	case TagString:
		return store.StringValue(v.Str), true
	case TagList:
		out := make([]store.PropValue, len(v.List))
		for i, e := range v.List {
			pv, ok := ToPropValue(e)
			if !ok {
				return store.PropValue{}, false
			}
			out[i] = pv
		}
		return store.ListValue(out), true
	case TagMap:
		out := make(map[string]store.PropValue, len(v.Map))
		for k, e := range v.Map {
			pv, ok := ToPropValue(e)
			if !ok {
				return store.PropValue{}, false
			}
			out[k] = pv
		}
		return store.MapValue(out), true
	case TagPoint:
		return store.PointProp(store.PointValue{
			X: v.Point.X, Y: v.Point.Y, Z: v.Point.Z,
			Has3D: v.Point.Has3D, CRS: byte(v.Point.CRS),
		}), true
	default:
		return store.PropValue{}, false
	}
}

// TypeName returns the Cypher-visible type name, used by TypeMismatch
// error messages and the `toString`-family functions.
func (v Value) TypeName() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBool:
		return "boolean"
	case TagInt:
		return "integer"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagNode:
		return "node"
	case TagRelationship:
		return "relationship"
	case TagPath:
		return "path"
	case TagPoint:
		return "point"
	case TagDate:
		return "date"
	case TagDateTime:
		return "datetime"
	case TagDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Equal implements value equality per Cypher semantics: null is never
// equal to anything, including another null (callers wanting `IS NULL`
// semantics use IsNull instead).
func Equal(a, b Value) (Value, bool) {
	if a.Tag == TagNull || b.Tag == TagNull {
		return Null(), true
	}
	if isNumeric(a) && isNumeric(b) {
		return Bool(numericEqual(a, b)), true
	}
	if a.Tag != b.Tag {
		return Bool(false), true
	}
	switch a.Tag {
	case TagBool:
		return Bool(a.Bool == b.Bool), true
	case TagString:
		return Bool(a.Str == b.Str), true
	case TagList:
		if len(a.List) != len(b.List) {
			return Bool(false), true
		}
		for i := range a.List {
			eq, ok := Equal(a.List[i], b.List[i])
			if !ok || eq.IsNull() || !eq.Bool {
				return eq, ok
			}
		}
		return Bool(true), true
	case TagMap:
		if len(a.Map) != len(b.Map) {
			return Bool(false), true
		}
		keys := make([]string, 0, len(a.Map))
		for k := range a.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			bv, present := b.Map[k]
			if !present {
				return Bool(false), true
			}
			eq, ok := Equal(a.Map[k], bv)
			if !ok || eq.IsNull() || !eq.Bool {
				return eq, ok
			}
		}
		return Bool(true), true
	case TagNode:
		return Bool(a.Node.ID == b.Node.ID), true
	case TagRelationship:
		return Bool(a.Relationship.ID == b.Relationship.ID), true
	default:
		return Bool(false), false
	}
}

func isNumeric(v Value) bool { return v.Tag == TagInt || v.Tag == TagFloat }

func numericEqual(a, b Value) bool {
	return asFloat(a) == asFloat(b)
}

func asFloat(v Value) float64 {
	if v.Tag == TagInt {
		return float64(v.Int)
	}
	return v.Float
}

func (v Value) String() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBool:
		return fmt.Sprintf("%t", v.Bool)
	case TagInt:
		return fmt.Sprintf("%d", v.Int)
	case TagFloat:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			return fmt.Sprintf("%f", v.Float)
		}
		return fmt.Sprintf("%g", v.Float)
	case TagString:
		return v.Str
	default:
		return fmt.Sprintf("<%s>", v.TypeName())
	}
}
