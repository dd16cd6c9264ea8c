package eval

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/graphdb/core/internal/graphdberr"
)

// Function is a scalar builtin or UDF: it receives the already-evaluated
// argument list and the call-site context (for functions that need
// access to parameters or nested evaluation, none currently do).
type Function func(ctx *Context, args []Value) (Value, error)

// FunctionRegistry maps lowercase function names to implementations.
// UDFs are registered into the same map dynamically and looked up by
// name at call time — there is exactly one dispatch point (Lookup), not
// a type switch per builtin.
type FunctionRegistry struct {
	fns map[string]Function
}

// NewFunctionRegistry returns a registry preloaded with every builtin
// scalar function.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{fns: map[string]Function{}}
	r.registerBuiltins()
	return r
}

func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// Register installs a user-defined function, overwriting any existing
// entry of the same name (including a builtin) so a session can shadow
// a builtin deliberately.
func (r *FunctionRegistry) Register(name string, fn Function) {
	r.fns[strings.ToLower(name)] = fn
}

func arityError(name string, want int, got int) error {
	return graphdberr.New(graphdberr.KindCypherExecution, "%s() expects %d argument(s), got %d", name, want, got)
}

func (r *FunctionRegistry) registerBuiltins() {
	r.fns["head"] = fnHead
	r.fns["tail"] = fnTail
	r.fns["last"] = fnLast
	r.fns["size"] = fnSize
	r.fns["substring"] = fnSubstring
	r.fns["distance"] = fnDistance
	r.fns["type"] = fnType
	r.fns["labels"] = fnLabels
	r.fns["tostring"] = fnToString
	r.fns["tointeger"] = fnToInteger
	r.fns["tofloat"] = fnToFloat
	r.fns["toboolean"] = fnToBoolean
	r.fns["keys"] = fnKeys
	r.fns["coalesce"] = fnCoalesce
	r.fns["abs"] = fnAbs
	r.fns["ceil"] = fnCeil
	r.fns["floor"] = fnFloor
	r.fns["round"] = fnRound
	r.fns["sqrt"] = fnSqrt
	r.fns["toupper"] = fnToUpper
	r.fns["tolower"] = fnToLower
	r.fns["trim"] = fnTrim
	r.fns["replace"] = fnReplace
	r.fns["split"] = fnSplit
	r.fns["reverse"] = fnReverse
	r.fns["range"] = fnRange
	r.fns["point"] = fnPoint
	r.fns["id"] = fnID
	r.fns["properties"] = fnProperties
}

func fnHead(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("head", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "head() requires a list, got %s", args[0].TypeName())
	}
	if len(args[0].List) == 0 {
		return Null(), nil
	}
	return args[0].List[0], nil
}

func fnTail(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("tail", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "tail() requires a list, got %s", args[0].TypeName())
	}
	if len(args[0].List) == 0 {
		return List(nil), nil
	}
	return List(append([]Value(nil), args[0].List[1:]...)), nil
}

func fnLast(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("last", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "last() requires a list, got %s", args[0].TypeName())
	}
	if len(args[0].List) == 0 {
		return Null(), nil
	}
	return args[0].List[len(args[0].List)-1], nil
}

func fnSize(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("size", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	switch args[0].Tag {
	case TagList:
		return Int(int64(len(args[0].List))), nil
	case TagString:
		return Int(int64(utf8.RuneCountInString(args[0].Str))), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "size() requires a list or string, got %s", args[0].TypeName())
	}
}

// fnSubstring implements a clamped, negative-start-aware substring:
// negative start counts from the end (clamped at 0); length
// beyond the string's end truncates; omitted length runs to the end.
func fnSubstring(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "substring() expects 2 or 3 arguments, got %d", len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagString || args[1].Tag != TagInt {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "substring() requires (string, integer[, integer])")
	}
	runes := []rune(args[0].Str)
	n := int64(len(runes))
	start := args[1].Int
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if start >= n {
		return String(""), nil
	}
	end := n
	if len(args) == 3 {
		if args[2].Tag != TagInt {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "substring() length must be an integer")
		}
		length := args[2].Int
		if length < 0 {
			length = 0
		}
		end = start + length
		if end > n {
			end = n
		}
	}
	return String(string(runes[start:end])), nil
}

// fnDistance computes Euclidean distance for Cartesian points and a
// great-circle (haversine) distance in meters for WGS-84 points.
func fnDistance(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("distance", 2, len(args))
	}
	if args[0].IsNull() || args[1].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagPoint || args[1].Tag != TagPoint {
		return Null(), nil
	}
	p1, p2 := args[0].Point, args[1].Point
	if p1.CRS != p2.CRS {
		return Null(), nil
	}
	switch p1.CRS {
	case CRSWGS84, CRSWGS84_3D:
		return Float(haversineMeters(p1, p2)), nil
	default:
		dx, dy, dz := p1.X-p2.X, p1.Y-p2.Y, 0.0
		if p1.Has3D && p2.Has3D {
			dz = p1.Z - p2.Z
		}
		return Float(math.Sqrt(dx*dx + dy*dy + dz*dz)), nil
	}
}

const earthRadiusMeters = 6371000.0

func haversineMeters(p1, p2 Point) float64 {
	lat1, lat2 := degToRad(p1.Y), degToRad(p2.Y)
	dLat := degToRad(p2.Y - p1.Y)
	dLon := degToRad(p2.X - p1.X)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

func fnType(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("type", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagRelationship {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "type() requires a relationship, got %s", args[0].TypeName())
	}
	return String(args[0].Relationship.Type), nil
}

func fnLabels(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("labels", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagNode {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "labels() requires a node, got %s", args[0].TypeName())
	}
	out := make([]Value, len(args[0].Node.Labels))
	for i, l := range args[0].Node.Labels {
		out[i] = String(l)
	}
	return List(out), nil
}

func fnToString(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("toString", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	switch args[0].Tag {
	case TagString, TagInt, TagFloat, TagBool:
		return String(args[0].String()), nil
	default:
		return Null(), nil
	}
}

// roundHalfAwayFromZero implements the numeric-conversion rounding rule
// used by toInteger-style casts.
func roundHalfAwayFromZero(f float64) int64 {
	if f >= 0 {
		return int64(math.Floor(f + 0.5))
	}
	return int64(math.Ceil(f - 0.5))
}

func fnToInteger(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("toInteger", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagInt:
		return args[0], nil
	case TagFloat:
		return Int(roundHalfAwayFromZero(args[0].Float)), nil
	case TagString:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str), 64)
		if err != nil {
			return Null(), nil
		}
		return Int(roundHalfAwayFromZero(f)), nil
	default:
		return Null(), nil
	}
}

func fnToFloat(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("toFloat", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagFloat:
		return args[0], nil
	case TagInt:
		return Float(float64(args[0].Int)), nil
	case TagString:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str), 64)
		if err != nil {
			return Null(), nil
		}
		return Float(f), nil
	default:
		return Null(), nil
	}
}

func fnToBoolean(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("toBoolean", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagBool:
		return args[0], nil
	case TagString:
		switch strings.ToLower(args[0].Str) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		default:
			return Null(), nil
		}
	default:
		return Null(), nil
	}
}

func fnKeys(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("keys", 1, len(args))
	}
	var m map[string]Value
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagNode:
		m = args[0].Node.Props
	case TagRelationship:
		m = args[0].Relationship.Props
	case TagMap:
		m = args[0].Map
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "keys() requires a node, relationship, or map, got %s", args[0].TypeName())
	}
	out := make([]Value, 0, len(m))
	for k := range m {
		out = append(out, String(k))
	}
	return List(out), nil
}

func fnCoalesce(_ *Context, args []Value) (Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return Null(), nil
}

func fnAbs(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("abs", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagInt:
		if args[0].Int < 0 {
			return Int(-args[0].Int), nil
		}
		return args[0], nil
	case TagFloat:
		return Float(math.Abs(args[0].Float)), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "abs() requires a number, got %s", args[0].TypeName())
	}
}

func floatUnary(name string, fn func(float64) float64) Function {
	return func(_ *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError(name, 1, len(args))
		}
		if args[0].IsNull() {
			return Null(), nil
		}
		if !isNumeric(args[0]) {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "%s() requires a number, got %s", name, args[0].TypeName())
		}
		return Float(fn(asFloat(args[0]))), nil
	}
}

var fnCeil = floatUnary("ceil", math.Ceil)
var fnFloor = floatUnary("floor", math.Floor)
var fnSqrt = floatUnary("sqrt", math.Sqrt)

func fnRound(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("round", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if !isNumeric(args[0]) {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "round() requires a number, got %s", args[0].TypeName())
	}
	return Float(float64(roundHalfAwayFromZero(asFloat(args[0])))), nil
}

func stringUnary(name string, fn func(string) string) Function {
	return func(_ *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError(name, 1, len(args))
		}
		if args[0].IsNull() {
			return Null(), nil
		}
		if args[0].Tag != TagString {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "%s() requires a string, got %s", name, args[0].TypeName())
		}
		return String(fn(args[0].Str)), nil
	}
}

var fnToUpper = stringUnary("toUpper", strings.ToUpper)
var fnToLower = stringUnary("toLower", strings.ToLower)
var fnTrim = stringUnary("trim", strings.TrimSpace)

func fnReplace(_ *Context, args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, arityError("replace", 3, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagString || args[1].Tag != TagString || args[2].Tag != TagString {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "replace() requires (string, string, string)")
	}
	return String(strings.ReplaceAll(args[0].Str, args[1].Str, args[2].Str)), nil
}

func fnSplit(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("split", 2, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	if args[0].Tag != TagString || args[1].Tag != TagString {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "split() requires (string, string)")
	}
	parts := strings.Split(args[0].Str, args[1].Str)
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return List(out), nil
}

func fnReverse(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("reverse", 1, len(args))
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	switch args[0].Tag {
	case TagString:
		r := []rune(args[0].Str)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return String(string(r)), nil
	case TagList:
		out := make([]Value, len(args[0].List))
		for i, v := range args[0].List {
			out[len(out)-1-i] = v
		}
		return List(out), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "reverse() requires a string or list, got %s", args[0].TypeName())
	}
}

func fnRange(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "range() expects 2 or 3 arguments, got %d", len(args))
	}
	for _, a := range args {
		if a.IsNull() {
			return Null(), nil
		}
		if a.Tag != TagInt {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "range() requires integers")
		}
	}
	start, end := args[0].Int, args[1].Int
	step := int64(1)
	if len(args) == 3 {
		step = args[2].Int
		if step == 0 {
			return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "range() step must not be zero")
		}
	}
	var out []Value
	if step > 0 {
		for i := start; i <= end; i += step {
			out = append(out, Int(i))
		}
	} else {
		for i := start; i >= end; i += step {
			out = append(out, Int(i))
		}
	}
	return List(out), nil
}

func fnPoint(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 || args[0].Tag != TagMap {
		return Value{}, graphdberr.New(graphdberr.KindInvalidInput, "point() requires a single map argument")
	}
	m := args[0].Map
	x, xok := m["x"]
	y, yok := m["y"]
	if !xok || !yok || !isNumeric(x) || !isNumeric(y) {
		return Value{}, graphdberr.New(graphdberr.KindInvalidInput, "point() map requires numeric x and y")
	}
	p := Point{X: asFloat(x), Y: asFloat(y)}
	if z, ok := m["z"]; ok && isNumeric(z) {
		p.Z = asFloat(z)
		p.Has3D = true
	}
	crsName := "cartesian"
	if c, ok := m["crs"]; ok && c.Tag == TagString {
		crsName = c.Str
	}
	switch crsName {
	case "cartesian-3d":
		p.CRS = CRSCartesian3D
	case "wgs-84":
		p.CRS = CRSWGS84
	case "wgs-84-3d":
		p.CRS = CRSWGS84_3D
	default:
		p.CRS = CRSCartesian
	}
	return Value{Tag: TagPoint, Point: p}, nil
}

func fnID(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("id", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagNode:
		return Int(int64(args[0].Node.ID)), nil
	case TagRelationship:
		return Int(int64(args[0].Relationship.ID)), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "id() requires a node or relationship, got %s", args[0].TypeName())
	}
}

func fnProperties(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("properties", 1, len(args))
	}
	switch args[0].Tag {
	case TagNull:
		return Null(), nil
	case TagNode:
		return Map(args[0].Node.Props), nil
	case TagRelationship:
		return Map(args[0].Relationship.Props), nil
	case TagMap:
		return args[0], nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "properties() requires a node, relationship, or map, got %s", args[0].TypeName())
	}
}
