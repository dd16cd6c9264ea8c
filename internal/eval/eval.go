package eval

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/graphdberr"
)

// Row is one set of variable bindings visible to an expression.
type Row map[string]Value

// Context carries everything a single expression evaluation needs: the
// current row's bindings, query parameters, and the function registry.
// All expression kinds are dispatched from one recursive function rather than a
// per-node-type visitor hierarchy.
type Context struct {
	Row    Row
	Params map[string]Value
	Funcs  *FunctionRegistry
}

// Eval recursively evaluates expr against ctx.
func Eval(ctx *Context, expr cypher.Expr) (Value, error) {
	switch e := expr.(type) {
	case *cypher.NullLiteral:
		return Null(), nil
	case *cypher.BoolLiteral:
		return Bool(e.Value), nil
	case *cypher.IntLiteral:
		return Int(e.Value), nil
	case *cypher.FloatLiteral:
		return Float(e.Value), nil
	case *cypher.StringLiteral:
		return String(e.Value), nil
	case *cypher.ListLiteral:
		items := make([]Value, len(e.Items))
		for i, it := range e.Items {
			v, err := Eval(ctx, it)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items), nil
	case *cypher.MapLiteral:
		m := make(map[string]Value, len(e.Keys))
		for i, k := range e.Keys {
			v, err := Eval(ctx, e.Values[i])
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Map(m), nil
	case *cypher.ParamRef:
		v, ok := ctx.Params[e.Name]
		if !ok {
			return Value{}, graphdberr.New(graphdberr.KindInvalidInput, "no parameter $%s was given", e.Name)
		}
		return v, nil
	case *cypher.VarRef:
		v, ok := ctx.Row[e.Name]
		if !ok {
			return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "unbound variable %q", e.Name)
		}
		return v, nil
	case *cypher.PropertyAccess:
		return evalPropertyAccess(ctx, e)
	case *cypher.IndexAccess:
		return evalIndexAccess(ctx, e)
	case *cypher.SliceAccess:
		return evalSliceAccess(ctx, e)
	case *cypher.MapProjection:
		return evalMapProjection(ctx, e)
	case *cypher.ListComprehension:
		return evalListComprehension(ctx, e)
	case *cypher.CaseExpr:
		return evalCase(ctx, e)
	case *cypher.FunctionCall:
		return evalFunctionCall(ctx, e)
	case *cypher.UnaryExpr:
		return evalUnary(ctx, e)
	case *cypher.BinaryExpr:
		return evalBinary(ctx, e)
	case *cypher.IsNullExpr:
		v, err := Eval(ctx, e.Value)
		if err != nil {
			return Value{}, err
		}
		isNull := v.IsNull()
		if e.Not {
			return Bool(!isNull), nil
		}
		return Bool(isNull), nil
	case *cypher.PatternComprehension, *cypher.ExistsSubquery:
		// The planner does not rewrite pattern-shaped subexpressions
		// into operator-tree fragments, so evaluating one always fails.
		return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "pattern expression requires planner rewriting")
	}
	return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "unsupported expression %T", expr)
}

func evalPropertyAccess(ctx *Context, e *cypher.PropertyAccess) (Value, error) {
	target, err := Eval(ctx, e.Target)
	if err != nil {
		return Value{}, err
	}
	switch target.Tag {
	case TagNull:
		return Null(), nil
	case TagNode:
		if v, ok := target.Node.Props[e.Key]; ok {
			return v, nil
		}
		return Null(), nil
	case TagRelationship:
		if v, ok := target.Relationship.Props[e.Key]; ok {
			return v, nil
		}
		return Null(), nil
	case TagMap:
		if v, ok := target.Map[e.Key]; ok {
			return v, nil
		}
		return Null(), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot access property %q on %s", e.Key, target.TypeName())
	}
}

func evalIndexAccess(ctx *Context, e *cypher.IndexAccess) (Value, error) {
	target, err := Eval(ctx, e.Target)
	if err != nil {
		return Value{}, err
	}
	idx, err := Eval(ctx, e.Index)
	if err != nil {
		return Value{}, err
	}
	if target.IsNull() || idx.IsNull() {
		return Null(), nil
	}
	switch target.Tag {
	case TagList:
		i := idx.Int
		if idx.Tag != TagInt {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "list index must be an integer, got %s", idx.TypeName())
		}
		n := int64(len(target.List))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return Null(), nil
		}
		return target.List[i], nil
	case TagMap:
		if idx.Tag != TagString {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "map index must be a string, got %s", idx.TypeName())
		}
		if v, ok := target.Map[idx.Str]; ok {
			return v, nil
		}
		return Null(), nil
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot index into %s", target.TypeName())
	}
}

func evalSliceAccess(ctx *Context, e *cypher.SliceAccess) (Value, error) {
	target, err := Eval(ctx, e.Target)
	if err != nil {
		return Value{}, err
	}
	if target.IsNull() {
		return Null(), nil
	}
	if target.Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot slice %s", target.TypeName())
	}
	n := int64(len(target.List))
	from, to := int64(0), n
	if e.From != nil {
		v, err := Eval(ctx, e.From)
		if err != nil {
			return Value{}, err
		}
		if v.IsNull() {
			return Null(), nil
		}
		from = v.Int
	}
	if e.To != nil {
		v, err := Eval(ctx, e.To)
		if err != nil {
			return Value{}, err
		}
		if v.IsNull() {
			return Null(), nil
		}
		to = v.Int
	}
	if from < 0 {
		from += n
	}
	if to < 0 {
		to += n
	}
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to || from >= n {
		return List(nil), nil
	}
	return List(append([]Value(nil), target.List[from:to]...)), nil
}

func evalMapProjection(ctx *Context, e *cypher.MapProjection) (Value, error) {
	target, err := Eval(ctx, e.Target)
	if err != nil {
		return Value{}, err
	}
	if target.IsNull() {
		return Null(), nil
	}
	out := map[string]Value{}
	sourceProps := func() map[string]Value {
		switch target.Tag {
		case TagNode:
			return target.Node.Props
		case TagRelationship:
			return target.Relationship.Props
		case TagMap:
			return target.Map
		default:
			return nil
		}
	}()
	for _, item := range e.Items {
		switch {
		case item.AllProps:
			for k, v := range sourceProps {
				out[k] = v
			}
		case item.Value == nil:
			if v, ok := sourceProps[item.Key]; ok {
				out[item.Key] = v
			} else {
				out[item.Key] = Null()
			}
		default:
			v, err := Eval(ctx, item.Value)
			if err != nil {
				return Value{}, err
			}
			out[item.Key] = v
		}
	}
	return Map(out), nil
}

func evalListComprehension(ctx *Context, e *cypher.ListComprehension) (Value, error) {
	listVal, err := Eval(ctx, e.List)
	if err != nil {
		return Value{}, err
	}
	if listVal.IsNull() {
		return Null(), nil
	}
	if listVal.Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "list comprehension source must be a list, got %s", listVal.TypeName())
	}
	var out []Value
	for _, item := range listVal.List {
		inner := Row{}
		for k, v := range ctx.Row {
			inner[k] = v
		}
		inner[e.Var] = item
		innerCtx := &Context{Row: inner, Params: ctx.Params, Funcs: ctx.Funcs}
		if e.Where != nil {
			cond, err := Eval(innerCtx, e.Where)
			if err != nil {
				return Value{}, err
			}
			if cond.Tag != TagBool || !cond.Bool {
				continue
			}
		}
		if e.Map != nil {
			mapped, err := Eval(innerCtx, e.Map)
			if err != nil {
				return Value{}, err
			}
			out = append(out, mapped)
		} else {
			out = append(out, item)
		}
	}
	return List(out), nil
}

func evalCase(ctx *Context, e *cypher.CaseExpr) (Value, error) {
	var testVal Value
	hasTest := e.Test != nil
	if hasTest {
		v, err := Eval(ctx, e.Test)
		if err != nil {
			return Value{}, err
		}
		testVal = v
	}
	for _, when := range e.Whens {
		if hasTest {
			whenVal, err := Eval(ctx, when.Cond)
			if err != nil {
				return Value{}, err
			}
			eq, ok := Equal(testVal, whenVal)
			if ok && !eq.IsNull() && eq.Bool {
				return Eval(ctx, when.Then)
			}
		} else {
			cond, err := Eval(ctx, when.Cond)
			if err != nil {
				return Value{}, err
			}
			if cond.Tag == TagBool && cond.Bool {
				return Eval(ctx, when.Then)
			}
		}
	}
	if e.Else != nil {
		return Eval(ctx, e.Else)
	}
	return Null(), nil
}

func evalFunctionCall(ctx *Context, e *cypher.FunctionCall) (Value, error) {
	fn, ok := ctx.Funcs.Lookup(strings.ToLower(e.Name))
	if !ok {
		return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "unknown function %q", e.Name)
	}
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(ctx, a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(ctx, args)
}

func evalUnary(ctx *Context, e *cypher.UnaryExpr) (Value, error) {
	v, err := Eval(ctx, e.Value)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case cypher.TokenDash:
		if v.IsNull() {
			return Null(), nil
		}
		switch v.Tag {
		case TagInt:
			return Int(-v.Int), nil
		case TagFloat:
			return Float(-v.Float), nil
		default:
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot negate %s", v.TypeName())
		}
	case cypher.TokenNot:
		if v.IsNull() {
			return Null(), nil
		}
		if v.Tag != TagBool {
			return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "NOT requires a boolean, got %s", v.TypeName())
		}
		return Bool(!v.Bool), nil
	}
	return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "unsupported unary operator")
}

func evalBinary(ctx *Context, e *cypher.BinaryExpr) (Value, error) {
	// AND/OR implement Kleene three-valued logic and must short-circuit
	// null propagation specially, so they evaluate operands themselves
	// rather than going through the generic null-propagates-everywhere
	// path used below.
	switch e.Op {
	case cypher.TokenAnd:
		return evalAnd(ctx, e)
	case cypher.TokenOr:
		return evalOr(ctx, e)
	case cypher.TokenXor:
		left, err := Eval(ctx, e.Left)
		if err != nil {
			return Value{}, err
		}
		right, err := Eval(ctx, e.Right)
		if err != nil {
			return Value{}, err
		}
		if left.IsNull() || right.IsNull() {
			return Null(), nil
		}
		return Bool(left.Bool != right.Bool), nil
	}

	left, err := Eval(ctx, e.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := Eval(ctx, e.Right)
	if err != nil {
		return Value{}, err
	}

	switch e.Op {
	case cypher.TokenEquals:
		return equalOrNull(left, right, false)
	case cypher.TokenNotEquals:
		return equalOrNull(left, right, true)
	case cypher.TokenLess, cypher.TokenLessEq, cypher.TokenGreater, cypher.TokenGreaterEq:
		return evalOrderComparison(e.Op, left, right)
	case cypher.TokenPlus:
		return evalPlus(left, right)
	case cypher.TokenDash:
		return arithmetic(left, right, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case cypher.TokenStar:
		return arithmetic(left, right, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case cypher.TokenSlash:
		return evalDivide(left, right)
	case cypher.TokenPercent:
		return evalModulo(left, right)
	case cypher.TokenCaret:
		return evalPower(left, right)
	case cypher.TokenIn:
		return evalIn(left, right)
	case cypher.TokenContains:
		return evalStringPredicate(left, right, strings.Contains)
	case cypher.TokenStarts:
		return evalStringPredicate(left, right, strings.HasPrefix)
	case cypher.TokenEnds:
		return evalStringPredicate(left, right, strings.HasSuffix)
	}
	return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "unsupported binary operator")
}

func evalAnd(ctx *Context, e *cypher.BinaryExpr) (Value, error) {
	left, err := Eval(ctx, e.Left)
	if err != nil {
		return Value{}, err
	}
	if left.Tag == TagBool && !left.Bool {
		return Bool(false), nil
	}
	right, err := Eval(ctx, e.Right)
	if err != nil {
		return Value{}, err
	}
	if right.Tag == TagBool && !right.Bool {
		return Bool(false), nil
	}
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	return Bool(left.Bool && right.Bool), nil
}

func evalOr(ctx *Context, e *cypher.BinaryExpr) (Value, error) {
	left, err := Eval(ctx, e.Left)
	if err != nil {
		return Value{}, err
	}
	if left.Tag == TagBool && left.Bool {
		return Bool(true), nil
	}
	right, err := Eval(ctx, e.Right)
	if err != nil {
		return Value{}, err
	}
	if right.Tag == TagBool && right.Bool {
		return Bool(true), nil
	}
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	return Bool(left.Bool || right.Bool), nil
}

func equalOrNull(left, right Value, negate bool) (Value, error) {
	eq, ok := Equal(left, right)
	if !ok {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot compare %s and %s", left.TypeName(), right.TypeName())
	}
	if eq.IsNull() {
		return Null(), nil
	}
	if negate {
		return Bool(!eq.Bool), nil
	}
	return eq, nil
}

func evalOrderComparison(op cypher.TokenType, left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	var cmp int
	switch {
	case isNumeric(left) && isNumeric(right):
		a, b := asFloat(left), asFloat(right)
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		default:
			cmp = 0
		}
	case left.Tag == TagString && right.Tag == TagString:
		cmp = strings.Compare(left.Str, right.Str)
	default:
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "cannot compare %s and %s", left.TypeName(), right.TypeName())
	}
	switch op {
	case cypher.TokenLess:
		return Bool(cmp < 0), nil
	case cypher.TokenLessEq:
		return Bool(cmp <= 0), nil
	case cypher.TokenGreater:
		return Bool(cmp > 0), nil
	default:
		return Bool(cmp >= 0), nil
	}
}

// evalPlus implements `+`'s overload rules: string
// concatenation if either operand is a string, array concatenation or
// append if either operand is a list, else numeric addition.
func evalPlus(left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if left.Tag == TagList && right.Tag == TagList {
		return List(append(append([]Value(nil), left.List...), right.List...)), nil
	}
	if left.Tag == TagList {
		return List(append(append([]Value(nil), left.List...), right)), nil
	}
	if right.Tag == TagList {
		return List(append([]Value{left}, right.List...)), nil
	}
	if left.Tag == TagString || right.Tag == TagString {
		return String(left.String() + right.String()), nil
	}
	return arithmetic(left, right, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
}

func arithmetic(left, right Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if !isNumeric(left) || !isNumeric(right) {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "arithmetic requires numbers, got %s and %s", left.TypeName(), right.TypeName())
	}
	if left.Tag == TagInt && right.Tag == TagInt {
		return Int(intOp(left.Int, right.Int)), nil
	}
	return Float(floatOp(asFloat(left), asFloat(right))), nil
}

func evalDivide(left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if !isNumeric(left) || !isNumeric(right) {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "division requires numbers, got %s and %s", left.TypeName(), right.TypeName())
	}
	if left.Tag == TagInt && right.Tag == TagInt {
		if right.Int == 0 {
			return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "division by zero")
		}
		return Int(left.Int / right.Int), nil
	}
	return Float(asFloat(left) / asFloat(right)), nil
}

func evalModulo(left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if left.Tag == TagInt && right.Tag == TagInt {
		if right.Int == 0 {
			return Value{}, graphdberr.New(graphdberr.KindCypherExecution, "modulo by zero")
		}
		return Int(left.Int % right.Int), nil
	}
	if !isNumeric(left) || !isNumeric(right) {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "modulo requires numbers, got %s and %s", left.TypeName(), right.TypeName())
	}
	a, b := asFloat(left), asFloat(right)
	return Float(a - b*float64(int64(a/b))), nil
}

func evalPower(left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if !isNumeric(left) || !isNumeric(right) {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "exponentiation requires numbers, got %s and %s", left.TypeName(), right.TypeName())
	}
	return Float(math.Pow(asFloat(left), asFloat(right))), nil
}

// evalIn implements `x IN list` with the following null semantics:
// `null IN list` is null; `x IN list` is true if any element
// equals x, false if all comparisons are false and none were null, else
// null.
func evalIn(left, right Value) (Value, error) {
	if left.IsNull() {
		return Null(), nil
	}
	if right.IsNull() {
		return Null(), nil
	}
	if right.Tag != TagList {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "IN requires a list on the right, got %s", right.TypeName())
	}
	sawNull := false
	for _, item := range right.List {
		if item.IsNull() {
			sawNull = true
			continue
		}
		eq, ok := Equal(left, item)
		if ok && !eq.IsNull() && eq.Bool {
			return Bool(true), nil
		}
	}
	if sawNull {
		return Null(), nil
	}
	return Bool(false), nil
}

func evalStringPredicate(left, right Value, pred func(s, sub string) bool) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if left.Tag != TagString || right.Tag != TagString {
		return Value{}, graphdberr.New(graphdberr.KindTypeMismatch, "string predicate requires strings, got %s and %s", left.TypeName(), right.TypeName())
	}
	return Bool(pred(left.Str, right.Str)), nil
}

// CompareForOrdering supplies ORDER BY's total order, with null greater
// than every other value: nulls sort last under ASC and, since DESC
// reverses the comparison, first under DESC.
func CompareForOrdering(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return 1
	}
	if b.IsNull() {
		return -1
	}
	switch {
	case isNumeric(a) && isNumeric(b):
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case a.Tag == TagString && b.Tag == TagString:
		return strings.Compare(a.Str, b.Str)
	case a.Tag == TagBool && b.Tag == TagBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}
