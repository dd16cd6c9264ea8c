package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/planner"
)

type projectOp struct {
	ctx   *Context
	plan  *planner.Project
	input Operator
	seen  map[string]bool
}

func (o *projectOp) Open(seed eval.Row) error {
	o.seen = map[string]bool{}
	return o.input.Open(seed)
}
func (o *projectOp) Close() error { return o.input.Close() }

func (o *projectOp) Next() (eval.Row, bool, error) {
	for {
		in, ok, err := o.input.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		row := eval.Row{}
		if o.plan.Star || o.plan.KeepInput {
			for k, v := range in {
				row[k] = v
			}
		}
		ec := o.ctx.evalContext(in)
		for _, item := range o.plan.Items {
			v, err := eval.Eval(ec, item.Expr)
			if err != nil {
				return nil, false, err
			}
			row[item.Alias] = v
		}
		if o.plan.Distinct {
			key := rowKey(row)
			if o.seen[key] {
				continue
			}
			o.seen[key] = true
		}
		return row, true, nil
	}
}

type orderByOp struct {
	ctx     *Context
	plan    *planner.OrderBy
	input   Operator
	buf     []eval.Row
	pos     int
	started bool
}

func (o *orderByOp) Open(seed eval.Row) error {
	o.started, o.buf, o.pos = false, nil, 0
	return o.input.Open(seed)
}
func (o *orderByOp) Close() error { return o.input.Close() }

func (o *orderByOp) Next() (eval.Row, bool, error) {
	if !o.started {
		for {
			row, ok, err := o.input.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				break
			}
			o.buf = append(o.buf, row)
		}
		if err := o.sort(); err != nil {
			return nil, false, err
		}
		o.started = true
	}
	if o.pos >= len(o.buf) {
		return nil, false, nil
	}
	row := o.buf[o.pos]
	o.pos++
	return row, true, nil
}

func (o *orderByOp) sort() error {
	var sortErr error
	rows := o.buf
	// Simple, stable insertion sort: result sets from a single query are
	// not large enough to warrant anything fancier, and it keeps ties in
	// input (chain) order, matching openCypher's stable ORDER BY.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			less, err := o.less(rows[j], rows[j-1])
			if err != nil {
				sortErr = err
				return sortErr
			}
			if !less {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
	return sortErr
}

func (o *orderByOp) less(a, b eval.Row) (bool, error) {
	for _, item := range o.plan.Items {
		av, err := eval.Eval(o.ctx.evalContext(a), item.Expr)
		if err != nil {
			return false, err
		}
		bv, err := eval.Eval(o.ctx.evalContext(b), item.Expr)
		if err != nil {
			return false, err
		}
		cmp := eval.CompareForOrdering(av, bv)
		if item.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0, nil
		}
	}
	return false, nil
}

type skipOp struct {
	ctx     *Context
	plan    *planner.Skip
	input   Operator
	n       int64
	skipped int64
}

func (o *skipOp) Open(seed eval.Row) error {
	v, err := eval.Eval(o.ctx.evalContext(eval.Row{}), o.plan.Count)
	if err != nil {
		return err
	}
	o.n = intCount(v)
	o.skipped = 0
	return o.input.Open(seed)
}
func (o *skipOp) Close() error { return o.input.Close() }

func (o *skipOp) Next() (eval.Row, bool, error) {
	for o.skipped < o.n {
		_, ok, err := o.input.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		o.skipped++
	}
	return o.input.Next()
}

type limitOp struct {
	ctx     *Context
	plan    *planner.Limit
	input   Operator
	n       int64
	emitted int64
}

func (o *limitOp) Open(seed eval.Row) error {
	v, err := eval.Eval(o.ctx.evalContext(eval.Row{}), o.plan.Count)
	if err != nil {
		return err
	}
	o.n = intCount(v)
	o.emitted = 0
	return o.input.Open(seed)
}
func (o *limitOp) Close() error { return o.input.Close() }

func (o *limitOp) Next() (eval.Row, bool, error) {
	if o.emitted >= o.n {
		return nil, false, nil
	}
	row, ok, err := o.input.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	o.emitted++
	return row, true, nil
}

func intCount(v eval.Value) int64 {
	switch v.Tag {
	case eval.TagInt:
		return v.Int
	case eval.TagFloat:
		return int64(v.Float)
	default:
		return 0
	}
}

type unwindOp struct {
	ctx    *Context
	plan   *planner.Unwind
	input  Operator
	buffer []eval.Row
	pos    int
}

func (o *unwindOp) Open(seed eval.Row) error {
	o.buffer, o.pos = nil, 0
	return o.input.Open(seed)
}
func (o *unwindOp) Close() error { return o.input.Close() }

func (o *unwindOp) Next() (eval.Row, bool, error) {
	for {
		if o.pos < len(o.buffer) {
			row := o.buffer[o.pos]
			o.pos++
			return row, true, nil
		}
		base, ok, err := o.input.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		v, err := eval.Eval(o.ctx.evalContext(base), o.plan.ListExpr)
		if err != nil {
			return nil, false, err
		}
		if v.Tag != eval.TagList {
			if v.IsNull() {
				o.buffer, o.pos = nil, 0
				continue
			}
			return nil, false, graphdberr.New(graphdberr.KindCypherExecution, "UNWIND requires a list")
		}
		rows := make([]eval.Row, 0, len(v.List))
		for _, item := range v.List {
			row := cloneRow(base)
			row[o.plan.Var] = item
			rows = append(rows, row)
		}
		o.buffer, o.pos = rows, 0
	}
}
