package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/planner"
)

// aggGroup accumulates one GROUP BY bucket's running state across rows.
type aggGroup struct {
	keyValues []eval.Value
	acc       []*aggAccumulator
}

type aggAccumulator struct {
	count        int64
	sumInt       int64
	sumFloat     float64
	sumIsFloat   bool
	hasValue     bool
	min, max     eval.Value
	list         []eval.Value
	distinctSeen map[string]bool
}

func newAccumulator() *aggAccumulator {
	return &aggAccumulator{distinctSeen: map[string]bool{}}
}

func (a *aggAccumulator) add(item *planner.AggregateItem, v eval.Value) {
	if item.Distinct {
		key := v.String()
		if a.distinctSeen[key] {
			return
		}
		a.distinctSeen[key] = true
	}
	a.hasValue = true
	a.count++
	switch item.Func {
	case "sum", "avg":
		if v.Tag == eval.TagFloat {
			a.sumIsFloat = true
			a.sumFloat += v.Float
		} else if v.Tag == eval.TagInt {
			a.sumInt += v.Int
		}
	case "min":
		if a.count == 1 || eval.CompareForOrdering(v, a.min) < 0 {
			a.min = v
		}
	case "max":
		if a.count == 1 || eval.CompareForOrdering(v, a.max) > 0 {
			a.max = v
		}
	case "collect":
		a.list = append(a.list, v)
	}
}

func (a *aggAccumulator) result(item *planner.AggregateItem) eval.Value {
	switch item.Func {
	case "count":
		return eval.Int(a.count)
	case "sum":
		if !a.hasValue {
			return eval.Null()
		}
		if a.sumIsFloat {
			return eval.Float(a.sumFloat + float64(a.sumInt))
		}
		return eval.Int(a.sumInt)
	case "avg":
		if !a.hasValue {
			return eval.Null()
		}
		total := a.sumFloat + float64(a.sumInt)
		return eval.Float(total / float64(a.count))
	case "min":
		if !a.hasValue {
			return eval.Null()
		}
		return a.min
	case "max":
		if !a.hasValue {
			return eval.Null()
		}
		return a.max
	case "collect":
		if a.list == nil {
			return eval.List([]eval.Value{})
		}
		return eval.List(a.list)
	default:
		return eval.Null()
	}
}

type aggregateOp struct {
	ctx    *Context
	plan   *planner.Aggregate
	input  Operator
	rows   []eval.Row
	pos    int
	opened bool
}

func (o *aggregateOp) Open(seed eval.Row) error {
	if err := o.input.Open(seed); err != nil {
		return err
	}
	o.opened = true
	o.rows, o.pos = nil, 0
	return nil
}

func (o *aggregateOp) Close() error { return o.input.Close() }

func (o *aggregateOp) Next() (eval.Row, bool, error) {
	if o.rows == nil && o.pos == 0 && o.opened {
		if err := o.compute(); err != nil {
			return nil, false, err
		}
		o.opened = false
	}
	if o.pos >= len(o.rows) {
		return nil, false, nil
	}
	row := o.rows[o.pos]
	o.pos++
	return row, true, nil
}

func (o *aggregateOp) compute() error {
	var order []string
	groups := map[string]*aggGroup{}

	for {
		in, ok, err := o.input.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		ec := o.ctx.evalContext(in)
		keyValues := make([]eval.Value, len(o.plan.GroupExprs))
		for i, g := range o.plan.GroupExprs {
			v, err := eval.Eval(ec, g.Expr)
			if err != nil {
				return err
			}
			keyValues[i] = v
		}
		key := groupKeyString(keyValues)
		g, found := groups[key]
		if !found {
			g = &aggGroup{keyValues: keyValues, acc: make([]*aggAccumulator, len(o.plan.Items))}
			for i := range g.acc {
				g.acc[i] = newAccumulator()
			}
			groups[key] = g
			order = append(order, key)
		}
		for i := range o.plan.Items {
			item := &o.plan.Items[i]
			if item.Star {
				g.acc[i].count++
				g.acc[i].hasValue = true
				continue
			}
			v, err := eval.Eval(ec, item.Arg)
			if err != nil {
				return err
			}
			if v.IsNull() {
				continue
			}
			g.acc[i].add(item, v)
		}
	}

	if len(order) == 0 && len(o.plan.GroupExprs) == 0 {
		// No input rows and no grouping key: still emit the single
		// implicit group with each item's empty-input default.
		zero := make([]*aggAccumulator, len(o.plan.Items))
		for i := range zero {
			zero[i] = newAccumulator()
		}
		row := eval.Row{}
		for i, item := range o.plan.Items {
			row[item.Alias] = zero[i].result(&item)
		}
		o.rows = []eval.Row{row}
		return nil
	}

	rows := make([]eval.Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := eval.Row{}
		for i, ge := range o.plan.GroupExprs {
			row[ge.Alias] = g.keyValues[i]
		}
		for i, item := range o.plan.Items {
			row[item.Alias] = g.acc[i].result(&item)
		}
		rows = append(rows, row)
	}
	o.rows = rows
	return nil
}

func groupKeyString(values []eval.Value) string {
	key := ""
	for _, v := range values {
		key += v.String() + "\x1f"
	}
	return key
}

// countStarFastPathOp answers `RETURN count(*)` from catalog statistics
// instead of a scan.
type countStarFastPathOp struct {
	ctx  *Context
	plan *planner.CountStarFastPath
	done bool
}

func (o *countStarFastPathOp) Open(seed eval.Row) error { o.done = false; return nil }
func (o *countStarFastPathOp) Close() error             { return nil }

func (o *countStarFastPathOp) Next() (eval.Row, bool, error) {
	if o.done {
		return nil, false, nil
	}
	o.done = true
	// `MATCH (n:Label) RETURN count(*)` reads the label's node count
	// straight from the catalog. A bare `RETURN count(*)` with no MATCH
	// runs the aggregate over a single implicit row, so it always answers
	// 1 regardless of how many nodes the graph holds.
	var count uint64
	switch {
	case !o.plan.HasLabel:
		count = 1
	case o.plan.LabelID != sentinelID:
		count = o.ctx.Catalog.NodeCountForLabel(o.plan.LabelID)
	}
	return eval.Row{o.plan.Alias: eval.Int(int64(count))}, true, nil
}
