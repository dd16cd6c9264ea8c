package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/planner"
)

type filterOp struct {
	ctx   *Context
	plan  *planner.Filter
	input Operator
}

func (o *filterOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *filterOp) Close() error             { return o.input.Close() }

func (o *filterOp) Next() (eval.Row, bool, error) {
	for {
		row, ok, err := o.input.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		v, err := eval.Eval(o.ctx.evalContext(row), o.plan.Predicate)
		if err != nil {
			return nil, false, err
		}
		truthy, known := v.Truthy()
		if known && truthy {
			return row, true, nil
		}
	}
}

type labelFilterOp struct {
	ctx   *Context
	plan  *planner.LabelFilter
	input Operator
}

func (o *labelFilterOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *labelFilterOp) Close() error             { return o.input.Close() }

func (o *labelFilterOp) Next() (eval.Row, bool, error) {
	for {
		row, ok, err := o.input.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		v, ok := row[o.plan.Var]
		if !ok || v.Tag != eval.TagNode {
			continue
		}
		if nodeHasLabels(v.Node, o.plan.LabelIDs, o.ctx) {
			return row, true, nil
		}
	}
}

func nodeHasLabels(n eval.Node, labelIDs []uint32, ctx *Context) bool {
	for _, id := range labelIDs {
		if id == sentinelID {
			return false
		}
		name, ok := ctx.Catalog.LookupLabelName(id)
		if !ok || !containsString(n.Labels, name) {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// crossJoinOp evaluates Right once per Left row, seeding Right's leaf
// scans with that row's bindings so a disjoint pattern element
// (`MATCH (a), (b)`) or an already-bound PassThroughVar resolves
// correctly.
type crossJoinOp struct {
	ctx   *Context
	plan  *planner.CrossJoin
	left  Operator
	right Operator
}

func (o *crossJoinOp) Open(seed eval.Row) error {
	return o.left.Open(seed)
}

func (o *crossJoinOp) Close() error {
	if o.right != nil {
		_ = o.right.Close()
	}
	return o.left.Close()
}

func (o *crossJoinOp) Next() (eval.Row, bool, error) {
	for {
		if o.right == nil {
			leftRow, ok, err := o.left.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			right, err := Build(o.ctx, o.plan.Right)
			if err != nil {
				return nil, false, err
			}
			if err := right.Open(leftRow); err != nil {
				return nil, false, err
			}
			o.right = right
		}
		row, ok, err := o.right.Next()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return row, true, nil
		}
		if err := o.right.Close(); err != nil {
			return nil, false, err
		}
		o.right = nil
	}
}

type distinctOp struct {
	input Operator
	seen  map[string]bool
}

func (o *distinctOp) Open(seed eval.Row) error {
	o.seen = map[string]bool{}
	return o.input.Open(seed)
}
func (o *distinctOp) Close() error { return o.input.Close() }

func (o *distinctOp) Next() (eval.Row, bool, error) {
	for {
		row, ok, err := o.input.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		key := rowKey(row)
		if o.seen[key] {
			continue
		}
		o.seen[key] = true
		return row, true, nil
	}
}

func rowKey(row eval.Row) string {
	// Deterministic textual key good enough for equality-based dedup; row
	// values are already fully materialized, so this never needs to
	// touch storage again.
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sortStrings(names)
	key := ""
	for _, n := range names {
		key += n + "=" + row[n].String() + "\x1f"
	}
	return key
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
