package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/planner"
)

// unionOp runs each branch of a UNION to completion in turn, eagerly
// collecting their rows; unless All, it dedups across the combined set.
type unionOp struct {
	ctx    *Context
	plan   *planner.UnionOp
	rows   []eval.Row
	pos    int
	opened bool
}

func (o *unionOp) Open(seed eval.Row) error {
	var rows []eval.Row
	seen := map[string]bool{}
	for _, branch := range o.plan.Inputs {
		op, err := Build(o.ctx, branch)
		if err != nil {
			return err
		}
		if err := op.Open(seed); err != nil {
			return err
		}
		for {
			row, ok, err := op.Next()
			if err != nil {
				_ = op.Close()
				return err
			}
			if !ok {
				break
			}
			if !o.plan.All {
				key := rowKey(row)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			rows = append(rows, row)
		}
		if err := op.Close(); err != nil {
			return err
		}
	}
	o.rows, o.pos, o.opened = rows, 0, true
	return nil
}

func (o *unionOp) Next() (eval.Row, bool, error) {
	if o.pos >= len(o.rows) {
		return nil, false, nil
	}
	row := o.rows[o.pos]
	o.pos++
	return row, true, nil
}

func (o *unionOp) Close() error { return nil }
