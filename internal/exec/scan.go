package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/planner"
	"github.com/graphdb/core/internal/store"
)

// idScanOp is the shared shape for every leaf scan that resolves to a
// fixed id list before serving rows one at a time.
type idScanOp struct {
	ctx  *Context
	seed eval.Row
	ids  []uint64
	pos  int
	bind func(ctx *Context, id uint64, row eval.Row) error
}

func (o *idScanOp) open(seed eval.Row, ids []uint64) {
	o.seed, o.ids, o.pos = seed, ids, 0
}

func (o *idScanOp) next() (eval.Row, bool, error) {
	if o.pos >= len(o.ids) {
		return nil, false, nil
	}
	id := o.ids[o.pos]
	o.pos++
	row := cloneRow(o.seed)
	if err := o.bind(o.ctx, id, row); err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (o *idScanOp) Close() error { return nil }

func bindNodeVar(v string) func(*Context, uint64, eval.Row) error {
	return func(ctx *Context, id uint64, row eval.Row) error {
		val, err := MaterializeNode(ctx, id)
		if err != nil {
			return err
		}
		row[v] = val
		return nil
	}
}

type allNodesScanOp struct {
	idScanOp
	plan *planner.AllNodesScan
}

func (o *allNodesScanOp) Open(seed eval.Row) error {
	ids, err := o.ctx.Store.AllNodeIDs(o.ctx.ReadTxn())
	if err != nil {
		return err
	}
	o.idScanOp.ctx = o.ctx
	o.idScanOp.bind = bindNodeVar(o.plan.Var)
	o.open(seed, ids)
	return nil
}
func (o *allNodesScanOp) Next() (eval.Row, bool, error) { return o.next() }

type nodeByLabelScanOp struct {
	idScanOp
	plan *planner.NodeByLabelScan
}

func (o *nodeByLabelScanOp) Open(seed eval.Row) error {
	o.idScanOp.ctx = o.ctx
	o.idScanOp.bind = bindNodeVar(o.plan.Var)
	if o.plan.LabelID == sentinelID {
		o.open(seed, nil)
		return nil
	}
	ids, err := o.ctx.Index.NodesForLabel(o.ctx.ReadTxn(), o.plan.LabelID)
	if err != nil {
		return err
	}
	o.open(seed, ids)
	return nil
}
func (o *nodeByLabelScanOp) Next() (eval.Row, bool, error) { return o.next() }

// sentinelID mirrors planner.noSuchID without importing the unexported
// constant; both are ^uint32(0), the id value no real catalog entry ever
// receives (ids are allocated from a bucket sequence starting at 1).
const sentinelID = ^uint32(0)

type nodeByLabelIntersectOp struct {
	idScanOp
	plan *planner.NodeByLabelIntersect
}

func (o *nodeByLabelIntersectOp) Open(seed eval.Row) error {
	o.idScanOp.ctx = o.ctx
	o.idScanOp.bind = bindNodeVar(o.plan.Var)
	for _, id := range o.plan.LabelIDs {
		if id == sentinelID {
			o.open(seed, nil)
			return nil
		}
	}
	rt := o.ctx.ReadTxn()
	// Scan the label with fewest members first to minimize bitmap probes.
	best := -1
	var bestCount uint64
	for i, labelID := range o.plan.LabelIDs {
		c := o.ctx.Catalog.NodeCountForLabel(labelID)
		if best == -1 || c < bestCount {
			best, bestCount = i, c
		}
	}
	candidates, err := o.ctx.Index.NodesForLabel(rt, o.plan.LabelIDs[best])
	if err != nil {
		return err
	}
	var ids []uint64
	for _, id := range candidates {
		rec, err := o.ctx.Store.ReadNode(rt, id)
		if err != nil {
			continue
		}
		if hasAllLabels(o.ctx, id, rec, o.plan.LabelIDs) {
			ids = append(ids, id)
		}
	}
	o.open(seed, ids)
	return nil
}
func (o *nodeByLabelIntersectOp) Next() (eval.Row, bool, error) { return o.next() }

func hasAllLabels(ctx *Context, id uint64, rec *store.NodeRecord, labelIDs []uint32) bool {
	for _, labelID := range labelIDs {
		if labelID < 128 {
			if !rec.HasLabelBit(labelID) {
				return false
			}
			continue
		}
		ids, err := ctx.Index.NodesForLabel(ctx.ReadTxn(), labelID)
		if err != nil {
			return false
		}
		found := false
		for _, other := range ids {
			if other == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type nodeByPropertyExactOp struct {
	idScanOp
	plan *planner.NodeByPropertyExact
}

func (o *nodeByPropertyExactOp) Open(seed eval.Row) error {
	o.idScanOp.ctx = o.ctx
	o.idScanOp.bind = bindNodeVar(o.plan.Var)
	v, err := eval.Eval(o.ctx.evalContext(seed), o.plan.Value)
	if err != nil {
		return err
	}
	pv, ok := eval.ToPropValue(v)
	if !ok {
		o.open(seed, nil)
		return nil
	}
	rt := o.ctx.ReadTxn()
	candidates, err := o.ctx.Index.FindExact(rt, o.plan.LabelID, o.plan.KeyID, pv)
	if err != nil {
		return err
	}
	want := eval.FromPropValue(pv)
	var ids []uint64
	for _, id := range candidates {
		props, err := o.ctx.Store.LoadNodeProperties(rt, id)
		if err != nil {
			continue
		}
		actual, ok := props[o.plan.KeyID]
		if !ok {
			continue
		}
		eq, ok := eval.Equal(eval.FromPropValue(actual), want)
		if ok && !eq.IsNull() && eq.Bool {
			ids = append(ids, id)
		}
	}
	o.open(seed, ids)
	return nil
}
func (o *nodeByPropertyExactOp) Next() (eval.Row, bool, error) { return o.next() }

type nodeByPropertyRangeOp struct {
	idScanOp
	plan *planner.NodeByPropertyRange
}

func (o *nodeByPropertyRangeOp) Open(seed eval.Row) error {
	o.idScanOp.ctx = o.ctx
	o.idScanOp.bind = bindNodeVar(o.plan.Var)
	rt := o.ctx.ReadTxn()
	candidates, err := o.ctx.Index.NodesForLabel(rt, o.plan.LabelID)
	if err != nil {
		return err
	}
	var minVal, maxVal *eval.Value
	if o.plan.Min != nil {
		v, err := eval.Eval(o.ctx.evalContext(seed), o.plan.Min)
		if err != nil {
			return err
		}
		minVal = &v
	}
	if o.plan.Max != nil {
		v, err := eval.Eval(o.ctx.evalContext(seed), o.plan.Max)
		if err != nil {
			return err
		}
		maxVal = &v
	}
	var ids []uint64
	for _, id := range candidates {
		props, err := o.ctx.Store.LoadNodeProperties(rt, id)
		if err != nil {
			continue
		}
		pv, ok := props[o.plan.KeyID]
		if !ok {
			continue
		}
		val := eval.FromPropValue(pv)
		if minVal != nil {
			cmp := eval.CompareForOrdering(val, *minVal)
			if cmp < 0 || (cmp == 0 && !o.plan.MinInclusive) {
				continue
			}
		}
		if maxVal != nil {
			cmp := eval.CompareForOrdering(val, *maxVal)
			if cmp > 0 || (cmp == 0 && !o.plan.MaxInclusive) {
				continue
			}
		}
		ids = append(ids, id)
	}
	o.open(seed, ids)
	return nil
}
func (o *nodeByPropertyRangeOp) Next() (eval.Row, bool, error) { return o.next() }

// passThroughVarOp re-emits the seed row unchanged exactly once, for a
// pattern node whose variable is already bound by an earlier clause.
type passThroughVarOp struct {
	plan *planner.PassThroughVar
	seed eval.Row
	done bool
}

func (o *passThroughVarOp) Open(seed eval.Row) error {
	o.seed, o.done = seed, false
	return nil
}
func (o *passThroughVarOp) Next() (eval.Row, bool, error) {
	if o.done {
		return nil, false, nil
	}
	o.done = true
	if _, ok := o.seed[o.plan.Var]; !ok {
		return nil, false, graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not bound", o.plan.Var)
	}
	return cloneRow(o.seed), true, nil
}
func (o *passThroughVarOp) Close() error { return nil }
