package exec

import (
	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/planner"
	"github.com/graphdb/core/internal/store"
	"github.com/graphdb/core/internal/txn"
)

// createOp materializes CreateNodeItems then CreateRelItems for every
// input row (a standalone CREATE sees exactly one empty input row, via
// emptyOp), folding the newly bound variables into the row it forwards.
type createOp struct {
	ctx   *Context
	plan  *planner.Create
	input Operator
}

func (o *createOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *createOp) Close() error             { return o.input.Close() }

func (o *createOp) Next() (eval.Row, bool, error) {
	in, ok, err := o.input.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	wt, err := o.ctx.mustWrite()
	if err != nil {
		return nil, false, err
	}
	row := cloneRow(in)
	for _, item := range o.plan.Nodes {
		id, err := o.createNode(wt, row, item)
		if err != nil {
			return nil, false, err
		}
		if item.Var != "" {
			v, err := MaterializeNode(o.ctx, id)
			if err != nil {
				return nil, false, err
			}
			row[item.Var] = v
		}
	}
	for _, item := range o.plan.Rels {
		if err := o.createRel(wt, row, item); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

func (o *createOp) createNode(wt *txn.WriteTxn, row eval.Row, item planner.CreateNodeItem) (uint64, error) {
	props, err := evalExprMap(o.ctx, row, item.Properties)
	if err != nil {
		return 0, err
	}
	id, err := o.ctx.Store.CreateNode(wt.Raw(), item.LabelIDs, props)
	if err != nil {
		return 0, err
	}
	for _, labelID := range item.LabelIDs {
		wt.AddLabelUpdate(id, labelID, true)
		wt.IncrNodeCount(labelID, 1)
		for keyID, v := range props {
			wt.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: keyID, NodeID: id, Value: v, Add: true})
		}
	}
	return id, nil
}

func (o *createOp) createRel(wt *txn.WriteTxn, row eval.Row, item planner.CreateRelItem) error {
	fromVal, ok := row[item.FromVar]
	if !ok || fromVal.Tag != eval.TagNode {
		return graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not a bound node", item.FromVar)
	}
	toVal, ok := row[item.ToVar]
	if !ok || toVal.Tag != eval.TagNode {
		return graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not a bound node", item.ToVar)
	}
	srcID, dstID := fromVal.Node.ID, toVal.Node.ID
	if item.Reversed {
		srcID, dstID = dstID, srcID
	}
	props, err := evalExprMap(o.ctx, row, item.Properties)
	if err != nil {
		return err
	}
	relID, err := o.ctx.Store.CreateRelationship(wt.Raw(), srcID, dstID, item.TypeID, props)
	if err != nil {
		return err
	}
	wt.AddTypeUpdate(relID, item.TypeID, true)
	wt.IncrRelCount(item.TypeID, 1)
	if item.Var != "" {
		v, err := MaterializeRel(o.ctx, relID)
		if err != nil {
			return err
		}
		row[item.Var] = v
	}
	return nil
}

// evalExprMap resolves a CREATE pattern's property map against row's
// current bindings, dropping any key whose expression evaluates null (a
// null property is absent) or to a value eval.ToPropValue cannot store.
func evalExprMap(ctx *Context, row eval.Row, exprs map[uint32]cypher.Expr) (map[uint32]store.PropValue, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	ec := ctx.evalContext(row)
	out := make(map[uint32]store.PropValue, len(exprs))
	for keyID, expr := range exprs {
		v, err := eval.Eval(ec, expr)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			continue
		}
		pv, ok := eval.ToPropValue(v)
		if !ok {
			continue
		}
		out[keyID] = pv
	}
	return out, nil
}

// nodeLabelIDs resolves n's current label names back to catalog ids, for
// computing index/count deltas against its full label set.
func nodeLabelIDs(ctx *Context, n eval.Node) []uint32 {
	ids := make([]uint32, 0, len(n.Labels))
	for _, name := range n.Labels {
		if id, ok := ctx.Catalog.LookupLabelID(name); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func nodeHasLabelID(ctx *Context, id uint64, rec *store.NodeRecord, labelID uint32) bool {
	if labelID < 128 {
		return rec.HasLabelBit(labelID)
	}
	ids, err := ctx.Index.NodesForLabel(ctx.ReadTxn(), labelID)
	if err != nil {
		return false
	}
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}

// applySetItems implements both SET and the OnMatch/OnCreate halves of
// MERGE: it shares the same SetOp shape.
func applySetItems(ctx *Context, wt *txn.WriteTxn, row eval.Row, props []planner.SetPropertyItem, labels []planner.SetLabelItem) error {
	for _, item := range props {
		if err := applySetProperty(ctx, wt, row, item); err != nil {
			return err
		}
	}
	for _, item := range labels {
		if err := applySetLabel(ctx, wt, row, item); err != nil {
			return err
		}
	}
	return nil
}

func applySetProperty(ctx *Context, wt *txn.WriteTxn, row eval.Row, item planner.SetPropertyItem) error {
	target, ok := row[item.TargetVar]
	if !ok {
		return graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not bound", item.TargetVar)
	}
	newVal, err := eval.Eval(ctx.evalContext(row), item.Value)
	if err != nil {
		return err
	}
	rt := ctx.ReadTxn()

	switch target.Tag {
	case eval.TagNode:
		props, err := ctx.Store.LoadNodeProperties(rt, target.Node.ID)
		if err != nil {
			return err
		}
		oldPV, hadOld := props[item.KeyID]
		newPV, dropped := resolveSetValue(item, oldPV, hadOld, newVal)
		if dropped {
			delete(props, item.KeyID)
		} else {
			props[item.KeyID] = newPV
		}
		if err := ctx.Store.SetNodeProperties(wt.Raw(), target.Node.ID, props); err != nil {
			return err
		}
		labelIDs := nodeLabelIDs(ctx, target.Node)
		for _, labelID := range labelIDs {
			if hadOld {
				wt.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: item.KeyID, NodeID: target.Node.ID, Value: oldPV, Add: false})
			}
			if !dropped {
				wt.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: item.KeyID, NodeID: target.Node.ID, Value: newPV, Add: true})
			}
		}
		keyName, _ := ctx.Catalog.LookupKeyName(item.KeyID)
		if dropped {
			delete(target.Node.Props, keyName)
		} else {
			target.Node.Props[keyName] = eval.FromPropValue(newPV)
		}
		row[item.TargetVar] = target
	case eval.TagRelationship:
		props, err := ctx.Store.LoadRelProperties(rt, target.Relationship.ID)
		if err != nil {
			return err
		}
		oldPV, hadOld := props[item.KeyID]
		newPV, dropped := resolveSetValue(item, oldPV, hadOld, newVal)
		if dropped {
			delete(props, item.KeyID)
		} else {
			props[item.KeyID] = newPV
		}
		if err := ctx.Store.SetRelProperties(wt.Raw(), target.Relationship.ID, props); err != nil {
			return err
		}
		keyName, _ := ctx.Catalog.LookupKeyName(item.KeyID)
		if dropped {
			delete(target.Relationship.Props, keyName)
		} else {
			target.Relationship.Props[keyName] = eval.FromPropValue(newPV)
		}
		row[item.TargetVar] = target
	default:
		return graphdberr.New(graphdberr.KindCypherExecution, "SET target %q is not a node or relationship", item.TargetVar)
	}
	return nil
}

// resolveSetValue computes the stored property value for one SET
// assignment. A plain `SET x.k = v` with v null removes the key
// entirely. `SET x.k += v` (Append) concatenates onto any existing list
// value (or starts one), matching this dialect's list-append sugar.
func resolveSetValue(item planner.SetPropertyItem, oldPV store.PropValue, hadOld bool, newVal eval.Value) (store.PropValue, bool) {
	if !item.Append {
		if newVal.IsNull() {
			return store.PropValue{}, true
		}
		pv, ok := eval.ToPropValue(newVal)
		if !ok {
			return store.PropValue{}, true
		}
		return pv, false
	}
	var list []store.PropValue
	if hadOld && oldPV.Tag == store.PropList {
		list = append(list, oldPV.List...)
	} else if hadOld {
		list = append(list, oldPV)
	}
	if newVal.Tag == eval.TagList {
		for _, elem := range newVal.List {
			if pv, ok := eval.ToPropValue(elem); ok {
				list = append(list, pv)
			}
		}
	} else if pv, ok := eval.ToPropValue(newVal); ok {
		list = append(list, pv)
	}
	return store.ListValue(list), false
}

func applySetLabel(ctx *Context, wt *txn.WriteTxn, row eval.Row, item planner.SetLabelItem) error {
	target, ok := row[item.TargetVar]
	if !ok || target.Tag != eval.TagNode {
		return graphdberr.New(graphdberr.KindCypherExecution, "SET label target %q is not a node", item.TargetVar)
	}
	rt := ctx.ReadTxn()
	rec, err := ctx.Store.ReadNode(rt, target.Node.ID)
	if err != nil {
		return err
	}
	dirty := false
	for _, labelID := range item.LabelIDs {
		if nodeHasLabelID(ctx, target.Node.ID, rec, labelID) {
			continue
		}
		if labelID < 128 {
			rec.SetLabelBit(labelID, true)
			dirty = true
		}
		wt.AddLabelUpdate(target.Node.ID, labelID, true)
		wt.IncrNodeCount(labelID, 1)
		name, _ := ctx.Catalog.LookupLabelName(labelID)
		target.Node.Labels = append(target.Node.Labels, name)
	}
	if dirty {
		if err := ctx.Store.WriteNode(wt.Raw(), target.Node.ID, rec); err != nil {
			return err
		}
	}
	row[item.TargetVar] = target
	return nil
}

// removeOp mirrors setOp for REMOVE's property and label deletions.
type removeOp struct {
	ctx   *Context
	plan  *planner.RemoveOp
	input Operator
}

func (o *removeOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *removeOp) Close() error             { return o.input.Close() }

func (o *removeOp) Next() (eval.Row, bool, error) {
	row, ok, err := o.input.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	wt, err := o.ctx.mustWrite()
	if err != nil {
		return nil, false, err
	}
	for _, item := range o.plan.Properties {
		if err := removeProperty(o.ctx, wt, row, item); err != nil {
			return nil, false, err
		}
	}
	for _, item := range o.plan.Labels {
		if err := removeLabel(o.ctx, wt, row, item); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

func removeProperty(ctx *Context, wt *txn.WriteTxn, row eval.Row, item planner.RemovePropertyItem) error {
	target, ok := row[item.TargetVar]
	if !ok {
		return graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not bound", item.TargetVar)
	}
	rt := ctx.ReadTxn()
	keyName, _ := ctx.Catalog.LookupKeyName(item.KeyID)
	switch target.Tag {
	case eval.TagNode:
		props, err := ctx.Store.LoadNodeProperties(rt, target.Node.ID)
		if err != nil {
			return err
		}
		oldPV, hadOld := props[item.KeyID]
		if !hadOld {
			return nil
		}
		delete(props, item.KeyID)
		if err := ctx.Store.SetNodeProperties(wt.Raw(), target.Node.ID, props); err != nil {
			return err
		}
		for _, labelID := range nodeLabelIDs(ctx, target.Node) {
			wt.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: item.KeyID, NodeID: target.Node.ID, Value: oldPV, Add: false})
		}
		delete(target.Node.Props, keyName)
		row[item.TargetVar] = target
	case eval.TagRelationship:
		props, err := ctx.Store.LoadRelProperties(rt, target.Relationship.ID)
		if err != nil {
			return err
		}
		if _, hadOld := props[item.KeyID]; !hadOld {
			return nil
		}
		delete(props, item.KeyID)
		if err := ctx.Store.SetRelProperties(wt.Raw(), target.Relationship.ID, props); err != nil {
			return err
		}
		delete(target.Relationship.Props, keyName)
		row[item.TargetVar] = target
	default:
		return graphdberr.New(graphdberr.KindCypherExecution, "REMOVE target %q is not a node or relationship", item.TargetVar)
	}
	return nil
}

func removeLabel(ctx *Context, wt *txn.WriteTxn, row eval.Row, item planner.RemoveLabelItem) error {
	target, ok := row[item.TargetVar]
	if !ok || target.Tag != eval.TagNode {
		return graphdberr.New(graphdberr.KindCypherExecution, "REMOVE label target %q is not a node", item.TargetVar)
	}
	rt := ctx.ReadTxn()
	rec, err := ctx.Store.ReadNode(rt, target.Node.ID)
	if err != nil {
		return err
	}
	dirty := false
	for _, labelID := range item.LabelIDs {
		if !nodeHasLabelID(ctx, target.Node.ID, rec, labelID) {
			continue
		}
		if labelID < 128 {
			rec.SetLabelBit(labelID, false)
			dirty = true
		}
		wt.AddLabelUpdate(target.Node.ID, labelID, false)
		wt.IncrNodeCount(labelID, -1)
		name, _ := ctx.Catalog.LookupLabelName(labelID)
		target.Node.Labels = removeString(target.Node.Labels, name)
	}
	if dirty {
		if err := ctx.Store.WriteNode(wt.Raw(), target.Node.ID, rec); err != nil {
			return err
		}
	}
	row[item.TargetVar] = target
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// deleteOp removes the bound node/relationship variables from storage.
// Detach first unsplices every incident relationship of a node target;
// otherwise DeleteNode itself rejects a node that still has edges.
type deleteOp struct {
	ctx   *Context
	plan  *planner.DeleteOp
	input Operator
}

func (o *deleteOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *deleteOp) Close() error             { return o.input.Close() }

func (o *deleteOp) Next() (eval.Row, bool, error) {
	row, ok, err := o.input.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	wt, err := o.ctx.mustWrite()
	if err != nil {
		return nil, false, err
	}
	for _, v := range o.plan.Vars {
		target, ok := row[v]
		if !ok {
			continue
		}
		switch target.Tag {
		case eval.TagNode:
			if err := deleteNode(o.ctx, wt, target.Node, o.plan.Detach); err != nil {
				return nil, false, err
			}
		case eval.TagRelationship:
			if err := deleteRel(o.ctx, wt, target.Relationship); err != nil {
				return nil, false, err
			}
		}
	}
	return row, true, nil
}

func deleteNode(ctx *Context, wt *txn.WriteTxn, n eval.Node, detach bool) error {
	rt := ctx.ReadTxn()
	if detach {
		entries, err := ctx.Store.WalkAdjacency(rt, n.ID, store.DirBoth)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			rel, err := MaterializeRel(ctx, entry.RelID)
			if err != nil {
				return err
			}
			if err := deleteRel(ctx, wt, rel.Relationship); err != nil {
				return err
			}
		}
	}
	props, err := ctx.Store.LoadNodeProperties(rt, n.ID)
	if err != nil {
		return err
	}
	labelIDs := nodeLabelIDs(ctx, n)
	for _, labelID := range labelIDs {
		wt.AddLabelUpdate(n.ID, labelID, false)
		wt.IncrNodeCount(labelID, -1)
		for keyID, pv := range props {
			wt.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: keyID, NodeID: n.ID, Value: pv, Add: false})
		}
	}
	return ctx.Store.DeleteNode(wt.Raw(), n.ID)
}

func deleteRel(ctx *Context, wt *txn.WriteTxn, r eval.Relationship) error {
	typeID, ok := ctx.Catalog.LookupTypeID(r.Type)
	if ok {
		wt.AddTypeUpdate(r.ID, typeID, false)
		wt.IncrRelCount(typeID, -1)
	}
	return ctx.Store.DeleteRelationship(wt.Raw(), r.ID)
}

// mergeOp evaluates MatchPart (which already embeds any preceding row
// stream); if it yields any row, OnMatch is applied to each, otherwise
// CreateOnMiss runs once and OnCreate is applied to the result.
//
// This treats the whole MatchPart stream as one unit rather than
// re-running CreateOnMiss per distinct preceding row: a MERGE chained
// after a multi-row MATCH that matches for some rows and misses for
// others is not distinguished from a MERGE with no rows at all. Plain
// top-level MERGE, by far the common case, is unaffected.
type mergeOp struct {
	ctx    *Context
	plan   *planner.Merge
	buffer []eval.Row
	pos    int
}

func (o *mergeOp) Open(seed eval.Row) error {
	match, err := Build(o.ctx, o.plan.MatchPart)
	if err != nil {
		return err
	}
	if err := match.Open(seed); err != nil {
		return err
	}
	defer match.Close()

	var rows []eval.Row
	for {
		row, ok, err := match.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	wt, err := o.ctx.mustWrite()
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		if o.plan.OnMatch != nil {
			for i := range rows {
				if err := applySetItems(o.ctx, wt, rows[i], o.plan.OnMatch.Properties, o.plan.OnMatch.Labels); err != nil {
					return err
				}
			}
		}
		o.buffer, o.pos = rows, 0
		return nil
	}

	created, err := Build(o.ctx, o.plan.CreateOnMiss)
	if err != nil {
		return err
	}
	if err := created.Open(seed); err != nil {
		return err
	}
	defer created.Close()
	row, ok, err := created.Next()
	if err != nil {
		return err
	}
	if !ok {
		o.buffer, o.pos = nil, 0
		return nil
	}
	if o.plan.OnCreate != nil {
		if err := applySetItems(o.ctx, wt, row, o.plan.OnCreate.Properties, o.plan.OnCreate.Labels); err != nil {
			return err
		}
	}
	o.buffer, o.pos = []eval.Row{row}, 0
	return nil
}

func (o *mergeOp) Next() (eval.Row, bool, error) {
	if o.pos >= len(o.buffer) {
		return nil, false, nil
	}
	row := o.buffer[o.pos]
	o.pos++
	return row, true, nil
}
func (o *mergeOp) Close() error { return nil }

// foreachOp runs Body once per ListExpr element, bound to Var, purely
// for side effects; it never forwards Body's own rows downstream.
type foreachOp struct {
	ctx   *Context
	plan  *planner.ForeachOp
	input Operator
}

func (o *foreachOp) Open(seed eval.Row) error { return o.input.Open(seed) }
func (o *foreachOp) Close() error             { return o.input.Close() }

func (o *foreachOp) Next() (eval.Row, bool, error) {
	row, ok, err := o.input.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := eval.Eval(o.ctx.evalContext(row), o.plan.ListExpr)
	if err != nil {
		return nil, false, err
	}
	if v.Tag != eval.TagList {
		return row, true, nil
	}
	for _, item := range v.List {
		bodySeed := cloneRow(row)
		bodySeed[o.plan.Var] = item
		body, err := Build(o.ctx, o.plan.Body)
		if err != nil {
			return nil, false, err
		}
		if err := body.Open(bodySeed); err != nil {
			return nil, false, err
		}
		for {
			_, more, err := body.Next()
			if err != nil {
				_ = body.Close()
				return nil, false, err
			}
			if !more {
				break
			}
		}
		if err := body.Close(); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}
