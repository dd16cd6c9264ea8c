package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/planner"
	"github.com/graphdb/core/internal/store"
)

// variableLengthHopCap bounds an unbounded (`*1..`) variable-length
// expansion so a cyclic graph can't drive the traversal forever; it is
// generous enough for any realistic query and is documented rather than
// silently truncating results a user would expect (see DESIGN.md).
const variableLengthHopCap = 64

func mapExpandDirection(d planner.ExpandDirection) store.Direction {
	switch d {
	case planner.ExpandIn:
		return store.DirIn
	case planner.ExpandBoth:
		return store.DirBoth
	default:
		return store.DirOut
	}
}

// expandOp follows the adjacency chain from FromVar, for both a
// fixed-length single hop and a variable-length `*min..max` pattern. A
// variable-length RelVar binds to the list of relationships traversed
// (openCypher's path-binding convention); a fixed hop binds RelVar to a
// single relationship.
type expandOp struct {
	ctx    *Context
	plan   *planner.Expand
	input  Operator
	buffer []eval.Row
	pos    int
}

func (o *expandOp) Open(seed eval.Row) error {
	if err := o.input.Open(seed); err != nil {
		return err
	}
	o.buffer, o.pos = nil, 0
	return nil
}

func (o *expandOp) Next() (eval.Row, bool, error) {
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
		rows, err := o.computeExpand(base)
		if err != nil {
			return nil, false, err
		}
		o.buffer, o.pos = rows, 0
	}
}

func (o *expandOp) Close() error { return o.input.Close() }

func (o *expandOp) computeExpand(base eval.Row) ([]eval.Row, error) {
	fromVal, ok := base[o.plan.FromVar]
	if !ok || fromVal.Tag != eval.TagNode {
		return nil, graphdberr.New(graphdberr.KindCypherExecution, "variable %q is not a bound node", o.plan.FromVar)
	}
	dir := mapExpandDirection(o.plan.Dir)

	if o.plan.MinHops == 1 && o.plan.MaxHops == 1 {
		return o.fixedHop(base, fromVal.Node.ID, dir)
	}
	maxHops := o.plan.MaxHops
	if maxHops < 0 {
		maxHops = variableLengthHopCap
	}
	var out []eval.Row
	var walk func(nodeID uint64, depth int, visited map[uint64]bool, path []eval.Value) error
	walk = func(nodeID uint64, depth int, visited map[uint64]bool, path []eval.Value) error {
		if depth >= maxHops {
			return nil
		}
		entries, err := o.ctx.Store.WalkAdjacency(o.ctx.ReadTxn(), nodeID, dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !o.typeMatches(entry.TypeID) || visited[entry.RelID] {
				continue
			}
			relVal, err := MaterializeRel(o.ctx, entry.RelID)
			if err != nil {
				return err
			}
			nextPath := append(append([]eval.Value{}, path...), relVal)
			nextDepth := depth + 1
			if nextDepth >= o.plan.MinHops {
				toVal, err := MaterializeNode(o.ctx, entry.OtherID)
				if err != nil {
					return err
				}
				row := cloneRow(base)
				if o.plan.RelVar != "" {
					row[o.plan.RelVar] = eval.List(nextPath)
				}
				row[o.plan.ToVar] = toVal
				out = append(out, row)
			}
			nextVisited := make(map[uint64]bool, len(visited)+1)
			for k := range visited {
				nextVisited[k] = true
			}
			nextVisited[entry.RelID] = true
			if err := walk(entry.OtherID, nextDepth, nextVisited, nextPath); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(fromVal.Node.ID, 0, map[uint64]bool{}, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *expandOp) fixedHop(base eval.Row, fromID uint64, dir store.Direction) ([]eval.Row, error) {
	entries, err := o.ctx.Store.WalkAdjacency(o.ctx.ReadTxn(), fromID, dir)
	if err != nil {
		return nil, err
	}
	var out []eval.Row
	for _, entry := range entries {
		if !o.typeMatches(entry.TypeID) {
			continue
		}
		toVal, err := MaterializeNode(o.ctx, entry.OtherID)
		if err != nil {
			return nil, err
		}
		row := cloneRow(base)
		if o.plan.RelVar != "" {
			relVal, err := MaterializeRel(o.ctx, entry.RelID)
			if err != nil {
				return nil, err
			}
			row[o.plan.RelVar] = relVal
		}
		row[o.plan.ToVar] = toVal
		out = append(out, row)
	}
	return out, nil
}

func (o *expandOp) typeMatches(typeID uint32) bool {
	if len(o.plan.TypeIDs) == 0 {
		return true
	}
	for _, t := range o.plan.TypeIDs {
		if t == typeID {
			return true
		}
	}
	return false
}
