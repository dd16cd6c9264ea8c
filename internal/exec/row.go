package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/store"
)

// MaterializeNode loads id's labels and properties and wraps them as a
// query-time eval.Value.
func MaterializeNode(ctx *Context, id uint64) (eval.Value, error) {
	rt := ctx.ReadTxn()
	rec, err := ctx.Store.ReadNode(rt, id)
	if err != nil {
		return eval.Value{}, err
	}
	labels, err := resolveNodeLabels(ctx, id, rec)
	if err != nil {
		return eval.Value{}, err
	}
	props, err := ctx.Store.LoadNodeProperties(rt, id)
	if err != nil {
		return eval.Value{}, err
	}
	return eval.Value{Tag: eval.TagNode, Node: eval.Node{
		ID:     id,
		Labels: labels,
		Props:  propsToEvalMap(ctx, props),
	}}, nil
}

// MaterializeRel loads id's type and properties and wraps them as a
// query-time eval.Value.
func MaterializeRel(ctx *Context, id uint64) (eval.Value, error) {
	rt := ctx.ReadTxn()
	rec, err := ctx.Store.ReadRel(rt, id)
	if err != nil {
		return eval.Value{}, err
	}
	props, err := ctx.Store.LoadRelProperties(rt, id)
	if err != nil {
		return eval.Value{}, err
	}
	typeName, _ := ctx.Catalog.LookupTypeName(rec.TypeID)
	return eval.Value{Tag: eval.TagRelationship, Relationship: eval.Relationship{
		ID:    id,
		Type:  typeName,
		Src:   rec.Src,
		Dst:   rec.Dst,
		Props: propsToEvalMap(ctx, props),
	}}, nil
}

// resolveNodeLabels reports every label name carried by rec. Label ids
// below 128 are answered directly from the inline bitmap; ids at or
// beyond 128 fall back to a label-index membership scan, since the
// bitmap only fast-paths the first 128 labels a database ever interns.
func resolveNodeLabels(ctx *Context, nodeID uint64, rec *store.NodeRecord) ([]string, error) {
	var out []string
	rt := ctx.ReadTxn()
	for _, idn := range ctx.Catalog.ListLabels() {
		if idn.ID < 128 {
			if rec.HasLabelBit(idn.ID) {
				out = append(out, idn.Name)
			}
			continue
		}
		ids, err := ctx.Index.NodesForLabel(rt, idn.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if id == nodeID {
				out = append(out, idn.Name)
				break
			}
		}
	}
	return out, nil
}

func propsToEvalMap(ctx *Context, props map[uint32]store.PropValue) map[string]eval.Value {
	if len(props) == 0 {
		return map[string]eval.Value{}
	}
	out := make(map[string]eval.Value, len(props))
	for keyID, pv := range props {
		name, ok := ctx.Catalog.LookupKeyName(keyID)
		if !ok {
			continue
		}
		out[name] = eval.FromPropValue(pv)
	}
	return out
}
