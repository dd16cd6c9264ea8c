// Package procs implements the built-in procedure registry that CALL
// clauses dispatch against: db.* procedures surface catalog metadata,
// spatial.* procedures scan for nodes whose point-valued property falls
// inside a bounding box or within a distance of a reference point.
package procs

import (
	"golang.org/x/sync/errgroup"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/exec"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/store"
)

// NewRegistry builds the procedure registry handed to exec.Context.Procs.
func NewRegistry(cat *catalog.Catalog) exec.ProcRegistry {
	return exec.ProcRegistry{
		"db.labels":              procDBLabels(cat),
		"db.relationshipTypes":   procDBRelationshipTypes(cat),
		"db.propertyKeys":        procDBPropertyKeys(cat),
		"db.schema":              procDBSchema(cat),
		"spatial.withinBBox":     procSpatialWithinBBox,
		"spatial.withinDistance": procSpatialWithinDistance,
	}
}

func procDBLabels(cat *catalog.Catalog) exec.ProcFunc {
	return func(_ *exec.Context, _ []eval.Value) ([]eval.Row, []string, error) {
		names := cat.ListLabels()
		rows := make([]eval.Row, len(names))
		for i, n := range names {
			rows[i] = eval.Row{"label": eval.String(n.Name)}
		}
		return rows, []string{"label"}, nil
	}
}

func procDBRelationshipTypes(cat *catalog.Catalog) exec.ProcFunc {
	return func(_ *exec.Context, _ []eval.Value) ([]eval.Row, []string, error) {
		names := cat.ListTypes()
		rows := make([]eval.Row, len(names))
		for i, n := range names {
			rows[i] = eval.Row{"relationshipType": eval.String(n.Name)}
		}
		return rows, []string{"relationshipType"}, nil
	}
}

func procDBPropertyKeys(cat *catalog.Catalog) exec.ProcFunc {
	return func(_ *exec.Context, _ []eval.Value) ([]eval.Row, []string, error) {
		names := cat.ListAllKeys()
		rows := make([]eval.Row, len(names))
		for i, n := range names {
			rows[i] = eval.Row{"propertyKey": eval.String(n.Name)}
		}
		return rows, []string{"propertyKey"}, nil
	}
}

// procDBSchema fans the three catalog reads out across goroutines — they
// each take their own RWMutex read lock, so there is no benefit to
// sequencing them — then assembles one row per label, relationship type,
// and constraint.
func procDBSchema(cat *catalog.Catalog) exec.ProcFunc {
	return func(_ *exec.Context, _ []eval.Value) ([]eval.Row, []string, error) {
		var labels, types []catalog.IDName
		var constraints []*catalog.Constraint

		var g errgroup.Group
		g.Go(func() error { labels = cat.ListLabels(); return nil })
		g.Go(func() error { types = cat.ListTypes(); return nil })
		g.Go(func() error { constraints = cat.Constraints(); return nil })
		_ = g.Wait()

		cols := []string{"kind", "name", "label", "propertyKey"}
		rows := make([]eval.Row, 0, len(labels)+len(types)+len(constraints))
		for _, l := range labels {
			rows = append(rows, eval.Row{"kind": eval.String("label"), "name": eval.String(l.Name), "label": eval.Null(), "propertyKey": eval.Null()})
		}
		for _, t := range types {
			rows = append(rows, eval.Row{"kind": eval.String("relationshipType"), "name": eval.String(t.Name), "label": eval.Null(), "propertyKey": eval.Null()})
		}
		for _, c := range constraints {
			labelName, _ := cat.LookupLabelName(c.LabelID)
			keyName, _ := cat.LookupKeyName(c.KeyID)
			rows = append(rows, eval.Row{
				"kind":        eval.String(constraintKindName(c.Kind)),
				"name":        eval.String(keyName),
				"label":       eval.String(labelName),
				"propertyKey": eval.String(keyName),
			})
		}
		return rows, cols, nil
	}
}

func constraintKindName(k catalog.ConstraintKind) string {
	switch k {
	case catalog.ConstraintUnique:
		return "unique"
	case catalog.ConstraintExists:
		return "exists"
	default:
		return "unknown"
	}
}

// procSpatialWithinBBox scans every node for one whose named property
// holds a point inside the box spanned by min/max, inclusive. There is
// no spatial index backing this — it is a full node scan — since the
// index manager only supports the total order used by exact/range
// lookups, not two-dimensional containment.
func procSpatialWithinBBox(ctx *exec.Context, args []eval.Value) ([]eval.Row, []string, error) {
	if len(args) != 2 {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinBBox requires (bbox, property)")
	}
	bbox := args[0]
	if bbox.Tag != eval.TagMap {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinBBox requires a {min, max} map as its first argument")
	}
	minV, ok1 := bbox.Map["min"]
	maxV, ok2 := bbox.Map["max"]
	if !ok1 || !ok2 || minV.Tag != eval.TagPoint || maxV.Tag != eval.TagPoint {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinBBox bbox requires point-valued min and max")
	}
	propName, ok := stringArg(args[1])
	if !ok {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinBBox requires a string property name")
	}

	return scanByPoint(ctx, propName, func(p eval.Point) bool {
		if p.CRS != minV.Point.CRS {
			return false
		}
		return p.X >= minV.Point.X && p.X <= maxV.Point.X && p.Y >= minV.Point.Y && p.Y <= maxV.Point.Y
	})
}

// procSpatialWithinDistance scans every node for one whose named point
// property lies within distance of the reference point, reusing
// eval's distance() builtin so the two stay consistent.
func procSpatialWithinDistance(ctx *exec.Context, args []eval.Value) ([]eval.Row, []string, error) {
	if len(args) != 3 {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinDistance requires (point, distance, property)")
	}
	center := args[0]
	if center.Tag != eval.TagPoint {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinDistance requires a point as its first argument")
	}
	maxDist, ok := floatArg(args[1])
	if !ok {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinDistance requires a numeric distance")
	}
	propName, ok := stringArg(args[2])
	if !ok {
		return nil, nil, graphdberr.New(graphdberr.KindInvalidInput, "spatial.withinDistance requires a string property name")
	}

	distanceFn, ok := ctx.Funcs.Lookup("distance")
	if !ok {
		return nil, nil, graphdberr.New(graphdberr.KindCypherExecution, "distance() builtin is not registered")
	}

	return scanByPoint(ctx, propName, func(p eval.Point) bool {
		if p.CRS != center.Point.CRS {
			return false
		}
		d, err := distanceFn(nil, []eval.Value{center, {Tag: eval.TagPoint, Point: p}})
		if err != nil || d.IsNull() {
			return false
		}
		return d.Float <= maxDist
	})
}

// scanByPoint walks every node id in the store, loads its named
// property, and yields nodes whose property is a point value matching
// keep. It deliberately bypasses the label index since a point-valued
// property is not restricted to any particular label.
func scanByPoint(ctx *exec.Context, propName string, keep func(eval.Point) bool) ([]eval.Row, []string, error) {
	keyID, ok := ctx.Catalog.LookupKeyID(propName)
	if !ok {
		return nil, []string{"node"}, nil
	}
	rt := ctx.ReadTxn()
	ids, err := ctx.Store.AllNodeIDs(rt)
	if err != nil {
		return nil, nil, err
	}

	var rows []eval.Row
	for _, id := range ids {
		props, err := ctx.Store.LoadNodeProperties(rt, id)
		if err != nil {
			return nil, nil, err
		}
		pv, ok := props[keyID]
		if !ok || pv.Tag != store.PropPoint {
			continue
		}
		p := eval.Point{X: pv.Point.X, Y: pv.Point.Y, Z: pv.Point.Z, Has3D: pv.Point.Has3D, CRS: eval.CRS(pv.Point.CRS)}
		if !keep(p) {
			continue
		}
		nodeVal, err := exec.MaterializeNode(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, eval.Row{"node": nodeVal})
	}
	return rows, []string{"node"}, nil
}

func stringArg(v eval.Value) (string, bool) {
	if v.Tag != eval.TagString {
		return "", false
	}
	return v.Str, true
}

func floatArg(v eval.Value) (float64, bool) {
	switch v.Tag {
	case eval.TagFloat:
		return v.Float, true
	case eval.TagInt:
		return float64(v.Int), true
	default:
		return 0, false
	}
}
