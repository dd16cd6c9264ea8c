package procs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/exec"
	"github.com/graphdb/core/internal/graphtest"
	"github.com/graphdb/core/internal/planner"
)

type harness struct {
	*graphtest.Context
	pl    *planner.Planner
	procs exec.ProcRegistry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gt := graphtest.New(t)
	return &harness{Context: gt, pl: planner.New(gt.Catalog, gt.Index), procs: NewRegistry(gt.Catalog)}
}

func (h *harness) runWrite(t *testing.T, src string) ([]eval.Row, []string) {
	t.Helper()
	stmt, err := cypher.NewParser(src).Parse()
	require.NoError(t, err)
	plan, err := h.pl.Plan(stmt)
	require.NoError(t, err)

	wt, err := h.Txns.BeginWrite(context.Background())
	require.NoError(t, err)

	ctx := &exec.Context{Store: h.Store, Catalog: h.Catalog, Index: h.Index, WTxn: wt, Funcs: eval.NewFunctionRegistry(), Procs: h.procs}
	rows, cols, err := exec.Run(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, wt.Commit())
	return rows, cols
}

func (h *harness) runRead(t *testing.T, src string) ([]eval.Row, []string) {
	t.Helper()
	stmt, err := cypher.NewParser(src).Parse()
	require.NoError(t, err)
	plan, err := h.pl.Plan(stmt)
	require.NoError(t, err)

	rt, err := h.Txns.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	ctx := &exec.Context{Store: h.Store, Catalog: h.Catalog, Index: h.Index, RTxn: rt, Funcs: eval.NewFunctionRegistry(), Procs: h.procs}
	rows, cols, err := exec.Run(ctx, plan)
	require.NoError(t, err)
	return rows, cols
}

func TestDBLabelsListsInternedLabels(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})`)
	h.runWrite(t, `CREATE (:Company {name: "Acme"})`)

	rows, cols := h.runRead(t, `CALL db.labels() YIELD label RETURN label ORDER BY label`)
	require.Equal(t, []string{"label"}, cols)
	require.Len(t, rows, 2)
	require.Equal(t, "Company", rows[0]["label"].Str)
	require.Equal(t, "Person", rows[1]["label"].Str)
}

func TestDBRelationshipTypesListsInternedTypes(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person)-[:KNOWS]->(:Person)`)

	rows, _ := h.runRead(t, `CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType`)
	require.Len(t, rows, 1)
	require.Equal(t, "KNOWS", rows[0]["relationshipType"].Str)
}

func TestDBPropertyKeysListsInternedKeys(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada", age: 36})`)

	rows, _ := h.runRead(t, `CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey ORDER BY propertyKey`)
	require.Len(t, rows, 2)
	require.Equal(t, "age", rows[0]["propertyKey"].Str)
	require.Equal(t, "name", rows[1]["propertyKey"].Str)
}

func TestDBSchemaReportsLabelsTypesAndConstraints(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})-[:KNOWS]->(:Person {name: "Bob"})`)
	labelID, ok := h.Catalog.LookupLabelID("Person")
	require.True(t, ok)
	keyID, ok := h.Catalog.LookupKeyID("name")
	require.True(t, ok)
	_, err := h.Catalog.CreateConstraint(catalog.ConstraintUnique, labelID, keyID)
	require.NoError(t, err)

	rows, cols := h.runRead(t, `CALL db.schema() YIELD kind, name RETURN kind, name ORDER BY kind, name`)
	require.Equal(t, []string{"kind", "name"}, cols)

	var kinds []string
	for _, r := range rows {
		kinds = append(kinds, r["kind"].Str)
	}
	require.Contains(t, kinds, "label")
	require.Contains(t, kinds, "relationshipType")
	require.Contains(t, kinds, "unique")
}

func TestSpatialWithinBBoxFindsContainedPoint(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Place {name: "Inside", location: point({x: 5, y: 5})})`)
	h.runWrite(t, `CREATE (:Place {name: "Outside", location: point({x: 50, y: 50})})`)

	rows, cols := h.runRead(t, `CALL spatial.withinBBox({min: point({x: 0, y: 0}), max: point({x: 10, y: 10})}, "location") YIELD node RETURN node.name AS name`)
	require.Equal(t, []string{"name"}, cols)
	require.Len(t, rows, 1)
	require.Equal(t, "Inside", rows[0]["name"].Str)
}

func TestSpatialWithinDistanceFindsNearbyPoint(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Place {name: "Near", location: point({x: 1, y: 0})})`)
	h.runWrite(t, `CREATE (:Place {name: "Far", location: point({x: 100, y: 0})})`)

	rows, _ := h.runRead(t, `CALL spatial.withinDistance(point({x: 0, y: 0}), 5, "location") YIELD node RETURN node.name AS name`)
	require.Len(t, rows, 1)
	require.Equal(t, "Near", rows[0]["name"].Str)
}
