package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphtest"
	"github.com/graphdb/core/internal/planner"
)

// harness adds a Planner on top of the shared graphtest environment,
// since which package needs a Planner (and which doesn't, e.g.
// internal/txn's own tests) varies per test package.
type harness struct {
	*graphtest.Context
	pl *planner.Planner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gt := graphtest.New(t)
	return &harness{Context: gt, pl: planner.New(gt.Catalog, gt.Index)}
}

// runWrite plans and executes src inside one write transaction, committing
// on success, and returns the rows/columns it produced.
func (h *harness) runWrite(t *testing.T, src string) ([]eval.Row, []string) {
	t.Helper()
	stmt, err := cypher.NewParser(src).Parse()
	require.NoError(t, err)
	plan, err := h.pl.Plan(stmt)
	require.NoError(t, err)

	wt, err := h.Txns.BeginWrite(context.Background())
	require.NoError(t, err)

	ctx := &Context{Store: h.Store, Catalog: h.Catalog, Index: h.Index, WTxn: wt, Funcs: eval.NewFunctionRegistry()}
	rows, cols, err := Run(ctx, plan)
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

	ctx := &Context{Store: h.Store, Catalog: h.Catalog, Index: h.Index, RTxn: rt, Funcs: eval.NewFunctionRegistry()}
	rows, cols, err := Run(ctx, plan)
	require.NoError(t, err)
	return rows, cols
}

func TestCreateThenMatchReturnsNode(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (n:Person {name: "Ada", age: 36})`)

	rows, cols := h.runRead(t, `MATCH (n:Person) RETURN n.name AS name, n.age AS age`)
	require.Equal(t, []string{"name", "age"}, cols)
	require.Len(t, rows, 1)
	require.Equal(t, "Ada", rows[0]["name"].Str)
	require.Equal(t, int64(36), rows[0]["age"].Int)
}

func TestCreateRelationshipThenExpand(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (a:Person {name: "Ada"})-[:KNOWS]->(b:Person {name: "Bob"})`)

	rows, _ := h.runRead(t, `MATCH (a:Person {name: "Ada"})-[:KNOWS]->(b:Person) RETURN b.name AS name`)
	require.Len(t, rows, 1)
	require.Equal(t, "Bob", rows[0]["name"].Str)
}

func TestFilterAndOrderAndLimit(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada", age: 36})`)
	h.runWrite(t, `CREATE (:Person {name: "Bob", age: 41})`)
	h.runWrite(t, `CREATE (:Person {name: "Cleo", age: 29})`)

	rows, _ := h.runRead(t, `MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name ORDER BY n.age DESC LIMIT 1`)
	require.Len(t, rows, 1)
	require.Equal(t, "Bob", rows[0]["name"].Str)
}

func TestCountStarFastPathNoMatch(t *testing.T) {
	h := newHarness(t)
	rows, _ := h.runRead(t, `RETURN count(*) AS c`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0]["c"].Int)
}

func TestCountStarFastPathWithLabel(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})`)
	h.runWrite(t, `CREATE (:Person {name: "Bob"})`)

	rows, _ := h.runRead(t, `MATCH (n:Person) RETURN count(*) AS c`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0]["c"].Int)
}

func TestAggregateGroupBy(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada", team: "eng"})`)
	h.runWrite(t, `CREATE (:Person {name: "Bob", team: "eng"})`)
	h.runWrite(t, `CREATE (:Person {name: "Cleo", team: "sales"})`)

	rows, _ := h.runRead(t, `MATCH (n:Person) RETURN n.team AS team, count(n) AS c ORDER BY team`)
	require.Len(t, rows, 2)
	require.Equal(t, "eng", rows[0]["team"].Str)
	require.Equal(t, int64(2), rows[0]["c"].Int)
	require.Equal(t, "sales", rows[1]["team"].Str)
	require.Equal(t, int64(1), rows[1]["c"].Int)
}

func TestSetPropertyUpdatesValue(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada", age: 36})`)
	h.runWrite(t, `MATCH (n:Person {name: "Ada"}) SET n.age = 37`)

	rows, _ := h.runRead(t, `MATCH (n:Person {name: "Ada"}) RETURN n.age AS age`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(37), rows[0]["age"].Int)
}

func TestSetLabelAddsLabel(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})`)
	h.runWrite(t, `MATCH (n:Person {name: "Ada"}) SET n:Admin`)

	rows, _ := h.runRead(t, `MATCH (n:Admin) RETURN n.name AS name`)
	require.Len(t, rows, 1)
	require.Equal(t, "Ada", rows[0]["name"].Str)
}

func TestDeleteDetachRemovesNodeAndEdges(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (a:Person {name: "Ada"})-[:KNOWS]->(b:Person {name: "Bob"})`)
	h.runWrite(t, `MATCH (n:Person {name: "Ada"}) DETACH DELETE n`)

	rows, _ := h.runRead(t, `MATCH (n:Person) RETURN n.name AS name`)
	require.Len(t, rows, 1)
	require.Equal(t, "Bob", rows[0]["name"].Str)
}

func TestMergeCreatesOnMiss(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `MERGE (n:Person {name: "Ada"}) ON CREATE SET n.age = 1`)

	rows, _ := h.runRead(t, `MATCH (n:Person {name: "Ada"}) RETURN n.age AS age`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0]["age"].Int)
}

func TestMergeMatchesExisting(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada", age: 50})`)
	h.runWrite(t, `MERGE (n:Person {name: "Ada"}) ON MATCH SET n.age = 51 ON CREATE SET n.age = 1`)

	rows, _ := h.runRead(t, `MATCH (n:Person {name: "Ada"}) RETURN n.age AS age`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(51), rows[0]["age"].Int)
}

func TestUnwindProducesOneRowPerElement(t *testing.T) {
	h := newHarness(t)
	rows, _ := h.runRead(t, `UNWIND [1, 2, 3] AS x RETURN x`)
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0]["x"].Int)
	require.Equal(t, int64(3), rows[2]["x"].Int)
}

func TestUnionAllConcatenatesBranches(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})`)

	rows, _ := h.runRead(t, `MATCH (n:Person) RETURN n.name AS name UNION ALL MATCH (n:Person) RETURN n.name AS name`)
	require.Len(t, rows, 2)
}

func TestCrossJoinDisjointPatterns(t *testing.T) {
	h := newHarness(t)
	h.runWrite(t, `CREATE (:Person {name: "Ada"})`)
	h.runWrite(t, `CREATE (:Person {name: "Bob"})`)

	rows, _ := h.runRead(t, `MATCH (a:Person), (b:Person) RETURN a.name AS aName, b.name AS bName`)
	require.Len(t, rows, 4)
}
