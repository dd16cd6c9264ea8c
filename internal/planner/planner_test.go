package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
)

func newTestPlanner(t *testing.T) (*Planner, *catalog.Catalog, *index.Manager, *kv.Env) {
	t.Helper()
	opts := kv.DefaultOptions()
	opts.MapSize = 1 << 20
	env, err := kv.Open(t.TempDir(), opts)
	require.NoError(t, err)
	for _, table := range kv.CoreTables {
		require.NoError(t, env.CreateDB(table))
	}
	t.Cleanup(func() { _ = env.Close() })

	cat, err := catalog.Open(env)
	require.NoError(t, err)
	idx, err := index.Open(env)
	require.NoError(t, err)

	return New(cat, idx), cat, idx, env
}

func mustPlan(t *testing.T, p *Planner, src string) *QueryPlan {
	t.Helper()
	stmt, err := cypher.NewParser(src).Parse()
	require.NoError(t, err)
	plan, err := p.Plan(stmt)
	require.NoError(t, err)
	return plan
}

func TestAllNodesScanWhenNoLabel(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n) RETURN n")
	proj, ok := plan.Root.(*Project)
	require.True(t, ok)
	_, ok = proj.Input.(*AllNodesScan)
	require.True(t, ok)
}

func TestLabelScanForSingleLabel(t *testing.T) {
	p, cat, _, _ := newTestPlanner(t)
	_, err := cat.InternLabel("Person")
	require.NoError(t, err)

	plan := mustPlan(t, p, "MATCH (n:Person) RETURN n")
	proj := plan.Root.(*Project)
	scan, ok := proj.Input.(*NodeByLabelScan)
	require.True(t, ok)
	id, _ := cat.LookupLabelID("Person")
	require.Equal(t, id, scan.LabelID)
}

func TestLabelIntersectForMultipleLabels(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:Person:Employee) RETURN n")
	proj := plan.Root.(*Project)
	intersect, ok := proj.Input.(*NodeByLabelIntersect)
	require.True(t, ok)
	require.Len(t, intersect.LabelIDs, 2)
}

func TestPropertyIndexPreferredOverLabelScan(t *testing.T) {
	p, cat, idx, env := newTestPlanner(t)
	labelID, err := cat.InternLabel("Person")
	require.NoError(t, err)
	keyID, err := cat.InternKey("email")
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, idx.CreateIndex(wt, labelID, keyID))
	require.NoError(t, wt.Commit())

	plan := mustPlan(t, p, `MATCH (n:Person {email: "a@example.com"}) RETURN n`)
	proj := plan.Root.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok, "inline pattern properties must survive as a residual filter")
	exact, ok := filter.Input.(*NodeByPropertyExact)
	require.True(t, ok)
	require.Equal(t, labelID, exact.LabelID)
	require.Equal(t, keyID, exact.KeyID)
}

func TestInlinePatternPropertyFilterAppliedEvenWithoutIndex(t *testing.T) {
	p, cat, _, _ := newTestPlanner(t)
	_, err := cat.InternLabel("Person")
	require.NoError(t, err)

	plan := mustPlan(t, p, `MATCH (n:Person {name: "Alice"}) RETURN n`)
	proj := plan.Root.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok)
	_, ok = filter.Input.(*NodeByLabelScan)
	require.True(t, ok)

	bin, ok := filter.Predicate.(*cypher.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, cypher.TokenEquals, bin.Op)
	access, ok := bin.Left.(*cypher.PropertyAccess)
	require.True(t, ok)
	require.Equal(t, "name", access.Key)
}

func TestInlinePatternPropertyFilterAppliedOnExpandedNode(t *testing.T) {
	p, cat, _, _ := newTestPlanner(t)
	_, err := cat.InternLabel("Person")
	require.NoError(t, err)

	plan := mustPlan(t, p, `MATCH (a:Person)-[:KNOWS]->(b:Person {name: "Bob"}) RETURN b`)
	proj := plan.Root.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok, "expanded node's inline properties must survive as a residual filter")
	_, ok = filter.Input.(*LabelFilter)
	require.True(t, ok)
}

func TestCountStarFastPathWithLabel(t *testing.T) {
	p, cat, _, _ := newTestPlanner(t)
	labelID, err := cat.InternLabel("Person")
	require.NoError(t, err)

	plan := mustPlan(t, p, "MATCH (n:Person) RETURN count(*)")
	fast, ok := plan.Root.(*CountStarFastPath)
	require.True(t, ok)
	require.True(t, fast.HasLabel)
	require.Equal(t, labelID, fast.LabelID)
}

func TestCountStarFastPathNoMatch(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "RETURN count(*)")
	fast, ok := plan.Root.(*CountStarFastPath)
	require.True(t, ok)
	require.False(t, fast.HasLabel)
}

func TestExpandBuildsRelationshipChain(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a, r, b")
	proj := plan.Root.(*Project)
	filter, ok := proj.Input.(*LabelFilter)
	require.True(t, ok)
	require.Equal(t, "b", filter.Var)
	expand, ok := filter.Input.(*Expand)
	require.True(t, ok)
	require.Equal(t, "a", expand.FromVar)
	require.Equal(t, "r", expand.RelVar)
	require.Equal(t, "b", expand.ToVar)
	require.Equal(t, ExpandOut, expand.Dir)
}

func TestVariableLengthExpand(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (a)-[r:KNOWS*1..3]->(b) RETURN b")
	proj := plan.Root.(*Project)
	expand := proj.Input.(*Expand)
	require.Equal(t, 1, expand.MinHops)
	require.Equal(t, 3, expand.MaxHops)
}

func TestCreatePlan(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, `CREATE (n:Person {name: "Ada"})`)
	create, ok := plan.Root.(*Create)
	require.True(t, ok)
	require.Len(t, create.Nodes, 1)
	require.Nil(t, create.Input)
}

func TestMergePlan(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, `MERGE (n:Person {name: "Ada"}) ON CREATE SET n.created = true`)
	merge, ok := plan.Root.(*Merge)
	require.True(t, ok)
	require.NotNil(t, merge.CreateOnMiss)
	require.NotNil(t, merge.OnCreate)
	require.Nil(t, merge.OnMatch)
}

func TestUnionDedupUnlessAll(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:Person) RETURN n.name AS name UNION MATCH (n:Employee) RETURN n.name AS name")
	union, ok := plan.Root.(*UnionOp)
	require.True(t, ok)
	require.False(t, union.All)
	require.Len(t, union.Inputs, 2)
}

func TestUnionAllKeepsDuplicates(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:Person) RETURN n.name AS name UNION ALL MATCH (n:Employee) RETURN n.name AS name")
	union := plan.Root.(*UnionOp)
	require.True(t, union.All)
}

func TestWithWhereAppliesFilterAfterProjection(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:Person) WITH n.age AS age WHERE age > 21 RETURN age")
	proj, ok := plan.Root.(*Project)
	require.True(t, ok)
	require.Len(t, proj.Items, 1)
	require.Equal(t, "age", proj.Items[0].Alias)

	// The WHERE filter sits between the WITH projection and the final
	// RETURN projection.
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok)
	_, ok = filter.Input.(*Project)
	require.True(t, ok)
}

func TestAggregateCollectsGroupAndItems(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:Person) RETURN n.city AS city, count(n) AS total")
	agg, ok := plan.Root.(*Aggregate)
	require.True(t, ok)
	require.Len(t, agg.GroupExprs, 1)
	require.Len(t, agg.Items, 1)
	require.Equal(t, "count", agg.Items[0].Func)
	require.Equal(t, "total", agg.Items[0].Alias)
}

func TestUnknownLabelYieldsSentinelScan(t *testing.T) {
	p, _, _, _ := newTestPlanner(t)
	plan := mustPlan(t, p, "MATCH (n:NoSuchLabel) RETURN n")
	proj := plan.Root.(*Project)
	scan, ok := proj.Input.(*NodeByLabelScan)
	require.True(t, ok)
	require.Equal(t, noSuchID, scan.LabelID)
}
