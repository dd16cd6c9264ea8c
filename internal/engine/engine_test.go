package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/config"
	"github.com/graphdb/core/internal/eval"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.PlanCacheMaxEntries = 16
	cfg.PlanCacheMaxMemoryMB = 1
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestExecuteCypherCreateAndMatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ExecuteCypher(ctx, `CREATE (:Person {name: "Ada", age: 36})`, nil)
	require.NoError(t, err)

	rs, err := e.ExecuteCypher(ctx, `MATCH (p:Person) RETURN p.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "Ada", rs.Rows[0]["name"].Str)
}

func TestExecuteCypherReadOnlyDoesNotRequireCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	rs, err := e.ExecuteCypher(ctx, `MATCH (n) RETURN n`, nil)
	require.NoError(t, err)
	require.Empty(t, rs.Rows)
}

func TestExecuteCypherParams(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ExecuteCypher(ctx, `CREATE (:Person {name: $name})`, map[string]eval.Value{
		"name": eval.String("Grace"),
	})
	require.NoError(t, err)

	rs, err := e.ExecuteCypher(ctx, `MATCH (p:Person {name: "Grace"}) RETURN p.name AS name`, nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
}

func TestPlanCacheServesRepeatedQuery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ExecuteCypher(ctx, `MATCH (n) RETURN n`, nil)
	require.NoError(t, err)
	_, err = e.ExecuteCypher(ctx, `MATCH (n)   RETURN   n`, nil)
	require.NoError(t, err)

	stats := e.PlanCacheStatistics()
	require.Equal(t, 1, stats.CachedPlans)
	require.Greater(t, stats.HitRate, 0.0)
}

func TestPlanCacheInvalidatesOnNewLabel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ExecuteCypher(ctx, `MATCH (n:Ghost) RETURN n`, nil)
	require.NoError(t, err)
	rs, err := e.ExecuteCypher(ctx, `MATCH (n:Ghost) RETURN n`, nil)
	require.NoError(t, err)
	require.Empty(t, rs.Rows)

	_, err = e.ExecuteCypher(ctx, `CREATE (:Ghost {name: "Boo"})`, nil)
	require.NoError(t, err)

	rs, err = e.ExecuteCypher(ctx, `MATCH (n:Ghost) RETURN n`, nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
}

func TestTransactionExplicitCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tx, err := e.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = tx.Execute(`CREATE (:Person {name: "Alan"})`, nil)
	require.NoError(t, err)
	_, err = tx.Execute(`CREATE (:Person {name: "Barbara"})`, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	rs, err := e.ExecuteCypher(ctx, `MATCH (p:Person) RETURN p.name AS name ORDER BY name`, nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tx, err := e.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = tx.Execute(`CREATE (:Person {name: "Rolled Back"})`, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rs, err := e.ExecuteCypher(ctx, `MATCH (p:Person) RETURN p.name AS name`, nil)
	require.NoError(t, err)
	require.Empty(t, rs.Rows)
}

func TestExplainReturnsPlanWithoutExecuting(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.Explain(`MATCH (n:Person) RETURN n`)
	require.NoError(t, err)
	require.NotNil(t, plan.Root)

	rs, err := e.ExecuteCypher(context.Background(), `MATCH (n:Person) RETURN n`, nil)
	require.NoError(t, err)
	require.Empty(t, rs.Rows)
}

func TestCreateAndDropIndex(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.CreateIndex(ctx, "Person", "name"))

	_, err := e.ExecuteCypher(ctx, `CREATE (:Person {name: "Ada"})`, nil)
	require.NoError(t, err)
	rs, err := e.ExecuteCypher(ctx, `MATCH (n:Person {name: "Ada"}) RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)

	dropped, err := e.DropIndex(ctx, "Person", "name")
	require.NoError(t, err)
	require.True(t, dropped)

	dropped, err = e.DropIndex(ctx, "Person", "name")
	require.NoError(t, err)
	require.False(t, dropped)
}

func TestExecuteCypherCanceledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExecuteCypher(ctx, `MATCH (n) RETURN n`, nil)
	require.Error(t, err)
}
