package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, env, err := OpenIsolated(t.TempDir(), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return c
}

func TestInternLabelIsIdempotent(t *testing.T) {
	c := newTestCatalog(t)

	id1, err := c.InternLabel("Person")
	require.NoError(t, err)
	id2, err := c.InternLabel("Person")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	name, ok := c.LookupLabelName(id1)
	require.True(t, ok)
	require.Equal(t, "Person", name)
}

func TestInternDistinctNamesGetDistinctIDs(t *testing.T) {
	c := newTestCatalog(t)

	person, err := c.InternLabel("Person")
	require.NoError(t, err)
	company, err := c.InternLabel("Company")
	require.NoError(t, err)
	require.NotEqual(t, person, company)
}

func TestInternSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c1, env1, err := OpenIsolated(dir, 1<<20)
	require.NoError(t, err)
	id, err := c1.InternType("KNOWS")
	require.NoError(t, err)
	require.NoError(t, env1.Close())

	c2, env2, err := OpenIsolated(dir, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env2.Close() })

	gotID, ok := c2.LookupTypeID("KNOWS")
	require.True(t, ok)
	require.Equal(t, id, gotID)
}

func TestConstraintLifecycle(t *testing.T) {
	c := newTestCatalog(t)

	labelID, err := c.InternLabel("Person")
	require.NoError(t, err)
	keyID, err := c.InternKey("email")
	require.NoError(t, err)

	conID, err := c.CreateConstraint(ConstraintUnique, labelID, keyID)
	require.NoError(t, err)

	_, err = c.CreateConstraint(ConstraintUnique, labelID, keyID)
	require.Error(t, err)

	con, ok := c.ConstraintFor(labelID, keyID)
	require.True(t, ok)
	require.Equal(t, conID, con.ID)
	require.Equal(t, ConstraintUnique, con.Kind)

	dropped, err := c.DropConstraint(ConstraintUnique, labelID, keyID)
	require.NoError(t, err)
	require.True(t, dropped)

	_, ok = c.ConstraintFor(labelID, keyID)
	require.False(t, ok)
}

func TestApplyCountDeltas(t *testing.T) {
	c := newTestCatalog(t)
	labelID, err := c.InternLabel("Person")
	require.NoError(t, err)

	wt, err := c.env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, c.ApplyCountDeltas(wt, map[uint32]int64{labelID: 3}, nil))
	require.NoError(t, wt.Commit())

	require.Equal(t, uint64(3), c.NodeCountForLabel(labelID))

	wt2, err := c.env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, c.ApplyCountDeltas(wt2, map[uint32]int64{labelID: -1}, nil))
	require.NoError(t, wt2.Commit())

	require.Equal(t, uint64(2), c.NodeCountForLabel(labelID))
}

func TestGetStatistics(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.InternLabel("Person")
	require.NoError(t, err)
	_, err = c.InternLabel("Company")
	require.NoError(t, err)
	_, err = c.InternType("KNOWS")
	require.NoError(t, err)

	stats := c.GetStatistics()
	require.Equal(t, 2, stats.LabelCount)
	require.Equal(t, 1, stats.TypeCount)
}
