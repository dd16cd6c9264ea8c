package plancache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupMissThenHit(t *testing.T) {
	c, err := New(10, 1<<20)
	require.NoError(t, err)

	_, ok := c.Lookup("MATCH (n) RETURN n")
	require.False(t, ok)

	c.Insert("MATCH (n) RETURN n", "plan-object", 64)
	plan, ok := c.Lookup("MATCH (n) RETURN n")
	require.True(t, ok)
	require.Equal(t, "plan-object", plan)

	stats := c.Statistics()
	require.Equal(t, 1, stats.CachedPlans)
	require.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestMemoryBoundEvictsOldest(t *testing.T) {
	c, err := New(100, 100)
	require.NoError(t, err)

	c.Insert("a", "a", 40)
	c.Insert("b", "b", 40)
	c.Insert("c", "c", 40) // forces eviction of "a"

	_, ok := c.Lookup("a")
	require.False(t, ok)
	_, ok = c.Lookup("b")
	require.True(t, ok)
	_, ok = c.Lookup("c")
	require.True(t, ok)
}

func TestEntryCountBoundEvictsLRU(t *testing.T) {
	c, err := New(2, 1<<20)
	require.NoError(t, err)

	c.Insert("a", "a", 1)
	c.Insert("b", "b", 1)
	c.Lookup("a") // touch a so b is least-recently-used
	c.Insert("c", "c", 1)

	_, ok := c.Lookup("b")
	require.False(t, ok)
	_, ok = c.Lookup("a")
	require.True(t, ok)
	_, ok = c.Lookup("c")
	require.True(t, ok)
}

func TestClearResetsStatistics(t *testing.T) {
	c, err := New(10, 1<<20)
	require.NoError(t, err)
	c.Insert("a", "a", 1)
	c.Lookup("a")
	c.Lookup("missing")

	c.Clear()
	stats := c.Statistics()
	require.Equal(t, 0, stats.CachedPlans)
	require.Equal(t, 0.0, stats.HitRate)
}
