package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/store"
)

func newTestEnv(t *testing.T) *kv.Env {
	t.Helper()
	opts := kv.DefaultOptions()
	opts.MapSize = 1 << 20
	env, err := kv.Open(t.TempDir(), opts)
	require.NoError(t, err)
	for _, table := range kv.CoreTables {
		require.NoError(t, env.CreateDB(table))
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestLabelIndexAddRemove(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.ApplyBatch(wt, []Update{
		{Label: &LabelUpdate{NodeID: 1, LabelID: 5, Add: true}},
		{Label: &LabelUpdate{NodeID: 2, LabelID: 5, Add: true}},
	}, nil))
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	ids, err := m.NodesForLabel(rt, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)
}

func TestPropertyIndexExactAndRange(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.CreateIndex(wt, 1, 2))
	require.NoError(t, m.ApplyBatch(wt, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 10, Value: store.IntValue(30), Add: true}},
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 11, Value: store.IntValue(25), Add: true}},
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 12, Value: store.IntValue(40), Add: true}},
	}, nil))
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	exact, err := m.FindExact(rt, 1, 2, store.IntValue(30))
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, exact)

	rang, err := m.FindRange(rt, 1, 2, store.IntValue(25), store.IntValue(35))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{10, 11}, rang)
}

func TestFindExactDoesNotPrefixMatchStringValues(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.CreateIndex(wt, 1, 2))
	require.NoError(t, m.ApplyBatch(wt, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 10, Value: store.StringValue("Ann"), Add: true}},
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 11, Value: store.StringValue("Anna"), Add: true}},
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 12, Value: store.StringValue("Annabel"), Add: true}},
	}, nil))
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	exact, err := m.FindExact(rt, 1, 2, store.StringValue("Ann"))
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, exact)
}

func TestUniqueConstraintAllowsPrefixOfExistingString(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.CreateIndex(wt, 1, 2))
	require.NoError(t, m.ApplyBatch(wt, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 10, Value: store.StringValue("abc"), Add: true}},
	}, nil))
	require.NoError(t, wt.Commit())

	wt2, err := env.BeginWrite()
	require.NoError(t, err)
	err = m.ApplyBatch(wt2, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 11, Value: store.StringValue("ab"), Add: true}},
	}, []UniqueConstraint{{LabelID: 1, KeyID: 2}})
	require.NoError(t, err)
	require.NoError(t, wt2.Commit())
}

func TestUniqueConstraintViolationAbortsBatch(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.CreateIndex(wt, 1, 2))
	require.NoError(t, m.ApplyBatch(wt, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 10, Value: store.StringValue("a@b.com"), Add: true}},
	}, nil))
	require.NoError(t, wt.Commit())

	wt2, err := env.BeginWrite()
	require.NoError(t, err)
	err = m.ApplyBatch(wt2, []Update{
		{Property: &PropertyUpdate{LabelID: 1, KeyID: 2, NodeID: 11, Value: store.StringValue("a@b.com"), Add: true}},
	}, []UniqueConstraint{{LabelID: 1, KeyID: 2}})
	require.Error(t, err)
	require.NoError(t, wt2.Abort())
}

func TestDropIndexRemovesBucket(t *testing.T) {
	env := newTestEnv(t)
	m, err := Open(env)
	require.NoError(t, err)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, m.CreateIndex(wt, 1, 2))
	require.NoError(t, wt.Commit())
	require.True(t, m.HasPropertyIndex(1, 2))

	wt2, err := env.BeginWrite()
	require.NoError(t, err)
	dropped, err := m.DropIndex(wt2, 1, 2)
	require.NoError(t, err)
	require.True(t, dropped)
	require.NoError(t, wt2.Commit())

	require.False(t, m.HasPropertyIndex(1, 2))
}
