package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/store"
)

type harness struct {
	env   *kv.Env
	cat   *catalog.Catalog
	idx   *index.Manager
	store *store.Store
	mgr   *Manager
}

func newHarness(t *testing.T) *harness {
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
	st := store.New(env)
	mgr := New(env, cat, idx)

	return &harness{env: env, cat: cat, idx: idx, store: st, mgr: mgr}
}

func TestCommitAppliesIndexAndCounts(t *testing.T) {
	h := newHarness(t)
	labelID, err := h.cat.InternLabel("Person")
	require.NoError(t, err)

	wt, err := h.mgr.BeginWrite(context.Background())
	require.NoError(t, err)

	nodeID, err := h.store.CreateNode(wt.Raw(), []uint32{labelID}, nil)
	require.NoError(t, err)
	wt.AddLabelUpdate(nodeID, labelID, true)
	wt.IncrNodeCount(labelID, 1)

	require.NoError(t, wt.Commit())

	require.Equal(t, uint64(1), h.cat.NodeCountForLabel(labelID))

	rt, err := h.mgr.BeginRead()
	require.NoError(t, err)
	defer rt.Close()
	ids, err := h.idx.NodesForLabel(rt, labelID)
	require.NoError(t, err)
	require.Equal(t, []uint64{nodeID}, ids)
}

func TestRollbackDiscardsEverything(t *testing.T) {
	h := newHarness(t)
	labelID, err := h.cat.InternLabel("Person")
	require.NoError(t, err)

	wt, err := h.mgr.BeginWrite(context.Background())
	require.NoError(t, err)
	nodeID, err := h.store.CreateNode(wt.Raw(), []uint32{labelID}, nil)
	require.NoError(t, err)
	wt.AddLabelUpdate(nodeID, labelID, true)
	wt.IncrNodeCount(labelID, 1)

	require.NoError(t, wt.Rollback())

	require.Equal(t, uint64(0), h.cat.NodeCountForLabel(labelID))

	rt, err := h.mgr.BeginRead()
	require.NoError(t, err)
	defer rt.Close()
	_, err = h.store.ReadNode(rt, nodeID)
	require.Error(t, err)
}

func TestUniqueConstraintViolationAbortsCommit(t *testing.T) {
	h := newHarness(t)
	labelID, err := h.cat.InternLabel("Person")
	require.NoError(t, err)
	keyID, err := h.cat.InternKey("email")
	require.NoError(t, err)
	_, err = h.cat.CreateConstraint(catalog.ConstraintUnique, labelID, keyID)
	require.NoError(t, err)

	wt1, err := h.mgr.BeginWrite(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.idx.CreateIndex(wt1.Raw(), labelID, keyID))
	n1, err := h.store.CreateNode(wt1.Raw(), []uint32{labelID}, map[uint32]store.PropValue{keyID: store.StringValue("a@b.com")})
	require.NoError(t, err)
	wt1.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: keyID, NodeID: n1, Value: store.StringValue("a@b.com"), Add: true})
	require.NoError(t, wt1.Commit())

	wt2, err := h.mgr.BeginWrite(context.Background())
	require.NoError(t, err)
	n2, err := h.store.CreateNode(wt2.Raw(), []uint32{labelID}, map[uint32]store.PropValue{keyID: store.StringValue("a@b.com")})
	require.NoError(t, err)
	wt2.AddPropertyUpdate(index.PropertyUpdate{LabelID: labelID, KeyID: keyID, NodeID: n2, Value: store.StringValue("a@b.com"), Add: true})

	err = wt2.Commit()
	require.Error(t, err)
}
