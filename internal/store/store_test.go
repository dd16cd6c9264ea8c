package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/kv"
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

func TestCreateAndReadNode(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	id, err := s.CreateNode(wt, []uint32{0, 2}, map[uint32]PropValue{1: StringValue("Ada")})
	require.NoError(t, err)
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	rec, err := s.ReadNode(rt, id)
	require.NoError(t, err)
	require.True(t, rec.InUse)
	require.True(t, rec.HasLabelBit(0))
	require.True(t, rec.HasLabelBit(2))
	require.False(t, rec.HasLabelBit(1))

	props, err := s.LoadNodeProperties(rt, id)
	require.NoError(t, err)
	require.Equal(t, "Ada", props[1].Str)
}

func TestCreateRelationshipSplicesBothChains(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	relID, err := s.CreateRelationship(wt, a, b, 7, map[uint32]PropValue{2: IntValue(42)})
	require.NoError(t, err)
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	out, err := s.WalkAdjacency(rt, a, DirOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, relID, out[0].RelID)
	require.Equal(t, b, out[0].OtherID)
	require.True(t, out[0].Outgoing)

	in, err := s.WalkAdjacency(rt, b, DirIn)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, relID, in[0].RelID)
	require.Equal(t, a, in[0].OtherID)

	props, err := s.LoadRelProperties(rt, relID)
	require.NoError(t, err)
	require.Equal(t, int64(42), props[2].Int)
}

func TestMultipleRelationshipsSpliceAtHead(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	c, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	rel1, err := s.CreateRelationship(wt, a, b, 1, nil)
	require.NoError(t, err)
	rel2, err := s.CreateRelationship(wt, a, c, 1, nil)
	require.NoError(t, err)
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	out, err := s.WalkAdjacency(rt, a, DirOut)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Most recently created splices at the head.
	require.Equal(t, rel2, out[0].RelID)
	require.Equal(t, rel1, out[1].RelID)
}

func TestDeleteRelationshipUnsplices(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	c, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	rel1, err := s.CreateRelationship(wt, a, b, 1, nil)
	require.NoError(t, err)
	rel2, err := s.CreateRelationship(wt, a, c, 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteRelationship(wt, rel2))
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	out, err := s.WalkAdjacency(rt, a, DirOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, rel1, out[0].RelID)
}

func TestDeleteNodeFailsWithIncidentRelationships(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateRelationship(wt, a, b, 1, nil)
	require.NoError(t, err)

	err = s.DeleteNode(wt, a)
	require.Error(t, err)
	require.NoError(t, wt.Abort())
}

func TestSetNodePropertiesReplacesChain(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	id, err := s.CreateNode(wt, nil, map[uint32]PropValue{1: IntValue(1)})
	require.NoError(t, err)
	require.NoError(t, s.SetNodeProperties(wt, id, map[uint32]PropValue{1: IntValue(2), 2: BoolValue(true)}))
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	props, err := s.LoadNodeProperties(rt, id)
	require.NoError(t, err)
	require.Equal(t, int64(2), props[1].Int)
	require.True(t, props[2].Bool)
}

func TestSelfLoopRelationship(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	relID, err := s.CreateRelationship(wt, a, a, 1, nil)
	require.NoError(t, err)
	require.NoError(t, wt.Commit())

	rt, err := env.BeginRead()
	require.NoError(t, err)
	defer rt.Close()

	out, err := s.WalkAdjacency(rt, a, DirOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, relID, out[0].RelID)

	in, err := s.WalkAdjacency(rt, a, DirIn)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, relID, in[0].RelID)
}

func TestWriteNodeRejectsRelationshipOwnedPropertyChain(t *testing.T) {
	env := newTestEnv(t)
	s := New(env)

	wt, err := env.BeginWrite()
	require.NoError(t, err)
	a, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(wt, nil, nil)
	require.NoError(t, err)
	relID, err := s.CreateRelationship(wt, a, b, 1, map[uint32]PropValue{1: IntValue(1)})
	require.NoError(t, err)

	rel, err := s.ReadRel(wt.AsReadTxn(), relID)
	require.NoError(t, err)

	node, err := s.ReadNode(wt.AsReadTxn(), a)
	require.NoError(t, err)
	node.PropPtr, node.HasPropPtr = rel.PropPtr, rel.HasPropPtr

	err = s.WriteNode(wt, a, node)
	require.Error(t, err)
	require.NoError(t, wt.Abort())
}
