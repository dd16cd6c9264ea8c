package index

import (
	"bytes"
	"sync"

	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/store"
)

// Manager owns the label index, the type index, and the set of declared
// B-tree property indexes. In-memory state (the
// registry of which (label,key) pairs have a declared property index) is
// guarded by a RWMutex; CreateIndex and DropIndex mutate it while
// writing the index bucket in the caller's write transaction.
type Manager struct {
	env *kv.Env

	mu              sync.RWMutex
	propertyIndexes map[[2]uint32]bool
}

// Open loads the declared-index registry from env.
func Open(env *kv.Env) (*Manager, error) {
	m := &Manager{env: env, propertyIndexes: make(map[[2]uint32]bool)}
	rt, err := env.BeginRead()
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	b, err := rt.Db(kv.TableIndexRegistry)
	if err != nil {
		return nil, err
	}
	err = b.ForEach(func(key, value []byte) error {
		labelID := kv.DecodeU32(key[0:4])
		keyID := kv.DecodeU32(key[4:8])
		m.propertyIndexes[[2]uint32{labelID, keyID}] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func registryKey(labelID, keyID uint32) []byte {
	return append(kv.EncodeU32(labelID), kv.EncodeU32(keyID)...)
}

// HasPropertyIndex reports whether a B-tree property index is declared
// on (labelID, keyID); the planner uses this to decide access paths.
func (m *Manager) HasPropertyIndex(labelID, keyID uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.propertyIndexes[[2]uint32{labelID, keyID}]
}

// CreateIndex declares a new B-tree property index on (labelID, keyID).
// It is idempotent: declaring the same index twice is a no-op.
func (m *Manager) CreateIndex(wt *kv.WriteTxn, labelID, keyID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := [2]uint32{labelID, keyID}
	if m.propertyIndexes[pair] {
		return nil
	}

	if _, err := wt.CreateDB(kv.PropertyIndexTable(labelID, keyID)); err != nil {
		return err
	}
	registry, err := wt.Db(kv.TableIndexRegistry)
	if err != nil {
		return err
	}
	if err := registry.Put(registryKey(labelID, keyID), []byte{1}); err != nil {
		return err
	}

	m.propertyIndexes[pair] = true
	return nil
}

// DropIndex removes a declared B-tree property index. Returns false if no
// such index exists.
func (m *Manager) DropIndex(wt *kv.WriteTxn, labelID, keyID uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := [2]uint32{labelID, keyID}
	if !m.propertyIndexes[pair] {
		return false, nil
	}

	if err := wt.DeleteDB(kv.PropertyIndexTable(labelID, keyID)); err != nil {
		return false, err
	}
	registry, err := wt.Db(kv.TableIndexRegistry)
	if err != nil {
		return false, err
	}
	if err := registry.Delete(registryKey(labelID, keyID)); err != nil {
		return false, err
	}

	delete(m.propertyIndexes, pair)
	return true, nil
}

// DeclaredIndexes lists every (labelID, keyID) pair with a property index.
func (m *Manager) DeclaredIndexes() [][2]uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][2]uint32, 0, len(m.propertyIndexes))
	for pair := range m.propertyIndexes {
		out = append(out, pair)
	}
	return out
}

func labelIndexKey(labelID uint32, nodeID uint64) []byte {
	return append(kv.EncodeU32(labelID), kv.EncodeID(nodeID)...)
}

func typeIndexKey(typeID uint32, relID uint64) []byte {
	return append(kv.EncodeU32(typeID), kv.EncodeID(relID)...)
}

// NodesForLabel returns every node id currently in the label index for
// labelID, in ascending order.
func (m *Manager) NodesForLabel(rt *kv.ReadTxn, labelID uint32) ([]uint64, error) {
	b, err := rt.Db(kv.TableLabelIndex)
	if err != nil {
		return nil, err
	}
	prefix := kv.EncodeU32(labelID)
	var out []uint64
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		out = append(out, kv.DecodeID(k[4:]))
	}
	return out, nil
}

// RelsForType returns every relationship id currently in the type index
// for typeID, in ascending order.
func (m *Manager) RelsForType(rt *kv.ReadTxn, typeID uint32) ([]uint64, error) {
	b, err := rt.Db(kv.TableTypeIndex)
	if err != nil {
		return nil, err
	}
	prefix := kv.EncodeU32(typeID)
	var out []uint64
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		out = append(out, kv.DecodeID(k[4:]))
	}
	return out, nil
}

// FindExact returns every node id whose (labelID, keyID) property index
// entry equals value.
func (m *Manager) FindExact(rt *kv.ReadTxn, labelID, keyID uint32, value store.PropValue) ([]uint64, error) {
	if !m.HasPropertyIndex(labelID, keyID) {
		return nil, graphdberr.New(graphdberr.KindIndex, "no property index declared on label %d key %d", labelID, keyID)
	}
	b, err := rt.Db(kv.PropertyIndexTable(labelID, keyID))
	if err != nil {
		return nil, err
	}
	prefix := EncodeValueOnly(value)
	var out []uint64
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		out = append(out, DecodeNodeIDFromKey(k))
	}
	return out, nil
}

// FindRange returns every node id whose (labelID, keyID) property index
// value falls within [min, max] inclusive, ordered by value then node id.
func (m *Manager) FindRange(rt *kv.ReadTxn, labelID, keyID uint32, min, max store.PropValue) ([]uint64, error) {
	if !m.HasPropertyIndex(labelID, keyID) {
		return nil, graphdberr.New(graphdberr.KindIndex, "no property index declared on label %d key %d", labelID, keyID)
	}
	b, err := rt.Db(kv.PropertyIndexTable(labelID, keyID))
	if err != nil {
		return nil, err
	}
	lo := EncodeValueOnly(min)
	hi := EncodeValueOnly(max)
	var out []uint64
	c := b.Cursor()
	for k, _ := c.Seek(lo); k != nil; k, _ = c.Next() {
		valuePart := k[:len(k)-8]
		if bytes.Compare(valuePart, hi) > 0 {
			break
		}
		out = append(out, DecodeNodeIDFromKey(k))
	}
	return out, nil
}
