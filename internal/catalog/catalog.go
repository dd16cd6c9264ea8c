// Package catalog interns labels, relationship types, and property keys
// into stable 32-bit ids, and owns constraint metadata and count
// statistics.
package catalog

import (
	"sync"

	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/kv"
)

// ConstraintKind is the kind of schema constraint attached to a
// (label, key) pair.
type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota
	ConstraintExists
)

// Constraint is the metadata tracked for one (label, key) schema rule.
type Constraint struct {
	ID       uint64
	Kind     ConstraintKind
	LabelID  uint32
	KeyID    uint32
}

// Statistics is a point-in-time snapshot of catalog counters.
type Statistics struct {
	LabelCount int
	TypeCount  int
	NodeCounts map[uint32]uint64
	RelCounts  map[uint32]uint64
}

// Catalog is the process-wide dictionary service. It caches the committed
// id mappings in memory behind a RWMutex and persists them append-only in
// the environment; InternLabel/InternType/InternKey persist a new name
// in a write transaction of their own, the *In variants inside the
// caller's write transaction.
type Catalog struct {
	env *kv.Env

	mu sync.RWMutex

	labelNameToID map[string]uint32
	labelIDToName map[uint32]string
	typeNameToID  map[string]uint32
	typeIDToName  map[uint32]string
	keyNameToID   map[string]uint32
	keyIDToName   map[uint32]string

	constraints   map[uint64]*Constraint        // constraint id -> constraint
	constraintKey map[[2]uint32]uint64          // (label,key) -> constraint id
	nextConstraintID uint64

	nodeCounts map[uint32]uint64
	relCounts  map[uint32]uint64
}

// Open loads (or initializes) the catalog backed by env. env must already
// have its core tables created (kv.Env.CreateDB for each of kv.CoreTables).
func Open(env *kv.Env) (*Catalog, error) {
	c := &Catalog{
		env:           env,
		labelNameToID: make(map[string]uint32),
		labelIDToName: make(map[uint32]string),
		typeNameToID:  make(map[string]uint32),
		typeIDToName:  make(map[uint32]string),
		keyNameToID:   make(map[string]uint32),
		keyIDToName:   make(map[uint32]string),
		constraints:   make(map[uint64]*Constraint),
		constraintKey: make(map[[2]uint32]uint64),
		nodeCounts:    make(map[uint32]uint64),
		relCounts:     make(map[uint32]uint64),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenIsolated opens an independent environment at path and returns a
// Catalog backed only by it, sharing no state with any other Catalog in
// the process. Used by test harnesses so cross-test data cannot leak
// through a shared in-memory cache.
func OpenIsolated(path string, mapSize int64) (*Catalog, *kv.Env, error) {
	opts := kv.DefaultOptions()
	opts.MapSize = mapSize
	env, err := kv.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range kv.CoreTables {
		if err := env.CreateDB(t); err != nil {
			_ = env.Close()
			return nil, nil, err
		}
	}
	c, err := Open(env)
	if err != nil {
		_ = env.Close()
		return nil, nil, err
	}
	return c, env, nil
}

func (c *Catalog) load() error {
	rt, err := c.env.BeginRead()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := c.loadDict(rt, kv.TableLabelNames, c.labelNameToID, c.labelIDToName); err != nil {
		return err
	}
	if err := c.loadDict(rt, kv.TableTypeNames, c.typeNameToID, c.typeIDToName); err != nil {
		return err
	}
	if err := c.loadDict(rt, kv.TableKeyNames, c.keyNameToID, c.keyIDToName); err != nil {
		return err
	}
	if err := c.loadCounts(rt, kv.TableNodeCounts, c.nodeCounts); err != nil {
		return err
	}
	if err := c.loadCounts(rt, kv.TableRelCounts, c.relCounts); err != nil {
		return err
	}
	return c.loadConstraints(rt)
}

func (c *Catalog) loadDict(rt *kv.ReadTxn, table string, nameToID map[string]uint32, idToName map[uint32]string) error {
	b, err := rt.Db(table)
	if err != nil {
		return err
	}
	return b.ForEach(func(key, value []byte) error {
		id := kv.DecodeU32(key)
		name := string(value)
		nameToID[name] = id
		idToName[id] = name
		return nil
	})
}

func (c *Catalog) loadCounts(rt *kv.ReadTxn, table string, dest map[uint32]uint64) error {
	b, err := rt.Db(table)
	if err != nil {
		return err
	}
	return b.ForEach(func(key, value []byte) error {
		dest[kv.DecodeU32(key)] = decodeU64(value)
		return nil
	})
}

func (c *Catalog) loadConstraints(rt *kv.ReadTxn) error {
	b, err := rt.Db(kv.TableConstraints)
	if err != nil {
		return err
	}
	return b.ForEach(func(key, value []byte) error {
		constraintID := decodeU64(key)
		labelID := kv.DecodeU32(value[0:4])
		keyID := kv.DecodeU32(value[4:8])
		kind := ConstraintKind(value[8])
		con := &Constraint{ID: constraintID, Kind: kind, LabelID: labelID, KeyID: keyID}
		c.constraints[constraintID] = con
		c.constraintKey[[2]uint32{labelID, keyID}] = constraintID
		if constraintID >= c.nextConstraintID {
			c.nextConstraintID = constraintID + 1
		}
		return nil
	})
}

// intern is the shared idempotent-intern routine for labels, types,
// and keys: look up under a read lock, and if absent, allocate under the
// write lock and persist inside its own tiny write transaction.
// Catalog mutations normally ride along inside a record-store write
// transaction (see internal/txn); these standalone variants exist for
// callers (tests, `CREATE INDEX`) that need an id without an in-flight
// graph mutation.
func (c *Catalog) intern(nameToID map[string]uint32, idToName map[uint32]string, table string, name string) (uint32, error) {
	c.mu.RLock()
	if id, ok := nameToID[name]; ok {
		c.mu.RUnlock()
		return id, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := nameToID[name]; ok {
		return id, nil
	}

	wt, err := c.env.BeginWrite()
	if err != nil {
		return 0, err
	}
	b, err := wt.Db(table)
	if err != nil {
		_ = wt.Abort()
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		_ = wt.Abort()
		return 0, err
	}
	id := uint32(seq)
	if err := b.Put(kv.EncodeU32(id), []byte(name)); err != nil {
		_ = wt.Abort()
		return 0, err
	}
	if err := wt.Commit(); err != nil {
		return 0, err
	}

	nameToID[name] = id
	idToName[id] = name
	return id, nil
}

// InternLabel returns the id for name, allocating one if never seen. The
// allocation is persisted (and visible to subsequent lookups) as soon as
// this call returns, in its own standalone transaction — including when
// name was first referenced by a write that itself later rolls back.
// Schema names are never reclaimed.
func (c *Catalog) InternLabel(name string) (uint32, error) {
	return c.intern(c.labelNameToID, c.labelIDToName, kv.TableLabelNames, name)
}

// InternType returns the id for name, allocating one if never seen.
func (c *Catalog) InternType(name string) (uint32, error) {
	return c.intern(c.typeNameToID, c.typeIDToName, kv.TableTypeNames, name)
}

// InternKey returns the id for name, allocating one if never seen.
func (c *Catalog) InternKey(name string) (uint32, error) {
	return c.intern(c.keyNameToID, c.keyIDToName, kv.TableKeyNames, name)
}

// internIn is intern's counterpart for a caller that already holds the
// environment's one live write transaction: it allocates into wt
// directly instead of opening a second one, which bbolt cannot grant
// while the first is still open on the same goroutine.
func (c *Catalog) internIn(wt *kv.WriteTxn, nameToID map[string]uint32, idToName map[uint32]string, table string, name string) (uint32, error) {
	c.mu.RLock()
	if id, ok := nameToID[name]; ok {
		c.mu.RUnlock()
		return id, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := nameToID[name]; ok {
		return id, nil
	}

	b, err := wt.Db(table)
	if err != nil {
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	id := uint32(seq)
	if err := b.Put(kv.EncodeU32(id), []byte(name)); err != nil {
		return 0, err
	}

	nameToID[name] = id
	idToName[id] = name
	return id, nil
}

// InternLabelIn is InternLabel, riding along inside wt instead of
// opening its own transaction.
func (c *Catalog) InternLabelIn(wt *kv.WriteTxn, name string) (uint32, error) {
	return c.internIn(wt, c.labelNameToID, c.labelIDToName, kv.TableLabelNames, name)
}

// InternTypeIn is InternType, riding along inside wt.
func (c *Catalog) InternTypeIn(wt *kv.WriteTxn, name string) (uint32, error) {
	return c.internIn(wt, c.typeNameToID, c.typeIDToName, kv.TableTypeNames, name)
}

// InternKeyIn is InternKey, riding along inside wt.
func (c *Catalog) InternKeyIn(wt *kv.WriteTxn, name string) (uint32, error) {
	return c.internIn(wt, c.keyNameToID, c.keyIDToName, kv.TableKeyNames, name)
}

// LookupLabelID returns the id for a previously interned label name.
func (c *Catalog) LookupLabelID(name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.labelNameToID[name]
	return id, ok
}

// LookupLabelName returns the name for a label id.
func (c *Catalog) LookupLabelName(id uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.labelIDToName[id]
	return name, ok
}

// LookupTypeID returns the id for a previously interned relationship type.
func (c *Catalog) LookupTypeID(name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.typeNameToID[name]
	return id, ok
}

// LookupTypeName returns the name for a relationship type id.
func (c *Catalog) LookupTypeName(id uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.typeIDToName[id]
	return name, ok
}

// LookupKeyID returns the id for a previously interned property key.
func (c *Catalog) LookupKeyID(name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.keyNameToID[name]
	return id, ok
}

// LookupKeyName returns the name for a property key id.
func (c *Catalog) LookupKeyName(id uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.keyIDToName[id]
	return name, ok
}

// ListLabels returns every interned (id, name) label pair.
func (c *Catalog) ListLabels() []IDName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return toIDNames(c.labelIDToName)
}

// ListTypes returns every interned (id, name) relationship type pair.
func (c *Catalog) ListTypes() []IDName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return toIDNames(c.typeIDToName)
}

// ListAllKeys returns every interned (id, name) property key pair.
func (c *Catalog) ListAllKeys() []IDName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return toIDNames(c.keyIDToName)
}

// IDName is a catalog entry pair, used by the public listing operations.
type IDName struct {
	ID   uint32
	Name string
}

func toIDNames(m map[uint32]string) []IDName {
	out := make([]IDName, 0, len(m))
	for id, name := range m {
		out = append(out, IDName{ID: id, Name: name})
	}
	return out
}

// GetStatistics returns a snapshot of label/type counts.
func (c *Catalog) GetStatistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nodeCounts := make(map[uint32]uint64, len(c.nodeCounts))
	for k, v := range c.nodeCounts {
		nodeCounts[k] = v
	}
	relCounts := make(map[uint32]uint64, len(c.relCounts))
	for k, v := range c.relCounts {
		relCounts[k] = v
	}
	return Statistics{
		LabelCount: len(c.labelIDToName),
		TypeCount:  len(c.typeIDToName),
		NodeCounts: nodeCounts,
		RelCounts:  relCounts,
	}
}

// NodeCountForLabel returns the incrementally maintained node count for a
// label id.
func (c *Catalog) NodeCountForLabel(labelID uint32) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeCounts[labelID]
}

// RelCountForType returns the incrementally maintained relationship count
// for a type id.
func (c *Catalog) RelCountForType(typeID uint32) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relCounts[typeID]
}

// ApplyCountDeltas is invoked by the transaction manager inside the same
// write transaction that mutates the record store, so statistics counters
// move in lockstep with the data they describe.
func (c *Catalog) ApplyCountDeltas(wt *kv.WriteTxn, nodeDeltas, relDeltas map[uint32]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := applyDeltas(wt, kv.TableNodeCounts, c.nodeCounts, nodeDeltas); err != nil {
		return err
	}
	return applyDeltas(wt, kv.TableRelCounts, c.relCounts, relDeltas)
}

func applyDeltas(wt *kv.WriteTxn, table string, cache map[uint32]uint64, deltas map[uint32]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	b, err := wt.Db(table)
	if err != nil {
		return err
	}
	for id, delta := range deltas {
		cur := int64(cache[id]) + delta
		if cur < 0 {
			cur = 0
		}
		cache[id] = uint64(cur)
		if err := b.Put(kv.EncodeU32(id), encodeU64(uint64(cur))); err != nil {
			return err
		}
	}
	return nil
}

// CreateConstraint registers a new UNIQUE or EXISTS constraint on
// (labelID, keyID). Fails if any constraint, of either kind, already
// exists on that pair.
func (c *Catalog) CreateConstraint(kind ConstraintKind, labelID, keyID uint32) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pairKey := [2]uint32{labelID, keyID}
	if existingID, ok := c.constraintKey[pairKey]; ok {
		existing := c.constraints[existingID]
		return 0, graphdberr.New(graphdberr.KindCypherExecution,
			"constraint already exists on label %d key %d (kind %d)", labelID, keyID, existing.Kind)
	}

	id := c.nextConstraintID
	wt, err := c.env.BeginWrite()
	if err != nil {
		return 0, err
	}
	b, err := wt.Db(kv.TableConstraints)
	if err != nil {
		_ = wt.Abort()
		return 0, err
	}
	value := make([]byte, 9)
	copy(value[0:4], kv.EncodeU32(labelID))
	copy(value[4:8], kv.EncodeU32(keyID))
	value[8] = byte(kind)
	if err := b.Put(encodeU64Key(id), value); err != nil {
		_ = wt.Abort()
		return 0, err
	}
	if err := wt.Commit(); err != nil {
		return 0, err
	}

	c.nextConstraintID++
	con := &Constraint{ID: id, Kind: kind, LabelID: labelID, KeyID: keyID}
	c.constraints[id] = con
	c.constraintKey[pairKey] = id
	return id, nil
}

// DropConstraint removes the constraint on (labelID, keyID), if any.
// Returns false if no such constraint exists, and fails if a constraint on
// that pair exists with a different kind than requested.
func (c *Catalog) DropConstraint(kind ConstraintKind, labelID, keyID uint32) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pairKey := [2]uint32{labelID, keyID}
	id, ok := c.constraintKey[pairKey]
	if !ok {
		return false, nil
	}
	existing := c.constraints[id]
	if existing.Kind != kind {
		return false, graphdberr.New(graphdberr.KindCypherExecution,
			"constraint on label %d key %d has kind %d, not %d", labelID, keyID, existing.Kind, kind)
	}

	wt, err := c.env.BeginWrite()
	if err != nil {
		return false, err
	}
	b, err := wt.Db(kv.TableConstraints)
	if err != nil {
		_ = wt.Abort()
		return false, err
	}
	if err := b.Delete(encodeU64Key(id)); err != nil {
		_ = wt.Abort()
		return false, err
	}
	if err := wt.Commit(); err != nil {
		return false, err
	}

	delete(c.constraints, id)
	delete(c.constraintKey, pairKey)
	return true, nil
}

// Constraints returns every registered constraint, for planner and
// commit-time UNIQUE enforcement.
func (c *Catalog) Constraints() []*Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Constraint, 0, len(c.constraints))
	for _, con := range c.constraints {
		out = append(out, con)
	}
	return out
}

// ConstraintFor returns the constraint registered on (labelID, keyID), if
// any.
func (c *Catalog) ConstraintFor(labelID, keyID uint32) (*Constraint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.constraintKey[[2]uint32{labelID, keyID}]
	if !ok {
		return nil, false
	}
	return c.constraints[id], true
}
