// Package txn is the transaction manager: it serializes write access to
// one environment, accumulates pending index updates and catalog count
// deltas during a transaction's lifetime, and applies both atomically
// with the underlying key-value commit.
package txn

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
)

// Manager ties the record store, catalog, and index manager to one
// environment's write serialization.
type Manager struct {
	env     *kv.Env
	catalog *catalog.Catalog
	index   *index.Manager

	retryTimeout time.Duration
}

// New builds a Manager over an already-open environment, catalog, and
// index manager (all three must share the same env).
func New(env *kv.Env, cat *catalog.Catalog, idx *index.Manager) *Manager {
	return &Manager{env: env, catalog: cat, index: idx, retryTimeout: 5 * time.Second}
}

// WriteTxn is one in-flight write transaction: the underlying KV
// transaction plus the PendingIndexUpdates buffer and catalog count
// deltas accumulated so far. None of this becomes visible until Commit.
type WriteTxn struct {
	mgr *Manager
	wt  *kv.WriteTxn

	pending    []index.Update
	nodeDeltas map[uint32]int64
	relDeltas  map[uint32]int64

	done bool
}

// Raw exposes the underlying kv.WriteTxn for the record store's direct
// CRUD operations (internal/store takes a *kv.WriteTxn, not a
// *txn.WriteTxn, to stay decoupled from the transaction manager).
func (t *WriteTxn) Raw() *kv.WriteTxn { return t.wt }

// BeginWrite acquires the single write transaction slot, retrying on
// LockTimeout with exponential backoff for up to the manager's retry
// timeout (five seconds, set in New), the same way a caller retries against a busy database handle
// under lock contention.
func (m *Manager) BeginWrite(ctx context.Context) (*WriteTxn, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = m.retryTimeout
	bctx := backoff.WithContext(b, ctx)

	var wt *kv.WriteTxn
	err := backoff.Retry(func() error {
		var err error
		wt, err = m.env.BeginWrite()
		if err != nil {
			if graphdberr.Is(err, graphdberr.KindLockTimeout) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		return nil
	}, bctx)
	if err != nil {
		if graphdberr.Is(err, graphdberr.KindLockTimeout) {
			return nil, err
		}
		return nil, graphdberr.Wrap(graphdberr.KindTransaction, "begin write transaction", err)
	}

	return &WriteTxn{
		mgr:        m,
		wt:         wt,
		nodeDeltas: make(map[uint32]int64),
		relDeltas:  make(map[uint32]int64),
	}, nil
}

// BeginRead opens a read snapshot. Reads need no pending-update buffer:
// they mutate nothing.
func (m *Manager) BeginRead() (*kv.ReadTxn, error) {
	return m.env.BeginRead()
}

// AddLabelUpdate buffers a label-index add/remove for this node,
// applied in order at Commit.
func (t *WriteTxn) AddLabelUpdate(nodeID uint64, labelID uint32, add bool) {
	t.pending = append(t.pending, index.Update{Label: &index.LabelUpdate{NodeID: nodeID, LabelID: labelID, Add: add}})
}

// AddTypeUpdate buffers a type-index add/remove for this relationship.
func (t *WriteTxn) AddTypeUpdate(relID uint64, typeID uint32, add bool) {
	t.pending = append(t.pending, index.Update{Type: &index.TypeUpdate{RelID: relID, TypeID: typeID, Add: add}})
}

// AddPropertyUpdate buffers a property-index add/remove; a no-op at
// apply time if no index is declared on (labelID, keyID).
func (t *WriteTxn) AddPropertyUpdate(u index.PropertyUpdate) {
	t.pending = append(t.pending, index.Update{Property: &u})
}

// IncrNodeCount buffers a catalog node-count delta for labelID.
func (t *WriteTxn) IncrNodeCount(labelID uint32, delta int64) {
	t.nodeDeltas[labelID] += delta
}

// IncrRelCount buffers a catalog relationship-count delta for typeID.
func (t *WriteTxn) IncrRelCount(typeID uint32, delta int64) {
	t.relDeltas[typeID] += delta
}

// TakeUpdates returns the accumulated index updates and clears the
// buffer.
func (t *WriteTxn) TakeUpdates() []index.Update {
	updates := t.pending
	t.pending = nil
	return updates
}

// Commit applies pending index updates in batch, applies catalog count
// deltas, then commits the underlying key-value transaction — all three
// atomic with respect to each other. A
// ConstraintViolation from the index batch aborts the whole transaction;
// no partial effects become visible.
func (t *WriteTxn) Commit() error {
	if t.done {
		return graphdberr.New(graphdberr.KindTransaction, "transaction already finished")
	}
	t.done = true

	updates := t.TakeUpdates()
	unique := uniqueConstraintsOf(t.mgr.catalog)

	if err := t.mgr.index.ApplyBatch(t.wt, updates, unique); err != nil {
		_ = t.wt.Abort()
		return err
	}
	if err := t.mgr.catalog.ApplyCountDeltas(t.wt, t.nodeDeltas, t.relDeltas); err != nil {
		_ = t.wt.Abort()
		return err
	}
	return t.wt.Commit()
}

// Rollback discards pending index updates and aborts the underlying KV
// write; no side effects become visible.
func (t *WriteTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.pending = nil
	t.nodeDeltas = nil
	t.relDeltas = nil
	return t.wt.Abort()
}

func uniqueConstraintsOf(cat *catalog.Catalog) []index.UniqueConstraint {
	cons := cat.Constraints()
	out := make([]index.UniqueConstraint, 0, len(cons))
	for _, c := range cons {
		if c.Kind == catalog.ConstraintUnique {
			out = append(out, index.UniqueConstraint{LabelID: c.LabelID, KeyID: c.KeyID})
		}
	}
	return out
}
