package index

import (
	"bytes"

	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/store"
)

// LabelUpdate adds or removes a node from one label's index entry.
type LabelUpdate struct {
	NodeID  uint64
	LabelID uint32
	Add     bool
}

// TypeUpdate adds or removes a relationship from its type's index entry.
type TypeUpdate struct {
	RelID  uint64
	TypeID uint32
	Add    bool
}

// PropertyUpdate adds or removes a (value, nodeID) entry from the
// (labelID, keyID) B-tree property index, if one is declared.
type PropertyUpdate struct {
	LabelID uint32
	KeyID   uint32
	NodeID  uint64
	Value   store.PropValue
	Add     bool
}

// Update is one entry in a transaction's PendingIndexUpdates buffer
// (internal/txn owns accumulation; Manager only applies).
type Update struct {
	Label    *LabelUpdate
	Type     *TypeUpdate
	Property *PropertyUpdate
}

// UniqueConstraint identifies a (label,key) pair enforced as UNIQUE;
// ApplyBatch's caller (internal/txn) supplies the current set so the
// index layer can refuse a batch that would violate it.
type UniqueConstraint struct {
	LabelID uint32
	KeyID   uint32
}

// ApplyBatch applies updates in accumulation order within wt; updates
// become visible together, with no intermediate state. If any PropertyUpdate
// targets a UNIQUE-constrained (label,key) pair and its value is already
// bound to a different node id, the whole batch fails with
// ConstraintViolation and none of it is applied — the caller must have
// begun wt fresh (or be prepared to abort it) since bbolt itself has no
// savepoint to roll back to mid-transaction.
func (m *Manager) ApplyBatch(wt *kv.WriteTxn, updates []Update, unique []UniqueConstraint) error {
	uniqueSet := make(map[[2]uint32]bool, len(unique))
	for _, u := range unique {
		uniqueSet[[2]uint32{u.LabelID, u.KeyID}] = true
	}

	labelBucket, err := wt.Db(kv.TableLabelIndex)
	if err != nil {
		return err
	}
	typeBucket, err := wt.Db(kv.TableTypeIndex)
	if err != nil {
		return err
	}

	for _, u := range updates {
		switch {
		case u.Label != nil:
			if err := applyLabelUpdate(labelBucket, u.Label); err != nil {
				return err
			}
		case u.Type != nil:
			if err := applyTypeUpdate(typeBucket, u.Type); err != nil {
				return err
			}
		case u.Property != nil:
			pair := [2]uint32{u.Property.LabelID, u.Property.KeyID}
			if err := m.applyPropertyUpdate(wt, u.Property, uniqueSet[pair]); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyLabelUpdate(b *kv.Bucket, u *LabelUpdate) error {
	key := labelIndexKey(u.LabelID, u.NodeID)
	if u.Add {
		return b.Put(key, []byte{1})
	}
	return b.Delete(key)
}

func applyTypeUpdate(b *kv.Bucket, u *TypeUpdate) error {
	key := typeIndexKey(u.TypeID, u.RelID)
	if u.Add {
		return b.Put(key, []byte{1})
	}
	return b.Delete(key)
}

func (m *Manager) applyPropertyUpdate(wt *kv.WriteTxn, u *PropertyUpdate, isUnique bool) error {
	if !m.HasPropertyIndex(u.LabelID, u.KeyID) {
		return nil // no declared index: nothing to maintain
	}
	b, err := wt.Db(kv.PropertyIndexTable(u.LabelID, u.KeyID))
	if err != nil {
		return err
	}
	key := EncodePropertyKey(u.Value, u.NodeID)

	if !u.Add {
		return b.Delete(key)
	}

	if isUnique {
		prefix := EncodeValueOnly(u.Value)
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if DecodeNodeIDFromKey(k) != u.NodeID {
				return graphdberr.New(graphdberr.KindConstraintViolation,
					"unique constraint violated on label %d key %d", u.LabelID, u.KeyID)
			}
		}
	}
	return b.Put(key, []byte{1})
}
