package store

import (
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/kv"
)

// Store is the fixed-size binary record store for nodes, relationships,
// and their property chains. It operates entirely
// within caller-supplied transactions; it allocates no locks of its own
// (the environment's single-writer guarantee and internal/txn's
// serialization are what make concurrent use safe).
type Store struct {
	env *kv.Env
}

// New wraps env. The caller is responsible for having created
// kv.TableNodes, kv.TableRelationships, and kv.TableProperties.
func New(env *kv.Env) *Store {
	return &Store{env: env}
}

// Direction selects which adjacency chain a traversal follows.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

// AdjacencyEntry is one relationship visited while walking a node's
// adjacency chain.
type AdjacencyEntry struct {
	RelID    uint64
	OtherID  uint64
	TypeID   uint32
	Outgoing bool
}

// CreateNode allocates a new node record with the given inline label
// bitmap and property set, returning its id. Properties are stored as a
// freshly allocated chain; labels beyond the inline bitmap are the
// caller's responsibility to additionally index (internal/index owns
// the label index; record bitmap only fast-paths label membership
// checks during traversal).
func (s *Store) CreateNode(wt *kv.WriteTxn, labelIDs []uint32, properties map[uint32]PropValue) (uint64, error) {
	nodesBucket, err := wt.Db(kv.TableNodes)
	if err != nil {
		return 0, err
	}
	id, err := nodesBucket.NextSequence()
	if err != nil {
		return 0, err
	}

	rec := &NodeRecord{InUse: true}
	for _, labelID := range labelIDs {
		rec.SetLabelBit(labelID, true)
	}
	if len(properties) > 0 {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return 0, err
		}
		head, err := allocatePropertyChain(propsBucket, OwnerNode, properties)
		if err != nil {
			return 0, err
		}
		rec.PropPtr, rec.HasPropPtr = head, true
	}

	if err := nodesBucket.Put(kv.EncodeID(id), rec.encode()); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateRelationship creates a new relationship between two existing
// nodes and splices it at the head of both endpoints' adjacency chains.
// Fails with NotFound if either endpoint is absent.
// Existing property-chain pointers on both endpoints are left untouched.
func (s *Store) CreateRelationship(wt *kv.WriteTxn, srcID, dstID uint64, typeID uint32, properties map[uint32]PropValue) (uint64, error) {
	nodesBucket, err := wt.Db(kv.TableNodes)
	if err != nil {
		return 0, err
	}
	srcRaw := nodesBucket.Get(kv.EncodeID(srcID))
	if srcRaw == nil {
		return 0, graphdberr.New(graphdberr.KindNotFound, "source node %d does not exist", srcID)
	}
	dstRaw := nodesBucket.Get(kv.EncodeID(dstID))
	if dstRaw == nil {
		return 0, graphdberr.New(graphdberr.KindNotFound, "target node %d does not exist", dstID)
	}
	srcRec := decodeNodeRecord(srcRaw)
	dstRec := decodeNodeRecord(dstRaw)

	relsBucket, err := wt.Db(kv.TableRelationships)
	if err != nil {
		return 0, err
	}
	relID, err := relsBucket.NextSequence()
	if err != nil {
		return 0, err
	}

	rel := &RelRecord{InUse: true, Src: srcID, Dst: dstID, TypeID: typeID}

	// Splice into the head of src's outgoing chain.
	if srcRec.HasOutRel {
		headRaw := relsBucket.Get(kv.EncodeID(srcRec.FirstOutRel))
		if headRaw == nil {
			return 0, graphdberr.New(graphdberr.KindIndexConsistency, "source adjacency head %d missing", srcRec.FirstOutRel)
		}
		headRec := decodeRelRecord(headRaw)
		rel.SrcNext, rel.HasSrcNext = srcRec.FirstOutRel, true
		if headRec.Src == srcID {
			headRec.SrcPrev, headRec.HasSrcPrev = relID, true
		} else {
			headRec.DstPrev, headRec.HasDstPrev = relID, true
		}
		if err := relsBucket.Put(kv.EncodeID(srcRec.FirstOutRel), headRec.encode()); err != nil {
			return 0, err
		}
	}
	srcRec.FirstOutRel, srcRec.HasOutRel = relID, true

	// Splice into the head of dst's incoming chain. If src == dst, the
	// node-local state we mutate for the target side must be srcRec
	// (already updated above) rather than a stale copy of dstRec.
	effectiveDst := dstRec
	if srcID == dstID {
		effectiveDst = srcRec
	}
	if effectiveDst.HasInRel {
		headRaw := relsBucket.Get(kv.EncodeID(effectiveDst.FirstInRel))
		if headRaw == nil {
			return 0, graphdberr.New(graphdberr.KindIndexConsistency, "target adjacency head %d missing", effectiveDst.FirstInRel)
		}
		headRec := decodeRelRecord(headRaw)
		rel.DstNext, rel.HasDstNext = effectiveDst.FirstInRel, true
		if headRec.Dst == dstID {
			headRec.DstPrev, headRec.HasDstPrev = relID, true
		} else {
			headRec.SrcPrev, headRec.HasSrcPrev = relID, true
		}
		if err := relsBucket.Put(kv.EncodeID(effectiveDst.FirstInRel), headRec.encode()); err != nil {
			return 0, err
		}
	}
	effectiveDst.FirstInRel, effectiveDst.HasInRel = relID, true
	if srcID == dstID {
		srcRec = effectiveDst
	} else {
		dstRec = effectiveDst
	}

	if len(properties) > 0 {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return 0, err
		}
		head, err := allocatePropertyChain(propsBucket, OwnerRelationship, properties)
		if err != nil {
			return 0, err
		}
		rel.PropPtr, rel.HasPropPtr = head, true
	}

	if err := relsBucket.Put(kv.EncodeID(relID), rel.encode()); err != nil {
		return 0, err
	}
	if err := nodesBucket.Put(kv.EncodeID(srcID), srcRec.encode()); err != nil {
		return 0, err
	}
	if srcID != dstID {
		if err := nodesBucket.Put(kv.EncodeID(dstID), dstRec.encode()); err != nil {
			return 0, err
		}
	}
	return relID, nil
}

// ReadNode returns the node record for id, or NotFound if absent or not
// in use.
func (s *Store) ReadNode(rt *kv.ReadTxn, id uint64) (*NodeRecord, error) {
	b, err := rt.Db(kv.TableNodes)
	if err != nil {
		return nil, err
	}
	raw := b.Get(kv.EncodeID(id))
	if raw == nil {
		return nil, graphdberr.New(graphdberr.KindNotFound, "node %d does not exist", id)
	}
	rec := decodeNodeRecord(raw)
	if !rec.InUse {
		return nil, graphdberr.New(graphdberr.KindNotFound, "node %d does not exist", id)
	}
	return rec, nil
}

// ReadRel returns the relationship record for id, or NotFound if absent
// or not in use.
func (s *Store) ReadRel(rt *kv.ReadTxn, id uint64) (*RelRecord, error) {
	b, err := rt.Db(kv.TableRelationships)
	if err != nil {
		return nil, err
	}
	raw := b.Get(kv.EncodeID(id))
	if raw == nil {
		return nil, graphdberr.New(graphdberr.KindNotFound, "relationship %d does not exist", id)
	}
	rec := decodeRelRecord(raw)
	if !rec.InUse {
		return nil, graphdberr.New(graphdberr.KindNotFound, "relationship %d does not exist", id)
	}
	return rec, nil
}

// WriteNode persists rec at id. Rejects a prop_ptr that does not
// originate from a node-owned chain allocation (callers must route
// through SetNodeProperties rather than forging a pointer).
func (s *Store) WriteNode(wt *kv.WriteTxn, id uint64, rec *NodeRecord) error {
	b, err := wt.Db(kv.TableNodes)
	if err != nil {
		return err
	}
	if rec.HasPropPtr {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return err
		}
		if err := checkPropertyChainOwner(propsBucket, rec.PropPtr, OwnerNode); err != nil {
			return err
		}
	}
	return b.Put(kv.EncodeID(id), rec.encode())
}

// WriteRel persists rec at id. Rejects a prop_ptr that does not
// originate from a relationship-owned chain allocation, mirroring
// WriteNode's guard.
func (s *Store) WriteRel(wt *kv.WriteTxn, id uint64, rec *RelRecord) error {
	b, err := wt.Db(kv.TableRelationships)
	if err != nil {
		return err
	}
	if rec.HasPropPtr {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return err
		}
		if err := checkPropertyChainOwner(propsBucket, rec.PropPtr, OwnerRelationship); err != nil {
			return err
		}
	}
	return b.Put(kv.EncodeID(id), rec.encode())
}

// DeleteNode removes a node's record and frees its property chain. Fails
// with ConstraintViolation if the node still has adjacent relationships;
// callers wanting DETACH DELETE semantics must remove those first.
func (s *Store) DeleteNode(wt *kv.WriteTxn, id uint64) error {
	nodesBucket, err := wt.Db(kv.TableNodes)
	if err != nil {
		return err
	}
	raw := nodesBucket.Get(kv.EncodeID(id))
	if raw == nil {
		return graphdberr.New(graphdberr.KindNotFound, "node %d does not exist", id)
	}
	rec := decodeNodeRecord(raw)
	if rec.HasOutRel || rec.HasInRel {
		return graphdberr.New(graphdberr.KindConstraintViolation, "node %d still has relationships", id)
	}
	if rec.HasPropPtr {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return err
		}
		if err := freePropertyChain(propsBucket, rec.PropPtr); err != nil {
			return err
		}
	}
	return nodesBucket.Delete(kv.EncodeID(id))
}

// DeleteRelationship unsplices id from both adjacency chains and frees
// its property chain.
func (s *Store) DeleteRelationship(wt *kv.WriteTxn, id uint64) error {
	relsBucket, err := wt.Db(kv.TableRelationships)
	if err != nil {
		return err
	}
	raw := relsBucket.Get(kv.EncodeID(id))
	if raw == nil {
		return graphdberr.New(graphdberr.KindNotFound, "relationship %d does not exist", id)
	}
	rel := decodeRelRecord(raw)

	nodesBucket, err := wt.Db(kv.TableNodes)
	if err != nil {
		return err
	}

	if err := s.unspliceSide(relsBucket, nodesBucket, id, rel, true); err != nil {
		return err
	}
	if err := s.unspliceSide(relsBucket, nodesBucket, id, rel, false); err != nil {
		return err
	}

	if rel.HasPropPtr {
		propsBucket, err := wt.Db(kv.TableProperties)
		if err != nil {
			return err
		}
		if err := freePropertyChain(propsBucket, rel.PropPtr); err != nil {
			return err
		}
	}
	return relsBucket.Delete(kv.EncodeID(id))
}

// unspliceSide removes id from the source-side chain (srcSide=true) or
// the target-side chain (srcSide=false), fixing up the predecessor's next
// link, the successor's prev link, and the owning node's chain head if id
// was at the head.
func (s *Store) unspliceSide(relsBucket, nodesBucket *kv.Bucket, id uint64, rel *RelRecord, srcSide bool) error {
	var prev, next uint64
	var hasPrev, hasNext bool
	var ownerID uint64

	if srcSide {
		prev, hasPrev = rel.SrcPrev, rel.HasSrcPrev
		next, hasNext = rel.SrcNext, rel.HasSrcNext
		ownerID = rel.Src
	} else {
		prev, hasPrev = rel.DstPrev, rel.HasDstPrev
		next, hasNext = rel.DstNext, rel.HasDstNext
		ownerID = rel.Dst
	}

	if hasPrev {
		predRaw := relsBucket.Get(kv.EncodeID(prev))
		if predRaw == nil {
			return graphdberr.New(graphdberr.KindIndexConsistency, "predecessor %d missing", prev)
		}
		pred := decodeRelRecord(predRaw)
		if pred.Src == ownerID {
			pred.SrcNext, pred.HasSrcNext = next, hasNext
		} else {
			pred.DstNext, pred.HasDstNext = next, hasNext
		}
		if err := relsBucket.Put(kv.EncodeID(prev), pred.encode()); err != nil {
			return err
		}
	} else {
		// id was the chain head for ownerID; repoint the node record.
		ownerRaw := nodesBucket.Get(kv.EncodeID(ownerID))
		if ownerRaw == nil {
			return graphdberr.New(graphdberr.KindIndexConsistency, "owner node %d missing", ownerID)
		}
		owner := decodeNodeRecord(ownerRaw)
		if srcSide {
			owner.FirstOutRel, owner.HasOutRel = next, hasNext
		} else {
			owner.FirstInRel, owner.HasInRel = next, hasNext
		}
		if err := nodesBucket.Put(kv.EncodeID(ownerID), owner.encode()); err != nil {
			return err
		}
	}

	if hasNext {
		succRaw := relsBucket.Get(kv.EncodeID(next))
		if succRaw == nil {
			return graphdberr.New(graphdberr.KindIndexConsistency, "successor %d missing", next)
		}
		succ := decodeRelRecord(succRaw)
		if succ.Src == ownerID {
			succ.SrcPrev, succ.HasSrcPrev = prev, hasPrev
		} else {
			succ.DstPrev, succ.HasDstPrev = prev, hasPrev
		}
		if err := relsBucket.Put(kv.EncodeID(next), succ.encode()); err != nil {
			return err
		}
	}
	return nil
}

// WalkAdjacency yields every relationship incident to nodeID in the
// requested direction, following the doubly-linked chain from the node's
// head pointer(s) until a zero terminator. Visiting order is innermost
// (most recently created) first, since new edges splice at the head.
func (s *Store) WalkAdjacency(rt *kv.ReadTxn, nodeID uint64, dir Direction) ([]AdjacencyEntry, error) {
	relsBucket, err := rt.Db(kv.TableRelationships)
	if err != nil {
		return nil, err
	}
	nodesBucket, err := rt.Db(kv.TableNodes)
	if err != nil {
		return nil, err
	}
	raw := nodesBucket.Get(kv.EncodeID(nodeID))
	if raw == nil {
		return nil, graphdberr.New(graphdberr.KindNotFound, "node %d does not exist", nodeID)
	}
	rec := decodeNodeRecord(raw)

	var entries []AdjacencyEntry
	if dir == DirOut || dir == DirBoth {
		entries, err = s.walkChain(relsBucket, rec.FirstOutRel, rec.HasOutRel, nodeID, true, entries)
		if err != nil {
			return nil, err
		}
	}
	if dir == DirIn || dir == DirBoth {
		entries, err = s.walkChain(relsBucket, rec.FirstInRel, rec.HasInRel, nodeID, false, entries)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Store) walkChain(relsBucket *kv.Bucket, head uint64, has bool, nodeID uint64, outgoing bool, entries []AdjacencyEntry) ([]AdjacencyEntry, error) {
	cur, curHas := head, has
	for curHas {
		raw := relsBucket.Get(kv.EncodeID(cur))
		if raw == nil {
			return nil, graphdberr.New(graphdberr.KindIndexConsistency, "adjacency chain entry %d missing", cur)
		}
		rel := decodeRelRecord(raw)

		var other uint64
		var next uint64
		var hasNext bool
		if outgoing {
			// cur is on the src side for this node only if nodeID == rel.Src.
			if rel.Src == nodeID {
				other, next, hasNext = rel.Dst, rel.SrcNext, rel.HasSrcNext
			} else {
				other, next, hasNext = rel.Dst, rel.DstNext, rel.HasDstNext
			}
		} else {
			if rel.Dst == nodeID {
				other, next, hasNext = rel.Src, rel.DstNext, rel.HasDstNext
			} else {
				other, next, hasNext = rel.Src, rel.SrcNext, rel.HasSrcNext
			}
		}
		entries = append(entries, AdjacencyEntry{RelID: cur, OtherID: other, TypeID: rel.TypeID, Outgoing: outgoing})
		cur, curHas = next, hasNext
	}
	return entries, nil
}

// AllNodeIDs returns every in-use node id, in key (ascending id) order.
// Backs an unfiltered full scan when no label or property predicate lets
// the planner pick a narrower access path.
func (s *Store) AllNodeIDs(rt *kv.ReadTxn) ([]uint64, error) {
	b, err := rt.Db(kv.TableNodes)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	err = b.ForEach(func(key, value []byte) error {
		if decodeNodeRecord(value).InUse {
			ids = append(ids, kv.DecodeID(key))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadNodeProperties decodes a node's full property map, or nil if it
// has no properties.
func (s *Store) LoadNodeProperties(rt *kv.ReadTxn, id uint64) (map[uint32]PropValue, error) {
	n, err := s.ReadNode(rt, id)
	if err != nil {
		return nil, err
	}
	if !n.HasPropPtr {
		return nil, nil
	}
	b, err := rt.Db(kv.TableProperties)
	if err != nil {
		return nil, err
	}
	return loadPropertyChain(b, n.PropPtr)
}

// LoadRelProperties decodes a relationship's full property map, or nil if
// it has no properties.
func (s *Store) LoadRelProperties(rt *kv.ReadTxn, id uint64) (map[uint32]PropValue, error) {
	r, err := s.ReadRel(rt, id)
	if err != nil {
		return nil, err
	}
	if !r.HasPropPtr {
		return nil, nil
	}
	b, err := rt.Db(kv.TableProperties)
	if err != nil {
		return nil, err
	}
	return loadPropertyChain(b, r.PropPtr)
}

// SetNodeProperties detaches the node's existing property chain (if any)
// and atomically repoints prop_ptr at a freshly allocated chain.
func (s *Store) SetNodeProperties(wt *kv.WriteTxn, id uint64, properties map[uint32]PropValue) error {
	nodesBucket, err := wt.Db(kv.TableNodes)
	if err != nil {
		return err
	}
	raw := nodesBucket.Get(kv.EncodeID(id))
	if raw == nil {
		return graphdberr.New(graphdberr.KindNotFound, "node %d does not exist", id)
	}
	rec := decodeNodeRecord(raw)

	propsBucket, err := wt.Db(kv.TableProperties)
	if err != nil {
		return err
	}
	oldPtr, oldHas := rec.PropPtr, rec.HasPropPtr
	if len(properties) > 0 {
		newHead, err := allocatePropertyChain(propsBucket, OwnerNode, properties)
		if err != nil {
			return err
		}
		rec.PropPtr, rec.HasPropPtr = newHead, true
	} else {
		rec.PropPtr, rec.HasPropPtr = 0, false
	}
	if err := nodesBucket.Put(kv.EncodeID(id), rec.encode()); err != nil {
		return err
	}
	if oldHas {
		return freePropertyChain(propsBucket, oldPtr)
	}
	return nil
}

// SetRelProperties is SetNodeProperties's relationship counterpart.
func (s *Store) SetRelProperties(wt *kv.WriteTxn, id uint64, properties map[uint32]PropValue) error {
	relsBucket, err := wt.Db(kv.TableRelationships)
	if err != nil {
		return err
	}
	raw := relsBucket.Get(kv.EncodeID(id))
	if raw == nil {
		return graphdberr.New(graphdberr.KindNotFound, "relationship %d does not exist", id)
	}
	rec := decodeRelRecord(raw)

	propsBucket, err := wt.Db(kv.TableProperties)
	if err != nil {
		return err
	}
	oldPtr, oldHas := rec.PropPtr, rec.HasPropPtr
	if len(properties) > 0 {
		newHead, err := allocatePropertyChain(propsBucket, OwnerRelationship, properties)
		if err != nil {
			return err
		}
		rec.PropPtr, rec.HasPropPtr = newHead, true
	} else {
		rec.PropPtr, rec.HasPropPtr = 0, false
	}
	if err := relsBucket.Put(kv.EncodeID(id), rec.encode()); err != nil {
		return err
	}
	if oldHas {
		return freePropertyChain(propsBucket, oldPtr)
	}
	return nil
}

// Flush persists all mapped pages.
func (s *Store) Flush() error { return s.env.Flush() }
