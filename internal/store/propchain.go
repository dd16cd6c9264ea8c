package store

import (
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/kv"
)

// allocatePropertyChain writes one propBlock per key into the properties
// bucket and returns the id of the chain's head block. Keys are already
// interned 32-bit ids (catalog.InternKey); the store itself never
// resolves names, keeping it decoupled from the catalog. owner is
// stamped onto every block so a later write_node/write_rel call can
// reject a pointer that crossed from one entity kind to the other.
func allocatePropertyChain(propsBucket *kv.Bucket, owner OwnerKind, properties map[uint32]PropValue) (uint64, error) {
	var head uint64
	var hasHead bool
	for keyID, val := range properties {
		id, err := propsBucket.NextSequence()
		if err != nil {
			return 0, err
		}
		block := &propBlock{KeyID: keyID, Value: EncodeValue(val), Next: head, HasNext: hasHead, Owner: owner}
		if err := propsBucket.Put(kv.EncodeID(id), block.encode()); err != nil {
			return 0, err
		}
		head, hasHead = id, true
	}
	return head, nil
}

// checkPropertyChainOwner verifies that head's block was allocated for
// want, rejecting a write that would attach one entity kind's node/rel
// record to the other kind's property chain.
func checkPropertyChainOwner(propsBucket *kv.Bucket, head uint64, want OwnerKind) error {
	raw := propsBucket.Get(kv.EncodeID(head))
	if raw == nil {
		return graphdberr.New(graphdberr.KindIndexConsistency, "property chain block %d missing", head)
	}
	block := decodePropBlock(raw)
	if block.Owner != want {
		return graphdberr.New(graphdberr.KindInvalidInput, "property chain %d is not owned by a %v", head, want)
	}
	return nil
}

// freePropertyChain deletes every block reachable from head.
func freePropertyChain(propsBucket *kv.Bucket, head uint64) error {
	cur, has := head, true
	for has {
		raw := propsBucket.Get(kv.EncodeID(cur))
		if raw == nil {
			return graphdberr.New(graphdberr.KindIndexConsistency, "property chain block %d missing", cur)
		}
		block := decodePropBlock(raw)
		if err := propsBucket.Delete(kv.EncodeID(cur)); err != nil {
			return err
		}
		cur, has = block.Next, block.HasNext
	}
	return nil
}

// loadPropertyChain decodes every block in the chain starting at head
// into a key-id-keyed map. Callers that need names (the executor, the
// CLI) resolve through the catalog separately.
func loadPropertyChain(propsBucket *kv.Bucket, head uint64) (map[uint32]PropValue, error) {
	out := make(map[uint32]PropValue)
	cur, has := head, true
	for has {
		raw := propsBucket.Get(kv.EncodeID(cur))
		if raw == nil {
			return nil, graphdberr.New(graphdberr.KindIndexConsistency, "property chain block %d missing", cur)
		}
		block := decodePropBlock(raw)
		val, err := DecodeValue(block.Value)
		if err != nil {
			return nil, err
		}
		out[block.KeyID] = val
		cur, has = block.Next, block.HasNext
	}
	return out, nil
}
