// Package store implements the record store: fixed-size binary node and
// relationship records, property chains, and adjacency-chain traversal.
package store

import "encoding/binary"

// Pointer fields use 0 as the sentinel for "absent"; every real id is
// stored as id+1 so a zero-value record slot never collides with id 0.

const nullPtr = 0

func encodePtr(id uint64, present bool) uint64 {
	if !present {
		return nullPtr
	}
	return id + 1
}

func decodePtr(raw uint64) (id uint64, present bool) {
	if raw == nullPtr {
		return 0, false
	}
	return raw - 1, true
}

// NodeRecord is the in-memory form of a node's fixed-size on-disk record.
// LabelBitsLo/Hi together form a 128-bit inline label bitmap; labels
// beyond bit 127 are tracked only via the label index.
type NodeRecord struct {
	InUse       bool
	LabelBitsLo uint64
	LabelBitsHi uint64
	FirstOutRel uint64
	HasOutRel   bool
	FirstInRel  uint64
	HasInRel    bool
	PropPtr     uint64
	HasPropPtr  bool
}

// HasLabelBit reports whether inline bit i (0-127) is set.
func (n *NodeRecord) HasLabelBit(i uint32) bool {
	if i < 64 {
		return n.LabelBitsLo&(uint64(1)<<i) != 0
	}
	if i < 128 {
		return n.LabelBitsHi&(uint64(1)<<(i-64)) != 0
	}
	return false
}

// SetLabelBit sets or clears inline bit i (0-127); ids beyond 127 are a
// no-op here and rely entirely on the label index.
func (n *NodeRecord) SetLabelBit(i uint32, on bool) {
	switch {
	case i < 64:
		if on {
			n.LabelBitsLo |= uint64(1) << i
		} else {
			n.LabelBitsLo &^= uint64(1) << i
		}
	case i < 128:
		shift := i - 64
		if on {
			n.LabelBitsHi |= uint64(1) << shift
		} else {
			n.LabelBitsHi &^= uint64(1) << shift
		}
	}
}

// nodeRecordSize is the encoded byte length of one NodeRecord:
// in_use(1) + label_bits(16) + first_out(8) + first_in(8) + prop_ptr(8).
const nodeRecordSize = 1 + 16 + 8 + 8 + 8

func (n *NodeRecord) encode() []byte {
	buf := make([]byte, nodeRecordSize)
	if n.InUse {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:9], n.LabelBitsLo)
	binary.BigEndian.PutUint64(buf[9:17], n.LabelBitsHi)
	binary.BigEndian.PutUint64(buf[17:25], encodePtr(n.FirstOutRel, n.HasOutRel))
	binary.BigEndian.PutUint64(buf[25:33], encodePtr(n.FirstInRel, n.HasInRel))
	binary.BigEndian.PutUint64(buf[33:41], encodePtr(n.PropPtr, n.HasPropPtr))
	return buf
}

func decodeNodeRecord(buf []byte) *NodeRecord {
	n := &NodeRecord{
		InUse:       buf[0] == 1,
		LabelBitsLo: binary.BigEndian.Uint64(buf[1:9]),
		LabelBitsHi: binary.BigEndian.Uint64(buf[9:17]),
	}
	n.FirstOutRel, n.HasOutRel = decodePtr(binary.BigEndian.Uint64(buf[17:25]))
	n.FirstInRel, n.HasInRel = decodePtr(binary.BigEndian.Uint64(buf[25:33]))
	n.PropPtr, n.HasPropPtr = decodePtr(binary.BigEndian.Uint64(buf[33:41]))
	return n
}

// RelRecord is the in-memory form of a relationship's fixed-size on-disk
// record.
type RelRecord struct {
	InUse    bool
	Src      uint64
	Dst      uint64
	TypeID   uint32

	SrcPrev    uint64
	HasSrcPrev bool
	SrcNext    uint64
	HasSrcNext bool
	DstPrev    uint64
	HasDstPrev bool
	DstNext    uint64
	HasDstNext bool

	PropPtr    uint64
	HasPropPtr bool
}

// relRecordSize: in_use(1) + src(8) + dst(8) + type(4) + 4 links(8 each) + prop_ptr(8).
const relRecordSize = 1 + 8 + 8 + 4 + 8*4 + 8

func (r *RelRecord) encode() []byte {
	buf := make([]byte, relRecordSize)
	off := 0
	if r.InUse {
		buf[0] = 1
	}
	off = 1
	binary.BigEndian.PutUint64(buf[off:off+8], r.Src)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.Dst)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], r.TypeID)
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], encodePtr(r.SrcPrev, r.HasSrcPrev))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], encodePtr(r.SrcNext, r.HasSrcNext))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], encodePtr(r.DstPrev, r.HasDstPrev))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], encodePtr(r.DstNext, r.HasDstNext))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], encodePtr(r.PropPtr, r.HasPropPtr))
	return buf
}

func decodeRelRecord(buf []byte) *RelRecord {
	r := &RelRecord{}
	off := 0
	r.InUse = buf[0] == 1
	off = 1
	r.Src = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.Dst = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.TypeID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	r.SrcPrev, r.HasSrcPrev = decodePtr(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.SrcNext, r.HasSrcNext = decodePtr(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.DstPrev, r.HasDstPrev = decodePtr(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.DstNext, r.HasDstNext = decodePtr(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.PropPtr, r.HasPropPtr = decodePtr(binary.BigEndian.Uint64(buf[off : off+8]))
	return r
}

// OwnerKind distinguishes which entity type owns a property chain, so a
// write can reject a pointer crossing from one kind to the other.
type OwnerKind byte

const (
	OwnerNode OwnerKind = iota
	OwnerRelationship
)

func (k OwnerKind) String() string {
	if k == OwnerRelationship {
		return "relationship"
	}
	return "node"
}

// propBlock is one link in a property chain: a key id, a typed value,
// the next block pointer, and the kind of entity the chain was
// allocated for. Owner is redundant past the head block (every block in
// a chain shares one owner) but is stored on each block anyway so
// freePropertyChain and the write_node/write_rel guard never need a
// special case for which block they are looking at.
type propBlock struct {
	KeyID   uint32
	Value   []byte // tagged encoding, see value.go
	Next    uint64
	HasNext bool
	Owner   OwnerKind
}

func (p *propBlock) encode() []byte {
	buf := make([]byte, 1+4+8+4+len(p.Value))
	buf[0] = byte(p.Owner)
	binary.BigEndian.PutUint32(buf[1:5], p.KeyID)
	binary.BigEndian.PutUint64(buf[5:13], encodePtr(p.Next, p.HasNext))
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(p.Value)))
	copy(buf[17:], p.Value)
	return buf
}

func decodePropBlock(buf []byte) *propBlock {
	p := &propBlock{Owner: OwnerKind(buf[0])}
	buf = buf[1:]
	p.KeyID = binary.BigEndian.Uint32(buf[0:4])
	p.Next, p.HasNext = decodePtr(binary.BigEndian.Uint64(buf[4:12]))
	n := binary.BigEndian.Uint32(buf[12:16])
	p.Value = make([]byte, n)
	copy(p.Value, buf[16:16+n])
	return p
}
