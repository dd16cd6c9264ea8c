package catalog

import "encoding/binary"

// encodeU64 renders a 64-bit counter as big-endian bytes for storage as a
// bucket value.
func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// decodeU64 parses a big-endian 64-bit counter value.
func decodeU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// encodeU64Key renders a 64-bit constraint id as a big-endian bucket key,
// matching kv.EncodeID's ordering convention.
func encodeU64Key(id uint64) []byte {
	return encodeU64(id)
}
