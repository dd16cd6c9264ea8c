package kv

import "encoding/binary"

// EncodeID renders a 64-bit record id as a big-endian key so that bucket
// cursor order matches ascending numeric id order.
func EncodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// DecodeID parses a big-endian id key back to a uint64.
func DecodeID(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// EncodeU32 renders a 32-bit catalog id (label/type/key) as a big-endian
// key.
func EncodeU32(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return buf
}

// DecodeU32 parses a big-endian 32-bit id key.
func DecodeU32(key []byte) uint32 {
	return binary.BigEndian.Uint32(key)
}
