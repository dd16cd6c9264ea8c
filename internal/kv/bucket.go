package kv

import (
	bolt "go.etcd.io/bbolt"

	"github.com/graphdb/core/internal/graphdberr"
)

// Bucket is a typed handle onto one named sub-database within a
// transaction. Callers encode/decode their own keys and values; Bucket
// only provides the raw byte-slice contract bbolt itself exposes, copying
// out any slice that must outlive the transaction.
type Bucket struct {
	b *bolt.Bucket
}

// Put stores value under key, overwriting any existing entry.
func (d *Bucket) Put(key, value []byte) error {
	if err := d.b.Put(key, value); err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "put", err)
	}
	return nil
}

// Get returns a copy of the value stored at key, or nil if absent. The
// returned slice is safe to retain past the transaction's lifetime.
func (d *Bucket) Get(key []byte) []byte {
	v := d.b.Get(key)
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Delete removes key, if present.
func (d *Bucket) Delete(key []byte) error {
	if err := d.b.Delete(key); err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "delete", err)
	}
	return nil
}

// NextSequence returns a monotonically increasing, never-reused integer
// scoped to this bucket, used for 64-bit record id allocation.
func (d *Bucket) NextSequence() (uint64, error) {
	seq, err := d.b.NextSequence()
	if err != nil {
		return 0, graphdberr.Wrap(graphdberr.KindDatabase, "allocate sequence", err)
	}
	return seq, nil
}

// ForEach walks every key/value pair in the bucket in key order.
func (d *Bucket) ForEach(fn func(key, value []byte) error) error {
	return d.b.ForEach(fn)
}

// Cursor returns a cursor over the bucket for Seek/Next/Prev-style range
// iteration, used by the label/type/property indexes.
func (d *Bucket) Cursor() *Cursor {
	return &Cursor{c: d.b.Cursor()}
}

// Cursor iterates a Bucket's keys in sorted byte order.
type Cursor struct {
	c *bolt.Cursor
}

func (c *Cursor) First() (key, value []byte) { return c.c.First() }
func (c *Cursor) Last() (key, value []byte)  { return c.c.Last() }
func (c *Cursor) Next() (key, value []byte)  { return c.c.Next() }
func (c *Cursor) Prev() (key, value []byte)  { return c.c.Prev() }
func (c *Cursor) Seek(key []byte) (k, value []byte) { return c.c.Seek(key) }
