package kv

import (
	bolt "go.etcd.io/bbolt"

	"github.com/graphdb/core/internal/graphdberr"
)

// ReadTxn is a read-only snapshot transaction.
type ReadTxn struct {
	tx *bolt.Tx
}

// WriteTxn is the single live write transaction for an environment.
type WriteTxn struct {
	tx *bolt.Tx
}

// BeginRead opens a read-only snapshot. Readers never block on a writer
// and vice versa; the snapshot is fixed at the moment this call returns.
func (e *Env) BeginRead() (*ReadTxn, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, graphdberr.Wrap(graphdberr.KindDatabase, "begin read transaction", err)
	}
	return &ReadTxn{tx: tx}, nil
}

// BeginWrite opens the single writable transaction. Concurrent writers
// serialize inside bbolt; if the configured lock timeout elapses first the
// underlying open already failed, so this call itself only fails on
// environment-level errors.
func (e *Env) BeginWrite() (*WriteTxn, error) {
	tx, err := e.db.Begin(true)
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, graphdberr.New(graphdberr.KindLockTimeout, "timed out acquiring write lock")
		}
		return nil, graphdberr.Wrap(graphdberr.KindDatabase, "begin write transaction", err)
	}
	return &WriteTxn{tx: tx}, nil
}

// Commit persists the transaction's writes. Durability is guaranteed on
// return.
func (w *WriteTxn) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "commit write transaction", err)
	}
	return nil
}

// Abort discards all writes made under this transaction.
func (w *WriteTxn) Abort() error {
	if err := w.tx.Rollback(); err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "abort write transaction", err)
	}
	return nil
}

// AsReadTxn returns a read view over this write transaction's own
// in-flight changes. bbolt permits only one open write transaction per
// environment, so a write statement that also needs to read (a MATCH
// feeding a SET/DELETE/MERGE) must read through itself rather than
// opening a second transaction.
func (w *WriteTxn) AsReadTxn() *ReadTxn {
	return &ReadTxn{tx: w.tx}
}

// Close releases a read transaction's snapshot.
func (r *ReadTxn) Close() error {
	if err := r.tx.Rollback(); err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "close read transaction", err)
	}
	return nil
}

// Db returns a typed handle to a named sub-database scoped to this write
// transaction.
func (w *WriteTxn) Db(name string) (*Bucket, error) {
	b := w.tx.Bucket([]byte(name))
	if b == nil {
		return nil, graphdberr.New(graphdberr.KindDatabase, "sub-database %q not created", name)
	}
	return &Bucket{b: b}, nil
}

// Db returns a typed handle to a named sub-database scoped to this read
// transaction.
func (r *ReadTxn) Db(name string) (*Bucket, error) {
	b := r.tx.Bucket([]byte(name))
	if b == nil {
		return nil, graphdberr.New(graphdberr.KindDatabase, "sub-database %q not created", name)
	}
	return &Bucket{b: b}, nil
}

// CreateDB creates a sub-database within this write transaction, used by
// CREATE INDEX to allocate a bucket for a new property index without a
// separate round trip through Env.CreateDB.
func (w *WriteTxn) CreateDB(name string) (*Bucket, error) {
	b, err := w.tx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, graphdberr.Wrap(graphdberr.KindDatabase, "create sub-database", err)
	}
	return &Bucket{b: b}, nil
}

// DeleteDB removes a sub-database entirely, used by DROP INDEX.
func (w *WriteTxn) DeleteDB(name string) error {
	if err := w.tx.DeleteBucket([]byte(name)); err != nil {
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return graphdberr.Wrap(graphdberr.KindDatabase, "delete sub-database", err)
	}
	return nil
}
