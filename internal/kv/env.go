// Package kv wraps a memory-mapped key-value environment (go.etcd.io/bbolt)
// with the open/txn/sub-database contract the record store, catalog, and
// index layer build on. Only one write transaction may be live per
// environment; read transactions see the snapshot taken at creation and run
// concurrently with the writer.
package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/graphdb/core/internal/graphdberr"
)

const dataFileName = "graph.db"
const lockFileName = ".lock"

// Env is a single memory-mapped environment, backed by one directory on
// disk. All sub-databases (bbolt buckets) for a graph live in one Env.
type Env struct {
	db       *bolt.DB
	dirLock  *flock.Flock
	path     string
	mapSize  int64
}

// Options configures Env.Open.
type Options struct {
	// MapSize is advisory only for bbolt (it grows the backing file
	// on demand); it is kept so the wrapper's contract matches an
	// MDBX-style environment that requires an upfront map size.
	MapSize int64
	// LockTimeout bounds how long Open waits to acquire the writer
	// lock before failing with graphdberr.LockTimeout.
	LockTimeout time.Duration
}

// DefaultOptions returns sensible defaults for a new environment.
func DefaultOptions() Options {
	return Options{
		MapSize:     1 << 30, // 1 GiB
		LockTimeout: 5 * time.Second,
	}
}

// Open opens (creating if necessary) the environment directory at path.
func Open(path string, opts Options) (*Env, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, graphdberr.Wrap(graphdberr.KindIo, "create environment directory", err)
	}

	dirLock := flock.New(filepath.Join(path, lockFileName))
	locked, err := dirLock.TryLockContext(timeoutCtx(opts.LockTimeout), 20*time.Millisecond)
	if err != nil && err != context.DeadlineExceeded {
		return nil, graphdberr.Wrap(graphdberr.KindIo, "acquire environment directory lock", err)
	}
	if !locked {
		return nil, graphdberr.New(graphdberr.KindLockTimeout, "environment is already open by another process")
	}

	db, err := bolt.Open(filepath.Join(path, dataFileName), 0o600, &bolt.Options{
		Timeout: opts.LockTimeout,
	})
	if err != nil {
		_ = dirLock.Unlock()
		if err == bolt.ErrTimeout {
			return nil, graphdberr.New(graphdberr.KindLockTimeout, "timed out acquiring write lock")
		}
		return nil, graphdberr.Wrap(graphdberr.KindDatabase, "open environment", err)
	}

	return &Env{db: db, dirLock: dirLock, path: path, mapSize: opts.MapSize}, nil
}

func timeoutCtx(d time.Duration) context.Context {
	if d <= 0 {
		d = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	_ = cancel // context is allowed to leak past TryLockContext's own deadline
	return ctx
}

// Path returns the environment's directory.
func (e *Env) Path() string { return e.path }

// Close flushes and releases the environment. Any transaction left open by
// the caller at this point is the caller's bug; bbolt itself refuses to
// close with live transactions.
func (e *Env) Close() error {
	err := e.db.Close()
	_ = e.dirLock.Unlock()
	if err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, "close environment", err)
	}
	return nil
}

// CreateDB ensures a named sub-database (bucket) exists. It is idempotent
// and safe to call for every declared bucket at startup.
func (e *Env) CreateDB(name string) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return graphdberr.Wrap(graphdberr.KindDatabase, fmt.Sprintf("create sub-database %q", name), err)
	}
	return nil
}

// Flush persists all mapped pages. Implicit at commit; exposed for callers
// that want an explicit durability barrier (e.g. before a backup).
func (e *Env) Flush() error {
	return e.db.Sync()
}
