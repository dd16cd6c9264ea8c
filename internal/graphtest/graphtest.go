// Package graphtest provides the shared test harness every package's
// _test.go files build an environment/catalog/index/store/transaction
// manager from, so that isolation setup (temp dir before Env.Open,
// cleanup registration) lives in one place instead of being copy-pasted
// per package.
package graphtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/store"
	"github.com/graphdb/core/internal/txn"
)

// Context bundles one temp-dir-backed environment with the catalog,
// index manager, and record store opened over it, plus a transaction
// manager ready to drive writes/reads against all three.
type Context struct {
	Env     *kv.Env
	Catalog *catalog.Catalog
	Index   *index.Manager
	Store   *store.Store
	Txns    *txn.Manager
}

// New opens a fresh environment in a new temporary directory and
// registers t.Cleanup to close it. The directory is created before
// kv.Open is ever called, since Open itself requires the directory to
// already exist on entry in some environments (NFS-backed CI runners in
// particular) even though kv.Open also MkdirAlls defensively.
func New(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()

	opts := kv.DefaultOptions()
	opts.MapSize = 1 << 20
	env, err := kv.Open(dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	for _, table := range kv.CoreTables {
		require.NoError(t, env.CreateDB(table))
	}

	cat, err := catalog.Open(env)
	require.NoError(t, err)
	idx, err := index.Open(env)
	require.NoError(t, err)
	st := store.New(env)
	mgr := txn.New(env, cat, idx)

	return &Context{Env: env, Catalog: cat, Index: idx, Store: st, Txns: mgr}
}

// Isolated is like New but opens the catalog via catalog.OpenIsolated
// rather than sharing this Context's env, so tests verifying that two
// catalogs never share in-memory state can hold two genuinely separate
// environments open at once.
func Isolated(t *testing.T, mapSize int64) (*catalog.Catalog, *kv.Env) {
	t.Helper()
	dir := t.TempDir()
	cat, env, err := catalog.OpenIsolated(dir, mapSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return cat, env
}
