// Package engine ties the record store, catalog, index manager,
// transaction manager, planner, plan cache, and procedure registry into
// the single entry point an embedder or the CLI drives: ExecuteCypher
// plus an explicit BeginTransaction/Commit/Rollback API for callers that
// need more than one statement per transaction.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/config"
	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/exec"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/planner"
	"github.com/graphdb/core/internal/plancache"
	"github.com/graphdb/core/internal/procs"
	"github.com/graphdb/core/internal/store"
	"github.com/graphdb/core/internal/txn"
)

// metrics holds the engine's OTel instruments. They are registered
// against the global meter provider at init time so they forward to
// whatever provider the host process installs (cmd/graphdb installs
// none, so there they go to the default no-op provider), the same delegating-
// provider pattern the teacher's dolt storage backend uses for its own
// retry-count/lock-wait instruments.
var engineMetrics struct {
	planCacheHits   metric.Int64Counter
	planCacheMisses metric.Int64Counter
	commits         metric.Int64Counter
	rowsScanned     metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/graphdb/core/internal/engine")
	engineMetrics.planCacheHits, _ = m.Int64Counter("graphdb.plancache.hits",
		metric.WithDescription("Plan cache lookups served from cache"),
		metric.WithUnit("{lookup}"),
	)
	engineMetrics.planCacheMisses, _ = m.Int64Counter("graphdb.plancache.misses",
		metric.WithDescription("Plan cache lookups that required a fresh plan"),
		metric.WithUnit("{lookup}"),
	)
	engineMetrics.commits, _ = m.Int64Counter("graphdb.transactions.commits",
		metric.WithDescription("Write transactions committed"),
		metric.WithUnit("{commit}"),
	)
	engineMetrics.rowsScanned, _ = m.Int64Counter("graphdb.rows.scanned",
		metric.WithDescription("Rows returned by executed Cypher statements"),
		metric.WithUnit("{row}"),
	)
}

// ResultSet is the outcome of one executed Cypher statement.
type ResultSet struct {
	Columns []string
	Rows    []eval.Row
}

// Engine is the top-level embeddable handle: one open environment plus
// everything layered over it.
type Engine struct {
	cfg config.Config
	log *slog.Logger

	env   *kv.Env
	cat   *catalog.Catalog
	idx   *index.Manager
	store *store.Store
	txns  *txn.Manager

	plan  *planner.Planner
	cache *plancache.Cache
	procs exec.ProcRegistry
	funcs *eval.FunctionRegistry

	mu            sync.Mutex
	schemaObjects int
}

// Open opens (creating if necessary) an environment per cfg and wires
// every layer above it. The returned Engine owns env and must be
// Close'd.
func Open(cfg config.Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	opts := kv.DefaultOptions()
	opts.MapSize = cfg.MapSizeBytes()
	opts.LockTimeout = cfg.LockTimeout()
	env, err := kv.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, err
	}
	for _, table := range kv.CoreTables {
		if err := env.CreateDB(table); err != nil {
			_ = env.Close()
			return nil, err
		}
	}

	cat, err := catalog.Open(env)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	idx, err := index.Open(env)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	st := store.New(env)
	mgr := txn.New(env, cat, idx)
	cache, err := plancache.New(cfg.PlanCacheMaxEntries, cfg.PlanCacheMaxMemoryBytes())
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		log:   log,
		env:   env,
		cat:   cat,
		idx:   idx,
		store: st,
		txns:  mgr,
		plan:  planner.New(cat, idx),
		cache: cache,
		procs: procs.NewRegistry(cat),
		funcs: eval.NewFunctionRegistry(),
	}
	e.schemaObjects = e.countSchemaObjects()
	return e, nil
}

// Close flushes and releases the underlying environment.
func (e *Engine) Close() error {
	return e.env.Close()
}

func (e *Engine) countSchemaObjects() int {
	return len(e.cat.ListLabels()) + len(e.cat.ListTypes()) + len(e.cat.ListAllKeys())
}

// Transaction is an explicit, multi-statement write transaction handle
// for callers that need more than one statement's effects to commit or
// roll back atomically. A single-statement caller should use
// ExecuteCypher directly instead, which opens and commits its own
// transaction per call.
type Transaction struct {
	e  *Engine
	wt *txn.WriteTxn
}

// BeginTransaction opens a write transaction. ctx is honored only up to
// the point the underlying write lock is acquired (or the lock timeout
// elapses) — once a Transaction is returned there is no further
// suspension point short of Commit's disk flush.
func (e *Engine) BeginTransaction(ctx context.Context) (*Transaction, error) {
	wt, err := e.txns.BeginWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{e: e, wt: wt}, nil
}

// Execute runs one statement inside an already-open Transaction.
func (tx *Transaction) Execute(text string, params map[string]eval.Value) (ResultSet, error) {
	return tx.e.run(text, params, &execContext{wtxn: tx.wt})
}

// Commit finalizes every statement executed on tx.
func (tx *Transaction) Commit() error {
	if err := tx.wt.Commit(); err != nil {
		return err
	}
	engineMetrics.commits.Add(context.Background(), 1)
	return nil
}

// Rollback discards every statement executed on tx.
func (tx *Transaction) Rollback() error {
	return tx.wt.Rollback()
}

// execContext carries whichever transaction kind (explicit caller-owned
// write, or engine-owned single-statement write/read) a call to run
// should execute against.
type execContext struct {
	wtxn     *txn.WriteTxn
	ownsRead bool
}

// ExecuteCypher parses, plans (consulting the plan cache), and runs one
// Cypher statement in its own transaction: a read-only statement opens
// a read snapshot, anything else opens and commits a write transaction
// around itself. Use BeginTransaction instead when multiple statements
// must share one transaction.
func (e *Engine) ExecuteCypher(ctx context.Context, text string, params map[string]eval.Value) (ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return ResultSet{}, graphdberr.Wrap(graphdberr.KindCypherExecution, "context canceled before execution", err)
	}

	stmt, err := cypher.NewParser(text).Parse()
	if err != nil {
		return ResultSet{}, err
	}

	if stmt.ReadOnly() {
		rt, err := e.txns.BeginRead()
		if err != nil {
			return ResultSet{}, err
		}
		defer rt.Close()
		return e.runParsed(ctx, text, stmt, params, &execContext{}, rt)
	}

	wt, err := e.txns.BeginWrite(ctx)
	if err != nil {
		return ResultSet{}, err
	}
	rs, err := e.runParsed(ctx, text, stmt, params, &execContext{wtxn: wt}, nil)
	if err != nil {
		_ = wt.Rollback()
		return ResultSet{}, err
	}
	if err := wt.Commit(); err != nil {
		return ResultSet{}, err
	}
	engineMetrics.commits.Add(ctx, 1)
	return rs, nil
}

// run is Transaction.Execute's entry point: parse fresh (Transaction
// doesn't hold a pre-parsed statement across calls) and execute against
// the caller-supplied write transaction.
func (e *Engine) run(text string, params map[string]eval.Value, ec *execContext) (ResultSet, error) {
	stmt, err := cypher.NewParser(text).Parse()
	if err != nil {
		return ResultSet{}, err
	}
	return e.runParsed(context.Background(), text, stmt, params, ec, nil)
}

func (e *Engine) runParsed(ctx context.Context, text string, stmt *cypher.Statement, params map[string]eval.Value, ec *execContext, rt *kv.ReadTxn) (ResultSet, error) {
	var rawWT *kv.WriteTxn
	if ec.wtxn != nil {
		rawWT = ec.wtxn.Raw()
	}
	plan, err := e.planFor(text, stmt, rawWT)
	if err != nil {
		return ResultSet{}, err
	}

	ectx := &exec.Context{
		Store:   e.store,
		Catalog: e.cat,
		Index:   e.idx,
		WTxn:    ec.wtxn,
		RTxn:    rt,
		Params:  params,
		Funcs:   e.funcs,
		Procs:   e.procs,
	}
	rows, cols, err := exec.Run(ectx, plan)
	if err != nil {
		return ResultSet{}, err
	}
	engineMetrics.rowsScanned.Add(ctx, int64(len(rows)))
	return ResultSet{Columns: cols, Rows: rows}, nil
}

// planFor looks the canonicalized query text up in the plan cache,
// compiling and inserting a fresh plan on a miss. wt, if the caller
// already holds the environment's write transaction, is threaded into
// Planner.Plan so any schema interning this statement triggers rides
// along inside it rather than opening a second one (bbolt allows only
// one live writer per environment — see Catalog.InternLabelIn).
//
// Planning can itself intern brand-new labels/types/keys (e.g. the
// first CREATE referencing a label no other statement has ever used);
// any previously cached plan that referenced that same not-yet-interned
// name would have baked in planner.noSuchID and would otherwise keep
// matching zero rows forever even after the name exists. Rather than
// track that dependency per-plan, the whole cache is cleared whenever
// the catalog's schema object count grows during planning, trading a
// few avoidable replans for a dependency-free invalidation rule.
func (e *Engine) planFor(text string, stmt *cypher.Statement, wt *kv.WriteTxn) (*planner.QueryPlan, error) {
	key := cypher.Canonicalize(text)

	if cached, ok := e.cache.Lookup(key); ok {
		engineMetrics.planCacheHits.Add(context.Background(), 1)
		return cached.(*planner.QueryPlan), nil
	}
	engineMetrics.planCacheMisses.Add(context.Background(), 1)

	e.mu.Lock()
	before := e.schemaObjects
	var plan *planner.QueryPlan
	var err error
	if wt != nil {
		plan, err = e.plan.Plan(stmt, wt)
	} else {
		plan, err = e.plan.Plan(stmt)
	}
	after := e.countSchemaObjects()
	e.schemaObjects = after
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if after > before {
		e.cache.Clear()
	}
	e.cache.Insert(key, plan, plan.EstimatedSize())
	return plan, nil
}

// Catalog exposes the engine's catalog for callers that need schema
// introspection outside of a CALL db.* procedure (e.g. a CLI's
// `index create` subcommand interning a label before declaring an
// index on it).
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Explain parses and plans text without executing it, for the CLI's
// `explain`/`profile` subcommands. Planning can itself intern a
// brand-new label/type/key referenced by the statement (see planFor);
// that happens here exactly as it would on a real execution, since the
// two code paths share one planner.
func (e *Engine) Explain(text string) (*planner.QueryPlan, error) {
	stmt, err := cypher.NewParser(text).Parse()
	if err != nil {
		return nil, err
	}
	return e.planFor(text, stmt, nil)
}

// CreateIndex interns label/key and declares a property index over
// them, matching the way `internal/planner` interns schema names
// lazily: the label or key need not already exist.
func (e *Engine) CreateIndex(ctx context.Context, label, key string) error {
	wt, err := e.txns.BeginWrite(ctx)
	if err != nil {
		return err
	}
	labelID, err := e.cat.InternLabelIn(wt.Raw(), label)
	if err != nil {
		_ = wt.Rollback()
		return err
	}
	keyID, err := e.cat.InternKeyIn(wt.Raw(), key)
	if err != nil {
		_ = wt.Rollback()
		return err
	}
	if err := e.idx.CreateIndex(wt.Raw(), labelID, keyID); err != nil {
		_ = wt.Rollback()
		return err
	}
	if err := wt.Commit(); err != nil {
		return err
	}
	engineMetrics.commits.Add(ctx, 1)
	return nil
}

// DropIndex removes a previously declared property index, reporting
// whether one existed. label/key must already be interned; an unknown
// name reports false rather than erroring, since "no such index" and
// "no such label" look the same to the caller.
func (e *Engine) DropIndex(ctx context.Context, label, key string) (bool, error) {
	labelID, ok := e.cat.LookupLabelID(label)
	if !ok {
		return false, nil
	}
	keyID, ok := e.cat.LookupKeyID(key)
	if !ok {
		return false, nil
	}
	wt, err := e.txns.BeginWrite(ctx)
	if err != nil {
		return false, err
	}
	dropped, err := e.idx.DropIndex(wt.Raw(), labelID, keyID)
	if err != nil {
		_ = wt.Rollback()
		return false, err
	}
	if err := wt.Commit(); err != nil {
		return false, err
	}
	engineMetrics.commits.Add(ctx, 1)
	return dropped, nil
}

// PlanCacheStatistics reports the plan cache's current hit rate and
// occupancy, backing a `CALL db.stats()`-style introspection surface.
func (e *Engine) PlanCacheStatistics() plancache.Statistics {
	return e.cache.Statistics()
}
