// Package exec implements the pull-based physical operator tree that
// walks a *planner.QueryPlan. Every operator reads
// through a single Context (the record store, catalog, index manager,
// and whichever transaction is live) and speaks eval.Row/eval.Value.
package exec

import (
	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
	"github.com/graphdb/core/internal/planner"
	"github.com/graphdb/core/internal/store"
	"github.com/graphdb/core/internal/txn"
)

// Context is the execution-time environment threaded through every
// operator in a plan tree. Exactly one of WTxn/RTxn is set: a mutating
// statement drives WTxn (and reads through its own in-flight view via
// WTxn.Raw().AsReadTxn()), a read-only statement drives RTxn directly.
type Context struct {
	Store   *store.Store
	Catalog *catalog.Catalog
	Index   *index.Manager
	WTxn    *txn.WriteTxn
	RTxn    *kv.ReadTxn
	Params  map[string]eval.Value
	Funcs   *eval.FunctionRegistry
	Procs   ProcRegistry
}

// ReadTxn returns the read-transaction view this Context executes
// against, whether that's a dedicated read snapshot or the in-flight
// view of the live write transaction.
func (c *Context) ReadTxn() *kv.ReadTxn {
	if c.WTxn != nil {
		return c.WTxn.Raw().AsReadTxn()
	}
	return c.RTxn
}

func (c *Context) evalContext(row eval.Row) *eval.Context {
	return &eval.Context{Row: row, Params: c.Params, Funcs: c.Funcs}
}

func (c *Context) mustWrite() (*txn.WriteTxn, error) {
	if c.WTxn == nil {
		return nil, graphdberr.New(graphdberr.KindCypherExecution, "statement requires a write transaction")
	}
	return c.WTxn, nil
}

// Operator is one physical plan step in pull form: Open seeds it with the
// outer row (nil/empty at the top of a plan, or the left row of a
// CrossJoin/Expand correlated lookup), Next yields rows one at a time
// until it reports no more, and Close releases anything Open acquired.
type Operator interface {
	Open(seed eval.Row) error
	Next() (eval.Row, bool, error)
	Close() error
}

func cloneRow(seed eval.Row) eval.Row {
	row := make(eval.Row, len(seed)+2)
	for k, v := range seed {
		row[k] = v
	}
	return row
}

// Build compiles one planner.Node into its matching Operator, recursing
// into Input fields as needed. It never touches storage itself — that
// happens lazily in Open/Next.
func Build(ctx *Context, node planner.Node) (Operator, error) {
	switch n := node.(type) {
	case nil:
		return &emptyOp{}, nil
	case *planner.AllNodesScan:
		return &allNodesScanOp{ctx: ctx, plan: n}, nil
	case *planner.NodeByLabelScan:
		return &nodeByLabelScanOp{ctx: ctx, plan: n}, nil
	case *planner.NodeByLabelIntersect:
		return &nodeByLabelIntersectOp{ctx: ctx, plan: n}, nil
	case *planner.NodeByPropertyExact:
		return &nodeByPropertyExactOp{ctx: ctx, plan: n}, nil
	case *planner.NodeByPropertyRange:
		return &nodeByPropertyRangeOp{ctx: ctx, plan: n}, nil
	case *planner.PassThroughVar:
		return &passThroughVarOp{plan: n}, nil
	case *planner.Expand:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &expandOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Filter:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &filterOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.LabelFilter:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &labelFilterOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.CrossJoin:
		left, err := Build(ctx, n.Left)
		if err != nil {
			return nil, err
		}
		return &crossJoinOp{ctx: ctx, plan: n, left: left}, nil
	case *planner.Project:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &projectOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.OrderBy:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &orderByOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Skip:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &skipOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Limit:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &limitOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Unwind:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &unwindOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Aggregate:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &aggregateOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.CountStarFastPath:
		return &countStarFastPathOp{ctx: ctx, plan: n}, nil
	case *planner.Distinct:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &distinctOp{input: input}, nil
	case *planner.Create:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &createOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.SetOp:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &setOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.RemoveOp:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &removeOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.DeleteOp:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &deleteOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.Merge:
		return &mergeOp{ctx: ctx, plan: n}, nil
	case *planner.ForeachOp:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &foreachOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.CallOp:
		input, err := Build(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return &callOp{ctx: ctx, plan: n, input: input}, nil
	case *planner.UnionOp:
		return &unionOp{ctx: ctx, plan: n}, nil
	default:
		return nil, graphdberr.New(graphdberr.KindCypherExecution, "unsupported plan node %T", node)
	}
}

// Run drives plan to completion and collects every row, for the common
// case of a bounded result set (the engine layer is responsible for
// imposing any server-side row cap).
func Run(ctx *Context, plan *planner.QueryPlan) ([]eval.Row, []string, error) {
	op, err := Build(ctx, plan.Root)
	if err != nil {
		return nil, nil, err
	}
	if err := op.Open(nil); err != nil {
		return nil, nil, err
	}
	defer op.Close()

	var rows []eval.Row
	for {
		row, ok, err := op.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return rows, plan.ResultCols, nil
}

// emptyOp produces exactly one empty row; it backs Build(nil) for a standalone CREATE
// or other root with no preceding read.
type emptyOp struct{ done bool }

func (o *emptyOp) Open(seed eval.Row) error { o.done = false; return nil }
func (o *emptyOp) Next() (eval.Row, bool, error) {
	if o.done {
		return nil, false, nil
	}
	o.done = true
	return eval.Row{}, true, nil
}
func (o *emptyOp) Close() error { return nil }
