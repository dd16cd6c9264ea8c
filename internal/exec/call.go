package exec

import (
	"github.com/graphdb/core/internal/eval"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/planner"
)

// ProcFunc is a registered procedure: given evaluated call arguments, it
// returns the rows it yields (each a plain column-name-to-value map) and
// the column names those rows carry, in order.
type ProcFunc func(ctx *Context, args []eval.Value) ([]eval.Row, []string, error)

// ProcRegistry resolves a CALL clause's procedure name to an
// implementation (internal/procs populates one of these for the engine
// to hand to exec.Context).
type ProcRegistry map[string]ProcFunc

// callOp invokes a registered procedure once per input row, yielding one
// output row per row the procedure returns, each carrying the base row's
// bindings plus whichever procedure columns Yield selects.
type callOp struct {
	ctx    *Context
	plan   *planner.CallOp
	input  Operator
	buffer []eval.Row
	pos    int
}

func (o *callOp) Open(seed eval.Row) error {
	if err := o.input.Open(seed); err != nil {
		return err
	}
	o.buffer, o.pos = nil, 0
	return nil
}
func (o *callOp) Close() error { return o.input.Close() }

func (o *callOp) Next() (eval.Row, bool, error) {
	for {
		if o.pos < len(o.buffer) {
			row := o.buffer[o.pos]
			o.pos++
			return row, true, nil
		}
		base, ok, err := o.input.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		rows, err := o.invoke(base)
		if err != nil {
			return nil, false, err
		}
		o.buffer, o.pos = rows, 0
	}
}

func (o *callOp) invoke(base eval.Row) ([]eval.Row, error) {
	proc, ok := o.ctx.Procs[o.plan.Procedure]
	if !ok {
		return nil, graphdberr.New(graphdberr.KindCypherExecution, "unknown procedure %q", o.plan.Procedure)
	}
	ec := o.ctx.evalContext(base)
	args := make([]eval.Value, len(o.plan.Args))
	for i, a := range o.plan.Args {
		v, err := eval.Eval(ec, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	procRows, cols, err := proc(o.ctx, args)
	if err != nil {
		return nil, err
	}
	yield := o.plan.Yield
	if len(yield) == 0 {
		yield = cols
	}
	out := make([]eval.Row, 0, len(procRows))
	for _, pr := range procRows {
		row := cloneRow(base)
		for _, name := range yield {
			row[name] = pr[name]
		}
		out = append(out, row)
	}
	return out, nil
}
