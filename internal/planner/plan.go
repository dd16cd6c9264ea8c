// Package planner selects access paths and builds the physical plan tree
// that internal/exec walks. Plan nodes are a tagged variant (plain
// data), never a virtual-inheritance hierarchy — exec owns the one type
// switch that interprets them.
package planner

import "github.com/graphdb/core/internal/cypher"

// Node is one physical plan operator. Every concrete type below
// implements it as a marker; internal/exec type-switches on the
// concrete type to build the matching pull-based operator.
type Node interface{ planNode() }

// AllNodesScan yields every live node, bound to Var.
type AllNodesScan struct {
	Var string
}

// NodeByLabelScan yields nodes carrying LabelID, bound to Var.
type NodeByLabelScan struct {
	Var     string
	LabelID uint32
}

// NodeByLabelIntersect yields nodes carrying every label in LabelIDs,
// scanning the smallest label's index and probing bitmap membership for
// the rest.
type NodeByLabelIntersect struct {
	Var      string
	LabelIDs []uint32
}

// NodeByPropertyExact yields nodes with (LabelID, KeyID) == Value via the
// declared B-tree property index.
type NodeByPropertyExact struct {
	Var     string
	LabelID uint32
	KeyID   uint32
	Value   cypher.Expr
}

// NodeByPropertyRange yields nodes with (LabelID, KeyID) between Min and
// Max (either bound may be nil for an open range).
type NodeByPropertyRange struct {
	Var          string
	LabelID      uint32
	KeyID        uint32
	Min, Max     cypher.Expr
	MinInclusive bool
	MaxInclusive bool
}

// ExpandDirection mirrors cypher.Direction at the plan level.
type ExpandDirection int

const (
	ExpandOut ExpandDirection = iota
	ExpandIn
	ExpandBoth
)

// Expand follows the adjacency chain from FromVar to produce RelVar/ToVar
// bindings, optionally restricted to TypeIDs and hop count [MinHops,
// MaxHops] for variable-length patterns (both 1 for a fixed-length hop).
type Expand struct {
	FromVar  string
	RelVar   string
	ToVar    string
	TypeIDs  []uint32
	Dir      ExpandDirection
	MinHops  int
	MaxHops  int // -1 means unbounded
	Optional bool
	Input    Node
}

// Filter keeps only rows where Predicate evaluates truthy.
type Filter struct {
	Predicate cypher.Expr
	Input     Node
}

// LabelFilter keeps only rows where Var's bound node carries every label
// in LabelIDs. Kept as its own operator (rather than riding inside
// Filter as a synthetic expression) since label-bitmap membership isn't
// a first-class Cypher expression.
type LabelFilter struct {
	Var      string
	LabelIDs []uint32
	Input    Node
}

// CrossJoin evaluates Right once per row produced by Left, unioning
// their bindings. Used when a query has multiple independent pattern
// elements (`MATCH (a), (b)`).
type CrossJoin struct {
	Left, Right Node
}

// PassThroughVar is a zero-row-source placeholder for a pattern variable
// that is already bound by an earlier clause; exec resolves it by
// reading the existing binding rather than scanning.
type PassThroughVar struct{ Var string }

// ProjectItem is one output column.
type ProjectItem struct {
	Expr  cypher.Expr
	Alias string
}

// Project evaluates Items per row; if KeepInput is true, later clauses
// may still reference pre-projection variables (used for WITH, and for a
// RETURN followed by a non-DISTINCT ORDER BY so its sort keys can read
// them).
type Project struct {
	Items     []ProjectItem
	Star      bool // RETURN/WITH *: forward all current bindings first
	Distinct  bool
	KeepInput bool
	Input     Node
}

// OrderBy sorts rows by Items, applied after Project.
type OrderByItem struct {
	Expr cypher.Expr
	Desc bool
}

type OrderBy struct {
	Items []OrderByItem
	Input Node
}

// Skip discards the first Count rows (Count may be a parameter/expr,
// evaluated once against an empty row at plan-build time is not valid
// for parameters, so it is kept as an expression evaluated at execution
// start).
type Skip struct {
	Count cypher.Expr
	Input Node
}

// Limit yields at most Count rows.
type Limit struct {
	Count cypher.Expr
	Input Node
}

// Unwind flattens ListExpr into one row per element, bound to Var.
type Unwind struct {
	ListExpr cypher.Expr
	Var      string
	Input    Node
}

// AggregateItem is one aggregated output column.
type AggregateItem struct {
	Func     string // "count", "sum", "avg", "min", "max", "collect"
	Arg      cypher.Expr
	Star     bool // count(*)
	Distinct bool
	Alias    string
}

// Aggregate groups by GroupExprs (each paired with an alias) and computes
// Items per group; a nil/empty GroupExprs means a single implicit group.
type Aggregate struct {
	GroupExprs  []ProjectItem
	Items       []AggregateItem
	Input       Node
	OverEmptyOK bool // true when there was no preceding MATCH/UNWIND
}

// CountStarFastPath serves `MATCH (n:Label) RETURN count(*)` directly
// from catalog statistics: valid only with a single pattern, at most
// one label predicate, and no other filters.
type CountStarFastPath struct {
	LabelID  uint32
	HasLabel bool
	Alias    string
}

// Distinct removes duplicate rows (by full row equality).
type Distinct struct {
	Input Node
}

// CreateNodeItem describes one node to materialize.
type CreateNodeItem struct {
	Var        string
	LabelIDs   []uint32
	Properties map[uint32]cypher.Expr
}

// CreateRelItem describes one relationship to materialize between two
// already-bound (or just-created) node variables.
type CreateRelItem struct {
	Var        string
	TypeID     uint32
	FromVar    string
	ToVar      string
	Reversed   bool // true if the pattern arrow pointed from ToVar to FromVar
	Properties map[uint32]cypher.Expr
}

// Create materializes Nodes then Rels for every input row (or once, for
// a bare CREATE with no preceding MATCH).
type Create struct {
	Nodes []CreateNodeItem
	Rels  []CreateRelItem
	Input Node // nil for a standalone CREATE
}

// SetPropertyItem assigns (or appends to, if Append) Target's Key
// property to Value.
type SetPropertyItem struct {
	TargetVar string
	KeyID     uint32
	Value     cypher.Expr
	Append    bool
}

// SetLabelItem adds LabelIDs to TargetVar's node.
type SetLabelItem struct {
	TargetVar string
	LabelIDs  []uint32
}

type SetOp struct {
	Properties []SetPropertyItem
	Labels     []SetLabelItem
	Input      Node
}

type RemovePropertyItem struct {
	TargetVar string
	KeyID     uint32
}

type RemoveLabelItem struct {
	TargetVar string
	LabelIDs  []uint32
}

type RemoveOp struct {
	Properties []RemovePropertyItem
	Labels     []RemoveLabelItem
	Input      Node
}

// DeleteOp removes the bound node/relationship variables in Vars;
// Detach permits deleting a node that still has incident relationships
// by first deleting them.
type DeleteOp struct {
	Vars   []string
	Detach bool
	Input  Node
}

// Merge evaluates MatchPart; if it yields any row, applies OnMatch to
// each; otherwise creates CreateOnMiss once and applies OnCreate.
type Merge struct {
	MatchPart  Node
	CreateOnMiss *Create
	OnMatch    *SetOp
	OnCreate   *SetOp
}

// ForeachOp evaluates ListExpr once per input row and runs Body (a
// mutation-only plan) once per element, bound to Var; it forwards each
// input row and never emits Body's own rows.
type ForeachOp struct {
	Var      string
	ListExpr cypher.Expr
	Body     Node
	Input    Node
}

// CallOp invokes a registered procedure by name.
type CallOp struct {
	Procedure string
	Args      []cypher.Expr
	Yield     []string
	Input     Node
}

// UnionOp combines the row streams of Inputs; dedup unless All.
type UnionOp struct {
	Inputs []Node
	All    bool
}

func (*AllNodesScan) planNode()         {}
func (*NodeByLabelScan) planNode()      {}
func (*NodeByLabelIntersect) planNode() {}
func (*NodeByPropertyExact) planNode()  {}
func (*NodeByPropertyRange) planNode()  {}
func (*Expand) planNode()               {}
func (*Filter) planNode()               {}
func (*LabelFilter) planNode()          {}
func (*CrossJoin) planNode()            {}
func (*PassThroughVar) planNode()       {}
func (*Project) planNode()              {}
func (*OrderBy) planNode()              {}
func (*Skip) planNode()                 {}
func (*Limit) planNode()                {}
func (*Unwind) planNode()               {}
func (*Aggregate) planNode()            {}
func (*CountStarFastPath) planNode()    {}
func (*Distinct) planNode()             {}
func (*Create) planNode()               {}
func (*SetOp) planNode()                {}
func (*RemoveOp) planNode()             {}
func (*DeleteOp) planNode()             {}
func (*Merge) planNode()                {}
func (*ForeachOp) planNode()            {}
func (*CallOp) planNode()               {}
func (*UnionOp) planNode()              {}

// QueryPlan is the top-level compiled plan plus the metadata the engine
// needs to run it and to report it back for EXPLAIN.
type QueryPlan struct {
	Root       Node
	ResultCols []string // column names in RETURN/WITH order, "" if none (pure mutation)
}

// planNodeByteEstimate is a rough per-operator footprint used only to
// weigh plan cache entries against its memory bound; it does not need
// to be exact, only roughly proportional to plan complexity.
const planNodeByteEstimate = 96

// EstimatedSize approximates the plan's memory footprint for the plan
// cache's size-bound eviction, as the operator count times a fixed
// per-operator estimate rather than a reflective byte-accurate size.
func (qp *QueryPlan) EstimatedSize() int64 {
	return int64(countNodes(qp.Root)) * planNodeByteEstimate
}

func countNodes(n Node) int {
	if n == nil {
		return 0
	}
	switch v := n.(type) {
	case *Expand:
		return 1 + countNodes(v.Input)
	case *Filter:
		return 1 + countNodes(v.Input)
	case *LabelFilter:
		return 1 + countNodes(v.Input)
	case *CrossJoin:
		return 1 + countNodes(v.Left) + countNodes(v.Right)
	case *Project:
		return 1 + countNodes(v.Input)
	case *OrderBy:
		return 1 + countNodes(v.Input)
	case *Skip:
		return 1 + countNodes(v.Input)
	case *Limit:
		return 1 + countNodes(v.Input)
	case *Unwind:
		return 1 + countNodes(v.Input)
	case *Aggregate:
		return 1 + countNodes(v.Input)
	case *Distinct:
		return 1 + countNodes(v.Input)
	case *Create:
		return 1 + countNodes(v.Input)
	case *SetOp:
		return 1 + countNodes(v.Input)
	case *RemoveOp:
		return 1 + countNodes(v.Input)
	case *DeleteOp:
		return 1 + countNodes(v.Input)
	case *Merge:
		n := 1 + countNodes(v.MatchPart) + countNodes(v.CreateOnMiss)
		if v.OnMatch != nil {
			n++
		}
		if v.OnCreate != nil {
			n++
		}
		return n
	case *ForeachOp:
		return 1 + countNodes(v.Body) + countNodes(v.Input)
	case *CallOp:
		return 1 + countNodes(v.Input)
	case *UnionOp:
		n := 1
		for _, in := range v.Inputs {
			n += countNodes(in)
		}
		return n
	default:
		// Leaf scans (AllNodesScan, NodeByLabelScan, NodeByLabelIntersect,
		// NodeByPropertyExact, NodeByPropertyRange, PassThroughVar,
		// CountStarFastPath) and anything else with no Input field.
		return 1
	}
}
