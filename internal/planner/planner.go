package planner

import (
	"fmt"
	"sync/atomic"

	"github.com/graphdb/core/internal/catalog"
	"github.com/graphdb/core/internal/cypher"
	"github.com/graphdb/core/internal/graphdberr"
	"github.com/graphdb/core/internal/index"
	"github.com/graphdb/core/internal/kv"
)

// anonVarSeq hands out process-unique internal row-binding names for
// unnamed nodes that still need a binding to splice a relationship onto
// (e.g. the B in `CREATE (:A)-[:R]->(:B)`). "$" cannot appear in a
// surface-syntax identifier, so these never collide with a real variable.
var anonVarSeq uint64

func nextAnonVar() string {
	return fmt.Sprintf("$anon%d", atomic.AddUint64(&anonVarSeq, 1))
}

// Planner selects access paths against a Catalog/index.Manager pair and
// compiles a cypher.Statement into a QueryPlan, preferring: property
// index > label scan > multi-label intersection > full scan.
type Planner struct {
	cat *catalog.Catalog
	idx *index.Manager

	// activeWT, when set for the duration of one Plan call, is the
	// caller's already-open write transaction. Schema interning rides
	// along inside it instead of opening a second bbolt write
	// transaction, which would block forever against the one this
	// Planner's own caller is already holding (bbolt allows only one
	// live writer per environment). Not safe for concurrent Plan calls
	// sharing one Planner; the engine serializes planning under a mutex.
	activeWT *kv.WriteTxn
}

// New creates a Planner bound to the given catalog and index manager.
func New(cat *catalog.Catalog, idx *index.Manager) *Planner {
	return &Planner{cat: cat, idx: idx}
}

func (p *Planner) internLabel(name string) (uint32, error) {
	if p.activeWT != nil {
		return p.cat.InternLabelIn(p.activeWT, name)
	}
	return p.cat.InternLabel(name)
}

func (p *Planner) internType(name string) (uint32, error) {
	if p.activeWT != nil {
		return p.cat.InternTypeIn(p.activeWT, name)
	}
	return p.cat.InternType(name)
}

func (p *Planner) internKey(name string) (uint32, error) {
	if p.activeWT != nil {
		return p.cat.InternKeyIn(p.activeWT, name)
	}
	return p.cat.InternKey(name)
}

// Plan compiles stmt.Clauses. stmt.Admin is not planned, and the engine
// does not execute it either: an administrative statement plans to a nil
// root and runs as a no-op that returns one empty row.
// wt, if supplied, is the caller's already-open write transaction;
// passing it lets any label/type/key interning this statement triggers
// ride along inside it rather than opening a second one.
func (p *Planner) Plan(stmt *cypher.Statement, wt ...*kv.WriteTxn) (*QueryPlan, error) {
	if len(wt) > 0 {
		p.activeWT = wt[0]
	} else {
		p.activeWT = nil
	}
	branches := splitOnUnion(stmt.Clauses)
	if len(branches) == 1 {
		root, cols, err := p.planClauses(branches[0].clauses)
		if err != nil {
			return nil, err
		}
		return &QueryPlan{Root: root, ResultCols: cols}, nil
	}

	var nodes []Node
	var cols []string
	dedup := false
	for i, b := range branches {
		root, c, err := p.planClauses(b.clauses)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, root)
		if i == 0 {
			cols = c
		}
		// UNION (without ALL) anywhere in the chain dedups the whole
		// result; each branch's all flag records the UNION keyword that
		// precedes it, so the branch following a bare UNION carries
		// all=false.
		if i > 0 && !b.all {
			dedup = true
		}
	}
	return &QueryPlan{Root: &UnionOp{Inputs: nodes, All: !dedup}, ResultCols: cols}, nil
}

type unionBranch struct {
	clauses []cypher.Clause
	all     bool
}

func splitOnUnion(clauses []cypher.Clause) []unionBranch {
	var branches []unionBranch
	start := 0
	nextAll := false
	for i, c := range clauses {
		if u, ok := c.(*cypher.UnionClause); ok {
			branches = append(branches, unionBranch{clauses: clauses[start:i], all: nextAll})
			nextAll = u.All
			start = i + 1
		}
	}
	branches = append(branches, unionBranch{clauses: clauses[start:], all: nextAll})
	return branches
}

// planningState tracks which variables are already bound while walking a
// clause list linearly, so later clauses know whether a pattern variable
// is a fresh binding (MATCH/CREATE target) or a back-reference.
type planningState struct {
	bound map[string]bool
}

func newPlanningState() *planningState { return &planningState{bound: map[string]bool{}} }

func (p *Planner) planClauses(clauses []cypher.Clause) (Node, []string, error) {
	var root Node
	var cols []string
	st := newPlanningState()

	for _, clause := range clauses {
		var err error
		switch c := clause.(type) {
		case *cypher.MatchClause:
			root, err = p.planMatch(c, root, st)
		case *cypher.UnwindClause:
			root, err = p.planUnwind(c, root, st)
		case *cypher.CreateClause:
			root, err = p.planCreate(c, root, st)
		case *cypher.MergeClause:
			root, err = p.planMerge(c, root, st)
		case *cypher.SetClause:
			root, err = p.planSet(c, root)
		case *cypher.RemoveClause:
			root, err = p.planRemove(c, root)
		case *cypher.DeleteClause:
			root, err = p.planDelete(c, root)
		case *cypher.WithClause:
			root, cols, err = p.planWith(c, root, st)
		case *cypher.ReturnClause:
			root, cols, err = p.planReturn(c, root)
		case *cypher.CallClause:
			root, err = p.planCall(c, root)
		case *cypher.ForeachClause:
			root, err = p.planForeach(c, root, st)
		case *cypher.UseDatabaseClause:
			// USE DATABASE is handled by the engine before planning.
			continue
		case *cypher.LoadCsvClause:
			return nil, nil, graphdberr.New(graphdberr.KindCypherExecution, "LOAD CSV is not supported")
		default:
			return nil, nil, graphdberr.New(graphdberr.KindCypherExecution, "unsupported clause %T", clause)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return root, cols, nil
}

func markBound(st *planningState, elems []cypher.PatternElement) {
	for _, elem := range elems {
		for _, n := range elem.Nodes {
			if n.Variable != "" {
				st.bound[n.Variable] = true
			}
		}
		for _, r := range elem.Rels {
			if r.Variable != "" {
				st.bound[r.Variable] = true
			}
		}
	}
}

func (p *Planner) planMatch(c *cypher.MatchClause, input Node, st *planningState) (Node, error) {
	var root Node = input
	for _, elem := range c.Pattern {
		chain, err := p.planPatternChain(elem, st)
		if err != nil {
			return nil, err
		}
		root = combineRows(root, chain)
	}
	markBound(st, c.Pattern)
	if c.Where != nil {
		root = &Filter{Predicate: c.Where, Input: root}
	}
	return root, nil
}

// combineRows sequences two independently-scanned row streams; when left
// is nil (the first pattern in the query) right becomes the root.
// Disjoint pattern elements (`MATCH (a), (b)`) fall back to a plan-time
// cartesian join: exec evaluates Left fully and drives Right once per
// left row.
func combineRows(left, right Node) Node {
	if left == nil {
		return right
	}
	return &CrossJoin{Left: left, Right: right}
}

func (p *Planner) planPatternChain(elem cypher.PatternElement, st *planningState) (Node, error) {
	first := elem.Nodes[0]
	var root Node
	if first.Variable != "" && st.bound[first.Variable] {
		root = &PassThroughVar{Var: first.Variable}
	} else {
		scan, err := p.chooseScan(first)
		if err != nil {
			return nil, err
		}
		root = scan
	}
	root = applyPropertyFilter(first.Variable, first.Properties, root)

	fromVar := first.Variable
	for i, rel := range elem.Rels {
		toNode := elem.Nodes[i+1]
		typeIDs := make([]uint32, 0, len(rel.Types))
		for _, t := range rel.Types {
			if id, ok := p.cat.LookupTypeID(t); ok {
				typeIDs = append(typeIDs, id)
			} else {
				typeIDs = append(typeIDs, noSuchID)
			}
		}
		dir := ExpandOut
		switch rel.Direction {
		case cypher.DirLeft:
			dir = ExpandIn
		case cypher.DirNone:
			dir = ExpandBoth
		}
		minHops, maxHops := 1, 1
		if rel.VarLength {
			minHops = 1
			if rel.MinHops != nil {
				minHops = *rel.MinHops
			}
			maxHops = -1
			if rel.MaxHops != nil {
				maxHops = *rel.MaxHops
			}
		}
		root = &Expand{
			FromVar: fromVar,
			RelVar:  rel.Variable,
			ToVar:   toNode.Variable,
			TypeIDs: typeIDs,
			Dir:     dir,
			MinHops: minHops,
			MaxHops: maxHops,
			Input:   root,
		}
		if len(toNode.Labels) > 0 {
			ids := make([]uint32, 0, len(toNode.Labels))
			for _, l := range toNode.Labels {
				if id, ok := p.cat.LookupLabelID(l); ok {
					ids = append(ids, id)
				} else {
					ids = append(ids, noSuchID)
				}
			}
			root = &LabelFilter{Var: toNode.Variable, LabelIDs: ids, Input: root}
		}
		root = applyPropertyFilter(toNode.Variable, toNode.Properties, root)
		fromVar = toNode.Variable
	}
	return root, nil
}

// propertyEqualityPredicate lowers a pattern node's inline `{k: v, ...}`
// map into an AND-chain of key = value comparisons, so it can ride along
// as a residual Filter after whatever access path chooseScan picked.
func propertyEqualityPredicate(varName string, props *cypher.MapLiteral) cypher.Expr {
	if props == nil || len(props.Keys) == 0 {
		return nil
	}
	var pred cypher.Expr
	for i, key := range props.Keys {
		eq := &cypher.BinaryExpr{
			Op:    cypher.TokenEquals,
			Left:  &cypher.PropertyAccess{Target: &cypher.VarRef{Name: varName}, Key: key},
			Right: props.Values[i],
		}
		if pred == nil {
			pred = eq
		} else {
			pred = &cypher.BinaryExpr{Op: cypher.TokenAnd, Left: pred, Right: eq}
		}
	}
	return pred
}

// applyPropertyFilter wraps root in a residual Filter for a pattern
// node's inline properties. An access path like NodeByPropertyExact may
// already have narrowed candidates on one of these keys, but it never
// carries the other keys (or survives re-verification on its own), so
// the filter re-checks every inline property regardless of which one, if
// any, drove the scan.
func applyPropertyFilter(varName string, props *cypher.MapLiteral, root Node) Node {
	pred := propertyEqualityPredicate(varName, props)
	if pred == nil {
		return root
	}
	return &Filter{Predicate: pred, Input: root}
}

// noSuchID marks a type/label name with no catalog entry: any scan or
// expand keyed on it deterministically yields zero rows.
const noSuchID = ^uint32(0)

// chooseScan picks the cheapest access path for a MATCH node pattern:
// an exact-match property index beats a label scan, which beats a
// multi-label intersection, which beats a full scan.
// Range-predicate pushdown onto WHERE clauses is future work — WHERE
// still runs as a post-scan Filter even when it names an indexed
// property (see DESIGN.md).
func (p *Planner) chooseScan(n cypher.NodePattern) (Node, error) {
	if len(n.Labels) == 0 {
		return &AllNodesScan{Var: n.Variable}, nil
	}

	labelIDs := make([]uint32, len(n.Labels))
	for i, l := range n.Labels {
		id, ok := p.cat.LookupLabelID(l)
		if !ok {
			return &NodeByLabelScan{Var: n.Variable, LabelID: noSuchID}, nil
		}
		labelIDs[i] = id
	}

	if n.Properties != nil {
		for i, key := range n.Properties.Keys {
			keyID, ok := p.cat.LookupKeyID(key)
			if !ok {
				continue
			}
			if p.idx.HasPropertyIndex(labelIDs[0], keyID) {
				return &NodeByPropertyExact{Var: n.Variable, LabelID: labelIDs[0], KeyID: keyID, Value: n.Properties.Values[i]}, nil
			}
		}
	}

	if len(labelIDs) == 1 {
		return &NodeByLabelScan{Var: n.Variable, LabelID: labelIDs[0]}, nil
	}
	return &NodeByLabelIntersect{Var: n.Variable, LabelIDs: labelIDs}, nil
}

func (p *Planner) planUnwind(c *cypher.UnwindClause, input Node, st *planningState) (Node, error) {
	st.bound[c.As] = true
	return &Unwind{ListExpr: c.List, Var: c.As, Input: input}, nil
}

func (p *Planner) resolveProperties(m *cypher.MapLiteral) (map[uint32]cypher.Expr, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[uint32]cypher.Expr, len(m.Keys))
	for i, k := range m.Keys {
		id, err := p.internKey(k)
		if err != nil {
			return nil, err
		}
		out[id] = m.Values[i]
	}
	return out, nil
}

func (p *Planner) planCreate(c *cypher.CreateClause, input Node, st *planningState) (Node, error) {
	create := &Create{Input: input}
	for _, elem := range c.Pattern {
		fromVar, err := p.planCreateNode(elem.Nodes[0], create, st)
		if err != nil {
			return nil, err
		}
		for i, rel := range elem.Rels {
			toNode := elem.Nodes[i+1]
			toVar, err := p.planCreateNode(toNode, create, st)
			if err != nil {
				return nil, err
			}
			typeID := uint32(0)
			if len(rel.Types) > 0 {
				typeID, err = p.internType(rel.Types[0])
				if err != nil {
					return nil, err
				}
			}
			props, err := p.resolveProperties(rel.Properties)
			if err != nil {
				return nil, err
			}
			reversed := rel.Direction == cypher.DirLeft
			item := CreateRelItem{Var: rel.Variable, TypeID: typeID, FromVar: fromVar, ToVar: toVar, Reversed: reversed, Properties: props}
			create.Rels = append(create.Rels, item)
			if rel.Variable != "" {
				st.bound[rel.Variable] = true
			}
			fromVar = toVar
		}
	}
	return create, nil
}

// planCreateNode adds a CreateNodeItem for n unless n.Variable already
// refers to a row-bound variable (re-used endpoint of a CREATE pattern),
// returning the variable name to use as an endpoint reference either way.
func (p *Planner) planCreateNode(n cypher.NodePattern, create *Create, st *planningState) (string, error) {
	if n.Variable != "" && st.bound[n.Variable] {
		return n.Variable, nil
	}
	labelIDs := make([]uint32, len(n.Labels))
	for i, l := range n.Labels {
		id, err := p.internLabel(l)
		if err != nil {
			return "", err
		}
		labelIDs[i] = id
	}
	props, err := p.resolveProperties(n.Properties)
	if err != nil {
		return "", err
	}
	v := n.Variable
	if v == "" {
		v = nextAnonVar()
	}
	create.Nodes = append(create.Nodes, CreateNodeItem{Var: v, LabelIDs: labelIDs, Properties: props})
	st.bound[v] = true
	return v, nil
}

func (p *Planner) planMerge(c *cypher.MergeClause, input Node, st *planningState) (Node, error) {
	matchState := newPlanningState()
	for k, v := range st.bound {
		matchState.bound[k] = v
	}
	matchPart, err := p.planPatternChain(c.Pattern, matchState)
	if err != nil {
		return nil, err
	}
	matchPart = combineRows(input, matchPart)

	createState := newPlanningState()
	for k, v := range st.bound {
		createState.bound[k] = v
	}
	create := &Create{}
	fromVar, err := p.planCreateNode(c.Pattern.Nodes[0], create, createState)
	if err != nil {
		return nil, err
	}
	for i, rel := range c.Pattern.Rels {
		toNode := c.Pattern.Nodes[i+1]
		toVar, err := p.planCreateNode(toNode, create, createState)
		if err != nil {
			return nil, err
		}
		typeID := uint32(0)
		if len(rel.Types) > 0 {
			typeID, err = p.internType(rel.Types[0])
			if err != nil {
				return nil, err
			}
		}
		props, err := p.resolveProperties(rel.Properties)
		if err != nil {
			return nil, err
		}
		create.Rels = append(create.Rels, CreateRelItem{Var: rel.Variable, TypeID: typeID, FromVar: fromVar, ToVar: toVar, Reversed: rel.Direction == cypher.DirLeft, Properties: props})
		fromVar = toVar
	}
	markBound(st, []cypher.PatternElement{c.Pattern})

	merge := &Merge{MatchPart: matchPart, CreateOnMiss: create}
	if len(c.OnMatch) > 0 {
		merge.OnMatch, err = p.setOpFromItems(c.OnMatch, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(c.OnCreate) > 0 {
		merge.OnCreate, err = p.setOpFromItems(c.OnCreate, nil)
		if err != nil {
			return nil, err
		}
	}
	return merge, nil
}

func (p *Planner) setOpFromItems(items []cypher.SetItem, input Node) (*SetOp, error) {
	op := &SetOp{Input: input}
	for _, item := range items {
		if item.IsLabel {
			varRef, ok := item.Target.(*cypher.VarRef)
			if !ok {
				return nil, graphdberr.New(graphdberr.KindCypherExecution, "SET label target must be a variable")
			}
			ids := make([]uint32, len(item.Labels))
			for i, l := range item.Labels {
				id, err := p.internLabel(l)
				if err != nil {
					return nil, err
				}
				ids[i] = id
			}
			op.Labels = append(op.Labels, SetLabelItem{TargetVar: varRef.Name, LabelIDs: ids})
			continue
		}
		pa, ok := item.Target.(*cypher.PropertyAccess)
		if !ok {
			return nil, graphdberr.New(graphdberr.KindCypherExecution, "SET property target must be a property access")
		}
		varRef, ok := pa.Target.(*cypher.VarRef)
		if !ok {
			return nil, graphdberr.New(graphdberr.KindCypherExecution, "SET property target must reference a variable")
		}
		keyID, err := p.internKey(pa.Key)
		if err != nil {
			return nil, err
		}
		op.Properties = append(op.Properties, SetPropertyItem{TargetVar: varRef.Name, KeyID: keyID, Value: item.Value, Append: item.IsAppend})
	}
	return op, nil
}

func (p *Planner) planSet(c *cypher.SetClause, input Node) (Node, error) {
	return p.setOpFromItems(c.Items, input)
}

func (p *Planner) planRemove(c *cypher.RemoveClause, input Node) (Node, error) {
	op := &RemoveOp{Input: input}
	for _, item := range c.Items {
		if len(item.Labels) > 0 {
			ids := make([]uint32, len(item.Labels))
			for i, l := range item.Labels {
				id, err := p.internLabel(l)
				if err != nil {
					return nil, err
				}
				ids[i] = id
			}
			op.Labels = append(op.Labels, RemoveLabelItem{TargetVar: item.Var, LabelIDs: ids})
			continue
		}
		pa, ok := item.Target.(*cypher.PropertyAccess)
		if !ok {
			return nil, graphdberr.New(graphdberr.KindCypherExecution, "REMOVE target must be a property access")
		}
		varRef, ok := pa.Target.(*cypher.VarRef)
		if !ok {
			return nil, graphdberr.New(graphdberr.KindCypherExecution, "REMOVE target must reference a variable")
		}
		keyID, err := p.internKey(pa.Key)
		if err != nil {
			return nil, err
		}
		op.Properties = append(op.Properties, RemovePropertyItem{TargetVar: varRef.Name, KeyID: keyID})
	}
	return op, nil
}

func (p *Planner) planDelete(c *cypher.DeleteClause, input Node) (Node, error) {
	vars := make([]string, len(c.Items))
	for i, item := range c.Items {
		v, ok := item.(*cypher.VarRef)
		if !ok {
			return nil, graphdberr.New(graphdberr.KindCypherExecution, "DELETE target must be a variable")
		}
		vars[i] = v.Name
	}
	return &DeleteOp{Vars: vars, Detach: c.Detach, Input: input}, nil
}

func (p *Planner) planWith(c *cypher.WithClause, input Node, st *planningState) (Node, []string, error) {
	root, cols, err := p.planProjection(c.Items, c.Distinct, c.Where, c.OrderBy, c.Skip, c.Limit, input, true, st)
	return root, cols, err
}

func (p *Planner) planReturn(c *cypher.ReturnClause, input Node) (Node, []string, error) {
	return p.planProjection(c.Items, c.Distinct, nil, c.OrderBy, c.Skip, c.Limit, input, false, nil)
}

func (p *Planner) planProjection(items []cypher.ReturnItem, distinct bool, where cypher.Expr, orderBy []cypher.OrderItem, skip, limit cypher.Expr, input Node, keepInput bool, st *planningState) (Node, []string, error) {
	// COUNT(*) metadata fast path: a single item, bare count(*), no
	// prior projection, and either no input at all (a bare RETURN) or an
	// input that is exactly one label scan with nothing else in the
	// chain, so the count can be answered from catalog statistics. An
	// unfiltered all-nodes scan does not take this path.
	if fast, cols, ok := tryCountStarFastPath(items, input); ok {
		return fast, cols, nil
	}

	aggItems, groupItems, isAgg := splitAggregates(items)
	var root Node = input
	cols := make([]string, len(items))

	if isAgg {
		agg := &Aggregate{Items: aggItems, Input: root, OverEmptyOK: root == nil}
		for _, g := range groupItems {
			agg.GroupExprs = append(agg.GroupExprs, g)
		}
		root = agg
		for i, it := range items {
			cols[i] = columnName(it)
		}
	} else {
		// A following ORDER BY may sort on pre-projection variables
		// (RETURN n.name ORDER BY n.age), so input bindings are kept for
		// it unless DISTINCT needs rows of the projected columns alone.
		proj := &Project{Distinct: distinct, KeepInput: keepInput || (len(orderBy) > 0 && !distinct), Input: root}
		for _, it := range items {
			if it.Star {
				proj.Star = true
				continue
			}
			proj.Items = append(proj.Items, ProjectItem{Expr: it.Expr, Alias: columnNameFromItem(it)})
		}
		root = proj
		for i, it := range items {
			cols[i] = columnName(it)
		}
	}

	if keepInput && st != nil {
		for _, it := range items {
			if it.Alias != "" {
				st.bound[it.Alias] = true
			} else if v, ok := it.Expr.(*cypher.VarRef); ok {
				st.bound[v.Name] = true
			}
		}
	}

	if where != nil {
		root = &Filter{Predicate: where, Input: root}
	}

	if len(orderBy) > 0 {
		ob := &OrderBy{Input: root}
		for _, o := range orderBy {
			ob.Items = append(ob.Items, OrderByItem{Expr: o.Expr, Desc: o.Desc})
		}
		root = ob
	}
	if distinct && !isAgg {
		// Distinct is applied inside Project, which then keeps no input
		// bindings, so no separate Distinct node is added here.
	}
	if skip != nil {
		root = &Skip{Count: skip, Input: root}
	}
	if limit != nil {
		root = &Limit{Count: limit, Input: root}
	}
	return root, cols, nil
}

func columnName(it cypher.ReturnItem) string {
	if it.Star {
		return "*"
	}
	return columnNameFromItem(it)
}

func columnNameFromItem(it cypher.ReturnItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	if v, ok := it.Expr.(*cypher.VarRef); ok {
		return v.Name
	}
	if pa, ok := it.Expr.(*cypher.PropertyAccess); ok {
		if v, ok := pa.Target.(*cypher.VarRef); ok {
			return v.Name + "." + pa.Key
		}
	}
	return exprText(it.Expr)
}

// exprText produces a stable-enough fallback column label for
// expressions with no explicit alias; it need not be parseable Cypher,
// only a deterministic label.
func exprText(e cypher.Expr) string {
	switch v := e.(type) {
	case *cypher.FunctionCall:
		return v.Name + "(...)"
	default:
		return "expr"
	}
}

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

func splitAggregates(items []cypher.ReturnItem) ([]AggregateItem, []ProjectItem, bool) {
	var aggs []AggregateItem
	var groups []ProjectItem
	found := false
	for i, it := range items {
		if fn, ok := it.Expr.(*cypher.FunctionCall); ok && aggregateFuncs[fn.Name] {
			found = true
			alias := columnNameFromItem(it)
			item := AggregateItem{Func: fn.Name, Distinct: fn.Distinct, Alias: alias}
			if len(fn.Args) == 1 {
				if v, ok := fn.Args[0].(*cypher.VarRef); ok && v.Name == "*" {
					item.Star = true
				} else {
					item.Arg = fn.Args[0]
				}
			}
			aggs = append(aggs, item)
		} else {
			groups = append(groups, ProjectItem{Expr: it.Expr, Alias: columnNameFromItem(it)})
		}
	}
	return aggs, groups, found
}

func tryCountStarFastPath(items []cypher.ReturnItem, input Node) (Node, []string, bool) {
	if len(items) != 1 {
		return nil, nil, false
	}
	fn, ok := items[0].Expr.(*cypher.FunctionCall)
	if !ok || fn.Name != "count" || len(fn.Args) != 1 {
		return nil, nil, false
	}
	v, ok := fn.Args[0].(*cypher.VarRef)
	if !ok || v.Name != "*" {
		return nil, nil, false
	}
	alias := columnNameFromItem(items[0])
	switch scan := input.(type) {
	case nil:
		return &CountStarFastPath{HasLabel: false, Alias: alias}, []string{alias}, true
	case *NodeByLabelScan:
		return &CountStarFastPath{LabelID: scan.LabelID, HasLabel: true, Alias: alias}, []string{alias}, true
	case *AllNodesScan:
		// No label predicate at all is not eligible — it still requires
		// a full scan in the general case (this fast path only serves
		// the catalog-backed label count).
		return nil, nil, false
	default:
		return nil, nil, false
	}
}

func (p *Planner) planCall(c *cypher.CallClause, input Node) (Node, error) {
	return &CallOp{Procedure: c.Procedure, Args: c.Args, Yield: c.Yield, Input: input}, nil
}

func (p *Planner) planForeach(c *cypher.ForeachClause, input Node, st *planningState) (Node, error) {
	bodyState := newPlanningState()
	for k, v := range st.bound {
		bodyState.bound[k] = v
	}
	bodyState.bound[c.Var] = true
	body, _, err := p.planClauses(c.Body)
	if err != nil {
		return nil, err
	}
	return &ForeachOp{Var: c.Var, ListExpr: c.List, Body: body, Input: input}, nil
}
