package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphdb/core/internal/planner"
)

var explainCmd = &cobra.Command{
	Use:   "explain <cypher>",
	Short: "Compile a Cypher statement and print its physical plan tree",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		plan, err := e.Explain(strings.Join(args, " "))
		if err != nil {
			return err
		}
		renderPlanTree(plan)
		return nil
	},
}

// renderPlanTree walks a planner.Node tree with the same box-drawing
// connectors (├── └── │) used for dependency trees elsewhere in this
// codebase's CLI ancestry, one line per operator.
func renderPlanTree(qp *planner.QueryPlan) {
	if len(qp.ResultCols) > 0 {
		fmt.Println(headerStyle.Render("columns: " + strings.Join(qp.ResultCols, ", ")))
	}
	renderPlanNode(qp.Root, "", true)
}

func renderPlanNode(n planner.Node, prefix string, isLast bool) {
	if n == nil {
		return
	}
	connector := "├── "
	childPrefix := prefix + connectorStyle.Render("│   ")
	if isLast {
		connector = "└── "
		childPrefix = prefix + "    "
	}
	fmt.Println(prefix + connectorStyle.Render(connector) + describePlanNode(n))

	children := planChildren(n)
	for i, c := range children {
		renderPlanNode(c, childPrefix, i == len(children)-1)
	}
}

func planChildren(n planner.Node) []planner.Node {
	switch v := n.(type) {
	case *planner.Expand:
		return []planner.Node{v.Input}
	case *planner.Filter:
		return []planner.Node{v.Input}
	case *planner.LabelFilter:
		return []planner.Node{v.Input}
	case *planner.CrossJoin:
		return []planner.Node{v.Left, v.Right}
	case *planner.Project:
		return []planner.Node{v.Input}
	case *planner.OrderBy:
		return []planner.Node{v.Input}
	case *planner.Skip:
		return []planner.Node{v.Input}
	case *planner.Limit:
		return []planner.Node{v.Input}
	case *planner.Unwind:
		return []planner.Node{v.Input}
	case *planner.Aggregate:
		return []planner.Node{v.Input}
	case *planner.Distinct:
		return []planner.Node{v.Input}
	case *planner.Create:
		return []planner.Node{v.Input}
	case *planner.SetOp:
		return []planner.Node{v.Input}
	case *planner.RemoveOp:
		return []planner.Node{v.Input}
	case *planner.DeleteOp:
		return []planner.Node{v.Input}
	case *planner.Merge:
		children := []planner.Node{v.MatchPart}
		if v.CreateOnMiss != nil {
			children = append(children, v.CreateOnMiss)
		}
		return children
	case *planner.ForeachOp:
		return []planner.Node{v.Body, v.Input}
	case *planner.CallOp:
		return []planner.Node{v.Input}
	case *planner.UnionOp:
		return v.Inputs
	default:
		return nil
	}
}

func describePlanNode(n planner.Node) string {
	switch v := n.(type) {
	case *planner.AllNodesScan:
		return fmt.Sprintf("AllNodesScan(%s)", v.Var)
	case *planner.NodeByLabelScan:
		return fmt.Sprintf("NodeByLabelScan(%s, label=%d)", v.Var, v.LabelID)
	case *planner.NodeByLabelIntersect:
		return fmt.Sprintf("NodeByLabelIntersect(%s, labels=%v)", v.Var, v.LabelIDs)
	case *planner.NodeByPropertyExact:
		return fmt.Sprintf("NodeByPropertyExact(%s, label=%d, key=%d)", v.Var, v.LabelID, v.KeyID)
	case *planner.NodeByPropertyRange:
		return fmt.Sprintf("NodeByPropertyRange(%s, label=%d, key=%d)", v.Var, v.LabelID, v.KeyID)
	case *planner.Expand:
		return fmt.Sprintf("Expand(%s -[%s]-> %s)", v.FromVar, v.RelVar, v.ToVar)
	case *planner.Filter:
		return "Filter"
	case *planner.LabelFilter:
		return fmt.Sprintf("LabelFilter(%s, labels=%v)", v.Var, v.LabelIDs)
	case *planner.CrossJoin:
		return "CrossJoin"
	case *planner.PassThroughVar:
		return fmt.Sprintf("PassThroughVar(%s)", v.Var)
	case *planner.Project:
		return fmt.Sprintf("Project(%d items, distinct=%v)", len(v.Items), v.Distinct)
	case *planner.OrderBy:
		return fmt.Sprintf("OrderBy(%d keys)", len(v.Items))
	case *planner.Skip:
		return "Skip"
	case *planner.Limit:
		return "Limit"
	case *planner.Unwind:
		return fmt.Sprintf("Unwind(%s)", v.Var)
	case *planner.Aggregate:
		return fmt.Sprintf("Aggregate(%d groups, %d items)", len(v.GroupExprs), len(v.Items))
	case *planner.CountStarFastPath:
		return fmt.Sprintf("CountStarFastPath(hasLabel=%v)", v.HasLabel)
	case *planner.Distinct:
		return "Distinct"
	case *planner.Create:
		return fmt.Sprintf("Create(%d nodes, %d rels)", len(v.Nodes), len(v.Rels))
	case *planner.SetOp:
		return fmt.Sprintf("Set(%d props, %d labels)", len(v.Properties), len(v.Labels))
	case *planner.RemoveOp:
		return fmt.Sprintf("Remove(%d props, %d labels)", len(v.Properties), len(v.Labels))
	case *planner.DeleteOp:
		return fmt.Sprintf("Delete(%v, detach=%v)", v.Vars, v.Detach)
	case *planner.Merge:
		return "Merge"
	case *planner.ForeachOp:
		return fmt.Sprintf("Foreach(%s)", v.Var)
	case *planner.CallOp:
		return fmt.Sprintf("Call(%s)", v.Procedure)
	case *planner.UnionOp:
		return fmt.Sprintf("Union(all=%v, %d branches)", v.All, len(v.Inputs))
	default:
		return fmt.Sprintf("%T", n)
	}
}
