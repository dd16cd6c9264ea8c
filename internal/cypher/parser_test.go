package cypher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Statement {
	t.Helper()
	p := NewParser(src)
	stmt, err := p.Parse()
	require.NoError(t, err, "query: %s", src)
	require.NotNil(t, stmt)
	return stmt
}

func TestParseSimpleMatchReturn(t *testing.T) {
	stmt := mustParse(t, `MATCH (n:Person) WHERE n.age > 21 RETURN n.name AS name ORDER BY name LIMIT 10`)
	require.Len(t, stmt.Clauses, 2)

	match, ok := stmt.Clauses[0].(*MatchClause)
	require.True(t, ok)
	require.False(t, match.Optional)
	require.Len(t, match.Pattern, 1)
	require.Equal(t, []string{"Person"}, match.Pattern[0].Nodes[0].Labels)
	require.NotNil(t, match.Where)

	ret, ok := stmt.Clauses[1].(*ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.Items, 1)
	require.Equal(t, "name", ret.Items[0].Alias)
	require.Len(t, ret.OrderBy, 1)
	require.NotNil(t, ret.Limit)
}

func TestParseOptionalMatchWithRelationshipPattern(t *testing.T) {
	stmt := mustParse(t, `OPTIONAL MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a, r, b`)
	match := stmt.Clauses[0].(*MatchClause)
	require.True(t, match.Optional)
	require.Len(t, match.Pattern[0].Nodes, 2)
	require.Len(t, match.Pattern[0].Rels, 1)
	rel := match.Pattern[0].Rels[0]
	require.Equal(t, DirRight, rel.Direction)
	require.Equal(t, []string{"KNOWS"}, rel.Types)
}

func TestParseVariableLengthRelationship(t *testing.T) {
	stmt := mustParse(t, `MATCH (a)-[:KNOWS*1..3]->(b) RETURN b`)
	match := stmt.Clauses[0].(*MatchClause)
	rel := match.Pattern[0].Rels[0]
	require.True(t, rel.VarLength)
	require.NotNil(t, rel.MinHops)
	require.Equal(t, 1, *rel.MinHops)
	require.NotNil(t, rel.MaxHops)
	require.Equal(t, 3, *rel.MaxHops)
}

func TestParseCreateWithProperties(t *testing.T) {
	stmt := mustParse(t, `CREATE (n:Person {name: "Ada", age: 36})`)
	create := stmt.Clauses[0].(*CreateClause)
	props := create.Pattern[0].Nodes[0].Properties
	require.NotNil(t, props)
	require.Equal(t, []string{"name", "age"}, props.Keys)
}

func TestParseMergeOnCreateOnMatch(t *testing.T) {
	stmt := mustParse(t, `MERGE (n:Person {name: "Ada"}) ON CREATE SET n.created = true ON MATCH SET n.seen = n.seen + 1`)
	merge := stmt.Clauses[0].(*MergeClause)
	require.Len(t, merge.OnCreate, 1)
	require.Len(t, merge.OnMatch, 1)
}

func TestParseSetLabelAndRemoveLabel(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) SET n:Active REMOVE n:Pending RETURN n`)
	set := stmt.Clauses[1].(*SetClause)
	require.True(t, set.Items[0].IsLabel)
	require.Equal(t, []string{"Active"}, set.Items[0].Labels)

	remove := stmt.Clauses[2].(*RemoveClause)
	require.Equal(t, []string{"Pending"}, remove.Items[0].Labels)
}

func TestParseDetachDelete(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) DETACH DELETE n`)
	del := stmt.Clauses[1].(*DeleteClause)
	require.True(t, del.Detach)
	require.Len(t, del.Items, 1)
}

func TestParseWithDistinctWhere(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) WITH DISTINCT n.age AS age WHERE age > 0 RETURN age`)
	with := stmt.Clauses[1].(*WithClause)
	require.True(t, with.Distinct)
	require.NotNil(t, with.Where)
}

func TestParseUnwind(t *testing.T) {
	stmt := mustParse(t, `UNWIND [1, 2, 3] AS x RETURN x`)
	unwind := stmt.Clauses[0].(*UnwindClause)
	require.Equal(t, "x", unwind.As)
	list, ok := unwind.List.(*ListLiteral)
	require.True(t, ok)
	require.Len(t, list.Items, 3)
}

func TestParseUnion(t *testing.T) {
	stmt := mustParse(t, `MATCH (n:A) RETURN n.name AS name UNION ALL MATCH (n:B) RETURN n.name AS name`)
	require.Len(t, stmt.Clauses, 5)
	union := stmt.Clauses[2].(*UnionClause)
	require.True(t, union.All)
}

func TestParseCallYield(t *testing.T) {
	stmt := mustParse(t, `CALL db.labels() YIELD label RETURN label`)
	call := stmt.Clauses[0].(*CallClause)
	require.Equal(t, "db.labels", call.Procedure)
	require.Equal(t, []string{"label"}, call.Yield)
}

func TestParseForeach(t *testing.T) {
	stmt := mustParse(t, `FOREACH (x IN [1, 2] | CREATE (n {v: x}))`)
	fe := stmt.Clauses[0].(*ForeachClause)
	require.Equal(t, "x", fe.Var)
	require.Len(t, fe.Body, 1)
}

func TestParseExpressionPrecedence(t *testing.T) {
	stmt := mustParse(t, `RETURN 1 + 2 * 3 = 7 AND NOT false OR true`)
	ret := stmt.Clauses[0].(*ReturnClause)
	// OR at the top.
	orExpr, ok := ret.Items[0].Expr.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TokenOr, orExpr.Op)
}

func TestParseIsNullAndIn(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) WHERE n.age IS NOT NULL AND n.age IN [1, 2, 3] RETURN n`)
	match := stmt.Clauses[0].(*MatchClause)
	and, ok := match.Where.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TokenAnd, and.Op)
	isNull, ok := and.Left.(*IsNullExpr)
	require.True(t, ok)
	require.True(t, isNull.Not)
	inExpr, ok := and.Right.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TokenIn, inExpr.Op)
}

func TestParseStartsWithEndsWithContains(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) WHERE n.name STARTS WITH "A" AND n.name ENDS WITH "z" AND n.name CONTAINS "d" RETURN n`)
	match := stmt.Clauses[0].(*MatchClause)
	require.NotNil(t, match.Where)
}

func TestParseCaseExpression(t *testing.T) {
	stmt := mustParse(t, `RETURN CASE WHEN true THEN 1 ELSE 0 END AS x`)
	ret := stmt.Clauses[0].(*ReturnClause)
	ce, ok := ret.Items[0].Expr.(*CaseExpr)
	require.True(t, ok)
	require.Nil(t, ce.Test)
	require.Len(t, ce.Whens, 1)
	require.NotNil(t, ce.Else)
}

func TestParseListComprehension(t *testing.T) {
	stmt := mustParse(t, `RETURN [x IN [1, 2, 3] WHERE x > 1 | x * 2] AS doubled`)
	ret := stmt.Clauses[0].(*ReturnClause)
	lc, ok := ret.Items[0].Expr.(*ListComprehension)
	require.True(t, ok)
	require.Equal(t, "x", lc.Var)
	require.NotNil(t, lc.Where)
	require.NotNil(t, lc.Map)
}

func TestParseMapProjection(t *testing.T) {
	stmt := mustParse(t, `MATCH (n:Person) RETURN n {.name, .age, extra: 1} AS proj`)
	ret := stmt.Clauses[1].(*ReturnClause)
	proj, ok := ret.Items[0].Expr.(*MapProjection)
	require.True(t, ok)
	require.Len(t, proj.Items, 3)
}

func TestParseFunctionCallAndIndexSlice(t *testing.T) {
	stmt := mustParse(t, `RETURN size(collect(n)[0..2]) AS s`)
	ret := stmt.Clauses[0].(*ReturnClause)
	fn, ok := ret.Items[0].Expr.(*FunctionCall)
	require.True(t, ok)
	require.Equal(t, "size", fn.Name)
	_, ok = fn.Args[0].(*SliceAccess)
	require.True(t, ok)
}

func TestParseCreateIndexAndConstraint(t *testing.T) {
	stmt := mustParse(t, `CREATE INDEX ON :Person(name)`)
	idx, ok := stmt.Admin.(*CreateIndexStmt)
	require.True(t, ok)
	require.Equal(t, "Person", idx.Label)
	require.Equal(t, "name", idx.Key)

	stmt = mustParse(t, `CREATE CONSTRAINT ON :Person(email) ASSERT UNIQUE`)
	c, ok := stmt.Admin.(*CreateConstraintStmt)
	require.True(t, ok)
	require.True(t, c.Unique)

	stmt = mustParse(t, `DROP CONSTRAINT ON :Person(email) ASSERT EXISTS()`)
	d, ok := stmt.Admin.(*DropConstraintStmt)
	require.True(t, ok)
	require.False(t, d.Unique)
}

func TestParseDatabaseAdmin(t *testing.T) {
	stmt := mustParse(t, `CREATE DATABASE analytics`)
	c, ok := stmt.Admin.(*CreateDatabaseStmt)
	require.True(t, ok)
	require.Equal(t, "analytics", c.Name)

	stmt = mustParse(t, `SHOW DATABASES`)
	_, ok = stmt.Admin.(*ShowDatabasesStmt)
	require.True(t, ok)

	stmt = mustParse(t, `USE DATABASE analytics`)
	u, ok := stmt.Clauses[0].(*UseDatabaseClause)
	require.True(t, ok)
	require.Equal(t, "analytics", u.Name)
}

func TestParseTransactionStatements(t *testing.T) {
	stmt := mustParse(t, `BEGIN TRANSACTION`)
	_, ok := stmt.Admin.(*BeginTransactionStmt)
	require.True(t, ok)

	stmt = mustParse(t, `COMMIT`)
	_, ok = stmt.Admin.(*CommitTransactionStmt)
	require.True(t, ok)

	stmt = mustParse(t, `ROLLBACK TRANSACTION`)
	_, ok = stmt.Admin.(*RollbackTransactionStmt)
	require.True(t, ok)
}

func TestParseSyntaxErrorReportsPosition(t *testing.T) {
	p := NewParser(`MATCH (n RETURN n`)
	_, err := p.Parse()
	require.Error(t, err)
}

func TestParseParameterReference(t *testing.T) {
	stmt := mustParse(t, `MATCH (n:Person {name: $name}) RETURN n`)
	match := stmt.Clauses[0].(*MatchClause)
	props := match.Pattern[0].Nodes[0].Properties
	param, ok := props.Values[0].(*ParamRef)
	require.True(t, ok)
	require.Equal(t, "name", param.Name)
}

func TestParseUndirectedRelationship(t *testing.T) {
	stmt := mustParse(t, `MATCH (a)-[r:KNOWS]-(b) RETURN r`)
	match := stmt.Clauses[0].(*MatchClause)
	require.Equal(t, DirNone, match.Pattern[0].Rels[0].Direction)
}
