package cypher

import "strings"

// ReadOnly reports whether every clause in the statement only reads:
// no CREATE/MERGE/SET/REMOVE/DELETE/FOREACH/LOAD CSV clause and no
// administrative statement (CREATE/DROP DATABASE, CREATE/DROP INDEX,
// CREATE/DROP CONSTRAINT). CALL is treated conservatively as a write,
// since a user-registered procedure is not guaranteed to be read-only
// the way the built-in db.*/spatial.* procedures are. The engine uses
// this to decide whether a statement needs its own write transaction or
// can run against a plain read snapshot.
func (s *Statement) ReadOnly() bool {
	if s.Admin != nil {
		return false
	}
	for _, c := range s.Clauses {
		switch c.(type) {
		case *CreateClause, *MergeClause, *SetClause, *RemoveClause,
			*DeleteClause, *ForeachClause, *LoadCsvClause, *CallClause:
			return false
		}
	}
	return true
}

// Canonicalize collapses insignificant whitespace so that two queries
// differing only in formatting share one plan cache entry.
func Canonicalize(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
