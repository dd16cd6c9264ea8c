package cypher

import (
	"strconv"

	"github.com/graphdb/core/internal/graphdberr"
)

// Parser parses Cypher query text into a Statement, using a
// current/peeked token-buffer shape over the full clause and expression
// grammar.
type Parser struct {
	lexer   *Lexer
	current Token
	peeked  *Token
}

// NewParser creates a Parser over input.
func NewParser(input string) *Parser {
	return &Parser{lexer: NewLexer(input)}
}

// Parse parses one statement (a clause sequence or an administrative
// statement) and requires the input be fully consumed.
func (p *Parser) Parse() (*Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.Type == TokenEOF {
		return nil, graphdberr.New(graphdberr.KindCypherSyntax, "empty query")
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if p.current.Type == TokenSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.current.Type != TokenEOF {
		return nil, p.errorf("unexpected token %q (expected end of query)", p.current.Text)
	}
	return stmt, nil
}

func (p *Parser) advance() error {
	if p.peeked != nil {
		p.current = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *Parser) peekTok() (Token, error) {
	if p.peeked != nil {
		return *p.peeked, nil
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		return Token{}, err
	}
	p.peeked = &tok
	return tok, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return graphdberr.AtPosition(graphdberr.KindCypherSyntax, p.current.Line, p.current.Col, format, args...)
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if p.current.Type != tt {
		return Token{}, p.errorf("expected %s, found %q", what, p.current.Text)
	}
	tok := p.current
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return tok, nil
}

func (p *Parser) parseStatement() (*Statement, error) {
	switch p.current.Type {
	case TokenCreate:
		if admin, ok, err := p.tryParseCreateAdmin(); err != nil || ok {
			return &Statement{Admin: admin}, err
		}
	case TokenDrop:
		admin, err := p.parseDropAdmin()
		return &Statement{Admin: admin}, err
	case TokenShow:
		admin, err := p.parseShowAdmin()
		return &Statement{Admin: admin}, err
	case TokenAlter:
		admin, err := p.parseAlterAdmin()
		return &Statement{Admin: admin}, err
	case TokenBegin:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type == TokenTransaction {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &Statement{Admin: &BeginTransactionStmt{}}, nil
	case TokenCommit:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type == TokenTransaction {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &Statement{Admin: &CommitTransactionStmt{}}, nil
	case TokenRollback:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type == TokenTransaction {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &Statement{Admin: &RollbackTransactionStmt{}}, nil
	}

	clauses, err := p.parseClauses()
	if err != nil {
		return nil, err
	}
	return &Statement{Clauses: clauses}, nil
}

func (p *Parser) parseClauses() ([]Clause, error) {
	var clauses []Clause
	for {
		switch p.current.Type {
		case TokenEOF, TokenSemicolon:
			return clauses, nil
		case TokenUse:
			c, err := p.parseUseDatabase()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenMatch, TokenOptional:
			c, err := p.parseMatch()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenCreate:
			c, err := p.parseCreate()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenMerge:
			c, err := p.parseMerge()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenSet:
			c, err := p.parseSet()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenRemove:
			c, err := p.parseRemove()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenDetach, TokenDelete:
			c, err := p.parseDelete()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenWith:
			c, err := p.parseWith()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenReturn:
			c, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenUnwind:
			c, err := p.parseUnwind()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenUnion:
			c, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenCall:
			c, err := p.parseCall()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenForeach:
			c, err := p.parseForeach()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		case TokenLoad:
			c, err := p.parseLoadCsv()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		default:
			return nil, p.errorf("unexpected token %q starting a clause", p.current.Text)
		}
	}
}

func (p *Parser) parseUseDatabase() (Clause, error) {
	if _, err := p.expect(TokenUse, "USE"); err != nil {
		return nil, err
	}
	if p.current.Type == TokenDatabase {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	name, err := p.expect(TokenIdent, "database name")
	if err != nil {
		return nil, err
	}
	return &UseDatabaseClause{Name: name.Text}, nil
}

func (p *Parser) parseMatch() (Clause, error) {
	optional := false
	if p.current.Type == TokenOptional {
		optional = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenMatch, "MATCH"); err != nil {
		return nil, err
	}
	pattern, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	var where Expr
	if p.current.Type == TokenWhere {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &MatchClause{Optional: optional, Pattern: pattern, Where: where}, nil
}

func (p *Parser) parseCreate() (Clause, error) {
	if _, err := p.expect(TokenCreate, "CREATE"); err != nil {
		return nil, err
	}
	pattern, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	return &CreateClause{Pattern: pattern}, nil
}

func (p *Parser) parseMerge() (Clause, error) {
	if _, err := p.expect(TokenMerge, "MERGE"); err != nil {
		return nil, err
	}
	pattern, err := p.parsePatternElement()
	if err != nil {
		return nil, err
	}
	clause := &MergeClause{Pattern: pattern}
	for p.current.Type == TokenOn {
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch p.current.Type {
		case TokenCreate:
			if err := p.advance(); err != nil {
				return nil, err
			}
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			clause.OnCreate = items
		case TokenMatch:
			if err := p.advance(); err != nil {
				return nil, err
			}
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			clause.OnMatch = items
		default:
			return nil, p.errorf("expected CREATE or MATCH after ON")
		}
	}
	return clause, nil
}

func (p *Parser) parseSet() (Clause, error) {
	if _, err := p.expect(TokenSet, "SET"); err != nil {
		return nil, err
	}
	items, err := p.parseSetItems()
	if err != nil {
		return nil, err
	}
	return &SetClause{Items: items}, nil
}

func (p *Parser) parseSetItems() ([]SetItem, error) {
	var items []SetItem
	for {
		item, err := p.parseSetItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (p *Parser) parseSetItem() (SetItem, error) {
	varName, err := p.expect(TokenIdent, "identifier")
	if err != nil {
		return SetItem{}, err
	}
	if p.current.Type == TokenColon {
		var labels []string
		for p.current.Type == TokenColon {
			if err := p.advance(); err != nil {
				return SetItem{}, err
			}
			lbl, err := p.expect(TokenIdent, "label")
			if err != nil {
				return SetItem{}, err
			}
			labels = append(labels, lbl.Text)
		}
		return SetItem{Target: &VarRef{Name: varName.Text}, Labels: labels, IsLabel: true}, nil
	}

	var target Expr = &VarRef{Name: varName.Text}
	if p.current.Type == TokenDot {
		if err := p.advance(); err != nil {
			return SetItem{}, err
		}
		key, err := p.expect(TokenIdent, "property key")
		if err != nil {
			return SetItem{}, err
		}
		target = &PropertyAccess{Target: target, Key: key.Text}
	}

	append_ := false
	if p.current.Type == TokenPlus {
		if err := p.advance(); err != nil {
			return SetItem{}, err
		}
		append_ = true
	}
	if _, err := p.expect(TokenEquals, "'='"); err != nil {
		return SetItem{}, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return SetItem{}, err
	}
	return SetItem{Target: target, Value: value, IsAppend: append_}, nil
}

func (p *Parser) parseRemove() (Clause, error) {
	if _, err := p.expect(TokenRemove, "REMOVE"); err != nil {
		return nil, err
	}
	var items []RemoveItem
	for {
		varName, err := p.expect(TokenIdent, "identifier")
		if err != nil {
			return nil, err
		}
		if p.current.Type == TokenColon {
			var labels []string
			for p.current.Type == TokenColon {
				if err := p.advance(); err != nil {
					return nil, err
				}
				lbl, err := p.expect(TokenIdent, "label")
				if err != nil {
					return nil, err
				}
				labels = append(labels, lbl.Text)
			}
			items = append(items, RemoveItem{Var: varName.Text, Labels: labels})
		} else {
			if _, err := p.expect(TokenDot, "'.'"); err != nil {
				return nil, err
			}
			key, err := p.expect(TokenIdent, "property key")
			if err != nil {
				return nil, err
			}
			items = append(items, RemoveItem{Target: &PropertyAccess{Target: &VarRef{Name: varName.Text}, Key: key.Text}})
		}
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &RemoveClause{Items: items}, nil
}

func (p *Parser) parseDelete() (Clause, error) {
	detach := false
	if p.current.Type == TokenDetach {
		detach = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenDelete, "DELETE"); err != nil {
		return nil, err
	}
	var items []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &DeleteClause{Detach: detach, Items: items}, nil
}

func (p *Parser) parseWith() (Clause, error) {
	if _, err := p.expect(TokenWith, "WITH"); err != nil {
		return nil, err
	}
	distinct := false
	if p.current.Type == TokenDistinct {
		distinct = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause := &WithClause{Items: items, Distinct: distinct}
	if p.current.Type == TokenWhere {
		if err := p.advance(); err != nil {
			return nil, err
		}
		clause.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.parseOrderSkipLimitInto(&clause.OrderBy, &clause.Skip, &clause.Limit); err != nil {
		return nil, err
	}
	return clause, nil
}

func (p *Parser) parseReturn() (Clause, error) {
	if _, err := p.expect(TokenReturn, "RETURN"); err != nil {
		return nil, err
	}
	distinct := false
	if p.current.Type == TokenDistinct {
		distinct = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause := &ReturnClause{Items: items, Distinct: distinct}
	if err := p.parseOrderSkipLimitInto(&clause.OrderBy, &clause.Skip, &clause.Limit); err != nil {
		return nil, err
	}
	return clause, nil
}

func (p *Parser) parseReturnItems() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		if p.current.Type == TokenStar {
			if err := p.advance(); err != nil {
				return nil, err
			}
			items = append(items, ReturnItem{Star: true})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			alias := ""
			if p.current.Type == TokenAs {
				if err := p.advance(); err != nil {
					return nil, err
				}
				name, err := p.expect(TokenIdent, "alias")
				if err != nil {
					return nil, err
				}
				alias = name.Text
			}
			items = append(items, ReturnItem{Expr: e, Alias: alias})
		}
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (p *Parser) parseOrderSkipLimitInto(orderBy *[]OrderItem, skip, limit *Expr) error {
	if p.current.Type == TokenOrder {
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.expect(TokenBy, "BY"); err != nil {
			return err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			desc := false
			if p.current.Type == TokenAsc {
				if err := p.advance(); err != nil {
					return err
				}
			} else if p.current.Type == TokenDesc {
				desc = true
				if err := p.advance(); err != nil {
					return err
				}
			}
			*orderBy = append(*orderBy, OrderItem{Expr: e, Desc: desc})
			if p.current.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return err
			}
		}
	}
	if p.current.Type == TokenSkip {
		if err := p.advance(); err != nil {
			return err
		}
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*skip = e
	}
	if p.current.Type == TokenLimit {
		if err := p.advance(); err != nil {
			return err
		}
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*limit = e
	}
	return nil
}

func (p *Parser) parseUnwind() (Clause, error) {
	if _, err := p.expect(TokenUnwind, "UNWIND"); err != nil {
		return nil, err
	}
	list, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAs, "AS"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "variable")
	if err != nil {
		return nil, err
	}
	return &UnwindClause{List: list, As: name.Text}, nil
}

func (p *Parser) parseUnion() (Clause, error) {
	if _, err := p.expect(TokenUnion, "UNION"); err != nil {
		return nil, err
	}
	all := false
	if p.current.Type == TokenAll {
		all = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &UnionClause{All: all}, nil
}

func (p *Parser) parseCall() (Clause, error) {
	if _, err := p.expect(TokenCall, "CALL"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "procedure name")
	if err != nil {
		return nil, err
	}
	proc := name.Text
	for p.current.Type == TokenDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		part, err := p.expect(TokenIdent, "procedure name segment")
		if err != nil {
			return nil, err
		}
		proc += "." + part.Text
	}

	var args []Expr
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return nil, err
	}
	if p.current.Type != TokenRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.current.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokenRParen, "')'"); err != nil {
		return nil, err
	}

	var yield []string
	if p.current.Type == TokenYield {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			name, err := p.expect(TokenIdent, "yielded name")
			if err != nil {
				return nil, err
			}
			yield = append(yield, name.Text)
			if p.current.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return &CallClause{Procedure: proc, Args: args, Yield: yield}, nil
}

func (p *Parser) parseForeach() (Clause, error) {
	if _, err := p.expect(TokenForeach, "FOREACH"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenIn, "IN"); err != nil {
		return nil, err
	}
	list, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenPipe, "'|'"); err != nil {
		return nil, err
	}
	body, err := p.parseClauses()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, "')'"); err != nil {
		return nil, err
	}
	return &ForeachClause{Var: name.Text, List: list, Body: body}, nil
}

func (p *Parser) parseLoadCsv() (Clause, error) {
	if _, err := p.expect(TokenLoad, "LOAD"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenCsv, "CSV"); err != nil {
		return nil, err
	}
	withHeaders := false
	if p.current.Type == TokenWith {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenHeaders, "HEADERS"); err != nil {
			return nil, err
		}
		withHeaders = true
	}
	if _, err := p.expect(TokenIdent, "FROM"); err != nil { // FROM is not reserved elsewhere; matched as ident
		return nil, err
	}
	url, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	fieldTerm := ","
	if p.current.Type == TokenFieldTerminator {
		if err := p.advance(); err != nil {
			return nil, err
		}
		term, err := p.expect(TokenString, "field terminator string")
		if err != nil {
			return nil, err
		}
		fieldTerm = term.Text
	}
	if _, err := p.expect(TokenAs, "AS"); err != nil {
		return nil, err
	}
	varName, err := p.expect(TokenIdent, "variable")
	if err != nil {
		return nil, err
	}
	return &LoadCsvClause{URL: url, WithHeaders: withHeaders, FieldTerminator: fieldTerm, As: varName.Text}, nil
}

// --- Patterns ---

func (p *Parser) parsePatternList() ([]PatternElement, error) {
	var elems []PatternElement
	for {
		e, err := p.parsePatternElement()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return elems, nil
}

func (p *Parser) parsePatternElement() (PatternElement, error) {
	var variable string
	// A leading `name = (pattern)` path-variable assignment.
	if p.current.Type == TokenIdent {
		next, err := p.peekTok()
		if err != nil {
			return PatternElement{}, err
		}
		if next.Type == TokenEquals {
			variable = p.current.Text
			if err := p.advance(); err != nil {
				return PatternElement{}, err
			}
			if err := p.advance(); err != nil {
				return PatternElement{}, err
			}
		}
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return PatternElement{}, err
	}
	elem := PatternElement{Variable: variable, Nodes: []NodePattern{node}}

	for p.current.Type == TokenDash || p.current.Type == TokenArrowLeft {
		rel, err := p.parseRelPattern()
		if err != nil {
			return PatternElement{}, err
		}
		n, err := p.parseNodePattern()
		if err != nil {
			return PatternElement{}, err
		}
		elem.Rels = append(elem.Rels, rel)
		elem.Nodes = append(elem.Nodes, n)
	}
	return elem, nil
}

func (p *Parser) parseNodePattern() (NodePattern, error) {
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return NodePattern{}, err
	}
	var n NodePattern
	if p.current.Type == TokenIdent {
		n.Variable = p.current.Text
		if err := p.advance(); err != nil {
			return NodePattern{}, err
		}
	}
	for p.current.Type == TokenColon {
		if err := p.advance(); err != nil {
			return NodePattern{}, err
		}
		lbl, err := p.expect(TokenIdent, "label")
		if err != nil {
			return NodePattern{}, err
		}
		n.Labels = append(n.Labels, lbl.Text)
	}
	if p.current.Type == TokenLBrace {
		m, err := p.parseMapLiteral()
		if err != nil {
			return NodePattern{}, err
		}
		n.Properties = m
	}
	if _, err := p.expect(TokenRParen, "')'"); err != nil {
		return NodePattern{}, err
	}
	return n, nil
}

func (p *Parser) parseRelPattern() (RelPattern, error) {
	var rel RelPattern
	leftArrow := false
	if p.current.Type == TokenArrowLeft {
		leftArrow = true
		if err := p.advance(); err != nil {
			return RelPattern{}, err
		}
	} else {
		if _, err := p.expect(TokenDash, "'-'"); err != nil {
			return RelPattern{}, err
		}
	}

	if p.current.Type == TokenLBracket {
		if err := p.advance(); err != nil {
			return RelPattern{}, err
		}
		if p.current.Type == TokenIdent {
			rel.Variable = p.current.Text
			if err := p.advance(); err != nil {
				return RelPattern{}, err
			}
		}
		for p.current.Type == TokenColon {
			if err := p.advance(); err != nil {
				return RelPattern{}, err
			}
			t, err := p.expect(TokenIdent, "relationship type")
			if err != nil {
				return RelPattern{}, err
			}
			rel.Types = append(rel.Types, t.Text)
			for p.current.Type == TokenPipe {
				if err := p.advance(); err != nil {
					return RelPattern{}, err
				}
				t, err := p.expect(TokenIdent, "relationship type")
				if err != nil {
					return RelPattern{}, err
				}
				rel.Types = append(rel.Types, t.Text)
			}
		}
		if p.current.Type == TokenStar {
			rel.VarLength = true
			if err := p.advance(); err != nil {
				return RelPattern{}, err
			}
			if p.current.Type == TokenInt {
				min, _ := strconv.Atoi(p.current.Text)
				rel.MinHops = &min
				if err := p.advance(); err != nil {
					return RelPattern{}, err
				}
			}
			if p.current.Type == TokenDotDot {
				if err := p.advance(); err != nil {
					return RelPattern{}, err
				}
				if p.current.Type == TokenInt {
					max, _ := strconv.Atoi(p.current.Text)
					rel.MaxHops = &max
					if err := p.advance(); err != nil {
						return RelPattern{}, err
					}
				}
			}
		}
		if p.current.Type == TokenLBrace {
			m, err := p.parseMapLiteral()
			if err != nil {
				return RelPattern{}, err
			}
			rel.Properties = m
		}
		if _, err := p.expect(TokenRBracket, "']'"); err != nil {
			return RelPattern{}, err
		}
	}

	rightArrow := false
	if p.current.Type == TokenArrowRight {
		rightArrow = true
		if err := p.advance(); err != nil {
			return RelPattern{}, err
		}
	} else {
		if _, err := p.expect(TokenDash, "'-'"); err != nil {
			return RelPattern{}, err
		}
	}

	switch {
	case leftArrow && !rightArrow:
		rel.Direction = DirLeft
	case rightArrow && !leftArrow:
		rel.Direction = DirRight
	default:
		rel.Direction = DirNone
	}
	return rel, nil
}

func (p *Parser) parseMapLiteral() (*MapLiteral, error) {
	if _, err := p.expect(TokenLBrace, "'{'"); err != nil {
		return nil, err
	}
	m := &MapLiteral{}
	for p.current.Type != TokenRBrace {
		key, err := p.expect(TokenIdent, "map key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key.Text)
		m.Values = append(m.Values, val)
		if p.current.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenRBrace, "'}'"); err != nil {
		return nil, err
	}
	return m, nil
}

// --- Administrative statements ---

func (p *Parser) tryParseCreateAdmin() (AdminStatement, bool, error) {
	next, err := p.peekTok()
	if err != nil {
		return nil, false, err
	}
	switch next.Type {
	case TokenDatabase:
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		name, err := p.expect(TokenIdent, "database name")
		if err != nil {
			return nil, false, err
		}
		return &CreateDatabaseStmt{Name: name.Text}, true, nil
	case TokenIndex:
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		label, key, err := p.parseForLabelKey()
		if err != nil {
			return nil, false, err
		}
		return &CreateIndexStmt{Label: label, Key: key}, true, nil
	case TokenConstraint:
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		stmt, err := p.parseConstraintBody(false)
		return stmt, true, err
	}
	return nil, false, nil
}

func (p *Parser) parseDropAdmin() (AdminStatement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch p.current.Type {
	case TokenDatabase:
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expect(TokenIdent, "database name")
		if err != nil {
			return nil, err
		}
		return &DropDatabaseStmt{Name: name.Text}, nil
	case TokenIndex:
		if err := p.advance(); err != nil {
			return nil, err
		}
		label, key, err := p.parseOnLabelKey()
		if err != nil {
			return nil, err
		}
		return &DropIndexStmt{Label: label, Key: key}, nil
	case TokenConstraint:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseConstraintBody(true)
	}
	return nil, p.errorf("expected DATABASE, INDEX, or CONSTRAINT after DROP")
}

func (p *Parser) parseShowAdmin() (AdminStatement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenDatabases, "DATABASES"); err != nil {
		return nil, err
	}
	return &ShowDatabasesStmt{}, nil
}

func (p *Parser) parseAlterAdmin() (AdminStatement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenDatabase, "DATABASE"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "database name")
	if err != nil {
		return nil, err
	}
	stmt := &AlterDatabaseStmt{Name: name.Text, Options: map[string]Expr{}}
	if p.current.Type == TokenSet {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			key, err := p.expect(TokenIdent, "option name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenEquals, "'='"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Options[key.Text] = val
			if p.current.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return stmt, nil
}

// parseForLabelKey parses `ON :Label(key)` for CREATE INDEX/CONSTRAINT.
func (p *Parser) parseForLabelKey() (string, string, error) {
	return p.parseOnLabelKey()
}

func (p *Parser) parseOnLabelKey() (string, string, error) {
	if _, err := p.expect(TokenOn, "ON"); err != nil {
		return "", "", err
	}
	if _, err := p.expect(TokenColon, "':'"); err != nil {
		return "", "", err
	}
	label, err := p.expect(TokenIdent, "label")
	if err != nil {
		return "", "", err
	}
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return "", "", err
	}
	key, err := p.expect(TokenIdent, "property key")
	if err != nil {
		return "", "", err
	}
	if _, err := p.expect(TokenRParen, "')'"); err != nil {
		return "", "", err
	}
	return label.Text, key.Text, nil
}

func (p *Parser) parseConstraintBody(isDrop bool) (AdminStatement, error) {
	label, key, err := p.parseOnLabelKey()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAssert, "ASSERT"); err != nil {
		return nil, err
	}
	unique := true
	switch p.current.Type {
	case TokenUnique:
		if err := p.advance(); err != nil {
			return nil, err
		}
	case TokenExists:
		unique = false
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenLParen, "'('"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf("expected UNIQUE or EXISTS after ASSERT")
	}
	if isDrop {
		return &DropConstraintStmt{Label: label, Key: key, Unique: unique}, nil
	}
	return &CreateConstraintStmt{Label: label, Key: key, Unique: unique}, nil
}
