// Package query parses a small SQL dialect into predicates:
//
//	SELECT * FROM world WHERE kind = 'ship' AND x BETWEEN 10 AND 20 LIMIT 5 OFFSET 10
//
// The WHERE grammar supports OR, AND, NOT, parentheses, the comparisons
// = != < <= > >= and BETWEEN, TRUE/FALSE, numbers and quoted strings.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"spatialdb/pkg/predicate"
)

// SelectStmt represents a parsed SELECT * FROM table statement.
type SelectStmt struct {
	Table  string
	Where  predicate.Predicate // nil when there is no WHERE
	Limit  int                 // -1 when absent
	Offset int
}

var selectRe = regexp.MustCompile(`(?is)^SELECT\s+\*\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)(?:\s+WHERE\s+(.+?))?(?:\s+LIMIT\s+(\d+))?(?:\s+OFFSET\s+(\d+))?\s*$`)

// Parse parses a SELECT statement. Table name must be a valid identifier.
func Parse(s string) (*SelectStmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}

	matches := selectRe.FindStringSubmatch(orig)
	if matches == nil {
		return nil, errors.New("syntax: expected SELECT * FROM <table> [WHERE <expr>] [LIMIT <n>] [OFFSET <n>]")
	}

	stmt := &SelectStmt{
		Table: matches[1],
		Limit: -1,
	}
	if matches[2] != "" {
		where, err := ParseWhere(matches[2])
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	if matches[3] != "" {
		n, err := strconv.Atoi(matches[3])
		if err != nil {
			return nil, errors.New("invalid LIMIT value")
		}
		stmt.Limit = n
	}
	if matches[4] != "" {
		n, err := strconv.Atoi(matches[4])
		if err != nil {
			return nil, errors.New("invalid OFFSET value")
		}
		stmt.Offset = n
	}
	return stmt, nil
}

// ParseWhere parses a bare boolean expression.
func ParseWhere(s string) (predicate.Predicate, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return expr, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// keyword consumes the next token if it is the given keyword.
func (p *parser) keyword(kw string) bool {
	if t := p.peek(); t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.i++
		return true
	}
	return false
}

func (p *parser) or() (predicate.Predicate, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	args := []predicate.Predicate{left}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return predicate.OR(args...), nil
}

func (p *parser) and() (predicate.Predicate, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	args := []predicate.Predicate{left}
	for p.keyword("AND") {
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return predicate.AND(args...), nil
}

func (p *parser) not() (predicate.Predicate, error) {
	if p.keyword("NOT") {
		arg, err := p.not()
		if err != nil {
			return nil, err
		}
		return predicate.NOT(arg), nil
	}
	return p.primary()
}

func (p *parser) primary() (predicate.Predicate, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		expr, err := p.or()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d", c.pos)
		}
		return expr, nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			return predicate.True{}, nil
		case "FALSE":
			return predicate.False{}, nil
		}
		return p.comparison(t.text)
	case tokEOF:
		return nil, errors.New("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
}

func (p *parser) comparison(field string) (predicate.Predicate, error) {
	if p.keyword("BETWEEN") {
		lo, err := p.value()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, fmt.Errorf("BETWEEN on %s: expected AND", field)
		}
		hi, err := p.value()
		if err != nil {
			return nil, err
		}
		return predicate.BOUNDED(field, lo, hi), nil
	}

	op := p.next()
	if op.kind != tokOp {
		return nil, fmt.Errorf("expected operator after %s, got %q", field, op.text)
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	switch op.text {
	case "=":
		return predicate.EQ(field, v), nil
	case "!=", "<>":
		return predicate.NOT(predicate.EQ(field, v)), nil
	case "<":
		return predicate.LT(field, v), nil
	case "<=":
		return predicate.LTE(field, v), nil
	case ">":
		return predicate.GT(field, v), nil
	case ">=":
		return predicate.GTE(field, v), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op.text)
}

func (p *parser) value() (any, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return f, nil
	case tokString:
		return t.text, nil
	}
	return nil, fmt.Errorf("expected value at %d, got %q", t.pos, t.text)
}
