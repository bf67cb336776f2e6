// Package predicate implements immutable boolean expression trees over named
// record fields. Trees are never mutated after construction; simplification
// returns new trees.
package predicate

import "strings"

type Predicate interface {
	Match(r Record) bool
	// PartialEval returns an equivalent, simplified predicate.
	PartialEval() Predicate
	String() string
}

type True struct{}

func (True) Match(Record) bool       { return true }
func (t True) PartialEval() Predicate { return t }
func (True) String() string          { return "TRUE" }

type False struct{}

func (False) Match(Record) bool       { return false }
func (f False) PartialEval() Predicate { return f }
func (False) String() string          { return "FALSE" }

type And struct {
	Args []Predicate
}

func (p And) Match(r Record) bool {
	for _, a := range p.Args {
		if !a.Match(r) {
			return false
		}
	}
	return true
}

func (p And) PartialEval() Predicate {
	args := make([]Predicate, 0, len(p.Args))
	for _, a := range p.Args {
		switch e := a.PartialEval().(type) {
		case True:
		case False:
			return False{}
		case And:
			args = append(args, e.Args...)
		default:
			args = append(args, e)
		}
	}
	switch len(args) {
	case 0:
		return True{}
	case 1:
		return args[0]
	}
	return And{Args: args}
}

func (p And) String() string { return join(p.Args, " AND ") }

type Or struct {
	Args []Predicate
}

func (p Or) Match(r Record) bool {
	for _, a := range p.Args {
		if a.Match(r) {
			return true
		}
	}
	return false
}

func (p Or) PartialEval() Predicate {
	args := make([]Predicate, 0, len(p.Args))
	for _, a := range p.Args {
		switch e := a.PartialEval().(type) {
		case False:
		case True:
			return True{}
		case Or:
			args = append(args, e.Args...)
		default:
			args = append(args, e)
		}
	}
	switch len(args) {
	case 0:
		return False{}
	case 1:
		return args[0]
	}
	return Or{Args: args}
}

func (p Or) String() string { return join(p.Args, " OR ") }

type Not struct {
	Arg Predicate
}

func (p Not) Match(r Record) bool { return !p.Arg.Match(r) }

func (p Not) PartialEval() Predicate {
	switch e := p.Arg.PartialEval().(type) {
	case True:
		return False{}
	case False:
		return True{}
	case Not:
		return e.Arg
	default:
		return Not{Arg: e}
	}
}

func (p Not) String() string { return "NOT " + wrap(p.Arg) }

func join(args []Predicate, sep string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = wrap(a)
	}
	return strings.Join(parts, sep)
}

func wrap(p Predicate) string {
	switch p.(type) {
	case And, Or:
		return "(" + p.String() + ")"
	}
	return p.String()
}

// AND builds a conjunction.
func AND(args ...Predicate) Predicate { return And{Args: args} }

// OR builds a disjunction.
func OR(args ...Predicate) Predicate { return Or{Args: args} }

func NOT(p Predicate) Predicate { return Not{Arg: p} }
