package predicate

import "fmt"

// Field comparisons. A record without the field never matches.

type Eq struct {
	Field string
	Value any
}

func (p Eq) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Value) == 0
}
func (p Eq) PartialEval() Predicate { return p }
func (p Eq) String() string         { return p.Field + " = " + formatValue(p.Value) }

type Lt struct {
	Field string
	Value any
}

func (p Lt) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Value) < 0
}
func (p Lt) PartialEval() Predicate { return p }
func (p Lt) String() string         { return p.Field + " < " + formatValue(p.Value) }

type Lte struct {
	Field string
	Value any
}

func (p Lte) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Value) <= 0
}
func (p Lte) PartialEval() Predicate { return p }
func (p Lte) String() string         { return p.Field + " <= " + formatValue(p.Value) }

type Gt struct {
	Field string
	Value any
}

func (p Gt) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Value) > 0
}
func (p Gt) PartialEval() Predicate { return p }
func (p Gt) String() string         { return p.Field + " > " + formatValue(p.Value) }

type Gte struct {
	Field string
	Value any
}

func (p Gte) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Value) >= 0
}
func (p Gte) PartialEval() Predicate { return p }
func (p Gte) String() string         { return p.Field + " >= " + formatValue(p.Value) }

// Bounded matches Min <= field <= Max.
type Bounded struct {
	Field string
	Min   any
	Max   any
}

func (p Bounded) Match(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && Compare(v, p.Min) >= 0 && Compare(v, p.Max) <= 0
}
func (p Bounded) PartialEval() Predicate { return p }
func (p Bounded) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", p.Field, formatValue(p.Min), formatValue(p.Max))
}

func EQ(field string, v any) Predicate  { return Eq{Field: field, Value: v} }
func LT(field string, v any) Predicate  { return Lt{Field: field, Value: v} }
func LTE(field string, v any) Predicate { return Lte{Field: field, Value: v} }
func GT(field string, v any) Predicate  { return Gt{Field: field, Value: v} }
func GTE(field string, v any) Predicate { return Gte{Field: field, Value: v} }

func BOUNDED(field string, lo, hi any) Predicate {
	return Bounded{Field: field, Min: lo, Max: hi}
}
