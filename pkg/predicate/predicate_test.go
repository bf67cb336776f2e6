package predicate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	rec := MapRecord{"x": 5.0, "y": int64(10), "kind": "rock", "alive": true}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq float", EQ("x", 5), true},
		{"eq mixed numeric kinds", EQ("y", 10.0), true},
		{"lt", LT("x", 5), false},
		{"lte", LTE("x", 5), true},
		{"gt", GT("y", 9), true},
		{"gte", GTE("y", 11), false},
		{"bounded inside", BOUNDED("x", 0, 10), true},
		{"bounded edge", BOUNDED("x", 5, 5), true},
		{"bounded outside", BOUNDED("x", 6, 10), false},
		{"string eq", EQ("kind", "rock"), true},
		{"string order", LT("kind", "stone"), true},
		{"bool", EQ("alive", true), true},
		{"missing field", EQ("z", 0), false},
		{"missing field negated", NOT(EQ("z", 0)), true},
		{"and", AND(GT("x", 1), LT("y", 11)), true},
		{"and short", AND(GT("x", 1), LT("y", 10)), false},
		{"or", OR(EQ("x", 1), EQ("kind", "rock")), true},
		{"empty and", AND(), true},
		{"empty or", OR(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Match(rec), tt.p.String())
		})
	}
}

func TestPartialEval(t *testing.T) {
	x := LT("x", 3)
	y := GT("y", 4)

	tests := []struct {
		name string
		in   Predicate
		want Predicate
	}{
		{"and drops true", AND(True{}, x), x},
		{"and false", AND(x, False{}), False{}},
		{"and empty", AND(True{}, True{}), True{}},
		{"and flattens", AND(x, AND(y, True{})), And{Args: []Predicate{x, y}}},
		{"or drops false", OR(False{}, y), y},
		{"or true", OR(y, True{}), True{}},
		{"or empty", OR(False{}), False{}},
		{"or flattens", OR(OR(x, y), False{}), Or{Args: []Predicate{x, y}}},
		{"not true", NOT(True{}), False{}},
		{"double not", NOT(NOT(x)), x},
		{"nested", OR(AND(True{}, x), AND(False{}, y)), x},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.PartialEval())
		})
	}
}

func TestPartialEvalDoesNotMutate(t *testing.T) {
	orig := And{Args: []Predicate{True{}, LT("x", 3)}}
	_ = orig.PartialEval()
	assert.Len(t, orig.Args, 2)
	assert.Equal(t, True{}, orig.Args[0])
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(3, 3.0))
	assert.Equal(t, -1, Compare(uint8(2), int64(3)))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(1, "a"), "numbers sort before strings")
	assert.Equal(t, -1, Compare(false, true))
	assert.Equal(t, -1, Compare(math.NaN(), math.Inf(-1)))
}

func TestString(t *testing.T) {
	p := AND(BOUNDED("x", 0, 10), OR(EQ("kind", "rock"), NOT(GT("y", 2))))
	assert.Equal(t, "x BETWEEN 0 AND 10 AND (kind = 'rock' OR NOT y > 2)", p.String())
}
