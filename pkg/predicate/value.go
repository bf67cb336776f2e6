package predicate

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// Record is anything predicates can read named fields from.
type Record interface {
	Field(name string) (any, bool)
}

// MapRecord is a Record backed by a plain map.
type MapRecord map[string]any

func (m MapRecord) Field(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// ToFloat converts numeric values to float64. ok is false for anything else.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return math.NaN(), false
}

// Compare orders two field values. Numbers compare numerically, strings
// lexically and bools false < true. Values of different kinds are ordered
// numbers < strings < bools < anything else, which keeps Compare total.
// NaN sorts before every other number.
func Compare(a, b any) int {
	if fa, ok := ToFloat(a); ok {
		if fb, ok := ToFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		return strings.Compare(a.(string), b.(string))
	case 2:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	if _, ok := ToFloat(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("'%s'", s)
	}
	return fmt.Sprint(v)
}
