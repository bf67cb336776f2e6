package optimizer

import (
	"fmt"
	"math"
)

// Interval is a closed range [Min, Max] on one axis. Min > Max is empty.
type Interval struct {
	Min float64
	Max float64
}

func Unbounded() Interval { return Interval{Min: math.Inf(-1), Max: math.Inf(1)} }

func Point(v float64) Interval { return Interval{Min: v, Max: v} }

func (i Interval) Empty() bool { return i.Min > i.Max }

func (i Interval) Finite() bool {
	return !math.IsInf(i.Min, 0) && !math.IsInf(i.Max, 0) && !math.IsNaN(i.Min) && !math.IsNaN(i.Max)
}

// Width is +Inf for unbounded intervals and -1 for empty ones, so the
// narrowest usable interval always has the smallest width.
func (i Interval) Width() float64 {
	if i.Empty() {
		return -1
	}
	if !i.Finite() {
		return math.Inf(1)
	}
	return i.Max - i.Min
}

func (i Interval) Intersect(o Interval) Interval {
	return Interval{Min: math.Max(i.Min, o.Min), Max: math.Min(i.Max, o.Max)}
}

// Hull is the smallest interval covering both. Empty operands are ignored.
func (i Interval) Hull(o Interval) Interval {
	if i.Empty() {
		return o
	}
	if o.Empty() {
		return i
	}
	return Interval{Min: math.Min(i.Min, o.Min), Max: math.Max(i.Max, o.Max)}
}

func (i Interval) Contains(v float64) bool { return v >= i.Min && v <= i.Max }

func (i Interval) String() string { return fmt.Sprintf("[%g, %g]", i.Min, i.Max) }

func narrowest(a, b Interval) Interval {
	if b.Width() < a.Width() {
		return b
	}
	return a
}
