// Package optimizer 实现查询规划：把谓词树分解为每个轴的边界区间，
// 从而把桶扫描限制在一个包围盒内，无法限制时退化为全表扫描。
package optimizer

import (
	"math"
	"strings"

	"spatialdb/pkg/predicate"
)

// Axis names the lower and upper bound fields of one spatial dimension.
type Axis struct {
	Lower string `yaml:"lower"`
	Upper string `yaml:"upper"`
}

// Plan is the outcome of planning one query against a space.
type Plan struct {
	// Box holds one scan interval per axis. It is nil when some axis could
	// not be restricted and the caller must scan everything.
	Box []Interval
	// Empty reports that the predicate can never match.
	Empty bool
	// Residual is the predicate with absorbed top-level conjuncts removed.
	// It is informational: candidates are always filtered by the full predicate.
	Residual predicate.Predicate
	// Matched counts the leaves absorbed into Box.
	Matched int
}

func (p Plan) FullScan() bool { return !p.Empty && p.Box == nil }

func (p Plan) String() string {
	var b strings.Builder
	switch {
	case p.Empty:
		b.WriteString("empty")
	case p.FullScan():
		b.WriteString("full scan")
	default:
		b.WriteString("bucket scan ")
		for i, iv := range p.Box {
			if i > 0 {
				b.WriteString(" x ")
			}
			b.WriteString(iv.String())
		}
	}
	if p.Residual != nil {
		b.WriteString(" residual=")
		b.WriteString(p.Residual.String())
	}
	return b.String()
}

// PlanQuery derives the bucket scan box for where over the given space.
//
// Every lower and upper field of every axis is tracked. Both fields are
// points of an entity's extent on that axis, so any interval known to contain
// one of them (or, for the overlap shape lower <= a AND upper >= b, the hull
// of a and b) contains a point of every matching entity, and the buckets
// covering it contain every matching entity at least once.
func PlanQuery(where predicate.Predicate, space []Axis) Plan {
	if where == nil {
		where = predicate.True{}
	}
	pl := &planner{space: space, tracked: make(map[string]bool, 2*len(space))}
	for _, ax := range space {
		pl.tracked[ax.Lower] = true
		pl.tracked[ax.Upper] = true
	}

	plan := Plan{}
	plan.Residual, plan.Matched = pl.residual(where)

	c := pl.analyze(where)
	if c.empty {
		return Plan{Empty: true, Residual: plan.Residual, Matched: plan.Matched}
	}
	box := pl.resolve(c)
	finite := true
	for _, iv := range box {
		if iv.Empty() {
			return Plan{Empty: true, Residual: plan.Residual, Matched: plan.Matched}
		}
		if !iv.Finite() {
			finite = false
		}
	}
	if finite {
		plan.Box = box
	}
	return plan
}

type planner struct {
	space   []Axis
	tracked map[string]bool
}

// constraint is what one subtree of the predicate guarantees about matches.
// fields maps tracked fields to the interval their value must lie in; axes
// holds per-axis candidate boxes that are each valid on their own.
type constraint struct {
	empty  bool
	fields map[string]Interval
	axes   []Interval
}

func (pl *planner) unconstrained() constraint {
	axes := make([]Interval, len(pl.space))
	for i := range axes {
		axes[i] = Unbounded()
	}
	return constraint{fields: map[string]Interval{}, axes: axes}
}

func (pl *planner) analyze(p predicate.Predicate) constraint {
	switch e := p.(type) {
	case predicate.False:
		return constraint{empty: true}

	case predicate.And:
		out := pl.unconstrained()
		for _, arg := range e.Args {
			c := pl.analyze(arg)
			if c.empty {
				return constraint{empty: true}
			}
			for f, iv := range c.fields {
				if cur, ok := out.fields[f]; ok {
					out.fields[f] = cur.Intersect(iv)
				} else {
					out.fields[f] = iv
				}
			}
			// two candidates are each valid, their intersection is not
			for i, iv := range pl.resolve(c) {
				out.axes[i] = narrowest(out.axes[i], iv)
			}
		}
		return out

	case predicate.Or:
		var out *constraint
		for _, arg := range e.Args {
			c := pl.analyze(arg)
			if c.empty {
				continue
			}
			axes := pl.resolve(c)
			if anyEmpty(axes) {
				continue
			}
			if out == nil {
				out = &constraint{fields: c.fields, axes: axes}
				continue
			}
			for f, iv := range out.fields {
				if civ, ok := c.fields[f]; ok {
					out.fields[f] = iv.Hull(civ)
				} else {
					delete(out.fields, f)
				}
			}
			for i := range out.axes {
				out.axes[i] = out.axes[i].Hull(axes[i])
			}
		}
		if out == nil {
			return constraint{empty: true}
		}
		return *out
	}

	if field, iv, ok := pl.leaf(p); ok {
		c := pl.unconstrained()
		c.fields[field] = iv
		return c
	}
	return pl.unconstrained()
}

// resolve turns a constraint into the narrowest valid interval per axis.
func (pl *planner) resolve(c constraint) []Interval {
	axes := make([]Interval, len(pl.space))
	for i, ax := range pl.space {
		best := c.axes[i]
		lo, hasLo := c.fields[ax.Lower]
		up, hasUp := c.fields[ax.Upper]
		if hasLo || hasUp {
			if !hasLo {
				lo = Unbounded()
			}
			if !hasUp {
				up = Unbounded()
			}
			best = narrowest(best, lo)
			best = narrowest(best, up)
			// extent entirely inside [lo.Min, up.Max]
			best = narrowest(best, Interval{Min: lo.Min, Max: up.Max})
			// overlap shape: lower <= lo.Max and upper >= up.Min
			best = narrowest(best, Interval{Min: math.Min(up.Min, lo.Max), Max: math.Max(up.Min, lo.Max)})
		}
		axes[i] = best
	}
	return axes
}

// leaf returns the interval a comparison on a tracked field implies.
// Strict comparisons are widened to closed bounds.
func (pl *planner) leaf(p predicate.Predicate) (string, Interval, bool) {
	var (
		field string
		iv    Interval
		ok    bool
	)
	switch e := p.(type) {
	case predicate.Eq:
		field = e.Field
		if v, vok := finiteValue(e.Value); vok {
			iv, ok = Point(v), true
		}
	case predicate.Lt:
		field = e.Field
		if v, vok := finiteValue(e.Value); vok {
			iv, ok = Interval{Min: math.Inf(-1), Max: v}, true
		}
	case predicate.Lte:
		field = e.Field
		if v, vok := finiteValue(e.Value); vok {
			iv, ok = Interval{Min: math.Inf(-1), Max: v}, true
		}
	case predicate.Gt:
		field = e.Field
		if v, vok := finiteValue(e.Value); vok {
			iv, ok = Interval{Min: v, Max: math.Inf(1)}, true
		}
	case predicate.Gte:
		field = e.Field
		if v, vok := finiteValue(e.Value); vok {
			iv, ok = Interval{Min: v, Max: math.Inf(1)}, true
		}
	case predicate.Bounded:
		field = e.Field
		lo, lok := finiteValue(e.Min)
		hi, hok := finiteValue(e.Max)
		if lok && hok {
			iv, ok = Interval{Min: lo, Max: hi}, true
		}
	}
	if !ok || !pl.tracked[field] {
		return "", Interval{}, false
	}
	return field, iv, true
}

// residual splices absorbed leaves out of top-level conjunctions.
func (pl *planner) residual(p predicate.Predicate) (predicate.Predicate, int) {
	if and, ok := p.(predicate.And); ok {
		args := make([]predicate.Predicate, 0, len(and.Args))
		matched := 0
		for _, arg := range and.Args {
			r, n := pl.residual(arg)
			args = append(args, r)
			matched += n
		}
		return predicate.And{Args: args}.PartialEval(), matched
	}
	if _, _, ok := pl.leaf(p); ok {
		return predicate.True{}, 1
	}
	return p, 0
}

func finiteValue(v any) (float64, bool) {
	f, ok := predicate.ToFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func anyEmpty(ivs []Interval) bool {
	for _, iv := range ivs {
		if iv.Empty() {
			return true
		}
	}
	return false
}
