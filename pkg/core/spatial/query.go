package spatial

import (
	"slices"

	"spatialdb/pkg/common"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/optimizer"
	"spatialdb/pkg/predicate"
)

// QueryOptions describe one select. Limit <= 0 means unlimited; a nil Order
// keeps scan order, which is unspecified.
type QueryOptions[E Entity] struct {
	Where predicate.Predicate
	Skip  int
	Limit int
	Order func(a, b E) int
}

// Explain returns the plan Select would use for where.
func (x *Index[E]) Explain(where predicate.Predicate) optimizer.Plan {
	return optimizer.PlanQuery(where, x.space)
}

// Select streams every entity matching q.Where to sink exactly once and ends
// with EOF. The bucket scan only narrows the candidates; the full predicate
// is applied to each of them. A nil sink collects into an ArraySink, which is
// returned. If the sink aborts through its flow control the error is passed
// to sink.Error and returned.
func (x *Index[E]) Select(sink common.Sink[E], q QueryOptions[E]) (common.Sink[E], error) {
	if sink == nil {
		sink = &common.ArraySink[E]{}
	}
	where := q.Where
	if where == nil {
		where = predicate.True{}
	}

	counted := &common.CountingSink[E]{Sink: sink}
	decorated := common.Decorate[E](counted, func(e E) bool { return where.Match(e) }, q.Order, q.Skip, q.Limit)
	fc := &common.FlowControl{}
	s := &scan[E]{sink: decorated, fc: fc}

	plan := optimizer.PlanQuery(where, x.space)
	mode := monitor.ScanBucket
	switch {
	case plan.Empty:
		mode = monitor.ScanEmpty
	case plan.FullScan():
		mode = monitor.ScanFull
		x.logger.Debug("full scan", "where", where.String())
		for _, ent := range x.items {
			if !s.emit(ent.entity) {
				break
			}
		}
	default:
		x.scanBox(s, plan.Box)
	}

	x.stats.RecordQuery(mode, s.candidates, counted.N)
	if err := fc.Err(); err != nil {
		decorated.Error(err)
		return sink, err
	}
	decorated.EOF()
	return sink, nil
}

// scanBox feeds every entity in a bucket overlapping box, then every
// unbucketed entity, through s.
func (x *Index[E]) scanBox(s *scan[E], box []optimizer.Interval) {
	lo := make([]float64, len(box))
	hi := make([]float64, len(box))
	for i, iv := range box {
		lo[i], hi[i] = iv.Min, iv.Max
	}
	span, ok := spanOf(lo, hi, x.widths)
	if !ok {
		return
	}
	s.seen = make(map[string]struct{})

	if span.exact() && span.count() <= float64(len(x.buckets)) {
		klo, khi := span.keys()
		if !forEachCell(klo, khi, span.dims, func(k cellKey) bool {
			b := x.buckets[k]
			return b == nil || s.bucket(b)
		}) {
			return
		}
	} else {
		// the box covers more cells than exist: walk occupied buckets instead
		for _, b := range x.buckets {
			if span.contains(b.key) && !s.bucket(b) {
				return
			}
		}
	}

	ids := make([]string, 0, len(x.unbucketed))
	for id := range x.unbucketed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if !s.emitOnce(id, x.unbucketed[id]) {
			return
		}
	}
}

// scan is the state of one select: dedup set, flow control and counts.
type scan[E Entity] struct {
	sink       common.Sink[E]
	fc         *common.FlowControl
	seen       map[string]struct{}
	candidates int
}

func (s *scan[E]) emit(e E) bool {
	if s.fc.Stopped() {
		return false
	}
	s.candidates++
	s.sink.Put(e, s.fc)
	return !s.fc.Stopped()
}

func (s *scan[E]) emitOnce(id string, e E) bool {
	if _, dup := s.seen[id]; dup {
		return !s.fc.Stopped()
	}
	s.seen[id] = struct{}{}
	return s.emit(e)
}

func (s *scan[E]) bucket(b *bucket[E]) bool {
	if s.fc.Stopped() {
		return false
	}
	for id, e := range b.items {
		if !s.emitOnce(id, e) {
			return false
		}
	}
	return true
}

// Overlaps matches entities whose bounds intersect the closed box [lo, hi]
// on every axis of space.
func Overlaps(space []optimizer.Axis, lo, hi []float64) predicate.Predicate {
	args := make([]predicate.Predicate, 0, 2*len(space))
	for i, ax := range space {
		args = append(args, predicate.LTE(ax.Lower, hi[i]), predicate.GTE(ax.Upper, lo[i]))
	}
	return predicate.AND(args...)
}

// Within matches entities lying entirely inside the closed box [lo, hi].
func Within(space []optimizer.Axis, lo, hi []float64) predicate.Predicate {
	args := make([]predicate.Predicate, 0, 2*len(space))
	for i, ax := range space {
		args = append(args, predicate.GTE(ax.Lower, lo[i]), predicate.LTE(ax.Upper, hi[i]))
	}
	return predicate.AND(args...)
}

// Bounds reads the per-axis bounds of r. ok is false if any is missing.
func Bounds(space []optimizer.Axis, r predicate.Record) (lo, hi []float64, ok bool) {
	lo = make([]float64, len(space))
	hi = make([]float64, len(space))
	ok = true
	for i, ax := range space {
		var lok, hok bool
		lo[i], lok = field(r, ax.Lower)
		hi[i], hok = field(r, ax.Upper)
		ok = ok && lok && hok
	}
	return lo, hi, ok
}
