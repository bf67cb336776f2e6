package core

import (
	"fmt"
	"slices"
	"strings"

	"spatialdb/pkg/common"
	"spatialdb/pkg/core/spatial"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/predicate"
)

// EntityIndex 抽象接口，屏蔽桶网格与线性扫描的差异
type EntityIndex[E spatial.Entity] interface {
	Put(e E) error
	Remove(e E) error
	Find(id string) (E, error)
	Select(sink common.Sink[E], q spatial.QueryOptions[E]) (common.Sink[E], error)
	RemoveAll(where predicate.Predicate, sink common.Sink[E]) (int, error)
	Len() int
	Type() string // "grid", "linear"
}

var (
	_ EntityIndex[*Body] = (*spatial.Index[*Body])(nil)
	_ EntityIndex[*Body] = (*LinearIndex[*Body])(nil)
)

// LinearIndex answers every query with a full scan. It is the baseline the
// grid is measured against.
type LinearIndex[E spatial.Entity] struct {
	items map[string]E
	order []string // insertion order, compacted lazily
	dirty int
	stats *monitor.IndexStats
}

func NewLinearIndex[E spatial.Entity](stats *monitor.IndexStats) *LinearIndex[E] {
	return &LinearIndex[E]{items: make(map[string]E), stats: stats}
}

func (l *LinearIndex[E]) Type() string { return "linear" }

func (l *LinearIndex[E]) Len() int { return len(l.items) }

func (l *LinearIndex[E]) Put(e E) error {
	id := e.EntityID()
	if _, ok := l.items[id]; !ok {
		l.order = append(l.order, id)
	}
	l.items[id] = e
	l.stats.RecordPut(false)
	return nil
}

func (l *LinearIndex[E]) Remove(e E) error {
	id := e.EntityID()
	if _, ok := l.items[id]; !ok {
		return fmt.Errorf("linear remove %s: %w", id, common.ErrNotFound)
	}
	delete(l.items, id)
	l.dirty++
	if l.dirty > len(l.order)/2 {
		l.compact()
	}
	l.stats.RecordRemove()
	return nil
}

func (l *LinearIndex[E]) compact() {
	l.order = slices.DeleteFunc(l.order, func(id string) bool {
		_, ok := l.items[id]
		return !ok
	})
	l.dirty = 0
}

func (l *LinearIndex[E]) Find(id string) (E, error) {
	e, ok := l.items[id]
	if !ok {
		var zero E
		return zero, fmt.Errorf("linear find %s: %w", id, common.ErrNotFound)
	}
	return e, nil
}

func (l *LinearIndex[E]) Select(sink common.Sink[E], q spatial.QueryOptions[E]) (common.Sink[E], error) {
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
	candidates := 0
	for _, id := range l.order {
		e, ok := l.items[id]
		if !ok {
			continue
		}
		if fc.Stopped() {
			break
		}
		candidates++
		decorated.Put(e, fc)
	}
	l.stats.RecordQuery(monitor.ScanFull, candidates, counted.N)
	if err := fc.Err(); err != nil {
		decorated.Error(err)
		return sink, err
	}
	decorated.EOF()
	return sink, nil
}

func (l *LinearIndex[E]) RemoveAll(where predicate.Predicate, sink common.Sink[E]) (int, error) {
	if where == nil {
		where = predicate.True{}
	}
	var doomed []E
	for _, id := range l.order {
		if e, ok := l.items[id]; ok && where.Match(e) {
			doomed = append(doomed, e)
		}
	}
	slices.SortFunc(doomed, func(a, b E) int { return strings.Compare(a.EntityID(), b.EntityID()) })
	for _, e := range doomed {
		if err := l.Remove(e); err != nil {
			return 0, err
		}
		if sink != nil {
			sink.Remove(e)
		}
	}
	if sink != nil {
		sink.EOF()
	}
	return len(doomed), nil
}
