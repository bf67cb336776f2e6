// Package spatial implements a sparse N-dimensional bucket grid over
// axis-aligned bounded entities. Entities are hashed into every cell their
// bounds overlap; queries plan a bounding box from the predicate and scan
// only the buckets inside it.
package spatial

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"spatialdb/pkg/common"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/optimizer"
	"spatialdb/pkg/predicate"
)

const (
	minDims = 2
	maxDims = 4

	DefaultMaxCellsPerEntity = 4096
)

// Entity is anything with a stable identity and readable bound fields.
type Entity interface {
	predicate.Record
	EntityID() string
}

type Config struct {
	Name  string
	Space []optimizer.Axis
	// BucketWidths holds one cell size per axis.
	BucketWidths []float64
	// MaxCellsPerEntity caps the cells one entity may occupy. Larger
	// entities are kept unbucketed and scanned by every query.
	MaxCellsPerEntity int
	// Capacity > 0 bounds the number of indexed entities.
	Capacity int
}

type bucket[E Entity] struct {
	key   cellKey
	items map[string]E
}

// entry tracks where one entity lives. buckets is nil for unbucketed entities.
type entry[E Entity] struct {
	entity  E
	span    cellSpan
	buckets []*bucket[E]
}

type EventKind int

const (
	EventPut EventKind = iota
	EventRemove
)

func (k EventKind) String() string {
	if k == EventRemove {
		return "remove"
	}
	return "put"
}

type Event[E Entity] struct {
	Kind   EventKind
	Entity E
}

type listener[E Entity] struct {
	id int
	fn func(Event[E])
}

// Index is a SpatialBucketIndex. It is not safe for concurrent use.
type Index[E Entity] struct {
	name     string
	space    []optimizer.Axis
	widths   []float64
	maxCells int
	capacity int

	items      map[string]*entry[E]
	buckets    map[cellKey]*bucket[E]
	unbucketed map[string]E
	// bound scratch, reused by every put
	lo, hi []float64

	listeners []listener[E]
	nextID    int

	stats  *monitor.IndexStats
	logger *slog.Logger
}

type options struct {
	stats  *monitor.IndexStats
	logger *slog.Logger
}

type Option func(*options)

func WithStats(s *monitor.IndexStats) Option {
	return func(o *options) { o.stats = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New validates cfg and creates an empty index.
func New[E Entity](cfg Config, opts ...Option) (*Index[E], error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dims := len(cfg.Space)
	if dims < minDims || dims > maxDims {
		return nil, fmt.Errorf("index %q has %d axes: %w", cfg.Name, dims, common.ErrUnsupportedDimensionality)
	}
	if len(cfg.BucketWidths) != dims {
		return nil, fmt.Errorf("index %q: %d widths for %d axes: %w", cfg.Name, len(cfg.BucketWidths), dims, common.ErrInvalidBucketWidth)
	}
	for i, w := range cfg.BucketWidths {
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("index %q axis %d width %v: %w", cfg.Name, i, w, common.ErrInvalidBucketWidth)
		}
	}
	maxCells := cfg.MaxCellsPerEntity
	if maxCells <= 0 {
		maxCells = DefaultMaxCellsPerEntity
	}

	x := &Index[E]{
		name:       cfg.Name,
		space:      slices.Clone(cfg.Space),
		widths:     slices.Clone(cfg.BucketWidths),
		maxCells:   maxCells,
		capacity:   cfg.Capacity,
		items:      make(map[string]*entry[E]),
		buckets:    make(map[cellKey]*bucket[E]),
		unbucketed: make(map[string]E),
		lo:         make([]float64, dims),
		hi:         make([]float64, dims),
		stats:      o.stats,
		logger:     o.logger.With("component", "SpatialIndex", "index", cfg.Name),
	}
	x.logger.Debug("index created", "dims", dims, "widths", cfg.BucketWidths, "max_cells", maxCells)
	return x, nil
}

func (x *Index[E]) Space() []optimizer.Axis { return slices.Clone(x.space) }

func (x *Index[E]) Len() int { return len(x.items) }

// BucketCount is the number of non-empty buckets.
func (x *Index[E]) BucketCount() int { return len(x.buckets) }

// Unbucketed is the number of entities every query has to scan.
func (x *Index[E]) Unbucketed() int { return len(x.unbucketed) }

// readBounds fills lo/hi from the entity's axis fields. ok is false when a
// field is missing or not numeric.
func (x *Index[E]) readBounds(e E, lo, hi []float64) bool {
	ok := true
	for i, ax := range x.space {
		l, lok := field(e, ax.Lower)
		h, hok := field(e, ax.Upper)
		lo[i], hi[i] = l, h
		ok = ok && lok && hok
	}
	return ok
}

func field(r predicate.Record, name string) (float64, bool) {
	v, ok := r.Field(name)
	if !ok {
		return math.NaN(), false
	}
	return predicate.ToFloat(v)
}

// bucketSpan returns the cells e occupies, or false if it must stay unbucketed.
func (x *Index[E]) bucketSpan(e E) (cellSpan, bool) {
	if !x.readBounds(e, x.lo, x.hi) {
		return cellSpan{}, false
	}
	s, ok := spanOf(x.lo, x.hi, x.widths)
	if !ok || !s.exact() || s.count() > float64(x.maxCells) {
		return cellSpan{}, false
	}
	return s, true
}

// Put indexes e, replacing any entity with the same identity. When the cell
// signature of a known entity is unchanged, only the stored reference is
// refreshed and no bucket is touched.
func (x *Index[E]) Put(e E) error {
	id := e.EntityID()
	span, bucketed := x.bucketSpan(e)

	old, exists := x.items[id]
	if !exists && x.capacity > 0 && len(x.items) >= x.capacity {
		return fmt.Errorf("index %q put %s: %w", x.name, id, common.ErrCapacityExceeded)
	}

	if exists && bucketed && old.buckets != nil && old.span == span {
		old.entity = e
		for _, b := range old.buckets {
			b.items[id] = e
		}
		x.stats.RecordPut(true)
		x.publish(Event[E]{Kind: EventPut, Entity: e})
		return nil
	}
	if exists {
		x.unlink(id, old)
	}

	ent := &entry[E]{entity: e, span: span}
	if bucketed {
		lo, hi := span.keys()
		forEachCell(lo, hi, span.dims, func(k cellKey) bool {
			b := x.buckets[k]
			if b == nil {
				b = &bucket[E]{key: k, items: make(map[string]E, 1)}
				x.buckets[k] = b
			}
			b.items[id] = e
			ent.buckets = append(ent.buckets, b)
			return true
		})
	} else {
		x.unbucketed[id] = e
		x.logger.Debug("entity kept unbucketed", "id", id)
	}
	x.items[id] = ent

	x.stats.RecordPut(false)
	x.publish(Event[E]{Kind: EventPut, Entity: e})
	return nil
}

// unlink drops an entity from its buckets, pruning emptied ones.
func (x *Index[E]) unlink(id string, ent *entry[E]) {
	for _, b := range ent.buckets {
		delete(b.items, id)
		if len(b.items) == 0 {
			delete(x.buckets, b.key)
		}
	}
	if ent.buckets == nil {
		delete(x.unbucketed, id)
	}
	delete(x.items, id)
}

// Remove drops e by identity. It fails with common.ErrNotFound if e is not
// indexed.
func (x *Index[E]) Remove(e E) error {
	_, err := x.RemoveID(e.EntityID())
	return err
}

func (x *Index[E]) RemoveID(id string) (E, error) {
	ent, ok := x.items[id]
	if !ok {
		var zero E
		return zero, fmt.Errorf("index %q remove %s: %w", x.name, id, common.ErrNotFound)
	}
	x.unlink(id, ent)
	x.stats.RecordRemove()
	x.publish(Event[E]{Kind: EventRemove, Entity: ent.entity})
	return ent.entity, nil
}

func (x *Index[E]) Find(id string) (E, error) {
	ent, ok := x.items[id]
	if !ok {
		var zero E
		return zero, fmt.Errorf("index %q find %s: %w", x.name, id, common.ErrNotFound)
	}
	return ent.entity, nil
}

// RemoveAll removes every entity matching where (all of them for nil),
// reporting each to sink. It always scans linearly.
func (x *Index[E]) RemoveAll(where predicate.Predicate, sink common.Sink[E]) (int, error) {
	if where == nil {
		where = predicate.True{}
	}
	var doomed []string
	for id, ent := range x.items {
		if where.Match(ent.entity) {
			doomed = append(doomed, id)
		}
	}
	slices.Sort(doomed)

	for _, id := range doomed {
		e, err := x.RemoveID(id)
		if err != nil {
			if sink != nil {
				sink.Error(err)
			}
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

// Listen registers fn for put and remove events and returns a function that
// unregisters it.
func (x *Index[E]) Listen(fn func(Event[E])) (cancel func()) {
	id := x.nextID
	x.nextID++
	x.listeners = append(x.listeners, listener[E]{id: id, fn: fn})
	return func() {
		x.listeners = slices.DeleteFunc(x.listeners, func(l listener[E]) bool { return l.id == id })
	}
}

func (x *Index[E]) publish(ev Event[E]) {
	for _, l := range x.listeners {
		l.fn(ev)
	}
}

// Buckets returns the cell coordinates of every non-empty bucket, for
// inspection and tests.
func (x *Index[E]) Buckets() [][]int64 {
	out := make([][]int64, 0, len(x.buckets))
	for k := range x.buckets {
		out = append(out, slices.Clone(k[:len(x.space)]))
	}
	slices.SortFunc(out, func(a, b []int64) int { return slices.Compare(a, b) })
	return out
}

func (x *Index[E]) Type() string { return "grid" }
