package core

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"spatialdb/pkg/common"
	"spatialdb/pkg/config"
	"spatialdb/pkg/core/aatree"
	"spatialdb/pkg/core/memory"
	"spatialdb/pkg/core/spatial"
	"spatialdb/pkg/core/structure"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/optimizer"
	"spatialdb/pkg/predicate"
)

// Collision is one overlapping pair found by Step, with A < B.
type Collision struct {
	A, B string
}

// World owns every body: the spatial index answers region queries, two
// ordered indexes list bodies by id and by kind, and the arena bounds how
// many bodies may exist.
type World struct {
	mutex sync.RWMutex

	conf   *config.Config
	dims   int
	space  []optimizer.Axis
	index  EntityIndex[*Body]
	byID   *aatree.Tree[string, *Body]
	byKind *aatree.Tree[string, *Body]
	bodies *structure.Arena[*Body]

	stats  *monitor.IndexStats
	logger *slog.Logger
	frame  uint64
}

type worldOptions struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

type WorldOption func(*worldOptions)

func WithLogger(l *slog.Logger) WorldOption {
	return func(o *worldOptions) { o.logger = l }
}

// WithRegistry registers the world's index metrics on reg.
func WithRegistry(reg prometheus.Registerer) WorldOption {
	return func(o *worldOptions) { o.registry = reg }
}

func NewWorld(cfg *config.Config, opts ...WorldOption) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	o := worldOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	stats, err := monitor.NewIndexStats(cfg.Index.Kind, o.registry)
	if err != nil {
		return nil, fmt.Errorf("world metrics: %w", err)
	}

	w := &World{
		conf:   cfg,
		dims:   cfg.Index.Dims,
		space:  Space(cfg.Index.Dims),
		byID:   aatree.New[string, *Body](strings.Compare, memory.NewValueTail[*Body]),
		byKind: aatree.New[string, *Body](strings.Compare, memory.SetTailFactory(cfg.Index.TailDegree, func(a, b *Body) bool { return a.ID < b.ID })),
		bodies: structure.NewArena[*Body](cfg.World.MaxBodies),
		stats:  stats,
		logger: o.logger.With("component", "World"),
	}

	switch cfg.Index.Kind {
	case "linear":
		w.index = NewLinearIndex[*Body](stats)
	default:
		idx, err := spatial.New[*Body](spatial.Config{
			Name:              "world",
			Space:             w.space,
			BucketWidths:      cfg.Widths(),
			MaxCellsPerEntity: cfg.Index.MaxCellsPerEntity,
			Capacity:          cfg.World.MaxBodies,
		}, spatial.WithStats(stats), spatial.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		w.index = idx
	}

	w.logger.Info("world created", "index", w.index.Type(), "dims", w.dims, "widths", cfg.Widths(), "max_bodies", cfg.World.MaxBodies)
	return w, nil
}

func (w *World) Dims() int { return w.dims }

func (w *World) Space() []optimizer.Axis { return slices.Clone(w.space) }

func (w *World) Len() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.index.Len()
}

// Spawn adds a copy of b and returns a copy of what was stored.
func (w *World) Spawn(b Body) (Body, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	body, err := w.spawnLocked(b)
	if err != nil {
		return Body{}, err
	}
	return *body, nil
}

func (w *World) spawnLocked(b Body) (*Body, error) {
	if b.ID == "" {
		return nil, errors.New("spawn: body has no id")
	}
	if _, ok := w.byID.Get(b.ID); ok {
		return nil, fmt.Errorf("spawn %s: %w", b.ID, common.ErrAlreadyExists)
	}

	body := &b
	h, err := w.bodies.Alloc(body)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", b.ID, err)
	}
	body.handle = h

	if err := w.index.Put(body); err != nil {
		_ = w.bodies.Free(h)
		return nil, fmt.Errorf("spawn %s: %w", b.ID, err)
	}
	w.byID.Put(body.ID, body)
	w.byKind.Put(body.Kind, body)
	return body, nil
}

// SpawnAll adds every body, stopping at the first failure.
func (w *World) SpawnAll(bodies []Body) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for _, b := range bodies {
		if _, err := w.spawnLocked(b); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) Despawn(id string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	body, err := w.index.Find(id)
	if err != nil {
		return err
	}
	if err := w.index.Remove(body); err != nil {
		return err
	}
	w.byID.RemoveKey(id)
	w.byKind.Remove(body.Kind, body)
	if err := w.bodies.Free(body.handle); err != nil {
		w.logger.Warn("despawn: arena slot already free", "id", id, "err", err)
	}
	return nil
}

// Get returns a copy of the body; changing it does not affect the world.
func (w *World) Get(id string) (Body, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	b, err := w.index.Find(id)
	if err != nil {
		return Body{}, err
	}
	return *b, nil
}

// Move places a body at pos and re-indexes it.
func (w *World) Move(id string, pos [3]float64) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	body, err := w.index.Find(id)
	if err != nil {
		return err
	}
	body.Pos = pos
	return w.index.Put(body)
}

func (w *World) SetVelocity(id string, vel [3]float64) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	body, err := w.index.Find(id)
	if err != nil {
		return err
	}
	body.Vel = vel
	return nil
}

// Step advances every moving body by dt, reflecting it at the world bounds
// when bouncing is enabled, and returns the overlapping pairs afterwards,
// sorted.
func (w *World) Step(dt float64) ([]Collision, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	var moving []*Body
	w.byID.Select(common.FuncSink[*Body](func(b *Body, _ *common.FlowControl) {
		moving = append(moving, b)
	}), aatree.SelectOptions[*Body]{Pred: (*Body).Moving})

	for _, b := range moving {
		for i := 0; i < w.dims; i++ {
			b.Pos[i] += b.Vel[i] * dt
			if w.conf.World.Bounce {
				w.bounce(b, i)
			}
		}
		if err := w.index.Put(b); err != nil {
			return nil, fmt.Errorf("step %d: %w", w.frame, err)
		}
	}

	collisions, err := w.collisionsLocked()
	if err != nil {
		return nil, err
	}
	w.frame++
	return collisions, nil
}

func (w *World) bounce(b *Body, axis int) {
	lo, hi := w.conf.World.Min[axis], w.conf.World.Max[axis]
	if b.Min(axis) < lo {
		b.Pos[axis] = lo + b.Half[axis]
		b.Vel[axis] = -b.Vel[axis]
	} else if b.Max(axis) > hi {
		b.Pos[axis] = hi - b.Half[axis]
		b.Vel[axis] = -b.Vel[axis]
	}
}

// Collisions returns every overlapping pair without moving anything.
func (w *World) Collisions() ([]Collision, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.collisionsLocked()
}

func (w *World) collisionsLocked() ([]Collision, error) {
	var out []Collision
	var qerr error
	lo := make([]float64, w.dims)
	hi := make([]float64, w.dims)

	w.byID.Select(common.FuncSink[*Body](func(a *Body, fc *common.FlowControl) {
		for i := 0; i < w.dims; i++ {
			lo[i], hi[i] = a.Min(i), a.Max(i)
		}
		// only partners with a larger id, so each pair is reported once
		where := predicate.AND(spatial.Overlaps(w.space, lo, hi), predicate.GT("id", a.ID))
		sink := common.FuncSink[*Body](func(b *Body, _ *common.FlowControl) {
			out = append(out, Collision{A: a.ID, B: b.ID})
		})
		if _, err := w.index.Select(sink, spatial.QueryOptions[*Body]{Where: where}); err != nil {
			qerr = err
			fc.Error(err)
		}
	}), aatree.SelectOptions[*Body]{})
	if qerr != nil {
		return nil, qerr
	}

	slices.SortFunc(out, func(x, y Collision) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return out, nil
}

// Query returns the bodies matching where, ordered by id. The returned
// bodies are the indexed ones and must be treated as read-only: position
// changes go through Move, or the grid no longer matches their bounds.
func (w *World) Query(where predicate.Predicate, skip, limit int) ([]*Body, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	sink := &common.ArraySink[*Body]{}
	if _, err := w.index.Select(sink, spatial.QueryOptions[*Body]{Where: where, Skip: skip, Limit: limit, Order: byID}); err != nil {
		return nil, err
	}
	return sink.Items, nil
}

// Count returns how many bodies match where without collecting them.
func (w *World) Count(where predicate.Predicate) (int, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	sink := &common.CountSink[*Body]{}
	if _, err := w.index.Select(sink, spatial.QueryOptions[*Body]{Where: where}); err != nil {
		return 0, err
	}
	return sink.Count, nil
}

// Explain shows how the index would run where.
func (w *World) Explain(where predicate.Predicate) optimizer.Plan {
	if x, ok := w.index.(interface {
		Explain(predicate.Predicate) optimizer.Plan
	}); ok {
		return x.Explain(where)
	}
	return optimizer.Plan{Residual: where}
}

// RemoveWhere despawns every body matching where.
func (w *World) RemoveWhere(where predicate.Predicate) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	sink := &common.ArraySink[*Body]{}
	n, err := w.index.RemoveAll(where, sink)
	for _, b := range sink.Removed {
		w.byID.RemoveKey(b.ID)
		w.byKind.Remove(b.Kind, b)
		_ = w.bodies.Free(b.handle)
	}
	return n, err
}

// ByKind lists the bodies of one kind ordered by id. Read-only, as for Query.
func (w *World) ByKind(kind string) []*Body {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	bodies, _ := w.byKind.Get(kind)
	return bodies
}

// Kinds lists every kind with at least one body.
func (w *World) Kinds() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	var kinds []string
	w.byKind.Select(common.FuncSink[*Body](func(b *Body, _ *common.FlowControl) {
		if len(kinds) == 0 || kinds[len(kinds)-1] != b.Kind {
			kinds = append(kinds, b.Kind)
		}
	}), aatree.SelectOptions[*Body]{})
	return kinds
}

// Bodies pages through all bodies in id order. limit <= 0 means all.
// Read-only, as for Query.
func (w *World) Bodies(skip, limit int) []*Body {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	sink := &common.ArraySink[*Body]{}
	w.byID.Select(sink, aatree.SelectOptions[*Body]{Skip: skip, Limit: limit})
	return sink.Items
}

// BodiesAfter lists bodies with ids strictly greater than id, in order.
func (w *World) BodiesAfter(id string, limit int) []*Body {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	snap := w.byID.Snapshot()
	defer snap.Release()
	sink := &common.ArraySink[*Body]{}
	snap.GT(id).Select(sink, aatree.SelectOptions[*Body]{Limit: limit})
	return sink.Items
}

// Verify checks the ordered indexes against each other and the arena.
func (w *World) Verify() error {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	if err := w.byID.Verify(); err != nil {
		return fmt.Errorf("by id: %w", err)
	}
	if err := w.byKind.Verify(); err != nil {
		return fmt.Errorf("by kind: %w", err)
	}
	n := w.index.Len()
	if w.byID.Len() != n || w.byKind.Len() != n || w.bodies.Len() != n {
		return fmt.Errorf("size mismatch: index %d, by id %d, by kind %d, arena %d",
			n, w.byID.Len(), w.byKind.Len(), w.bodies.Len())
	}

	var err error
	w.bodies.Each(func(h structure.Handle, b *Body) bool {
		if b.handle != h {
			err = fmt.Errorf("body %s: handle %v, slot %v", b.ID, b.handle, h)
			return false
		}
		if got, ok := w.byID.Get(b.ID); !ok || got[0] != b {
			err = fmt.Errorf("body %s: %w in the id index", b.ID, common.ErrNotFound)
			return false
		}
		return true
	})
	return err
}

func (w *World) Stats() map[string]interface{} {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	out := w.stats.Snapshot()
	out["frame"] = w.frame
	out["bodies"] = w.index.Len()
	out["arena_cap"] = w.bodies.Cap()
	out["id_tree_height"] = w.byID.Height()
	out["kind_tree_height"] = w.byKind.Height()
	if x, ok := w.index.(*spatial.Index[*Body]); ok {
		out["buckets"] = x.BucketCount()
		out["unbucketed"] = x.Unbucketed()
	}
	return out
}
