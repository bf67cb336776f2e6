package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spatialdb/pkg/common"
	"spatialdb/pkg/config"
	"spatialdb/pkg/core/spatial"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/predicate"
)

func newTestWorld(t *testing.T, kind string, dims int) *World {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Kind = kind
	cfg.Index.Dims = dims
	cfg.Index.BucketWidth = []float64{16}
	cfg.World.MaxBodies = 1000
	cfg.World.Max = [3]float64{256, 256, 256}

	w, err := NewWorld(cfg, WithLogger(monitor.Discard()), WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func randomBodies(rng *rand.Rand, n, dims int) []Body {
	out := make([]Body, n)
	kinds := []string{"rock", "ship", "probe"}
	for i := range out {
		b := Body{ID: fmt.Sprintf("b%04d", i), Kind: kinds[rng.IntN(len(kinds))]}
		for a := 0; a < dims; a++ {
			b.Half[a] = 0.5 + rng.Float64()*6
			b.Pos[a] = b.Half[a] + rng.Float64()*(256-2*b.Half[a])
			if i%2 == 0 {
				b.Vel[a] = rng.Float64()*400 - 200
			}
		}
		out[i] = b
	}
	return out
}

func bruteCollisions(bodies []*Body, dims int) []Collision {
	var out []Collision
	for i, a := range bodies {
		for _, b := range bodies[i+1:] {
			if !a.Overlaps(b, dims) {
				continue
			}
			if a.ID < b.ID {
				out = append(out, Collision{A: a.ID, B: b.ID})
			} else {
				out = append(out, Collision{A: b.ID, B: a.ID})
			}
		}
	}
	slices.SortFunc(out, func(x, y Collision) int {
		if x.A != y.A {
			if x.A < y.A {
				return -1
			}
			return 1
		}
		if x.B < y.B {
			return -1
		} else if x.B > y.B {
			return 1
		}
		return 0
	})
	return out
}

func TestStepCollisionsMatchBruteForce(t *testing.T) {
	for _, kind := range []string{"grid", "linear"} {
		for _, dims := range []int{2, 3} {
			t.Run(fmt.Sprintf("%s/%dd", kind, dims), func(t *testing.T) {
				w := newTestWorld(t, kind, dims)
				rng := rand.New(rand.NewPCG(uint64(dims), 99))
				require.NoError(t, w.SpawnAll(randomBodies(rng, 300, dims)))

				for frame := 0; frame < 10; frame++ {
					got, err := w.Step(1.0 / 30)
					if err != nil {
						t.Fatalf("step %d: %v", frame, err)
					}
					want := bruteCollisions(w.Bodies(0, 0), dims)
					if len(want) == 0 {
						assert.Empty(t, got, "frame %d", frame)
					} else {
						assert.Equal(t, want, got, "frame %d", frame)
					}
				}
				require.NoError(t, w.Verify())
				assert.EqualValues(t, 10, w.Stats()["frame"])
			})
		}
	}
}

func TestStepKeepsBodiesInBounds(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	rng := rand.New(rand.NewPCG(5, 5))
	require.NoError(t, w.SpawnAll(randomBodies(rng, 100, 2)))

	for i := 0; i < 60; i++ {
		if _, err := w.Step(0.1); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	for _, b := range w.Bodies(0, 0) {
		for a := 0; a < 2; a++ {
			assert.GreaterOrEqual(t, b.Min(a), 0.0, "%s axis %d", b.ID, a)
			assert.LessOrEqual(t, b.Max(a), 256.0, "%s axis %d", b.ID, a)
		}
	}
}

func TestSpawnDuplicateAndCapacity(t *testing.T) {
	cfg := config.Default()
	cfg.World.MaxBodies = 2
	w, err := NewWorld(cfg, WithLogger(monitor.Discard()), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	_, err = w.Spawn(Body{ID: "a", Kind: "rock", Pos: [3]float64{10, 10}, Half: [3]float64{1, 1}})
	require.NoError(t, err)
	_, err = w.Spawn(Body{ID: "a", Kind: "rock"})
	assert.True(t, errors.Is(err, common.ErrAlreadyExists), "got %v", err)

	_, err = w.Spawn(Body{ID: "b", Kind: "rock", Pos: [3]float64{20, 20}, Half: [3]float64{1, 1}})
	require.NoError(t, err)
	_, err = w.Spawn(Body{ID: "c", Kind: "rock", Pos: [3]float64{30, 30}, Half: [3]float64{1, 1}})
	assert.True(t, errors.Is(err, common.ErrCapacityExceeded), "got %v", err)
	assert.Equal(t, 2, w.Len())

	require.NoError(t, w.Despawn("a"))
	_, err = w.Spawn(Body{ID: "c", Kind: "rock", Pos: [3]float64{30, 30}, Half: [3]float64{1, 1}})
	require.NoError(t, err, "despawn frees a slot")
	require.NoError(t, w.Verify())

	_, err = w.Spawn(Body{Kind: "rock"})
	assert.Error(t, err)
}

func TestDespawnMissing(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	err := w.Despawn("ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
	_, err = w.Get("ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestQueryAndKinds(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	rng := rand.New(rand.NewPCG(1, 2))
	bodies := randomBodies(rng, 200, 2)
	require.NoError(t, w.SpawnAll(bodies))

	region := spatial.Overlaps(w.Space(), []float64{40, 40}, []float64{120, 90})
	where := predicate.AND(region, predicate.EQ("kind", "ship"))

	var want []string
	for i := range bodies {
		if where.Match(&bodies[i]) {
			want = append(want, bodies[i].ID)
		}
	}
	got, err := w.Query(where, 0, 0)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, b := range got {
		ids[i] = b.ID
	}
	assert.Equal(t, len(want), len(ids))
	if len(want) > 0 {
		assert.Equal(t, want, ids, "results come back in id order")
	}

	plan := w.Explain(where)
	assert.False(t, plan.FullScan())
	assert.Len(t, plan.Box, 2)

	ships := w.ByKind("ship")
	for i := 1; i < len(ships); i++ {
		assert.Less(t, ships[i-1].ID, ships[i].ID)
	}
	assert.Equal(t, []string{"probe", "rock", "ship"}, w.Kinds())
}

func TestMoveReindexes(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	_, err := w.Spawn(Body{ID: "m", Kind: "probe", Pos: [3]float64{8, 8}, Half: [3]float64{1, 1}})
	require.NoError(t, err)

	near := spatial.Overlaps(w.Space(), []float64{200, 200}, []float64{210, 210})
	got, err := w.Query(near, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, w.Move("m", [3]float64{205, 205}))
	got, err = w.Query(near, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m", got[0].ID)

	require.NoError(t, w.SetVelocity("m", [3]float64{1, 0}))
	b, err := w.Get("m")
	require.NoError(t, err)
	assert.True(t, b.Moving())
}

func TestRemoveWhereAndPaging(t *testing.T) {
	w := newTestWorld(t, "linear", 2)
	for i := 0; i < 20; i++ {
		kind := "rock"
		if i%4 == 0 {
			kind = "ship"
		}
		_, err := w.Spawn(Body{ID: fmt.Sprintf("p%02d", i), Kind: kind, Pos: [3]float64{float64(i*10 + 5), 5}, Half: [3]float64{1, 1}})
		require.NoError(t, err)
	}

	page := w.Bodies(5, 3)
	require.Len(t, page, 3)
	assert.Equal(t, "p05", page[0].ID)

	after := w.BodiesAfter("p17", 0)
	require.Len(t, after, 2)
	assert.Equal(t, "p18", after[0].ID)

	n, err := w.RemoveWhere(predicate.EQ("kind", "ship"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 15, w.Len())
	assert.Empty(t, w.ByKind("ship"))
	require.NoError(t, w.Verify())
}

func TestConcurrentReaders(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	rng := rand.New(rand.NewPCG(11, 12))
	require.NoError(t, w.SpawnAll(randomBodies(rng, 50, 2)))
	region := spatial.Overlaps(w.Space(), []float64{0, 0}, []float64{128, 128})
	want, err := w.Query(region, 0, 0)
	require.NoError(t, err)
	pairs, err := w.Collisions()
	require.NoError(t, err)
	kinds := w.Kinds()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.Len(t, w.Bodies(0, 5), 5)
				assert.Equal(t, kinds, w.Kinds())
				assert.Len(t, w.BodiesAfter("b0044", 0), 5)
				got, err := w.Query(region, 0, 0)
				assert.NoError(t, err)
				assert.Len(t, got, len(want))
				n, err := w.Count(region)
				assert.NoError(t, err)
				assert.Equal(t, len(want), n)
				got2, err := w.Collisions()
				assert.NoError(t, err)
				assert.Equal(t, pairs, got2)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Verify())

	// writes go through once the readers are done
	before := w.BodiesAfter("b0040", 0)
	require.NoError(t, w.Despawn("b0045"))
	assert.Len(t, w.BodiesAfter("b0040", 0), len(before)-1)
	require.NoError(t, w.Verify())
}

func TestCountMatchesQuery(t *testing.T) {
	for _, kind := range []string{"grid", "linear"} {
		t.Run(kind, func(t *testing.T) {
			w := newTestWorld(t, kind, 2)
			rng := rand.New(rand.NewPCG(21, 22))
			require.NoError(t, w.SpawnAll(randomBodies(rng, 150, 2)))

			wheres := []predicate.Predicate{
				predicate.True{},
				predicate.EQ("kind", "rock"),
				spatial.Overlaps(w.Space(), []float64{10, 10}, []float64{90, 200}),
				predicate.AND(spatial.Overlaps(w.Space(), []float64{100, 0}, []float64{256, 64}), predicate.NOT(predicate.EQ("kind", "ship"))),
				predicate.False{},
			}
			for _, where := range wheres {
				got, err := w.Query(where, 0, 0)
				require.NoError(t, err)
				n, err := w.Count(where)
				require.NoError(t, err)
				assert.Equal(t, len(got), n, where.String())
			}
			n, err := w.Count(nil)
			require.NoError(t, err)
			assert.Equal(t, w.Len(), n)
		})
	}
}

func TestGetAndSpawnReturnCopies(t *testing.T) {
	w := newTestWorld(t, "grid", 2)
	spawned, err := w.Spawn(Body{ID: "c", Kind: "rock", Pos: [3]float64{20, 20}, Half: [3]float64{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, "c", spawned.ID)
	spawned.Pos = [3]float64{230, 230}
	assert.NotEqual(t, spawned.Pos, w.ByKind("rock")[0].Pos)

	got, err := w.Get("c")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{20, 20}, got.Pos)
	got.Pos = [3]float64{240, 240}
	got.Kind = "ship"

	home := spatial.Overlaps(w.Space(), []float64{15, 15}, []float64{25, 25})
	found, err := w.Query(home, 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, [3]float64{20, 20}, found[0].Pos)

	far := spatial.Overlaps(w.Space(), []float64{225, 225}, []float64{245, 245})
	found, err = w.Query(far, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	again, err := w.Get("c")
	require.NoError(t, err)
	assert.Equal(t, "rock", again.Kind)
	assert.Equal(t, [3]float64{20, 20}, again.Pos)
	assert.Empty(t, w.ByKind("ship"))
	require.NoError(t, w.Verify())
}

func TestNewWorldRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Dims = 5
	if _, err := NewWorld(cfg, WithLogger(monitor.Discard())); err == nil {
		t.Fatal("expected error for 5 dims")
	}
}
