package aatree_test

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spatialdb/pkg/common"
	"spatialdb/pkg/core/aatree"
	"spatialdb/pkg/core/memory"
)

func newValueTree() *aatree.Tree[int, int] {
	return aatree.New[int, int](cmp.Compare[int], memory.NewValueTail[int])
}

func newSetTree() *aatree.Tree[int, int] {
	less := func(a, b int) bool { return a < b }
	return aatree.New[int, int](cmp.Compare[int], memory.SetTailFactory(4, less))
}

func selectAll(t *testing.T, s interface {
	Select(common.Sink[int], aatree.SelectOptions[int])
}, opts aatree.SelectOptions[int]) []int {
	t.Helper()
	sink := &common.ArraySink[int]{}
	s.Select(sink, opts)
	require.True(t, sink.Done, "select must finish with EOF")
	return sink.Items
}

func TestInsertAndRemoveScenario(t *testing.T) {
	tree := newValueTree()
	for _, k := range []int{5, 3, 8, 1, 4, 7, 9} {
		tree.Put(k, k)
		require.NoError(t, tree.Verify())
	}
	assert.Equal(t, []int{1, 3, 4, 5, 7, 8, 9}, selectAll(t, tree, aatree.SelectOptions[int]{}))

	require.True(t, tree.Remove(5, 5))
	require.NoError(t, tree.Verify())
	assert.Equal(t, []int{1, 3, 4, 7, 8, 9}, selectAll(t, tree, aatree.SelectOptions[int]{}))
	assert.Equal(t, 6, tree.Len())
}

func TestOverwriteKeepsOneValue(t *testing.T) {
	tree := newValueTree()
	tree.Put(1, 10)
	tree.Put(1, 11)
	got, ok := tree.Get(1)
	require.True(t, ok)
	assert.Equal(t, []int{11}, got)
	assert.Equal(t, 1, tree.Len())

	assert.False(t, tree.Remove(1, 10), "stale value must not remove the slot")
	assert.True(t, tree.Remove(1, 11))
	_, ok = tree.Get(1)
	assert.False(t, ok)
}

func TestGetMissing(t *testing.T) {
	tree := newValueTree()
	_, ok := tree.Get(42)
	assert.False(t, ok)
	assert.False(t, tree.Remove(42, 42))
	assert.False(t, tree.RemoveKey(42))
}

func TestDedupHook(t *testing.T) {
	calls := 0
	tree := aatree.New[int, int](cmp.Compare[int], memory.NewValueTail[int],
		aatree.WithDedup[int, int](func(v int, key int) int {
			calls++
			return v + key
		}))
	tree.Put(2, 1)
	tree.Put(2, 1)
	got, _ := tree.Get(2)
	assert.Equal(t, []int{3}, got)
	assert.Equal(t, 1, calls, "dedup only runs for an existing key")
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tree := newSetTree()
	ref := map[int]bool{}

	for i := 0; i < 4000; i++ {
		v := rng.IntN(300)*10 + rng.IntN(3)
		key := v / 10
		switch rng.IntN(5) {
		case 0, 1:
			tree.Put(key, v)
			ref[v] = true
		case 2, 3:
			removed := tree.Remove(key, v)
			assert.Equal(t, ref[v], removed)
			delete(ref, v)
		case 4:
			had := false
			for d := 0; d < 3; d++ {
				if ref[key*10+d] {
					had = true
					delete(ref, key*10+d)
				}
			}
			assert.Equal(t, had, tree.RemoveKey(key))
		}
		require.NoError(t, tree.Verify(), "after op %d", i)
		require.Equal(t, len(ref), tree.Len())
	}

	want := make([]int, 0, len(ref))
	for v := range ref {
		want = append(want, v)
	}
	slices.Sort(want)
	assert.Equal(t, want, selectAll(t, tree, aatree.SelectOptions[int]{}))
}

func TestDrainToEmpty(t *testing.T) {
	tree := newValueTree()
	keys := rand.New(rand.NewPCG(3, 3)).Perm(500)
	for _, k := range keys {
		tree.Put(k, k)
	}
	require.NoError(t, tree.Verify())
	assert.LessOrEqual(t, tree.Height(), 2*9+1)

	for _, k := range keys {
		require.True(t, tree.RemoveKey(k))
		require.NoError(t, tree.Verify())
	}
	assert.Zero(t, tree.Len())
	assert.Zero(t, tree.Height())
}

func filledSetTree(n int) (*aatree.Tree[int, int], []int) {
	tree := newSetTree()
	var all []int
	for k := 0; k < n; k++ {
		for d := 0; d <= k%3; d++ {
			tree.Put(k, k*10+d)
			all = append(all, k*10+d)
		}
	}
	return tree, all
}

func naive(all []int, skip, limit int, pred func(int) bool) []int {
	var out []int
	for _, v := range all {
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	if skip >= len(out) {
		return nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func TestSkipLimitMatchesNaiveSlice(t *testing.T) {
	tree, all := filledSetTree(40)
	even := func(v int) bool { return v%2 == 0 }

	for _, pred := range []func(int) bool{nil, even} {
		for skip := 0; skip <= len(all)+2; skip += 3 {
			for limit := 0; limit <= 7; limit++ {
				got := selectAll(t, tree, aatree.SelectOptions[int]{Skip: skip, Limit: limit, Pred: pred})
				want := naive(all, skip, limit, pred)
				require.Equal(t, len(want), len(got), "skip=%d limit=%d", skip, limit)
				if len(want) > 0 {
					assert.Equal(t, want, got, "skip=%d limit=%d", skip, limit)
				}
			}
		}
	}
}

func TestReverseOrder(t *testing.T) {
	tree, all := filledSetTree(25)
	rev := slices.Clone(all)
	slices.Reverse(rev)

	assert.Equal(t, rev, selectAll(t, tree, aatree.SelectOptions[int]{Reverse: true}))
	assert.Equal(t, rev[4:9], selectAll(t, tree, aatree.SelectOptions[int]{Reverse: true, Skip: 4, Limit: 5}))
}

func TestSinkCanStopTraversal(t *testing.T) {
	tree, _ := filledSetTree(30)
	var got []int
	sink := common.FuncSink[int](func(v int, fc *common.FlowControl) {
		got = append(got, v)
		if len(got) == 3 {
			fc.Stop()
		}
	})
	tree.Select(sink, aatree.SelectOptions[int]{})
	assert.Equal(t, []int{0, 10, 11}, got)
}

func TestSnapshotIsolation(t *testing.T) {
	tree, all := filledSetTree(60)
	snap := tree.Snapshot()

	for k := 0; k < 60; k += 2 {
		tree.RemoveKey(k)
	}
	for k := 100; k < 130; k++ {
		tree.Put(k, k*10)
	}
	tree.Remove(1, 10)
	tree.Put(3, 35)
	require.NoError(t, tree.Verify())

	assert.Equal(t, all, selectAll(t, snap, aatree.SelectOptions[int]{}), "snapshot must not observe writes")
	assert.Equal(t, len(all), snap.Len())

	snap.Release()
	snap.Release()
	tree.Put(200, 2000)
	tree.RemoveKey(3)
	require.NoError(t, tree.Verify())
}

func TestConcurrentReadersReleasePins(t *testing.T) {
	tree, all := filledSetTree(60)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				sink := &common.ArraySink[int]{}
				tree.Select(sink, aatree.SelectOptions[int]{Limit: 5})
				assert.Len(t, sink.Items, 5)

				snap := tree.Snapshot()
				assert.Equal(t, len(all), snap.Len())
				snap.Release()
			}
		}()
	}
	wg.Wait()

	// every pin is gone, so a later snapshot still isolates writes
	snap := tree.Snapshot()
	tree.RemoveKey(0)
	tree.Put(500, 5000)
	assert.Equal(t, all, selectAll(t, snap, aatree.SelectOptions[int]{}))
	snap.Release()
	require.NoError(t, tree.Verify())
	assert.Equal(t, len(all), tree.Len())
}

func TestMutationInsideSelect(t *testing.T) {
	tree, all := filledSetTree(20)
	var seen []int
	sink := common.FuncSink[int](func(v int, _ *common.FlowControl) {
		seen = append(seen, v)
		k := v / 10
		tree.RemoveKey(k)
		tree.Put(k+1000, v)
	})
	tree.Select(sink, aatree.SelectOptions[int]{})

	assert.Equal(t, all, seen, "traversal walks the tree as it was when it started")
	require.NoError(t, tree.Verify())
	assert.Equal(t, len(all), tree.Len())
	_, ok := tree.Get(0)
	assert.False(t, ok)
}

func TestRangeSlices(t *testing.T) {
	tree := newValueTree()
	for k := 0; k < 64; k += 2 {
		tree.Put(k, k)
	}
	snap := tree.Snapshot()
	defer snap.Release()
	full := selectAll(t, snap, aatree.SelectOptions[int]{})

	filter := func(keep func(int) bool) []int {
		var out []int
		for _, v := range full {
			if keep(v) {
				out = append(out, v)
			}
		}
		return out
	}

	for k := -1; k <= 65; k++ {
		assert.Equal(t, filter(func(v int) bool { return v > k }), selectAll(t, snap.GT(k), aatree.SelectOptions[int]{}), "gt %d", k)
		assert.Equal(t, filter(func(v int) bool { return v >= k }), selectAll(t, snap.GTE(k), aatree.SelectOptions[int]{}), "gte %d", k)
		assert.Equal(t, filter(func(v int) bool { return v < k }), selectAll(t, snap.LT(k), aatree.SelectOptions[int]{}), "lt %d", k)
		assert.Equal(t, filter(func(v int) bool { return v <= k }), selectAll(t, snap.LTE(k), aatree.SelectOptions[int]{}), "lte %d", k)
		assert.Equal(t, len(filter(func(v int) bool { return v >= k })), snap.GTE(k).Len(), "gte size %d", k)
	}

	between := snap.GTE(10).LT(20)
	assert.Equal(t, []int{10, 12, 14, 16, 18}, selectAll(t, between, aatree.SelectOptions[int]{}))
	assert.Equal(t, []int{14, 16}, selectAll(t, between, aatree.SelectOptions[int]{Skip: 2, Limit: 2}))

	// slicing never touches the source
	assert.Equal(t, full, selectAll(t, snap, aatree.SelectOptions[int]{}))
	require.NoError(t, tree.Verify())
}

func TestViewWithCompare(t *testing.T) {
	tree := newValueTree()
	for k := 0; k <= 8; k += 2 {
		tree.Put(k, k)
	}
	snap := tree.Snapshot()
	defer snap.Release()

	// halving keeps the stored keys distinct and in the same order, and maps
	// 5 onto the node for 4
	coarse := snap.WithCompare(func(a, b int) int { return cmp.Compare(a/2, b/2) })
	got, ok := coarse.Get(5)
	require.True(t, ok)
	assert.Equal(t, []int{4}, got)
	assert.Equal(t, []int{6, 8}, selectAll(t, coarse.GT(5), aatree.SelectOptions[int]{}))
}
