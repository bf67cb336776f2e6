package aatree

import "spatialdb/pkg/common"

// View is a read-only tree: a pinned snapshot or a range slice of one.
// Slices share structure with their source and stay valid until the
// snapshot they came from is released.
type View[K, V any] struct {
	root    *node[K, V]
	cmp     func(a, b K) int
	release func()
}

// Release unpins the snapshot. Calling it more than once is harmless.
func (v *View[K, V]) Release() {
	if v.release != nil {
		v.release()
		v.release = nil
	}
}

func (v *View[K, V]) Len() int { return size(v.root) }

func (v *View[K, V]) Get(key K) ([]V, bool) { return collect(v.root, key, v.cmp) }

func (v *View[K, V]) Select(sink common.Sink[V], opts SelectOptions[V]) {
	run(v.root, sink, opts)
}

// WithCompare walks the same nodes with another comparator. cmp must order
// the existing keys consistently with the comparator the tree was built with.
func (v *View[K, V]) WithCompare(cmp func(a, b K) int) *View[K, V] {
	return &View[K, V]{root: v.root, cmp: cmp}
}

// GT returns the entries with keys strictly greater than key.
func (v *View[K, V]) GT(key K) *View[K, V] {
	return &View[K, V]{root: gt(v.root, key, v.cmp), cmp: v.cmp}
}

func (v *View[K, V]) GTE(key K) *View[K, V] {
	return &View[K, V]{root: gte(v.root, key, v.cmp), cmp: v.cmp}
}

func (v *View[K, V]) LT(key K) *View[K, V] {
	return &View[K, V]{root: lt(v.root, key, v.cmp), cmp: v.cmp}
}

func (v *View[K, V]) LTE(key K) *View[K, V] {
	return &View[K, V]{root: lte(v.root, key, v.cmp), cmp: v.cmp}
}
