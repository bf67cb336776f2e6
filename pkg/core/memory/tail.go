// Package memory 提供有序索引的 Tail 实现。
package memory

import (
	"github.com/google/btree"

	"spatialdb/pkg/common"
	"spatialdb/pkg/core/aatree"
)

const DefaultDegree = 8

// SetTail keeps the values of one key as an ordered set. Clone is O(1): the
// underlying btree copies nodes lazily on the first write to either side.
type SetTail[V any] struct {
	tree *btree.BTreeG[V]
}

func NewSetTail[V any](degree int, less func(a, b V) bool) *SetTail[V] {
	if degree < 2 {
		degree = DefaultDegree
	}
	return &SetTail[V]{tree: btree.NewG[V](degree, less)}
}

// SetTailFactory returns a tail constructor for aatree.New.
func SetTailFactory[V any](degree int, less func(a, b V) bool) func() aatree.Tail[V] {
	return func() aatree.Tail[V] { return NewSetTail(degree, less) }
}

// Put inserts v, replacing an equal value.
func (t *SetTail[V]) Put(v V) { t.tree.ReplaceOrInsert(v) }

func (t *SetTail[V]) Remove(v V) { t.tree.Delete(v) }

func (t *SetTail[V]) Size() int { return t.tree.Len() }

func (t *SetTail[V]) Clone() aatree.Tail[V] { return &SetTail[V]{tree: t.tree.Clone()} }

func (t *SetTail[V]) Select(sink common.Sink[V], c *aatree.Cursor[V]) {
	t.tree.Ascend(func(v V) bool {
		c.Emit(sink, v)
		return !c.Done()
	})
}

func (t *SetTail[V]) SelectReverse(sink common.Sink[V], c *aatree.Cursor[V]) {
	t.tree.Descend(func(v V) bool {
		c.Emit(sink, v)
		return !c.Done()
	})
}

// ValueTail holds a single value; Put overwrites it.
type ValueTail[V comparable] struct {
	v   V
	set bool
}

func NewValueTail[V comparable]() aatree.Tail[V] { return &ValueTail[V]{} }

func (t *ValueTail[V]) Put(v V) { t.v, t.set = v, true }

// Remove clears the slot only when it holds v.
func (t *ValueTail[V]) Remove(v V) {
	if t.set && t.v == v {
		var zero V
		t.v, t.set = zero, false
	}
}

func (t *ValueTail[V]) Size() int {
	if t.set {
		return 1
	}
	return 0
}

func (t *ValueTail[V]) Clone() aatree.Tail[V] {
	c := *t
	return &c
}

func (t *ValueTail[V]) Select(sink common.Sink[V], c *aatree.Cursor[V]) {
	if t.set {
		c.Emit(sink, t.v)
	}
}

func (t *ValueTail[V]) SelectReverse(sink common.Sink[V], c *aatree.Cursor[V]) {
	t.Select(sink, c)
}
