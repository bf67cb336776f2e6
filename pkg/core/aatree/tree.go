// Package aatree 实现有序索引：AA 树（水平链接平衡树），每个 key 对应一个 Tail 容器。
//
// 写操作默认原地修改；只要有遍历或快照尚未结束（locked），写操作就改为
// 写时复制，正在进行的遍历看到的仍是旧结构。
package aatree

import (
	"sync/atomic"

	"spatialdb/pkg/common"
)

// Tree is an ordered index from keys to tails. Any number of readers (Get,
// Select, Snapshot) may run concurrently, but writes need exclusive access;
// mutation from inside a Select callback is allowed.
type Tree[K, V any] struct {
	root    *node[K, V]
	cmp     func(a, b K) int
	newTail func() Tail[V]
	dedup   func(v V, key K) V
	pins    atomic.Int32
}

type Option[K, V any] func(*Tree[K, V])

// WithDedup installs a hook that may replace a value before it joins an
// existing key's tail.
func WithDedup[K, V any](fn func(v V, key K) V) Option[K, V] {
	return func(t *Tree[K, V]) { t.dedup = fn }
}

// New creates an empty tree ordered by cmp, creating tails with newTail.
func New[K, V any](cmp func(a, b K) int, newTail func() Tail[V], opts ...Option[K, V]) *Tree[K, V] {
	t := &Tree[K, V]{cmp: cmp, newTail: newTail}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// locked reports whether a traversal or snapshot may still see the nodes.
func (t *Tree[K, V]) locked() bool { return t.pins.Load() > 0 }

func (t *Tree[K, V]) mutation() *mutation[K, V] {
	return &mutation[K, V]{cmp: t.cmp, newTail: t.newTail, dedup: t.dedup, locked: t.locked()}
}

func (t *Tree[K, V]) Put(key K, v V) {
	t.root = t.mutation().putKeyValue(t.root, key, v)
}

// Remove removes v from key's tail and reports whether anything was removed.
func (t *Tree[K, V]) Remove(key K, v V) bool {
	if _, ok := get(t.root, key, t.cmp); !ok {
		return false
	}
	before := size(t.root)
	t.root = t.mutation().removeKeyValue(t.root, key, v)
	return size(t.root) < before
}

// RemoveKey drops key and every value stored under it.
func (t *Tree[K, V]) RemoveKey(key K) bool {
	if _, ok := get(t.root, key, t.cmp); !ok {
		return false
	}
	t.root = t.mutation().removeNode(t.root, key)
	return true
}

// Get returns the values stored under key in tail order.
func (t *Tree[K, V]) Get(key K) ([]V, bool) {
	return collect(t.root, key, t.cmp)
}

// Len is the total number of values in the tree.
func (t *Tree[K, V]) Len() int { return size(t.root) }

// Height is the level of the root.
func (t *Tree[K, V]) Height() int { return level(t.root) }

// SelectOptions controls a traversal. Limit <= 0 means unlimited.
type SelectOptions[V any] struct {
	Skip    int
	Limit   int
	Pred    func(V) bool
	Reverse bool
}

// Select streams values in key order to sink and finishes with EOF, or with
// Error if the sink aborted through its flow control. The tree stays pinned
// while the sink runs, so sink callbacks may mutate it safely.
func (t *Tree[K, V]) Select(sink common.Sink[V], opts SelectOptions[V]) {
	t.pins.Add(1)
	defer t.pins.Add(-1)
	run(t.root, sink, opts)
}

// Snapshot pins the current contents. Mutations copy instead of editing in
// place until the returned view is released.
func (t *Tree[K, V]) Snapshot() *View[K, V] {
	t.pins.Add(1)
	return &View[K, V]{root: t.root, cmp: t.cmp, release: func() { t.pins.Add(-1) }}
}

// Verify checks every structural invariant and returns the first violation.
func (t *Tree[K, V]) Verify() error {
	_, err := verify(t.root, t.cmp, nil, nil)
	return err
}

func run[K, V any](root *node[K, V], sink common.Sink[V], opts SelectOptions[V]) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	c := &Cursor[V]{Skip: max(opts.Skip, 0), Limit: limit, Pred: opts.Pred, FC: &common.FlowControl{}}
	if opts.Reverse {
		selectDesc(root, sink, c)
	} else {
		selectAsc(root, sink, c)
	}
	if err := c.FC.Err(); err != nil {
		sink.Error(err)
		return
	}
	sink.EOF()
}

func collect[K, V any](root *node[K, V], key K, cmp func(a, b K) int) ([]V, bool) {
	tail, ok := get(root, key, cmp)
	if !ok {
		return nil, false
	}
	sink := &common.ArraySink[V]{}
	tail.Select(sink, &Cursor[V]{Limit: -1, FC: &common.FlowControl{}})
	return sink.Items, true
}
