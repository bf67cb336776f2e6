package aatree

import (
	"fmt"

	"spatialdb/pkg/common"
)

// node is one internal node of an AA tree. The nil *node is the leaf: it has
// level 0 and size 0, and every structural operation treats it as a no-op.
type node[K, V any] struct {
	key   K
	tail  Tail[V]
	size  int // tail sizes summed over the whole subtree
	level int
	left  *node[K, V]
	right *node[K, V]
}

func level[K, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.level
}

func size[K, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.size
}

// maybeClone copies the node when a reader may still be walking it.
func (n *node[K, V]) maybeClone(locked bool) *node[K, V] {
	if !locked || n == nil {
		return n
	}
	c := *n
	return &c
}

func (n *node[K, V]) updateSize() {
	n.size = size(n.left) + size(n.right) + n.tail.Size()
}

// skew removes a horizontal left link. n must already be writable.
func skew[K, V any](n *node[K, V], locked bool) *node[K, V] {
	if n == nil || n.left == nil || n.left.level != n.level {
		return n
	}
	l := n.left.maybeClone(locked)
	n.left = l.right
	l.right = n
	n.updateSize()
	l.updateSize()
	return l
}

// split removes two consecutive horizontal right links by raising the middle
// node. n must already be writable.
func split[K, V any](n *node[K, V], locked bool) *node[K, V] {
	if n == nil || n.right == nil || n.right.right == nil || n.level != n.right.right.level {
		return n
	}
	r := n.right.maybeClone(locked)
	n.right = r.left
	r.left = n
	r.level++
	n.updateSize()
	r.updateSize()
	return r
}

// decreaseLevel lowers n (and its right child) when a child link skips a level.
func decreaseLevel[K, V any](n *node[K, V], locked bool) *node[K, V] {
	want := min(level(n.left), level(n.right)) + 1
	if want < n.level {
		n.level = want
		if n.right != nil && want < n.right.level {
			n.right = n.right.maybeClone(locked)
			n.right.level = want
		}
	}
	return n
}

func predecessor[K, V any](n *node[K, V]) *node[K, V] {
	if n.left == nil {
		return n
	}
	s := n.left
	for s.right != nil {
		s = s.right
	}
	return s
}

func successor[K, V any](n *node[K, V]) *node[K, V] {
	if n.right == nil {
		return n
	}
	s := n.right
	for s.left != nil {
		s = s.left
	}
	return s
}

func get[K, V any](n *node[K, V], key K, cmp func(a, b K) int) (Tail[V], bool) {
	for n != nil {
		r := cmp(key, n.key)
		switch {
		case r == 0:
			return n.tail, true
		case r < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return nil, false
}

// mutation bundles what a structural edit needs at every level.
type mutation[K, V any] struct {
	cmp     func(a, b K) int
	newTail func() Tail[V]
	dedup   func(v V, key K) V
	locked  bool
}

// putKeyValue inserts value under key and returns the new subtree root.
func (m *mutation[K, V]) putKeyValue(n *node[K, V], key K, value V) *node[K, V] {
	if n == nil {
		t := m.newTail()
		t.Put(value)
		return &node[K, V]{key: key, tail: t, size: t.Size(), level: 1}
	}

	n = n.maybeClone(m.locked)
	r := m.cmp(key, n.key)
	switch {
	case r == 0:
		if m.dedup != nil {
			value = m.dedup(value, n.key)
		}
		if m.locked {
			n.tail = n.tail.Clone()
		}
		n.tail.Put(value)
	case r < 0:
		n.left = m.putKeyValue(n.left, key, value)
	default:
		n.right = m.putKeyValue(n.right, key, value)
	}
	n.updateSize()

	return split(skew(n, m.locked), m.locked)
}

// removeKeyValue removes value from the tail under key, deleting the node
// once its tail is empty.
func (m *mutation[K, V]) removeKeyValue(n *node[K, V], key K, value V) *node[K, V] {
	return m.remove(n, key, &value)
}

// removeNode deletes the node for key together with its whole tail.
func (m *mutation[K, V]) removeNode(n *node[K, V], key K) *node[K, V] {
	return m.remove(n, key, nil)
}

func (m *mutation[K, V]) remove(n *node[K, V], key K, value *V) *node[K, V] {
	if n == nil {
		return nil
	}

	n = n.maybeClone(m.locked)
	r := m.cmp(key, n.key)
	switch {
	case r < 0:
		n.left = m.remove(n.left, key, value)
	case r > 0:
		n.right = m.remove(n.right, key, value)
	default:
		if value != nil {
			if m.locked {
				n.tail = n.tail.Clone()
			}
			n.tail.Remove(*value)
			if n.tail.Size() > 0 {
				n.updateSize()
				return n
			}
		}
		if n.left == nil && n.right == nil {
			return nil
		}
		// reduce to the leaf case
		if n.left != nil {
			p := predecessor(n)
			n.key, n.tail = p.key, p.tail
			n.left = m.removeNode(n.left, p.key)
		} else {
			s := successor(n)
			n.key, n.tail = s.key, s.tail
			n.right = m.removeNode(n.right, s.key)
		}
	}
	n.updateSize()

	return m.rebalance(n)
}

// rebalance restores the invariants after a removal below n: decrease the
// level, then skew and split every node on the new level.
func (m *mutation[K, V]) rebalance(n *node[K, V]) *node[K, V] {
	n = skew(decreaseLevel(n, m.locked), m.locked)
	if n.right != nil {
		n.right = skew(n.right.maybeClone(m.locked), m.locked)
		if n.right.right != nil {
			n.right.right = skew(n.right.right.maybeClone(m.locked), m.locked)
			n.right.updateSize()
		}
		n.updateSize()
	}
	n = split(n, m.locked)
	if n.right != nil {
		n.right = split(n.right.maybeClone(m.locked), m.locked)
		n.updateSize()
	}
	return n
}

func selectAsc[K, V any](n *node[K, V], sink common.Sink[V], c *Cursor[V]) {
	if n == nil || c.Done() {
		return
	}
	if c.Pred == nil && c.Skip >= n.size {
		c.Skip -= n.size
		return
	}
	selectAsc(n.left, sink, c)
	if c.Done() {
		return
	}
	n.tail.Select(sink, c)
	selectAsc(n.right, sink, c)
}

func selectDesc[K, V any](n *node[K, V], sink common.Sink[V], c *Cursor[V]) {
	if n == nil || c.Done() {
		return
	}
	if c.Pred == nil && c.Skip >= n.size {
		c.Skip -= n.size
		return
	}
	selectDesc(n.right, sink, c)
	if c.Done() {
		return
	}
	n.tail.SelectReverse(sink, c)
	selectDesc(n.left, sink, c)
}

// Range slices never mutate: every node on the cut path is copied and all
// other subtrees are shared with the source.

func gt[K, V any](n *node[K, V], key K, cmp func(a, b K) int) *node[K, V] {
	if n == nil {
		return nil
	}
	r := cmp(key, n.key)
	if r < 0 {
		l := gt(n.left, key, cmp)
		c := *n
		c.size = n.size - size(n.left) + size(l)
		c.left = l
		return &c
	}
	if r > 0 {
		return gt(n.right, key, cmp)
	}
	return n.right
}

func gte[K, V any](n *node[K, V], key K, cmp func(a, b K) int) *node[K, V] {
	if n == nil {
		return nil
	}
	r := cmp(key, n.key)
	if r < 0 {
		l := gte(n.left, key, cmp)
		c := *n
		c.size = n.size - size(n.left) + size(l)
		c.left = l
		return &c
	}
	if r > 0 {
		return gte(n.right, key, cmp)
	}
	c := *n
	c.size = n.size - size(n.left)
	c.left = nil
	return &c
}

func lt[K, V any](n *node[K, V], key K, cmp func(a, b K) int) *node[K, V] {
	if n == nil {
		return nil
	}
	r := cmp(key, n.key)
	if r > 0 {
		rt := lt(n.right, key, cmp)
		c := *n
		c.size = n.size - size(n.right) + size(rt)
		c.right = rt
		return &c
	}
	if r < 0 {
		return lt(n.left, key, cmp)
	}
	return n.left
}

func lte[K, V any](n *node[K, V], key K, cmp func(a, b K) int) *node[K, V] {
	if n == nil {
		return nil
	}
	r := cmp(key, n.key)
	if r > 0 {
		rt := lte(n.right, key, cmp)
		c := *n
		c.size = n.size - size(n.right) + size(rt)
		c.right = rt
		return &c
	}
	if r < 0 {
		return lte(n.left, key, cmp)
	}
	c := *n
	c.size = n.size - size(n.right)
	c.right = nil
	return &c
}

// verify checks the AA invariants, subtree sizes and key order below n.
// lo and hi bound the keys allowed in this subtree.
func verify[K, V any](n *node[K, V], cmp func(a, b K) int, lo, hi *K) (int, error) {
	if n == nil {
		return 0, nil
	}
	if lo != nil && cmp(n.key, *lo) <= 0 {
		return 0, fmt.Errorf("key %v out of order (<= %v)", n.key, *lo)
	}
	if hi != nil && cmp(n.key, *hi) >= 0 {
		return 0, fmt.Errorf("key %v out of order (>= %v)", n.key, *hi)
	}
	if n.tail == nil || n.tail.Size() == 0 {
		return 0, fmt.Errorf("key %v: empty tail", n.key)
	}
	if level(n.left) != n.level-1 {
		return 0, fmt.Errorf("key %v: left level %d under level %d", n.key, level(n.left), n.level)
	}
	if rl := level(n.right); rl != n.level && rl != n.level-1 {
		return 0, fmt.Errorf("key %v: right level %d under level %d", n.key, rl, n.level)
	}
	if n.right != nil && level(n.right.right) >= n.level {
		return 0, fmt.Errorf("key %v: two horizontal right links at level %d", n.key, n.level)
	}
	if n.level > 1 && (n.left == nil || n.right == nil) {
		return 0, fmt.Errorf("key %v: level %d node with a missing child", n.key, n.level)
	}

	ls, err := verify(n.left, cmp, lo, &n.key)
	if err != nil {
		return 0, err
	}
	rs, err := verify(n.right, cmp, &n.key, hi)
	if err != nil {
		return 0, err
	}
	if want := ls + rs + n.tail.Size(); n.size != want {
		return 0, fmt.Errorf("key %v: size %d, want %d", n.key, n.size, want)
	}
	return n.size, nil
}
