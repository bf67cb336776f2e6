package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spatialdb/pkg/common"
	"spatialdb/pkg/core/aatree"
)

func drain[V any](tail aatree.Tail[V], reverse bool, c *aatree.Cursor[V]) []V {
	sink := &common.ArraySink[V]{}
	if c == nil {
		c = &aatree.Cursor[V]{Limit: -1}
	}
	if reverse {
		tail.SelectReverse(sink, c)
	} else {
		tail.Select(sink, c)
	}
	return sink.Items
}

func TestSetTailOrderAndDedup(t *testing.T) {
	tail := NewSetTail(0, func(a, b string) bool { return a < b })
	for _, v := range []string{"c", "a", "b", "a"} {
		tail.Put(v)
	}
	assert.Equal(t, 3, tail.Size())
	assert.Equal(t, []string{"a", "b", "c"}, drain[string](tail, false, nil))
	assert.Equal(t, []string{"c", "b", "a"}, drain[string](tail, true, nil))

	tail.Remove("b")
	tail.Remove("zz")
	assert.Equal(t, []string{"a", "c"}, drain[string](tail, false, nil))
}

func TestSetTailCloneIsIndependent(t *testing.T) {
	tail := NewSetTail(2, func(a, b int) bool { return a < b })
	for i := 0; i < 50; i++ {
		tail.Put(i)
	}
	clone := tail.Clone()
	clone.Remove(10)
	clone.Put(100)
	tail.Put(-1)

	assert.Equal(t, 51, tail.Size())
	assert.Equal(t, 50, clone.Size())
	assert.NotContains(t, drain(clone, false, nil), -1)
	assert.Contains(t, drain[int](tail, false, nil), 10)
}

func TestSetTailCursor(t *testing.T) {
	tail := NewSetTail(4, func(a, b int) bool { return a < b })
	for i := 0; i < 10; i++ {
		tail.Put(i)
	}
	c := &aatree.Cursor[int]{Skip: 2, Limit: 3, Pred: func(v int) bool { return v%2 == 1 }}
	assert.Equal(t, []int{5, 7, 9}, drain[int](tail, false, c))
	assert.Zero(t, c.Limit)
	assert.True(t, c.Done())
}

func TestValueTail(t *testing.T) {
	tail := NewValueTail[int]()
	assert.Zero(t, tail.Size())
	assert.Empty(t, drain(tail, false, nil))

	tail.Put(1)
	tail.Put(2)
	assert.Equal(t, 1, tail.Size())
	assert.Equal(t, []int{2}, drain(tail, true, nil))

	clone := tail.Clone()
	tail.Remove(2)
	assert.Zero(t, tail.Size())
	assert.Equal(t, 1, clone.Size())
}
