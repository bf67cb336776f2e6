package aatree

import "spatialdb/pkg/common"

// Tail is the value container stored under one key. It may hold several
// values for the same key.
type Tail[V any] interface {
	Put(v V)
	Remove(v V)
	Size() int
	// Clone returns a tail that can be mutated without affecting the receiver.
	Clone() Tail[V]
	Select(sink common.Sink[V], c *Cursor[V])
	SelectReverse(sink common.Sink[V], c *Cursor[V])
}

// Cursor carries the traversal state shared by every node and tail of one
// select: values still to skip, values still allowed, an optional filter and
// the flow control the sink may stop.
type Cursor[V any] struct {
	Skip int
	// Limit < 0 means unlimited.
	Limit int
	Pred  func(V) bool
	FC    *common.FlowControl
}

// Done reports whether the traversal should stop.
func (c *Cursor[V]) Done() bool {
	return c.Limit == 0 || c.FC.Stopped()
}

// Emit applies the filter, skip and limit to v and forwards it to sink.
func (c *Cursor[V]) Emit(sink common.Sink[V], v V) {
	if c.Done() {
		return
	}
	if c.Pred != nil && !c.Pred(v) {
		return
	}
	if c.Skip > 0 {
		c.Skip--
		return
	}
	if c.Limit > 0 {
		c.Limit--
	}
	sink.Put(v, c.FC)
}
