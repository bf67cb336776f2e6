package common

import "fmt"

// Sink 是推送式结果集协议，两个索引都通过它流式输出匹配项
type Sink[T any] interface {
	Put(item T, fc *FlowControl)
	Remove(item T)
	Error(err error)
	EOF()
}

// FlowControl lets a sink stop an in-progress scan early or abort it with an
// error. All methods are safe on a nil receiver.
type FlowControl struct {
	stopped bool
	err     error
}

func (fc *FlowControl) Stop() {
	if fc != nil {
		fc.stopped = true
	}
}

// Error records err and stops the scan.
func (fc *FlowControl) Error(err error) {
	if fc != nil {
		fc.err = err
		fc.stopped = true
	}
}

func (fc *FlowControl) Stopped() bool {
	return fc != nil && fc.stopped
}

func (fc *FlowControl) Err() error {
	if fc == nil {
		return nil
	}
	return fc.err
}

// ArraySink collects everything it is given.
type ArraySink[T any] struct {
	Items   []T
	Removed []T
	Err     error
	Done    bool
}

func (s *ArraySink[T]) Put(item T, _ *FlowControl) { s.Items = append(s.Items, item) }
func (s *ArraySink[T]) Remove(item T)              { s.Removed = append(s.Removed, item) }
func (s *ArraySink[T]) Error(err error)            { s.Err = err }
func (s *ArraySink[T]) EOF()                       { s.Done = true }

// String 方便调试打印
func (s *ArraySink[T]) String() string {
	return fmt.Sprintf("ArraySink{Items: %d, Removed: %d, EOF: %v}", len(s.Items), len(s.Removed), s.Done)
}

// FuncSink adapts a callback into a Sink. Remove, Error and EOF are no-ops.
type FuncSink[T any] func(item T, fc *FlowControl)

func (f FuncSink[T]) Put(item T, fc *FlowControl) { f(item, fc) }
func (f FuncSink[T]) Remove(T)                    {}
func (f FuncSink[T]) Error(error)                 {}
func (f FuncSink[T]) EOF()                        {}

// CountSink counts puts without retaining items.
type CountSink[T any] struct {
	Count int
}

func (s *CountSink[T]) Put(T, *FlowControl) { s.Count++ }
func (s *CountSink[T]) Remove(T)            {}
func (s *CountSink[T]) Error(error)         {}
func (s *CountSink[T]) EOF()                {}

// CountingSink forwards everything to the embedded sink and counts puts.
type CountingSink[T any] struct {
	Sink[T]
	N int
}

func (c *CountingSink[T]) Put(item T, fc *FlowControl) {
	c.N++
	c.Sink.Put(item, fc)
}
