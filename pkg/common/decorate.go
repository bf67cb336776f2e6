package common

import "slices"

// Decorate wraps sink with the standard query pipeline:
// predicate filter -> ordering -> skip -> limit -> sink.
// A nil match accepts everything, a nil order keeps scan order, and
// non-positive skip/limit values disable those stages.
func Decorate[T any](sink Sink[T], match func(T) bool, order func(a, b T) int, skip, limit int) Sink[T] {
	if limit > 0 {
		sink = &LimitSink[T]{Delegate: sink, Remaining: limit}
	}
	if skip > 0 {
		sink = &SkipSink[T]{Delegate: sink, Remaining: skip}
	}
	if order != nil {
		sink = &OrderedSink[T]{Delegate: sink, Compare: order}
	}
	if match != nil {
		sink = &PredicatedSink[T]{Delegate: sink, Match: match}
	}
	return sink
}

type PredicatedSink[T any] struct {
	Delegate Sink[T]
	Match    func(T) bool
}

func (s *PredicatedSink[T]) Put(item T, fc *FlowControl) {
	if s.Match(item) {
		s.Delegate.Put(item, fc)
	}
}

func (s *PredicatedSink[T]) Remove(item T) {
	if s.Match(item) {
		s.Delegate.Remove(item)
	}
}

func (s *PredicatedSink[T]) Error(err error) { s.Delegate.Error(err) }
func (s *PredicatedSink[T]) EOF()            { s.Delegate.EOF() }

type SkipSink[T any] struct {
	Delegate  Sink[T]
	Remaining int
}

func (s *SkipSink[T]) Put(item T, fc *FlowControl) {
	if s.Remaining > 0 {
		s.Remaining--
		return
	}
	s.Delegate.Put(item, fc)
}

func (s *SkipSink[T]) Remove(item T)   { s.Delegate.Remove(item) }
func (s *SkipSink[T]) Error(err error) { s.Delegate.Error(err) }
func (s *SkipSink[T]) EOF()            { s.Delegate.EOF() }

// LimitSink forwards at most Remaining items and then stops the scan.
type LimitSink[T any] struct {
	Delegate  Sink[T]
	Remaining int
}

func (s *LimitSink[T]) Put(item T, fc *FlowControl) {
	if s.Remaining <= 0 {
		fc.Stop()
		return
	}
	s.Remaining--
	s.Delegate.Put(item, fc)
	if s.Remaining == 0 {
		fc.Stop()
	}
}

func (s *LimitSink[T]) Remove(item T)   { s.Delegate.Remove(item) }
func (s *LimitSink[T]) Error(err error) { s.Delegate.Error(err) }
func (s *LimitSink[T]) EOF()            { s.Delegate.EOF() }

// OrderedSink buffers until EOF, sorts, then replays into Delegate with its
// own flow control so downstream limits still apply.
type OrderedSink[T any] struct {
	Delegate Sink[T]
	Compare  func(a, b T) int
	buf      []T
}

func (s *OrderedSink[T]) Put(item T, _ *FlowControl) { s.buf = append(s.buf, item) }
func (s *OrderedSink[T]) Remove(item T)              { s.Delegate.Remove(item) }
func (s *OrderedSink[T]) Error(err error)            { s.Delegate.Error(err) }

func (s *OrderedSink[T]) EOF() {
	slices.SortStableFunc(s.buf, s.Compare)
	fc := &FlowControl{}
	for _, item := range s.buf {
		if fc.Stopped() {
			break
		}
		s.Delegate.Put(item, fc)
	}
	s.buf = nil
	if err := fc.Err(); err != nil {
		s.Delegate.Error(err)
		return
	}
	s.Delegate.EOF()
}
