// Package structure 提供定长资源管理：固定容量的槽位 arena，按代数（generation）识别过期句柄。
package structure

import (
	"fmt"

	"spatialdb/pkg/common"
)

// Handle addresses one arena slot. Gen changes every time the slot is freed,
// so handles kept past Free are detected instead of aliasing a new value.
type Handle struct {
	Index uint32
	Gen   uint32
}

type slot[T any] struct {
	val  T
	gen  uint32
	used bool
}

// Arena is a fixed-capacity store with a free list. It never grows: Alloc
// beyond the capacity fails with common.ErrCapacityExceeded.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	n     int
}

func NewArena[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	a := &Arena[T]{
		slots: make([]slot[T], capacity),
		free:  make([]uint32, capacity),
	}
	// hand out low indexes first
	for i := range a.free {
		a.free[i] = uint32(capacity - 1 - i)
	}
	return a
}

func (a *Arena[T]) Alloc(v T) (Handle, error) {
	if len(a.free) == 0 {
		return Handle{}, fmt.Errorf("arena alloc (cap %d): %w", len(a.slots), common.ErrCapacityExceeded)
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	s := &a.slots[idx]
	s.val, s.used = v, true
	a.n++
	return Handle{Index: idx, Gen: s.gen}, nil
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if int(h.Index) >= len(a.slots) {
		return nil, fmt.Errorf("handle %d/%d: %w", h.Index, h.Gen, common.ErrStaleHandle)
	}
	s := &a.slots[h.Index]
	if !s.used || s.gen != h.Gen {
		return nil, fmt.Errorf("handle %d/%d: %w", h.Index, h.Gen, common.ErrStaleHandle)
	}
	return s, nil
}

func (a *Arena[T]) Get(h Handle) (T, error) {
	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.val, nil
}

func (a *Arena[T]) Free(h Handle) error {
	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	var zero T
	s.val, s.used = zero, false
	s.gen++
	a.free = append(a.free, h.Index)
	a.n--
	return nil
}

func (a *Arena[T]) Len() int { return a.n }

func (a *Arena[T]) Cap() int { return len(a.slots) }

// Each visits live slots in index order until fn returns false.
func (a *Arena[T]) Each(fn func(h Handle, v T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.used && !fn(Handle{Index: uint32(i), Gen: s.gen}, s.val) {
			return
		}
	}
}
