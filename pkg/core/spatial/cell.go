package spatial

import "math"

// cellKey holds per-axis cell coordinates floor(v/w). Unused axes stay 0,
// which is unambiguous because the axis count is fixed per index.
type cellKey [maxDims]int64

// cells beyond this magnitude are no longer exact in float64
const maxCellCoord = 1 << 53

// cellSpan is the inclusive range of cell coordinates covering an interval
// on every axis. Coordinates are kept as floats so huge query boxes can be
// described without overflow.
type cellSpan struct {
	lo, hi [maxDims]float64
	dims   int
}

func (s cellSpan) count() float64 {
	n := 1.0
	for i := 0; i < s.dims; i++ {
		n *= s.hi[i] - s.lo[i] + 1
	}
	return n
}

// exact reports whether every coordinate fits an int64 cell key.
func (s cellSpan) exact() bool {
	for i := 0; i < s.dims; i++ {
		if math.Abs(s.lo[i]) > maxCellCoord || math.Abs(s.hi[i]) > maxCellCoord {
			return false
		}
	}
	return true
}

func (s cellSpan) keys() (lo, hi cellKey) {
	for i := 0; i < s.dims; i++ {
		lo[i], hi[i] = int64(s.lo[i]), int64(s.hi[i])
	}
	return lo, hi
}

func (s cellSpan) contains(k cellKey) bool {
	for i := 0; i < s.dims; i++ {
		c := float64(k[i])
		if c < s.lo[i] || c > s.hi[i] {
			return false
		}
	}
	return true
}

// spanOf maps per-axis [lo, hi] bounds onto cells. Cell c on an axis of
// width w covers [c*w, (c+1)*w), so the floors of both ends include every
// partially covered boundary cell. ok is false for non-finite or inverted
// bounds.
func spanOf(lo, hi []float64, widths []float64) (cellSpan, bool) {
	s := cellSpan{dims: len(widths)}
	for i, w := range widths {
		l, h := lo[i], hi[i]
		if math.IsNaN(l) || math.IsNaN(h) || math.IsInf(l, 0) || math.IsInf(h, 0) || l > h {
			return s, false
		}
		s.lo[i] = math.Floor(l / w)
		s.hi[i] = math.Floor(h / w)
	}
	return s, true
}

// forEachCell visits every key in [lo, hi] in lexicographic order until fn
// returns false. It reports whether the walk completed.
func forEachCell(lo, hi cellKey, dims int, fn func(cellKey) bool) bool {
	k := lo
	for {
		if !fn(k) {
			return false
		}
		i := dims - 1
		for ; i >= 0; i-- {
			if k[i] < hi[i] {
				k[i]++
				break
			}
			k[i] = lo[i]
		}
		if i < 0 {
			return true
		}
	}
}
