package core

import (
	"cmp"
	"fmt"

	"spatialdb/pkg/core/structure"
	"spatialdb/pkg/optimizer"
)

// Body is an axis-aligned box moving through the world. Pos is the centre,
// Half the half extents on each axis.
type Body struct {
	ID   string     `yaml:"id" msgpack:"id"`
	Kind string     `yaml:"kind" msgpack:"kind"`
	Pos  [3]float64 `yaml:"pos" msgpack:"pos"`
	Half [3]float64 `yaml:"half" msgpack:"half"`
	Vel  [3]float64 `yaml:"vel" msgpack:"vel"`

	handle structure.Handle
}

var axisNames = [3]string{"x", "y", "z"}

// Space returns the index space over the first dims axes of a Body.
func Space(dims int) []optimizer.Axis {
	out := make([]optimizer.Axis, dims)
	for i := range out {
		out[i] = optimizer.Axis{Lower: axisNames[i] + "min", Upper: axisNames[i] + "max"}
	}
	return out
}

func (b *Body) EntityID() string { return b.ID }

func (b *Body) Min(axis int) float64 { return b.Pos[axis] - b.Half[axis] }
func (b *Body) Max(axis int) float64 { return b.Pos[axis] + b.Half[axis] }

func (b *Body) Moving() bool { return b.Vel != [3]float64{} }

// Field exposes the body to predicates: id, kind, x/y/z, vx/vy/vz,
// hx/hy/hz and the bounds xmin..zmax.
func (b *Body) Field(name string) (any, bool) {
	switch name {
	case "id":
		return b.ID, true
	case "kind":
		return b.Kind, true
	case "x":
		return b.Pos[0], true
	case "y":
		return b.Pos[1], true
	case "z":
		return b.Pos[2], true
	case "vx":
		return b.Vel[0], true
	case "vy":
		return b.Vel[1], true
	case "vz":
		return b.Vel[2], true
	case "hx":
		return b.Half[0], true
	case "hy":
		return b.Half[1], true
	case "hz":
		return b.Half[2], true
	case "xmin":
		return b.Min(0), true
	case "xmax":
		return b.Max(0), true
	case "ymin":
		return b.Min(1), true
	case "ymax":
		return b.Max(1), true
	case "zmin":
		return b.Min(2), true
	case "zmax":
		return b.Max(2), true
	}
	return nil, false
}

// Overlaps reports whether the two boxes intersect on the first dims axes.
// Touching boxes overlap.
func (b *Body) Overlaps(o *Body, dims int) bool {
	for i := 0; i < dims; i++ {
		if b.Min(i) > o.Max(i) || o.Min(i) > b.Max(i) {
			return false
		}
	}
	return true
}

func (b *Body) String() string {
	return fmt.Sprintf("%s(%s) pos=%v half=%v vel=%v", b.ID, b.Kind, b.Pos, b.Half, b.Vel)
}

func byID(a, b *Body) int { return cmp.Compare(a.ID, b.ID) }
