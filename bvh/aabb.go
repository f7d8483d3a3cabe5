package bvh

import (
	"math"

	"github.com/golang/geo/r3"
)

// aabb is an axis-aligned box. The zero value is not meaningful; construct
// with newAABB.
type aabb struct {
	min, max r3.Vector
}

func newAABB(p r3.Vector) aabb {
	return aabb{min: p, max: p}
}

func (b aabb) extend(p r3.Vector) aabb {
	return aabb{
		min: r3.Vector{X: math.Min(b.min.X, p.X), Y: math.Min(b.min.Y, p.Y), Z: math.Min(b.min.Z, p.Z)},
		max: r3.Vector{X: math.Max(b.max.X, p.X), Y: math.Max(b.max.Y, p.Y), Z: math.Max(b.max.Z, p.Z)},
	}
}

func (b aabb) union(o aabb) aabb {
	return b.extend(o.min).extend(o.max)
}

func (b aabb) inflate(eps float64) aabb {
	if eps == 0 {
		return b
	}
	d := r3.Vector{X: eps, Y: eps, Z: eps}
	return aabb{min: b.min.Sub(d), max: b.max.Add(d)}
}

func (b aabb) center() r3.Vector {
	return b.min.Add(b.max).Mul(0.5)
}

func (b aabb) longestAxis() int {
	size := b.max.Sub(b.min)
	axis := 0
	longest := size.X
	if size.Y > longest {
		axis, longest = 1, size.Y
	}
	if size.Z > longest {
		axis = 2
	}
	return axis
}

// distSqToPoint returns the squared distance from p to the box, zero when p
// is inside.
func (b aabb) distSqToPoint(p r3.Vector) float64 {
	c := b.closestPoint(p)
	return c.Sub(p).Norm2()
}

func (b aabb) closestPoint(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: clamp(p.X, b.min.X, b.max.X),
		Y: clamp(p.Y, b.min.Y, b.max.Y),
		Z: clamp(p.Z, b.min.Z, b.max.Z),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rayEnter performs a slab test of the ray against the box inflated by the
// ray radius, returning the entry distance. A ray starting inside reports
// distance zero.
func (b aabb) rayEnter(origin, dir r3.Vector, radius float64) (float64, bool) {
	box := b.inflate(radius)
	tmin := math.Inf(-1)
	tmax := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		o := axisValue(origin, axis)
		d := axisValue(dir, axis)
		lo := axisValue(box.min, axis)
		hi := axisValue(box.max, axis)
		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	return math.Max(tmin, 0), true
}
