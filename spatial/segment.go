package spatial

import (
	"github.com/golang/geo/r3"
)

// ClosestPointOnSegment returns the point on segment (segA, segB) closest to
// the given point.
func ClosestPointOnSegment(segA, segB, point r3.Vector) r3.Vector {
	ab := segB.Sub(segA)
	abLenSq := ab.Norm2()
	if abLenSq == 0 {
		return segA
	}
	t := point.Sub(segA).Dot(ab) / abLenSq
	if t <= 0 {
		return segA
	}
	if t >= 1 {
		return segB
	}
	return segA.Add(ab.Mul(t))
}

// LinePointFactor returns the parameter of the projection of point onto the
// line through (lineA, lineB): 0 at lineA, 1 at lineB.
func LinePointFactor(point, lineA, lineB r3.Vector) float64 {
	ab := lineB.Sub(lineA)
	abLenSq := ab.Norm2()
	if abLenSq == 0 {
		return 0
	}
	return point.Sub(lineA).Dot(ab) / abLenSq
}

// ClosestLineLine returns the mutually closest points of the two infinite
// lines through (a1, a2) and (b1, b2): i1 on the first line, i2 on the
// second. Reports false when the lines are parallel or degenerate.
func ClosestLineLine(a1, a2, b1, b2 r3.Vector) (i1, i2 r3.Vector, ok bool) {
	d1 := a2.Sub(a1)
	d2 := b2.Sub(b1)
	r := a1.Sub(b1)

	a := d1.Norm2()
	e := d2.Norm2()
	b := d1.Dot(d2)
	c := d1.Dot(r)
	f := d2.Dot(r)

	denom := a*e - b*b
	if denom == 0 || a == 0 || e == 0 {
		return r3.Vector{}, r3.Vector{}, false
	}
	s := (b*f - c*e) / denom
	t := (a*f - b*c) / denom
	return a1.Add(d1.Mul(s)), b1.Add(d2.Mul(t)), true
}
