// Package spatial provides the pure geometric primitive queries used as BVH
// traversal callbacks: closest-point projections onto segments and triangles,
// ray/triangle intersection, and swept-sphere/triangle intersection.
package spatial

import (
	"github.com/golang/geo/r3"
)

// Triangle is a triangle in 3-D space with a precomputed (unnormalized
// direction, unit length) normal.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a Triangle from its three vertices.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: TriangleNormal(p0, p1, p2),
	}
}

// Points returns the vertices of the triangle.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal of the triangle.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// TriangleNormal computes the unit normal of the triangle (p0, p1, p2). The
// zero vector is returned for degenerate triangles.
func TriangleNormal(p0, p1, p2 r3.Vector) r3.Vector {
	cross := p1.Sub(p0).Cross(p2.Sub(p0))
	if cross.Norm2() == 0 {
		return r3.Vector{}
	}
	return cross.Normalize()
}

// ClosestInsidePoint returns the closest point on the triangle if and only if
// the query point's projection overlaps the triangle, otherwise the query
// point itself and false.
func (t *Triangle) ClosestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	eps := 1e-6

	// Parametrize the triangle s.t. a point inside it is
	// Q = p0 + u*e0 + v*e1 with 0 <= u, 0 <= v, u+v <= 1,
	// then minimize the distance from point to Q analytically.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	det := a*c - b*b
	if det == 0 {
		return point, false
	}
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+eps) && (u <= 1+eps) && (0 <= v+eps) && (v <= 1+eps) && (u+v <= 1+eps)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}

// ClosestPoint returns the closest point on the triangle to the given point.
func (t *Triangle) ClosestPoint(point r3.Vector) r3.Vector {
	closestPtInside, inside := t.ClosestInsidePoint(point)
	if inside {
		return closestPtInside
	}

	// The closest point lies on an edge; check all three.
	closestPt := ClosestPointOnSegment(t.p0, t.p1, point)
	bestDist := point.Sub(closestPt).Norm2()

	newPt := ClosestPointOnSegment(t.p1, t.p2, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		closestPt = newPt
		bestDist = newDist
	}

	newPt = ClosestPointOnSegment(t.p2, t.p0, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		return newPt
	}
	return closestPt
}

// ClosestTriPoint is the function form of ClosestPoint for callers that
// already hold three vertices.
func ClosestTriPoint(point, p0, p1, p2 r3.Vector) r3.Vector {
	return NewTriangle(p0, p1, p2).ClosestPoint(point)
}
