package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// rayTriEps tolerates hits marginally outside the triangle so adjacent
// triangles sharing an edge cannot both reject a ray passing through it.
const rayTriEps = 1e-12

// RayTriangle intersects a ray with triangle (v0, v1, v2) and returns the hit
// distance along the ray. Hits behind the origin are rejected.
func RayTriangle(origin, dir, v0, v1, v2 r3.Vector) (float64, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayTriEps {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(v0)
	u := s.Dot(p) * inv
	if u < -rayTriEps || u > 1+rayTriEps {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < -rayTriEps || u+v > 1+rayTriEps {
		return 0, false
	}
	dist := e2.Dot(q) * inv
	if dist < 0 {
		return 0, false
	}
	return dist, true
}

// SweepingSphereTriangle sweeps a sphere of the given radius from p1 to p2 and
// intersects it with triangle (v0, v1, v2). It returns the sweep fraction in
// [0, 1] at first contact and the contact point on the triangle.
func SweepingSphereTriangle(p1, p2 r3.Vector, radius float64, v0, v1, v2 r3.Vector) (float64, r3.Vector, bool) {
	vel := p2.Sub(p1)
	n := TriangleNormal(v0, v1, v2)
	if n == (r3.Vector{}) {
		return 0, r3.Vector{}, false
	}

	// Orient the normal toward the sphere start.
	d0 := n.Dot(p1.Sub(v0))
	if d0 < 0 {
		n = n.Mul(-1)
		d0 = -d0
	}
	dv := n.Dot(vel)

	// Time of first plane contact.
	var t0 float64
	switch {
	case d0 <= radius:
		t0 = 0
	case dv >= 0:
		// Starting beyond the radius and not approaching the plane.
		return 0, r3.Vector{}, false
	default:
		t0 = (radius - d0) / dv
	}

	// Face region: the projection of the sphere center at plane contact. A
	// face hit is necessarily the earliest possible contact.
	if t0 <= 1 {
		pos := p1.Add(vel.Mul(t0))
		q := pos.Sub(n.Mul(n.Dot(pos.Sub(v0))))
		if pointInTriangle(q, v0, v1, v2) {
			return t0, q, true
		}
	}

	best := math.Inf(1)
	var bestPt r3.Vector

	// Vertex regions: |p1 + vel*t - v|^2 = radius^2.
	for _, v := range []r3.Vector{v0, v1, v2} {
		x := p1.Sub(v)
		a := vel.Norm2()
		b := 2 * vel.Dot(x)
		c := x.Norm2() - radius*radius
		if t, ok := smallestQuadraticRoot(a, b, c); ok && t < best {
			best = t
			bestPt = v
		}
	}

	// Edge regions: distance from the moving center to the edge line reaches
	// the radius, with the foot of the perpendicular inside the segment.
	edges := [3][2]r3.Vector{{v0, v1}, {v1, v2}, {v2, v0}}
	for _, edge := range edges {
		e := edge[1].Sub(edge[0])
		eLen := e.Norm()
		if eLen == 0 {
			continue
		}
		eDir := e.Mul(1 / eLen)
		x := p1.Sub(edge[0])
		velE := vel.Dot(eDir)
		xE := x.Dot(eDir)
		a := vel.Norm2() - velE*velE
		b := 2 * (x.Dot(vel) - xE*velE)
		c := x.Norm2() - xE*xE - radius*radius
		t, ok := smallestQuadraticRoot(a, b, c)
		if !ok || t >= best {
			continue
		}
		s := xE + velE*t
		if s < 0 || s > eLen {
			continue
		}
		best = t
		bestPt = edge[0].Add(eDir.Mul(s))
	}

	if best > 1 {
		return 0, r3.Vector{}, false
	}
	return best, bestPt, true
}

// pointInTriangle reports whether the coplanar point q lies within triangle
// (v0, v1, v2).
func pointInTriangle(q, v0, v1, v2 r3.Vector) bool {
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	c0 := v1.Sub(v0).Cross(q.Sub(v0)).Dot(n)
	c1 := v2.Sub(v1).Cross(q.Sub(v1)).Dot(n)
	c2 := v0.Sub(v2).Cross(q.Sub(v2)).Dot(n)
	return c0 >= 0 && c1 >= 0 && c2 >= 0
}

// smallestQuadraticRoot returns the smallest root of a*t^2 + b*t + c = 0 in
// [0, 1].
func smallestQuadraticRoot(a, b, c float64) (float64, bool) {
	if a == 0 {
		if b == 0 {
			return 0, false
		}
		t := -c / b
		if t >= 0 && t <= 1 {
			return t, true
		}
		return 0, false
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	for _, t := range []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)} {
		if t >= 0 && t <= 1 {
			return t, true
		}
	}
	return 0, false
}
