package bvhutil

import (
	"github.com/golang/geo/r3"

	"github.com/meshops/meshbvh/bvh"
	"github.com/meshops/meshbvh/spatial"
)

// The callbacks below are shared by the plain-mesh and edit-mesh handles:
// both resolve an index to primitive vertices and defer here, so the two
// paths cannot drift apart.

// triNearestPoint projects co onto one triangle and records it if strictly
// closer than the best so far.
func triNearestPoint(index int, co, t0, t1, t2 r3.Vector, nearest *bvh.Nearest) {
	pt := spatial.ClosestTriPoint(co, t0, t1, t2)
	distSq := co.Sub(pt).Norm2()
	if distSq < nearest.DistSq {
		nearest.Index = index
		nearest.DistSq = distSq
		nearest.Co = pt
		nearest.No = spatial.TriangleNormal(t0, t1, t2)
	}
}

// triSpherecast intersects the ray (or swept sphere, for non-zero radius)
// with one triangle and records the hit if non-negative and strictly closer.
func triSpherecast(index int, ray *bvh.Ray, t0, t1, t2 r3.Vector, hit *bvh.Hit) {
	var dist float64
	var ok bool
	if ray.Radius == 0 {
		dist, ok = spatial.RayTriangle(ray.Origin, ray.Direction, t0, t1, t2)
	} else {
		end := ray.Origin.Add(ray.Direction.Mul(hit.Dist))
		var lambda float64
		lambda, _, ok = spatial.SweepingSphereTriangle(ray.Origin, end, ray.Radius, t0, t1, t2)
		dist = lambda * hit.Dist
	}
	if ok && dist >= 0 && dist < hit.Dist {
		hit.Index = index
		hit.Dist = dist
		hit.Co = ray.Origin.Add(ray.Direction.Mul(dist))
		hit.No = spatial.TriangleNormal(t0, t1, t2)
	}
}

// quadNearestPoint walks a tessellated face as a fan: (0,1,2), then (0,2,3)
// when a fourth vertex exists.
func quadNearestPoint(index int, co, t0, t1, t2 r3.Vector, t3 *r3.Vector, nearest *bvh.Nearest) {
	triNearestPoint(index, co, t0, t1, t2, nearest)
	if t3 != nil {
		triNearestPoint(index, co, t0, t2, *t3, nearest)
	}
}

// quadSpherecast is the ray-cast analogue of quadNearestPoint.
func quadSpherecast(index int, ray *bvh.Ray, t0, t1, t2 r3.Vector, t3 *r3.Vector, hit *bvh.Hit) {
	triSpherecast(index, ray, t0, t1, t2, hit)
	if t3 != nil {
		triSpherecast(index, ray, t0, t2, *t3, hit)
	}
}

// edgeNearestPoint projects co onto one segment; the recorded normal is the
// normalized edge direction.
func edgeNearestPoint(index int, co, v1, v2 r3.Vector, nearest *bvh.Nearest) {
	pt := spatial.ClosestPointOnSegment(v1, v2, co)
	distSq := pt.Sub(co).Norm2()
	if distSq < nearest.DistSq {
		nearest.Index = index
		nearest.DistSq = distSq
		nearest.Co = pt
		no := v1.Sub(v2)
		if no.Norm2() > 0 {
			no = no.Normalize()
		}
		nearest.No = no
	}
}

// pointSpherecast projects a vertex onto the ray line. No hit when the
// projection falls behind the ray origin; the coarse radius test already
// happened against the leaf bounds.
func pointSpherecast(index int, v r3.Vector, ray *bvh.Ray, hit *bvh.Hit) {
	r1 := ray.Origin
	r2 := r1.Add(ray.Direction)

	fac := spatial.LinePointFactor(v, r1, r2)
	if fac < 0 {
		return
	}
	i1 := r1.Add(ray.Direction.Mul(fac))
	if dist := i1.Sub(r1).Norm(); dist < hit.Dist {
		hit.Index = index
		hit.Dist = dist
		hit.Co = i1
	}
}

// edgeSpherecast finds the mutually closest points of the edge line and the
// ray line. The intersection must not lie behind the ray origin, and the
// perpendicular distance from the ray's closest point to the point actually
// on the segment must not exceed the ray radius. Zero-length edges fall back
// to the point test.
func edgeSpherecast(index int, v1, v2 r3.Vector, ray *bvh.Ray, hit *bvh.Hit) {
	if v1 == v2 {
		pointSpherecast(index, v1, ray, hit)
		return
	}

	r1 := ray.Origin
	r2 := r1.Add(ray.Direction)
	i1, i2, ok := spatial.ClosestLineLine(v1, v2, r1, r2)
	if !ok {
		return
	}
	if i2.Sub(r1).Dot(r2.Sub(r1)) < 0 {
		return
	}
	dist := i2.Sub(r1).Norm()
	if dist >= hit.Dist {
		return
	}

	eFac := spatial.LinePointFactor(i1, v1, v2)
	if eFac < 0 {
		i1 = v1
	} else if eFac > 1 {
		i1 = v2
	}
	// Ensure the ray really passes close enough to the edge.
	if i1.Sub(i2).Norm2() <= ray.Radius*ray.Radius {
		hit.Index = index
		hit.Dist = dist
		hit.Co = i2
	}
}
