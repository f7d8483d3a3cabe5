package uvpack

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/meshops/meshbvh/mesh"
)

// uniqueUVs collects the island's UV coordinates deduplicated across shared
// vertices: corners on the same vertex with equal UV contribute one point.
func (isle *Island) uniqueUVs() []r2.Point {
	seen := map[*mesh.EMVert][]r2.Point{}
	var points []r2.Point
	for _, f := range isle.Faces {
	corners:
		for _, l := range f.Loops {
			for _, uv := range seen[l.Vert] {
				if uv == l.UV {
					continue corners
				}
			}
			seen[l.Vert] = append(seen[l.Vert], l.UV)
			points = append(points, l.UV)
		}
	}
	return points
}

// convexHull2D returns the convex hull of points in counterclockwise order
// (monotone chain, collinear points dropped).
func convexHull2D(points []r2.Point) []r2.Point {
	if len(points) < 3 {
		return points
	}
	pts := make([]r2.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b r2.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]r2.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// fitAABBAngle finds the rotation that minimizes the area of the axis-aligned
// bounding box of points, by testing each convex hull edge direction
// (rotating calipers). Returns 0 for degenerate inputs.
func fitAABBAngle(points []r2.Point) float64 {
	hull := convexHull2D(points)
	if len(hull) < 3 {
		return 0
	}

	bestAngle, bestArea := 0.0, math.MaxFloat64
	for i := range hull {
		d := hull[(i+1)%len(hull)].Sub(hull[i])
		if d.Norm() == 0 {
			continue
		}
		angle := -math.Atan2(d.Y, d.X)
		w, h := rotatedExtent(hull, angle)
		if area := w * h; area < bestArea {
			bestArea = area
			bestAngle = angle
		}
	}
	return bestAngle
}

// rotatedExtent returns the width and height of the AABB of points after
// rotating them by angle.
func rotatedExtent(points []r2.Point, angle float64) (w, h float64) {
	sin, cos := math.Sincos(angle)
	rect := r2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(r2.Point{
			X: cos*p.X - sin*p.Y,
			Y: sin*p.X + cos*p.Y,
		})
	}
	return rect.X.Length(), rect.Y.Length()
}

// RotateFit rotates the island's UVs in place so its bounding box area is
// minimized, preferring the longer extent horizontal. Aspect correction is
// applied while fitting and undone while rotating, so the fit reflects what
// the texture actually shows.
func (isle *Island) RotateFit() {
	points := isle.uniqueUVs()
	if len(points) < 2 {
		return
	}
	if isle.AspectY != 1 {
		for i := range points {
			points[i].Y /= isle.AspectY
		}
	}

	angle := fitAABBAngle(points)
	if w, h := rotatedExtent(points, angle); h > w {
		// Put the longer side on the horizontal axis.
		angle += math.Pi / 2
	}
	if angle == 0 {
		return
	}
	isle.rotate(angle)
}

// rotate applies the rotation to every corner UV, exactly once per loop even
// when vertices are shared. The aspect correction sandwiches the rotation.
func (isle *Island) rotate(angle float64) {
	sin, cos := math.Sincos(angle)
	invAspect := 1.0
	if isle.AspectY != 1 {
		invAspect = 1 / isle.AspectY
	}
	for _, f := range isle.Faces {
		for _, l := range f.Loops {
			x, y := l.UV.X, l.UV.Y*invAspect
			l.UV = r2.Point{
				X: cos*x - sin*y,
				Y: (sin*x + cos*y) * isle.AspectY,
			}
		}
	}
}
