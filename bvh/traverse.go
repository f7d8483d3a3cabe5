package bvh

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// RaycastDistMax is the distance a fresh Hit starts at. Callbacks only record
// strictly closer hits, so it doubles as the "no hit" sentinel.
const RaycastDistMax = 1e30

// Nearest accumulates the best nearest-point candidate seen so far during a
// traversal.
type Nearest struct {
	Index  int
	Co     r3.Vector
	No     r3.Vector
	DistSq float64
}

// NewNearest returns a Nearest primed to accept any candidate.
func NewNearest() Nearest {
	return Nearest{Index: -1, DistSq: math.MaxFloat64}
}

// Ray is a query ray. Direction must be normalized. A non-zero Radius turns
// ray casts into swept-sphere casts.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
	Radius    float64
}

// Hit accumulates the best ray-cast candidate seen so far.
type Hit struct {
	Index int
	Co    r3.Vector
	No    r3.Vector
	Dist  float64
}

// NewHit returns a Hit primed to accept any candidate closer than
// RaycastDistMax.
func NewHit() Hit {
	return Hit{Index: -1, Dist: RaycastDistMax}
}

// NearestFunc resolves one primitive of the tree to an exact nearest-point
// candidate, updating nearest only if strictly closer.
type NearestFunc func(index int, co r3.Vector, nearest *Nearest)

// RaycastFunc resolves one primitive of the tree to an exact ray intersection,
// updating hit only if non-negative and strictly closer.
type RaycastFunc func(index int, ray *Ray, hit *Hit)

// NearestToPoint finds the primitive nearest to co, returning its index or -1.
// When fn is nil the bounding volume distance is used directly; for point
// primitives that distance is already exact.
func (t *Tree) NearestToPoint(co r3.Vector, nearest *Nearest, fn NearestFunc) int {
	if t == nil || t.root == nil {
		return -1
	}
	if nearest == nil {
		n := NewNearest()
		nearest = &n
	}
	if t.root.bounds.distSqToPoint(co) < nearest.DistSq {
		t.nearestRecursive(t.root, co, nearest, fn)
	}
	return nearest.Index
}

func (t *Tree) nearestRecursive(n *node, co r3.Vector, nearest *Nearest, fn NearestFunc) {
	if n.leaves != nil {
		for _, l := range n.leaves {
			if fn != nil {
				fn(l.index, co, nearest)
				continue
			}
			if distSq := l.bounds.distSqToPoint(co); distSq < nearest.DistSq {
				nearest.Index = l.index
				nearest.DistSq = distSq
				nearest.Co = l.bounds.closestPoint(co)
			}
		}
		return
	}

	// Visit children nearest bound first so the pruning distance tightens as
	// early as possible.
	type childDist struct {
		child  *node
		distSq float64
	}
	order := make([]childDist, len(n.children))
	for i, c := range n.children {
		order[i] = childDist{child: c, distSq: c.bounds.distSqToPoint(co)}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].distSq < order[j].distSq })
	for _, cd := range order {
		if cd.distSq >= nearest.DistSq {
			break
		}
		t.nearestRecursive(cd.child, co, nearest, fn)
	}
}

// Raycast walks the tree with the given ray, returning the index of the
// closest hit primitive or -1. When fn is nil the bounding volume entry
// distance is used directly.
func (t *Tree) Raycast(ray *Ray, hit *Hit, fn RaycastFunc) int {
	if t == nil || t.root == nil || ray == nil {
		return -1
	}
	if hit == nil {
		h := NewHit()
		hit = &h
	}
	t.raycastRecursive(t.root, ray, hit, fn)
	return hit.Index
}

func (t *Tree) raycastRecursive(n *node, ray *Ray, hit *Hit, fn RaycastFunc) {
	dist, ok := n.bounds.rayEnter(ray.Origin, ray.Direction, ray.Radius)
	if !ok || dist >= hit.Dist {
		return
	}
	if n.leaves != nil {
		for _, l := range n.leaves {
			if fn != nil {
				fn(l.index, ray, hit)
				continue
			}
			d, lok := l.bounds.rayEnter(ray.Origin, ray.Direction, ray.Radius)
			if lok && d < hit.Dist {
				hit.Index = l.index
				hit.Dist = d
				hit.Co = ray.Origin.Add(ray.Direction.Mul(d))
			}
		}
		return
	}
	for _, c := range n.children {
		t.raycastRecursive(c, ray, hit, fn)
	}
}
