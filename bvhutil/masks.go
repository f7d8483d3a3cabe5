package bvhutil

import (
	"github.com/meshops/meshbvh/mesh"
	"github.com/meshops/meshbvh/task"
)

// LooseVertsMask returns an inclusion mask over vertices that are an endpoint
// of no edge, and the number of set bits. Clearing an already cleared bit is
// a no-op, so shared endpoints are only counted once.
func LooseVertsMask(edges []mesh.Edge, vertsNum int) ([]bool, int) {
	mask := make([]bool, vertsNum)
	for i := range mask {
		mask[i] = true
	}

	numLinked := 0
	for _, e := range edges {
		if mask[e.V1] {
			mask[e.V1] = false
			numLinked++
		}
		if mask[e.V2] {
			mask[e.V2] = false
			numLinked++
		}
	}
	return mask, vertsNum - numLinked
}

// looseEdgesMask forwards the mesh's precomputed loose-edge cache.
func looseEdgesMask(m *mesh.Mesh) ([]bool, int) {
	loose := m.LooseEdges()
	return loose.Mask, loose.Count
}

// NoHiddenLoopTrisMask returns an inclusion mask over loop-triangles that
// excludes every triangle of a hidden polygon. When the hidden attribute is
// the uniform constant false there is nothing to exclude and a nil mask
// (include all) is returned instead of allocating an all-true one.
//
// A sequential pass accumulates each polygon's cumulative fan-triangle offset
// and the active count; the mask fill then runs chunked over the polygons,
// each worker writing only its own polygons' disjoint triangle ranges.
func NoHiddenLoopTrisMask(polys []mesh.Poly, hidePoly mesh.BoolAttr, looptriLen int) ([]bool, int) {
	if hidePoly.IsUniform() && !hidePoly.Uniform() {
		return nil, looptriLen
	}

	offsets := make([]int, len(polys))
	triIndex := 0
	numActive := 0
	for i, p := range polys {
		offsets[i] = triIndex
		trisNum := p.TriCount()
		triIndex += trisNum
		if !hidePoly.At(i) {
			numActive += trisNum
		}
	}

	mask := make([]bool, looptriLen)
	task.Parallel(len(polys), func(from, to int) {
		for i := from; i < to; i++ {
			if hidePoly.At(i) {
				continue
			}
			trisNum := polys[i].TriCount()
			for t := 0; t < trisNum; t++ {
				mask[offsets[i]+t] = true
			}
		}
	})
	return mask, numActive
}
