// Package bvhutil builds and caches BVH trees over mesh, edit-mesh and
// point-cloud geometry, and binds the per-kind query callbacks that let the
// generic traversal resolve primitive indices back to exact geometry.
package bvhutil

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/meshops/meshbvh/bvh"
	"github.com/meshops/meshbvh/mesh"
)

// effectiveCount resolves the active-count hint against the mask. A nil mask
// means every primitive is included. A negative hint asks for the popcount to
// be computed here; a non-negative hint out of range is a programming error.
func effectiveCount(mask []bool, numActive, total int) int {
	if mask == nil {
		return total
	}
	if len(mask) != total {
		panic(fmt.Sprintf("bvhutil: mask has %d bits for %d primitives", len(mask), total))
	}
	if numActive < 0 {
		numActive = 0
		for _, b := range mask {
			if b {
				numActive++
			}
		}
	} else if numActive > total {
		panic(fmt.Sprintf("bvhutil: active count %d out of range for %d primitives", numActive, total))
	}
	return numActive
}

// assertLen traps masks whose claimed active count disagrees with their
// content; the tree must hold exactly one primitive per set bit.
func assertLen(tree *bvh.Tree, numActive int) {
	if tree.Len() != numActive {
		panic(fmt.Sprintf("bvhutil: built %d primitives, expected %d", tree.Len(), numActive))
	}
}

// BuildVerts constructs an unbalanced tree with one point per unmasked
// vertex, tagged with the vertex's source index. Returns nil when no vertex
// is active.
func BuildVerts(positions []r3.Vector, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, len(positions))
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, co := range positions {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i, co)
	}
	assertLen(tree, numActive)
	return tree
}

// BuildEdges constructs an unbalanced tree with one segment per unmasked
// edge.
func BuildEdges(positions []r3.Vector, edges []mesh.Edge, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, len(edges))
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, e := range edges {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i, positions[e.V1], positions[e.V2])
	}
	assertLen(tree, numActive)
	return tree
}

// BuildFaces constructs an unbalanced tree over legacy tessellated faces:
// three points per triangle, four per quad (V4 non-zero).
func BuildFaces(positions []r3.Vector, faces []mesh.Face, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, len(faces))
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, f := range faces {
		if mask != nil && !mask[i] {
			continue
		}
		if f.V4 != 0 {
			tree.Insert(i, positions[f.V1], positions[f.V2], positions[f.V3], positions[f.V4])
		} else {
			tree.Insert(i, positions[f.V1], positions[f.V2], positions[f.V3])
		}
	}
	assertLen(tree, numActive)
	return tree
}

// BuildLoopTris constructs an unbalanced tree with one triangle per unmasked
// loop-triangle.
func BuildLoopTris(positions []r3.Vector, loops []mesh.Loop, looptris []mesh.LoopTri, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, len(looptris))
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, lt := range looptris {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i,
			positions[loops[lt.Tri[0]].V],
			positions[loops[lt.Tri[1]].V],
			positions[loops[lt.Tri[2]].V])
	}
	assertLen(tree, numActive)
	return tree
}

// BuildEditMeshVerts is BuildVerts over edit-mesh vertex tables.
func BuildEditMeshVerts(em *mesh.EditMesh, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, em.VertCount())
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i := 0; i < em.VertCount(); i++ {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i, em.VertAt(i).Co)
	}
	assertLen(tree, numActive)
	return tree
}

// BuildEditMeshEdges is BuildEdges over edit-mesh edge tables.
func BuildEditMeshEdges(em *mesh.EditMesh, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, em.EdgeCount())
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, e := range em.Edges() {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i, e.V1.Co, e.V2.Co)
	}
	assertLen(tree, numActive)
	return tree
}

// BuildEditMeshLoopTris is BuildLoopTris over edit-mesh tessellation tables.
func BuildEditMeshLoopTris(em *mesh.EditMesh, mask []bool, numActive int, epsilon float64, treeType, axis int) *bvh.Tree {
	numActive = effectiveCount(mask, numActive, em.LoopTriCount())
	if numActive == 0 {
		return nil
	}
	tree := bvh.New(numActive, epsilon, treeType, axis)
	if tree == nil {
		return nil
	}
	for i, lt := range em.LoopTris() {
		if mask != nil && !mask[i] {
			continue
		}
		tree.Insert(i, lt[0].Vert.Co, lt[1].Vert.Co, lt[2].Vert.Co)
	}
	assertLen(tree, numActive)
	return tree
}
