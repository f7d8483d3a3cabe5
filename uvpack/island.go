// Package uvpack groups the UV-mapped faces of an edit mesh into islands of
// UV-contiguous faces, optionally rotates each island to minimize its bounding
// box, and packs the islands into unit or UDIM-tiled UV space.
//
// The package has no concurrency of its own. Callers own the edit meshes
// exclusively for the duration of an operation.
package uvpack

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/meshops/meshbvh/mesh"
)

// Island is one maximal group of faces connected through shared, non-seam,
// UV-coincident edges.
type Island struct {
	Faces []*mesh.EMFace

	// AspectY corrects for non-square texture texels when fitting rotations.
	AspectY float64

	// Bounds is the island's axis-aligned UV bounding box, filled in by
	// boundsOf before packing.
	Bounds r2.Rect
}

// IslandParams filters which faces participate in island discovery.
type IslandParams struct {
	// OnlySelectedFaces restricts discovery to selected faces.
	OnlySelectedFaces bool

	// OnlySelectedUVs additionally requires every corner's UV selection flag.
	OnlySelectedUVs bool

	// UseSeams stops islands from growing across edges flagged as seams.
	UseSeams bool

	// AspectY is attached to every discovered island; zero means 1.
	AspectY float64
}

func (p IslandParams) faceEligible(f *mesh.EMFace) bool {
	if f.Hidden {
		return false
	}
	if p.OnlySelectedFaces && !f.Selected {
		return false
	}
	if p.OnlySelectedUVs {
		if !f.Selected {
			return false
		}
		for _, l := range f.Loops {
			if !l.SelectUV {
				return false
			}
		}
	}
	return true
}

// loopUVShareEdge reports whether two loops walking the same edge have
// coinciding UV coordinates on both endpoints, i.e. the faces are UV-welded
// across that edge.
func loopUVShareEdge(l1, l2 *mesh.EMLoop) bool {
	uvEnds := func(l *mesh.EMLoop) (a, b r2.Point) {
		// A loop's edge runs from its vertex to the next corner's vertex.
		// Orient by shared vertex identity so opposing loops compare the
		// same endpoints.
		if l.Vert == l1.Vert {
			return l.UV, l.Next.UV
		}
		return l.Next.UV, l.UV
	}
	a1, b1 := uvEnds(l1)
	a2, b2 := uvEnds(l2)
	return a1 == a2 && b1 == b2
}

// CalcUVIslands partitions the eligible faces of em into islands: connected
// components of the face graph whose edges are UV-contiguous mesh edges.
// Returns nil when the mesh has no UV layer.
func CalcUVIslands(em *mesh.EditMesh, params IslandParams) []*Island {
	if !em.HasUVs() {
		return nil
	}
	aspectY := params.AspectY
	if aspectY == 0 {
		aspectY = 1
	}

	eligible := make([]bool, em.FaceCount())
	g := simple.NewUndirectedGraph()
	for _, f := range em.Faces() {
		if params.faceEligible(f) {
			eligible[f.Index] = true
			g.AddNode(simple.Node(f.Index))
		}
	}

	for _, e := range em.Edges() {
		if params.UseSeams && e.Seam {
			continue
		}
		loops := e.Loops
		for i := 0; i < len(loops); i++ {
			if !eligible[loops[i].Face.Index] {
				continue
			}
			for j := i + 1; j < len(loops); j++ {
				if !eligible[loops[j].Face.Index] {
					continue
				}
				if loops[i].Face == loops[j].Face {
					continue
				}
				if loopUVShareEdge(loops[i], loops[j]) {
					g.SetEdge(simple.Edge{
						F: simple.Node(loops[i].Face.Index),
						T: simple.Node(loops[j].Face.Index),
					})
				}
			}
		}
	}

	var islands []*Island
	for _, component := range topo.ConnectedComponents(g) {
		isle := &Island{AspectY: aspectY}
		for _, n := range component {
			isle.Faces = append(isle.Faces, em.FaceAt(int(n.ID())))
		}
		islands = append(islands, isle)
	}
	return islands
}

// hasPins reports whether any of the island's corners should anchor it in
// place. With pinUnselected set, an unselected UV corner counts as pinned.
func (isle *Island) hasPins(pinUnselected bool) bool {
	for _, f := range isle.Faces {
		for _, l := range f.Loops {
			if l.PinUV {
				return true
			}
			if pinUnselected && !l.SelectUV {
				return true
			}
		}
	}
	return false
}

// boundsOf computes and stores the island's UV bounding box.
func (isle *Island) boundsOf() r2.Rect {
	rect := r2.EmptyRect()
	for _, f := range isle.Faces {
		for _, l := range f.Loops {
			rect = rect.AddPoint(l.UV)
		}
	}
	isle.Bounds = rect
	return rect
}
