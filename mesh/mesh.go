// Package mesh defines the read-only geometry containers the acceleration
// structures are built from: flat-array meshes, edit-time meshes with
// topology iteration, and attribute-carrying point clouds.
package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Edge connects two vertices by index.
type Edge struct {
	V1, V2 int
}

// Face is a legacy tessellated face: a triangle, or a quad when V4 is
// non-zero.
type Face struct {
	V1, V2, V3, V4 int
}

// Poly is an n-gon referencing a contiguous run of loops.
type Poly struct {
	LoopStart, LoopTotal int
}

// TriCount returns how many triangles the polygon fans out to.
func (p Poly) TriCount() int {
	if p.LoopTotal < 3 {
		return 0
	}
	return p.LoopTotal - 2
}

// Loop is one polygon corner, referencing its vertex and the edge toward the
// next corner.
type Loop struct {
	V, E int
}

// LoopTri is one triangle of a polygon's fan triangulation, referencing three
// loops.
type LoopTri struct {
	Tri [3]int
}

// LooseEdgeCache records which edges belong to no polygon.
type LooseEdgeCache struct {
	Count int
	Mask  []bool
}

// Mesh is a polygonal mesh backed by flat arrays. Geometry is treated as
// immutable once constructed; derived data (loop triangles, loose edges) and
// the BVH cache live in the runtime state and are computed lazily.
type Mesh struct {
	positions []r3.Vector
	edges     []Edge
	faces     []Face
	polys     []Poly
	loops     []Loop
	hidePoly  BoolAttr

	runtime Runtime
}

// New creates a mesh over the given arrays. The arrays are referenced, not
// copied.
func New(positions []r3.Vector, edges []Edge, polys []Poly, loops []Loop) *Mesh {
	return &Mesh{
		positions: positions,
		edges:     edges,
		polys:     polys,
		loops:     loops,
		hidePoly:  UniformBool(false),
	}
}

// SetFaces attaches legacy tessellated faces.
func (m *Mesh) SetFaces(faces []Face) {
	m.faces = faces
}

// SetHidePoly attaches the per-polygon hidden attribute.
func (m *Mesh) SetHidePoly(attr BoolAttr) {
	m.hidePoly = attr
}

// VertCount returns the number of vertices.
func (m *Mesh) VertCount() int { return len(m.positions) }

// Positions returns the vertex positions.
func (m *Mesh) Positions() []r3.Vector { return m.positions }

// Edges returns the edge array.
func (m *Mesh) Edges() []Edge { return m.edges }

// Faces returns the legacy tessellated face array, which may be empty.
func (m *Mesh) Faces() []Face { return m.faces }

// Polys returns the polygon array.
func (m *Mesh) Polys() []Poly { return m.polys }

// Loops returns the loop array.
func (m *Mesh) Loops() []Loop { return m.loops }

// HidePoly returns the per-polygon hidden attribute.
func (m *Mesh) HidePoly() BoolAttr { return m.hidePoly }

// Runtime returns the mesh's mutable runtime state.
func (m *Mesh) Runtime() *Runtime { return &m.runtime }

// LoopTris returns the fan triangulation of all polygons, computing it on
// first use.
func (m *Mesh) LoopTris() []LoopTri {
	m.runtime.looptriOnce.Do(func() {
		total := 0
		for _, p := range m.polys {
			total += p.TriCount()
		}
		tris := make([]LoopTri, 0, total)
		for _, p := range m.polys {
			for t := 0; t < p.TriCount(); t++ {
				tris = append(tris, LoopTri{Tri: [3]int{
					p.LoopStart,
					p.LoopStart + t + 1,
					p.LoopStart + t + 2,
				}})
			}
		}
		m.runtime.looptris = tris
	})
	return m.runtime.looptris
}

// LooseEdges returns the cache of edges that belong to no polygon, computing
// it on first use.
func (m *Mesh) LooseEdges() LooseEdgeCache {
	m.runtime.looseOnce.Do(func() {
		mask := make([]bool, len(m.edges))
		for i := range mask {
			mask[i] = true
		}
		count := len(m.edges)
		for _, l := range m.loops {
			if l.E >= 0 && l.E < len(mask) && mask[l.E] {
				mask[l.E] = false
				count--
			}
		}
		m.runtime.loose = LooseEdgeCache{Count: count, Mask: mask}
	})
	return m.runtime.loose
}

// Validate checks index ranges and attribute sizes, combining everything
// wrong into one error.
func (m *Mesh) Validate() error {
	var err error
	for i, e := range m.edges {
		if !m.validVert(e.V1) || !m.validVert(e.V2) {
			err = multierr.Append(err, errors.Errorf("edge %d references vertex out of range", i))
		}
	}
	for i, f := range m.faces {
		if !m.validVert(f.V1) || !m.validVert(f.V2) || !m.validVert(f.V3) {
			err = multierr.Append(err, errors.Errorf("face %d references vertex out of range", i))
		}
		if f.V4 != 0 && !m.validVert(f.V4) {
			err = multierr.Append(err, errors.Errorf("face %d references quad vertex out of range", i))
		}
	}
	for i, p := range m.polys {
		if p.LoopStart < 0 || p.LoopTotal < 3 || p.LoopStart+p.LoopTotal > len(m.loops) {
			err = multierr.Append(err, errors.Errorf("poly %d references loops out of range", i))
		}
	}
	for i, l := range m.loops {
		if !m.validVert(l.V) {
			err = multierr.Append(err, errors.Errorf("loop %d references vertex out of range", i))
		}
		if l.E < 0 || l.E >= len(m.edges) {
			err = multierr.Append(err, errors.Errorf("loop %d references edge out of range", i))
		}
	}
	if !m.hidePoly.IsUniform() && m.hidePoly.Len() != len(m.polys) {
		err = multierr.Append(err, errors.New("hide attribute size does not match polygon count"))
	}
	return err
}

func (m *Mesh) validVert(v int) bool {
	return v >= 0 && v < len(m.positions)
}
