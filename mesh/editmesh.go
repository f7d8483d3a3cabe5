package mesh

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// EMVert is an edit-mesh vertex.
type EMVert struct {
	Co       r3.Vector
	Index    int
	Hidden   bool
	Selected bool
}

// EMEdge is an edit-mesh edge with its radial loops (every loop walking over
// this edge, from any face).
type EMEdge struct {
	V1, V2 *EMVert
	Index  int
	Seam   bool
	Loops  []*EMLoop
}

// Other returns the edge endpoint that is not v.
func (e *EMEdge) Other(v *EMVert) *EMVert {
	if e.V1 == v {
		return e.V2
	}
	return e.V1
}

// EMLoop is one face corner. Edge runs from Vert to Next.Vert. UV-space
// attributes live here, matching how UV maps are stored per corner rather
// than per vertex.
type EMLoop struct {
	Vert *EMVert
	Edge *EMEdge
	Face *EMFace
	Next *EMLoop

	UV       r2.Point
	PinUV    bool
	SelectUV bool
}

// EMFace is an edit-mesh face with its ordered loop cycle.
type EMFace struct {
	Loops    []*EMLoop
	Index    int
	Hidden   bool
	Selected bool
}

// EditMesh is an edit-time mesh: element tables with topology pointers
// instead of flat index arrays. It is not safe for concurrent mutation; the
// editing caller owns it exclusively.
type EditMesh struct {
	verts    []*EMVert
	edges    []*EMEdge
	faces    []*EMFace
	loopTris [][3]*EMLoop
	hasUV    bool
}

// NewEditMesh builds an edit mesh from vertex positions and per-face vertex
// index cycles. Shared edges are created once and accumulate radial loops.
// Loop triangles are the fan triangulation of each face.
func NewEditMesh(positions []r3.Vector, faces [][]int) *EditMesh {
	em := &EditMesh{}
	em.verts = make([]*EMVert, len(positions))
	for i, p := range positions {
		em.verts[i] = &EMVert{Co: p, Index: i}
	}

	edgeIndex := map[[2]int]*EMEdge{}
	edgeKey := func(a, b int) [2]int {
		if a > b {
			a, b = b, a
		}
		return [2]int{a, b}
	}

	for _, fv := range faces {
		face := &EMFace{Index: len(em.faces)}
		face.Loops = make([]*EMLoop, len(fv))
		for i, vi := range fv {
			face.Loops[i] = &EMLoop{Vert: em.verts[vi], Face: face}
		}
		for i, l := range face.Loops {
			next := face.Loops[(i+1)%len(face.Loops)]
			l.Next = next

			key := edgeKey(l.Vert.Index, next.Vert.Index)
			e, ok := edgeIndex[key]
			if !ok {
				e = &EMEdge{V1: l.Vert, V2: next.Vert, Index: len(em.edges)}
				edgeIndex[key] = e
				em.edges = append(em.edges, e)
			}
			l.Edge = e
			e.Loops = append(e.Loops, l)
		}
		em.faces = append(em.faces, face)

		for t := 0; t+2 < len(face.Loops); t++ {
			em.loopTris = append(em.loopTris, [3]*EMLoop{
				face.Loops[0], face.Loops[t+1], face.Loops[t+2],
			})
		}
	}
	return em
}

// EnableUVs marks the mesh as carrying a UV layer. Loop UV values are
// assigned directly by the caller.
func (em *EditMesh) EnableUVs() {
	em.hasUV = true
}

// HasUVs reports whether a UV layer is present.
func (em *EditMesh) HasUVs() bool {
	return em.hasUV
}

// VertCount returns the number of vertices.
func (em *EditMesh) VertCount() int { return len(em.verts) }

// EdgeCount returns the number of edges.
func (em *EditMesh) EdgeCount() int { return len(em.edges) }

// FaceCount returns the number of faces.
func (em *EditMesh) FaceCount() int { return len(em.faces) }

// LoopTriCount returns the number of fan triangles.
func (em *EditMesh) LoopTriCount() int { return len(em.loopTris) }

// VertAt returns the vertex at the given table index.
func (em *EditMesh) VertAt(i int) *EMVert { return em.verts[i] }

// EdgeAt returns the edge at the given table index.
func (em *EditMesh) EdgeAt(i int) *EMEdge { return em.edges[i] }

// FaceAt returns the face at the given table index.
func (em *EditMesh) FaceAt(i int) *EMFace { return em.faces[i] }

// Verts returns the vertex table.
func (em *EditMesh) Verts() []*EMVert { return em.verts }

// Edges returns the edge table.
func (em *EditMesh) Edges() []*EMEdge { return em.edges }

// Faces returns the face table.
func (em *EditMesh) Faces() []*EMFace { return em.faces }

// LoopTris returns the fan triangulation of all faces.
func (em *EditMesh) LoopTris() [][3]*EMLoop { return em.loopTris }
