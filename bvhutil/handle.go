package bvhutil

import (
	"github.com/golang/geo/r3"

	"github.com/meshops/meshbvh/bvh"
	"github.com/meshops/meshbvh/bvhcache"
	"github.com/meshops/meshbvh/mesh"
)

// MeshTree is a transient query handle binding a built tree to the mesh
// arrays its callbacks read. The tree reference is non-owning when the handle
// came from the cache; Release respects that.
type MeshTree struct {
	Tree *bvh.Tree

	Positions []r3.Vector
	Edges     []mesh.Edge
	Faces     []mesh.Face
	Loops     []mesh.Loop
	LoopTris  []mesh.LoopTri

	Nearest bvh.NearestFunc
	Raycast bvh.RaycastFunc

	cached bool
}

// setup wires the geometry arrays and binds the callbacks appropriate to the
// kind. Binding happens once here, not per query.
func (d *MeshTree) setup(tree *bvh.Tree, kind bvhcache.Kind, m *mesh.Mesh, looptris []mesh.LoopTri) {
	*d = MeshTree{
		Tree:      tree,
		Positions: m.Positions(),
		Edges:     m.Edges(),
		Faces:     m.Faces(),
		Loops:     m.Loops(),
		LoopTris:  looptris,
	}

	switch kind {
	case bvhcache.KindVerts, bvhcache.KindLooseVerts:
		// A nil nearest callback works fine: the distance to the bounding
		// volume of a point is already the distance to the point.
		d.Nearest = nil
		d.Raycast = d.vertsSpherecast
	case bvhcache.KindEdges, bvhcache.KindLooseEdges:
		d.Nearest = d.edgesNearestPoint
		d.Raycast = d.edgesSpherecast
	case bvhcache.KindFaces:
		d.Nearest = d.facesNearestPoint
		d.Raycast = d.facesSpherecast
	case bvhcache.KindLoopTri, bvhcache.KindLoopTriNoHidden:
		d.Nearest = d.loopTrisNearestPoint
		d.Raycast = d.loopTrisSpherecast
	default:
		panic("bvhutil: mesh handle bound to edit-mesh kind " + kind.String())
	}
}

func (d *MeshTree) vertsSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	pointSpherecast(index, d.Positions[index], ray, hit)
}

func (d *MeshTree) edgesNearestPoint(index int, co r3.Vector, nearest *bvh.Nearest) {
	e := d.Edges[index]
	edgeNearestPoint(index, co, d.Positions[e.V1], d.Positions[e.V2], nearest)
}

func (d *MeshTree) edgesSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	e := d.Edges[index]
	edgeSpherecast(index, d.Positions[e.V1], d.Positions[e.V2], ray, hit)
}

func (d *MeshTree) faceVerts(index int) (t0, t1, t2 r3.Vector, t3 *r3.Vector) {
	f := d.Faces[index]
	t0 = d.Positions[f.V1]
	t1 = d.Positions[f.V2]
	t2 = d.Positions[f.V3]
	if f.V4 != 0 {
		v := d.Positions[f.V4]
		t3 = &v
	}
	return t0, t1, t2, t3
}

func (d *MeshTree) facesNearestPoint(index int, co r3.Vector, nearest *bvh.Nearest) {
	t0, t1, t2, t3 := d.faceVerts(index)
	quadNearestPoint(index, co, t0, t1, t2, t3, nearest)
}

func (d *MeshTree) facesSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	t0, t1, t2, t3 := d.faceVerts(index)
	quadSpherecast(index, ray, t0, t1, t2, t3, hit)
}

func (d *MeshTree) loopTriVerts(index int) (r3.Vector, r3.Vector, r3.Vector) {
	lt := d.LoopTris[index]
	return d.Positions[d.Loops[lt.Tri[0]].V],
		d.Positions[d.Loops[lt.Tri[1]].V],
		d.Positions[d.Loops[lt.Tri[2]].V]
}

func (d *MeshTree) loopTrisNearestPoint(index int, co r3.Vector, nearest *bvh.Nearest) {
	t0, t1, t2 := d.loopTriVerts(index)
	triNearestPoint(index, co, t0, t1, t2, nearest)
}

func (d *MeshTree) loopTrisSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	t0, t1, t2 := d.loopTriVerts(index)
	triSpherecast(index, ray, t0, t1, t2, hit)
}

// Cached reports whether the tree is owned by the mesh's cache.
func (d *MeshTree) Cached() bool { return d.cached }

// FindNearest runs a nearest-point query through the bound callback.
func (d *MeshTree) FindNearest(co r3.Vector, nearest *bvh.Nearest) int {
	return d.Tree.NearestToPoint(co, nearest, d.Nearest)
}

// RayCast runs a ray-cast query through the bound callback.
func (d *MeshTree) RayCast(ray *bvh.Ray, hit *bvh.Hit) int {
	return d.Tree.Raycast(ray, hit, d.Raycast)
}

// Release frees the tree iff this handle owns it (uncached build) and resets
// the handle. Cached trees stay alive in the mesh's cache.
func (d *MeshTree) Release() {
	if d.Tree != nil && !d.cached {
		d.Tree.Free()
	}
	*d = MeshTree{}
}

// EditMeshTree is the edit-mesh query handle.
type EditMeshTree struct {
	Tree *bvh.Tree
	Mesh *mesh.EditMesh

	Nearest bvh.NearestFunc
	Raycast bvh.RaycastFunc

	cached bool
}

func (d *EditMeshTree) setup(tree *bvh.Tree, kind bvhcache.Kind, em *mesh.EditMesh) {
	*d = EditMeshTree{Tree: tree, Mesh: em}

	switch kind {
	case bvhcache.KindEditMeshVerts:
		d.Nearest = nil
		d.Raycast = d.vertsSpherecast
	case bvhcache.KindEditMeshEdges:
		d.Nearest = d.edgesNearestPoint
		d.Raycast = d.edgesSpherecast
	case bvhcache.KindEditMeshLoopTri:
		d.Nearest = d.loopTrisNearestPoint
		d.Raycast = d.loopTrisSpherecast
	default:
		panic("bvhutil: edit-mesh handle bound to mesh kind " + kind.String())
	}
}

func (d *EditMeshTree) vertsSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	pointSpherecast(index, d.Mesh.VertAt(index).Co, ray, hit)
}

func (d *EditMeshTree) edgesNearestPoint(index int, co r3.Vector, nearest *bvh.Nearest) {
	e := d.Mesh.EdgeAt(index)
	edgeNearestPoint(index, co, e.V1.Co, e.V2.Co, nearest)
}

func (d *EditMeshTree) edgesSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	e := d.Mesh.EdgeAt(index)
	edgeSpherecast(index, e.V1.Co, e.V2.Co, ray, hit)
}

func (d *EditMeshTree) loopTrisNearestPoint(index int, co r3.Vector, nearest *bvh.Nearest) {
	lt := d.Mesh.LoopTris()[index]
	triNearestPoint(index, co, lt[0].Vert.Co, lt[1].Vert.Co, lt[2].Vert.Co, nearest)
}

func (d *EditMeshTree) loopTrisSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	lt := d.Mesh.LoopTris()[index]
	triSpherecast(index, ray, lt[0].Vert.Co, lt[1].Vert.Co, lt[2].Vert.Co, hit)
}

// Cached reports whether the tree is owned by the externally supplied cache.
func (d *EditMeshTree) Cached() bool { return d.cached }

// FindNearest runs a nearest-point query through the bound callback.
func (d *EditMeshTree) FindNearest(co r3.Vector, nearest *bvh.Nearest) int {
	return d.Tree.NearestToPoint(co, nearest, d.Nearest)
}

// RayCast runs a ray-cast query through the bound callback.
func (d *EditMeshTree) RayCast(ray *bvh.Ray, hit *bvh.Hit) int {
	return d.Tree.Raycast(ray, hit, d.Raycast)
}

// Release frees the tree iff this handle owns it and resets the handle.
func (d *EditMeshTree) Release() {
	if d.Tree != nil && !d.cached {
		d.Tree.Free()
	}
	*d = EditMeshTree{}
}

// PointCloudTree is the point-cloud query handle. Point clouds are never
// cached; the handle always owns its tree.
type PointCloudTree struct {
	Tree   *bvh.Tree
	Coords []r3.Vector

	Nearest bvh.NearestFunc
	Raycast bvh.RaycastFunc
}

func (d *PointCloudTree) vertsSpherecast(index int, ray *bvh.Ray, hit *bvh.Hit) {
	pointSpherecast(index, d.Coords[index], ray, hit)
}

// FindNearest runs a nearest-point query; point primitives need no callback.
func (d *PointCloudTree) FindNearest(co r3.Vector, nearest *bvh.Nearest) int {
	return d.Tree.NearestToPoint(co, nearest, d.Nearest)
}

// RayCast runs a ray-cast query through the generic point-sphere-cast path.
func (d *PointCloudTree) RayCast(ray *bvh.Ray, hit *bvh.Hit) int {
	return d.Tree.Raycast(ray, hit, d.Raycast)
}

// Release frees the tree and resets the handle.
func (d *PointCloudTree) Release() {
	d.Tree.Free()
	*d = PointCloudTree{}
}
