package bvhutil

import (
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"

	"github.com/meshops/meshbvh/bvh"
	"github.com/meshops/meshbvh/bvhcache"
	"github.com/meshops/meshbvh/mesh"
	"github.com/meshops/meshbvh/task"
)

// defaultAxis is the splitting-axis parameter used for every cached tree.
const defaultAxis = 6

// balanceTree balances a freshly built tree. When the caller holds the cache
// mutex the balance runs isolated, so its internal parallelism can never be
// co-scheduled with other queued work that might block on that same mutex.
func balanceTree(tree *bvh.Tree, isolate bool) {
	if tree == nil {
		return
	}
	if isolate {
		task.Isolate(tree.Balance)
	} else {
		tree.Balance()
	}
}

// TreeFromMesh returns a query handle for the given kind over m, building and
// caching the tree on first request. Concurrent callers asking for the same
// kind all receive the identical cached tree; exactly one of them builds it.
//
// A nil handle tree is a valid outcome: it records that the kind's geometry is
// empty (no loose vertices, say), and all queries on it report no result.
func TreeFromMesh(m *mesh.Mesh, kind bvhcache.Kind, treeType int) *MeshTree {
	rt := m.Runtime()
	tree, found, locked := bvhcache.Find(&rt.BVHCache, kind, &rt.EvalMu, true)
	c := rt.BVHCache.Load()

	if !found {
		var mask []bool
		numActive := -1

		switch kind {
		case bvhcache.KindLooseVerts:
			mask, numActive = LooseVertsMask(m.Edges(), m.VertCount())
			fallthrough
		case bvhcache.KindVerts:
			tree = BuildVerts(m.Positions(), mask, numActive, 0, treeType, defaultAxis)

		case bvhcache.KindLooseEdges:
			mask, numActive = looseEdgesMask(m)
			fallthrough
		case bvhcache.KindEdges:
			tree = BuildEdges(m.Positions(), m.Edges(), mask, numActive, 0, treeType, defaultAxis)

		case bvhcache.KindFaces:
			tree = BuildFaces(m.Positions(), m.Faces(), nil, -1, 0, treeType, defaultAxis)

		case bvhcache.KindLoopTriNoHidden:
			mask, numActive = NoHiddenLoopTrisMask(m.Polys(), m.HidePoly(), len(m.LoopTris()))
			fallthrough
		case bvhcache.KindLoopTri:
			tree = BuildLoopTris(m.Positions(), m.Loops(), m.LoopTris(), mask, numActive, 0, treeType, defaultAxis)

		default:
			c.Unlock(locked)
			panic("bvhutil: TreeFromMesh called with edit-mesh kind " + kind.String())
		}

		balanceTree(tree, locked)
		c.Insert(tree, kind)
	}
	c.Unlock(locked)

	// Only the loop-triangle kinds need the fan triangulation; fetching it
	// unconditionally would compute it even for vertex and edge requests.
	var looptris []mesh.LoopTri
	if kind == bvhcache.KindLoopTri || kind == bvhcache.KindLoopTriNoHidden {
		looptris = m.LoopTris()
	}

	d := &MeshTree{}
	d.setup(tree, kind, m, looptris)
	d.cached = true
	return d
}

// TreeFromEditMesh returns a query handle for the given kind over em. When
// cachePtr is non-nil the tree is cached there under the same check-lock-check
// discipline as TreeFromMesh, with evalMu gating lazy cache allocation. With a
// nil cachePtr the tree is built unconditionally and the handle owns it.
func TreeFromEditMesh(em *mesh.EditMesh, kind bvhcache.Kind, treeType int, cachePtr *atomic.Pointer[bvhcache.Cache], evalMu *sync.Mutex) *EditMeshTree {
	switch kind {
	case bvhcache.KindEditMeshVerts, bvhcache.KindEditMeshEdges, bvhcache.KindEditMeshLoopTri:
	default:
		panic("bvhutil: TreeFromEditMesh called with mesh kind " + kind.String())
	}

	build := func() *bvh.Tree {
		switch kind {
		case bvhcache.KindEditMeshVerts:
			return BuildEditMeshVerts(em, nil, -1, 0, treeType, defaultAxis)
		case bvhcache.KindEditMeshEdges:
			return BuildEditMeshEdges(em, nil, -1, 0, treeType, defaultAxis)
		default:
			return BuildEditMeshLoopTris(em, nil, -1, 0, treeType, defaultAxis)
		}
	}

	d := &EditMeshTree{}
	if cachePtr == nil {
		tree := build()
		balanceTree(tree, false)
		d.setup(tree, kind, em)
		return d
	}

	tree, found, locked := bvhcache.Find(cachePtr, kind, evalMu, true)
	c := cachePtr.Load()
	if !found {
		tree = build()
		balanceTree(tree, locked)
		c.Insert(tree, kind)
	}
	c.Unlock(locked)

	d.setup(tree, kind, em)
	d.cached = true
	return d
}

// positionAttr is the point-cloud attribute holding coordinates.
const positionAttr = "position"

// TreeFromPointCloud builds a query handle over a point cloud's position
// attribute. Point-cloud trees are never cached; the returned handle owns
// its tree. Returns a handle with a nil tree for an empty cloud.
func TreeFromPointCloud(pc *mesh.PointCloud, treeType int) *PointCloudTree {
	coords := pc.VectorAttribute(positionAttr, r3.Vector{})
	tree := BuildVerts(coords, nil, -1, 0, treeType, defaultAxis)
	tree.Balance()

	d := &PointCloudTree{Tree: tree, Coords: coords}
	d.Raycast = d.vertsSpherecast
	return d
}
