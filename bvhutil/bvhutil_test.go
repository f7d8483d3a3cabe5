package bvhutil

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	goutils "go.viam.com/utils"

	"github.com/meshops/meshbvh/bvh"
	"github.com/meshops/meshbvh/bvhcache"
	"github.com/meshops/meshbvh/mesh"
)

// planeMesh is a unit quad in the z=0 plane plus one loose vertex and one
// loose edge off to the side.
func planeMesh() *mesh.Mesh {
	positions := []r3.Vector{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 10, Y: 10}, // loose vertex
		{X: 20, Y: 20}, {X: 21, Y: 20},
	}
	edges := []mesh.Edge{
		{V1: 0, V2: 1}, {V1: 1, V2: 2}, {V1: 2, V2: 3}, {V1: 3, V2: 0},
		{V1: 5, V2: 6}, // loose edge
	}
	polys := []mesh.Poly{{LoopStart: 0, LoopTotal: 4}}
	loops := []mesh.Loop{
		{V: 0, E: 0}, {V: 1, E: 1}, {V: 2, E: 2}, {V: 3, E: 3},
	}
	return mesh.New(positions, edges, polys, loops)
}

func TestLooseVertsMask(t *testing.T) {
	m := planeMesh()
	mask, count := LooseVertsMask(m.Edges(), m.VertCount())
	test.That(t, count, test.ShouldEqual, 1)
	test.That(t, mask, test.ShouldResemble, []bool{false, false, false, false, true, false, false})
}

func TestNoHiddenLoopTrisMask(t *testing.T) {
	polys := []mesh.Poly{
		{LoopStart: 0, LoopTotal: 4}, // 2 tris
		{LoopStart: 4, LoopTotal: 3}, // 1 tri
	}

	t.Run("uniform false skips allocation", func(t *testing.T) {
		mask, count := NoHiddenLoopTrisMask(polys, mesh.UniformBool(false), 3)
		test.That(t, mask, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 3)
	})

	t.Run("hidden polys drop their whole fan", func(t *testing.T) {
		mask, count := NoHiddenLoopTrisMask(polys, mesh.VaryingBool([]bool{true, false}), 3)
		test.That(t, count, test.ShouldEqual, 1)
		test.That(t, mask, test.ShouldResemble, []bool{false, false, true})
	})

	t.Run("uniform true hides everything", func(t *testing.T) {
		mask, count := NoHiddenLoopTrisMask(polys, mesh.UniformBool(true), 3)
		test.That(t, count, test.ShouldEqual, 0)
		test.That(t, mask, test.ShouldResemble, []bool{false, false, false})
	})

	t.Run("large poly array fills chunked ranges correctly", func(t *testing.T) {
		const n = 500
		manyPolys := make([]mesh.Poly, n)
		hide := make([]bool, n)
		loopStart := 0
		for i := range manyPolys {
			total := 3 + i%3
			manyPolys[i] = mesh.Poly{LoopStart: loopStart, LoopTotal: total}
			loopStart += total
			hide[i] = i%3 == 0
		}
		looptriLen := 0
		for _, p := range manyPolys {
			looptriLen += p.TriCount()
		}

		mask, count := NoHiddenLoopTrisMask(manyPolys, mesh.VaryingBool(hide), looptriLen)

		wantCount := 0
		triIndex := 0
		for i, p := range manyPolys {
			for k := 0; k < p.TriCount(); k++ {
				test.That(t, mask[triIndex], test.ShouldEqual, !hide[i])
				triIndex++
			}
			if !hide[i] {
				wantCount += p.TriCount()
			}
		}
		test.That(t, triIndex, test.ShouldEqual, looptriLen)
		test.That(t, count, test.ShouldEqual, wantCount)
	})
}

func TestBuilders(t *testing.T) {
	m := planeMesh()

	t.Run("empty geometry builds nil", func(t *testing.T) {
		tree := BuildVerts(nil, nil, -1, 0, 2, 6)
		test.That(t, tree, test.ShouldBeNil)
	})

	t.Run("fully masked out builds nil", func(t *testing.T) {
		mask := make([]bool, m.VertCount())
		tree := BuildVerts(m.Positions(), mask, 0, 0, 2, 6)
		test.That(t, tree, test.ShouldBeNil)
	})

	t.Run("negative hint computes the popcount", func(t *testing.T) {
		mask := []bool{true, false, true, false, false, false, false}
		tree := BuildVerts(m.Positions(), mask, -1, 0, 2, 6)
		test.That(t, tree.Len(), test.ShouldEqual, 2)
	})

	t.Run("mask length mismatch panics", func(t *testing.T) {
		test.That(t, func() {
			BuildVerts(m.Positions(), []bool{true}, -1, 0, 2, 6)
		}, test.ShouldPanic)
	})

	t.Run("claimed count disagreeing with mask panics", func(t *testing.T) {
		mask := make([]bool, m.VertCount())
		mask[0] = true
		test.That(t, func() {
			BuildVerts(m.Positions(), mask, 3, 0, 2, 6)
		}, test.ShouldPanic)
	})
}

func TestTreeFromMesh(t *testing.T) {
	t.Run("looptri nearest point", func(t *testing.T) {
		m := planeMesh()
		d := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		defer d.Release()

		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{X: 0.2, Y: 0.2, Z: 5}, &nearest)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, nearest.DistSq, test.ShouldAlmostEqual, 25)
		test.That(t, nearest.Co.X, test.ShouldAlmostEqual, 0.2)
		test.That(t, nearest.Co.Y, test.ShouldAlmostEqual, 0.2)
		test.That(t, nearest.Co.Z, test.ShouldAlmostEqual, 0)
	})

	t.Run("looptri ray cast", func(t *testing.T) {
		m := planeMesh()
		d := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		defer d.Release()

		hit := bvh.NewHit()
		ray := bvh.Ray{Origin: r3.Vector{X: 0.2, Y: 0.2, Z: 5}, Direction: r3.Vector{Z: -1}}
		index := d.RayCast(&ray, &hit)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 5)
		test.That(t, hit.Co.Z, test.ShouldAlmostEqual, 0)

		// A ray pointing away reports nothing.
		miss := bvh.NewHit()
		away := bvh.Ray{Origin: r3.Vector{X: 0.2, Y: 0.2, Z: 5}, Direction: r3.Vector{Z: 1}}
		test.That(t, d.RayCast(&away, &miss), test.ShouldEqual, -1)
		test.That(t, miss.Dist, test.ShouldEqual, bvh.RaycastDistMax)
	})

	t.Run("edge sphere cast within radius", func(t *testing.T) {
		positions := []r3.Vector{{X: 0}, {X: 1}}
		m := mesh.New(positions, []mesh.Edge{{V1: 0, V2: 1}}, nil, nil)
		d := TreeFromMesh(m, bvhcache.KindEdges, 2)
		defer d.Release()

		hit := bvh.NewHit()
		ray := bvh.Ray{Origin: r3.Vector{X: 0.5, Y: -1}, Direction: r3.Vector{Y: 1}, Radius: 0.1}
		index := d.RayCast(&ray, &hit)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 1.0)
		test.That(t, hit.Co.X, test.ShouldAlmostEqual, 0.5)
		test.That(t, hit.Co.Y, test.ShouldAlmostEqual, 0)

		// Past the endpoint, the clamped segment point is out of radius.
		miss := bvh.NewHit()
		past := bvh.Ray{Origin: r3.Vector{X: 1.5, Y: -1}, Direction: r3.Vector{Y: 1}, Radius: 0.01}
		test.That(t, d.RayCast(&past, &miss), test.ShouldEqual, -1)
	})

	t.Run("edge nearest point clamps to the segment", func(t *testing.T) {
		positions := []r3.Vector{{X: 0}, {X: 1}}
		m := mesh.New(positions, []mesh.Edge{{V1: 0, V2: 1}}, nil, nil)
		d := TreeFromMesh(m, bvhcache.KindEdges, 2)
		defer d.Release()

		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{X: 3, Y: 4}, &nearest)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, nearest.Co, test.ShouldResemble, r3.Vector{X: 1})
		test.That(t, nearest.DistSq, test.ShouldAlmostEqual, 20)
	})

	t.Run("loose verts query only the loose vertex", func(t *testing.T) {
		m := planeMesh()
		d := TreeFromMesh(m, bvhcache.KindLooseVerts, 2)
		defer d.Release()
		test.That(t, d.Tree.Len(), test.ShouldEqual, 1)

		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{}, &nearest)
		test.That(t, index, test.ShouldEqual, 4)
	})

	t.Run("no loose geometry caches a nil tree", func(t *testing.T) {
		positions := []r3.Vector{{X: 0}, {X: 1}}
		m := mesh.New(positions, []mesh.Edge{{V1: 0, V2: 1}}, nil, nil)
		d := TreeFromMesh(m, bvhcache.KindLooseVerts, 2)
		test.That(t, d.Tree, test.ShouldBeNil)
		test.That(t, d.Cached(), test.ShouldBeTrue)

		nearest := bvh.NewNearest()
		test.That(t, d.FindNearest(r3.Vector{}, &nearest), test.ShouldEqual, -1)

		// The nil result is remembered, not rebuilt.
		_, found, _ := bvhcache.Find(&m.Runtime().BVHCache, bvhcache.KindLooseVerts, &m.Runtime().EvalMu, false)
		test.That(t, found, test.ShouldBeTrue)
		d.Release()
	})

	t.Run("hidden polys excluded from the no-hidden kind", func(t *testing.T) {
		m := planeMesh()
		m.SetHidePoly(mesh.VaryingBool([]bool{true}))
		d := TreeFromMesh(m, bvhcache.KindLoopTriNoHidden, 2)
		defer d.Release()
		test.That(t, d.Tree, test.ShouldBeNil)

		full := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		defer full.Release()
		test.That(t, full.Tree.Len(), test.ShouldEqual, 2)
	})

	t.Run("second lookup reuses the cached tree", func(t *testing.T) {
		m := planeMesh()
		d1 := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		d2 := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		test.That(t, d2.Tree, test.ShouldEqual, d1.Tree)
		test.That(t, d1.Cached(), test.ShouldBeTrue)

		// Releasing a cached handle leaves the cached tree usable.
		d1.Release()
		test.That(t, d2.Tree.Len(), test.ShouldEqual, 2)
		d2.Release()
	})

	t.Run("faces kind handles quads and triangles", func(t *testing.T) {
		positions := []r3.Vector{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
			{X: 10, Y: 0}, {X: 11, Y: 0}, {X: 10, Y: 1},
		}
		m := mesh.New(positions, nil, nil, nil)
		m.SetFaces([]mesh.Face{
			{V1: 0, V2: 1, V3: 2, V4: 3},
			{V1: 4, V2: 5, V3: 6},
		})
		d := TreeFromMesh(m, bvhcache.KindFaces, 2)
		defer d.Release()
		test.That(t, d.Tree.Len(), test.ShouldEqual, 2)

		// Above the quad, over the second triangle of its fan.
		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{X: 0.2, Y: 0.8, Z: 5}, &nearest)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, nearest.DistSq, test.ShouldAlmostEqual, 25)
		test.That(t, nearest.Co.X, test.ShouldAlmostEqual, 0.2)
		test.That(t, nearest.Co.Y, test.ShouldAlmostEqual, 0.8)
		test.That(t, nearest.Co.Z, test.ShouldAlmostEqual, 0)

		// Above the lone triangle, which has no fourth vertex.
		nearest = bvh.NewNearest()
		index = d.FindNearest(r3.Vector{X: 10.2, Y: 0.2, Z: 3}, &nearest)
		test.That(t, index, test.ShouldEqual, 1)
		test.That(t, nearest.DistSq, test.ShouldAlmostEqual, 9)

		// Rays straight down through each face.
		hit := bvh.NewHit()
		ray := bvh.Ray{Origin: r3.Vector{X: 0.2, Y: 0.8, Z: 5}, Direction: r3.Vector{Z: -1}}
		test.That(t, d.RayCast(&ray, &hit), test.ShouldEqual, 0)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 5)

		hit = bvh.NewHit()
		ray = bvh.Ray{Origin: r3.Vector{X: 10.2, Y: 0.2, Z: 5}, Direction: r3.Vector{Z: -1}}
		test.That(t, d.RayCast(&ray, &hit), test.ShouldEqual, 1)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 5)
	})

	t.Run("vertex and edge handles skip the fan triangulation", func(t *testing.T) {
		m := planeMesh()
		dv := TreeFromMesh(m, bvhcache.KindVerts, 2)
		test.That(t, dv.LoopTris, test.ShouldBeNil)
		dv.Release()

		de := TreeFromMesh(m, bvhcache.KindEdges, 2)
		test.That(t, de.LoopTris, test.ShouldBeNil)
		de.Release()

		dt := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
		test.That(t, dt.LoopTris, test.ShouldHaveLength, 2)
		dt.Release()
	})

	t.Run("edit-mesh kind panics", func(t *testing.T) {
		m := planeMesh()
		test.That(t, func() {
			TreeFromMesh(m, bvhcache.KindEditMeshVerts, 2)
		}, test.ShouldPanic)
	})
}

func TestTreeFromMeshConcurrent(t *testing.T) {
	m := planeMesh()

	const workers = 16
	trees := make([]*bvh.Tree, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			d := TreeFromMesh(m, bvhcache.KindLoopTri, 2)
			trees[i] = d.Tree

			nearest := bvh.NewNearest()
			if d.FindNearest(r3.Vector{X: 0.5, Y: 0.5, Z: 1}, &nearest) == -1 {
				t.Error("no nearest result on cached tree")
			}
			d.Release()
		})
	}
	wg.Wait()

	// Every caller observed the identical tree.
	for i := 1; i < workers; i++ {
		test.That(t, trees[i], test.ShouldEqual, trees[0])
	}
}

func TestTreeFromEditMesh(t *testing.T) {
	positions := []r3.Vector{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}
	newEM := func() *mesh.EditMesh {
		return mesh.NewEditMesh(positions, [][]int{{0, 1, 2, 3}})
	}

	t.Run("uncached build owns its tree", func(t *testing.T) {
		em := newEM()
		d := TreeFromEditMesh(em, bvhcache.KindEditMeshLoopTri, 2, nil, nil)
		test.That(t, d.Cached(), test.ShouldBeFalse)
		test.That(t, d.Tree.Len(), test.ShouldEqual, 2)

		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{X: 0.5, Y: 0.5, Z: 2}, &nearest)
		test.That(t, index, test.ShouldNotEqual, -1)
		test.That(t, nearest.DistSq, test.ShouldAlmostEqual, 4)
		d.Release()
	})

	t.Run("cached build shares across lookups", func(t *testing.T) {
		em := newEM()
		var cachePtr atomic.Pointer[bvhcache.Cache]
		var evalMu sync.Mutex

		d1 := TreeFromEditMesh(em, bvhcache.KindEditMeshVerts, 2, &cachePtr, &evalMu)
		d2 := TreeFromEditMesh(em, bvhcache.KindEditMeshVerts, 2, &cachePtr, &evalMu)
		test.That(t, d1.Cached(), test.ShouldBeTrue)
		test.That(t, d2.Tree, test.ShouldEqual, d1.Tree)
		test.That(t, cachePtr.Load().HasTree(d1.Tree), test.ShouldBeTrue)
		d1.Release()
		d2.Release()
	})

	t.Run("edge sphere cast", func(t *testing.T) {
		em := newEM()
		d := TreeFromEditMesh(em, bvhcache.KindEditMeshEdges, 2, nil, nil)
		defer d.Release()

		hit := bvh.NewHit()
		ray := bvh.Ray{Origin: r3.Vector{X: 0.5, Y: -1}, Direction: r3.Vector{Y: 1}, Radius: 0.1}
		index := d.RayCast(&ray, &hit)
		test.That(t, index, test.ShouldNotEqual, -1)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 1.0)
	})

	t.Run("mesh kind panics", func(t *testing.T) {
		test.That(t, func() {
			TreeFromEditMesh(newEM(), bvhcache.KindVerts, 2, nil, nil)
		}, test.ShouldPanic)
	})
}

func TestTreeFromPointCloud(t *testing.T) {
	t.Run("nearest over positions", func(t *testing.T) {
		pc := mesh.NewPointCloud(3)
		err := pc.SetVectorAttribute("position", []r3.Vector{
			{X: 0}, {X: 5}, {X: 9},
		})
		test.That(t, err, test.ShouldBeNil)

		d := TreeFromPointCloud(pc, 2)
		defer d.Release()
		test.That(t, d.Tree.Len(), test.ShouldEqual, 3)

		nearest := bvh.NewNearest()
		index := d.FindNearest(r3.Vector{X: 6}, &nearest)
		test.That(t, index, test.ShouldEqual, 1)
	})

	t.Run("empty cloud", func(t *testing.T) {
		pc := mesh.NewPointCloud(0)
		d := TreeFromPointCloud(pc, 2)
		test.That(t, d.Tree, test.ShouldBeNil)

		nearest := bvh.NewNearest()
		test.That(t, d.FindNearest(r3.Vector{}, &nearest), test.ShouldEqual, -1)
		d.Release()
	})

	t.Run("ray cast picks the first point along the ray", func(t *testing.T) {
		pc := mesh.NewPointCloud(2)
		err := pc.SetVectorAttribute("position", []r3.Vector{{X: 3}, {X: 7}})
		test.That(t, err, test.ShouldBeNil)

		d := TreeFromPointCloud(pc, 2)
		defer d.Release()

		hit := bvh.NewHit()
		ray := bvh.Ray{Origin: r3.Vector{}, Direction: r3.Vector{X: 1}, Radius: 0.5}
		index := d.RayCast(&ray, &hit)
		test.That(t, index, test.ShouldEqual, 0)
		test.That(t, hit.Dist, test.ShouldAlmostEqual, 3)
	})
}
