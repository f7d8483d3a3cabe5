package bvhcache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	goutils "go.viam.com/utils"

	"github.com/meshops/meshbvh/bvh"
)

func newTestTree(t *testing.T) *bvh.Tree {
	t.Helper()
	tree := bvh.New(1, 0, 2, 6)
	tree.Insert(0, r3.Vector{})
	tree.Balance()
	return tree
}

func TestFind(t *testing.T) {
	t.Run("no cache and no lock request stays unallocated", func(t *testing.T) {
		var cachePtr atomic.Pointer[Cache]
		var initMu sync.Mutex

		tree, found, locked := Find(&cachePtr, KindVerts, &initMu, false)
		test.That(t, tree, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeFalse)
		test.That(t, locked, test.ShouldBeFalse)
		test.That(t, cachePtr.Load(), test.ShouldBeNil)
	})

	t.Run("lock request allocates the cache lazily", func(t *testing.T) {
		var cachePtr atomic.Pointer[Cache]
		var initMu sync.Mutex

		tree, found, locked := Find(&cachePtr, KindVerts, &initMu, true)
		test.That(t, tree, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeFalse)
		test.That(t, locked, test.ShouldBeTrue)
		test.That(t, cachePtr.Load(), test.ShouldNotBeNil)
		cachePtr.Load().Unlock(locked)
	})

	t.Run("insert under lock then hit without lock", func(t *testing.T) {
		var cachePtr atomic.Pointer[Cache]
		var initMu sync.Mutex

		_, _, locked := Find(&cachePtr, KindEdges, &initMu, true)
		test.That(t, locked, test.ShouldBeTrue)
		c := cachePtr.Load()

		built := newTestTree(t)
		c.Insert(built, KindEdges)
		c.Unlock(locked)

		tree, found, locked := Find(&cachePtr, KindEdges, &initMu, false)
		test.That(t, found, test.ShouldBeTrue)
		test.That(t, locked, test.ShouldBeFalse)
		test.That(t, tree, test.ShouldEqual, built)
	})

	t.Run("nil tree insert records confirmed-empty geometry", func(t *testing.T) {
		var cachePtr atomic.Pointer[Cache]
		var initMu sync.Mutex

		_, _, locked := Find(&cachePtr, KindLooseVerts, &initMu, true)
		c := cachePtr.Load()
		c.Insert(nil, KindLooseVerts)
		c.Unlock(locked)

		tree, found, locked := Find(&cachePtr, KindLooseVerts, &initMu, true)
		test.That(t, tree, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeTrue)
		test.That(t, locked, test.ShouldBeFalse)
	})

	t.Run("kinds occupy independent slots", func(t *testing.T) {
		var cachePtr atomic.Pointer[Cache]
		var initMu sync.Mutex

		_, _, locked := Find(&cachePtr, KindVerts, &initMu, true)
		c := cachePtr.Load()
		c.Insert(newTestTree(t), KindVerts)
		c.Unlock(locked)

		_, found, locked := Find(&cachePtr, KindFaces, &initMu, true)
		test.That(t, found, test.ShouldBeFalse)
		test.That(t, locked, test.ShouldBeTrue)
		c.Unlock(locked)
	})
}

func TestInsertTwicePanics(t *testing.T) {
	c := New()
	c.Insert(nil, KindVerts)
	test.That(t, func() { c.Insert(nil, KindVerts) }, test.ShouldPanic)
}

func TestHasTree(t *testing.T) {
	built := newTestTree(t)

	t.Run("nil cache has nothing", func(t *testing.T) {
		var c *Cache
		test.That(t, c.HasTree(built), test.ShouldBeFalse)
	})

	t.Run("matches by identity", func(t *testing.T) {
		c := New()
		c.Insert(built, KindLoopTri)
		test.That(t, c.HasTree(built), test.ShouldBeTrue)
		test.That(t, c.HasTree(newTestTree(t)), test.ShouldBeFalse)
	})

	t.Run("nil tree matches empty slots", func(t *testing.T) {
		c := New()
		test.That(t, c.HasTree(nil), test.ShouldBeTrue)
	})
}

func TestFree(t *testing.T) {
	c := New()
	c.Insert(newTestTree(t), KindVerts)
	c.Insert(nil, KindEdges)
	c.Free()

	var cachePtr atomic.Pointer[Cache]
	cachePtr.Store(c)
	var initMu sync.Mutex
	_, found, locked := Find(&cachePtr, KindVerts, &initMu, true)
	test.That(t, found, test.ShouldBeFalse)
	test.That(t, locked, test.ShouldBeTrue)
	c.Unlock(locked)
}

func TestConcurrentFindSingleWriter(t *testing.T) {
	var cachePtr atomic.Pointer[Cache]
	var initMu sync.Mutex

	const workers = 16
	var inserts atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			tree, found, locked := Find(&cachePtr, KindLoopTri, &initMu, true)
			if !found {
				c := cachePtr.Load()
				built := bvh.New(1, 0, 2, 6)
				built.Insert(0, r3.Vector{})
				built.Balance()
				c.Insert(built, KindLoopTri)
				inserts.Add(1)
				c.Unlock(locked)
				return
			}
			cachePtr.Load().Unlock(locked)
			if tree == nil {
				t.Error("found slot with nil tree")
			}
		})
	}
	wg.Wait()

	// Exactly one worker may pass the locked miss and insert.
	test.That(t, inserts.Load(), test.ShouldEqual, 1)
	tree, found, locked := Find(&cachePtr, KindLoopTri, &initMu, false)
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, locked, test.ShouldBeFalse)
	test.That(t, tree.Len(), test.ShouldEqual, 1)
}
