// Package bvhcache caches one built BVH tree per geometry kind for a mesh.
//
// A cache lives in the owning mesh's runtime state behind an atomic pointer
// and is allocated lazily. Lookups follow a check-lock-check discipline: the
// common "already cached" path takes no lock at all, while at most one caller
// proceeds past a miss holding the cache mutex and is responsible for
// building, inserting and unlocking. Slots transition from empty to filled
// exactly once; invalidation means discarding the whole cache.
package bvhcache

import (
	"sync"
	"sync/atomic"

	"github.com/meshops/meshbvh/bvh"
)

// Kind enumerates the geometry a cached tree was built from.
type Kind uint8

// The closed set of cacheable tree kinds.
const (
	KindVerts Kind = iota
	KindLooseVerts
	KindEdges
	KindLooseEdges
	KindFaces
	KindLoopTri
	KindLoopTriNoHidden
	KindEditMeshVerts
	KindEditMeshEdges
	KindEditMeshLoopTri
	numKinds
)

var kindNames = [numKinds]string{
	"verts", "loose_verts", "edges", "loose_edges", "faces",
	"looptri", "looptri_no_hidden", "em_verts", "em_edges", "em_looptri",
}

func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// item is one cache slot. A slot may be filled with a nil tree, recording
// that the geometry was built and confirmed empty. The filled flag is stored
// after the tree so a lock-free reader that observes filled also observes
// the tree.
type item struct {
	filled atomic.Bool
	tree   atomic.Pointer[bvh.Tree]
}

// Cache holds at most one tree per Kind. The mutex only gates the build-on-
// miss path; filled slots are read without locking.
type Cache struct {
	mu    sync.Mutex
	items [numKinds]item
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Find looks up kind in the cache behind cachePtr.
//
// If the cache does not exist yet it is only allocated when wantLock is set,
// under initMu with a re-check after acquiring (callers racing here must all
// supply the same initMu, normally the owning mesh's evaluation mutex).
//
// On a hit the tree (possibly nil) is returned with no lock held. On a miss
// with wantLock set, the cache mutex is acquired, the slot re-checked under
// it, and if still empty Find returns locked=true: the caller now owns the
// mutex and must release it via Unlock after inserting.
func Find(cachePtr *atomic.Pointer[Cache], kind Kind, initMu *sync.Mutex, wantLock bool) (tree *bvh.Tree, found, locked bool) {
	if cachePtr.Load() == nil {
		if !wantLock {
			// Cache does not exist and no lock was requested.
			return nil, false, false
		}
		initMu.Lock()
		if cachePtr.Load() == nil {
			cachePtr.Store(New())
		}
		initMu.Unlock()
	}
	c := cachePtr.Load()

	if it := &c.items[kind]; it.filled.Load() {
		return it.tree.Load(), true, false
	}
	if wantLock {
		c.mu.Lock()
		// Another caller may have filled the slot between the unlocked check
		// and the lock acquisition.
		if it := &c.items[kind]; it.filled.Load() {
			tree = it.tree.Load()
			c.mu.Unlock()
			return tree, true, false
		}
		return nil, false, true
	}
	return nil, false, false
}

// Unlock releases the cache mutex iff wasLocked is set. Must be called
// exactly once on every exit path after a Find that returned locked=true.
func (c *Cache) Unlock(wasLocked bool) {
	if wasLocked {
		c.mu.Unlock()
	}
}

// Insert stores tree (which may be nil, recording confirmed-empty geometry)
// into the slot for kind. The cache then owns the tree. Inserting into an
// already filled slot is a programming error and panics.
func (c *Cache) Insert(tree *bvh.Tree, kind Kind) {
	it := &c.items[kind]
	if it.filled.Load() {
		panic("bvhcache: slot already filled for kind " + kind.String())
	}
	it.tree.Store(tree)
	it.filled.Store(true)
}

// HasTree reports whether any slot currently holds the given tree, by
// identity. Tolerates a nil cache.
func (c *Cache) HasTree(tree *bvh.Tree) bool {
	if c == nil {
		return false
	}
	for i := range c.items {
		if c.items[i].tree.Load() == tree {
			return true
		}
	}
	return false
}

// Free releases every filled slot's tree. Safe to call with some or all
// slots empty.
func (c *Cache) Free() {
	for i := range c.items {
		c.items[i].tree.Swap(nil).Free()
		c.items[i].filled.Store(false)
	}
}
