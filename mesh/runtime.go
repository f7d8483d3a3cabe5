package mesh

import (
	"sync"
	"sync/atomic"

	"github.com/meshops/meshbvh/bvhcache"
)

// Runtime is the mutable state attached to an otherwise immutable mesh. The
// BVH cache slot is opaque to this package beyond its lifecycle: it is
// allocated lazily by lookups (gated by EvalMu) and torn down with the mesh.
type Runtime struct {
	// EvalMu is the mesh's single evaluation mutex. All lazy runtime
	// initialization for this mesh races through it.
	EvalMu sync.Mutex

	// BVHCache holds the per-kind tree cache once some caller has requested
	// a tree with locking.
	BVHCache atomic.Pointer[bvhcache.Cache]

	looseOnce   sync.Once
	loose       LooseEdgeCache
	looptriOnce sync.Once
	looptris    []LoopTri
}

// FreeBVHCache discards the BVH cache, releasing every cached tree.
// Callers must guarantee no concurrent tree lookups are in flight.
func (rt *Runtime) FreeBVHCache() {
	if c := rt.BVHCache.Swap(nil); c != nil {
		c.Free()
	}
}
