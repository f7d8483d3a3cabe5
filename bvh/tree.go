// Package bvh implements a bounding volume hierarchy over indexed geometric
// primitives, used to accelerate nearest-point and ray-cast queries.
//
// A Tree is populated with Insert and must be balanced with Balance before it
// can answer queries. Balancing is split out from insertion because it is the
// expensive step and callers may want to defer it, run it in isolation, or
// skip it entirely for empty trees.
//
// A nil *Tree is the designated "empty" value: every method no-ops safely on
// it, so callers holding a tree built from zero primitives never need to
// special-case.
package bvh

import (
	"runtime"
	"sort"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
)

// Below this many leaves the balance step does not bother spawning workers.
const parallelBalanceMin = 4096

type leaf struct {
	index  int
	bounds aabb
}

type node struct {
	bounds   aabb
	children []*node
	leaves   []leaf // set only on leaf nodes
}

// Tree is a BVH whose leaves carry the original source index of each inserted
// primitive, so query results map directly back to the caller's arrays.
type Tree struct {
	epsilon  float64
	treeType int
	axis     int
	leaves   []leaf
	root     *node
}

// New returns an empty tree sized for maxSize primitives. The epsilon inflates
// every inserted bounding volume, treeType is the branching factor and axis
// the number of splitting axes. Returns nil when maxSize is not positive;
// nil is a valid empty tree.
func New(maxSize int, epsilon float64, treeType, axis int) *Tree {
	if maxSize <= 0 {
		return nil
	}
	if treeType < 2 {
		treeType = 2
	}
	return &Tree{
		epsilon:  epsilon,
		treeType: treeType,
		axis:     axis,
		leaves:   make([]leaf, 0, maxSize),
	}
}

// Insert adds one primitive spanning the given points: one point for a vertex,
// two for a segment, three or four for a face. The index tags the primitive
// and is reported back from queries untouched.
func (t *Tree) Insert(index int, points ...r3.Vector) {
	if t == nil || len(points) == 0 {
		return
	}
	b := newAABB(points[0])
	for _, p := range points[1:] {
		b = b.extend(p)
	}
	t.leaves = append(t.leaves, leaf{index: index, bounds: b.inflate(t.epsilon)})
}

// Len returns the number of inserted primitives.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.leaves)
}

// TreeType returns the branching factor the tree was created with.
func (t *Tree) TreeType() int {
	if t == nil {
		return 0
	}
	return t.treeType
}

// Free releases the tree's storage. Queries on a freed tree behave like
// queries on an empty one.
func (t *Tree) Free() {
	if t == nil {
		return
	}
	t.leaves = nil
	t.root = nil
}

// Balance builds the hierarchy over the inserted primitives. Large trees are
// balanced in parallel on goroutines private to this call; no work is ever
// handed to a shared pool, so balancing while holding a lock cannot pick up
// unrelated tasks that contend for it. Balancing an already balanced or empty
// tree is a no-op.
func (t *Tree) Balance() {
	if t == nil || t.root != nil || len(t.leaves) == 0 {
		return
	}
	ls := make([]leaf, len(t.leaves))
	copy(ls, t.leaves)
	t.root = t.build(ls, len(ls) >= parallelBalanceMin)
}

// build recursively partitions ls by median split along the longest centroid
// axis into up to treeType children per node.
func (t *Tree) build(ls []leaf, parallel bool) *node {
	n := &node{bounds: boundsOf(ls)}
	if len(ls) <= t.treeType {
		n.leaves = ls
		return n
	}

	axis := centroidBounds(ls).longestAxis()
	sort.Slice(ls, func(i, j int) bool {
		return axisValue(ls[i].bounds.center(), axis) < axisValue(ls[j].bounds.center(), axis)
	})

	parts := splitChunks(ls, t.treeType)
	n.children = make([]*node, len(parts))
	if parallel {
		var group errgroup.Group
		group.SetLimit(runtime.GOMAXPROCS(0))
		for i, part := range parts {
			i, part := i, part
			group.Go(func() error {
				n.children[i] = t.build(part, false)
				return nil
			})
		}
		group.Wait() //nolint:errcheck // workers never return errors
	} else {
		for i, part := range parts {
			n.children[i] = t.build(part, false)
		}
	}
	return n
}

// splitChunks divides ls into up to n non-empty contiguous chunks.
func splitChunks(ls []leaf, n int) [][]leaf {
	if n > len(ls) {
		n = len(ls)
	}
	chunks := make([][]leaf, 0, n)
	size := len(ls) / n
	extra := len(ls) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, ls[start:end])
		start = end
	}
	return chunks
}

func boundsOf(ls []leaf) aabb {
	b := ls[0].bounds
	for _, l := range ls[1:] {
		b = b.union(l.bounds)
	}
	return b
}

func centroidBounds(ls []leaf) aabb {
	b := newAABB(ls[0].bounds.center())
	for _, l := range ls[1:] {
		b = b.extend(l.bounds.center())
	}
	return b
}

func axisValue(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
