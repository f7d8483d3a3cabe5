package task

import (
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestParallel(t *testing.T) {
	t.Run("covers the full range exactly once", func(t *testing.T) {
		const n = 1000
		var hits [n]atomic.Int32
		Parallel(n, func(from, to int) {
			for i := from; i < to; i++ {
				hits[i].Add(1)
			}
		})
		for i := range hits {
			test.That(t, hits[i].Load(), test.ShouldEqual, 1)
		}
	})

	t.Run("zero size is a no-op", func(t *testing.T) {
		called := false
		Parallel(0, func(from, to int) { called = true })
		test.That(t, called, test.ShouldBeFalse)
	})

	t.Run("size below worker count", func(t *testing.T) {
		var count atomic.Int32
		Parallel(2, func(from, to int) {
			count.Add(int32(to - from))
		})
		test.That(t, count.Load(), test.ShouldEqual, 2)
	})
}

func TestIsolate(t *testing.T) {
	t.Run("runs to completion before returning", func(t *testing.T) {
		done := false
		Isolate(func() { done = true })
		test.That(t, done, test.ShouldBeTrue)
	})

	t.Run("inner work can contend for a lock the caller holds", func(t *testing.T) {
		// The isolated workload must never be co-scheduled with other queued
		// work, so running it while holding a mutex cannot deadlock.
		var mu sync.Mutex
		mu.Lock()
		total := 0
		Isolate(func() {
			Parallel(100, func(from, to int) {
				// Workers touch only their own range; the caller's mutex stays
				// held throughout.
				_ = to - from
			})
			total = 100
		})
		mu.Unlock()
		test.That(t, total, test.ShouldEqual, 100)
	})
}
