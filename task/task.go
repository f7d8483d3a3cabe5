// Package task provides the small scheduling capabilities the BVH cache
// relies on: chunked parallel loops and isolated execution.
//
// Isolation matters when expensive parallel work (BVH balancing) runs while a
// mutex is held. Work submitted to a shared pool could make the current
// worker pick up an unrelated task that blocks on that same mutex, which
// deadlocks. Isolate guarantees the workload runs only on goroutines private
// to the call, with no cross-scheduling against anything queued elsewhere.
package task

import (
	"math"
	"runtime"
	"sync"

	goutils "go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be
// useful to set in tests where too much parallelism actually slows tests
// down in aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// Parallel divides [0, totalSize) into contiguous chunks, one per worker, and
// runs work(from, to) on each chunk concurrently, returning when all chunks
// are done. The goroutines are private to this call.
func Parallel(totalSize int, work func(from, to int)) {
	if totalSize <= 0 {
		return
	}
	numGroups := ParallelFactor
	if numGroups > totalSize {
		numGroups = totalSize
	}
	groupSize := int(math.Floor(float64(totalSize) / float64(numGroups)))
	extra := totalSize % numGroups

	var wait sync.WaitGroup
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNumCopy := groupNum
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			groupNum := groupNumCopy

			from := groupSize * groupNum
			to := groupSize * (groupNum + 1)
			if groupNum == numGroups-1 {
				to += extra
			}
			work(from, to)
		})
	}
	wait.Wait()
}

// Isolate runs fn to completion on a goroutine private to this call and
// waits for it. Any parallelism fn spawns internally (e.g. via Parallel)
// stays private too, so fn can safely run while the caller holds locks that
// other queued work might contend for.
func Isolate(fn func()) {
	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(done)
		fn()
	})
	<-done
}
