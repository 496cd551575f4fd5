// Package batch runs independent exploration runs concurrently under a
// fixed core budget, with the width/depth split decided once per batch.
package batch

import (
	"math"
	"runtime"
)

// Workload shapes the thread split.
type Workload int

const (
	// WorkloadImage: many small files, short-lived encodes. Width
	// (parallel tasks) is favored.
	WorkloadImage Workload = iota
	// WorkloadVideo: few large files, long-lived CPU-heavy encodes.
	// Depth (threads per encode) is favored.
	WorkloadVideo
)

func (w Workload) String() string {
	switch w {
	case WorkloadImage:
		return "image"
	case WorkloadVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ParseWorkload maps a config string onto a workload, defaulting to
// video.
func ParseWorkload(s string) Workload {
	if s == "image" {
		return WorkloadImage
	}
	return WorkloadVideo
}

// Allocation is the per-batch split of the core budget:
// ParallelTasks x ChildThreads stays within the available cores.
type Allocation struct {
	ParallelTasks int
	ChildThreads  int
}

// BalancedAllocation computes the split for this machine. It is meant
// to be called once per batch, not per file.
func BalancedAllocation(w Workload) Allocation {
	return allocationFor(runtime.NumCPU(), w)
}

func allocationFor(totalCores int, w Workload) Allocation {
	// Leave breathing room for the OS: 20% of cores, between 1 and 2.
	reserved := int(math.Ceil(float64(totalCores) * 0.2))
	if reserved < 1 {
		reserved = 1
	}
	if reserved > 2 {
		reserved = 2
	}
	available := totalCores - reserved
	if available < 1 {
		available = 1
	}

	switch w {
	case WorkloadImage:
		childThreads := 2
		parallel := available / childThreads
		if parallel < 1 {
			parallel = 1
		}
		if parallel > 8 {
			parallel = 8
		}
		return Allocation{ParallelTasks: parallel, ChildThreads: childThreads}
	default:
		parallel := 1
		if available >= 8 {
			parallel = 2
		}
		childThreads := available / parallel
		if childThreads < 1 {
			childThreads = 1
		}
		return Allocation{ParallelTasks: parallel, ChildThreads: childThreads}
	}
}
