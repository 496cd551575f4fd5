package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/crfsearch/internal/explore"
	"github.com/copyleftdev/crfsearch/internal/logging"
)

// Job is one file's exploration request.
type Job struct {
	Input  explore.Input
	Config explore.Config
}

// RunFunc executes one exploration run with the per-encode thread
// budget already decided.
type RunFunc func(ctx context.Context, job Job, threads int) (*explore.Result, error)

// Outcome is one file's terminal state. A failed file carries its
// error; it never aborts the rest of the batch.
type Outcome struct {
	Path   string
	Result *explore.Result
	Err    error
}

// Summary aggregates a batch. The counters are updated atomically from
// worker goroutines.
type Summary struct {
	Succeeded  atomic.Int64
	Failed     atomic.Int64
	Skipped    atomic.Int64
	BytesSaved atomic.Int64

	Outcomes []Outcome
}

// Runner drives a bounded worker pool over independent runs. Each run
// owns an isolated context; no state is shared between workers besides
// the summary counters.
type Runner struct {
	alloc Allocation
	run   RunFunc
	log   *logging.Logger
}

// NewRunner sizes the pool from the workload. A positive workers
// override pins the width and re-derives the per-encode depth.
func NewRunner(w Workload, workers int, run RunFunc, log *logging.Logger) *Runner {
	alloc := BalancedAllocation(w)
	if workers > 0 {
		alloc.ParallelTasks = workers
	}
	return &Runner{alloc: alloc, run: run, log: log}
}

// Allocation exposes the batch's thread split.
func (r *Runner) Allocation() Allocation {
	return r.alloc
}

// Run executes all jobs and returns the aggregate. The returned error
// is only ever a context error; per-file failures live in Outcomes.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Summary, error) {
	summary := &Summary{Outcomes: make([]Outcome, len(jobs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.alloc.ParallelTasks)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				summary.Skipped.Add(1)
				summary.Outcomes[i] = Outcome{Path: job.Input.Path, Err: err}
				return nil
			}

			res, err := r.run(gctx, job, r.alloc.ChildThreads)
			summary.Outcomes[i] = Outcome{Path: job.Input.Path, Result: res, Err: err}

			switch {
			case err != nil:
				summary.Failed.Add(1)
				if r.log != nil {
					r.log.Error("exploration failed", map[string]interface{}{
						"path":  job.Input.Path,
						"error": err.Error(),
					})
				}
			case res != nil && res.Pass:
				summary.Succeeded.Add(1)
				if saved := job.Input.Size - res.OutputSize; saved > 0 {
					summary.BytesSaved.Add(saved)
				}
			default:
				summary.Failed.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}
