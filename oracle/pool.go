package oracle

import (
	"context"
	"sync"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// Job is one state queued for a satisfiability check, tagged with the edge
// it crossed so a caller can correlate the verdict back to a path.
type Job struct {
	Edge  cfg.EdgeID
	State absint.State
}

// result pairs a job's slot with its verdict, letting workers report out
// of order while the pool still assembles an order-preserving result slice.
type result struct {
	slot    int
	verdict Verdict
	err     error
}

// Pool dispatches a batch of CheckState calls across a fixed number of
// worker goroutines, each with its own Backend instance (solvers are not
// shared across goroutines).
type Pool struct {
	NewBackend func() Backend
	Workers    int

	// Progress, if set, is called after every job completes with the
	// number done so far and the batch total.
	Progress func(done, total int)
}

// CheckBatch runs every job in jobs, returning one Verdict per job in the
// same order jobs were given. An error does not stop the batch: every job
// is still checked, and then the first error received is returned.
func (p *Pool) CheckBatch(ctx context.Context, actx *absint.Context, jobs []Job) ([]Verdict, error) {
	n := len(jobs)
	if n == 0 {
		return nil, nil
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	results := make(chan result, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backend := p.NewBackend()
			for slot := range work {
				verdict, err := backend.CheckState(ctx, actx, jobs[slot].State)
				results <- result{slot: slot, verdict: verdict, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Verdict, n)
	var firstErr error
	done := 0
	for r := range results {
		done++
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		out[r.slot] = r.verdict
		if p.Progress != nil {
			p.Progress(done, n)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
