package oracle

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// fakeBackend reports every second call it receives (the 2nd, 4th, ...) as
// UNSAT without touching z3; each worker has its own instance and counter,
// letting pool/progress behavior be tested independently of a real solver.
type fakeBackend struct {
	calls int32
}

func (f *fakeBackend) CheckState(ctx context.Context, actx *absint.Context, s absint.State) (Verdict, error) {
	n := atomic.AddInt32(&f.calls, 1)
	return Verdict{SAT: n%2 == 1}, nil
}

func testActx() *absint.Context {
	return absint.NewContext(cfg.Platform{NumRegs: 2, NumTemps: 1}, nil, absint.Flags{})
}

func TestPoolReturnsOneVerdictAndProgressCallPerJob(t *testing.T) {
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{Edge: cfg.EdgeID(i)}
	}

	var progressCalls int32
	p := &Pool{
		NewBackend: func() Backend { return &fakeBackend{} },
		Workers:    4,
		Progress: func(done, total int) {
			atomic.AddInt32(&progressCalls, 1)
		},
	}

	out, err := p.CheckBatch(context.Background(), testActx(), jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(jobs) {
		t.Fatalf("expected %d verdicts, got %d", len(jobs), len(out))
	}
	if int(progressCalls) != len(jobs) {
		t.Fatalf("expected one progress call per job, got %d", progressCalls)
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	p := &Pool{NewBackend: func() Backend { return &fakeBackend{} }, Workers: 2}
	out, err := p.CheckBatch(context.Background(), testActx(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil result for empty batch, got %v", out)
	}
}
