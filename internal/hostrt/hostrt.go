// Package hostrt is an embedding-facing convenience for running many
// independently-compiled Dust programs concurrently: one VM instance
// per program, each on its own goroutine, sharing no mutable state
// (the object pool and register file are already thread-local to a
// VM instance — this package just supplies the fan-out/fan-in).
package hostrt

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/natives"
	"github.com/dust-lang/dust/internal/vm"
)

// Job is one program to run: its compiled chunk and the native table
// its VM should be constructed with (distinct programs may want
// distinct stdout/stdin bindings, hence a table per job rather than
// one shared table).
type Job struct {
	Chunk   *bytecode.Chunk
	Natives *natives.Table
}

// Result is one job's outcome, indexed the same way as the input
// slice so callers can correlate a result back to its job.
type Result struct {
	Value vm.Value
	Trap  *vm.Trap
}

// RunAll executes every job on its own VM instance concurrently,
// returning one Result per job in input order. It returns a non-nil
// error only for an internal VM invariant violation (never for a
// Trap, which is reported per-job in the Result); ctx cancellation
// stops any job that hasn't started and interrupts jobs already
// running at their next safe point.
func RunAll(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			m := vm.New(job.Natives)
			done := make(chan struct{})
			var val vm.Value
			var trap *vm.Trap
			var runErr error
			go func() {
				val, trap, runErr = m.Run(job.Chunk)
				close(done)
			}()
			select {
			case <-gctx.Done():
				m.Interrupt()
				<-done
			case <-done:
			}
			if runErr != nil {
				return runErr
			}
			results[i] = Result{Value: val, Trap: trap}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
