// Package pool runs independent per-file units of work on a bounded number of
// goroutines and tallies their outcomes.
//
// A unit that fails on its own input (unreadable image, exhausted sampling)
// records a skip in the Tally and returns nil; only errors that invalidate the
// whole run are returned from the unit, which stops dispatching.
package pool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/defectset/pkg/errors"
)

// Workers returns n, or the number of CPUs when n <= 0.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Run calls fn for every index in [0, n) on at most workers goroutines.
// It returns the first error returned by fn, or the context error if ctx was
// cancelled before every unit was dispatched.
func Run(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Tally counts unit outcomes. It is safe for concurrent use.
type Tally struct {
	mu       sync.Mutex
	written  int
	skipped  int
	warnings int
	problems []error
}

// Counts is a snapshot of a Tally.
type Counts struct {
	Written  int
	Skipped  int
	Warnings int
}

// Add returns the sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{c.Written + o.Written, c.Skipped + o.Skipped, c.Warnings + o.Warnings}
}

// Written records n outputs.
func (t *Tally) Written(n int) {
	t.mu.Lock()
	t.written += n
	t.mu.Unlock()
}

// Skip records a unit that produced no output because of err.
func (t *Tally) Skip(err error) {
	t.mu.Lock()
	t.skipped++
	t.problems = append(t.problems, err)
	t.mu.Unlock()
}

// Warn records a problem that did not stop the unit, such as a dropped record.
func (t *Tally) Warn(err error) {
	t.mu.Lock()
	t.warnings++
	t.problems = append(t.problems, err)
	t.mu.Unlock()
}

// Record classifies err by its code: fatal codes are returned unchanged,
// GEOMETRY and SAMPLING_EXHAUSTED count as warnings, everything else as a
// skip. A nil err records nothing.
func (t *Tally) Record(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.IsFatal(err):
		return err
	case errors.Is(err, errors.ErrCodeGeometry), errors.Is(err, errors.ErrCodeSamplingExhausted):
		t.Warn(err)
	default:
		t.Skip(err)
	}
	return nil
}

// Counts returns the current counts.
func (t *Tally) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{Written: t.written, Skipped: t.skipped, Warnings: t.warnings}
}

// Problems returns every recorded skip and warning in the order recorded.
func (t *Tally) Problems() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.problems...)
}
