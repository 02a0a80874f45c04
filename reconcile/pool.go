package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// employeeFunc reconciles one employee, passing each transition to emit as
// soon as it is written.
type employeeFunc func(ctx context.Context, employeeID string, emit func(Result)) error

// outcome is one employee's contribution, tagged with its input position so
// merged summaries keep input order regardless of which worker ran it.
type outcome struct {
	index   int
	results []Result
	err     string
}

// forEachEmployee runs fn for every id on up to e.Workers goroutines. Each
// worker collects a partial batch which is merged under a mutex. Once ctx is
// done no further employees are started.
func (e *Engine) forEachEmployee(ctx context.Context, ids []string, fn employeeFunc) Summary {
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	var (
		mu     sync.Mutex
		merged []outcome
		wg     sync.WaitGroup
	)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var partial []outcome
			for i := range jobs {
				partial = append(partial, runEmployee(ctx, i, ids[i], fn))
			}
			mu.Lock()
			merged = append(merged, partial...)
			mu.Unlock()
		}()
	}

	cancelled := dispatch(ctx, jobs, len(ids))
	close(jobs)
	wg.Wait()

	sort.Slice(merged, func(a, b int) bool { return merged[a].index < merged[b].index })

	summary := newSummary()
	for _, o := range merged {
		summary.TotalProcessed++
		summary.StatusChanges += len(o.results)
		summary.Results = append(summary.Results, o.results...)
		if o.err != "" {
			summary.Errors = append(summary.Errors, o.err)
		}
	}
	if cancelled != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("stopped after %d of %d employees: %v", len(merged), len(ids), cancelled))
	}
	return summary
}

// dispatch feeds indexes [0, n) to jobs until ctx is done.
func dispatch(ctx context.Context, jobs chan<- int, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// runEmployee converts an error or panic from fn into an error string.
// Transitions emitted before the failure are already stored and stay in
// the outcome.
func runEmployee(ctx context.Context, index int, id string, fn employeeFunc) (o outcome) {
	o.index = index
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Sprintf("employee %s: panic: %v", id, r)
		}
	}()

	err := fn(ctx, id, func(r Result) { o.results = append(o.results, r) })
	if err != nil {
		o.err = fmt.Sprintf("employee %s: %v", id, err)
	}
	return o
}
