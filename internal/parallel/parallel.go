// Package parallel provides a bounded parallel map over disjoint index
// slots. Callers guarantee that fn(i) writes only to slot i of any shared
// output, so no synchronization beyond the group wait is needed.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Map runs fn(0) ... fn(n-1) on up to workers goroutines and waits for all
// of them. A workers value <= 0 means one goroutine per CPU. The first
// non-nil error cancels nothing (tasks are pure computations) but is
// returned after all tasks finish.
func Map(workers, n int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
