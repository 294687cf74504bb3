// Package join provides the fan-out/join hook used to parallelize wide subtree compression
// across goroutines. A Hook runs N independent thunks and waits for all of them; callers
// pick Sequential for small or latency-sensitive splits and WorkStealing for large ones.
package join

import "golang.org/x/sync/errgroup"

// Hook runs a set of independent closures to completion, possibly concurrently.
type Hook interface {
	// Join runs every fn in tasks, returning the first error encountered (if any). All
	// tasks run to completion regardless of earlier errors.
	Join(tasks []func() error) error
}

// Sequential runs each task on the calling goroutine, in order. It is the right choice
// below the parallelization threshold, where goroutine setup would cost more than it saves.
type Sequential struct{}

// Join implements Hook.
func (Sequential) Join(tasks []func() error) error {
	var first error
	for _, fn := range tasks {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WorkStealing runs tasks across an errgroup-managed goroutine pool, capped at Limit
// concurrent goroutines (0 means unlimited). It is the right choice for wide subtree
// splits on large inputs, where the per-task work vastly outweighs scheduling overhead.
type WorkStealing struct {
	// Limit bounds the number of goroutines run concurrently. Zero means no limit.
	Limit int
}

// Join implements Hook.
func (w WorkStealing) Join(tasks []func() error) error {
	var g errgroup.Group
	if w.Limit > 0 {
		g.SetLimit(w.Limit)
	}
	for _, fn := range tasks {
		g.Go(fn)
	}
	return g.Wait()
}
