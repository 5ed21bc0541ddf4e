// Package async provides helpers for running per-node operations in
// parallel and reassembling their results in node order.
package async

import (
	"context"
	"fmt"
	"sync"
)

// Task is a named operation run as part of a parallel batch.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel starts all tasks concurrently, waits for every one to
// finish, and returns the first error encountered.
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type outcome struct {
		name string
		err  error
	}

	results := make(chan outcome, len(tasks))
	for _, task := range tasks {
		go func() {
			results <- outcome{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var firstErr error
	for range len(tasks) {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", res.name, res.err)
		}
	}
	return firstErr
}

// Map runs fn for each index in [0, n) concurrently and returns the
// results in index order. Completion order does not matter; one slow or
// failing element never blocks collection of the others. Errors are the
// caller's concern: fn should fold failure into T.
func Map[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) T) []T {
	results := make([]T, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fn(ctx, i)
		}()
	}
	wg.Wait()

	return results
}
