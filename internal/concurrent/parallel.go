package concurrent

import (
	"context"
	"sync"
)

// Result represents the result of a parallel operation
type Result[T any] struct {
	Value T
	Error error
	Index int // Original index in the input slice
}

// Task represents a function to be executed in parallel
type Task[T any] func(ctx context.Context) (T, error)

// ExecuteWithLimit runs tasks with at most maxConcurrent in flight and waits
// for all of them. Tasks not yet started when ctx is done report ctx.Err().
// Results keep the order of the input slice.
func ExecuteWithLimit[T any](ctx context.Context, tasks []Task[T], maxConcurrent int) []Result[T] {
	if maxConcurrent <= 0 || maxConcurrent > len(tasks) {
		maxConcurrent = len(tasks)
	}

	results := make([]Result[T], len(tasks))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrent)

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t Task[T]) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[index] = Result[T]{Error: ctx.Err(), Index: index}
				return
			}

			value, err := t(ctx)
			results[index] = Result[T]{
				Value: value,
				Error: err,
				Index: index,
			}
		}(i, task)
	}

	wg.Wait()
	return results
}

// MapWithLimit applies fn to each item in parallel with a concurrency limit
func MapWithLimit[T any, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), maxConcurrent int) []Result[R] {
	tasks := make([]Task[R], len(items))
	for i, item := range items {
		tasks[i] = func(ctx context.Context) (R, error) {
			return fn(ctx, item)
		}
	}
	return ExecuteWithLimit(ctx, tasks, maxConcurrent)
}

// FirstError returns the first error from results, or nil if all succeeded
func FirstError[T any](results []Result[T]) error {
	for _, result := range results {
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}
