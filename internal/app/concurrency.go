package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a Task.
type Result[T any] struct {
	Value T
	Err   error
}

// Task is a value being computed on another goroutine. The result is
// delivered once through a buffered channel, so the worker never blocks
// even if nobody awaits it.
type Task[T any] struct {
	ch     chan Result[T]
	once   sync.Once
	result Result[T]
}

// Go starts fn on a new goroutine. A panic in fn becomes the task's error.
//
// Example:
//
//	oclc := app.Go(ctx, func(ctx context.Context) (string, error) {
//	    return finder.FindOCLC(ctx, isbn)
//	})
//	rec, err := bibformat.LookupISBN(ctx, isbn) // runs meanwhile
//	id, _ := oclc.Await()
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{ch: make(chan Result[T], 1)}

	go func() {
		var res Result[T]

		defer func() {
			if r := recover(); r != nil {
				res = Result[T]{Err: fmt.Errorf("task panicked: %v", r)}
			}

			t.ch <- res
		}()

		res.Value, res.Err = fn(ctx)
	}()

	return t
}

// Await blocks until the task finishes and returns its result. It may be
// called any number of times.
func (t *Task[T]) Await() (T, error) {
	t.once.Do(func() {
		t.result = <-t.ch
	})

	return t.result.Value, t.result.Err
}

// Batch runs fn over inputs with at most limit calls in flight and returns
// the results in input order. Item errors are collected in their Result,
// never propagated, so one failing item does not stop the others.
func Batch[I, O any](ctx context.Context, limit int, inputs []I, fn func(context.Context, I) (O, error)) []Result[O] {
	results := make([]Result[O], len(inputs))
	if len(inputs) == 0 {
		return results
	}

	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group

	g.SetLimit(limit)

	for i, in := range inputs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result[O]{Err: fmt.Errorf("batch item %d panicked: %v", i, r)}
				}
			}()

			if err := ctx.Err(); err != nil {
				results[i] = Result[O]{Err: err}
				return nil
			}

			v, err := fn(ctx, in)
			results[i] = Result[O]{Value: v, Err: err}

			return nil
		})
	}

	_ = g.Wait()

	return results
}
