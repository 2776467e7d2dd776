// Package fanout runs one task per input concurrently and joins them,
// keeping results in input order.
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one task.
type Result[R any] struct {
	Value R
	Err   error
}

// PanicError is the error of a task that panicked.
type PanicError struct {
	Index int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fanout: task %d panicked: %v", e.Index, e.Value)
}

// Map calls fn once per item, concurrently, and waits for every call to
// return. results[i] always belongs to items[i], whatever order the calls
// finish in. A failing or panicking call never cancels the others and is
// reported only in its own Result. limit bounds the number of calls in
// flight; limit <= 0 means no bound.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	// A zero Group carries no derived context, so one failure cannot cancel
	// its siblings.
	var grp errgroup.Group
	if limit > 0 {
		grp.SetLimit(limit)
	}

	for i, item := range items {
		grp.Go(func() error {
			results[i] = call(ctx, i, item, fn)
			return nil
		})
	}
	_ = grp.Wait()

	return results
}

func call[T, R any](ctx context.Context, i int, item T, fn func(context.Context, int, T) (R, error)) (res Result[R]) {
	defer func() {
		if v := recover(); v != nil {
			res = Result[R]{Err: &PanicError{Index: i, Value: v, Stack: debug.Stack()}}
		}
	}()

	v, err := fn(ctx, i, item)
	return Result[R]{Value: v, Err: err}
}

// Values splits results into values and errors, both indexed like the input.
func Values[R any](results []Result[R]) ([]R, []error) {
	values := make([]R, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		values[i], errs[i] = r.Value, r.Err
	}
	return values, errs
}

// Failed counts the results carrying an error.
func Failed[R any](results []Result[R]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
