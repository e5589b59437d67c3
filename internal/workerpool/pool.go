// Package workerpool runs a function over a slice with bounded concurrency.
package workerpool

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Run calls fn for every item using at most workers goroutines and waits for
// all of them. A failing item does not stop the others; every error is
// returned joined. Items not yet started when ctx is done are skipped and
// ctx.Err() is included.
func Run[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(max(workers, 1))

	errs := make([]error, len(items)+1)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[len(items)] = err
			break
		}
		g.Go(func() error {
			errs[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}
