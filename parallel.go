package groupdata

import (
	"context"
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// checkEvery is how many records a Feed worker processes between context
// cancellation checks.
const checkEvery = 10000

// Record pairs a key with its value, for slice-backed sources.
type Record[V any] struct {
	Key   uint64
	Value V
}

// Source supplies each worker's records to Feed.
//
// Scan streams worker w's records through fn, stopping early if fn returns
// an error. Feed calls Scan once per pass (twice in total per worker), so a
// Source must be repeatable: both calls for a given worker must yield the
// same records in the same order. Scans for different workers run
// concurrently and must not share mutable state.
type Source[V any] interface {
	Scan(ctx context.Context, worker int, fn func(key uint64, value V) error) error
}

// SliceSource adapts pre-split per-worker record slices to the Source
// interface: element w holds worker w's records, in push order.
type SliceSource[V any] [][]Record[V]

func (s SliceSource[V]) Scan(_ context.Context, worker int, fn func(key uint64, value V) error) error {
	for _, rec := range s[worker] {
		if err := fn(rec.Key, rec.Value); err != nil {
			return err
		}
	}
	return nil
}

// Feed runs the full build protocol over src with the given worker count:
// InitBudget, the parallel budget pass, InitStorage, the parallel placement
// pass, then Verify. The two errgroup Wait calls are the synchronization
// barriers the builder requires; the builder itself never blocks.
//
// Worker w's records are whatever src yields for worker index w, so in
// partitioned mode the source must route each key to its owning worker.
//
// A non-nil error means the build did not complete; the offset and data
// arrays are then in an unspecified state and must be discarded.
func Feed[V any, I constraints.Unsigned](ctx context.Context, b *Builder[V, I], maxKey uint64, workers int, src Source[V]) error {
	if err := b.InitBudget(maxKey, workers); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return src.Scan(gctx, w, budgetFn(gctx, b, w))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("budget pass: %w", err)
	}

	if err := b.InitStorage(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return src.Scan(gctx, w, pushFn(gctx, b, w))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("placement pass: %w", err)
	}

	return b.Verify()
}

// budgetFn returns a Scan callback that tallies worker w's records,
// checking for cancellation every checkEvery records.
func budgetFn[V any, I constraints.Unsigned](ctx context.Context, b *Builder[V, I], w int) func(uint64, V) error {
	n := 0
	return func(key uint64, _ V) error {
		if n++; n >= checkEvery {
			n = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		b.AddBudget(key, w)
		return nil
	}
}

// pushFn returns a Scan callback that places worker w's records.
func pushFn[V any, I constraints.Unsigned](ctx context.Context, b *Builder[V, I], w int) func(uint64, V) error {
	n := 0
	return func(key uint64, value V) error {
		if n++; n >= checkEvery {
			n = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		b.Push(key, value, w)
		return nil
	}
}
