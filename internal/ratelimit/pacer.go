package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pacer runs tasks in fixed-size batches. Tasks inside a batch run
// concurrently; consecutive batches are separated by Delay. A BatchSize of 1
// is strictly sequential.
type Pacer struct {
	BatchSize int
	Delay     time.Duration
}

// Run calls fn for every index in [0, n). fn must handle its own errors; Run
// only returns early when ctx ends between batches.
func (p Pacer) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	size := p.BatchSize
	if size < 1 {
		size = 1
	}

	for start := 0; start < n; start += size {
		if start > 0 && p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		end := start + size
		if end > n {
			end = n
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}
