package internal

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the fan-out bound used when none is configured
const DefaultWorkers = 4

type gatherConfig struct {
	progress func(done, total int)
}

// GatherOption configures Gather
type GatherOption func(*gatherConfig)

// WithProgress reports completion counts. The callback may be called from
// several goroutines.
func WithProgress(fn func(done, total int)) GatherOption {
	return func(c *gatherConfig) {
		c.progress = fn
	}
}

// Gather runs task once per item with at most workers calls in flight and
// blocks until every item has a result.
//
// Results are returned in completion order. A task error or panic is turned
// into that item's result by onErr and never affects other items.
func Gather[T, R any](ctx context.Context, items []T, workers int, task func(context.Context, T) (R, error), onErr func(T, error) R, opts ...GatherOption) []R {
	cfg := gatherConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make(chan R, len(items))
	var done atomic.Int64

	// plain Group: a failing item must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(workers)
	for _, item := range items {
		g.Go(func() error {
			results <- runIsolated(ctx, item, task, onErr)
			if cfg.progress != nil {
				cfg.progress(int(done.Add(1)), len(items))
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]R, 0, len(items))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func runIsolated[T, R any](ctx context.Context, item T, task func(context.Context, T) (R, error), onErr func(T, error) R) (result R) {
	defer func() {
		if p := recover(); p != nil {
			result = onErr(item, fmt.Errorf("panic: %v", p))
		}
	}()
	r, err := task(ctx, item)
	if err != nil {
		return onErr(item, err)
	}
	return r
}
