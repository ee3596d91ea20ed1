// Package batch partitions work items and runs them on a bounded set of
// goroutines.
//
// Each batch is a contiguous slice of the input owned by exactly one
// goroutine, which processes its items in order. A failing or panicking item
// never stops its batch or any other; Run always joins every batch before
// returning.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/3leaps/coldvault/pkg/progress"
)

// DefaultWorkers is the default parallelism.
const DefaultWorkers = 8

// Outcome classifies the result of one item.
type Outcome int

const (
	// Succeeded counts toward the success total.
	Succeeded Outcome = iota

	// Skipped is an expected non-success (already done, not yet possible).
	Skipped

	// Failed is an item error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config configures Run.
type Config struct {
	// Workers is the number of batches (and goroutines). Values below 1 mean 1.
	Workers int

	// RateLimit caps item starts per second across all workers. Zero disables it.
	RateLimit float64
}

// Result aggregates a run.
type Result struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
}

// ItemFunc performs one item. A non-nil error with Succeeded is counted as Failed.
type ItemFunc[T any] func(ctx context.Context, item T) (Outcome, error)

// ItemHook observes each finished item together with the progress snapshot
// taken when it was recorded. It runs on the worker goroutine.
type ItemHook[T any] func(item T, outcome Outcome, err error, snap progress.Snapshot)

// Partition splits items into contiguous batches of ceil(M/n) items; the last
// batch may be smaller. Every item lands in exactly one batch. n < 1 is
// treated as 1 and an empty input yields no batches.
func Partition[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	size := (len(items) + n - 1) / n

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// Run partitions items into cfg.Workers batches, starts one goroutine per
// batch and blocks until all of them finish.
func Run[T any](ctx context.Context, items []T, cfg Config, fn ItemFunc[T], onItem ItemHook[T]) Result {
	tracker := progress.New(len(items))

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	var succeeded, skipped, failed atomic.Int64
	var g errgroup.Group

	for _, b := range Partition(items, cfg.Workers) {
		g.Go(func() error {
			for _, item := range b {
				outcome, err := runItem(ctx, limiter, fn, item)
				switch outcome {
				case Succeeded:
					succeeded.Add(1)
				case Skipped:
					skipped.Add(1)
				default:
					failed.Add(1)
				}

				snap := tracker.Record(outcome == Succeeded)
				if onItem != nil {
					onItem(item, outcome, err, snap)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return Result{
		Processed: tracker.Snapshot().Processed,
		Succeeded: int(succeeded.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
}

func runItem[T any](ctx context.Context, limiter *rate.Limiter, fn ItemFunc[T], item T) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Failed, fmt.Errorf("panic: %v", r)
		}
	}()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Failed, err
		}
	}

	outcome, err = fn(ctx, item)
	if outcome == Succeeded && err != nil {
		outcome = Failed
	}
	if outcome != Succeeded && outcome != Skipped {
		outcome = Failed
	}
	return outcome, err
}
