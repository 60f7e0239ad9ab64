package batch

import (
	"context"
	"sync"
	"time"

	"github.com/hwahn/pricepulse/pkg/logger"
)

// Options bounds a batch run. Batches are strictly sequential with Delay
// between them; items inside a batch run concurrently, at most Concurrency
// in flight.
type Options struct {
	BatchSize   int
	Concurrency int
	Delay       time.Duration
}

// ItemError records one failed item.
type ItemError struct {
	Index int
	Err   error
}

// Result aggregates a run. Individual failures never abort the run; they
// are counted and capped here.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []ItemError
}

// errorCap bounds the retained per-item errors per run.
const errorCap = 50

// Executor runs ordered work lists against a rate-limited dependency.
type Executor struct {
	opts   Options
	logger *logger.Logger
}

// NewExecutor creates an executor with the given bounds. Zero or negative
// values fall back to serial, single-batch behavior.
func NewExecutor(opts Options, log *logger.Logger) *Executor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Executor{opts: opts, logger: log}
}

// Run processes items in order. fn failures are isolated per item; a
// cancelled context stops scheduling new batches but lets in-flight items
// finish. The returned error is only ever the context's.
func Run[T any](ctx context.Context, e *Executor, items []T, fn func(context.Context, T) error) (*Result, error) {
	result := &Result{Total: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	var mu sync.Mutex

	for start := 0; start < len(items); start += e.opts.BatchSize {
		if start > 0 && e.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(e.opts.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + e.opts.BatchSize
		if end > len(items) {
			end = len(items)
		}

		sem := make(chan struct{}, e.opts.Concurrency)
		var wg sync.WaitGroup

		for i := start; i < end; i++ {
			wg.Add(1)
			sem <- struct{}{}

			go func(idx int) {
				defer wg.Done()
				defer func() { <-sem }()

				if err := fn(ctx, items[idx]); err != nil {
					mu.Lock()
					result.Failed++
					if len(result.Errors) < errorCap {
						result.Errors = append(result.Errors, ItemError{Index: idx, Err: err})
					}
					mu.Unlock()
					return
				}

				mu.Lock()
				result.Succeeded++
				mu.Unlock()
			}(i)
		}

		wg.Wait()

		e.logger.WithFields(map[string]interface{}{
			"batch_start": start,
			"batch_end":   end,
			"failed":      result.Failed,
		}).Debug("Processed batch")
	}

	return result, nil
}
