// Package orchestrator drives a caller-supplied scoring function over a batch
// of work items with bounded concurrency, shared rate limiting, per-item
// retries, and cooperative cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/logger"
	"github.com/jonesrussell/grant-matcher/internal/ratelimit"
)

// WorkItem is one opaque unit of work. Index is stable across retries and
// completion reordering; Payload is owned by the caller and never mutated.
type WorkItem struct {
	Index   int
	Payload any
}

// WorkResult is the outcome of processing one WorkItem. Exactly one of the
// three outcome states holds: Value set (success), Err set (failure), or
// Cancelled true.
type WorkResult struct {
	Index     int
	Value     any
	Err       error
	Cancelled bool
}

// ScoreFunc is the caller-supplied scoring function. Throttling and
// structural failures are signalled with Throttled and Structural wrappers;
// any other error is treated as transient.
type ScoreFunc func(ctx context.Context, item WorkItem) (any, error)

// Default retry tuning.
const (
	// DefaultMaxAttempts is the per-item attempt budget, including the first try.
	DefaultMaxAttempts = 3
	// DefaultThrottleBackoff is the base for exponential throttle backoff
	// (5s, 10s, 20s across attempts).
	DefaultThrottleBackoff = 5 * time.Second
	// DefaultTransientBackoff is the fixed sleep between transient retries.
	DefaultTransientBackoff = 2 * time.Second
	// ErrorSampleLimit caps how many error messages a run summary carries.
	ErrorSampleLimit = 10
)

// Options configures one Run.
type Options struct {
	// Concurrency bounds the number of items processed at once. A value of
	// 1 (or less) selects a plain sequential path with identical semantics.
	Concurrency int
	// MaxAttempts is the per-item attempt budget, including the first try.
	MaxAttempts int
	// ThrottleBackoff is the base for exponential backoff after throttling.
	ThrottleBackoff time.Duration
	// TransientBackoff is the fixed sleep between transient retries.
	TransientBackoff time.Duration
	// IsCancelled is polled before each attempt and before dispatching each
	// item. A nil func means only ctx cancellation applies.
	IsCancelled func() bool
	// OnProgress is invoked once per completed item (success, error, or
	// cancellation), sequentially, with a strictly increasing completed count.
	OnProgress func(completed, total int)
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.ThrottleBackoff <= 0 {
		o.ThrottleBackoff = DefaultThrottleBackoff
	}
	if o.TransientBackoff <= 0 {
		o.TransientBackoff = DefaultTransientBackoff
	}
}

// Orchestrator runs scoring batches against one shared rate limiter.
type Orchestrator struct {
	limiter *ratelimit.Limiter
	log     logger.Logger
}

// New creates an Orchestrator. The limiter is shared across all items of all
// runs driven through this instance.
func New(limiter *ratelimit.Limiter, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		limiter: limiter,
		log:     log,
	}
}

// Run processes every item and returns exactly one WorkResult per input
// index, in completion order. Per-item failures never escape as errors;
// callers needing submission order sort by Index.
func (o *Orchestrator) Run(ctx context.Context, items []WorkItem, score ScoreFunc, opts Options) []WorkResult {
	opts.setDefaults()

	if len(items) == 0 {
		return nil
	}

	if opts.Concurrency == 1 {
		return o.runSequential(ctx, items, score, opts)
	}
	return o.runPooled(ctx, items, score, opts)
}

// runSequential is the degenerate single-worker path.
func (o *Orchestrator) runSequential(ctx context.Context, items []WorkItem, score ScoreFunc, opts Options) []WorkResult {
	results := make([]WorkResult, 0, len(items))

	for _, item := range items {
		results = append(results, o.processItem(ctx, item, score, opts))
		o.reportProgress(opts, len(results), len(items))
	}

	return results
}

// runPooled dispatches items through a semaphore-bounded set of goroutines
// and collects results as they complete.
func (o *Orchestrator) runPooled(ctx context.Context, items []WorkItem, score ScoreFunc, opts Options) []WorkResult {
	resultCh := make(chan WorkResult)
	sem := make(chan struct{}, opts.Concurrency)

	go func() {
		for _, item := range items {
			// No new work starts once cancellation is observed; in-flight
			// calls are left to finish.
			if o.cancelled(ctx, opts) {
				resultCh <- WorkResult{Index: item.Index, Cancelled: true}
				continue
			}

			sem <- struct{}{}
			go func(item WorkItem) {
				defer func() { <-sem }()
				resultCh <- o.processItem(ctx, item, score, opts)
			}(item)
		}
	}()

	results := make([]WorkResult, 0, len(items))
	for range items {
		results = append(results, <-resultCh)
		o.reportProgress(opts, len(results), len(items))
	}

	return results
}

// processItem runs the full attempt loop for one item.
func (o *Orchestrator) processItem(ctx context.Context, item WorkItem, score ScoreFunc, opts Options) WorkResult {
	var lastErr error

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if o.cancelled(ctx, opts) {
			return WorkResult{Index: item.Index, Cancelled: true}
		}

		if acquireErr := o.limiter.Acquire(ctx); acquireErr != nil {
			return WorkResult{Index: item.Index, Cancelled: true}
		}

		value, err := score(ctx, item)
		if err == nil {
			o.limiter.ReportSuccess(ctx)
			return WorkResult{Index: item.Index, Value: value}
		}

		lastErr = err

		if IsStructural(err) {
			// Retrying cannot help; fail the item without consuming the
			// remaining attempts.
			o.log.Warn("item failed structurally",
				logger.Int("index", item.Index),
				logger.Error(err),
			)
			return WorkResult{Index: item.Index, Err: err}
		}

		retryAfter, throttled := IsThrottled(err)
		if throttled {
			o.limiter.ReportThrottled(ctx, retryAfter)
		}

		if attempt == opts.MaxAttempts-1 {
			break
		}

		wait := opts.TransientBackoff
		if throttled {
			wait = opts.ThrottleBackoff << attempt
			if retryAfter > wait {
				wait = retryAfter
			}
		}

		o.log.Debug("retrying item",
			logger.Int("index", item.Index),
			logger.Int("attempt", attempt+1),
			logger.Duration("backoff", wait),
			logger.Bool("throttled", throttled),
		)

		select {
		case <-ctx.Done():
			return WorkResult{Index: item.Index, Cancelled: true}
		case <-time.After(wait):
		}
	}

	return WorkResult{
		Index: item.Index,
		Err:   fmt.Errorf("exhausted %d attempts: %w", opts.MaxAttempts, lastErr),
	}
}

func (o *Orchestrator) cancelled(ctx context.Context, opts Options) bool {
	if ctx.Err() != nil {
		return true
	}
	return opts.IsCancelled != nil && opts.IsCancelled()
}

func (o *Orchestrator) reportProgress(opts Options, completed, total int) {
	if opts.OnProgress != nil {
		opts.OnProgress(completed, total)
	}
}

// RunStats summarizes a result set for operator visibility.
type RunStats struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Errored   int      `json:"errored"`
	Cancelled int      `json:"cancelled"`
	// Errors holds at most ErrorSampleLimit messages, never an unbounded dump.
	Errors []string `json:"errors,omitempty"`
}

// Summarize aggregates results into counts plus a capped error sample.
func Summarize(results []WorkResult) RunStats {
	stats := RunStats{Total: len(results)}

	for _, r := range results {
		switch {
		case r.Cancelled:
			stats.Cancelled++
		case r.Err != nil:
			stats.Errored++
			if len(stats.Errors) < ErrorSampleLimit {
				stats.Errors = append(stats.Errors, fmt.Sprintf("item %d: %v", r.Index, r.Err))
			}
		default:
			stats.Succeeded++
		}
	}

	return stats
}

// SortByIndex orders results by their originating index, for callers that
// need submission order back.
func SortByIndex(results []WorkResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}
