package negotiation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchItem is one listing in a multi-seller run.
type BatchItem struct {
	Listing Listing
	Budget  *float64
	Market  *MarketContext
}

// BatchResult pairs a listing with its outcome. Err is set only when the
// negotiation could not start.
type BatchResult struct {
	ListingID string
	Result    Result
	Err       error
}

// Runner negotiates a single batch item.
type Runner func(ctx context.Context, item BatchItem) (Result, error)

// LoopRunner runs items through loop, applying each item's market context.
func LoopRunner(loop *Loop, runOpts ...RunOption) Runner {
	return func(ctx context.Context, item BatchItem) (Result, error) {
		opts := append([]RunOption(nil), runOpts...)
		if item.Market != nil {
			opts = append(opts, WithMarket(*item.Market))
		}
		return loop.Run(ctx, item.Listing, item.Budget, opts...)
	}
}

// RunBatch negotiates every item independently with at most parallelism
// running at once. Results keep the order of items. done, if non-nil, is
// called once per item as it finishes; calls are serialized.
func RunBatch(ctx context.Context, items []BatchItem, parallelism int, run Runner, done func(BatchResult)) []BatchResult {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]BatchResult, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res, err := run(gctx, item)
			br := BatchResult{ListingID: item.Listing.ID, Result: res, Err: err}
			results[i] = br
			if done != nil {
				mu.Lock()
				done(br)
				mu.Unlock()
			}
			// Per-item failures stay in the result so the rest of the
			// batch keeps running.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BestDeal returns the successful result with the largest savings. Ties go to
// the earlier result. ok is false when nothing succeeded.
func BestDeal(results []BatchResult) (best BatchResult, ok bool) {
	for _, r := range results {
		if r.Err != nil || r.Result.Status != StatusSuccess {
			continue
		}
		if !ok || r.Result.Savings > best.Result.Savings {
			best, ok = r, true
		}
	}
	return best, ok
}
