package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// WarmResult reports one ticker's outcome from a warm pass.
type WarmResult struct {
	Ticker string
	Err    error
}

// Warm pre-fetches caches for a list of tickers using a small bounded worker
// pool. Each ticker that is already cached is a cheap no-op, so a warm pass
// never invalidates anything and never blocks interactive reads. Individual
// failures are collected, not fatal.
func (m *Manager) Warm(ctx context.Context, tickers []string, workers int) []WarmResult {
	if workers <= 0 {
		workers = 3
	}
	results := make([]WarmResult, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			err := m.EnsureCache(ctx, ticker)
			results[i] = WarmResult{Ticker: ticker, Err: err}
			if err != nil {
				fmt.Printf("Warm pass: %s failed: %v\n", ticker, err)
			}
			// Per-ticker failures do not cancel the rest of the pass.
			return nil
		})
	}
	g.Wait()
	return results
}
