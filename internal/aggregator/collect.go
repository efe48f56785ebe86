package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/metrics"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/units"
)

// Collect queries every adapter concurrently and waits until all of them settle.
//
// The result has one entry per adapter, in adapter order. An adapter that errors
// or panics is replaced by a failed quote carrying its name, as is one that returns
// unusable data.
func Collect(ctx context.Context, adapters []quote.Adapter, req *quote.Request, logger *slog.Logger) []*quote.RawQuote {
	results := make([]*quote.RawQuote, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a quote.Adapter) {
			defer wg.Done()

			name := adapterName(i, a)
			start := time.Now()
			q, err := fetch(ctx, a, name, req)
			metrics.AdapterLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

			if err != nil {
				logger.Warn("adapter failed",
					"aggregator", name,
					"duration", time.Since(start),
					"error", err)
				metrics.AdapterRequests.WithLabelValues(name, metrics.OutcomeFailed).Inc()
				results[i] = quote.Failed(name)
				return
			}

			logger.Debug("adapter answered",
				"aggregator", name,
				"duration", time.Since(start),
				"amountOut", *q.AmountOut)
			metrics.AdapterRequests.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
			results[i] = q
		}(i, a)
	}
	wg.Wait()

	return results
}

// adapterName falls back to the adapter's position when Name panics
func adapterName(i int, a quote.Adapter) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("adapter-%d", i)
		}
	}()
	return a.Name()
}

// fetch calls one adapter and validates its answer
func fetch(ctx context.Context, a quote.Adapter, name string, req *quote.Request) (q *quote.RawQuote, err error) {
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("adapter panic: %v", r)
		}
	}()

	q, err = a.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.New("adapter returned no quote")
	}
	if q.Failed {
		return nil, errors.New("adapter marked quote as failed")
	}
	if q.AmountOut == nil {
		return nil, errors.New("quote has no amountOut")
	}
	if _, ok := units.ToDecimal(*q.AmountOut); !ok {
		return nil, fmt.Errorf("quote amountOut %q is not a number", *q.AmountOut)
	}

	// the configured name is the identity, whatever the adapter put there
	q.Aggregator = name
	return q, nil
}
