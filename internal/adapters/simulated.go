package adapters

import (
	"context"
	"log/slog"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/metrics"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

// simulated runs every prepared transaction through a simulator
type simulated struct {
	quote.Adapter
	simulator quote.Simulator
	logger    *slog.Logger
}

// WithSimulation wraps an adapter so that quotes carrying a transaction are simulated.
// A simulation error never fails the quote; the row just has no simulation.
func WithSimulation(a quote.Adapter, simulator quote.Simulator, logger *slog.Logger) quote.Adapter {
	if simulator == nil {
		return a
	}
	return &simulated{
		Adapter:   a,
		simulator: simulator,
		logger:    logger.With("component", "Simulation", "aggregator", a.Name()),
	}
}

func (s *simulated) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	q, err := s.Adapter.Quote(ctx, req)
	if err != nil || q == nil || q.Failed || q.Tx == nil {
		return q, err
	}

	res, err := s.simulator.Simulate(ctx, &quote.SimulationRequest{
		Tx:       *q.Tx,
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		AmountIn: req.AmountIn,
	})
	if err != nil {
		s.logger.Warn("simulation failed", "error", err)
		metrics.SimulationFailures.WithLabelValues(s.Name()).Inc()
		return q, nil
	}

	if !res.Success {
		s.logger.Info("simulated swap did not succeed", "blockNumber", res.BlockNumber)
	}
	q.Simulation = res
	return q, nil
}
