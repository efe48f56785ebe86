// Package aggregator runs the quote pipeline: resolve tokens, fan out to every
// adapter while fetching the gas reference, then score and rank the answers.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/metrics"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/scoring"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/units"
)

// DefaultTimeout bounds a whole aggregation
const DefaultTimeout = 100 * time.Second

// ErrTimeout is returned when the pipeline exceeds its budget
var ErrTimeout = errors.New("quote aggregation timed out")

// TokenResolver resolves a symbol to token metadata
type TokenResolver interface {
	Lookup(ctx context.Context, symbol string) (token.Token, error)
}

// GasSource returns the gas price in tokenIn base units, scaled by 2^96
type GasSource interface {
	GasPriceX96(ctx context.Context, tokenIn token.Token) (*big.Int, error)
}

// Publisher receives every finished response
type Publisher interface {
	Publish(requestID string, payload any)
}

// Service is the aggregation entry point
type Service struct {
	adapters  []quote.Adapter
	tokens    TokenResolver
	gas       GasSource
	timeout   time.Duration
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates the aggregation service.
// Adapter names must be unique; timeout <= 0 selects DefaultTimeout.
func NewService(adapters []quote.Adapter, tokens TokenResolver, gas GasSource, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	seen := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.Name()] {
			return nil, fmt.Errorf("duplicate aggregator name %q", a.Name())
		}
		seen[a.Name()] = true
	}
	if tokens == nil {
		return nil, errors.New("token resolver is required")
	}
	if gas == nil {
		return nil, errors.New("gas source is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Service{
		adapters: adapters,
		tokens:   tokens,
		gas:      gas,
		timeout:  timeout,
		logger:   logger.With("component", "Aggregator"),
	}, nil
}

// SetPublisher attaches a result feed; nil disables it
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Adapters returns the configured aggregator names in query order
func (s *Service) Adapters() []string {
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Name()
	}
	return names
}

// Aggregate answers one request. It never fails: errors are reported in the
// response with status "error".
func (s *Service) Aggregate(ctx context.Context, req Request) *Response {
	req.setDefaults()
	order, ok := scoring.ParseOrder(req.Order)
	if !ok {
		s.logger.Debug("unknown order, using default", "order", req.Order, "default", order)
	}

	id := uuid.NewString()
	logger := s.logger.With("requestId", id)
	logger.Info("received aggregation request",
		"tokenIn", req.TokenIn,
		"tokenOut", req.TokenOut,
		"tokenAmount", req.TokenAmount,
		"order", order,
		"disablePrice", req.DisablePrice)

	start := time.Now()
	resp := s.guard(ctx, req, order, logger)
	resp.RequestID = id

	metrics.Aggregations.WithLabelValues(resp.Status).Inc()
	metrics.AggregationLatency.Observe(time.Since(start).Seconds())

	if resp.Status == StatusError {
		logger.Error("aggregation failed", "error", *resp.Error, "duration", time.Since(start))
	} else {
		logger.Info("aggregation completed",
			"results", len(resp.Results),
			"gasPriceTokenIn", resp.GasPriceTokenIn,
			"duration", time.Since(start))
	}

	if s.publisher != nil {
		s.publisher.Publish(id, resp)
	}
	return resp
}

type outcome struct {
	resp *Response
	err  error
}

// guard races the pipeline against the timeout budget.
// When the budget wins the pipeline is abandoned and its context cancelled.
func (s *Service) guard(ctx context.Context, req Request, order scoring.Order, logger *slog.Logger) *Response {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		resp, err := s.pipeline(ctx, req, order, logger)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.resp
		}
		// the pipeline may notice the deadline before the guard does
		if ctx.Err() != nil {
			return s.abandoned(ctx, req, order)
		}
		return errorResponse(req, order, o.err)
	case <-ctx.Done():
		return s.abandoned(ctx, req, order)
	}
}

func (s *Service) abandoned(ctx context.Context, req Request, order scoring.Order) *Response {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.Timeouts.Inc()
		return errorResponse(req, order, fmt.Errorf("%w after %s", ErrTimeout, s.timeout))
	}
	return errorResponse(req, order, fmt.Errorf("request cancelled: %w", ctx.Err()))
}

type gasOutcome struct {
	raw *big.Int
	err error
}

// pipeline is fetch -> normalize -> score -> rank
func (s *Service) pipeline(ctx context.Context, req Request, order scoring.Order, logger *slog.Logger) (*Response, error) {
	amountIn, err := units.ParseAmount(req.TokenAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenAmount: %w", err)
	}

	tokenIn, err := s.tokens.Lookup(ctx, req.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := s.tokens.Lookup(ctx, req.TokenOut)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// gas reference runs next to the fan-out but is not part of it
	gasCh := make(chan gasOutcome, 1)
	if req.DisablePrice {
		gasCh <- gasOutcome{raw: new(big.Int)}
	} else {
		go func() {
			raw, err := s.gas.GasPriceX96(ctx, tokenIn)
			gasCh <- gasOutcome{raw: raw, err: err}
		}()
	}

	quotesCh := make(chan []*quote.RawQuote, 1)
	go func() {
		quotesCh <- Collect(ctx, s.adapters, &quote.Request{
			TokenIn:  tokenIn,
			TokenOut: tokenOut,
			AmountIn: amountIn.String(),
		}, logger)
	}()

	var ratio decimal.Decimal
	select {
	case g := <-gasCh:
		if g.err != nil {
			return nil, fmt.Errorf("failed to get gas price in %s: %w", tokenIn.Symbol, g.err)
		}
		ratio = units.GasRatio(g.raw)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var raws []*quote.RawQuote
	select {
	case raws = <-quotesCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rows := scoring.Rank(scoring.Score(raws, amountIn.String(), ratio), order)

	return &Response{
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		TokenAmount:      req.TokenAmount,
		TokenOutDecimals: tokenOut.Decimals,
		GasPriceTokenIn:  ratio.String(),
		Order:            string(order),
		Results:          rows,
		Status:           StatusSuccess,
	}, nil
}
