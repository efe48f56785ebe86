package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/units"
)

// StaticAdapter answers from configured exchange rates.
// Used for local runs and tests; production deployments configure real vendors.
type StaticAdapter struct {
	name string

	// SpreadBps is deducted from the output (50 = 0.5%)
	SpreadBps uint32
	// Gas is reported as gasUsed
	Gas uint64
	// Sources is reported as the route venues
	Sources []string
	// Delay is waited before answering (honours ctx)
	Delay time.Duration
	// Err, when set, is returned instead of a quote
	Err error
	// Tx, when set, is attached as the prepared transaction
	Tx *Tx

	// rates: key "tokenIn:tokenOut" (lowercase addresses), value: base units out per base unit in
	rates map[string]decimal.Decimal
}

// NewStaticAdapter creates a static adapter
func NewStaticAdapter(name string, spreadBps uint32, gas uint64) *StaticAdapter {
	return &StaticAdapter{
		name:      name,
		SpreadBps: spreadBps,
		Gas:       gas,
		rates:     make(map[string]decimal.Decimal),
	}
}

// Name returns the aggregator identity
func (s *StaticAdapter) Name() string {
	return s.name
}

// SetRate sets the base-unit exchange rate tokenIn -> tokenOut
func (s *StaticAdapter) SetRate(tokenIn, tokenOut common.Address, rate decimal.Decimal) {
	s.rates[rateKey(tokenIn, tokenOut)] = rate
}

func rateKey(tokenIn, tokenOut common.Address) string {
	return strings.ToLower(tokenIn.Hex()) + ":" + strings.ToLower(tokenOut.Hex())
}

// Quote computes amountOut = amountIn * rate * (1 - spread)
func (s *StaticAdapter) Quote(ctx context.Context, req *Request) (*RawQuote, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	rate, ok := s.rate(req.TokenIn.Address, req.TokenOut.Address)
	if !ok {
		return nil, fmt.Errorf("rate not found for %s -> %s", req.TokenIn.Symbol, req.TokenOut.Symbol)
	}

	amountIn, err := units.ParseAmount(req.AmountIn)
	if err != nil {
		return nil, err
	}

	spread := decimal.NewFromInt(int64(10000 - s.SpreadBps)).Div(decimal.NewFromInt(10000))
	amountOut := decimal.NewFromBigInt(amountIn, 0).Mul(rate).Mul(spread).Truncate(0)
	if !amountOut.IsPositive() {
		return nil, fmt.Errorf("calculated amount out is zero")
	}

	q := Succeeded(s.name, amountOut.String(), Gas(s.Gas), s.Sources)
	if s.Tx != nil {
		tx := *s.Tx
		q.Tx = &tx
	}
	return q, nil
}

// rate supports reverse lookup through the reciprocal
func (s *StaticAdapter) rate(tokenIn, tokenOut common.Address) (decimal.Decimal, bool) {
	if r, ok := s.rates[rateKey(tokenIn, tokenOut)]; ok {
		return r, true
	}
	if r, ok := s.rates[rateKey(tokenOut, tokenIn)]; ok && !r.IsZero() {
		return decimal.NewFromInt(1).DivRound(r, 36), true
	}
	return decimal.Zero, false
}
