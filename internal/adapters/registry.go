package adapters

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

// New builds the adapter for one source
func New(cfg Config) (quote.Adapter, error) {
	switch cfg.Kind {
	case KindZeroEx:
		return NewZeroEx(cfg), nil
	case KindOneInch:
		return NewOneInch(cfg), nil
	case KindParaSwap:
		return NewParaSwap(cfg), nil
	case KindKyberSwap:
		return NewKyberSwap(cfg)
	case KindOdos:
		return NewOdos(cfg), nil
	case KindRFQ:
		return NewRFQ(cfg)
	case KindStatic:
		return NewStatic(cfg)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// Build creates every configured adapter, in order, wrapping each with the
// simulator when one is given. Names must be unique.
func Build(cfgs []Config, simulator quote.Simulator, logger *slog.Logger) ([]quote.Adapter, error) {
	seen := make(map[string]bool, len(cfgs))
	out := make([]quote.Adapter, 0, len(cfgs))

	for i, cfg := range cfgs {
		a, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, cfg.Name, err)
		}
		if seen[a.Name()] {
			return nil, fmt.Errorf("source %d: duplicate aggregator name %q", i, a.Name())
		}
		seen[a.Name()] = true

		logger.Info("Registered quote source",
			"aggregator", a.Name(),
			"kind", cfg.Kind,
			"simulated", simulator != nil)
		out = append(out, WithSimulation(a, simulator, logger))
	}
	return out, nil
}

// NewStatic builds a static adapter priced from the built-in token table.
// Params: spreadBps (default 30) and gas (default 150000).
func NewStatic(cfg Config) (*quote.StaticAdapter, error) {
	if cfg.Name == "" {
		cfg.Name = KindStatic
	}

	spread, err := uintParam(cfg.Params, "spreadBps", 30)
	if err != nil {
		return nil, err
	}
	if spread >= 10000 {
		return nil, fmt.Errorf("spreadBps %d must be below 10000", spread)
	}
	gas, err := uintParam(cfg.Params, "gas", 150000)
	if err != nil {
		return nil, err
	}

	a := quote.NewStaticAdapter(cfg.Name, uint32(spread), gas)
	tokens := token.StaticTable()
	for _, in := range tokens {
		for _, out := range tokens {
			if in.Symbol == out.Symbol || in.Price <= 0 || out.Price <= 0 {
				continue
			}
			// base units of out per base unit of in
			rate := decimal.NewFromFloat(in.Price).
				DivRound(decimal.NewFromFloat(out.Price), 36).
				Shift(out.Decimals - in.Decimals)
			a.SetRate(in.Address, out.Address, rate)
		}
	}
	return a, nil
}

func uintParam(params map[string]string, key string, def uint64) (uint64, error) {
	s, ok := params[key]
	if !ok || s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}
