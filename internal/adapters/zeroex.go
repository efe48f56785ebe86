package adapters

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

const zeroExURL = "https://api.0x.org"

type zeroExQuote struct {
	BuyAmount    string    `json:"buyAmount"`
	EstimatedGas uintValue `json:"estimatedGas"`
	Gas          uintValue `json:"gas"`
	To           string    `json:"to"`
	Data         string    `json:"data"`
	Value        string    `json:"value"`
	Sources      []struct {
		Name       string `json:"name"`
		Proportion string `json:"proportion"`
	} `json:"sources"`
}

// ZeroEx queries the 0x swap API
type ZeroEx struct {
	cfg    Config
	client *resty.Client
}

// NewZeroEx creates a 0x adapter
func NewZeroEx(cfg Config) *ZeroEx {
	cfg.Kind = KindZeroEx
	cfg.setDefaults(zeroExURL)
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["0x-api-key"] = cfg.APIKey
	}
	return &ZeroEx{cfg: cfg, client: cfg.client(headers)}
}

// Name returns the aggregator identity
func (z *ZeroEx) Name() string { return z.cfg.Name }

// Quote calls GET /swap/v1/quote
func (z *ZeroEx) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	var out zeroExQuote
	r := z.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sellToken":  req.TokenIn.Address.Hex(),
			"buyToken":   req.TokenOut.Address.Hex(),
			"sellAmount": req.AmountIn,
		}).
		SetQueryParams(z.cfg.Params).
		SetResult(&out)
	if z.cfg.Taker != "" {
		r.SetQueryParam("takerAddress", z.cfg.Taker)
		r.SetQueryParam("slippagePercentage", decimal.New(int64(z.cfg.SlippageBps), -4).String())
	}

	resp, err := r.Get("/swap/v1/quote")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("0x quote: %w", err)
	}

	amountOut, err := amountString("buyAmount", out.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("0x quote: %w", err)
	}

	gas := out.EstimatedGas
	if !gas.Valid {
		gas = out.Gas
	}

	var names []string
	for _, s := range out.Sources {
		if p, err := decimal.NewFromString(s.Proportion); err == nil && p.IsPositive() {
			names = append(names, s.Name)
		}
	}

	q := quote.Succeeded(z.cfg.Name, amountOut, gas.gas(), uniqueSources(names))
	if out.To != "" && out.Data != "" {
		q.Tx = &quote.Tx{From: z.cfg.Taker, To: out.To, Data: out.Data, Value: out.Value, Gas: gas.Value}
	}
	return withRaw(q, resp.Body()), nil
}
