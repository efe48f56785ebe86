package adapters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

const oneInchURL = "https://api.1inch.dev"

type oneInchProtocol struct {
	Name string `json:"name"`
}

type oneInchResponse struct {
	DstAmount string    `json:"dstAmount"`
	Gas       uintValue `json:"gas"`
	// protocols is route -> hop -> split
	Protocols [][][]oneInchProtocol `json:"protocols"`
	Tx        *struct {
		From  string    `json:"from"`
		To    string    `json:"to"`
		Data  string    `json:"data"`
		Value string    `json:"value"`
		Gas   uintValue `json:"gas"`
	} `json:"tx"`
}

// OneInch queries the 1inch swap API.
// With a taker configured it calls /swap to get a transaction, otherwise /quote.
type OneInch struct {
	cfg    Config
	client *resty.Client
}

// NewOneInch creates a 1inch adapter
func NewOneInch(cfg Config) *OneInch {
	cfg.Kind = KindOneInch
	cfg.setDefaults(oneInchURL)
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return &OneInch{cfg: cfg, client: cfg.client(headers)}
}

// Name returns the aggregator identity
func (o *OneInch) Name() string { return o.cfg.Name }

// Quote calls GET /swap/v6.0/{chainId}/quote or /swap
func (o *OneInch) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	var out oneInchResponse
	r := o.client.R().
		SetContext(ctx).
		SetPathParam("chainId", strconv.FormatUint(o.cfg.ChainID, 10)).
		SetQueryParams(map[string]string{
			"src":              req.TokenIn.Address.Hex(),
			"dst":              req.TokenOut.Address.Hex(),
			"amount":           req.AmountIn,
			"includeProtocols": "true",
			"includeGas":       "true",
		}).
		SetResult(&out)

	path := "/swap/v6.0/{chainId}/quote"
	if o.cfg.Taker != "" {
		path = "/swap/v6.0/{chainId}/swap"
		r.SetQueryParams(map[string]string{
			"from":            o.cfg.Taker,
			"slippage":        o.cfg.slippagePercent(),
			"disableEstimate": "true",
		})
	}
	r.SetQueryParams(o.cfg.Params)

	resp, err := r.Get(path)
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("1inch quote: %w", err)
	}

	amountOut, err := amountString("dstAmount", out.DstAmount)
	if err != nil {
		return nil, fmt.Errorf("1inch quote: %w", err)
	}

	gas := out.Gas
	if out.Tx != nil && out.Tx.Gas.Valid {
		gas = out.Tx.Gas
	}

	var names []string
	for _, route := range out.Protocols {
		for _, hop := range route {
			for _, p := range hop {
				names = append(names, p.Name)
			}
		}
	}

	q := quote.Succeeded(o.cfg.Name, amountOut, gas.gas(), uniqueSources(names))
	if out.Tx != nil && out.Tx.To != "" {
		q.Tx = &quote.Tx{From: out.Tx.From, To: out.Tx.To, Data: out.Tx.Data, Value: out.Tx.Value, Gas: gas.Value}
	}
	return withRaw(q, resp.Body()), nil
}
