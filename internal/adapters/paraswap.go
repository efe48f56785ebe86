package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

const paraSwapURL = "https://apiv5.paraswap.io"

type paraSwapPrices struct {
	PriceRoute json.RawMessage `json:"priceRoute"`
}

type paraSwapRoute struct {
	DestAmount string    `json:"destAmount"`
	GasCost    uintValue `json:"gasCost"`
	BestRoute  []struct {
		Swaps []struct {
			SwapExchanges []struct {
				Exchange string `json:"exchange"`
			} `json:"swapExchanges"`
		} `json:"swaps"`
	} `json:"bestRoute"`
}

type paraSwapTx struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Data  string    `json:"data"`
	Value string    `json:"value"`
	Gas   uintValue `json:"gas"`
}

// ParaSwap queries the ParaSwap prices API and, with a taker, builds the transaction
type ParaSwap struct {
	cfg    Config
	client *resty.Client
}

// NewParaSwap creates a ParaSwap adapter
func NewParaSwap(cfg Config) *ParaSwap {
	cfg.Kind = KindParaSwap
	cfg.setDefaults(paraSwapURL)
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}
	return &ParaSwap{cfg: cfg, client: cfg.client(headers)}
}

// Name returns the aggregator identity
func (p *ParaSwap) Name() string { return p.cfg.Name }

// Quote calls GET /prices, then POST /transactions/{network}
func (p *ParaSwap) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	network := strconv.FormatUint(p.cfg.ChainID, 10)

	var prices paraSwapPrices
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"srcToken":     req.TokenIn.Address.Hex(),
			"destToken":    req.TokenOut.Address.Hex(),
			"srcDecimals":  strconv.Itoa(int(req.TokenIn.Decimals)),
			"destDecimals": strconv.Itoa(int(req.TokenOut.Decimals)),
			"amount":       req.AmountIn,
			"side":         "SELL",
			"network":      network,
		}).
		SetQueryParams(p.cfg.Params).
		SetResult(&prices).
		Get("/prices")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("paraswap prices: %w", err)
	}
	if len(prices.PriceRoute) == 0 {
		return nil, fmt.Errorf("paraswap prices: no priceRoute")
	}

	var route paraSwapRoute
	if err := json.Unmarshal(prices.PriceRoute, &route); err != nil {
		return nil, fmt.Errorf("paraswap prices: decode priceRoute: %w", err)
	}

	amountOut, err := amountString("destAmount", route.DestAmount)
	if err != nil {
		return nil, fmt.Errorf("paraswap prices: %w", err)
	}

	var names []string
	for _, r := range route.BestRoute {
		for _, s := range r.Swaps {
			for _, e := range s.SwapExchanges {
				names = append(names, e.Exchange)
			}
		}
	}

	q := withRaw(quote.Succeeded(p.cfg.Name, amountOut, route.GasCost.gas(), uniqueSources(names)), resp.Body())
	if p.cfg.Taker == "" {
		return q, nil
	}

	var tx paraSwapTx
	resp, err = p.client.R().
		SetContext(ctx).
		SetPathParam("network", network).
		SetQueryParam("ignoreChecks", "true").
		SetBody(map[string]any{
			"srcToken":    req.TokenIn.Address.Hex(),
			"destToken":   req.TokenOut.Address.Hex(),
			"srcAmount":   req.AmountIn,
			"slippage":    p.cfg.SlippageBps,
			"priceRoute":  prices.PriceRoute,
			"userAddress": p.cfg.Taker,
		}).
		SetResult(&tx).
		Post("/transactions/{network}")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("paraswap transaction: %w", err)
	}

	gas := route.GasCost.Value
	if tx.Gas.Valid {
		gas = tx.Gas.Value
	}
	q.Tx = &quote.Tx{From: tx.From, To: tx.To, Data: tx.Data, Value: tx.Value, Gas: gas}
	return q, nil
}
