package adapters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

const odosURL = "https://api.odos.xyz"

type odosToken struct {
	TokenAddress string  `json:"tokenAddress"`
	Amount       string  `json:"amount,omitempty"`
	Proportion   float64 `json:"proportion,omitempty"`
}

type odosQuote struct {
	PathID      string    `json:"pathId"`
	OutAmounts  []string  `json:"outAmounts"`
	GasEstimate uintValue `json:"gasEstimate"`
}

type odosAssemble struct {
	Transaction struct {
		From  string    `json:"from"`
		To    string    `json:"to"`
		Data  string    `json:"data"`
		Value string    `json:"value"`
		Gas   uintValue `json:"gas"`
	} `json:"transaction"`
}

// Odos queries the Odos smart order router. Odos does not list the venues it routes through.
type Odos struct {
	cfg    Config
	client *resty.Client
}

// NewOdos creates an Odos adapter
func NewOdos(cfg Config) *Odos {
	cfg.Kind = KindOdos
	cfg.setDefaults(odosURL)
	return &Odos{cfg: cfg, client: cfg.client(nil)}
}

// Name returns the aggregator identity
func (o *Odos) Name() string { return o.cfg.Name }

// Quote calls POST /sor/quote/v2, then POST /sor/assemble
func (o *Odos) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	body := map[string]any{
		"chainId":              o.cfg.ChainID,
		"inputTokens":          []odosToken{{TokenAddress: req.TokenIn.Address.Hex(), Amount: req.AmountIn}},
		"outputTokens":         []odosToken{{TokenAddress: req.TokenOut.Address.Hex(), Proportion: 1}},
		"slippageLimitPercent": decimal.New(int64(o.cfg.SlippageBps), -2).InexactFloat64(),
		"compact":              true,
	}
	if o.cfg.Taker != "" {
		body["userAddr"] = o.cfg.Taker
	}
	for k, v := range o.cfg.Params {
		body[k] = paramValue(v)
	}

	var out odosQuote
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/sor/quote/v2")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("odos quote: %w", err)
	}
	if len(out.OutAmounts) == 0 {
		return nil, fmt.Errorf("odos quote: no outAmounts")
	}

	amountOut, err := amountString("outAmounts[0]", out.OutAmounts[0])
	if err != nil {
		return nil, fmt.Errorf("odos quote: %w", err)
	}

	q := withRaw(quote.Succeeded(o.cfg.Name, amountOut, out.GasEstimate.gas(), nil), resp.Body())
	if o.cfg.Taker == "" || out.PathID == "" {
		return q, nil
	}

	var asm odosAssemble
	resp, err = o.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"userAddr": o.cfg.Taker,
			"pathId":   out.PathID,
			"simulate": false,
		}).
		SetResult(&asm).
		Post("/sor/assemble")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("odos assemble: %w", err)
	}

	tx := asm.Transaction
	gas := out.GasEstimate.Value
	if tx.Gas.Valid {
		gas = tx.Gas.Value
	}
	q.Tx = &quote.Tx{From: tx.From, To: tx.To, Data: tx.Data, Value: tx.Value, Gas: gas}
	return q, nil
}

// paramValue keeps numbers and booleans typed in JSON bodies
func paramValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
