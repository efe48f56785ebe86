package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

const kyberSwapURL = "https://aggregator-api.kyberswap.com"

// kyberChains maps chain ids to KyberSwap path names
var kyberChains = map[uint64]string{
	1:     "ethereum",
	10:    "optimism",
	56:    "bsc",
	137:   "polygon",
	8453:  "base",
	42161: "arbitrum",
}

type kyberEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type kyberRouteSummary struct {
	AmountOut string    `json:"amountOut"`
	Gas       uintValue `json:"gas"`
	Route     [][]struct {
		Pool     string `json:"pool"`
		Exchange string `json:"exchange"`
	} `json:"route"`
}

type kyberRoutes struct {
	RouteSummary  json.RawMessage `json:"routeSummary"`
	RouterAddress string          `json:"routerAddress"`
}

type kyberBuild struct {
	AmountOut        string    `json:"amountOut"`
	Gas              uintValue `json:"gas"`
	Data             string    `json:"data"`
	RouterAddress    string    `json:"routerAddress"`
	TransactionValue string    `json:"transactionValue"`
}

// KyberSwap queries the KyberSwap aggregator API
type KyberSwap struct {
	cfg    Config
	chain  string
	client *resty.Client
}

// NewKyberSwap creates a KyberSwap adapter. Params["chain"] overrides the chain path name.
func NewKyberSwap(cfg Config) (*KyberSwap, error) {
	cfg.Kind = KindKyberSwap
	cfg.setDefaults(kyberSwapURL)

	chain := cfg.Params["chain"]
	if chain == "" {
		chain = kyberChains[cfg.ChainID]
	}
	if chain == "" {
		return nil, fmt.Errorf("kyberswap: unsupported chain %d", cfg.ChainID)
	}

	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["x-client-id"] = cfg.APIKey
	}
	return &KyberSwap{cfg: cfg, chain: chain, client: cfg.client(headers)}, nil
}

// Name returns the aggregator identity
func (k *KyberSwap) Name() string { return k.cfg.Name }

// Quote calls GET /{chain}/api/v1/routes, then POST /{chain}/api/v1/route/build
func (k *KyberSwap) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	params := map[string]string{
		"tokenIn":  req.TokenIn.Address.Hex(),
		"tokenOut": req.TokenOut.Address.Hex(),
		"amountIn": req.AmountIn,
	}
	for key, v := range k.cfg.Params {
		if key != "chain" {
			params[key] = v
		}
	}

	var env kyberEnvelope
	resp, err := k.client.R().
		SetContext(ctx).
		SetPathParam("chain", k.chain).
		SetQueryParams(params).
		SetResult(&env).
		Get("/{chain}/api/v1/routes")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("kyberswap routes: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("kyberswap routes: code %d: %s", env.Code, env.Message)
	}

	var routes kyberRoutes
	if err := json.Unmarshal(env.Data, &routes); err != nil {
		return nil, fmt.Errorf("kyberswap routes: decode data: %w", err)
	}
	var summary kyberRouteSummary
	if err := json.Unmarshal(routes.RouteSummary, &summary); err != nil {
		return nil, fmt.Errorf("kyberswap routes: decode routeSummary: %w", err)
	}

	amountOut, err := amountString("amountOut", summary.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("kyberswap routes: %w", err)
	}

	var names []string
	for _, path := range summary.Route {
		for _, hop := range path {
			names = append(names, hop.Exchange)
		}
	}

	q := withRaw(quote.Succeeded(k.cfg.Name, amountOut, summary.Gas.gas(), uniqueSources(names)), resp.Body())
	if k.cfg.Taker == "" {
		return q, nil
	}

	var buildEnv kyberEnvelope
	resp, err = k.client.R().
		SetContext(ctx).
		SetPathParam("chain", k.chain).
		SetBody(map[string]any{
			"routeSummary":      routes.RouteSummary,
			"sender":            k.cfg.Taker,
			"recipient":         k.cfg.Taker,
			"slippageTolerance": k.cfg.SlippageBps,
		}).
		SetResult(&buildEnv).
		Post("/{chain}/api/v1/route/build")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("kyberswap build: %w", err)
	}
	if buildEnv.Code != 0 {
		return nil, fmt.Errorf("kyberswap build: code %d: %s", buildEnv.Code, buildEnv.Message)
	}

	var build kyberBuild
	if err := json.Unmarshal(buildEnv.Data, &build); err != nil {
		return nil, fmt.Errorf("kyberswap build: decode data: %w", err)
	}

	to := build.RouterAddress
	if to == "" {
		to = routes.RouterAddress
	}
	gas := summary.Gas.Value
	if build.Gas.Valid {
		gas = build.Gas.Value
	}
	q.Tx = &quote.Tx{From: k.cfg.Taker, To: to, Data: build.Data, Value: build.TransactionValue, Gas: gas}
	return q, nil
}

// ChainName returns the path segment used for the configured chain
func (k *KyberSwap) ChainName() string {
	return k.chain
}
