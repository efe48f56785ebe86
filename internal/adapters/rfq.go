package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/cache"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

// tokenSkew is subtracted from the advertised token lifetime
const tokenSkew = 30 * time.Second

// defaultTokenTTL applies when the maker does not send expiresIn
const defaultTokenTTL = 5 * time.Minute

type rfqToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"` // seconds
}

type rfqQuote struct {
	AmountOut string    `json:"amountOut"`
	Gas       uintValue `json:"gas"`
	Sources   []string  `json:"sources"`
	Tx        *struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"tx"`
}

// RFQ queries an authenticated request-for-quote maker.
// The bearer token is cached until shortly before it expires.
type RFQ struct {
	cfg    Config
	client *resty.Client
	token  *cache.Expiring[string]
}

// NewRFQ creates an RFQ adapter
func NewRFQ(cfg Config) (*RFQ, error) {
	cfg.Kind = KindRFQ
	cfg.setDefaults("")
	if cfg.BaseURL == "" {
		return nil, errors.New("rfq: baseUrl is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("rfq: clientId and clientSecret are required")
	}
	return &RFQ{
		cfg:    cfg,
		client: cfg.client(nil),
		token:  cache.NewExpiring[string](defaultTokenTTL),
	}, nil
}

// Name returns the aggregator identity
func (r *RFQ) Name() string { return r.cfg.Name }

// Quote calls GET /quote with a cached bearer token
func (r *RFQ) Quote(ctx context.Context, req *quote.Request) (*quote.RawQuote, error) {
	token, err := r.token.GetOrRefresh(ctx, r.authenticate)
	if err != nil {
		return nil, fmt.Errorf("rfq auth: %w", err)
	}

	params := map[string]string{
		"tokenIn":  req.TokenIn.Address.Hex(),
		"tokenOut": req.TokenOut.Address.Hex(),
		"amountIn": req.AmountIn,
		"chainId":  strconv.FormatUint(r.cfg.ChainID, 10),
	}
	if r.cfg.Taker != "" {
		params["taker"] = r.cfg.Taker
	}

	var out rfqQuote
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		SetQueryParams(r.cfg.Params).
		SetResult(&out).
		Get("/quote")
	if err := httpclient.Check(resp, err); err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized {
			// token revoked early; the next request authenticates again
			r.token.Invalidate()
		}
		return nil, fmt.Errorf("rfq quote: %w", err)
	}

	amountOut, err := amountString("amountOut", out.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("rfq quote: %w", err)
	}

	q := quote.Succeeded(r.cfg.Name, amountOut, out.Gas.gas(), uniqueSources(out.Sources))
	if out.Tx != nil && out.Tx.To != "" {
		q.Tx = &quote.Tx{From: r.cfg.Taker, To: out.Tx.To, Data: out.Tx.Data, Value: out.Tx.Value, Gas: out.Gas.Value}
	}
	return withRaw(q, resp.Body()), nil
}

// authenticate exchanges client credentials for a bearer token
func (r *RFQ) authenticate(ctx context.Context) (string, time.Duration, error) {
	var out rfqToken
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"clientId":     r.cfg.ClientID,
			"clientSecret": r.cfg.ClientSecret,
		}).
		SetResult(&out).
		Post("/auth/token")
	if err := httpclient.Check(resp, err); err != nil {
		return "", 0, err
	}
	if out.AccessToken == "" {
		return "", 0, errors.New("empty access token")
	}

	ttl := defaultTokenTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn)*time.Second - tokenSkew
		if ttl <= 0 {
			ttl = time.Duration(out.ExpiresIn) * time.Second / 2
		}
	}
	return out.AccessToken, ttl, nil
}
