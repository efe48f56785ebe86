// Package simulation calls the external fork-simulation service.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

// Config configures the simulation service client
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type simulateRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	Gas      uint64 `json:"gas,omitempty"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`
}

// Client posts prepared transactions to {url}/simulate
type Client struct {
	client *resty.Client
	logger *slog.Logger
}

// New creates a simulation client. It returns nil when no URL is configured.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}
	return &Client{
		client: httpclient.New(httpclient.Options{
			BaseURL: cfg.URL,
			Timeout: cfg.Timeout,
			Headers: headers,
		}),
		logger: logger.With("component", "Simulator"),
	}
}

// Simulate executes one prepared transaction
func (c *Client) Simulate(ctx context.Context, req *quote.SimulationRequest) (*quote.SimulationResult, error) {
	if req.Tx.To == "" || req.Tx.Data == "" {
		return nil, errors.New("transaction has no target or calldata")
	}

	start := time.Now()
	var out quote.SimulationResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(simulateRequest{
			From:     req.Tx.From,
			To:       req.Tx.To,
			Data:     req.Tx.Data,
			Value:    req.Tx.Value,
			Gas:      req.Tx.Gas,
			TokenIn:  req.TokenIn.Address.Hex(),
			TokenOut: req.TokenOut.Address.Hex(),
			AmountIn: req.AmountIn,
		}).
		SetResult(&out).
		Post("/simulate")
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	if out.DurationMs == 0 {
		out.DurationMs = time.Since(start).Milliseconds()
	}
	if out.TokenOut == "" {
		out.TokenOut = req.TokenOut.Address.Hex()
	}

	c.logger.Debug("simulation finished",
		"to", req.Tx.To,
		"success", out.Success,
		"amountOut", out.AmountOut,
		"gas", out.TotalGas(),
		"blockNumber", out.BlockNumber)
	return &out, nil
}
