package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/cache"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
)

// DefaultTTL is how long a fetched token list is trusted
const DefaultTTL = time.Hour

// DefaultFailureTTL is how long the static table stands in after a failed fetch
const DefaultFailureTTL = time.Minute

// CatalogConfig configures the remote token list
type CatalogConfig struct {
	ListURL string        // token list URL (Uniswap token-list format); empty = static table only
	ChainID uint64        // only tokens of this chain are kept
	TTL     time.Duration // cache lifetime
	Timeout time.Duration // HTTP timeout
	// FailureTTL is how long the static table is served before a failed list is fetched again
	FailureTTL time.Duration
}

// tokenList is the Uniswap token-list document
type tokenList struct {
	Name   string `json:"name"`
	Tokens []struct {
		ChainID  uint64 `json:"chainId"`
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals int32  `json:"decimals"`
	} `json:"tokens"`
}

// Catalog resolves token symbols.
// Lookup order: in-process cache, shared store, remote list, static table.
type Catalog struct {
	cfg      CatalogConfig
	client   *resty.Client
	cache    *cache.Expiring[map[string]Token]
	store    Store
	fallback map[string]Token
	logger   *slog.Logger
}

// NewCatalog creates a token catalog. store may be nil.
func NewCatalog(cfg CatalogConfig, store Store, logger *slog.Logger) *Catalog {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = DefaultFailureTTL
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{
		cfg:      cfg,
		client:   httpclient.New(httpclient.Options{Timeout: cfg.Timeout, RetryCount: 1}),
		cache:    cache.NewExpiring[map[string]Token](cfg.TTL),
		store:    store,
		fallback: StaticTable(),
		logger:   logger.With("component", "TokenCatalog"),
	}
}

// Lookup resolves a symbol (case-insensitive).
// Catalog failures are logged and the static table is used instead.
func (c *Catalog) Lookup(ctx context.Context, symbol string) (Token, error) {
	key := NormalizeSymbol(symbol)
	if key == "" {
		return Token{}, fmt.Errorf("%w: empty symbol", ErrUnsupportedToken)
	}

	tokens, err := c.Tokens(ctx)
	if err != nil {
		c.logger.Warn("token catalog unavailable, using static table", "symbol", key, "error", err)
	} else if t, ok := tokens[key]; ok {
		return t, nil
	}

	if t, ok := c.fallback[key]; ok {
		return t, nil
	}
	return Token{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, symbol)
}

// Tokens returns the catalog keyed by upper-case symbol.
// A failed fetch caches the static table for FailureTTL so an unavailable
// list is not fetched again on every lookup.
func (c *Catalog) Tokens(ctx context.Context) (map[string]Token, error) {
	if c.cfg.ListURL == "" {
		return c.fallback, nil
	}
	tokens, err := c.cache.GetOrRefresh(ctx, c.load)
	if err == nil {
		return tokens, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.logger.Warn("token catalog unavailable, using static table",
		"url", c.cfg.ListURL,
		"retryIn", c.cfg.FailureTTL,
		"error", err)
	c.cache.Set(c.fallback, c.cfg.FailureTTL)
	return c.fallback, nil
}

// load reads the shared store first and falls back to the remote list
func (c *Catalog) load(ctx context.Context) (map[string]Token, time.Duration, error) {
	if c.store != nil {
		tokens, ttl, err := c.store.Load(ctx)
		switch {
		case err == nil:
			c.logger.Debug("token list loaded from store", "tokens", len(tokens), "ttl", ttl)
			return index(tokens), ttl, nil
		case !errors.Is(err, ErrStoreMiss):
			c.logger.Warn("token store load failed", "error", err)
		}
	}

	tokens, err := c.fetch(ctx)
	if err != nil {
		return nil, 0, err
	}

	if c.store != nil {
		if err := c.store.Save(ctx, tokens, c.cfg.TTL); err != nil {
			c.logger.Warn("token store save failed", "error", err)
		}
	}

	c.logger.Info("token list fetched", "url", c.cfg.ListURL, "tokens", len(tokens))
	return index(tokens), c.cfg.TTL, nil
}

// fetch downloads the token list and keeps the configured chain
func (c *Catalog) fetch(ctx context.Context) ([]Token, error) {
	var list tokenList
	resp, err := c.client.R().SetContext(ctx).SetResult(&list).Get(c.cfg.ListURL)
	if err := httpclient.Check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch token list: %w", err)
	}

	tokens := make([]Token, 0, len(list.Tokens))
	for _, t := range list.Tokens {
		if t.ChainID != c.cfg.ChainID || !common.IsHexAddress(t.Address) || t.Symbol == "" {
			continue
		}
		tokens = append(tokens, Token{
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		})
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token list %s has no tokens for chain %d", c.cfg.ListURL, c.cfg.ChainID)
	}
	return tokens, nil
}

// index keys tokens by normalized symbol; the first entry for a symbol wins.
// Reference prices come from the static table.
func index(tokens []Token) map[string]Token {
	static := StaticTable()
	m := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		key := NormalizeSymbol(t.Symbol)
		if _, dup := m[key]; dup {
			continue
		}
		if s, ok := static[key]; ok && t.Price == 0 {
			t.Price = s.Price
		}
		m[key] = t
	}
	return m
}
