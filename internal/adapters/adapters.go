// Package adapters translates each upstream aggregator API into quote.RawQuote.
//
// Every adapter is a thin resty client: it shapes the vendor request, checks the
// HTTP status and maps the vendor's response fields onto the common quote shape.
// Vendor-specific fields only leave the adapter through RawQuote.Raw and RawQuote.Tx.
package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/httpclient"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

// Kinds of upstream sources
const (
	KindZeroEx    = "zeroex"
	KindOneInch   = "oneinch"
	KindParaSwap  = "paraswap"
	KindKyberSwap = "kyberswap"
	KindOdos      = "odos"
	KindRFQ       = "rfq"
	KindStatic    = "static"
)

// DefaultTimeout is the per-request timeout of an adapter
const DefaultTimeout = 15 * time.Second

// DefaultSlippageBps is used when building transactions (100 = 1%)
const DefaultSlippageBps = 100

// Config configures one upstream source
type Config struct {
	Name        string            // aggregator identity, unique
	Kind        string            // one of the Kind* constants
	BaseURL     string            // API root; empty selects the vendor default
	APIKey      string            // vendor API key, if any
	ChainID     uint64            // EVM chain id
	Taker       string            // address that would execute the swap; enables tx building
	SlippageBps uint32            // tolerance passed to tx builders
	Timeout     time.Duration     // per-request timeout
	Params      map[string]string // extra vendor parameters, passed through as-is
	// ClientID and ClientSecret authenticate RFQ makers
	ClientID     string
	ClientSecret string
}

func (c *Config) setDefaults(defaultURL string) {
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = DefaultSlippageBps
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Name == "" {
		c.Name = c.Kind
	}
}

func (c *Config) client(headers map[string]string) *resty.Client {
	return httpclient.New(httpclient.Options{
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
		Headers: headers,
	})
}

// slippagePercent renders bps as a percentage string ("100" -> "1")
func (c *Config) slippagePercent() string {
	return decimal.New(int64(c.SlippageBps), -2).String()
}

// uintValue decodes a gas figure sent either as a JSON number or as a string
type uintValue struct {
	Value uint64
	Valid bool
}

func (u *uintValue) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*u = uintValue{}
		return nil
	}
	// some vendors send floats ("gasEstimate": 187654.0)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid gas value %s: %w", data, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("negative gas value %s", data)
	}
	n := d.Truncate(0).BigInt()
	if !n.IsUint64() {
		return fmt.Errorf("gas value %s out of range", data)
	}
	*u = uintValue{Value: n.Uint64(), Valid: true}
	return nil
}

// gas returns nil when the vendor sent no figure
func (u uintValue) gas() *uint64 {
	if !u.Valid {
		return nil
	}
	return quote.Gas(u.Value)
}

// amountString checks that an upstream amount is a base-10 integer
func amountString(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return s, nil
	}
	if d, err := decimal.NewFromString(s); err == nil && d.IsInteger() && !d.IsNegative() {
		return d.String(), nil
	}
	return "", fmt.Errorf("invalid %s %q", field, s)
}

// uniqueSources keeps the first occurrence of every non-empty name
func uniqueSources(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// withRaw attaches the upstream body when it is valid JSON
func withRaw(q *quote.RawQuote, body []byte) *quote.RawQuote {
	if json.Valid(body) {
		q.Raw = append(json.RawMessage(nil), body...)
	}
	return q
}
