package token

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnsupportedToken is returned when a symbol is unknown to both the catalog and the static table
var ErrUnsupportedToken = errors.New("unsupported token")

// Token is a tradable ERC-20 asset
type Token struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals int32          `json:"decimals"`
	Price    float64        `json:"price,omitempty"` // informational reference price, 0 if unknown
}

// NativeAliases maps native-asset symbols to their wrapped ERC-20 counterpart
var NativeAliases = map[string]string{
	"ETH": "WETH",
}

// NormalizeSymbol returns the lookup key for a symbol
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if wrapped, ok := NativeAliases[s]; ok {
		return wrapped
	}
	return s
}

// staticTokens is the built-in Ethereum mainnet table used when the catalog is unavailable
var staticTokens = []Token{
	{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Price: 3500},
	{Symbol: "WBTC", Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Decimals: 8, Price: 65000},
	{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Price: 1},
	{Symbol: "USDT", Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6, Price: 1},
	{Symbol: "DAI", Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18, Price: 1},
}

// StaticTable returns a copy of the built-in table keyed by symbol
func StaticTable() map[string]Token {
	m := make(map[string]Token, len(staticTokens))
	for _, t := range staticTokens {
		m[t.Symbol] = t
	}
	return m
}
