package quote

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

var (
	weth = token.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18}
	wbtc = token.Token{Symbol: "WBTC", Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Decimals: 8}
)

func TestScore_MarshalJSON(t *testing.T) {
	tests := []struct {
		score Score
		want  string
	}{
		{Unranked, "null"},
		{Score(math.NaN()), "null"},
		{Score(0), "0"},
		{Score(0.123456), "0.123456"},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.score)
		if err != nil {
			t.Fatalf("Marshal(%v) failed: %v", tt.score, err)
		}
		if string(got) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRow_JSONShape(t *testing.T) {
	row := Row{RawQuote: *Failed("odos"), Score: Unranked}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"amountOut", "gasUsed", "sources", "score"} {
		v, ok := m[key]
		if !ok || v != nil {
			t.Errorf("%s = %v (present=%v), want null", key, v, ok)
		}
	}
	if m["aggregator"] != "odos" || m["failed"] != true {
		t.Errorf("unexpected row json: %s", data)
	}
	if _, ok := m["simulation"]; ok {
		t.Errorf("simulation should be omitted: %s", data)
	}
}

func TestSucceeded_UnknownGas(t *testing.T) {
	q := Succeeded("odos", "5", nil, nil)
	if q.GasUsed != nil {
		t.Errorf("GasUsed = %v, want nil", *q.GasUsed)
	}
	if q.AmountOut == nil || *q.AmountOut != "5" {
		t.Errorf("AmountOut = %v, want 5", q.AmountOut)
	}
}

func TestSimulationResult_TotalGas(t *testing.T) {
	s := &SimulationResult{ApproveGas: 46000, SwapGas: 120000}
	if got := s.TotalGas(); got != 166000 {
		t.Errorf("TotalGas() = %d, want 166000", got)
	}
}

func TestStaticAdapter_Quote(t *testing.T) {
	a := NewStaticAdapter("static", 50, 150000)
	// 1 WETH (1e18) = 0.05 WBTC (5e6) -> 5e-12 base units out per base unit in
	a.SetRate(weth.Address, wbtc.Address, decimal.RequireFromString("0.000000000005"))
	a.Sources = []string{"Uniswap_V3"}

	q, err := a.Quote(context.Background(), &Request{TokenIn: weth, TokenOut: wbtc, AmountIn: "1000000000000000000"})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	// 5e6 * 0.995
	if *q.AmountOut != "4975000" {
		t.Errorf("AmountOut = %s, want 4975000", *q.AmountOut)
	}
	if *q.GasUsed != 150000 {
		t.Errorf("GasUsed = %d, want 150000", *q.GasUsed)
	}
	if q.Aggregator != "static" || q.Failed {
		t.Errorf("unexpected quote %+v", q)
	}
}

func TestStaticAdapter_ReverseRate(t *testing.T) {
	a := NewStaticAdapter("static", 0, 100000)
	a.SetRate(weth.Address, wbtc.Address, decimal.RequireFromString("0.000000000005"))

	// 0.05 WBTC back to WETH
	q, err := a.Quote(context.Background(), &Request{TokenIn: wbtc, TokenOut: weth, AmountIn: "5000000"})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if *q.AmountOut != "1000000000000000000" {
		t.Errorf("AmountOut = %s, want 1000000000000000000", *q.AmountOut)
	}
}

func TestStaticAdapter_Errors(t *testing.T) {
	a := NewStaticAdapter("static", 0, 0)
	if _, err := a.Quote(context.Background(), &Request{TokenIn: weth, TokenOut: wbtc, AmountIn: "1"}); err == nil {
		t.Error("Quote should fail when rate not found")
	}

	a.Err = errors.New("boom")
	if _, err := a.Quote(context.Background(), &Request{TokenIn: weth, TokenOut: wbtc, AmountIn: "1"}); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Quote error = %v, want boom", err)
	}
}

func TestStaticAdapter_DelayHonoursContext(t *testing.T) {
	a := NewStaticAdapter("slow", 0, 0)
	a.Delay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Quote(ctx, &Request{TokenIn: weth, TokenOut: wbtc, AmountIn: "1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Quote error = %v, want deadline exceeded", err)
	}
}
