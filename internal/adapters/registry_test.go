package adapters

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
)

func TestBuild(t *testing.T) {
	adapters, err := Build([]Config{
		{Kind: KindZeroEx},
		{Kind: KindOdos, Name: "odos-split-2", Params: map[string]string{"maxSplit": "2"}},
		{Kind: KindOdos, Name: "odos-split-4", Params: map[string]string{"maxSplit": "4"}},
		{Kind: KindStatic, Name: "local"},
	}, nil, testLogger())
	require.NoError(t, err)

	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	assert.Equal(t, []string{"zeroex", "odos-split-2", "odos-split-4", "local"}, names)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([]Config{{Kind: KindOdos}, {Kind: KindOdos}}, nil, testLogger())
	assert.ErrorContains(t, err, "duplicate")

	_, err = Build([]Config{{Kind: "uniswapx"}}, nil, testLogger())
	assert.ErrorContains(t, err, "unknown source kind")

	_, err = Build([]Config{{Kind: KindRFQ, Name: "maker"}}, nil, testLogger())
	assert.ErrorContains(t, err, "maker")
}

func TestBuild_WrapsWithSimulator(t *testing.T) {
	sim := &fakeSimulator{result: &quote.SimulationResult{Success: true, AmountOut: "1"}}
	adapters, err := Build([]Config{{Kind: KindStatic}}, sim, testLogger())
	require.NoError(t, err)
	require.Len(t, adapters, 1)

	_, ok := adapters[0].(*simulated)
	assert.True(t, ok)
	assert.Equal(t, "static", adapters[0].Name())
}

func TestNewStatic_PricesFromTokenTable(t *testing.T) {
	a, err := NewStatic(Config{Kind: KindStatic})
	require.NoError(t, err)

	// 1 WETH at 3500 USDC, minus 30 bps
	q, err := a.Quote(context.Background(), wethToUSDC())
	require.NoError(t, err)
	assert.Equal(t, "3489500000", *q.AmountOut)
	assert.Equal(t, uint64(150000), *q.GasUsed)
}

func TestNewStatic_Params(t *testing.T) {
	a, err := NewStatic(Config{Params: map[string]string{"spreadBps": "0", "gas": "90000"}})
	require.NoError(t, err)
	assert.Equal(t, "static", a.Name())

	q, err := a.Quote(context.Background(), wethToUSDC())
	require.NoError(t, err)
	assert.Equal(t, "3500000000", *q.AmountOut)
	assert.Equal(t, uint64(90000), *q.GasUsed)

	_, err = NewStatic(Config{Params: map[string]string{"spreadBps": "10000"}})
	assert.Error(t, err)
	_, err = NewStatic(Config{Params: map[string]string{"gas": "lots"}})
	assert.Error(t, err)
}

func TestUintValue(t *testing.T) {
	tests := []struct {
		in    string
		want  uint64
		valid bool
	}{
		{`123`, 123, true},
		{`"456"`, 456, true},
		{`187654.9`, 187654, true},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"9223372036854775808"`, 9223372036854775808, true},
		{`"18446744073709551615"`, math.MaxUint64, true},
	}
	for _, tt := range tests {
		var v uintValue
		require.NoError(t, json.Unmarshal([]byte(tt.in), &v), tt.in)
		assert.Equal(t, tt.want, v.Value, tt.in)
		assert.Equal(t, tt.valid, v.Valid, tt.in)
		if tt.valid {
			require.NotNil(t, v.gas(), tt.in)
			assert.Equal(t, tt.want, *v.gas(), tt.in)
		} else {
			assert.Nil(t, v.gas(), tt.in)
		}
	}

	var v uintValue
	assert.Error(t, json.Unmarshal([]byte(`"-1"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`"18446744073709551616"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`1e30`), &v))
}

func TestAmountString(t *testing.T) {
	got, err := amountString("x", "1e21")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", got)

	got, err = amountString("x", " 42 ")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	for _, bad := range []string{"", "1.5", "-3", "abc"} {
		_, err := amountString("x", bad)
		assert.Error(t, err, bad)
	}
}
