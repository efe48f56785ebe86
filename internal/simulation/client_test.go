package simulation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request() *quote.SimulationRequest {
	tokens := token.StaticTable()
	return &quote.SimulationRequest{
		Tx:       quote.Tx{From: "0x1111111111111111111111111111111111111111", To: "0xrouter", Data: "0xabcdef", Value: "0"},
		TokenIn:  tokens["WETH"],
		TokenOut: tokens["WBTC"],
		AmountIn: "1000000000000000000",
	}
}

func TestSimulate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulate", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0xrouter", body["to"])
		assert.Equal(t, "0xabcdef", body["data"])
		assert.Equal(t, "1000000000000000000", body["amountIn"])
		assert.Equal(t, token.StaticTable()["WBTC"].Address.Hex(), body["tokenOut"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"balanceBefore": "0",
			"balanceAfter": "5012345",
			"amountOut": "5012345",
			"approveGas": 46000,
			"swapGas": 131000,
			"success": true,
			"blockNumber": 21000000
		}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "k"}, testLogger())
	res, err := c.Simulate(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "5012345", res.AmountOut)
	assert.Equal(t, uint64(177000), res.TotalGas())
	assert.Equal(t, uint64(21000000), res.BlockNumber)
	assert.Equal(t, token.StaticTable()["WBTC"].Address.Hex(), res.TokenOut)
}

func TestSimulate_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"fork rpc unavailable"}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL}, testLogger())
	_, err := c.Simulate(context.Background(), request())
	assert.ErrorContains(t, err, "fork rpc unavailable")

	req := request()
	req.Tx.Data = ""
	_, err = c.Simulate(context.Background(), req)
	assert.ErrorContains(t, err, "calldata")
}

func TestNew_DisabledWithoutURL(t *testing.T) {
	assert.Nil(t, New(Config{}, testLogger()))
}
