package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/aggregator"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/gasref"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAggregator struct {
	got  aggregator.Request
	resp *aggregator.Response
}

func (s *stubAggregator) Aggregate(_ context.Context, req aggregator.Request) *aggregator.Response {
	s.got = req
	return s.resp
}

func (s *stubAggregator) Adapters() []string { return []string{"zeroex", "odos"} }

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestQuote_BindsQuery(t *testing.T) {
	stub := &stubAggregator{resp: &aggregator.Response{RequestID: "req-1", Status: aggregator.StatusSuccess, Results: []quote.Row{}}}
	h := New(stub, testLogger()).Router()

	rec := get(t, h, "/api/quote?tokenIn=usdc&tokenOut=dai&tokenAmount=5000000&order=score&disablePrice=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, aggregator.Request{
		TokenIn:      "usdc",
		TokenOut:     "dai",
		TokenAmount:  "5000000",
		Order:        "score",
		DisablePrice: true,
	}, stub.got)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, body, "requestId")
}

func TestQuote_ErrorStatusIsStill200(t *testing.T) {
	msg := "unsupported token: FOO"
	stub := &stubAggregator{resp: &aggregator.Response{Status: aggregator.StatusError, Error: &msg, Results: []quote.Row{}}}
	h := New(stub, testLogger()).Router()

	rec := get(t, h, "/api/quote?tokenIn=foo")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"unsupported token: FOO"`)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestQuote_MalformedQuery(t *testing.T) {
	stub := &stubAggregator{}
	h := New(stub, testLogger()).Router()

	rec := get(t, h, "/api/quote?tokenIn=usdc&disablePrice=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, aggregator.Request{}, stub.got, "service must not be called")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "invalid query")
	assert.Equal(t, "usdc", body["tokenIn"])
	assert.Equal(t, aggregator.DefaultTokenOut, body["tokenOut"])
	assert.Equal(t, aggregator.DefaultTokenAmount, body["tokenAmount"])
	assert.Equal(t, float64(0), body["tokenOutDecimals"])
	assert.Equal(t, "0", body["gasPriceTokenIn"])
	assert.Equal(t, "net", body["order"])
	assert.Equal(t, []any{}, body["results"])
}

func TestQuote_EndToEnd(t *testing.T) {
	tokens := token.StaticTable()
	good := quote.NewStaticAdapter("local", 0, 100000)
	good.SetRate(tokens["WETH"].Address, tokens["USDC"].Address, decimal.RequireFromString("0.0000000035"))
	broken := quote.NewStaticAdapter("broken", 0, 0)
	broken.Err = assert.AnError

	one := new(big.Int).Lsh(big.NewInt(1), 96)
	gas, err := gasref.NewFixed(one.String())
	require.NoError(t, err)

	svc, err := aggregator.NewService([]quote.Adapter{good, broken}, token.NewCatalog(token.CatalogConfig{}, nil, testLogger()), gas, 0, testLogger())
	require.NoError(t, err)
	h := New(svc, testLogger()).Router()

	rec := get(t, h, "/api/quote?tokenIn=eth&tokenOut=usdc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body struct {
		TokenIn          string `json:"tokenIn"`
		TokenOutDecimals int32  `json:"tokenOutDecimals"`
		Order            string `json:"order"`
		Status           string `json:"status"`
		Results          []struct {
			Aggregator string   `json:"aggregator"`
			Failed     bool     `json:"failed"`
			AmountOut  *string  `json:"amountOut"`
			Score      *float64 `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "eth", body.TokenIn)
	assert.Equal(t, int32(6), body.TokenOutDecimals)
	assert.Equal(t, "net", body.Order)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "local", body.Results[0].Aggregator)
	assert.Equal(t, "3500000000", *body.Results[0].AmountOut)
	assert.Nil(t, body.Results[0].Score)
	assert.True(t, body.Results[1].Failed)
}

func TestSourcesAndHealth(t *testing.T) {
	h := New(&stubAggregator{}, testLogger()).Router()

	rec := get(t, h, "/api/sources")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sources":["zeroex","odos"]}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
