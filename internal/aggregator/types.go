package aggregator

import (
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/scoring"
)

// Request defaults
const (
	DefaultTokenIn     = "WETH"
	DefaultTokenOut    = "WBTC"
	DefaultTokenAmount = "1000000000000000000"
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one aggregation request. Empty fields take their defaults.
type Request struct {
	TokenIn      string `json:"tokenIn" form:"tokenIn"`
	TokenOut     string `json:"tokenOut" form:"tokenOut"`
	TokenAmount  string `json:"tokenAmount" form:"tokenAmount"`
	Order        string `json:"order" form:"order"`
	DisablePrice bool   `json:"disablePrice" form:"disablePrice"`
}

func (r *Request) setDefaults() {
	if r.TokenIn == "" {
		r.TokenIn = DefaultTokenIn
	}
	if r.TokenOut == "" {
		r.TokenOut = DefaultTokenOut
	}
	if r.TokenAmount == "" {
		r.TokenAmount = DefaultTokenAmount
	}
	if r.Order == "" {
		r.Order = string(scoring.DefaultOrder)
	}
}

// Response is always well formed; Status tells success from error
type Response struct {
	RequestID        string      `json:"-"`
	TokenIn          string      `json:"tokenIn"`
	TokenOut         string      `json:"tokenOut"`
	TokenAmount      string      `json:"tokenAmount"`
	TokenOutDecimals int32       `json:"tokenOutDecimals"`
	GasPriceTokenIn  string      `json:"gasPriceTokenIn"`
	Order            string      `json:"order"`
	Results          []quote.Row `json:"results"`
	Error            *string     `json:"error"`
	Status           string      `json:"status"`
}

// ErrorResponse builds the error response for a request that never reached the
// pipeline. Empty fields take their defaults, as in Aggregate.
func ErrorResponse(req Request, err error) *Response {
	req.setDefaults()
	order, _ := scoring.ParseOrder(req.Order)
	return errorResponse(req, order, err)
}

func errorResponse(req Request, order scoring.Order, err error) *Response {
	msg := err.Error()
	return &Response{
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		TokenAmount:      req.TokenAmount,
		TokenOutDecimals: 0,
		GasPriceTokenIn:  "0",
		Order:            string(order),
		Results:          []quote.Row{},
		Error:            &msg,
		Status:           StatusError,
	}
}
