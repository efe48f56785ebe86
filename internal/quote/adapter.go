package quote

import (
	"context"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

// Adapter fetches a quote from one upstream aggregator.
// Implementations translate a vendor's wire format into a RawQuote and
// report expected upstream failures as errors, never panics.
type Adapter interface {
	// Name is the aggregator identity; it must be unique among configured adapters
	Name() string
	// Quote returns the normalized quote for selling AmountIn of TokenIn
	Quote(ctx context.Context, req *Request) (*RawQuote, error)
}

// Request is the input shared by all adapters
type Request struct {
	TokenIn  token.Token
	TokenOut token.Token
	AmountIn string // base units of TokenIn
}

// SimulationRequest asks the simulator to execute a prepared transaction
type SimulationRequest struct {
	Tx       Tx
	TokenIn  token.Token
	TokenOut token.Token
	AmountIn string
}

// Simulator executes prepared transactions against a reference environment
type Simulator interface {
	Simulate(ctx context.Context, req *SimulationRequest) (*SimulationResult, error)
}
