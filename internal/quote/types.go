package quote

import (
	"encoding/json"
	"math"
	"strconv"
)

// Tx is a prepared swap transaction returned by an aggregator.
// It is passed through untouched and only consumed by the simulator.
type Tx struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
	Gas   uint64 `json:"gas,omitempty"`
}

// SimulationResult is the realized outcome of executing a quote's transaction
type SimulationResult struct {
	BalanceBefore string `json:"balanceBefore"` // output-token balance before the swap
	BalanceAfter  string `json:"balanceAfter"`  // output-token balance after the swap
	AmountOut     string `json:"amountOut"`     // realized output, base units
	TokenOut      string `json:"tokenOut"`      // realized output token address
	ApproveGas    uint64 `json:"approveGas"`
	SwapGas       uint64 `json:"swapGas"`
	Success       bool   `json:"success"`
	BlockNumber   uint64 `json:"blockNumber"`
	DurationMs    int64  `json:"durationMs"`
}

// TotalGas is approve gas plus swap gas
func (s *SimulationResult) TotalGas() uint64 {
	return s.ApproveGas + s.SwapGas
}

// RawQuote is the normalized answer of one aggregator
//
// A failed quote carries only its aggregator name: AmountOut, GasUsed, Sources
// and Simulation are all nil.
type RawQuote struct {
	Aggregator string            `json:"aggregator"`
	AmountOut  *string           `json:"amountOut"` // base units
	GasUsed    *uint64           `json:"gasUsed"`
	Sources    []string          `json:"sources"`
	Raw        json.RawMessage   `json:"raw,omitempty"`
	Tx         *Tx               `json:"tx,omitempty"`
	Simulation *SimulationResult `json:"simulation,omitempty"`
	Failed     bool              `json:"failed"`
}

// Failed builds the placeholder for an aggregator that produced no quote
func Failed(aggregator string) *RawQuote {
	return &RawQuote{Aggregator: aggregator, Failed: true}
}

// Succeeded builds a quote from the common fields; nil gas means unknown
func Succeeded(aggregator, amountOut string, gas *uint64, sources []string) *RawQuote {
	q := &RawQuote{
		Aggregator: aggregator,
		AmountOut:  &amountOut,
		Sources:    sources,
	}
	if gas != nil {
		g := *gas
		q.GasUsed = &g
	}
	return q
}

// Gas returns a pointer to v
func Gas(v uint64) *uint64 {
	return &v
}

// Simulated reports whether the quote has a successful simulation
func (q *RawQuote) Simulated() bool {
	return q.Simulation != nil && q.Simulation.Success
}

// Score is the composite ranking value, lower is better.
// +Inf marks an unranked row and is encoded as JSON null.
type Score float64

// Unranked is the score of failed or unsimulated rows
var Unranked = Score(math.Inf(1))

// IsUnranked reports whether s is +Inf
func (s Score) IsUnranked() bool {
	return math.IsInf(float64(s), 1)
}

// MarshalJSON encodes +Inf (and NaN) as null
func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// Row is a scored quote
type Row struct {
	RawQuote
	NetOutput float64 `json:"netOutput"`
	Distance  float64 `json:"distance"`
	Score     Score   `json:"score"`
}
