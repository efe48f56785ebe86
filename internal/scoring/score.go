// Package scoring turns raw aggregator quotes into comparable, ranked rows.
//
// Every intermediate value is a shopspring decimal; results are narrowed to
// float64 only when a Row is built.
package scoring

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/units"
)

// divPrecision is the number of fractional digits kept by divisions
const divPrecision = 36

// ScorePlaces is the number of decimal places of a final score
const ScorePlaces = 6

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Score computes netOutput, distance and score for every quote, preserving input order.
//
// amountIn is the request's input amount in base units and gasRatio the gas price
// expressed in input-token base units per unit of gas.
func Score(quotes []*quote.RawQuote, amountIn string, gasRatio decimal.Decimal) []quote.Row {
	rows := make([]quote.Row, len(quotes))
	if len(quotes) == 0 {
		return rows
	}

	in, ok := units.ToDecimal(amountIn)
	if !ok {
		in = decimal.Zero
	}

	nets := make([]decimal.Decimal, len(quotes))
	maxNet := decimal.Zero
	for i, q := range quotes {
		nets[i] = netOutput(q, in, gasRatio)
		if i == 0 || nets[i].GreaterThan(maxNet) {
			maxNet = nets[i]
		}
	}

	scores := compositeScores(quotes)

	for i, q := range quotes {
		rows[i] = quote.Row{
			RawQuote:  *q,
			NetOutput: finiteOrZero(nets[i].InexactFloat64()),
			Distance:  finiteOrZero(distance(q, nets[i], maxNet).InexactFloat64()),
			Score:     scores[i],
		}
	}
	return rows
}

// netOutput = amountOut - gasUsed * gasRatio * amountOut / amountIn
//
// The gas cost is priced in input-token units and converted to output-token
// units through the quote's own exchange rate.
func netOutput(q *quote.RawQuote, amountIn, gasRatio decimal.Decimal) decimal.Decimal {
	if q.Failed || !amountIn.IsPositive() {
		return decimal.Zero
	}

	out := decimal.Zero
	if q.AmountOut != nil {
		if v, ok := units.ToDecimal(*q.AmountOut); ok {
			out = v
		}
	}
	if q.GasUsed == nil || gasRatio.IsZero() {
		return out
	}

	gas := decimal.NewFromBigInt(new(big.Int).SetUint64(*q.GasUsed), 0)
	cost := gas.Mul(gasRatio).Mul(out).DivRound(amountIn, divPrecision)
	return out.Sub(cost)
}

// distance is the percentage gap to the best net output, never negative
func distance(q *quote.RawQuote, net, maxNet decimal.Decimal) decimal.Decimal {
	if q.Failed || !maxNet.IsPositive() {
		return decimal.Zero
	}
	d := maxNet.Sub(net).DivRound(maxNet, divPrecision).Mul(hundred)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// compositeScores ranks successfully simulated quotes by their distance to the
// ideal point (max realized output, min realized gas). Everything else is unranked.
func compositeScores(quotes []*quote.RawQuote) []quote.Score {
	scores := make([]quote.Score, len(quotes))
	for i := range scores {
		scores[i] = quote.Unranked
	}

	type point struct {
		idx int
		out decimal.Decimal
		gas decimal.Decimal
	}
	points := make([]point, 0, len(quotes))
	for i, q := range quotes {
		if q.Failed || !q.Simulated() {
			continue
		}
		out, ok := units.ToDecimal(q.Simulation.AmountOut)
		if !ok {
			out = decimal.Zero
		}
		gas := decimal.NewFromBigInt(new(big.Int).SetUint64(q.Simulation.TotalGas()), 0)
		points = append(points, point{idx: i, out: out, gas: gas})
	}
	if len(points) == 0 {
		return scores
	}

	minOut, maxOut := points[0].out, points[0].out
	minGas, maxGas := points[0].gas, points[0].gas
	for _, p := range points[1:] {
		minOut = decimal.Min(minOut, p.out)
		maxOut = decimal.Max(maxOut, p.out)
		minGas = decimal.Min(minGas, p.gas)
		maxGas = decimal.Max(maxGas, p.gas)
	}

	for _, p := range points {
		outNorm := one
		if !maxOut.Equal(minOut) {
			outNorm = p.out.Sub(minOut).DivRound(maxOut.Sub(minOut), divPrecision)
		}
		gasNorm := decimal.Zero
		if !maxGas.Equal(minGas) {
			gasNorm = p.gas.Sub(minGas).DivRound(maxGas.Sub(minGas), divPrecision)
		}

		// |(outNorm, gasNorm) - (1, 0)| / sqrt(2)
		dOut := one.Sub(outNorm)
		sq := dOut.Mul(dOut).Add(gasNorm.Mul(gasNorm))
		s := sqrt(sq.DivRound(two, divPrecision))
		s = clamp(s, decimal.Zero, one).Round(ScorePlaces)

		f := s.InexactFloat64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		scores[p.idx] = quote.Score(f)
	}
	return scores
}

// sqrt is Newton's method on decimals, seeded from float64
func sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	x := decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
	if !x.IsPositive() {
		x = one
	}
	for i := 0; i < 100; i++ {
		next := x.Add(d.DivRound(x, divPrecision)).DivRound(two, divPrecision)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
