package scoring

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/units"
)

// Order selects the ranking comparator
type Order string

const (
	OrderScore  Order = "score"  // ascending score
	OrderNet    Order = "net"    // descending netOutput
	OrderOutput Order = "output" // descending amountOut
)

// DefaultOrder is used when the caller gives none or an unknown one
const DefaultOrder = OrderNet

// ParseOrder resolves an ordering key, falling back to DefaultOrder
func ParseOrder(s string) (Order, bool) {
	switch o := Order(s); o {
	case OrderScore, OrderNet, OrderOutput:
		return o, true
	default:
		return DefaultOrder, false
	}
}

// Rank returns a sorted copy of rows; the input slice is left untouched.
// Equal keys keep no particular relative order.
func Rank(rows []quote.Row, order Order) []quote.Row {
	out := make([]quote.Row, len(rows))
	copy(out, rows)

	switch order {
	case OrderScore:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score < out[j].Score
		})
	case OrderOutput:
		// parse once, then sort indexes so keys stay aligned with rows
		keys := make([]outputKey, len(out))
		idx := make([]int, len(out))
		for i := range out {
			keys[i] = parseOutput(out[i].AmountOut)
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return keys[idx[a]].greater(keys[idx[b]])
		})
		sorted := make([]quote.Row, len(out))
		for i, k := range idx {
			sorted[i] = rows[k]
		}
		return sorted
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].NetOutput > out[j].NetOutput
		})
	}
	return out
}

// outputKey orders null or unparsable amounts below every real amount
type outputKey struct {
	valid bool
	value decimal.Decimal
}

func parseOutput(s *string) outputKey {
	if s == nil {
		return outputKey{}
	}
	v, ok := units.ToDecimal(*s)
	if !ok {
		return outputKey{}
	}
	return outputKey{valid: true, value: v}
}

func (k outputKey) greater(o outputKey) bool {
	if k.valid != o.valid {
		return k.valid
	}
	return k.valid && k.value.GreaterThan(o.value)
}
