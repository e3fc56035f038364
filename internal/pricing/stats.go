package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Stats summarises a remote history against the current price. Fields are
// nil when they cannot be derived (empty history, single distinct price,
// zero average).
type Stats struct {
	Lowest            *decimal.Decimal
	Highest           *decimal.Decimal
	Average           *decimal.Decimal
	HighestToCurrent  *decimal.Decimal
	SecondLowestDiff  *decimal.Decimal
	DiscountVsAverage *decimal.Decimal // percent
}

// RemoteMin returns the minimum price in the remote series.
func RemoteMin(remote []RemotePoint) (decimal.Decimal, bool) {
	if len(remote) == 0 {
		return decimal.Decimal{}, false
	}
	lowest := remote[0].Price
	for _, p := range remote[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
	}
	return lowest, true
}

// ComputeStats derives display statistics for a notification payload.
func ComputeStats(current decimal.Decimal, remote []RemotePoint) Stats {
	var st Stats
	if len(remote) == 0 {
		return st
	}

	prices := make([]decimal.Decimal, len(remote))
	sum := decimal.Zero
	for i, p := range remote {
		prices[i] = p.Price
		sum = sum.Add(p.Price)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	lowest := prices[0]
	highest := prices[len(prices)-1]
	avg := sum.Div(decimal.NewFromInt(int64(len(prices))))
	diff := highest.Sub(current)

	st.Lowest = &lowest
	st.Highest = &highest
	st.Average = &avg
	st.HighestToCurrent = &diff

	for _, p := range prices[1:] {
		if !p.Equal(lowest) {
			d := p.Sub(current)
			st.SecondLowestDiff = &d
			break
		}
	}

	if avg.IsPositive() {
		disc := avg.Sub(current).Div(avg).Mul(hundred)
		st.DiscountVsAverage = &disc
	}
	return st
}
