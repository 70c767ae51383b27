// Package econ holds the market-clearing math for the Cournot game.
// Everything here is a pure function over explicit inputs; callers are
// responsible for rejecting negative quantities before they get here.
package econ

// MarketPrice returns the clearing price a - b*sum(quantities), clamped at
// zero. Price never goes negative no matter how much the room overproduces.
func MarketPrice(a, b float64, quantities []float64) float64 {
	var total float64
	for _, q := range quantities {
		total += q
	}
	price := a - b*total
	if price < 0 {
		return 0
	}
	return price
}

// Cost is the per-unit cost for a firm: sunk cost y plus linear marginal
// cost z per unit produced.
func Cost(y, z, quantity float64) float64 {
	return y + z*quantity
}

// Profit is revenue minus production cost for a single firm.
func Profit(quantity, price, unitCost float64) float64 {
	return quantity*price - quantity*unitCost
}

// BestResponseQuantity is the closed-form profit-maximizing quantity for a
// firm given its competitors' fixed total output (first-order condition of
// the profit function). Used for the Nash benchmark shown alongside round
// results; never authoritative for resolving a round.
func BestResponseQuantity(a, b, z, othersSum float64) float64 {
	if b == 0 {
		return 0
	}
	q := (a - z - b*othersSum) / (2 * b)
	if q < 0 {
		return 0
	}
	return q
}
