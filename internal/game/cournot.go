package game

import (
	"encoding/json"
	"fmt"

	"github.com/KentoBaguetti/cournot-game-backend/internal/econ"
)

// cournotRules resolves a round as a Cournot quantity-competition market:
// every firm's submitted quantity feeds one clearing price, profit follows
// from the configured cost parameters.
type cournotRules struct{}

func (cournotRules) Type() string    { return TypeCournot }
func (cournotRules) AutoStart() bool { return false }

func (cournotRules) ParseDecision(raw json.RawMessage) (Decision, error) {
	var q float64
	if err := json.Unmarshal(raw, &q); err != nil {
		return Decision{}, fmt.Errorf("%w: expected a quantity", ErrBadMove)
	}
	if q < 0 {
		return Decision{}, fmt.Errorf("%w: quantity must be non-negative", ErrBadMove)
	}
	return Decision{Raw: raw, Quantity: q}, nil
}

func (cournotRules) DefaultDecision() Decision {
	return Decision{Raw: json.RawMessage("0"), Quantity: 0}
}

func (cournotRules) Resolve(cfg Config, decisions map[string]Decision) RoundResult {
	m := cfg.Market

	quantities := make([]float64, 0, len(decisions))
	var total float64
	for _, d := range decisions {
		quantities = append(quantities, d.Quantity)
		total += d.Quantity
	}
	price := econ.MarketPrice(m.A, m.B, quantities)

	result := make(RoundResult, len(decisions))
	for userID, d := range decisions {
		result[userID] = Outcome{
			Move: d.Quantity,
			Metrics: map[string]float64{
				"quantity":     d.Quantity,
				"price":        price,
				"cost":         econ.Cost(m.Y, m.Z, d.Quantity),
				"profit":       econ.Profit(d.Quantity, price, m.Z),
				"bestResponse": econ.BestResponseQuantity(m.A, m.B, m.Z, total-d.Quantity),
			},
		}
	}
	return result
}
