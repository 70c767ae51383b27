package game

import "encoding/json"

// testRules is a minimal variant used by harnesses: any string is a legal
// move, rounds start immediately on creation, and resolution just records
// who submitted.
type testRules struct{}

func (testRules) Type() string    { return TypeTest }
func (testRules) AutoStart() bool { return true }

func (testRules) ParseDecision(raw json.RawMessage) (Decision, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Decision{}, ErrBadMove
	}
	return Decision{Raw: raw, Symbol: s}, nil
}

func (testRules) DefaultDecision() Decision {
	return Decision{Raw: json.RawMessage(`""`)}
}

func (testRules) Resolve(_ Config, decisions map[string]Decision) RoundResult {
	result := make(RoundResult, len(decisions))
	for userID, d := range decisions {
		submitted := 0.0
		if d.Symbol != "" {
			submitted = 1
		}
		result[userID] = Outcome{
			Move:    d.Symbol,
			Metrics: map[string]float64{"submitted": submitted},
		}
	}
	return result
}
