package game

import (
	"encoding/json"
	"fmt"
)

// janKenPoRules resolves a round by pairwise rock/paper/scissors comparison
// between every pair of members. A member who never submitted loses every
// pairing except against another absentee, which is a draw.
type janKenPoRules struct{}

var beats = map[string]string{
	"rock":     "scissors",
	"paper":    "rock",
	"scissors": "paper",
}

func (janKenPoRules) Type() string    { return TypeJanKenPo }
func (janKenPoRules) AutoStart() bool { return false }

func (janKenPoRules) ParseDecision(raw json.RawMessage) (Decision, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Decision{}, fmt.Errorf("%w: expected a string", ErrBadMove)
	}
	if _, ok := beats[s]; !ok {
		return Decision{}, fmt.Errorf("%w: %q is not rock, paper or scissors", ErrBadMove, s)
	}
	return Decision{Raw: raw, Symbol: s}, nil
}

func (janKenPoRules) DefaultDecision() Decision {
	return Decision{Raw: json.RawMessage(`""`)}
}

func (janKenPoRules) Resolve(_ Config, decisions map[string]Decision) RoundResult {
	type tally struct{ wins, losses, draws float64 }
	tallies := make(map[string]*tally, len(decisions))
	for userID := range decisions {
		tallies[userID] = &tally{}
	}

	users := make([]string, 0, len(decisions))
	for userID := range decisions {
		users = append(users, userID)
	}
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			a, b := users[i], users[j]
			switch compare(decisions[a].Symbol, decisions[b].Symbol) {
			case 1:
				tallies[a].wins++
				tallies[b].losses++
			case -1:
				tallies[a].losses++
				tallies[b].wins++
			default:
				tallies[a].draws++
				tallies[b].draws++
			}
		}
	}

	result := make(RoundResult, len(decisions))
	for userID, d := range decisions {
		t := tallies[userID]
		result[userID] = Outcome{
			Move: d.Symbol,
			Metrics: map[string]float64{
				"wins":   t.wins,
				"losses": t.losses,
				"draws":  t.draws,
				"score":  t.wins - t.losses,
			},
		}
	}
	return result
}

// compare returns 1 if a beats b, -1 if b beats a, 0 on a draw. An empty
// symbol (no submission) loses to any real move.
func compare(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	if beats[a] == b {
		return 1
	}
	return -1
}
