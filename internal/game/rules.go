package game

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrUnknownGameType = errors.New("unknown game type")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoundClosed     = errors.New("round already closed")
	ErrRoundNotActive  = errors.New("no active round")
	ErrNotHost         = errors.New("only the host can do that")
	ErrHostCannotMove  = errors.New("host cannot submit a move")
	ErrNotInGame       = errors.New("player is not in this game")
	ErrGameEnded       = errors.New("game has ended")
	ErrBadMove         = errors.New("invalid move")
)

const (
	TypeCournot  = "cournot"
	TypeJanKenPo = "jankenpo"
	TypeTest     = "test"
)

// Outcome is one participant's share of a resolved round.
type Outcome struct {
	Move    any                `json:"move"`
	Metrics map[string]float64 `json:"metrics"`
}

// RoundResult maps userID to outcome for a single resolved round.
type RoundResult map[string]Outcome

// Rules is the capability interface each game variant implements. The set
// of variants is closed; selection happens once, in New.
type Rules interface {
	Type() string
	// AutoStart reports whether rounds begin immediately on creation
	// instead of waiting for the host's start.
	AutoStart() bool
	ParseDecision(raw json.RawMessage) (Decision, error)
	// DefaultDecision stands in for members who never submitted when a
	// round is forced to resolve.
	DefaultDecision() Decision
	Resolve(cfg Config, decisions map[string]Decision) RoundResult
}

func rulesFor(gameType string) (Rules, error) {
	switch gameType {
	case TypeCournot:
		return cournotRules{}, nil
	case TypeJanKenPo:
		return janKenPoRules{}, nil
	case TypeTest:
		return testRules{}, nil
	default:
		return nil, ErrUnknownGameType
	}
}

// MarketParams are the Cournot demand and cost parameters, immutable after
// creation.
type MarketParams struct {
	A float64 `json:"a"` // demand intercept
	B float64 `json:"b"` // demand slope
	Y float64 `json:"y"` // sunk cost
	Z float64 `json:"z"` // marginal cost
}

// Config is the game-specific configuration, immutable after creation.
type Config struct {
	MaxRounds         int
	RoundLength       time.Duration
	MaxPlayersPerRoom int
	Market            MarketParams
}

type configPayload struct {
	MaxRounds         int     `json:"maxRounds"`
	RoundLength       float64 `json:"roundLength"` // seconds
	MaxPlayersPerRoom int     `json:"maxPlayersPerRoom"`
	A                 float64 `json:"a"`
	B                 float64 `json:"b"`
	Y                 float64 `json:"y"`
	Z                 float64 `json:"z"`
}

// ParseConfig decodes the client-supplied gameConfigs blob on top of the
// server defaults. Absent or non-positive fields keep their defaults.
func ParseConfig(raw json.RawMessage, defaults Config) (Config, error) {
	cfg := defaults
	if len(raw) == 0 {
		return cfg, nil
	}
	var p configPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return cfg, err
	}
	if p.MaxRounds > 0 {
		cfg.MaxRounds = p.MaxRounds
	}
	if p.RoundLength > 0 {
		cfg.RoundLength = time.Duration(p.RoundLength * float64(time.Second))
	}
	if p.MaxPlayersPerRoom > 0 {
		cfg.MaxPlayersPerRoom = p.MaxPlayersPerRoom
	}
	if p.A != 0 || p.B != 0 || p.Y != 0 || p.Z != 0 {
		cfg.Market = MarketParams{A: p.A, B: p.B, Y: p.Y, Z: p.Z}
	}
	return cfg, nil
}
