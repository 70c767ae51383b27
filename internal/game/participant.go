package game

import (
	"encoding/json"

	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

type Role string

const (
	RoleHost    Role = "host"
	RoleStudent Role = "student"
)

// Decision is a validated round decision. Cournot fills Quantity, jankenpo
// and the test game fill Symbol. Raw keeps the submitted form for replay on
// reconnect.
type Decision struct {
	Raw      json.RawMessage
	Quantity float64
	Symbol   string
}

// Participant wraps one user inside a game instance. UserID is stable
// across reconnects; ConnID is rebound on every reconnect.
type Participant struct {
	UserID    string
	Nickname  string
	Role      Role
	ConnID    string
	Connected bool
	Decision  *Decision
	Ready     bool

	outbox chan types.ServerMessage
}

// send delivers a frame without ever blocking the game loop. A full outbox
// means the client is too slow; the frame is dropped.
func (p *Participant) send(msg types.ServerMessage) bool {
	if p.outbox == nil || !p.Connected {
		return false
	}
	select {
	case p.outbox <- msg:
		return true
	default:
		return false
	}
}
