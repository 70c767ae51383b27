package game

import (
	"strings"
	"time"
)

// RoomState is the per-breakout-room round state machine.
type RoomState string

const (
	StateForming        RoomState = "forming"
	StateRoundActive    RoomState = "roundActive"
	StateRoundResolving RoomState = "roundResolving"
	StateEnded          RoomState = "ended"
)

// Room is one breakout room (or the main room the host sits in). Owned
// exclusively by its game's loop goroutine; no locking of its own.
type Room struct {
	ID      string
	Main    bool
	Members []string // userIDs, join order
	Round   int
	State   RoomState
	History map[int]RoundResult

	deadline time.Time
	timer    *time.Timer
}

// MainRoomID recovers the top-level room id from a breakout room id by
// truncating at the first separator.
func MainRoomID(roomID string) string {
	if i := strings.IndexByte(roomID, '_'); i >= 0 {
		return roomID[:i]
	}
	return roomID
}

func newRoom(id string, main bool) *Room {
	return &Room{
		ID:      id,
		Main:    main,
		State:   StateForming,
		History: map[int]RoundResult{},
	}
}

func (r *Room) hasMember(userID string) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Room) removeMember(userID string) {
	for i, id := range r.Members {
		if id == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// remaining reports how long until the round deadline, clamped at zero.
func (r *Room) remaining(now time.Time) time.Duration {
	if r.State != StateRoundActive {
		return 0
	}
	d := r.deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// stopTimer cancels the live countdown, if any. At most one countdown is
// ever live per room; arming a new one goes through here first.
func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
