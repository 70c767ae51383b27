// Package types defines the JSON frames exchanged over the websocket
// channel. Every frame is {"event": "...", "data": {...}}; event names are
// the protocol, not HTTP routes.
package types

import "encoding/json"

// Client -> Server events.
const (
	EvtCreateGame        = "host:createGame"
	EvtJoinGame          = "game:join"
	EvtStartGame         = "game:start"
	EvtPlayerMove        = "player:move"
	EvtForceEndRound     = "round:force_end"
	EvtEndGame           = "game:endGame"
	EvtListUsers         = "get:listUsers"
	EvtListRoomsAndUsers = "get:listRoomsAndPlayers"
)

// Server -> Client events.
const (
	EvtGameCreated     = "game:created"
	EvtPlayerConnect   = "player:connect"
	EvtServerListUsers = "server:listUsers"
	EvtServerListRooms = "server:listRoomsAndPlayers"
	EvtRoundStart      = "server:roundStart"
	EvtTimerUpdate     = "server:timerUpdate"
	EvtRoundEnded      = "round:ended"
	EvtGameReconnected = "game:reconnected"
	EvtGameError       = "game:error"
)

// ClientMessage is a raw inbound frame; Data is decoded per event.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is an outbound frame; Data marshals as-is.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type CreateGamePayload struct {
	GameType    string          `json:"gameType"`
	GameConfigs json.RawMessage `json:"gameConfigs,omitempty"`
}

type JoinGamePayload struct {
	RoomID string `json:"roomId"`
}

type MovePayload struct {
	Action json.RawMessage `json:"action"`
}

type ForceEndPayload struct {
	RoomID string `json:"roomId"`
}

type GameCreatedPayload struct {
	RoomID string `json:"roomId"`
}

type PlayerConnectPayload struct {
	Message string `json:"message"`
}

type RoundStartPayload struct {
	RoundNo     int     `json:"roundNo"`
	RoundLength float64 `json:"roundLength"` // seconds
}

type TimerUpdatePayload struct {
	RoomID        string  `json:"roomId"`
	RemainingTime float64 `json:"remainingTime"` // seconds
	Active        bool    `json:"active"`
}

type RoundEndedPayload struct {
	RoundNumber int `json:"roundNumber"`
	Results     any `json:"results"`
}

type ReconnectedPayload struct {
	RoomID        string          `json:"roomId"`
	GameType      string          `json:"gameType"`
	IsHost        bool            `json:"isHost"`
	RoundNo       int             `json:"roundNo"`
	RemainingTime float64         `json:"remainingTime"`
	LastMove      json.RawMessage `json:"lastMove,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Err wraps an error into a game:error frame.
func Err(err error) ServerMessage {
	return ServerMessage{Event: EvtGameError, Data: ErrorPayload{Message: err.Error()}}
}
