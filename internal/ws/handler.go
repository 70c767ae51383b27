// Package ws is the websocket edge: it upgrades connections, attaches the
// verified identity, and shuttles protocol frames between the client and
// the coordinator.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/internal/auth"
	"github.com/KentoBaguetti/cournot-game-backend/internal/coordinator"
	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

const writeTimeout = 3 * time.Second

func Handler(verifier auth.Verifier, coord *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		id, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan types.ServerMessage, 16)
		clog := log.With(zap.String("user", id.UserID), zap.String("conn", connID))

		coord.HandleConnect(id, connID, outbox)
		defer coord.HandleDisconnect(connID)

		// Writer goroutine: drains the outbox until the connection dies.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg := <-outbox:
					payload, err := json.Marshal(msg)
					if err != nil {
						clog.Error("marshal frame", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		// Reader loop.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				send(outbox, types.ServerMessage{
					Event: types.EvtGameError,
					Data:  types.ErrorPayload{Message: "bad json"},
				})
				continue
			}

			dispatch(coord, id, connID, outbox, cm, clog)
		}
	}
}

func dispatch(coord *coordinator.Coordinator, id auth.Identity, connID string, outbox chan types.ServerMessage, cm types.ClientMessage, log *zap.Logger) {
	switch cm.Event {
	case types.EvtCreateGame:
		var p types.CreateGamePayload
		if err := json.Unmarshal(cm.Data, &p); err != nil {
			sendBadPayload(outbox)
			return
		}
		code, err := coord.CreateGame(id, p.GameType, p.GameConfigs)
		if err != nil {
			send(outbox, types.Err(err))
			return
		}
		if err := coord.JoinRoom(id, connID, code, outbox); err != nil {
			send(outbox, types.Err(err))
			return
		}
		send(outbox, types.ServerMessage{Event: types.EvtGameCreated, Data: types.GameCreatedPayload{RoomID: code}})

	case types.EvtJoinGame:
		var p types.JoinGamePayload
		if err := json.Unmarshal(cm.Data, &p); err != nil {
			sendBadPayload(outbox)
			return
		}
		if err := coord.JoinRoom(id, connID, p.RoomID, outbox); err != nil {
			send(outbox, types.Err(err))
		}

	case types.EvtPlayerMove:
		var p types.MovePayload
		if err := json.Unmarshal(cm.Data, &p); err != nil {
			sendBadPayload(outbox)
			return
		}
		if err := coord.SubmitMove(id.UserID, p.Action); err != nil {
			send(outbox, types.Err(err))
		}

	case types.EvtStartGame:
		if err := coord.StartRounds(id.UserID); err != nil {
			send(outbox, types.Err(err))
		}

	case types.EvtForceEndRound:
		var p types.ForceEndPayload
		// Absent payload means every room.
		_ = json.Unmarshal(cm.Data, &p)
		if err := coord.ForceEndRound(id.UserID, p.RoomID); err != nil {
			send(outbox, types.Err(err))
		}

	case types.EvtEndGame:
		if err := coord.EndGame(id.UserID); err != nil {
			send(outbox, types.Err(err))
		}

	case types.EvtListUsers:
		names, err := coord.ListUsers(id.UserID)
		if err != nil {
			send(outbox, types.Err(err))
			return
		}
		send(outbox, types.ServerMessage{Event: types.EvtServerListUsers, Data: names})

	case types.EvtListRoomsAndUsers:
		rooms, err := coord.ListRoomsAndPlayers(id.UserID)
		if err != nil {
			send(outbox, types.Err(err))
			return
		}
		send(outbox, types.ServerMessage{Event: types.EvtServerListRooms, Data: rooms})

	default:
		log.Debug("unknown event", zap.String("event", cm.Event))
		send(outbox, types.ServerMessage{Event: types.EvtGameError, Data: types.ErrorPayload{Message: "unknown event"}})
	}
}

// send never blocks the reader loop; a full outbox drops the frame.
func send(outbox chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case outbox <- msg:
	default:
	}
}

func sendBadPayload(outbox chan types.ServerMessage) {
	send(outbox, types.ServerMessage{Event: types.EvtGameError, Data: types.ErrorPayload{Message: "bad payload"}})
}
