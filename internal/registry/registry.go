// Package registry owns the process-wide map from room identifier to live
// game instance. One loop goroutine serializes all map access; callers talk
// to it through typed messages with reply channels.
package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/internal/game"
)

type Msg interface{ isRegistryMsg() }

// Create constructs and registers a game instance keyed by RoomID. A
// colliding id overwrites: uniqueness is the caller's job, via the
// generate-and-check retry loop in the coordinator.
type Create struct {
	GameType   string
	RoomID     string
	HostUserID string
	Config     game.Config
	Reply      chan CreateReply
}

type CreateReply struct {
	Game *game.Game
	Err  error
}

// Get replies with the instance for a room id, nil if absent. Breakout room
// ids resolve to their main room's instance.
type Get struct {
	RoomID string
	Reply  chan *game.Game
}

// Remove drops an instance and stops its loop.
type Remove struct {
	RoomID string
}

// List replies with a snapshot of all live room ids.
type List struct {
	Reply chan []string
}

type ShutdownRegistry struct{}

func (Create) isRegistryMsg()           {}
func (Get) isRegistryMsg()              {}
func (Remove) isRegistryMsg()           {}
func (List) isRegistryMsg()             {}
func (ShutdownRegistry) isRegistryMsg() {}

type Registry struct {
	inbox  chan Msg
	games  map[string]*game.Game
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		games:  make(map[string]*game.Game),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				g, err := game.New(r.ctx, r.log, msg.GameType, msg.RoomID, msg.HostUserID, msg.Config)
				if err != nil {
					msg.Reply <- CreateReply{Err: err}
					break
				}
				r.games[msg.RoomID] = g
				r.log.Info("game registered",
					zap.String("room", msg.RoomID),
					zap.String("gameType", msg.GameType))
				msg.Reply <- CreateReply{Game: g}

			case Get:
				msg.Reply <- r.games[game.MainRoomID(msg.RoomID)] // may be nil

			case Remove:
				if g, ok := r.games[msg.RoomID]; ok {
					stopGame(g)
					delete(r.games, msg.RoomID)
					r.log.Info("game removed", zap.String("room", msg.RoomID))
				}

			case List:
				ids := make([]string, 0, len(r.games))
				for id := range r.games {
					ids = append(ids, id)
				}
				msg.Reply <- ids

			case ShutdownRegistry:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) shutdown() {
	for _, g := range r.games {
		stopGame(g)
	}
	clear(r.games)
	r.cancel()
}

// stopGame posts Shutdown without blocking the registry loop on an
// instance that already stopped on its own.
func stopGame(g *game.Game) {
	select {
	case g.Inbox() <- game.Shutdown{}:
	case <-g.Done():
	}
}
