// Package coordinator binds transport connections to verified identities
// and routes (re)connection events into the registry and game instances.
// One coarse mutex guards the connection and room maps; per-room traffic
// never touches them, so contention stays low.
package coordinator

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/internal/auth"
	"github.com/KentoBaguetti/cournot-game-backend/internal/game"
	"github.com/KentoBaguetti/cournot-game-backend/internal/registry"
	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

type Coordinator struct {
	registry *registry.Registry
	log      *zap.Logger
	grace    time.Duration
	defaults game.Config

	mu          sync.Mutex
	connections map[string]string // connID -> userID
	userConns   map[string]int    // live connections per user (multi-tab)
	userRooms   map[string]string // userID -> main room id, survives grace window
	graceTimers map[string]*time.Timer
}

func New(reg *registry.Registry, log *zap.Logger, grace time.Duration, defaults game.Config) *Coordinator {
	return &Coordinator{
		registry:    reg,
		log:         log,
		grace:       grace,
		defaults:    defaults,
		connections: make(map[string]string),
		userConns:   make(map[string]int),
		userRooms:   make(map[string]string),
		graceTimers: make(map[string]*time.Timer),
	}
}

func (c *Coordinator) getGame(roomID string) *game.Game {
	reply := make(chan *game.Game, 1)
	c.registry.Inbox() <- registry.Get{RoomID: roomID, Reply: reply}
	return <-reply
}

// ask posts a message to a game's inbox and waits for the reply. The
// instance's loop exits without draining its inbox, so a teardown (host
// end-game, grace-expiry removal) racing this request would otherwise
// strand the caller; selecting on Done turns that race into ErrGameEnded.
func ask(g *game.Game, msg game.Msg, reply chan error) error {
	select {
	case g.Inbox() <- msg:
	case <-g.Done():
		return game.ErrGameEnded
	}
	select {
	case err := <-reply:
		return err
	case <-g.Done():
		// The reply may already be buffered from just before shutdown.
		select {
		case err := <-reply:
			return err
		default:
			return game.ErrGameEnded
		}
	}
}

// tell posts a fire-and-forget message, dropping it if the instance is
// already gone.
func tell(g *game.Game, msg game.Msg) {
	select {
	case g.Inbox() <- msg:
	case <-g.Done():
	}
}

// HandleConnect registers a verified connection. When the user has a room
// entry pointing at a still-live instance the connection is attached right
// away: reconnect for known members, first join otherwise. With no live
// room the connection idles until the client sends an explicit
// join/create event.
func (c *Coordinator) HandleConnect(id auth.Identity, connID string, outbox chan types.ServerMessage) {
	c.mu.Lock()
	c.connections[connID] = id.UserID
	c.userConns[id.UserID]++
	if t, ok := c.graceTimers[id.UserID]; ok {
		t.Stop()
		delete(c.graceTimers, id.UserID)
	}
	roomID, known := c.userRooms[id.UserID]
	c.mu.Unlock()

	if !known {
		roomID = id.RoomID
	}
	if roomID == "" {
		return
	}
	g := c.getGame(roomID)
	if g == nil {
		// Stale entry from a destroyed instance; forget it.
		c.mu.Lock()
		delete(c.userRooms, id.UserID)
		c.mu.Unlock()
		return
	}

	reply := make(chan error, 1)
	err := ask(g, game.Reconnect{
		UserID: id.UserID, Nickname: id.Username, ConnID: connID,
		Outbox: outbox, Reply: reply,
	}, reply)
	if err != nil {
		// Not a member yet: first time reaching this room.
		err = ask(g, game.Join{
			UserID: id.UserID, Nickname: id.Username, ConnID: connID,
			IsHost: g.HostID == id.UserID, Outbox: outbox, Reply: reply,
		}, reply)
		if err != nil {
			c.log.Warn("auto-join failed",
				zap.String("user", id.UserID), zap.String("room", roomID), zap.Error(err))
			return
		}
	}

	c.mu.Lock()
	c.userRooms[id.UserID] = game.MainRoomID(roomID)
	c.mu.Unlock()
}

// CreateGame makes a new instance with a fresh join code, with the caller
// as its host. The caller still attaches via JoinRoom (or on next connect
// through the userRooms entry recorded here). Codes are generated and
// checked against the registry in a retry loop, so the registry's
// overwrite-on-collision semantics never bite in practice.
func (c *Coordinator) CreateGame(id auth.Identity, gameType string, rawCfg json.RawMessage) (string, error) {
	cfg, err := game.ParseConfig(rawCfg, c.defaults)
	if err != nil {
		return "", err
	}

	var code string
	for {
		candidate, err := GenerateCode()
		if err != nil {
			return "", err
		}
		if c.getGame(candidate) == nil {
			code = candidate
			break
		}
		c.log.Warn("join code collision, regenerating", zap.String("code", candidate))
	}

	reply := make(chan registry.CreateReply, 1)
	c.registry.Inbox() <- registry.Create{
		GameType: gameType, RoomID: code, HostUserID: id.UserID,
		Config: cfg, Reply: reply,
	}
	res := <-reply
	if res.Err != nil {
		return "", res.Err
	}

	c.mu.Lock()
	c.userRooms[id.UserID] = code
	c.mu.Unlock()
	return code, nil
}

// JoinRoom attaches the caller to an existing instance as a student (or as
// host, if the instance already names them host).
func (c *Coordinator) JoinRoom(id auth.Identity, connID, roomID string, outbox chan types.ServerMessage) error {
	g := c.getGame(roomID)
	if g == nil {
		return game.ErrRoomNotFound
	}

	reply := make(chan error, 1)
	err := ask(g, game.Join{
		UserID: id.UserID, Nickname: id.Username, ConnID: connID,
		IsHost: g.HostID == id.UserID, Outbox: outbox, Reply: reply,
	}, reply)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.userRooms[id.UserID] = game.MainRoomID(roomID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) gameFor(userID string) *game.Game {
	c.mu.Lock()
	roomID, ok := c.userRooms[userID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.getGame(roomID)
}

// SubmitMove records a round decision for the calling user.
func (c *Coordinator) SubmitMove(userID string, action json.RawMessage) error {
	g := c.gameFor(userID)
	if g == nil {
		return game.ErrNotInGame
	}
	reply := make(chan error, 1)
	return ask(g, game.SubmitMove{UserID: userID, Action: action, Reply: reply}, reply)
}

// StartRounds begins round one across the caller's instance (host only).
func (c *Coordinator) StartRounds(userID string) error {
	g := c.gameFor(userID)
	if g == nil {
		return game.ErrNotInGame
	}
	reply := make(chan error, 1)
	return ask(g, game.StartRounds{UserID: userID, Reply: reply}, reply)
}

// ForceEndRound ends one breakout room's round immediately (host only). An
// empty roomID ends every active round.
func (c *Coordinator) ForceEndRound(userID, roomID string) error {
	g := c.gameFor(userID)
	if g == nil {
		return game.ErrNotInGame
	}
	reply := make(chan error, 1)
	if roomID == "" {
		return ask(g, game.ForceEndAll{UserID: userID, Reply: reply}, reply)
	}
	return ask(g, game.ForceEndRound{UserID: userID, RoomID: roomID, Reply: reply}, reply)
}

// EndGame tears the caller's instance down (host only).
func (c *Coordinator) EndGame(userID string) error {
	c.mu.Lock()
	roomID, ok := c.userRooms[userID]
	c.mu.Unlock()
	if !ok {
		return game.ErrNotInGame
	}
	g := c.getGame(roomID)
	if g == nil {
		return game.ErrNotInGame
	}

	reply := make(chan error, 1)
	if err := ask(g, game.EndGame{UserID: userID, Reply: reply}, reply); err != nil {
		return err
	}
	c.registry.Inbox() <- registry.Remove{RoomID: roomID}

	c.mu.Lock()
	for user, room := range c.userRooms {
		if room == roomID {
			delete(c.userRooms, user)
		}
	}
	c.mu.Unlock()
	return nil
}

// ListUsers snapshots the nicknames in the caller's instance.
func (c *Coordinator) ListUsers(userID string) ([]string, error) {
	v, err := c.viewFor(userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(v.Players))
	for _, p := range v.Players {
		names = append(names, p.Nickname)
	}
	return names, nil
}

// ListRoomsAndPlayers snapshots breakout rooms and their member nicknames.
func (c *Coordinator) ListRoomsAndPlayers(userID string) (map[string][]string, error) {
	v, err := c.viewFor(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(v.Rooms))
	for roomID, room := range v.Rooms {
		names := make([]string, 0, len(room.Members))
		for _, member := range room.Members {
			names = append(names, v.Players[member].Nickname)
		}
		out[roomID] = names
	}
	return out, nil
}

func (c *Coordinator) viewFor(userID string) (game.View, error) {
	g := c.gameFor(userID)
	if g == nil {
		return game.View{}, game.ErrNotInGame
	}
	reply := make(chan game.View, 1)
	select {
	case g.Inbox() <- game.GetView{Reply: reply}:
	case <-g.Done():
		return game.View{}, game.ErrGameEnded
	}
	select {
	case v := <-reply:
		return v, nil
	case <-g.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return game.View{}, game.ErrGameEnded
		}
	}
}

// HandleDisconnect drops the transient connection mapping immediately and,
// when that was the user's last connection, marks them absent in their game
// and arms the grace timer. Disconnects are expected, never errors.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.mu.Lock()
	userID, ok := c.connections[connID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.connections, connID)
	c.userConns[userID]--
	last := c.userConns[userID] <= 0
	if last {
		delete(c.userConns, userID)
	}
	c.mu.Unlock()

	if !last {
		return
	}

	if g := c.gameFor(userID); g != nil {
		tell(g, game.Disconnect{UserID: userID, ConnID: connID})
	}

	c.mu.Lock()
	if t, ok := c.graceTimers[userID]; ok {
		t.Stop()
	}
	c.graceTimers[userID] = time.AfterFunc(c.grace, func() { c.purgeUser(userID) })
	c.mu.Unlock()

	c.log.Info("connection closed, grace timer armed",
		zap.String("user", userID), zap.Duration("grace", c.grace))
}

// purgeUser fires when the grace window lapses with no reconnect. The user
// is removed from their instance; an instance left with zero players is
// removed from the registry.
func (c *Coordinator) purgeUser(userID string) {
	c.mu.Lock()
	if c.userConns[userID] > 0 {
		// Reconnected between timer fire and now.
		c.mu.Unlock()
		return
	}
	delete(c.graceTimers, userID)
	roomID, ok := c.userRooms[userID]
	if ok {
		delete(c.userRooms, userID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	g := c.getGame(roomID)
	if g == nil {
		return
	}

	reply := make(chan int, 1)
	select {
	case g.Inbox() <- game.PurgeUser{UserID: userID, Reply: reply}:
	case <-g.Done():
		return
	}
	var remaining int
	select {
	case remaining = <-reply:
	case <-g.Done():
		select {
		case remaining = <-reply:
		default:
			// Instance torn down before the purge landed; nothing left to do.
			return
		}
	}
	c.log.Info("grace window lapsed, player purged",
		zap.String("user", userID), zap.Int("remaining", remaining))

	if remaining == 0 {
		c.registry.Inbox() <- registry.Remove{RoomID: roomID}
	}
}
