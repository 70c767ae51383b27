// Package game implements the per-instance session engine: player
// membership, breakout-room assignment, round timers and round resolution.
//
// Each Game runs one loop goroutine that owns every breakout room of the
// instance. All mutations arrive as messages on the inbox, so mutations to
// a room are serialized by construction; separate instances run fully
// concurrently.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

type Msg interface{ isGameMsg() }

// Join attaches a first-time participant. Hosts land in the main room;
// students are placed into the first breakout room with spare capacity, in
// creation order, or a fresh one when all are full.
type Join struct {
	UserID   string
	Nickname string
	ConnID   string
	IsHost   bool
	Outbox   chan types.ServerMessage
	Reply    chan error
}

// Reconnect rebinds a known participant to a new connection and replays the
// last-known round state to it.
type Reconnect struct {
	UserID   string
	Nickname string
	ConnID   string
	Outbox   chan types.ServerMessage
	Reply    chan error
}

// SubmitMove records a decision for the current round.
type SubmitMove struct {
	UserID string
	Action json.RawMessage
	Reply  chan error
}

// Disconnect marks a participant provisionally absent. Room membership and
// any in-flight timer are untouched.
type Disconnect struct {
	UserID string
	ConnID string
}

// StartRounds begins round one in every forming breakout room (host only).
type StartRounds struct {
	UserID string
	Reply  chan error
}

// ForceEndRound short-circuits the round timer for one room (host only).
type ForceEndRound struct {
	UserID string
	RoomID string
	Reply  chan error
}

// ForceEndAll short-circuits every active round (host only).
type ForceEndAll struct {
	UserID string
	Reply  chan error
}

// EndGame stops all timers and marks every room ended (host only). The
// coordinator removes the instance from the registry afterwards.
type EndGame struct {
	UserID string
	Reply  chan error
}

// PurgeUser removes a participant for good after the disconnect grace
// window lapses. Replies with the remaining player count.
type PurgeUser struct {
	UserID string
	Reply  chan int
}

// GetView snapshots internal state without data races (tests, list events).
type GetView struct {
	Reply chan View
}

type Shutdown struct{}

// timerFired is posted by a room's countdown. The round number pins the
// fire to the round it was armed for, so stale fires are dropped.
type timerFired struct {
	roomID string
	round  int
}

func (Join) isGameMsg()          {}
func (Reconnect) isGameMsg()     {}
func (SubmitMove) isGameMsg()    {}
func (Disconnect) isGameMsg()    {}
func (StartRounds) isGameMsg()   {}
func (ForceEndRound) isGameMsg() {}
func (ForceEndAll) isGameMsg()   {}
func (EndGame) isGameMsg()       {}
func (PurgeUser) isGameMsg()     {}
func (GetView) isGameMsg()       {}
func (Shutdown) isGameMsg()      {}
func (timerFired) isGameMsg()    {}

type PlayerView struct {
	Nickname  string
	Role      Role
	Connected bool
	RoomID    string
	HasMove   bool
}

type RoomView struct {
	Members []string
	Round   int
	State   RoomState
	History map[int]RoundResult
}

type View struct {
	RoomID   string
	GameType string
	HostID   string
	Started  bool
	Players  map[string]PlayerView
	Rooms    map[string]RoomView
}

// Game is one live instance. ID, HostID and Type are immutable after New;
// everything else belongs to the loop goroutine.
type Game struct {
	ID     string
	HostID string

	cfg   Config
	rules Rules
	log   *zap.Logger

	inbox           chan Msg
	players         map[string]*Participant
	rooms           map[string]*Room
	roomOrder       []string // breakout rooms, creation order
	memberRoom      map[string]string
	breakoutCounter int
	started         bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs and starts a game instance. Fails with ErrUnknownGameType
// for a gameType outside the closed variant set.
func New(parent context.Context, log *zap.Logger, gameType, roomID, hostUserID string, cfg Config) (*Game, error) {
	rules, err := rulesFor(gameType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, gameType)
	}

	ctx, cancel := context.WithCancel(parent)
	g := &Game{
		ID:         roomID,
		HostID:     hostUserID,
		cfg:        cfg,
		rules:      rules,
		log:        log.With(zap.String("room", roomID), zap.String("gameType", gameType)),
		inbox:      make(chan Msg, 64),
		players:    make(map[string]*Participant),
		rooms:      map[string]*Room{roomID: newRoom(roomID, true)},
		memberRoom: make(map[string]string),
		started:    rules.AutoStart(),
		ctx:        ctx,
		cancel:     cancel,
	}
	go g.loop()
	return g, nil
}

func (g *Game) Inbox() chan<- Msg { return g.inbox }

// Done is closed once the loop has shut down. The loop exits without
// draining its inbox, so callers awaiting a reply must select on Done or a
// teardown racing their request would strand them forever.
func (g *Game) Done() <-chan struct{} { return g.ctx.Done() }

// Type returns the variant name.
func (g *Game) Type() string { return g.rules.Type() }

func (g *Game) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case <-ticker.C:
			g.broadcastTimers()

		case m := <-g.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- g.handleJoin(msg)
			case Reconnect:
				msg.Reply <- g.handleReconnect(msg)
			case SubmitMove:
				msg.Reply <- g.handleMove(msg)
			case Disconnect:
				g.handleDisconnect(msg)
			case StartRounds:
				msg.Reply <- g.handleStart(msg.UserID)
			case ForceEndRound:
				msg.Reply <- g.handleForceEnd(msg.UserID, msg.RoomID)
			case ForceEndAll:
				msg.Reply <- g.handleForceEndAll(msg.UserID)
			case EndGame:
				msg.Reply <- g.handleEndGame(msg.UserID)
			case PurgeUser:
				msg.Reply <- g.handlePurge(msg.UserID)
			case GetView:
				msg.Reply <- g.view()
			case timerFired:
				g.handleTimerFired(msg)
			case Shutdown:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Game) handleJoin(msg Join) error {
	if _, ok := g.players[msg.UserID]; ok {
		// Same user joining again is a reconnect in disguise.
		return g.handleReconnect(Reconnect{
			UserID:   msg.UserID,
			Nickname: msg.Nickname,
			ConnID:   msg.ConnID,
			Outbox:   msg.Outbox,
		})
	}

	role := RoleStudent
	if msg.IsHost {
		role = RoleHost
	}
	p := &Participant{
		UserID:    msg.UserID,
		Nickname:  msg.Nickname,
		Role:      role,
		ConnID:    msg.ConnID,
		Connected: true,
		outbox:    msg.Outbox,
	}
	g.players[msg.UserID] = p

	var room *Room
	if msg.IsHost {
		room = g.rooms[g.ID]
	} else {
		room = g.assignRoom()
	}
	room.Members = append(room.Members, msg.UserID)
	g.memberRoom[msg.UserID] = room.ID

	g.log.Info("player joined",
		zap.String("user", msg.UserID),
		zap.String("nickname", msg.Nickname),
		zap.String("breakout", room.ID),
		zap.String("role", string(role)))

	g.broadcastRoom(room, types.ServerMessage{
		Event: types.EvtPlayerConnect,
		Data:  types.PlayerConnectPayload{Message: msg.Nickname + " connected"},
	})

	// Rounds already running (or no lobby phase at all): the new room, or a
	// late joiner's room, goes straight into round one.
	if g.started && !room.Main && room.State == StateForming {
		g.startRound(room, 1)
	}
	return nil
}

// assignRoom picks the first breakout room with spare capacity, in creation
// order, opening a new one when all are full. First-fit keeps rooms dense
// instead of fragmenting players across many half-empty rooms.
func (g *Game) assignRoom() *Room {
	for _, id := range g.roomOrder {
		r := g.rooms[id]
		if r.State != StateEnded && len(r.Members) < g.cfg.MaxPlayersPerRoom {
			return r
		}
	}
	id := fmt.Sprintf("%s_%d", g.ID, g.breakoutCounter)
	g.breakoutCounter++
	r := newRoom(id, false)
	g.rooms[id] = r
	g.roomOrder = append(g.roomOrder, id)
	g.log.Info("opened breakout room", zap.String("breakout", id))
	return r
}

func (g *Game) handleReconnect(msg Reconnect) error {
	p, ok := g.players[msg.UserID]
	if !ok {
		return ErrNotInGame
	}
	p.ConnID = msg.ConnID
	p.Connected = true
	p.outbox = msg.Outbox
	if msg.Nickname != "" {
		p.Nickname = msg.Nickname
	}

	room := g.rooms[g.memberRoom[msg.UserID]]
	payload := types.ReconnectedPayload{
		RoomID:   room.ID,
		GameType: g.rules.Type(),
		IsHost:   p.Role == RoleHost,
		RoundNo:  room.Round,
	}
	payload.RemainingTime = room.remaining(time.Now()).Seconds()
	if p.Decision != nil {
		payload.LastMove = p.Decision.Raw
	}
	p.send(types.ServerMessage{Event: types.EvtGameReconnected, Data: payload})

	g.log.Info("player reconnected",
		zap.String("user", msg.UserID), zap.String("breakout", room.ID))
	return nil
}

func (g *Game) handleMove(msg SubmitMove) error {
	p, ok := g.players[msg.UserID]
	if !ok {
		return ErrNotInGame
	}
	if p.Role == RoleHost {
		g.log.Debug("host tried to move", zap.String("user", msg.UserID))
		return ErrHostCannotMove
	}
	room := g.rooms[g.memberRoom[msg.UserID]]
	switch room.State {
	case StateRoundActive:
	case StateRoundResolving, StateEnded:
		return ErrRoundClosed
	default:
		return ErrRoundNotActive
	}

	d, err := g.rules.ParseDecision(msg.Action)
	if err != nil {
		return err
	}
	p.Decision = &d
	p.Ready = true

	g.log.Debug("move recorded",
		zap.String("user", msg.UserID), zap.Int("round", room.Round))

	if g.roundComplete(room) {
		g.resolveRound(room, "all submitted")
	}
	return nil
}

func (g *Game) handleDisconnect(msg Disconnect) {
	p, ok := g.players[msg.UserID]
	if !ok {
		return
	}
	p.Connected = false
	p.outbox = nil

	g.log.Info("player disconnected", zap.String("user", msg.UserID))

	// A disconnected non-submitter no longer counts toward completion, so
	// their absence must not stall the round.
	room := g.rooms[g.memberRoom[msg.UserID]]
	if room.State == StateRoundActive && g.roundComplete(room) {
		g.resolveRound(room, "all submitted")
	}
}

func (g *Game) handleStart(userID string) error {
	if userID != g.HostID {
		return ErrNotHost
	}
	g.started = true
	for _, id := range g.roomOrder {
		if r := g.rooms[id]; r.State == StateForming {
			g.startRound(r, 1)
		}
	}
	return nil
}

func (g *Game) handleForceEnd(userID, roomID string) error {
	if userID != g.HostID {
		return ErrNotHost
	}
	room, ok := g.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if room.State != StateRoundActive {
		return ErrRoundNotActive
	}
	g.resolveRound(room, "host force-end")
	return nil
}

func (g *Game) handleForceEndAll(userID string) error {
	if userID != g.HostID {
		return ErrNotHost
	}
	for _, id := range g.roomOrder {
		if r := g.rooms[id]; r.State == StateRoundActive {
			g.resolveRound(r, "host force-end")
		}
	}
	return nil
}

func (g *Game) handleEndGame(userID string) error {
	if userID != g.HostID {
		return ErrNotHost
	}
	for _, r := range g.rooms {
		r.stopTimer()
		r.State = StateEnded
	}
	g.log.Info("game ended by host")
	return nil
}

func (g *Game) handlePurge(userID string) int {
	if p, ok := g.players[userID]; ok {
		room := g.rooms[g.memberRoom[userID]]
		room.removeMember(userID)
		delete(g.memberRoom, userID)
		delete(g.players, userID)
		g.log.Info("purged player after grace period",
			zap.String("user", userID), zap.String("nickname", p.Nickname))

		if room.State == StateRoundActive && g.roundComplete(room) {
			g.resolveRound(room, "all submitted")
		}
	}
	return len(g.players)
}

func (g *Game) handleTimerFired(msg timerFired) {
	room, ok := g.rooms[msg.roomID]
	if !ok {
		return
	}
	// Idempotent resolution guard: the fire only counts if the room is
	// still in the round it was armed for. "All submitted" winning the
	// race makes this a no-op.
	if room.State != StateRoundActive || room.Round != msg.round {
		return
	}
	g.resolveRound(room, "timer expired")
}

// roundComplete reports whether every member who can still act is ready.
// Disconnected non-submitters are excluded; a room with nobody connected
// never completes by submission (the timer settles it).
func (g *Game) roundComplete(room *Room) bool {
	anyConnected := false
	for _, userID := range room.Members {
		p := g.players[userID]
		if !p.Connected {
			continue
		}
		anyConnected = true
		if !p.Ready {
			return false
		}
	}
	return anyConnected
}

func (g *Game) startRound(room *Room, n int) {
	room.stopTimer()
	room.Round = n
	room.State = StateRoundActive
	room.deadline = time.Now().Add(g.cfg.RoundLength)

	roomID, round := room.ID, n
	room.timer = time.AfterFunc(g.cfg.RoundLength, func() {
		select {
		case g.inbox <- timerFired{roomID: roomID, round: round}:
		case <-g.ctx.Done():
		}
	})

	g.broadcastRoom(room, types.ServerMessage{
		Event: types.EvtRoundStart,
		Data: types.RoundStartPayload{
			RoundNo:     n,
			RoundLength: g.cfg.RoundLength.Seconds(),
		},
	})
	g.log.Info("round started", zap.String("breakout", room.ID), zap.Int("round", n))
}

func (g *Game) resolveRound(room *Room, reason string) {
	if room.State != StateRoundActive {
		return
	}
	room.stopTimer()
	room.State = StateRoundResolving

	decisions := make(map[string]Decision, len(room.Members))
	for _, userID := range room.Members {
		p := g.players[userID]
		if p.Decision != nil {
			decisions[userID] = *p.Decision
		} else {
			decisions[userID] = g.rules.DefaultDecision()
		}
	}

	result := g.rules.Resolve(g.cfg, decisions)
	room.History[room.Round] = result

	g.broadcastRoom(room, types.ServerMessage{
		Event: types.EvtRoundEnded,
		Data:  types.RoundEndedPayload{RoundNumber: room.Round, Results: result},
	})
	g.log.Info("round resolved",
		zap.String("breakout", room.ID),
		zap.Int("round", room.Round),
		zap.String("reason", reason))

	for _, userID := range room.Members {
		p := g.players[userID]
		p.Decision = nil
		p.Ready = false
	}

	if room.Round >= g.cfg.MaxRounds {
		room.State = StateEnded
		g.log.Info("breakout room finished", zap.String("breakout", room.ID))
		return
	}
	g.startRound(room, room.Round+1)
}

// broadcastRoom fans a frame out to every connected member of the room and
// to the host, who observes all breakout rooms.
func (g *Game) broadcastRoom(room *Room, msg types.ServerMessage) {
	for _, userID := range room.Members {
		g.players[userID].send(msg)
	}
	if !room.hasMember(g.HostID) {
		if host, ok := g.players[g.HostID]; ok {
			host.send(msg)
		}
	}
}

func (g *Game) broadcastTimers() {
	now := time.Now()
	for _, id := range g.roomOrder {
		room := g.rooms[id]
		if room.State != StateRoundActive {
			continue
		}
		g.broadcastRoom(room, types.ServerMessage{
			Event: types.EvtTimerUpdate,
			Data: types.TimerUpdatePayload{
				RoomID:        room.ID,
				RemainingTime: room.remaining(now).Seconds(),
				Active:        true,
			},
		})
	}
}

func (g *Game) view() View {
	v := View{
		RoomID:   g.ID,
		GameType: g.rules.Type(),
		HostID:   g.HostID,
		Started:  g.started,
		Players:  make(map[string]PlayerView, len(g.players)),
		Rooms:    make(map[string]RoomView, len(g.rooms)),
	}
	for id, p := range g.players {
		v.Players[id] = PlayerView{
			Nickname:  p.Nickname,
			Role:      p.Role,
			Connected: p.Connected,
			RoomID:    g.memberRoom[id],
			HasMove:   p.Decision != nil,
		}
	}
	for id, r := range g.rooms {
		members := make([]string, len(r.Members))
		copy(members, r.Members)
		history := make(map[int]RoundResult, len(r.History))
		for n, res := range r.History {
			history[n] = res
		}
		v.Rooms[id] = RoomView{Members: members, Round: r.Round, State: r.State, History: history}
	}
	return v
}

func (g *Game) shutdown() {
	for _, r := range g.rooms {
		r.stopTimer()
	}
	g.cancel()
}
