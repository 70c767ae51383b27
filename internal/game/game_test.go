package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

func testConfig() Config {
	return Config{
		MaxRounds:         3,
		RoundLength:       time.Minute,
		MaxPlayersPerRoom: 2,
		Market:            MarketParams{A: 30, B: 1, Y: 0, Z: 6},
	}
}

func newTestGame(t *testing.T, gameType string, cfg Config) *Game {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g, err := New(ctx, zap.NewNop(), gameType, "G", "host-1", cfg)
	require.NoError(t, err)
	return g
}

func join(t *testing.T, g *Game, userID, nickname string, isHost bool) chan types.ServerMessage {
	t.Helper()
	out := make(chan types.ServerMessage, 32)
	reply := make(chan error, 1)
	g.Inbox() <- Join{UserID: userID, Nickname: nickname, ConnID: userID + "-c1", IsHost: isHost, Outbox: out, Reply: reply}
	require.NoError(t, recvErr(t, reply))
	return out
}

func submit(t *testing.T, g *Game, userID, action string) error {
	t.Helper()
	reply := make(chan error, 1)
	g.Inbox() <- SubmitMove{UserID: userID, Action: json.RawMessage(action), Reply: reply}
	return recvErr(t, reply)
}

func start(t *testing.T, g *Game, userID string) error {
	t.Helper()
	reply := make(chan error, 1)
	g.Inbox() <- StartRounds{UserID: userID, Reply: reply}
	return recvErr(t, reply)
}

func view(t *testing.T, g *Game) View {
	t.Helper()
	reply := make(chan View, 1)
	g.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for view")
		return View{}
	}
}

func recvErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
		return nil
	}
}

// recvEvent waits for a frame with the given event name, discarding
// unrelated frames (timer updates and the like) along the way.
func recvEvent(t *testing.T, ch <-chan types.ServerMessage, event string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg := <-ch:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", event)
			return types.ServerMessage{}
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan types.ServerMessage, event string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg := <-ch:
			if msg.Event == event {
				t.Fatalf("expected no %s frame, got %+v", event, msg)
			}
		case <-deadline:
			return
		}
	}
}

func TestJoin_FirstFitRoomAssignment(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)
	join(t, g, "s3", "carol", false)

	v := view(t, g)
	// Capacity 2: first two students fill G_0, the third opens G_1.
	assert.Equal(t, []string{"s1", "s2"}, v.Rooms["G_0"].Members)
	assert.Equal(t, []string{"s3"}, v.Rooms["G_1"].Members)
	assert.Equal(t, []string{"host-1"}, v.Rooms["G"].Members)

	for id, room := range v.Rooms {
		if id != "G" {
			assert.LessOrEqual(t, len(room.Members), 2)
		}
	}
}

func TestRoundResolution_AllSubmitted(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	out1 := join(t, g, "s1", "alice", false)
	out2 := join(t, g, "s2", "bob", false)

	require.NoError(t, start(t, g, "host-1"))
	recvEvent(t, out1, types.EvtRoundStart, time.Second)

	require.NoError(t, submit(t, g, "s1", "12"))
	require.NoError(t, submit(t, g, "s2", "8"))

	ended := recvEvent(t, out2, types.EvtRoundEnded, time.Second)
	payload := ended.Data.(types.RoundEndedPayload)
	assert.Equal(t, 1, payload.RoundNumber)

	results := payload.Results.(RoundResult)
	// a=30, b=1 with quantities 12 and 8 clears at price 10; z=6 gives the
	// 12-producer a profit of 48.
	assert.InDelta(t, 10.0, results["s1"].Metrics["price"], 1e-9)
	assert.InDelta(t, 48.0, results["s1"].Metrics["profit"], 1e-9)
	assert.InDelta(t, 16.0, results["s2"].Metrics["profit"], 1e-9)

	// Next round begins automatically.
	startFrame := recvEvent(t, out1, types.EvtRoundStart, time.Second)
	assert.Equal(t, 2, startFrame.Data.(types.RoundStartPayload).RoundNo)
}

func TestRoundResolution_IdempotentUnderTimerRace(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)

	require.NoError(t, start(t, g, "host-1"))
	require.NoError(t, submit(t, g, "s1", "12"))
	require.NoError(t, submit(t, g, "s2", "8"))
	recvEvent(t, out, types.EvtRoundEnded, time.Second)

	// A stale timer fire for round 1 must be a no-op: the room already
	// moved on.
	g.inbox <- timerFired{roomID: "G_0", round: 1}

	recvNoEvent(t, out, types.EvtRoundEnded, 300*time.Millisecond)
	v := view(t, g)
	assert.Equal(t, 2, v.Rooms["G_0"].Round)
	assert.Len(t, v.Rooms["G_0"].History, 1)
}

func TestTimerExpiry_ResolvesWithDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.RoundLength = 80 * time.Millisecond
	cfg.MaxRounds = 1
	g := newTestGame(t, TypeCournot, cfg)
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)

	require.NoError(t, start(t, g, "host-1"))

	ended := recvEvent(t, out, types.EvtRoundEnded, time.Second)
	results := ended.Data.(types.RoundEndedPayload).Results.(RoundResult)
	assert.InDelta(t, 0.0, results["s1"].Metrics["quantity"], 1e-9)

	v := view(t, g)
	assert.Equal(t, StateEnded, v.Rooms["G_0"].State)
}

func TestForceEnd_DefaultsNonSubmitters(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)

	require.NoError(t, start(t, g, "host-1"))
	require.NoError(t, submit(t, g, "s1", "12"))

	reply := make(chan error, 1)
	g.Inbox() <- ForceEndRound{UserID: "host-1", RoomID: "G_0", Reply: reply}
	require.NoError(t, recvErr(t, reply))

	ended := recvEvent(t, out, types.EvtRoundEnded, time.Second)
	results := ended.Data.(types.RoundEndedPayload).Results.(RoundResult)
	assert.InDelta(t, 12.0, results["s1"].Metrics["quantity"], 1e-9)
	assert.InDelta(t, 0.0, results["s2"].Metrics["quantity"], 1e-9)
}

func TestForceEnd_RequiresHost(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)
	require.NoError(t, start(t, g, "host-1"))

	reply := make(chan error, 1)
	g.Inbox() <- ForceEndRound{UserID: "s1", RoomID: "G_0", Reply: reply}
	assert.ErrorIs(t, recvErr(t, reply), ErrNotHost)
}

func TestHostCannotMove(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)
	require.NoError(t, start(t, g, "host-1"))

	assert.ErrorIs(t, submit(t, g, "host-1", "5"), ErrHostCannotMove)
}

func TestMoveBeforeStart_Rejected(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)

	assert.ErrorIs(t, submit(t, g, "s1", "5"), ErrRoundNotActive)
}

func TestMoveAfterGameEnded_Rejected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 1
	g := newTestGame(t, TypeCournot, cfg)
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)

	require.NoError(t, start(t, g, "host-1"))
	require.NoError(t, submit(t, g, "s1", "12"))
	recvEvent(t, out, types.EvtRoundEnded, time.Second)

	assert.ErrorIs(t, submit(t, g, "s1", "5"), ErrRoundClosed)
}

func TestDisconnect_DoesNotStallRound(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)

	require.NoError(t, start(t, g, "host-1"))
	require.NoError(t, submit(t, g, "s1", "12"))

	// bob drops without submitting; alice's submission is now enough.
	g.Inbox() <- Disconnect{UserID: "s2", ConnID: "s2-c1"}

	ended := recvEvent(t, out, types.EvtRoundEnded, time.Second)
	results := ended.Data.(types.RoundEndedPayload).Results.(RoundResult)
	assert.InDelta(t, 0.0, results["s2"].Metrics["quantity"], 1e-9)
}

func TestReconnect_ReplaysRoundState(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)

	require.NoError(t, start(t, g, "host-1"))
	require.NoError(t, submit(t, g, "s1", "12"))

	g.Inbox() <- Disconnect{UserID: "s1", ConnID: "s1-c1"}

	out := make(chan types.ServerMessage, 32)
	reply := make(chan error, 1)
	g.Inbox() <- Reconnect{UserID: "s1", Nickname: "alice", ConnID: "s1-c2", Outbox: out, Reply: reply}
	require.NoError(t, recvErr(t, reply))

	frame := recvEvent(t, out, types.EvtGameReconnected, time.Second)
	payload := frame.Data.(types.ReconnectedPayload)
	assert.Equal(t, "G_0", payload.RoomID)
	assert.Equal(t, TypeCournot, payload.GameType)
	assert.False(t, payload.IsHost)
	assert.Equal(t, 1, payload.RoundNo)
	assert.JSONEq(t, "12", string(payload.LastMove))
	assert.Greater(t, payload.RemainingTime, 0.0)

	v := view(t, g)
	assert.Equal(t, "G_0", v.Players["s1"].RoomID)
	assert.True(t, v.Players["s1"].Connected)
}

func TestPurge_RemovesPlayerAndReportsCount(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)

	reply := make(chan int, 1)
	g.Inbox() <- PurgeUser{UserID: "s1", Reply: reply}
	assert.Equal(t, 1, <-reply)

	g.Inbox() <- PurgeUser{UserID: "host-1", Reply: reply}
	assert.Equal(t, 0, <-reply)

	v := view(t, g)
	assert.Empty(t, v.Rooms["G_0"].Members)
}

func TestLateJoiner_EntersRunningRound(t *testing.T) {
	g := newTestGame(t, TypeCournot, testConfig())
	join(t, g, "host-1", "teacher", true)
	join(t, g, "s1", "alice", false)
	join(t, g, "s2", "bob", false)
	require.NoError(t, start(t, g, "host-1"))

	// Third student opens a fresh room, which starts immediately because
	// rounds are already running.
	out := join(t, g, "s3", "carol", false)
	frame := recvEvent(t, out, types.EvtRoundStart, time.Second)
	assert.Equal(t, 1, frame.Data.(types.RoundStartPayload).RoundNo)
}

func TestUnknownGameType(t *testing.T) {
	_, err := New(context.Background(), zap.NewNop(), "chess", "G", "host-1", testConfig())
	assert.ErrorIs(t, err, ErrUnknownGameType)
}

func TestTestGame_AutoStarts(t *testing.T) {
	g := newTestGame(t, TypeTest, testConfig())
	join(t, g, "host-1", "teacher", true)
	out := join(t, g, "s1", "alice", false)

	// No explicit start needed.
	frame := recvEvent(t, out, types.EvtRoundStart, time.Second)
	assert.Equal(t, 1, frame.Data.(types.RoundStartPayload).RoundNo)
	require.NoError(t, submit(t, g, "s1", `"ping"`))
	recvEvent(t, out, types.EvtRoundEnded, time.Second)
}

func TestMainRoomID(t *testing.T) {
	assert.Equal(t, "ABC123", MainRoomID("ABC123_2"))
	assert.Equal(t, "ABC123", MainRoomID("ABC123"))
}
