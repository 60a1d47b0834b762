package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"multiplayer/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubState struct {
	BaseState
	Secret string `json:"secret"`
	Holder string `json:"holder,omitempty"`
}

func (s *stubState) Base() *BaseState { return &s.BaseState }

func (s *stubState) Clone() State {
	cp := *s
	if s.StatusMessage != nil {
		msg := *s.StatusMessage
		cp.StatusMessage = &msg
	}
	return &cp
}

func (s *stubState) View(privileged bool) any {
	cp := *s
	if !privileged {
		cp.Secret = ""
	}
	return cp
}

func (s *stubState) Privileged() string { return s.Holder }

type stubRules struct {
	settings    Settings
	timeouts    int
	leftRosters [][]string
}

func (r *stubRules) Type() string       { return "stub" }
func (r *stubRules) Settings() Settings { return r.settings }

func (r *stubRules) NewState(*Room) State {
	return &stubState{BaseState: BaseState{IsLobby: true}}
}

func (r *stubRules) DecodeState(raw json.RawMessage) (State, error) {
	var s stubState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stubRules) HandleStart(ctx context.Context, m *Machine, room *Room, env Envelope) error {
	s := room.State.(*stubState)
	if s.IsActive {
		return Rejection("already running")
	}
	s.IsActive, s.IsLobby = true, false
	s.Secret = "rocket"
	s.Holder = env.PlayerID
	s.SetDeadline(m.Now().Add(3 * time.Second))
	s.TimeRemaining = 3
	m.StartRoomTimer(room)
	if err := m.Persist(ctx); err != nil {
		return err
	}
	m.Broadcast(room, Message{Type: "gameStarted"}, true)
	return nil
}

func (r *stubRules) HandleAction(ctx context.Context, m *Machine, room *Room, env Envelope) error {
	if room == nil {
		return ErrGameNotFound
	}
	switch env.Action {
	case "boom":
		return Rejection("boom")
	case "score":
		room.Users[env.PlayerID].Score += 10
		return m.Persist(ctx)
	}
	return nil
}

func (r *stubRules) HandleTimeout(ctx context.Context, m *Machine, room *Room) (bool, error) {
	s := room.State.(*stubState)
	if !s.IsActive {
		return false, nil
	}
	r.timeouts++
	s.IsActive, s.IsLobby = false, true
	s.Holder = ""
	s.SetDeadline(time.Time{})
	m.CancelTimer(room.ID, PurposeCountdown)
	return true, m.Persist(ctx)
}

func (r *stubRules) HandlePlayerLeave(_ context.Context, _ *Machine, room *Room, _ string) error {
	r.leftRosters = append(r.leftRosters, append([]string(nil), room.Order...))
	return nil
}

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	m     *Machine
	rules *stubRules
	host  *testutil.FakeHost
	clock *testutil.Clock
	ids   int
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{rules: &stubRules{settings: settings}, clock: testutil.NewClock(testStart)}
	h.host = testutil.NewFakeHost(h.clock)
	h.m = NewMachine(h.host, h.rules, WithClock(h.clock.Now), WithIDs(func() string {
		h.ids++
		return "room-" + string(rune('0'+h.ids))
	}))
	return h
}

func (h *harness) conn(id string) *testutil.FakeConn {
	c := testutil.NewFakeConn(id)
	h.host.Attach(c)
	h.m.OnConnect(context.Background(), c)
	return c
}

func (h *harness) send(c *testutil.FakeConn, v any) {
	b, _ := json.Marshal(v)
	h.m.OnMessage(context.Background(), c, b)
}

func (h *harness) create(c *testutil.FakeConn, player string) string {
	h.send(c, map[string]any{"action": "createGame", "gameName": "Room", "playerId": player, "playerName": player})
	rooms := h.m.Rooms()
	return rooms[len(rooms)-1].ID
}

func TestMalformedMessageRepliesToSenderOnly(t *testing.T) {
	h := newHarness(t, Settings{MinPlayers: 2})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	a.Reset()
	b.Reset()
	puts := h.host.Puts

	h.m.OnMessage(context.Background(), a, []byte("{not json"))

	require.Equal(t, []string{"error"}, a.Types())
	assert.Equal(t, "Invalid message format", a.Last("error")["error"])
	assert.Empty(t, b.Types())
	assert.Equal(t, puts, h.host.Puts)
	assert.Len(t, h.m.Room(gameID).Users, 1)
}

func TestCreateGameSeedsRosterAndBroadcasts(t *testing.T) {
	h := newHarness(t, Settings{SeatAIPlayer: true, AINames: []string{"Pixel"}})
	a := h.conn("a")
	b := h.conn("b")

	gameID := h.create(a, "alice")

	room := h.m.Room(gameID)
	require.NotNil(t, room)
	assert.Equal(t, []string{"alice", AIPlayerID}, room.Order)
	assert.Equal(t, "Pixel", room.Users[AIPlayerID].Name)
	assert.Equal(t, "alice", h.m.BoundPlayer("a"))

	for _, c := range []*testutil.FakeConn{a, b} {
		msg := c.Last("gameCreated")
		require.NotNil(t, msg)
		assert.Equal(t, gameID, msg["gameId"])
		assert.Equal(t, "Room", msg["gameName"])
		assert.Equal(t, "alice", msg["creator"])
		assert.Len(t, msg["users"], 2)
	}
	assert.NotNil(t, h.host.Stored(storageKey))
}

func TestJoinRules(t *testing.T) {
	h := newHarness(t, Settings{MaxPlayers: 2})
	a := h.conn("a")
	b := h.conn("b")
	c := h.conn("c")
	gameID := h.create(a, "alice")

	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob", "playerName": "Bob"})
	assert.Equal(t, []string{"alice", "bob"}, h.m.Room(gameID).Order)
	joined := a.Last("playerJoined")
	require.NotNil(t, joined)
	assert.Equal(t, "bob", joined["playerId"])

	puts := h.host.Puts
	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob", "playerName": "Bobby"})
	assert.Equal(t, puts, h.host.Puts, "rejoin must be a no-op")
	assert.Equal(t, "Bob", h.m.Room(gameID).Users["bob"].Name)

	c.Reset()
	a.Reset()
	h.send(c, map[string]any{"action": "join", "gameId": gameID, "playerId": "carol"})
	assert.False(t, h.m.Room(gameID).HasUser("carol"))
	state := c.Last("gameState")
	require.NotNil(t, state)
	assert.Equal(t, map[string]any{"type": "error", "message": "Game is full"}, state["notification"])
	assert.Nil(t, a.Last("gameState")["notification"], "notice goes to the acting connection only")

	c.Reset()
	h.send(c, map[string]any{"action": "join", "gameId": "missing", "playerId": "carol"})
	require.Equal(t, []string{"error"}, c.Types())
	assert.Equal(t, "Game not found", c.Last("error")["error"])
}

func TestRoundTripThroughStorage(t *testing.T) {
	h := newHarness(t, Settings{SeatAIPlayer: true, AINames: []string{"Pixel"}})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob"})
	h.send(b, map[string]any{"action": "score", "gameId": gameID, "playerId": "bob"})
	h.send(a, map[string]any{"action": "startGame", "gameId": gameID, "playerId": "alice"})

	before := h.m.Room(gameID)
	raw := h.host.Stored(storageKey)
	require.NotNil(t, raw)

	var pairs []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &pairs))
	require.Len(t, pairs, 1)
	var entry []json.RawMessage
	require.NoError(t, json.Unmarshal(pairs[0], &entry))
	var stored map[string]any
	require.NoError(t, json.Unmarshal(entry[1], &stored))
	assert.Nil(t, stored["timerInterval"])
	assert.Equal(t, []any{"alice", map[string]any{"name": "alice", "score": float64(0)}}, stored["users"].([]any)[0])

	host2 := testutil.NewFakeHost(h.clock)
	host2.Seed(storageKey, raw)
	m2 := NewMachine(host2, h.rules, WithClock(h.clock.Now))
	m2.OnConnect(context.Background(), testutil.NewFakeConn("x"))

	after := m2.Room(gameID)
	require.NotNil(t, after)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.Order, after.Order)
	assert.Equal(t, before.Users, after.Users)
	assert.Equal(t, before.State.(*stubState).BaseState.EndTime, after.State.Base().EndTime)
	assert.Equal(t, "rocket", after.State.(*stubState).Secret)
	assert.True(t, m2.TimerActive(gameID, PurposeCountdown), "countdown restarts for an active room")
}

func TestLeaveRunsHookOnPostRemovalRoster(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob"})
	a.Reset()

	h.send(b, map[string]any{"action": "leave", "gameId": gameID, "playerId": "bob"})

	require.Len(t, h.rules.leftRosters, 1)
	assert.Equal(t, []string{"alice"}, h.rules.leftRosters[0])
	assert.Equal(t, []string{"playerLeft", "gameState"}, a.Types())
	assert.Equal(t, "bob", a.Last("playerLeft")["playerId"])
}

func TestLastHumanLeavingClearsStorage(t *testing.T) {
	h := newHarness(t, Settings{SeatAIPlayer: true})
	a := h.conn("a")
	gameID := h.create(a, "alice")
	require.NotNil(t, h.host.Stored(storageKey))

	h.send(a, map[string]any{"action": "leave", "gameId": gameID, "playerId": "alice"})

	assert.Nil(t, h.m.Room(gameID))
	assert.Nil(t, h.host.Stored(storageKey))
	assert.Equal(t, 1, h.host.Deletes)
}

func TestConnectionCloseSynthesizesLeave(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	first := h.create(a, "alice")
	second := h.create(a, "alice")
	h.send(b, map[string]any{"action": "join", "gameId": first, "playerId": "bob"})
	h.send(b, map[string]any{"action": "join", "gameId": second, "playerId": "bob"})
	a.Reset()

	h.host.Detach("b")
	h.m.OnClose(context.Background(), b, 1001, "going away")

	assert.False(t, h.m.Room(first).HasUser("bob"))
	assert.False(t, h.m.Room(second).HasUser("bob"))
	assert.Equal(t, []string{"playerLeft", "gameState", "playerLeft", "gameState"}, a.Types())
}

func TestConnectionCloseKeepsPlayerWithAnotherConnection(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	a2 := h.conn("a2")
	gameID := h.create(a, "alice")
	h.send(a2, map[string]any{"action": "join", "gameId": gameID, "playerId": "alice"})

	h.host.Detach("a")
	h.m.OnClose(context.Background(), a, 1000, "")

	assert.True(t, h.m.Room(gameID).HasUser("alice"))
}

func TestSendFailureDoesNotStopDelivery(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	broken := h.conn("broken")
	c := h.conn("c")
	broken.FailSends(true)

	gameID := h.create(a, "alice")

	assert.NotNil(t, a.Last("gameCreated"))
	assert.NotNil(t, c.Last("gameCreated"))
	assert.Equal(t, gameID, c.Last("gameCreated")["gameId"])
	assert.Empty(t, broken.Types())
}

func TestPersistFailureUndoesAndSkipsBroadcast(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	a.Reset()
	b.Reset()

	h.host.PutErr = errors.New("disk full")
	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob"})
	assert.False(t, h.m.Room(gameID).HasUser("bob"))
	assert.Empty(t, a.Types())
	assert.Empty(t, b.Types())

	h.send(a, map[string]any{"action": "createGame", "gameName": "Other", "playerId": "alice"})
	assert.Len(t, h.m.Rooms(), 1)
	assert.Empty(t, a.Types())
}

func TestUnknownActionStillRebroadcasts(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	a.Reset()
	b.Reset()

	h.send(b, map[string]any{"action": "wave", "gameId": gameID})
	assert.Equal(t, []string{"gameState"}, a.Types())
	assert.Equal(t, []string{"gameState"}, b.Types())

	b.Reset()
	h.send(b, map[string]any{"action": "boom", "gameId": gameID})
	assert.Equal(t, "boom", b.Last("gameState")["notification"].(map[string]any)["message"])
}

func TestGetGamesRepliesToSenderOnly(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	a.Reset()
	b.Reset()

	h.send(b, map[string]any{"action": "getGames"})

	assert.Empty(t, a.Types())
	list := b.Last("gamesList")
	require.NotNil(t, list)
	games := list["games"].([]any)
	require.Len(t, games, 1)
	g := games[0].(map[string]any)
	assert.Equal(t, gameID, g["id"])
	assert.Equal(t, float64(1), g["playerCount"])
	assert.Equal(t, true, g["isLobby"])
	assert.Equal(t, false, g["isActive"])
	assert.Equal(t, []any{map[string]any{"id": "alice", "name": "alice"}}, g["players"])
}

func TestUsersSortedByScoreThenJoinOrder(t *testing.T) {
	room := &Room{Users: map[string]*User{}}
	room.addUser("a", "A")
	room.addUser("b", "B")
	room.addUser("c", "C")
	room.Users["c"].Score = 5
	got := SortedUsers(room)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestStateRedactedForEveryoneButPrivilegedViewer(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	b := h.conn("b")
	gameID := h.create(a, "alice")
	h.send(b, map[string]any{"action": "join", "gameId": gameID, "playerId": "bob"})
	a.Reset()
	b.Reset()

	h.send(a, map[string]any{"action": "startGame", "gameId": gameID, "playerId": "alice"})

	assert.Equal(t, "rocket", a.Last("gameStarted")["gameState"].(map[string]any)["secret"])
	assert.Equal(t, "", b.Last("gameStarted")["gameState"].(map[string]any)["secret"])
	assert.Equal(t, "rocket", a.Last("gameState")["gameState"].(map[string]any)["secret"])
	assert.Equal(t, "", b.Last("gameState")["gameState"].(map[string]any)["secret"])
}

func TestCountdownTicksAndTimesOutOnce(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	gameID := h.create(a, "alice")
	h.send(a, map[string]any{"action": "startGame", "gameId": gameID, "playerId": "alice"})
	at, ok := h.host.Alarm()
	require.True(t, ok)
	assert.Equal(t, testStart.Add(3*time.Second), at)
	a.Reset()

	h.host.Advance(context.Background(), time.Second)
	assert.Equal(t, float64(2), a.Last("gameState")["gameState"].(map[string]any)["timeRemaining"])

	h.host.Advance(context.Background(), 5*time.Second)
	assert.Equal(t, 1, h.rules.timeouts)
	assert.Equal(t, 0, h.host.PendingTimers())
	_, ok = h.host.Alarm()
	assert.False(t, ok, "alarm cleared once no deadline is pending")

	h.m.OnAlarm(context.Background())
	assert.Equal(t, 1, h.rules.timeouts, "alarm after the countdown is a no-op")
}

func TestAlarmSweepsExpiredRooms(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.conn("a")
	first := h.create(a, "alice")
	second := h.create(a, "alice")
	h.send(a, map[string]any{"action": "startGame", "gameId": first, "playerId": "alice"})
	h.clock.Advance(2 * time.Second)
	h.send(a, map[string]any{"action": "startGame", "gameId": second, "playerId": "alice"})

	h.clock.Advance(1500 * time.Millisecond)
	h.m.OnAlarm(context.Background())

	assert.Equal(t, 1, h.rules.timeouts)
	assert.False(t, h.m.Room(first).State.Base().IsActive)
	assert.True(t, h.m.Room(second).State.Base().IsActive)
	at, ok := h.host.Alarm()
	require.True(t, ok)
	assert.Equal(t, testStart.Add(5*time.Second), at)
}

func TestRemainingSeconds(t *testing.T) {
	deadline := testStart.Add(120 * time.Second)
	cases := []struct {
		now  time.Time
		want int
	}{
		{testStart, 120},
		{testStart.Add(30 * time.Second), 90},
		{testStart.Add(30*time.Second + time.Millisecond), 90},
		{deadline, 0},
		{deadline.Add(time.Second), 0},
	}
	for _, tc := range cases {
		if got := RemainingSeconds(deadline, tc.now); got != tc.want {
			t.Fatalf("RemainingSeconds(%v) = %d, want %d", tc.now.Sub(testStart), got, tc.want)
		}
	}
}
