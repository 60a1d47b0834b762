package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"multiplayer/internal/actor"
	"multiplayer/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const storageKey = "games"

// Host is the slice of the actor context the machine needs.
type Host interface {
	Connections() []actor.Conn
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	DeleteAll(ctx context.Context) error
	SetAlarm(ctx context.Context, at time.Time) error
	DeleteAlarm(ctx context.Context) error
	Schedule(d time.Duration, fn func(context.Context)) (cancel func())
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(m *Machine) {
		if newID != nil {
			m.newID = newID
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// Machine is the generic room lifecycle for one actor context: roster,
// connection bindings, persistence, timers and broadcast. Game specifics
// come from Rules.
type Machine struct {
	host  Host
	rules Rules
	now   func() time.Time
	newID func() string
	log   zerolog.Logger

	loaded   bool
	rooms    map[string]*Room
	order    []string
	bindings map[string]string
	timers   *timerArena
	alarmAt  time.Time

	// notice is the rejection raised while handling the current message.
	notice *notice
}

type notice struct {
	connID  string
	message string
}

var _ actor.Handler = (*Machine)(nil)

func NewMachine(host Host, rules Rules, opts ...Option) *Machine {
	m := &Machine{
		host:     host,
		rules:    rules,
		now:      time.Now,
		newID:    store.NewID,
		log:      log.With().Str("game_type", rules.Type()).Logger(),
		rooms:    map[string]*Room{},
		bindings: map[string]string{},
		timers:   newTimerArena(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Now() time.Time { return m.now() }

func (m *Machine) Logger() *zerolog.Logger { return &m.log }

func (m *Machine) Room(id string) *Room { return m.rooms[id] }

// Rooms returns rooms in creation order.
func (m *Machine) Rooms() []*Room {
	out := make([]*Room, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rooms[id])
	}
	return out
}

// BoundPlayer returns the player id bound to a connection.
func (m *Machine) BoundPlayer(connID string) string { return m.bindings[connID] }

func (m *Machine) OnConnect(ctx context.Context, conn actor.Conn) {
	if err := m.ensureLoaded(ctx); err != nil {
		m.log.Error().Err(err).Str("conn_id", conn.ID()).Msg("load rooms on connect")
	}
}

func (m *Machine) OnMessage(ctx context.Context, conn actor.Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		messagesTotal.WithLabelValues(m.rules.Type(), "malformed").Inc()
		m.sendTo(conn, errorMessage{Type: "error", Error: "Invalid message format"})
		return
	}
	env.ConnID = conn.ID()
	env.Raw = raw
	messagesTotal.WithLabelValues(m.rules.Type(), actionLabel(env.Action)).Inc()

	if err := m.ensureLoaded(ctx); err != nil {
		m.log.Error().Err(err).Str("action", env.Action).Msg("load rooms")
		return
	}

	m.notice = nil
	defer func() { m.notice = nil }()

	err := m.dispatch(ctx, conn, env)
	if err != nil {
		if IsPersistError(err) {
			m.log.Error().Err(err).Str("action", env.Action).Str("game_id", env.GameID).Msg("action aborted")
			return
		}
		m.log.Debug().Err(err).Str("action", env.Action).Str("game_id", env.GameID).Msg("action rejected")
		m.notice = &notice{connID: conn.ID(), message: noticeText(err)}
	}

	if env.GameID == "" {
		return
	}
	room := m.rooms[env.GameID]
	if room == nil {
		if m.notice != nil {
			m.sendTo(conn, errorMessage{Type: "error", Error: m.notice.message})
		}
		return
	}
	m.BroadcastState(room)
}

func (m *Machine) dispatch(ctx context.Context, conn actor.Conn, env Envelope) error {
	switch env.Action {
	case "createGame":
		_, err := m.createGame(ctx, conn, env)
		return err
	case "getGames":
		m.sendTo(conn, gamesListMessage{Type: "gamesList", Games: m.gamesList()})
		return nil
	case "join":
		return m.join(ctx, conn, env)
	case "leave":
		return m.leave(ctx, env.GameID, env.PlayerID)
	case "startGame":
		room := m.rooms[env.GameID]
		if room == nil {
			return ErrGameNotFound
		}
		return m.rules.HandleStart(ctx, m, room, env)
	default:
		return m.rules.HandleAction(ctx, m, m.rooms[env.GameID], env)
	}
}

// OnClose synthesizes a leave for every room of the bound player, unless
// another open connection is still bound to the same player.
func (m *Machine) OnClose(ctx context.Context, conn actor.Conn, code int, reason string) {
	playerID, ok := m.bindings[conn.ID()]
	delete(m.bindings, conn.ID())
	if !ok {
		return
	}
	for _, id := range m.bindings {
		if id == playerID {
			return
		}
	}
	if err := m.ensureLoaded(ctx); err != nil {
		m.log.Error().Err(err).Msg("load rooms on close")
		return
	}
	for _, room := range m.Rooms() {
		if !room.HasUser(playerID) {
			continue
		}
		if err := m.leave(ctx, room.ID, playerID); err != nil {
			m.log.Warn().Err(err).Str("game_id", room.ID).Str("player_id", playerID).Int("code", code).Str("reason", reason).Msg("leave on close")
			continue
		}
		if r := m.rooms[room.ID]; r != nil {
			m.BroadcastState(r)
		}
	}
}

// OnAlarm runs the timeout hook of every room whose deadline has passed,
// then persists, or clears storage when no room is left.
func (m *Machine) OnAlarm(ctx context.Context) {
	if err := m.ensureLoaded(ctx); err != nil {
		m.log.Error().Err(err).Msg("load rooms on alarm")
		return
	}
	m.alarmAt = time.Time{}
	now := m.now()
	for _, room := range m.Rooms() {
		deadline, ok := room.State.Base().Deadline()
		if !ok || now.Before(deadline) {
			continue
		}
		m.timeout(ctx, room)
	}
	if err := m.Persist(ctx); err != nil {
		m.log.Error().Err(err).Msg("persist after alarm")
	}
}

// Timeout runs the timeout hook for one room and broadcasts when it changed
// anything.
func (m *Machine) Timeout(ctx context.Context, roomID string) {
	if room := m.rooms[roomID]; room != nil {
		m.timeout(ctx, room)
	}
}

func (m *Machine) timeout(ctx context.Context, room *Room) {
	changed, err := m.rules.HandleTimeout(ctx, m, room)
	if err != nil {
		m.log.Error().Err(err).Str("game_id", room.ID).Msg("timeout")
		return
	}
	if changed {
		m.BroadcastState(room)
	}
}

// Intn is the random source for games.
func (m *Machine) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

func noticeText(err error) string {
	var rej Rejection
	if errors.As(err, &rej) {
		return string(rej)
	}
	return "Action failed"
}

func actionLabel(action string) string {
	switch action {
	case "createGame", "getGames", "join", "leave", "startGame":
		return action
	default:
		return "game"
	}
}
