package drawing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"multiplayer/internal/ai"
	"multiplayer/internal/config"
	"multiplayer/internal/game"
)

const GameType = "anyone-can-draw"

type Rules struct {
	cfg   config.DrawingConfig
	ai    ai.TextService
	words []string
}

var _ game.Rules = (*Rules)(nil)

type Option func(*Rules)

// WithWords replaces the word list the target word is drawn from.
func WithWords(words []string) Option {
	return func(r *Rules) {
		if len(words) > 0 {
			r.words = words
		}
	}
}

func New(cfg config.DrawingConfig, svc ai.TextService, opts ...Option) *Rules {
	if svc == nil {
		svc = ai.Disabled{}
	}
	r := &Rules{cfg: cfg, ai: svc, words: defaultWords}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Rules) Type() string { return GameType }

func (r *Rules) Settings() game.Settings {
	return game.Settings{
		MinPlayers:   r.cfg.MinPlayers,
		MaxPlayers:   r.cfg.MaxPlayers,
		SeatAIPlayer: r.cfg.AIEnabled,
		AINames:      r.cfg.AINames,
	}
}

func (r *Rules) roundSeconds() int {
	return int(r.cfg.GameDuration.Seconds())
}

func (r *Rules) NewState(*game.Room) game.State {
	return &State{
		BaseState: game.BaseState{IsLobby: true, TimeRemaining: r.roundSeconds()},
		Guesses:   []Guess{},
	}
}

func (r *Rules) DecodeState(raw json.RawMessage) (game.State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Guesses == nil {
		s.Guesses = []Guess{}
	}
	s.DrawingData = ""
	return &s, nil
}

// HandleStart opens a round drawn by the issuing player.
func (r *Rules) HandleStart(ctx context.Context, m *game.Machine, room *game.Room, env game.Envelope) error {
	st := room.State.(*State)
	if st.IsActive {
		return game.Rejection("A round is already in progress")
	}
	if !room.HasUser(env.PlayerID) {
		return game.Rejection("Join the game before starting it")
	}
	if len(room.Users) < r.cfg.MinPlayers {
		return game.Rejectf("Need at least %d players to start", r.cfg.MinPlayers)
	}

	prev := st.Clone()
	now := m.Now()
	st.IsActive, st.IsLobby = true, false
	st.TargetWord = r.words[m.Intn(len(r.words))]
	st.TimeRemaining = r.roundSeconds()
	st.Guesses = []Guess{}
	st.HasWon = false
	st.CurrentDrawer = env.PlayerID
	st.DrawingData = ""
	st.SetDeadline(now.Add(r.cfg.GameDuration))
	st.StatusMessage = game.Status("info", fmt.Sprintf("%s is drawing!", room.DisplayName(env.PlayerID)))

	m.StartRoomTimer(room)
	if err := m.Persist(ctx); err != nil {
		m.CancelTimer(room.ID, game.PurposeCountdown)
		room.State = prev
		return err
	}
	m.Logger().Info().Str("game_id", room.ID).Str("drawer", env.PlayerID).Msg("round started")
	m.Broadcast(room, game.Message{Type: "gameStarted"}, true)
	return nil
}

type guessPayload struct {
	PlayerID string `json:"playerId"`
	Guess    string `json:"guess"`
}

type drawingPayload struct {
	DrawingData string `json:"drawingData"`
}

func (r *Rules) HandleAction(ctx context.Context, m *game.Machine, room *game.Room, env game.Envelope) error {
	if room == nil {
		return game.ErrGameNotFound
	}
	switch env.Action {
	case "submitGuess":
		var p guessPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return r.submitGuess(ctx, m, room, p.PlayerID, p.Guess)
	case "updateDrawing":
		var p drawingPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return r.updateDrawing(ctx, m, room, env.ConnID, p.DrawingData)
	default:
		return nil
	}
}

// submitGuess is the single guess path for humans and the AI player.
func (r *Rules) submitGuess(ctx context.Context, m *game.Machine, room *game.Room, playerID, guess string) error {
	st := room.State.(*State)
	switch {
	case !st.IsActive:
		return game.Rejection("No round in progress")
	case !room.HasUser(playerID):
		return game.Rejection("Join the game before guessing")
	case playerID == st.CurrentDrawer:
		return game.Rejection("The drawer cannot guess")
	case st.guessedCorrectly(playerID):
		return game.Rejection("You already guessed the word")
	case strings.TrimSpace(guess) == "":
		return game.Rejection("Guess cannot be empty")
	}

	prev := st.Clone()
	prevUsers := room.CloneUsers()
	correct := normalize(guess) == normalize(st.TargetWord)
	st.Guesses = append(st.Guesses, Guess{
		PlayerID:   playerID,
		PlayerName: room.DisplayName(playerID),
		Guess:      guess,
		Timestamp:  m.Now().UnixMilli(),
		Correct:    correct,
	})
	if correct {
		r.scoreCorrectGuess(m, room, st, playerID)
	}
	if err := m.Persist(ctx); err != nil {
		room.State, room.Users = prev, prevUsers
		if prev.Base().IsActive && !m.TimerActive(room.ID, game.PurposeCountdown) {
			m.StartRoomTimer(room)
		}
		return err
	}
	return nil
}

func (r *Rules) scoreCorrectGuess(m *game.Machine, room *game.Room, st *State, playerID string) {
	if deadline, ok := st.Deadline(); ok {
		st.TimeRemaining = game.RemainingSeconds(deadline, m.Now())
	}
	multiplier := float64(st.TimeRemaining) / r.cfg.GameDuration.Seconds()

	guesser := room.Users[playerID]
	guesser.Score = round1(guesser.Score + r.cfg.CorrectGuesserScore*multiplier)

	var others []string
	for _, id := range room.Humans() {
		if id != st.CurrentDrawer {
			others = append(others, id)
		}
	}
	// The drawer's share is divided by the number of guessers, not weighted
	// by who guessed.
	if drawer, ok := room.Users[st.CurrentDrawer]; ok && len(others) > 0 {
		drawer.Score = round1(drawer.Score + r.cfg.CorrectDrawerScore*multiplier/float64(len(others)))
	}

	for _, id := range others {
		if !st.guessedCorrectly(id) {
			st.StatusMessage = game.Status("success", fmt.Sprintf("%s guessed correctly!", room.DisplayName(playerID)))
			return
		}
	}
	r.endRound(m, room, st, true)
}

func (r *Rules) updateDrawing(ctx context.Context, m *game.Machine, room *game.Room, connID, data string) error {
	st := room.State.(*State)
	if !st.IsActive {
		return game.Rejection("No round in progress")
	}
	drawer := st.CurrentDrawer
	if m.BoundPlayer(connID) != drawer {
		return game.Rejection("Only the drawer can draw")
	}
	st.DrawingData = data

	if err := r.maybeAIGuess(ctx, m, room, st, data); err != nil {
		return err
	}
	m.BroadcastDrawing(room, data, drawer)
	return nil
}

// maybeAIGuess asks the AI player for a guess when it is seated, has not
// scored this round and its cooldown has passed. The cooldown is stamped
// before the call so a failing backend is not asked on every stroke.
func (r *Rules) maybeAIGuess(ctx context.Context, m *game.Machine, room *game.Room, st *State, data string) error {
	if !r.cfg.AIEnabled || !room.HasUser(game.AIPlayerID) || st.guessedCorrectly(game.AIPlayerID) || data == "" {
		return nil
	}
	now := m.Now()
	if !room.LastAIAction.IsZero() && now.Sub(room.LastAIAction) < r.cfg.AIGuessCooldown {
		return nil
	}
	room.LastAIAction = now

	reply, err := r.ai.Complete(ctx, guessPrompt(data))
	if err != nil {
		m.Logger().Warn().Err(err).Str("game_id", room.ID).Msg("ai guess failed")
		return nil
	}
	guess := parseGuess(reply)
	if guess == "" {
		return nil
	}
	if err := r.submitGuess(ctx, m, room, game.AIPlayerID, guess); err != nil {
		if game.IsPersistError(err) {
			return err
		}
		m.Logger().Debug().Err(err).Str("game_id", room.ID).Msg("ai guess rejected")
	}
	return nil
}

// HandleTimeout ends an active round as a loss. It is a no-op once the
// round is over, so the countdown and the alarm may both fire.
func (r *Rules) HandleTimeout(ctx context.Context, m *game.Machine, room *game.Room) (bool, error) {
	st := room.State.(*State)
	if !st.IsActive {
		return false, nil
	}
	r.endRound(m, room, st, false)
	return true, m.Persist(ctx)
}

func (r *Rules) endRound(m *game.Machine, room *game.Room, st *State, won bool) {
	word := st.TargetWord
	st.IsActive, st.IsLobby = false, true
	st.TargetWord = ""
	st.TimeRemaining = r.roundSeconds()
	st.CurrentDrawer = ""
	st.SetDeadline(time.Time{})
	st.HasWon = won
	if won {
		st.StatusMessage = game.Status("success", fmt.Sprintf("Everyone guessed correctly! The word was %q", word))
	} else {
		st.StatusMessage = game.Status("failure", fmt.Sprintf("Time's up! The word was %q", word))
	}
	m.CancelTimer(room.ID, game.PurposeCountdown)
	m.Logger().Info().Str("game_id", room.ID).Bool("won", won).Msg("round ended")
}

// HandlePlayerLeave aborts the round when the drawer leaves.
func (r *Rules) HandlePlayerLeave(_ context.Context, m *game.Machine, room *game.Room, playerID string) error {
	st := room.State.(*State)
	if st.CurrentDrawer != playerID {
		return nil
	}
	st.IsActive, st.IsLobby = false, true
	st.TargetWord = ""
	st.CurrentDrawer = ""
	st.TimeRemaining = r.roundSeconds()
	st.SetDeadline(time.Time{})
	st.StatusMessage = game.Status("failure", "Game ended - drawer left the game")
	m.CancelTimer(room.ID, game.PurposeCountdown)
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
