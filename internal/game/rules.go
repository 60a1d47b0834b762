package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Rejection is a validation failure reported to the acting connection only.
type Rejection string

var ErrGameNotFound error = Rejection("Game not found")

func (r Rejection) Error() string { return string(r) }

func Rejectf(format string, args ...any) error {
	return Rejection(fmt.Sprintf(format, args...))
}

// PersistError aborts the in-flight handler: no broadcast follows it.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist rooms: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Settings are the roster limits shared by every game type.
type Settings struct {
	MinPlayers int
	MaxPlayers int
	// SeatAIPlayer adds the AI pseudo-player to every new room.
	SeatAIPlayer bool
	AINames      []string
}

// Envelope is a decoded client message. Raw keeps the full payload for
// game-specific fields.
type Envelope struct {
	Action   string `json:"action"`
	GameID   string `json:"gameId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`

	ConnID string          `json:"-"`
	Raw    json.RawMessage `json:"-"`
}

func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return Rejection("Invalid payload")
	}
	return nil
}

// Rules are the hooks a concrete game plugs into the Machine. Hooks that
// change state persist through Machine.Persist before they broadcast.
type Rules interface {
	Type() string
	Settings() Settings
	NewState(room *Room) State
	// DecodeState restores a persisted state with transient fields reset.
	DecodeState(raw json.RawMessage) (State, error)

	HandleStart(ctx context.Context, m *Machine, room *Room, env Envelope) error
	// HandleAction receives every non-generic action. room is nil when the
	// envelope names no known room.
	HandleAction(ctx context.Context, m *Machine, room *Room, env Envelope) error
	// HandleTimeout must be idempotent; it reports whether it changed state.
	HandleTimeout(ctx context.Context, m *Machine, room *Room) (bool, error)
	// HandlePlayerLeave runs after the player left room.Users.
	HandlePlayerLeave(ctx context.Context, m *Machine, room *Room, playerID string) error
}
