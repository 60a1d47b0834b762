package game

import (
	"encoding/json"
	"fmt"
	"time"
)

const AIPlayerID = "ai-player"

type StatusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func Status(kind, msg string) *StatusMessage {
	return &StatusMessage{Type: kind, Message: msg}
}

// BaseState holds the phase fields every game shares. EndTime is a unix
// millisecond deadline, zero when no deadline is armed.
type BaseState struct {
	IsActive      bool           `json:"isActive"`
	IsLobby       bool           `json:"isLobby"`
	TimeRemaining int            `json:"timeRemaining"`
	EndTime       int64          `json:"endTime,omitempty"`
	StatusMessage *StatusMessage `json:"statusMessage,omitempty"`
}

func (b *BaseState) Deadline() (time.Time, bool) {
	if b.EndTime == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(b.EndTime), true
}

func (b *BaseState) SetDeadline(t time.Time) {
	if t.IsZero() {
		b.EndTime = 0
		return
	}
	b.EndTime = t.UnixMilli()
}

// State is the game-specific variant stored on a room.
type State interface {
	Base() *BaseState
	// Clone returns a deep copy sharing no mutable memory with the receiver.
	Clone() State
	// View is the broadcast shape. privileged is true only for connections
	// bound to Privileged().
	View(privileged bool) any
	Privileged() string
}

type User struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Room struct {
	ID    string
	Name  string
	Users map[string]*User
	// Order keeps player ids in join order.
	Order        []string
	State        State
	LastAIAction time.Time
}

func (r *Room) HasUser(id string) bool {
	_, ok := r.Users[id]
	return ok
}

func (r *Room) DisplayName(id string) string {
	if u, ok := r.Users[id]; ok {
		return u.Name
	}
	return "Unknown Player"
}

// Humans returns member ids in join order, without the AI player.
func (r *Room) Humans() []string {
	out := make([]string, 0, len(r.Order))
	for _, id := range r.Order {
		if id != AIPlayerID {
			out = append(out, id)
		}
	}
	return out
}

func (r *Room) addUser(id, name string) {
	r.Users[id] = &User{Name: name}
	r.Order = append(r.Order, id)
}

func (r *Room) removeUser(id string) (*User, int) {
	u, ok := r.Users[id]
	if !ok {
		return nil, -1
	}
	delete(r.Users, id)
	for i, v := range r.Order {
		if v == id {
			r.Order = append(r.Order[:i], r.Order[i+1:]...)
			return u, i
		}
	}
	return u, -1
}

func (r *Room) restoreUser(id string, u *User, pos int) {
	r.Users[id] = u
	if pos < 0 || pos > len(r.Order) {
		r.Order = append(r.Order, id)
		return
	}
	r.Order = append(r.Order[:pos], append([]string{id}, r.Order[pos:]...)...)
}

// CloneUsers deep-copies the roster.
func (r *Room) CloneUsers() map[string]*User {
	out := make(map[string]*User, len(r.Users))
	for id, u := range r.Users {
		cp := *u
		out[id] = &cp
	}
	return out
}

// userEntry serializes as a [playerId, {name, score}] pair.
type userEntry struct {
	ID   string
	User User
}

func (e userEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.User})
}

func (e *userEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("user entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.User)
}

type storedRoom struct {
	Name          string          `json:"name"`
	Users         []userEntry     `json:"users"`
	GameState     json.RawMessage `json:"gameState"`
	LastAIAction  int64           `json:"lastAIAction,omitempty"`
	TimerInterval *int            `json:"timerInterval"`
}

// roomEntry serializes as a [roomId, storedRoom] pair.
type roomEntry struct {
	ID   string
	Room storedRoom
}

func (e roomEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Room})
}

func (e *roomEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("room entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Room)
}

func encodeRooms(rooms []*Room) ([]byte, error) {
	entries := make([]roomEntry, 0, len(rooms))
	for _, r := range rooms {
		gs, err := json.Marshal(r.State)
		if err != nil {
			return nil, fmt.Errorf("encode room %s: %w", r.ID, err)
		}
		users := make([]userEntry, 0, len(r.Order))
		for _, id := range r.Order {
			users = append(users, userEntry{ID: id, User: *r.Users[id]})
		}
		var lastAI int64
		if !r.LastAIAction.IsZero() {
			lastAI = r.LastAIAction.UnixMilli()
		}
		entries = append(entries, roomEntry{ID: r.ID, Room: storedRoom{
			Name:         r.Name,
			Users:        users,
			GameState:    gs,
			LastAIAction: lastAI,
		}})
	}
	return json.Marshal(entries)
}

func decodeRooms(raw []byte, decode func(json.RawMessage) (State, error)) ([]*Room, error) {
	var entries []roomEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	rooms := make([]*Room, 0, len(entries))
	for _, e := range entries {
		st, err := decode(e.Room.GameState)
		if err != nil {
			return nil, fmt.Errorf("decode room %s: %w", e.ID, err)
		}
		room := &Room{
			ID:    e.ID,
			Name:  e.Room.Name,
			Users: make(map[string]*User, len(e.Room.Users)),
			State: st,
		}
		for _, u := range e.Room.Users {
			if _, dup := room.Users[u.ID]; dup {
				continue
			}
			user := u.User
			room.Users[u.ID] = &user
			room.Order = append(room.Order, u.ID)
		}
		if e.Room.LastAIAction > 0 {
			room.LastAIAction = time.UnixMilli(e.Room.LastAIAction)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
