package game

import (
	"context"
	"strings"

	"multiplayer/internal/actor"
)

type createGamePayload struct {
	GameName   string `json:"gameName"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type joinPayload struct {
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func (m *Machine) createGame(ctx context.Context, conn actor.Conn, env Envelope) (string, error) {
	var p createGamePayload
	if err := env.Decode(&p); err != nil {
		return "", err
	}
	p.PlayerID = strings.TrimSpace(p.PlayerID)
	if p.PlayerID == "" {
		return "", Rejection("playerId is required")
	}
	if p.PlayerID == AIPlayerID {
		return "", Rejection("That player id is reserved")
	}
	name := strings.TrimSpace(p.GameName)
	if name == "" {
		name = "Untitled Game"
	}

	room := &Room{ID: m.newID(), Name: name, Users: map[string]*User{}}
	room.addUser(p.PlayerID, playerName(p.PlayerName, p.PlayerID))
	settings := m.rules.Settings()
	if settings.SeatAIPlayer {
		room.addUser(AIPlayerID, m.aiName(settings.AINames))
	}
	room.State = m.rules.NewState(room)

	m.rooms[room.ID] = room
	m.order = append(m.order, room.ID)
	if err := m.Persist(ctx); err != nil {
		m.dropRoom(room.ID)
		return "", err
	}
	m.bindings[conn.ID()] = p.PlayerID

	m.log.Info().Str("game_id", room.ID).Str("player_id", p.PlayerID).Msg("game created")
	m.Broadcast(room, Message{Type: "gameCreated", Creator: p.PlayerID}, true)
	return room.ID, nil
}

func (m *Machine) join(ctx context.Context, conn actor.Conn, env Envelope) error {
	var p joinPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	room := m.rooms[p.GameID]
	if room == nil {
		return ErrGameNotFound
	}
	p.PlayerID = strings.TrimSpace(p.PlayerID)
	if p.PlayerID == "" {
		return Rejection("playerId is required")
	}
	if p.PlayerID == AIPlayerID {
		return Rejection("That player id is reserved")
	}
	if room.HasUser(p.PlayerID) {
		m.bindings[conn.ID()] = p.PlayerID
		return nil
	}
	if limit := m.rules.Settings().MaxPlayers; limit > 0 && len(room.Users) >= limit {
		return Rejection("Game is full")
	}

	name := playerName(p.PlayerName, p.PlayerID)
	room.addUser(p.PlayerID, name)
	if err := m.Persist(ctx); err != nil {
		room.removeUser(p.PlayerID)
		return err
	}
	m.bindings[conn.ID()] = p.PlayerID
	m.Broadcast(room, Message{Type: "playerJoined", PlayerID: p.PlayerID, PlayerName: name}, false)
	return nil
}

// leave removes the player, runs the leave hook on the post-removal roster,
// persists and announces playerLeft. A room left without human players is
// dropped.
func (m *Machine) leave(ctx context.Context, gameID, playerID string) error {
	room := m.rooms[gameID]
	if room == nil || !room.HasUser(playerID) {
		return nil
	}
	prevState := room.State.Clone()
	prevUsers := room.CloneUsers()
	prevOrder := append([]string(nil), room.Order...)

	room.removeUser(playerID)
	if err := m.rules.HandlePlayerLeave(ctx, m, room, playerID); err != nil {
		room.State, room.Users, room.Order = prevState, prevUsers, prevOrder
		return err
	}
	empty := len(room.Humans()) == 0
	if empty {
		m.dropRoom(room.ID)
	}
	if err := m.Persist(ctx); err != nil {
		if empty {
			m.rooms[room.ID] = room
			m.order = append(m.order, room.ID)
		}
		room.State, room.Users, room.Order = prevState, prevUsers, prevOrder
		return err
	}
	m.log.Info().Str("game_id", room.ID).Str("player_id", playerID).Bool("room_closed", empty).Msg("player left")
	m.broadcastTo(m.host.Connections(), room, Message{Type: "playerLeft", PlayerID: playerID}, false)
	return nil
}

func (m *Machine) dropRoom(id string) {
	delete(m.rooms, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.timers.cancelRoom(id)
}

type gameSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	PlayerCount int            `json:"playerCount"`
	Players     []playerSketch `json:"players"`
	IsLobby     bool           `json:"isLobby"`
	IsActive    bool           `json:"isActive"`
}

type playerSketch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (m *Machine) gamesList() []gameSummary {
	out := make([]gameSummary, 0, len(m.order))
	for _, r := range m.Rooms() {
		players := make([]playerSketch, 0, len(r.Order))
		for _, id := range r.Order {
			players = append(players, playerSketch{ID: id, Name: r.Users[id].Name})
		}
		b := r.State.Base()
		out = append(out, gameSummary{
			ID:          r.ID,
			Name:        r.Name,
			PlayerCount: len(r.Users),
			Players:     players,
			IsLobby:     b.IsLobby,
			IsActive:    b.IsActive,
		})
	}
	return out
}

func (m *Machine) aiName(names []string) string {
	if len(names) == 0 {
		return "AI Player"
	}
	return names[m.Intn(len(names))]
}

func playerName(name, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return id
}
