package game

import (
	"encoding/json"
	"sort"

	"multiplayer/internal/actor"
)

// Message is the server to client shape shared by room scoped messages.
// GameID, GameName and Users are filled in by Broadcast.
type Message struct {
	Type         string         `json:"type"`
	GameID       string         `json:"gameId"`
	GameName     string         `json:"gameName"`
	Users        []UserView     `json:"users"`
	GameState    any            `json:"gameState,omitempty"`
	PlayerID     string         `json:"playerId,omitempty"`
	PlayerName   string         `json:"playerName,omitempty"`
	Creator      string         `json:"creator,omitempty"`
	Notification *StatusMessage `json:"notification,omitempty"`
}

type UserView struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type drawingUpdateMessage struct {
	Type        string `json:"type"`
	GameID      string `json:"gameId"`
	DrawingData string `json:"drawingData"`
}

type gamesListMessage struct {
	Type  string        `json:"type"`
	Games []gameSummary `json:"games"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// SortedUsers is the display order: score descending, ties by join order.
func SortedUsers(room *Room) []UserView {
	out := make([]UserView, 0, len(room.Order))
	for _, id := range room.Order {
		u := room.Users[id]
		out = append(out, UserView{ID: id, Name: u.Name, Score: u.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// BroadcastState sends a full gameState resync to every connection.
func (m *Machine) BroadcastState(room *Room) {
	m.Broadcast(room, Message{Type: "gameState"}, true)
}

// Broadcast sends msg to every connection of the context. With withState
// set the room state is attached, serialized once for the privileged viewer
// and once for everybody else. A pending notice goes to its connection only.
func (m *Machine) Broadcast(room *Room, msg Message, withState bool) {
	m.broadcastTo(m.host.Connections(), room, msg, withState)
}

func (m *Machine) broadcastTo(conns []actor.Conn, room *Room, msg Message, withState bool) {
	msg.GameID = room.ID
	msg.GameName = room.Name
	msg.Users = SortedUsers(room)

	privileged := ""
	if withState {
		privileged = room.State.Privileged()
	}
	var publicBytes, privilegedBytes []byte
	encode := func(priv bool) []byte {
		if priv && privilegedBytes != nil {
			return privilegedBytes
		}
		if !priv && publicBytes != nil {
			return publicBytes
		}
		out := msg
		if withState {
			out.GameState = room.State.View(priv)
		}
		b, err := json.Marshal(out)
		if err != nil {
			m.log.Error().Err(err).Str("type", msg.Type).Msg("encode broadcast")
			return nil
		}
		if priv {
			privilegedBytes = b
		} else {
			publicBytes = b
		}
		return b
	}

	broadcastsTotal.WithLabelValues(m.rules.Type(), msg.Type).Inc()
	for _, conn := range conns {
		priv := privileged != "" && m.bindings[conn.ID()] == privileged
		var b []byte
		if m.notice != nil && m.notice.connID == conn.ID() && msg.Type == "gameState" {
			out := msg
			if withState {
				out.GameState = room.State.View(priv)
			}
			out.Notification = Status("error", m.notice.message)
			b, _ = json.Marshal(out)
			m.notice = nil
		} else {
			b = encode(priv)
		}
		if b != nil {
			m.send(conn, b)
		}
	}
}

// BroadcastDrawing relays canvas data to every connection not bound to the
// drawer.
func (m *Machine) BroadcastDrawing(room *Room, data, drawerID string) {
	b, err := json.Marshal(drawingUpdateMessage{Type: "drawingUpdate", GameID: room.ID, DrawingData: data})
	if err != nil {
		return
	}
	broadcastsTotal.WithLabelValues(m.rules.Type(), "drawingUpdate").Inc()
	for _, conn := range m.host.Connections() {
		if m.bindings[conn.ID()] == drawerID {
			continue
		}
		m.send(conn, b)
	}
}

func (m *Machine) sendTo(conn actor.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		m.log.Error().Err(err).Msg("encode message")
		return
	}
	m.send(conn, b)
}

func (m *Machine) send(conn actor.Conn, b []byte) {
	if err := conn.Send(b); err != nil {
		sendFailures.WithLabelValues(m.rules.Type()).Inc()
		m.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("send failed")
	}
}
