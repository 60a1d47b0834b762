package httptransport

import (
	"net/http"

	"multiplayer/internal/store"
	"multiplayer/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	games Games
	store store.Storage
	ws    *ws.Server
}

func NewHandlers(games Games, st store.Storage, srv *ws.Server) *Handlers {
	return &Handlers{games: games, store: st, ws: srv}
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("storage ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "storage": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storage": "up"})
	}
}

// Play upgrades GET /{gameType}?gameId=... to a websocket bound to that
// game's actor context.
func (h *Handlers) Play() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameType := chi.URLParam(r, "gameType")
		if !websocket.IsWebSocketUpgrade(r) {
			http.Error(w, "Expected Upgrade: websocket", http.StatusUpgradeRequired)
			return
		}
		if !h.games.Knows(gameType) {
			WriteHTTPError(w, http.StatusNotFound, "unknown_game_type")
			return
		}
		h.ws.Serve(w, r, gameType, r.URL.Query().Get("gameId"))
	}
}
