package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"multiplayer/internal/config"
	"multiplayer/internal/store"
	"multiplayer/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Games is the slice of the actor runtime the router needs.
type Games interface {
	ws.Connector
	Knows(gameType string) bool
}

func NewRouter(games Games, st store.Storage, cfg config.ServerConfig) *chi.Mux {
	h := NewHandlers(games, st, ws.NewServer(games, cfg))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/status", h.Status())
		r.Get("/healthz", h.Health())
	})
	r.Handle("/metrics", promhttp.Handler())

	// Websocket sessions outlive the request, so they skip the access log.
	r.Get("/{gameType}", h.Play())
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 8)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
