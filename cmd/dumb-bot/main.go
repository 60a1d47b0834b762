package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"multiplayer/internal/config"
	"multiplayer/internal/drawing"
	"multiplayer/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close()

	b := newBot(cfg, rand.New(rand.NewSource(time.Now().UnixNano())), drawing.Words())
	send := func(out []map[string]any) {
		for _, m := range out {
			payload, _ := json.Marshal(m)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Error().Err(err).Msg("write failed")
				cancel()
				return
			}
		}
	}

	msgs := make(chan inbound, 16)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Msg("connection closed")
				return
			}
			var msg inbound
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	send(b.hello())
	ticker := time.NewTicker(cfg.GuessEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case msg := <-msgs:
			send(b.handle(msg))
		case <-ticker.C:
			send(b.tick())
		}
	}
}
