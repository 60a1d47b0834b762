package config

import (
	"testing"
	"time"
)

func TestLoadBotDefaults(t *testing.T) {
	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://localhost:8080/anyone-can-draw?gameId=lobby" {
		t.Fatalf("WSURL = %q", cfg.WSURL)
	}
	if cfg.PlayerID != "bot" {
		t.Fatalf("PlayerID = %q, want bot", cfg.PlayerID)
	}
	if cfg.GuessEvery != 3*time.Second {
		t.Fatalf("GuessEvery = %v, want 3s", cfg.GuessEvery)
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("WS_URL", "ws://127.0.0.1:9000/anyone-can-draw")
	t.Setenv("PLAYER_ID", "bot-a")
	t.Setenv("PLAYER_NAME", "Bot A")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://127.0.0.1:9000/anyone-can-draw" {
		t.Fatalf("WSURL = %q", cfg.WSURL)
	}
	if cfg.PlayerID != "bot-a" || cfg.PlayerName != "Bot A" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
}
