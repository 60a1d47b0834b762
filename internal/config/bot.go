package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	WSURL      string        `env:"WS_URL" envDefault:"ws://localhost:8080/anyone-can-draw?gameId=lobby"`
	PlayerID   string        `env:"PLAYER_ID" envDefault:"bot"`
	PlayerName string        `env:"PLAYER_NAME" envDefault:"Bot"`
	GameName   string        `env:"GAME_NAME" envDefault:"Bot Room"`
	GuessEvery time.Duration `env:"GUESS_EVERY" envDefault:"3s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
