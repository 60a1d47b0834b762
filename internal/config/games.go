package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

var DefaultAINames = []string{"Pixel", "Doodlebot", "Sketchy", "Inkwell", "Scribble"}

type DrawingConfig struct {
	GameDuration        time.Duration `env:"GAME_DURATION" envDefault:"120s"`
	MinPlayers          int           `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers          int           `env:"MAX_PLAYERS" envDefault:"8"`
	AIEnabled           bool          `env:"AI_ENABLED" envDefault:"true"`
	AIGuessCooldown     time.Duration `env:"AI_GUESS_COOLDOWN" envDefault:"10s"`
	CorrectGuesserScore float64       `env:"CORRECT_GUESSER_SCORE" envDefault:"5"`
	CorrectDrawerScore  float64       `env:"CORRECT_DRAWER_SCORE" envDefault:"2"`
	AINames             []string      `env:"AI_NAMES" envSeparator:","`
}

type NarrativeConfig struct {
	MinPlayers             int           `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers             int           `env:"MAX_PLAYERS" envDefault:"8"`
	AIEnabled              bool          `env:"AI_ENABLED" envDefault:"true"`
	AIInterventionEvery    int           `env:"AI_INTERVENTION_FREQUENCY" envDefault:"3"`
	AIInterventionCooldown time.Duration `env:"AI_INTERVENTION_COOLDOWN" envDefault:"30s"`
	RoundsPerPlayer        int           `env:"ROUNDS_PER_PLAYER" envDefault:"2"`
	ContributionScore      int           `env:"CONTRIBUTION_SCORE" envDefault:"5"`
	SuggestionVoteScore    int           `env:"SUGGESTION_VOTE_SCORE" envDefault:"2"`
	SuggestionBonus        int           `env:"SUGGESTION_BONUS" envDefault:"3"`
	ReviewDuration         time.Duration `env:"REVIEW_DURATION" envDefault:"2m"`
	ReviewBonuses          []int         `env:"REVIEW_BONUSES" envSeparator:"," envDefault:"30,20,10"`
	EndingBonus            int           `env:"ENDING_BONUS" envDefault:"20"`
}

func LoadDrawing() (DrawingConfig, error) {
	var cfg DrawingConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DRAWING_"}); err != nil {
		return cfg, err
	}
	if len(cfg.AINames) == 0 {
		cfg.AINames = append([]string(nil), DefaultAINames...)
	}
	return cfg, nil
}

func LoadNarrative() (NarrativeConfig, error) {
	var cfg NarrativeConfig
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: "NARRATIVE_"})
	return cfg, err
}
