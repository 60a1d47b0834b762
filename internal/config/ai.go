package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// AIConfig selects the text completion backend. An empty API key disables
// the AI and every game falls back to its scripted defaults.
type AIConfig struct {
	APIKey      string        `env:"OPENAI_API_KEY"`
	BaseURL     string        `env:"OPENAI_BASE_URL"`
	Model       string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	VisionModel string        `env:"AI_VISION_MODEL" envDefault:"gpt-4o-mini"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"20s"`
}

func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

func LoadAI() (AIConfig, error) {
	var cfg AIConfig
	err := env.Parse(&cfg)
	return cfg, err
}
