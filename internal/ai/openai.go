package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"multiplayer/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var errEmptyCompletion = errors.New("empty completion")

type OpenAI struct {
	client      *openai.Client
	model       string
	visionModel string
	timeout     time.Duration
}

var _ TextService = (*OpenAI)(nil)

func NewOpenAI(cfg config.AIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		timeout:     cfg.Timeout,
	}
}

// New returns the configured backend, or Disabled when no API key is set.
func New(cfg config.AIConfig) TextService {
	if !cfg.Enabled() {
		log.Info().Msg("ai disabled: OPENAI_API_KEY not set")
		return Disabled{}
	}
	return NewOpenAI(cfg)
}

func (c *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	model := c.model
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User}
	if p.ImageURL != "" {
		model = c.visionModel
		user = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: p.User},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    p.ImageURL,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, user)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: p.MaxTokens,
	})
	requestDuration.With(prometheus.Labels{"model": model}).Observe(time.Since(started).Seconds())
	if err != nil {
		requestsTotal.With(prometheus.Labels{"model": model, "status": "error"}).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		requestsTotal.With(prometheus.Labels{"model": model, "status": "empty"}).Inc()
		return "", errEmptyCompletion
	}
	requestsTotal.With(prometheus.Labels{"model": model, "status": "ok"}).Inc()
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
