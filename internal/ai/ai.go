package ai

import (
	"context"
	"errors"
)

var ErrDisabled = errors.New("ai disabled")

// Prompt is one completion request. ImageURL, when set, is sent as an image
// part next to the user text and routes the call to the vision model.
type Prompt struct {
	System    string
	User      string
	ImageURL  string
	MaxTokens int
}

// TextService is an opaque text completion capability. Callers treat every
// error as a cue to fall back to scripted content.
type TextService interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Disabled is used when no backend is configured.
type Disabled struct{}

func (Disabled) Complete(context.Context, Prompt) (string, error) {
	return "", ErrDisabled
}
