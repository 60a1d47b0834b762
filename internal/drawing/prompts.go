package drawing

import (
	"strings"
	"unicode"

	"multiplayer/internal/ai"
)

func guessPrompt(drawingData string) ai.Prompt {
	return ai.Prompt{
		System:    "You are playing a drawing guessing game. Reply with only your guess: one or two words, no punctuation, no explanation.",
		User:      "What is shown in this drawing?",
		ImageURL:  drawingData,
		MaxTokens: 10,
	}
}

// parseGuess keeps the first non-empty line, stripped of punctuation.
func parseGuess(text string) string {
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
				return r
			}
			return -1
		}, line)
		if cleaned = strings.Join(strings.Fields(cleaned), " "); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
