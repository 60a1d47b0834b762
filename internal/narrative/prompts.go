package narrative

import (
	"fmt"
	"regexp"
	"strings"

	"multiplayer/internal/ai"
)

const defaultStoryPrompt = "Once upon a time..."

const maxThemeLength = 50

var suggestionKinds = []string{"twist", "resolution", "enhancement"}

func storyPrompt(theme string) ai.Prompt {
	return ai.Prompt{
		System: "You are generating story prompts. Respond with only the prompt sentence. No explanations or additional text.",
		User:   fmt.Sprintf("Write a single opening sentence for a %s story. Make it open-ended and under 30 words.", theme),
	}
}

func suggestionsPrompt(story string) ai.Prompt {
	return ai.Prompt{
		System: "You are enhancing an ongoing story. Provide exactly three suggestions in the numbered format specified. Be concise and specific.",
		User: fmt.Sprintf(`Given this story so far:
%q

Provide exactly three suggestions in this format:
1. [A dramatic twist that changes the direction of the story]
2. [A possible way to resolve current plot threads]
3. [A new element to enhance the existing narrative]

Each suggestion should be 1-2 sentences maximum.`, story),
	}
}

func blendPrompt(themes []string) ai.Prompt {
	return ai.Prompt{
		System: "You are combining story themes. Return exactly three blended themes, one per line. No additional text or explanations.",
		User: fmt.Sprintf(`Combine these themes: %s

Return exactly 3 blended themes:
- Each must be 3-5 words
- Each must combine at least 2 themes
- One theme per line
- No explanations or additional text`, strings.Join(themes, ", ")),
	}
}

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s*`)

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseSuggestions expects exactly three lines, typed twist, resolution and
// enhancement in that order. Anything else yields no suggestions.
func parseSuggestions(text string) []Suggestion {
	lines := nonEmptyLines(text)
	if len(lines) != len(suggestionKinds) {
		return []Suggestion{}
	}
	out := make([]Suggestion, len(lines))
	for i, line := range lines {
		out[i] = Suggestion{Type: suggestionKinds[i], Suggestion: line, Voters: []string{}}
	}
	return out
}

// parseThemes keeps the first three usable lines, or none when the reply
// has fewer.
func parseThemes(text string) []string {
	var out []string
	for _, line := range nonEmptyLines(text) {
		line = strings.Trim(line, `"`)
		if line == "" || len(line) > maxThemeLength {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			return out
		}
	}
	return nil
}

// mostVotedTheme breaks ties by the earliest vote.
func mostVotedTheme(votes []ThemeVote) string {
	counts := map[string]int{}
	best, bestCount := "", 0
	for _, v := range votes {
		counts[v.Theme]++
	}
	for _, v := range votes {
		if c := counts[v.Theme]; c > bestCount {
			best, bestCount = v.Theme, c
		}
	}
	return best
}
