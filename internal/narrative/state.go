package narrative

import "multiplayer/internal/game"

// AuthorAI marks contributions that came from an applied suggestion.
const AuthorAI = "ai"

type Contribution struct {
	PlayerID  string `json:"playerId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Votes     int    `json:"votes"`
}

type Suggestion struct {
	Type       string   `json:"type"`
	Suggestion string   `json:"suggestion"`
	Votes      int      `json:"votes"`
	Voters     []string `json:"voters"`
}

type ThemeVote struct {
	PlayerID  string `json:"playerId"`
	Theme     string `json:"theme"`
	Timestamp int64  `json:"timestamp"`
}

// ContributionReview is the review ballot of contributions[ContributionID].
type ContributionReview struct {
	ContributionID int      `json:"contributionId"`
	Votes          int      `json:"votes"`
	Voters         []string `json:"voters"`
}

type AlternativeEnding struct {
	PlayerID string   `json:"playerId"`
	Text     string   `json:"text"`
	Votes    int      `json:"votes"`
	Voters   []string `json:"voters"`
}

type State struct {
	game.BaseState
	Theme               string               `json:"theme"`
	Contributions       []Contribution       `json:"contributions"`
	CurrentTurn         string               `json:"currentTurn,omitempty"`
	StoryPrompt         string               `json:"storyPrompt"`
	HasEnded            bool                 `json:"hasEnded"`
	AISuggestions       []Suggestion         `json:"aiSuggestions"`
	LastContribution    *Contribution        `json:"lastContribution"`
	ThemeVotes          []ThemeVote          `json:"themeVotes"`
	SelectedThemes      []string             `json:"selectedThemes"`
	IsReviewPhase       bool                 `json:"isReviewPhase"`
	ContributionReviews []ContributionReview `json:"contributionReviews"`
	AlternativeEndings  []AlternativeEnding  `json:"alternativeEndings"`
	AICooldownEnd       int64                `json:"aiCooldownEnd,omitempty"`
	CurrentRound        int                  `json:"currentRound"`
	TotalRounds         int                  `json:"totalRounds"`
}

var _ game.State = (*State)(nil)

func (s *State) Base() *game.BaseState { return &s.BaseState }

func (s *State) Clone() game.State {
	cp := *s
	if s.StatusMessage != nil {
		msg := *s.StatusMessage
		cp.StatusMessage = &msg
	}
	if s.LastContribution != nil {
		last := *s.LastContribution
		cp.LastContribution = &last
	}
	cp.Contributions = append([]Contribution{}, s.Contributions...)
	cp.ThemeVotes = append([]ThemeVote{}, s.ThemeVotes...)
	cp.SelectedThemes = append([]string{}, s.SelectedThemes...)

	cp.AISuggestions = make([]Suggestion, len(s.AISuggestions))
	for i, sg := range s.AISuggestions {
		sg.Voters = append([]string{}, sg.Voters...)
		cp.AISuggestions[i] = sg
	}
	cp.ContributionReviews = make([]ContributionReview, len(s.ContributionReviews))
	for i, r := range s.ContributionReviews {
		r.Voters = append([]string{}, r.Voters...)
		cp.ContributionReviews[i] = r
	}
	cp.AlternativeEndings = make([]AlternativeEnding, len(s.AlternativeEndings))
	for i, e := range s.AlternativeEndings {
		e.Voters = append([]string{}, e.Voters...)
		cp.AlternativeEndings[i] = e
	}
	return &cp
}

// View is the same for every player; nothing in a story is secret.
func (s *State) View(bool) any { return s.Clone() }

func (s *State) Privileged() string { return "" }

// normalize replaces nil collections so they encode as empty arrays.
func (s *State) normalize() {
	if s.Contributions == nil {
		s.Contributions = []Contribution{}
	}
	if s.AISuggestions == nil {
		s.AISuggestions = []Suggestion{}
	}
	if s.ThemeVotes == nil {
		s.ThemeVotes = []ThemeVote{}
	}
	if s.SelectedThemes == nil {
		s.SelectedThemes = []string{}
	}
	if s.ContributionReviews == nil {
		s.ContributionReviews = []ContributionReview{}
	}
	if s.AlternativeEndings == nil {
		s.AlternativeEndings = []AlternativeEnding{}
	}
	for i := range s.AISuggestions {
		if s.AISuggestions[i].Voters == nil {
			s.AISuggestions[i].Voters = []string{}
		}
	}
	for i := range s.ContributionReviews {
		if s.ContributionReviews[i].Voters == nil {
			s.ContributionReviews[i].Voters = []string{}
		}
	}
	for i := range s.AlternativeEndings {
		if s.AlternativeEndings[i].Voters == nil {
			s.AlternativeEndings[i].Voters = []string{}
		}
	}
}

// inLobby is the theme voting phase.
func (s *State) inLobby() bool {
	return s.IsLobby && !s.IsActive && !s.HasEnded
}

// contributing is the turn phase.
func (s *State) contributing() bool {
	return s.IsActive && !s.HasEnded
}
