package drawing

import "multiplayer/internal/game"

type Guess struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Guess      string `json:"guess"`
	Timestamp  int64  `json:"timestamp"`
	Correct    bool   `json:"correct"`
}

type State struct {
	game.BaseState
	TargetWord    string  `json:"targetWord"`
	Guesses       []Guess `json:"guesses"`
	HasWon        bool    `json:"hasWon"`
	CurrentDrawer string  `json:"currentDrawer,omitempty"`
	DrawingData   string  `json:"drawingData,omitempty"`
}

var _ game.State = (*State)(nil)

func (s *State) Base() *game.BaseState { return &s.BaseState }

func (s *State) Clone() game.State {
	cp := *s
	if s.StatusMessage != nil {
		msg := *s.StatusMessage
		cp.StatusMessage = &msg
	}
	cp.Guesses = append([]Guess(nil), s.Guesses...)
	if cp.Guesses == nil {
		cp.Guesses = []Guess{}
	}
	return &cp
}

// View never carries the canvas; the word is visible to the drawer only.
func (s *State) View(privileged bool) any {
	cp := s.Clone().(*State)
	cp.DrawingData = ""
	if !privileged {
		cp.TargetWord = ""
	}
	return cp
}

func (s *State) Privileged() string { return s.CurrentDrawer }

func (s *State) guessedCorrectly(playerID string) bool {
	for _, g := range s.Guesses {
		if g.PlayerID == playerID && g.Correct {
			return true
		}
	}
	return false
}
