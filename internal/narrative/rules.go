package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"multiplayer/internal/ai"
	"multiplayer/internal/config"
	"multiplayer/internal/game"
)

const GameType = "plot-twist"

type Rules struct {
	cfg config.NarrativeConfig
	ai  ai.TextService
}

var _ game.Rules = (*Rules)(nil)

func New(cfg config.NarrativeConfig, svc ai.TextService) *Rules {
	if svc == nil {
		svc = ai.Disabled{}
	}
	return &Rules{cfg: cfg, ai: svc}
}

func (r *Rules) Type() string { return GameType }

// Settings never seats the AI player; suggestions come from the service
// directly and the turn rotation is humans only.
func (r *Rules) Settings() game.Settings {
	return game.Settings{MinPlayers: r.cfg.MinPlayers, MaxPlayers: r.cfg.MaxPlayers}
}

func (r *Rules) NewState(*game.Room) game.State {
	st := &State{BaseState: game.BaseState{
		IsLobby:       true,
		StatusMessage: game.Status("info", "Game created! Waiting for players..."),
	}}
	st.normalize()
	return st
}

func (r *Rules) DecodeState(raw json.RawMessage) (game.State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	st.normalize()
	return &st, nil
}

// mutate applies fn and persists. Any failure restores the room as it was
// before fn ran.
func (r *Rules) mutate(ctx context.Context, m *game.Machine, room *game.Room, fn func(st *State) error) error {
	prev := room.State.Clone()
	prevUsers := room.CloneUsers()
	prevAI := room.LastAIAction

	err := fn(room.State.(*State))
	if err == nil {
		err = m.Persist(ctx)
	}
	if err != nil {
		room.State, room.Users, room.LastAIAction = prev, prevUsers, prevAI
		r.syncReviewTimer(m, room)
		return err
	}
	return nil
}

type startPayload struct {
	Theme string `json:"theme"`
}

func (r *Rules) HandleStart(ctx context.Context, m *game.Machine, room *game.Room, env game.Envelope) error {
	var p startPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	st := room.State.(*State)
	humans := room.Humans()
	switch {
	case st.HasEnded:
		return game.Rejection("This story has already ended")
	case st.IsActive:
		return game.Rejection("Game is already active")
	case !room.HasUser(env.PlayerID):
		return game.Rejection("Join the game before starting it")
	case !slices.Contains(st.SelectedThemes, p.Theme):
		return game.Rejection("Invalid theme selected")
	case len(humans) < r.cfg.MinPlayers:
		return game.Rejectf("Need at least %d players to start", r.cfg.MinPlayers)
	}

	err := r.mutate(ctx, m, room, func(st *State) error {
		st.IsActive, st.IsLobby = true, false
		st.Theme = p.Theme
		st.StoryPrompt = r.generateStoryPrompt(ctx, m, room, p.Theme)
		st.Contributions = []Contribution{}
		st.LastContribution = nil
		st.AISuggestions = []Suggestion{}
		st.CurrentTurn = humans[0]
		st.CurrentRound = 1
		st.TotalRounds = len(humans) * r.cfg.RoundsPerPlayer
		st.TimeRemaining = 0
		st.StatusMessage = game.Status("success", "Game started! Make your first contribution.")
		return nil
	})
	if err != nil {
		return err
	}
	m.Logger().Info().Str("game_id", room.ID).Str("theme", p.Theme).Int("total_rounds", st.TotalRounds).Msg("story started")
	m.Broadcast(room, game.Message{Type: "gameStarted"}, true)
	return nil
}

func (r *Rules) generateStoryPrompt(ctx context.Context, m *game.Machine, room *game.Room, theme string) string {
	if theme == "" || !r.cfg.AIEnabled {
		return defaultStoryPrompt
	}
	reply, err := r.ai.Complete(ctx, storyPrompt(theme))
	if err != nil {
		m.Logger().Warn().Err(err).Str("game_id", room.ID).Msg("story prompt fallback")
		return defaultStoryPrompt
	}
	if reply = strings.Trim(reply, "\" \n"); reply == "" {
		return defaultStoryPrompt
	}
	return reply
}

type actionPayload struct {
	PlayerID        string `json:"playerId"`
	Theme           string `json:"theme"`
	Contribution    string `json:"contribution"`
	SuggestionIndex int    `json:"suggestionIndex"`
	ContributionID  int    `json:"contributionId"`
	Text            string `json:"text"`
	EndingIndex     int    `json:"endingIndex"`
}

func (r *Rules) HandleAction(ctx context.Context, m *game.Machine, room *game.Room, env game.Envelope) error {
	if room == nil {
		return game.ErrGameNotFound
	}
	var p actionPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	switch env.Action {
	case "themeVote":
		return r.themeVote(ctx, m, room, p)
	case "addContribution":
		return r.addContribution(ctx, m, room, p)
	case "requestAIIntervention":
		return r.requestAIIntervention(ctx, m, room)
	case "voteOnSuggestion":
		return r.voteOnSuggestion(ctx, m, room, p)
	case "contributionVote":
		return r.contributionVote(ctx, m, room, p)
	case "alternativeEnding":
		return r.alternativeEnding(ctx, m, room, p)
	case "endingVote":
		return r.endingVote(ctx, m, room, p)
	case "endGame":
		return r.endGame(ctx, m, room, p)
	default:
		return nil
	}
}

// themeVote records one vote per player; a re-vote replaces the earlier
// one. Blending runs once every human has voted.
func (r *Rules) themeVote(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	theme := strings.TrimSpace(p.Theme)
	switch {
	case !st.inLobby():
		return game.Rejection("Cannot vote for theme at this time")
	case !room.HasUser(p.PlayerID):
		return game.Rejection("Join the game before voting")
	case theme == "":
		return game.Rejection("Theme cannot be empty")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		st.ThemeVotes = slices.DeleteFunc(st.ThemeVotes, func(v ThemeVote) bool { return v.PlayerID == p.PlayerID })
		st.ThemeVotes = append(st.ThemeVotes, ThemeVote{PlayerID: p.PlayerID, Theme: theme, Timestamp: m.Now().UnixMilli()})
		if len(st.ThemeVotes) == len(room.Humans()) {
			r.blendThemes(ctx, m, room, st)
		} else {
			st.StatusMessage = game.Status("info", fmt.Sprintf("%s voted for a theme", room.DisplayName(p.PlayerID)))
		}
		return nil
	})
}

// blendThemes replaces selectedThemes with three AI blends of the votes, or
// with the most voted theme when the AI gives nothing usable.
func (r *Rules) blendThemes(ctx context.Context, m *game.Machine, room *game.Room, st *State) {
	if len(st.ThemeVotes) == 0 {
		return
	}
	var blended []string
	if r.cfg.AIEnabled {
		themes := make([]string, len(st.ThemeVotes))
		for i, v := range st.ThemeVotes {
			themes[i] = v.Theme
		}
		reply, err := r.ai.Complete(ctx, blendPrompt(themes))
		if err != nil {
			m.Logger().Warn().Err(err).Str("game_id", room.ID).Msg("theme blend fallback")
		} else {
			blended = parseThemes(reply)
		}
	}
	if len(blended) == 0 {
		blended = []string{mostVotedTheme(st.ThemeVotes)}
	}
	st.SelectedThemes = blended
	st.StatusMessage = game.Status("success", "Themes have been blended! Choose one to start the game.")
}

func (r *Rules) addContribution(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	text := strings.TrimSpace(p.Contribution)
	switch {
	case !st.contributing():
		return game.Rejection("Game is not active")
	case p.PlayerID != st.CurrentTurn:
		return game.Rejection("It's not your turn")
	case text == "":
		return game.Rejection("Contribution cannot be empty")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		c := Contribution{PlayerID: p.PlayerID, Text: text, Timestamp: m.Now().UnixMilli()}
		st.Contributions = append(st.Contributions, c)
		st.LastContribution = &c
		award(room, p.PlayerID, r.cfg.ContributionScore)

		humans := room.Humans()
		next := (slices.Index(humans, p.PlayerID) + 1) % len(humans)
		st.CurrentTurn = humans[next]
		st.CurrentRound++
		if st.CurrentRound > st.TotalRounds {
			r.endStory(m, room, st, "All rounds completed! Review phase starting...")
			return nil
		}
		if next == 0 {
			st.StatusMessage = game.Status("info", fmt.Sprintf("Round %d of %d begins!", st.CurrentRound, st.TotalRounds))
		} else {
			st.StatusMessage = game.Status("success", fmt.Sprintf("Contribution added successfully! Round %d/%d - It's %s's turn now!",
				st.CurrentRound, st.TotalRounds, room.DisplayName(st.CurrentTurn)))
		}

		if every := r.cfg.AIInterventionEvery; r.cfg.AIEnabled && every > 0 && len(st.Contributions)%every == 0 {
			r.refreshSuggestions(ctx, m, room, st)
		}
		return nil
	})
}

// refreshSuggestions replaces the suggestion list wholesale. An AI failure
// leaves it empty.
func (r *Rules) refreshSuggestions(ctx context.Context, m *game.Machine, room *game.Room, st *State) bool {
	texts := make([]string, 0, len(st.Contributions))
	for _, c := range st.Contributions {
		texts = append(texts, c.Text)
	}
	story := strings.TrimSpace(strings.Join(texts, " "))
	if story == "" {
		return false
	}
	room.LastAIAction = m.Now()
	reply, err := r.ai.Complete(ctx, suggestionsPrompt(story))
	if err != nil {
		m.Logger().Warn().Err(err).Str("game_id", room.ID).Msg("suggestions unavailable")
		st.AISuggestions = []Suggestion{}
		return false
	}
	st.AISuggestions = parseSuggestions(reply)
	return len(st.AISuggestions) > 0
}

func (r *Rules) requestAIIntervention(ctx context.Context, m *game.Machine, room *game.Room) error {
	st := room.State.(*State)
	switch {
	case !st.contributing():
		return game.Rejection("Game is not active")
	case !r.cfg.AIEnabled:
		return game.Rejection("AI suggestions are disabled")
	}
	now := m.Now()
	return r.mutate(ctx, m, room, func(st *State) error {
		if !room.LastAIAction.IsZero() {
			if wait := r.cfg.AIInterventionCooldown - now.Sub(room.LastAIAction); wait > 0 {
				secs := int(math.Ceil(wait.Seconds()))
				st.AICooldownEnd = now.Add(time.Duration(secs) * time.Second).UnixMilli()
				st.StatusMessage = game.Status("info", fmt.Sprintf("The AI needs a break. Try again in %d seconds.", secs))
				return nil
			}
		}
		st.AICooldownEnd = 0
		if r.refreshSuggestions(ctx, m, room, st) {
			st.StatusMessage = game.Status("info", "AI has provided new suggestions!")
		} else {
			st.StatusMessage = game.Status("info", "The AI has no suggestions right now.")
		}
		return nil
	})
}

// quorum is ceil(players/2).
func quorum(players int) int {
	return (players + 1) / 2
}

func (r *Rules) voteOnSuggestion(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	idx := p.SuggestionIndex
	switch {
	case !st.contributing():
		return game.Rejection("Game is not active")
	case !room.HasUser(p.PlayerID):
		return game.Rejection("Join the game before voting")
	case idx < 0 || idx >= len(st.AISuggestions):
		return game.Rejection("Invalid suggestion selected")
	case slices.Contains(st.AISuggestions[idx].Voters, p.PlayerID):
		return game.Rejection("You have already voted for this suggestion")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		sg := &st.AISuggestions[idx]
		sg.Votes++
		sg.Voters = append(sg.Voters, p.PlayerID)
		award(room, p.PlayerID, r.cfg.SuggestionVoteScore)

		if sg.Votes < quorum(len(room.Users)) {
			st.StatusMessage = game.Status("info", "Vote recorded")
			return nil
		}
		st.Contributions = append(st.Contributions, Contribution{
			PlayerID:  AuthorAI,
			Text:      sg.Suggestion,
			Timestamp: m.Now().UnixMilli(),
		})
		for _, voter := range sg.Voters {
			award(room, voter, r.cfg.SuggestionBonus)
		}
		st.AISuggestions = []Suggestion{}
		st.StatusMessage = game.Status("success", "AI suggestion applied to the story!")
		return nil
	})
}

func (r *Rules) contributionVote(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	if !st.IsReviewPhase {
		return game.Rejection("Cannot vote at this time")
	}
	if !room.HasUser(p.PlayerID) {
		return game.Rejection("Join the game before voting")
	}
	idx := slices.IndexFunc(st.ContributionReviews, func(cr ContributionReview) bool {
		return cr.ContributionID == p.ContributionID
	})
	if idx < 0 || slices.Contains(st.ContributionReviews[idx].Voters, p.PlayerID) {
		return game.Rejection("Invalid vote or already voted for this contribution")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		review := &st.ContributionReviews[idx]
		review.Votes++
		review.Voters = append(review.Voters, p.PlayerID)
		if id := review.ContributionID; id >= 0 && id < len(st.Contributions) {
			st.Contributions[id].Votes = review.Votes
		}
		st.StatusMessage = game.Status("info", "Vote recorded")
		return nil
	})
}

func (r *Rules) alternativeEnding(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	text := strings.TrimSpace(p.Text)
	switch {
	case !st.IsReviewPhase:
		return game.Rejection("Cannot suggest alternative ending at this time")
	case !room.HasUser(p.PlayerID):
		return game.Rejection("Join the game before suggesting an ending")
	case text == "":
		return game.Rejection("Ending cannot be empty")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		st.AlternativeEndings = append(st.AlternativeEndings, AlternativeEnding{PlayerID: p.PlayerID, Text: text, Voters: []string{}})
		st.StatusMessage = game.Status("info", fmt.Sprintf("%s suggested an alternative ending", room.DisplayName(p.PlayerID)))
		return nil
	})
}

func (r *Rules) endingVote(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	idx := p.EndingIndex
	switch {
	case !st.IsReviewPhase:
		return game.Rejection("Cannot vote at this time")
	case !room.HasUser(p.PlayerID):
		return game.Rejection("Join the game before voting")
	case idx < 0 || idx >= len(st.AlternativeEndings):
		return game.Rejection("Invalid ending selected")
	case slices.Contains(st.AlternativeEndings[idx].Voters, p.PlayerID):
		return game.Rejection("You have already voted for this ending")
	}
	return r.mutate(ctx, m, room, func(st *State) error {
		ending := &st.AlternativeEndings[idx]
		ending.Votes++
		ending.Voters = append(ending.Voters, p.PlayerID)
		st.StatusMessage = game.Status("info", "Vote recorded")
		return nil
	})
}

// endGame moves a running story into review, or closes the review early.
func (r *Rules) endGame(ctx context.Context, m *game.Machine, room *game.Room, p actionPayload) error {
	st := room.State.(*State)
	if !room.HasUser(p.PlayerID) {
		return game.Rejection("Join the game before ending it")
	}
	switch {
	case st.contributing():
		return r.mutate(ctx, m, room, func(st *State) error {
			r.endStory(m, room, st, "Game ended! Review phase starting...")
			return nil
		})
	case st.IsReviewPhase:
		return r.mutate(ctx, m, room, func(st *State) error {
			r.finalize(m, room, st)
			return nil
		})
	default:
		return game.Rejection("Game is not active")
	}
}

// endStory opens the review phase with one ballot per contribution and arms
// the review deadline. It runs at most once per story.
func (r *Rules) endStory(m *game.Machine, room *game.Room, st *State, status string) {
	if st.HasEnded {
		return
	}
	st.HasEnded, st.IsActive, st.IsLobby = true, false, false
	st.IsReviewPhase = true
	st.CurrentTurn = ""
	st.AISuggestions = []Suggestion{}
	st.ContributionReviews = make([]ContributionReview, len(st.Contributions))
	for i := range st.Contributions {
		st.ContributionReviews[i] = ContributionReview{ContributionID: i, Voters: []string{}}
	}
	now := m.Now()
	deadline := now.Add(r.cfg.ReviewDuration)
	st.SetDeadline(deadline)
	st.TimeRemaining = game.RemainingSeconds(deadline, now)
	st.StatusMessage = game.Status("info", status)
	r.armReview(m, room.ID, r.cfg.ReviewDuration)
	m.Logger().Info().Str("game_id", room.ID).Int("contributions", len(st.Contributions)).Msg("review started")
}

func (r *Rules) armReview(m *game.Machine, roomID string, d time.Duration) {
	m.After(roomID, game.PurposeReview, d, func(ctx context.Context, room *game.Room) (bool, error) {
		return r.HandleTimeout(ctx, m, room)
	})
}

// syncReviewTimer makes the in-process review timer match the state, after
// a rollback.
func (r *Rules) syncReviewTimer(m *game.Machine, room *game.Room) {
	st := room.State.(*State)
	if !st.IsReviewPhase {
		m.CancelTimer(room.ID, game.PurposeReview)
		return
	}
	deadline, ok := st.Deadline()
	if !ok || m.TimerActive(room.ID, game.PurposeReview) {
		return
	}
	r.armReview(m, room.ID, max(deadline.Sub(m.Now()), 0))
}

// HandleTimeout closes the review phase. Later calls find the phase closed
// and change nothing.
func (r *Rules) HandleTimeout(ctx context.Context, m *game.Machine, room *game.Room) (bool, error) {
	if !room.State.(*State).IsReviewPhase {
		return false, nil
	}
	err := r.mutate(ctx, m, room, func(st *State) error {
		r.finalize(m, room, st)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// finalize pays the review bonuses to the authors of the top voted
// contributions (ties keep story order) and appends the best alternative
// ending (ties keep the earliest). The story is terminal afterwards.
func (r *Rules) finalize(m *game.Machine, room *game.Room, st *State) {
	ranked := slices.Clone(st.ContributionReviews)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Votes > ranked[j].Votes })
	for i, review := range ranked {
		if i >= len(r.cfg.ReviewBonuses) {
			break
		}
		if id := review.ContributionID; id >= 0 && id < len(st.Contributions) {
			award(room, st.Contributions[id].PlayerID, r.cfg.ReviewBonuses[i])
		}
	}

	if len(st.AlternativeEndings) > 0 {
		best := 0
		for i, e := range st.AlternativeEndings {
			if e.Votes > st.AlternativeEndings[best].Votes {
				best = i
			}
		}
		ending := st.AlternativeEndings[best]
		st.Contributions = append(st.Contributions, Contribution{
			PlayerID:  ending.PlayerID,
			Text:      ending.Text,
			Timestamp: m.Now().UnixMilli(),
			Votes:     ending.Votes,
		})
		award(room, ending.PlayerID, r.cfg.EndingBonus)
	}

	st.IsReviewPhase = false
	st.SetDeadline(time.Time{})
	st.TimeRemaining = 0
	st.StatusMessage = game.Status("success", "Review phase complete! Final scores have been calculated.")
	m.CancelTimer(room.ID, game.PurposeReview)
	m.Logger().Info().Str("game_id", room.ID).Msg("story finalized")
}

// HandlePlayerLeave drops the leaver's theme vote, which may complete the
// vote and trigger blending, and hands a held turn to a random remaining
// player.
func (r *Rules) HandlePlayerLeave(ctx context.Context, m *game.Machine, room *game.Room, playerID string) error {
	st := room.State.(*State)
	humans := room.Humans()
	if st.inLobby() {
		st.ThemeVotes = slices.DeleteFunc(st.ThemeVotes, func(v ThemeVote) bool { return v.PlayerID == playerID })
		if len(st.ThemeVotes) > 0 && len(st.ThemeVotes) == len(humans) {
			r.blendThemes(ctx, m, room, st)
		}
	}
	if st.CurrentTurn == playerID {
		st.CurrentTurn = ""
		if len(humans) > 0 {
			st.CurrentTurn = humans[m.Intn(len(humans))]
		}
	}
	return nil
}

func award(room *game.Room, playerID string, points int) {
	if u := room.Users[playerID]; u != nil {
		u.Score += float64(points)
	}
}
