package game

import (
	"errors"
	"sort"
)

const (
	MaxRounds = 5
	MaxTeams  = 12

	MinRoundDurationSeconds = 30
	MaxRoundDurationSeconds = 3600
)

var (
	ErrNameTaken        = errors.New("team name already taken")
	ErrGameFull         = errors.New("all team slots are claimed")
	ErrNotJoinable      = errors.New("game is not accepting teams")
	ErrTeamNotFound     = errors.New("team not found")
	ErrUnknownDecision  = errors.New("unknown decision id")
	ErrOverBudget       = errors.New("selection would exceed the round budget")
	ErrAlreadySubmitted = errors.New("team has already submitted this round")
	ErrRoundClosed      = errors.New("round is not open for changes")
	ErrWrongState       = errors.New("operation not allowed in current game state")
	ErrUnauthorized     = errors.New("unauthorized")
)

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusResults  Status = "results"
	StatusComplete Status = "complete"
)

// RoundSnapshot is a team's persisted result for one completed round. It is
// append-only: once a round closes the snapshot never changes.
type RoundSnapshot struct {
	Round       int     `json:"round"`
	DecisionIDs []int   `json:"decision_ids"`
	CostSpent   float64 `json:"cost_spent"`

	SharePrice    float64 `json:"share_price"`
	ForwardPrice  float64 `json:"forward_price"`
	TSR           float64 `json:"tsr"`
	GrowthDecline float64 `json:"growth_decline"`

	AutoSubmitted      bool   `json:"auto_submitted"`
	SkippedDecisionIDs []int  `json:"skipped_decision_ids,omitempty"`
	Err                string `json:"err,omitempty"`
}

// Team is one claimed slot. Selected is the live draft the team edits;
// Committed is frozen by submit and is what round close consolidates. Both
// are only touched under the manager's lock.
type Team struct {
	ID    int
	Name  string
	Token string

	CashBalance  float64
	Selected     map[int]bool
	Committed    []int
	HasSubmitted bool

	History []RoundSnapshot
}

func (t *Team) selectedIDs() []int {
	out := make([]int, 0, len(t.Selected))
	for id := range t.Selected {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// finalIDs is the decision set a round close consolidates: the committed
// snapshot when submitted, otherwise the live draft.
func (t *Team) finalIDs() []int {
	if t.HasSubmitted {
		return append([]int(nil), t.Committed...)
	}
	return t.selectedIDs()
}

func (t *Team) priorDeclines() []float64 {
	out := make([]float64, 0, len(t.History))
	for _, s := range t.History {
		out = append(out, s.GrowthDecline)
	}
	return out
}

// JoinResult is returned to a newly joined (or rejoined) team. The token
// proves slot ownership on subsequent requests.
type JoinResult struct {
	TeamID      int     `json:"team_id"`
	TeamName    string  `json:"team_name"`
	Token       string  `json:"token"`
	CashBalance float64 `json:"cash_balance"`
	Rejoined    bool    `json:"rejoined"`
}

// TeamView is the owning team's private view of its slot.
type TeamView struct {
	TeamID       int             `json:"team_id"`
	TeamName     string          `json:"team_name"`
	CashBalance  float64         `json:"cash_balance"`
	DecisionIDs  []int           `json:"decision_ids"`
	CostSpent    float64         `json:"cost_spent"`
	HasSubmitted bool            `json:"has_submitted"`
	History      []RoundSnapshot `json:"history"`
}

// TeamSummary is the public slice of a team shown to everyone.
type TeamSummary struct {
	TeamID       int     `json:"team_id"`
	TeamName     string  `json:"team_name"`
	HasSubmitted bool    `json:"has_submitted"`
	SharePrice   float64 `json:"share_price"`
	RoundsPlayed int     `json:"rounds_played"`
}

// StateView is the read-only projection polled or pushed to clients.
type StateView struct {
	Status               Status           `json:"status"`
	CurrentRound         int              `json:"current_round"`
	RoundDurationSeconds int              `json:"round_duration_seconds"`
	TimeRemaining        int              `json:"time_remaining"`
	TeamCount            int              `json:"team_count"`
	Scenario             *ScenarioView    `json:"scenario,omitempty"`
	Teams                []TeamSummary    `json:"teams"`
	Leaderboard          []LeaderboardRow `json:"leaderboard"`
}

type ScenarioView struct {
	Round     int     `json:"round"`
	Headline  string  `json:"headline"`
	Narrative string  `json:"narrative"`
	Budget    float64 `json:"budget"`
}
