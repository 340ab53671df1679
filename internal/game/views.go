package game

import (
	"sort"

	"boardroom/internal/engine"
)

// State returns the public projection of the game: round, clock, scenario,
// team summaries and the leaderboard. Safe to call from any goroutine.
func (m *Manager) State() StateView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateViewLocked()
}

func (m *Manager) stateViewLocked() StateView {
	view := StateView{
		Status:               m.status,
		CurrentRound:         m.currentRound,
		RoundDurationSeconds: m.roundDurationSeconds,
		TimeRemaining:        m.timeRemaining,
		TeamCount:            m.teamCount,
		Teams:                make([]TeamSummary, 0, len(m.teams)),
		Leaderboard:          m.leaderboardLocked(),
	}
	if sc, ok := m.scenarios[m.currentRound]; ok && m.currentRound > 0 {
		view.Scenario = &ScenarioView{Round: sc.Round, Headline: sc.Headline, Narrative: sc.Narrative, Budget: sc.Budget}
	}
	for _, t := range m.teams {
		view.Teams = append(view.Teams, m.teamSummaryLocked(t))
	}
	sort.Slice(view.Teams, func(i, j int) bool { return view.Teams[i].TeamID < view.Teams[j].TeamID })
	return view
}

func (m *Manager) teamSummaryLocked(t *Team) TeamSummary {
	return TeamSummary{
		TeamID:       t.ID,
		TeamName:     t.Name,
		HasSubmitted: t.HasSubmitted,
		SharePrice:   latestPrice(t),
		RoundsPlayed: len(t.History),
	}
}

// Team returns the owning team's private view, including its live draft.
func (m *Manager) Team(teamID int) (TeamView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return TeamView{}, ErrTeamNotFound
	}
	return m.teamViewLocked(t), nil
}

// Recap rebuilds the full year-by-year projection behind the team's most
// recent closed round. The engine is pure, so recomputing from the snapshot
// inputs reproduces the round-close numbers exactly.
func (m *Manager) Recap(teamID int) (*engine.Projection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return nil, ErrTeamNotFound
	}
	n := len(t.History)
	if n == 0 {
		return nil, ErrWrongState
	}
	last := t.History[n-1]
	if last.Err != "" {
		return nil, &engine.DegenerateValuationError{Reason: last.Err}
	}
	priors := make([]float64, 0, n-1)
	for _, s := range t.History[:n-1] {
		priors = append(priors, s.GrowthDecline)
	}
	startPrice := engine.InitialSharePrice
	if n > 1 {
		startPrice = t.History[n-2].SharePrice
	}
	return m.engine.Project(last.Round, last.DecisionIDs, priors, startPrice)
}

func (m *Manager) teamViewLocked(t *Team) TeamView {
	ids := t.selectedIDs()
	if t.HasSubmitted {
		ids = append([]int(nil), t.Committed...)
	}
	return TeamView{
		TeamID:       t.ID,
		TeamName:     t.Name,
		CashBalance:  t.CashBalance,
		DecisionIDs:  ids,
		CostSpent:    m.catalog.TotalCost(ids),
		HasSubmitted: t.HasSubmitted,
		History:      append([]RoundSnapshot(nil), t.History...),
	}
}
