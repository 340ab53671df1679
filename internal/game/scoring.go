package game

import (
	"sort"

	"boardroom/internal/engine"
)

// LeaderboardRow ranks one team by its latest share price.
type LeaderboardRow struct {
	Rank         int     `json:"rank"`
	TeamID       int     `json:"team_id"`
	TeamName     string  `json:"team_name"`
	SharePrice   float64 `json:"share_price"`
	TSR          float64 `json:"tsr"`
	RoundsPlayed int     `json:"rounds_played"`
}

// Leaderboard ranks teams by latest share price descending, with cumulative
// TSR and then name as tiebreakers. Teams that have not played a round sit
// at the starting price.
func (m *Manager) Leaderboard() []LeaderboardRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaderboardLocked()
}

func (m *Manager) leaderboardLocked() []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(m.teams))
	for _, t := range m.teams {
		rows = append(rows, LeaderboardRow{
			TeamID:       t.ID,
			TeamName:     t.Name,
			SharePrice:   latestPrice(t),
			TSR:          cumulativeTSR(t),
			RoundsPlayed: len(t.History),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SharePrice != b.SharePrice {
			return a.SharePrice > b.SharePrice
		}
		if a.TSR != b.TSR {
			return a.TSR > b.TSR
		}
		return a.TeamName < b.TeamName
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func latestPrice(t *Team) float64 {
	if n := len(t.History); n > 0 {
		return t.History[n-1].SharePrice
	}
	return engine.InitialSharePrice
}

// cumulativeTSR is total return since the game started.
func cumulativeTSR(t *Team) float64 {
	if len(t.History) == 0 {
		return 0
	}
	return latestPrice(t)/engine.InitialSharePrice - 1
}
