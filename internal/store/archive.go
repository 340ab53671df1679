// Package store persists closed-round snapshots to Postgres. The archive is
// append-only history for post-game review; live game state never reads
// from it, so a database outage degrades to in-memory play.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"boardroom/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS round_snapshots (
    id             BIGSERIAL PRIMARY KEY,
    game_id        UUID NOT NULL,
    team_id        INT NOT NULL,
    team_name      TEXT NOT NULL,
    round          INT NOT NULL,
    decision_ids   INT[] NOT NULL,
    cost_spent     DOUBLE PRECISION NOT NULL,
    share_price    DOUBLE PRECISION NOT NULL,
    forward_price  DOUBLE PRECISION NOT NULL,
    tsr            DOUBLE PRECISION NOT NULL,
    growth_decline DOUBLE PRECISION NOT NULL,
    auto_submitted BOOLEAN NOT NULL,
    engine_error   TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (game_id, team_id, round)
);
CREATE INDEX IF NOT EXISTS idx_round_snapshots_game ON round_snapshots (game_id, round);
`

// Archive writes round snapshots through a pgx pool. Implements
// game.Archive.
type Archive struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, pool *pgxpool.Pool) (*Archive, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// SaveSnapshot upserts one team-round row. Round close retries hit the
// unique key and overwrite with identical values, so replays are harmless.
func (a *Archive) SaveSnapshot(ctx context.Context, gameID string, teamID int, teamName string, snap game.RoundSnapshot) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO round_snapshots
			(game_id, team_id, team_name, round, decision_ids, cost_spent,
			 share_price, forward_price, tsr, growth_decline, auto_submitted, engine_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (game_id, team_id, round) DO UPDATE SET
			decision_ids = EXCLUDED.decision_ids,
			cost_spent = EXCLUDED.cost_spent,
			share_price = EXCLUDED.share_price,
			forward_price = EXCLUDED.forward_price,
			tsr = EXCLUDED.tsr,
			growth_decline = EXCLUDED.growth_decline,
			auto_submitted = EXCLUDED.auto_submitted,
			engine_error = EXCLUDED.engine_error`,
		gameID, teamID, teamName, snap.Round, snap.DecisionIDs, snap.CostSpent,
		snap.SharePrice, snap.ForwardPrice, snap.TSR, snap.GrowthDecline,
		snap.AutoSubmitted, snap.Err,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GameRow is one archived team-round for review queries.
type GameRow struct {
	TeamID        int     `json:"team_id"`
	TeamName      string  `json:"team_name"`
	Round         int     `json:"round"`
	DecisionIDs   []int   `json:"decision_ids"`
	CostSpent     float64 `json:"cost_spent"`
	SharePrice    float64 `json:"share_price"`
	ForwardPrice  float64 `json:"forward_price"`
	TSR           float64 `json:"tsr"`
	GrowthDecline float64 `json:"growth_decline"`
	AutoSubmitted bool    `json:"auto_submitted"`
	EngineError   string  `json:"engine_error,omitempty"`
}

// GameHistory returns every archived round of a game ordered by round then
// team.
func (a *Archive) GameHistory(ctx context.Context, gameID string) ([]GameRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT team_id, team_name, round, decision_ids, cost_spent,
		       share_price, forward_price, tsr, growth_decline, auto_submitted, engine_error
		FROM round_snapshots
		WHERE game_id = $1
		ORDER BY round, team_id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []GameRow
	for rows.Next() {
		var r GameRow
		if err := rows.Scan(&r.TeamID, &r.TeamName, &r.Round, &r.DecisionIDs, &r.CostSpent,
			&r.SharePrice, &r.ForwardPrice, &r.TSR, &r.GrowthDecline, &r.AutoSubmitted, &r.EngineError); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
