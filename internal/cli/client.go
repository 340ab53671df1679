package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardroom/internal/engine"
	"boardroom/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client

	TeamToken string
	AdminKey  string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) State(ctx context.Context) (game.StateView, error) {
	var out game.StateView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/state", nil, &out)
	return out, err
}

func (c *Client) Decisions(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/decisions", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", nil, &out)
	return out, err
}

func (c *Client) Join(ctx context.Context, name string) (game.JoinResult, error) {
	var out game.JoinResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/teams/join", map[string]any{"name": name}, &out)
	return out, err
}

func (c *Client) Rejoin(ctx context.Context, token string) (game.JoinResult, error) {
	var out game.JoinResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/teams/join", map[string]any{"token": token}, &out)
	return out, err
}

func (c *Client) Team(ctx context.Context) (game.TeamView, error) {
	var out game.TeamView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/team/", nil, &out)
	return out, err
}

func (c *Client) Recap(ctx context.Context) (engine.Projection, error) {
	var out engine.Projection
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/team/recap", nil, &out)
	return out, err
}

func (c *Client) Toggle(ctx context.Context, decisionID int) (game.TeamView, error) {
	var out game.TeamView
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/team/decisions/%d/toggle", decisionID), nil, &out)
	return out, err
}

func (c *Client) Draft(ctx context.Context, decisionIDs []int) (game.TeamView, error) {
	var out game.TeamView
	err := c.jsonRequest(ctx, http.MethodPut, "/v1/team/draft", map[string]any{"decision_ids": decisionIDs}, &out)
	return out, err
}

func (c *Client) Submit(ctx context.Context) (game.TeamView, error) {
	var out game.TeamView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/team/submit", nil, &out)
	return out, err
}

func (c *Client) Unsubmit(ctx context.Context) (game.TeamView, error) {
	var out game.TeamView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/team/unsubmit", nil, &out)
	return out, err
}

func (c *Client) AdminOverview(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/overview", nil, &out)
	return out, err
}

func (c *Client) AdminConfigure(ctx context.Context, teamCount, roundSeconds int) (game.StateView, error) {
	var out game.StateView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/configure", map[string]any{
		"team_count":             teamCount,
		"round_duration_seconds": roundSeconds,
	}, &out)
	return out, err
}

func (c *Client) AdminAction(ctx context.Context, action string) (game.StateView, error) {
	var out game.StateView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/"+action, nil, &out)
	return out, err
}

// AdminHistory fetches the archived rounds of a game; an empty gameID means
// the game currently in play.
func (c *Client) AdminHistory(ctx context.Context, gameID string) (map[string]any, error) {
	path := "/v1/admin/history"
	if gameID != "" {
		path += "?game_id=" + url.QueryEscape(gameID)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) AdminEvent(ctx context.Context, headline string, declineDelta, budgetDelta float64) (game.StateView, error) {
	var out game.StateView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/event", map[string]any{
		"headline":      headline,
		"decline_delta": declineDelta,
		"budget_delta":  budgetDelta,
	}, &out)
	return out, err
}

// Do issues an arbitrary request. The offline queue replays through here.
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, body, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TeamToken != "" {
		req.Header.Set("X-Team-Token", c.TeamToken)
	}
	if c.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
