package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"boardroom/internal/catalog"
	"boardroom/internal/config"
	"boardroom/internal/engine"
	"boardroom/internal/game"
	"boardroom/internal/store"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) (*httptest.Server, *game.Manager) {
	t.Helper()
	return newTestServerWithHistory(t, nil)
}

func newTestServerWithHistory(t *testing.T, history Historian) (*httptest.Server, *game.Manager) {
	t.Helper()
	deck, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("builtin catalog: %v", err)
	}
	eng, err := engine.New(deck, engine.DefaultParams())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := game.NewManager(deck, eng, logger, game.Options{TeamCount: 4, RoundDurationSeconds: 60})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := config.APIConfig{AdminKey: testAdminKey, AllowedOrigins: []string{"*"}}
	srv := httptest.NewServer(New(cfg, logger, mgr, history).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr
}

func doRequest(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func joinTeam(t *testing.T, base, name string) (string, int) {
	t.Helper()
	resp, out := doRequest(t, http.MethodPost, base+"/v1/teams/join", map[string]any{"name": name}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join status %d: %v", resp.StatusCode, out)
	}
	return out["token"].(string), int(out["team_id"].(float64))
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, out := doRequest(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK || out["ok"] != true {
		t.Fatalf("healthz %d %v", resp.StatusCode, out)
	}
}

func TestPublicEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, out := doRequest(t, http.MethodGet, srv.URL+"/v1/state", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status %d", resp.StatusCode)
	}
	if out["status"] != "lobby" {
		t.Fatalf("status %v", out["status"])
	}

	resp, out = doRequest(t, http.MethodGet, srv.URL+"/v1/decisions", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decisions status %d", resp.StatusCode)
	}
	decisions, ok := out["decisions"].([]any)
	if !ok || len(decisions) != 9 {
		t.Fatalf("decisions payload %v", out)
	}

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/v1/leaderboard", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard status %d", resp.StatusCode)
	}
}

func TestJoinAndRejoin(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := joinTeam(t, srv.URL, "Alpha")

	resp, out := doRequest(t, http.MethodPost, srv.URL+"/v1/teams/join", map[string]any{"name": "alpha"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate join status %d: %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPost, srv.URL+"/v1/teams/join", map[string]any{"token": token}, nil)
	if resp.StatusCode != http.StatusOK || out["rejoined"] != true {
		t.Fatalf("rejoin %d %v", resp.StatusCode, out)
	}
}

func TestTeamAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/team/", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/v1/team/", nil, map[string]string{"X-Team-Token": "bogus"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", resp.StatusCode)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/admin/start", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key status %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/v1/admin/start", nil, map[string]string{"X-Admin-Key": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status %d", resp.StatusCode)
	}
}

func TestRoundFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := joinTeam(t, srv.URL, "Alpha")
	teamHeaders := map[string]string{"X-Team-Token": token}

	resp, out := doRequest(t, http.MethodPost, srv.URL+"/v1/admin/start", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK || out["status"] != "active" {
		t.Fatalf("start %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPost, srv.URL+"/v1/team/decisions/1/toggle", nil, teamHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPut, srv.URL+"/v1/team/draft", map[string]any{"decision_ids": []int{1, 2, 3}}, teamHeaders)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-budget draft %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPut, srv.URL+"/v1/team/draft", map[string]any{"decision_ids": []int{1, 4, 7, 8, 9}}, teamHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("draft %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPost, srv.URL+"/v1/team/submit", nil, teamHeaders)
	if resp.StatusCode != http.StatusOK || out["has_submitted"] != true {
		t.Fatalf("submit %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodPost, srv.URL+"/v1/admin/end-round", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK || out["status"] != "results" {
		t.Fatalf("end round %d %v", resp.StatusCode, out)
	}

	resp, out = doRequest(t, http.MethodGet, srv.URL+"/v1/team/recap", nil, teamHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recap %d %v", resp.StatusCode, out)
	}
	if _, ok := out["share_price"].(float64); !ok {
		t.Fatalf("recap payload %v", out)
	}

	// Toggling after the round closed conflicts.
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/v1/team/decisions/4/toggle", nil, teamHeaders)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("post-close toggle status %d", resp.StatusCode)
	}
}

func TestAdminEvent(t *testing.T) {
	srv, _ := newTestServer(t)
	joinTeam(t, srv.URL, "Alpha")
	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/admin/start", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	resp, out := doRequest(t, http.MethodPost, srv.URL+"/v1/admin/event", map[string]any{
		"headline":      "Flash Crash",
		"decline_delta": 0.002,
		"budget_delta":  -20,
	}, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("event %d %v", resp.StatusCode, out)
	}
	scenario, ok := out["scenario"].(map[string]any)
	if !ok || scenario["headline"] != "Flash Crash" || scenario["budget"] != 180.0 {
		t.Fatalf("scenario %v", out["scenario"])
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/teams/join", map[string]any{"name": "A", "extra": 1}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status %d", resp.StatusCode)
	}
}

type stubHistorian struct {
	rows   []store.GameRow
	gameID string
}

func (h *stubHistorian) GameHistory(_ context.Context, gameID string) ([]store.GameRow, error) {
	h.gameID = gameID
	return h.rows, nil
}

func TestAdminHistory(t *testing.T) {
	hist := &stubHistorian{rows: []store.GameRow{
		{TeamID: 1, TeamName: "Alpha", Round: 1, SharePrice: 53.67},
		{TeamID: 2, TeamName: "Beta", Round: 1, SharePrice: 52.27, EngineError: "degenerate valuation: terminal roic -1.3 is not positive"},
	}}
	srv, mgr := newTestServerWithHistory(t, hist)

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/admin/history", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated history status %d", resp.StatusCode)
	}

	resp, out := doRequest(t, http.MethodGet, srv.URL+"/v1/admin/history", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %v", resp.StatusCode, out)
	}
	if hist.gameID != mgr.GameID() {
		t.Fatalf("queried game %q, want current game %q", hist.gameID, mgr.GameID())
	}
	rows, ok := out["history"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("history payload %v", out)
	}

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/v1/admin/history?game_id=past-game", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK || hist.gameID != "past-game" {
		t.Fatalf("explicit game query status %d, queried %q", resp.StatusCode, hist.gameID)
	}
}

func TestAdminHistoryWithoutArchive(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/admin/history", nil, adminHeaders())
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("archiveless history status %d", resp.StatusCode)
	}
}
