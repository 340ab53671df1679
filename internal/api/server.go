package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boardroom/internal/config"
	"boardroom/internal/engine"
	"boardroom/internal/game"
	"boardroom/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type contextKey string

const teamContextKey contextKey = "team"

// Historian reads archived rounds back for post-game review. Nil when no
// database is configured.
type Historian interface {
	GameHistory(ctx context.Context, gameID string) ([]store.GameRow, error)
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	game    *game.Manager
	history Historian
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, mgr *game.Manager, history Historian) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		game:    mgr,
		history: history,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Team-Token", "X-Admin-Key"},
	})
	return c.Handler(s.mux)
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/decisions", s.handleDecisions)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/teams/join", s.handleJoin)

		r.Route("/team", func(r chi.Router) {
			r.Use(s.teamMiddleware)
			r.Get("/", s.handleTeam)
			r.Get("/recap", s.handleRecap)
			r.Post("/decisions/{id}/toggle", s.handleToggle)
			r.Put("/draft", s.handleDraft)
			r.Post("/submit", s.handleSubmit)
			r.Post("/unsubmit", s.handleUnsubmit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Get("/overview", s.handleOverview)
			r.Get("/history", s.handleHistory)
			r.Post("/configure", s.handleConfigure)
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/end-round", s.handleEndRound)
			r.Post("/next-round", s.handleNextRound)
			r.Post("/reset", s.handleReset)
			r.Post("/event", s.handleEvent)
		})
	})
}

func (s *Server) teamMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Team-Token"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing team token")
			return
		}
		teamID, ok := s.game.TeamIDForToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid team token")
			return
		}
		ctx := context.WithValue(r.Context(), teamContextKey, teamID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminKey)) != 1 {
			s.log.Warn("admin auth rejected", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func teamFromContext(ctx context.Context) (int, error) {
	id, ok := ctx.Value(teamContextKey).(int)
	if !ok {
		return 0, errors.New("missing team context")
	}
	return id, nil
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleDecisions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"decisions": s.game.Catalog().All()})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": s.game.Leaderboard()})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Token != "" {
		result, err := s.game.Rejoin(in.Token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	result, err := s.game.Join(in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Team(teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Recap(teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	decisionID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid decision id")
		return
	}
	out, err := s.game.ToggleDecision(teamID, decisionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		DecisionIDs []int `json:"decision_ids"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.SyncDraft(teamID, in.DecisionIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Submit(teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnsubmit(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Unsubmit(teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": s.game.GameID(),
		"state":   s.game.State(),
	})
}

// handleHistory serves the archived rounds of a game, defaulting to the
// game currently in play.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "no round archive configured")
		return
	}
	gameID := strings.TrimSpace(r.URL.Query().Get("game_id"))
	if gameID == "" {
		gameID = s.game.GameID()
	}
	rows, err := s.history.GameHistory(r.Context(), gameID)
	if err != nil {
		s.log.Error("history query failed", "game_id", gameID, "err", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "history": rows})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TeamCount            int `json:"team_count"`
		RoundDurationSeconds int `json:"round_duration_seconds"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.Configure(in.TeamCount, in.RoundDurationSeconds); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.Start)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.Resume)
}

func (s *Server) handleEndRound(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.EndRound)
}

func (s *Server) handleNextRound(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.NextRound)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.adminTransition(w, s.game.Reset)
}

func (s *Server) adminTransition(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Headline     string  `json:"headline"`
		DeclineDelta float64 `json:"decline_delta"`
		BudgetDelta  float64 `json:"budget_delta"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.InjectEvent(in.Headline, in.DeclineDelta, in.BudgetDelta); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.game.State())
}

func writeDomainError(w http.ResponseWriter, err error) {
	var degenerate *engine.DegenerateValuationError
	switch {
	case errors.Is(err, game.ErrNameTaken),
		errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrNotJoinable),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrRoundClosed),
		errors.Is(err, game.ErrWrongState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrUnknownDecision), errors.Is(err, game.ErrOverBudget):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &degenerate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
