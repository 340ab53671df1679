package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"boardroom/internal/catalog"
	"boardroom/internal/engine"
)

// Archive persists completed round snapshots. Implementations must be safe
// for concurrent use; the manager calls them fire-and-forget.
type Archive interface {
	SaveSnapshot(ctx context.Context, gameID string, teamID int, teamName string, snap RoundSnapshot) error
}

// Broadcaster pushes state changes toward connected clients. The wire
// framing lives elsewhere; the manager only emits events.
type Broadcaster interface {
	Publish(event string, payload any)
}

type slogBroadcaster struct {
	log *slog.Logger
}

func (b slogBroadcaster) Publish(event string, _ any) {
	b.log.Debug("broadcast", "event", event)
}

// Manager owns the game state. Every mutation goes through its mutex, so
// team actions and round close are serialized: a toggle either lands fully
// before a close or is rejected after it, never interleaved.
type Manager struct {
	mu  sync.Mutex
	log *slog.Logger

	catalog       *catalog.Catalog
	engine        *engine.Engine
	baseScenarios []catalog.Scenario
	scenarios     map[int]*catalog.Scenario
	archive       Archive
	broadcast     Broadcaster

	gameID               string
	status               Status
	currentRound         int
	roundDurationSeconds int
	timeRemaining        int
	teamCount            int
	teams                map[int]*Team
	nameIndex            map[string]int
	tokenIndex           map[string]int

	// closing guards round close: it flips before the engine fan-out so a
	// concurrent timer expiry and admin end-round resolve to exactly one
	// set of snapshots.
	closing bool
}

type Options struct {
	TeamCount            int
	RoundDurationSeconds int
	Archive              Archive
	Broadcaster          Broadcaster
	Scenarios            []catalog.Scenario
}

func NewManager(c *catalog.Catalog, eng *engine.Engine, logger *slog.Logger, opts Options) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TeamCount == 0 {
		opts.TeamCount = 6
	}
	if opts.RoundDurationSeconds == 0 {
		opts.RoundDurationSeconds = 600
	}
	if err := validateConfig(opts.TeamCount, opts.RoundDurationSeconds); err != nil {
		return nil, err
	}
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = catalog.BuiltinScenarios()
	}
	byRound := scenarioMap(scenarios)
	for r := 1; r <= MaxRounds; r++ {
		if _, ok := byRound[r]; !ok {
			return nil, fmt.Errorf("no scenario configured for round %d", r)
		}
	}
	broadcast := opts.Broadcaster
	if broadcast == nil {
		broadcast = slogBroadcaster{log: logger}
	}
	return &Manager{
		log:                  logger,
		catalog:              c,
		engine:               eng,
		baseScenarios:        scenarios,
		scenarios:            byRound,
		archive:              opts.Archive,
		broadcast:            broadcast,
		gameID:               uuid.NewString(),
		status:               StatusLobby,
		teamCount:            opts.TeamCount,
		roundDurationSeconds: opts.RoundDurationSeconds,
		teams:                make(map[int]*Team),
		nameIndex:            make(map[string]int),
		tokenIndex:           make(map[string]int),
	}, nil
}

func scenarioMap(scenarios []catalog.Scenario) map[int]*catalog.Scenario {
	byRound := make(map[int]*catalog.Scenario, len(scenarios))
	for i := range scenarios {
		sc := scenarios[i]
		byRound[sc.Round] = &sc
	}
	return byRound
}

func validateConfig(teamCount, durationSeconds int) error {
	if teamCount < 1 || teamCount > MaxTeams {
		return fmt.Errorf("team count %d out of range [1,%d]", teamCount, MaxTeams)
	}
	if durationSeconds < MinRoundDurationSeconds || durationSeconds > MaxRoundDurationSeconds {
		return fmt.Errorf("round duration %ds out of range [%d,%d]", durationSeconds, MinRoundDurationSeconds, MaxRoundDurationSeconds)
	}
	return nil
}

// Run drives the countdown. The ticker only decays time while the game is
// active, so a paused round holds its remaining seconds.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) tick() {
	m.mu.Lock()
	if m.status != StatusActive || m.closing {
		m.mu.Unlock()
		return
	}
	m.timeRemaining--
	expired := m.timeRemaining <= 0
	m.mu.Unlock()

	if expired {
		if err := m.closeRound("timer"); err != nil {
			m.log.Error("timer round close failed", "err", err)
		}
	}
}

func (m *Manager) GameID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameID
}

// Catalog exposes the decision deck for read-only listing.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Join claims the next free slot for a new team name. Names are unique
// case-insensitively. A returning client should rejoin with its token
// instead of claiming a second slot.
func (m *Manager) Join(name string) (JoinResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinResult{}, fmt.Errorf("team name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusLobby {
		return JoinResult{}, ErrNotJoinable
	}
	key := strings.ToLower(name)
	if _, taken := m.nameIndex[key]; taken {
		return JoinResult{}, ErrNameTaken
	}
	if len(m.teams) >= m.teamCount {
		return JoinResult{}, ErrGameFull
	}
	id := 1
	for ; id <= m.teamCount; id++ {
		if _, used := m.teams[id]; !used {
			break
		}
	}
	t := &Team{
		ID:       id,
		Name:     name,
		Token:    uuid.NewString(),
		Selected: make(map[int]bool),
	}
	m.teams[id] = t
	m.nameIndex[key] = id
	m.tokenIndex[t.Token] = id
	m.log.Info("team joined", "team_id", id, "team_name", name)
	m.broadcast.Publish("team_joined", TeamSummary{TeamID: id, TeamName: name})
	return JoinResult{TeamID: id, TeamName: name, Token: t.Token, CashBalance: t.CashBalance}, nil
}

// Rejoin resolves a stored token back to its slot, skipping the claim.
func (m *Manager) Rejoin(token string) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokenIndex[token]
	if !ok {
		return JoinResult{}, ErrTeamNotFound
	}
	t := m.teams[id]
	return JoinResult{TeamID: t.ID, TeamName: t.Name, Token: t.Token, CashBalance: t.CashBalance, Rejoined: true}, nil
}

// TeamIDForToken validates slot ownership for the transport layer.
func (m *Manager) TeamIDForToken(token string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokenIndex[token]
	return id, ok
}

// ToggleDecision flips a decision in the team's draft. Adding a decision
// that would overspend the round budget is rejected with the selection
// unchanged; the affordability check in the UI is mirrored here so direct
// protocol calls cannot cheat.
func (m *Manager) ToggleDecision(teamID, decisionID int) (TeamView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.editableTeam(teamID)
	if err != nil {
		return TeamView{}, err
	}
	d, ok := m.catalog.Get(decisionID)
	if !ok {
		return m.teamViewLocked(t), ErrUnknownDecision
	}
	if t.Selected[decisionID] {
		delete(t.Selected, decisionID)
	} else {
		if m.catalog.TotalCost(t.selectedIDs())+d.Cost > t.CashBalance {
			return m.teamViewLocked(t), ErrOverBudget
		}
		t.Selected[decisionID] = true
	}
	return m.teamViewLocked(t), nil
}

// SyncDraft replaces the team's draft wholesale. It is advisory: it does
// not lock the team, it just makes sure a timer-expiry auto-submit has a
// current set to consolidate.
func (m *Manager) SyncDraft(teamID int, decisionIDs []int) (TeamView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.editableTeam(teamID)
	if err != nil {
		return TeamView{}, err
	}
	next := make(map[int]bool, len(decisionIDs))
	for _, id := range decisionIDs {
		if _, ok := m.catalog.Get(id); !ok {
			return m.teamViewLocked(t), fmt.Errorf("%w: %d", ErrUnknownDecision, id)
		}
		next[id] = true
	}
	ids := make([]int, 0, len(next))
	for id := range next {
		ids = append(ids, id)
	}
	if m.catalog.TotalCost(ids) > t.CashBalance {
		return m.teamViewLocked(t), ErrOverBudget
	}
	t.Selected = next
	return m.teamViewLocked(t), nil
}

// Submit freezes the team's current draft for this round. Idempotent: a
// second submit without an unsubmit changes nothing.
func (m *Manager) Submit(teamID int) (TeamView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.openRoundTeam(teamID)
	if err != nil {
		return TeamView{}, err
	}
	if !t.HasSubmitted {
		t.HasSubmitted = true
		t.Committed = t.selectedIDs()
		m.broadcast.Publish("team_submitted", TeamSummary{TeamID: t.ID, TeamName: t.Name, HasSubmitted: true})
	}
	return m.teamViewLocked(t), nil
}

// Unsubmit reopens the team for editing while the round still has time.
func (m *Manager) Unsubmit(teamID int) (TeamView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.openRoundTeam(teamID)
	if err != nil {
		return TeamView{}, err
	}
	if m.timeRemaining <= 0 {
		return m.teamViewLocked(t), ErrRoundClosed
	}
	t.HasSubmitted = false
	t.Committed = nil
	return m.teamViewLocked(t), nil
}

func (m *Manager) editableTeam(teamID int) (*Team, error) {
	t, err := m.openRoundTeam(teamID)
	if err != nil {
		return nil, err
	}
	if t.HasSubmitted {
		return nil, ErrAlreadySubmitted
	}
	return t, nil
}

func (m *Manager) openRoundTeam(teamID int) (*Team, error) {
	if m.closing || (m.status != StatusActive && m.status != StatusPaused) {
		return nil, ErrRoundClosed
	}
	t, ok := m.teams[teamID]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return t, nil
}

// Configure sets team count and round duration. Lobby only; the specific
// out-of-range value is named in the error for the admin.
func (m *Manager) Configure(teamCount, roundDurationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusLobby {
		return fmt.Errorf("%w: configuration is only editable in the lobby", ErrWrongState)
	}
	if err := validateConfig(teamCount, roundDurationSeconds); err != nil {
		return err
	}
	if teamCount < len(m.teams) {
		return fmt.Errorf("team count %d is below the %d teams already joined", teamCount, len(m.teams))
	}
	m.teamCount = teamCount
	m.roundDurationSeconds = roundDurationSeconds
	return nil
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusLobby {
		return fmt.Errorf("%w: cannot start from %s", ErrWrongState, m.status)
	}
	if len(m.teams) == 0 {
		return fmt.Errorf("cannot start with zero joined teams")
	}
	m.currentRound = 1
	m.openRoundLocked()
	m.log.Info("game started", "teams", len(m.teams), "round_duration_s", m.roundDurationSeconds)
	return nil
}

func (m *Manager) openRoundLocked() {
	sc := m.scenarios[m.currentRound]
	for _, t := range m.teams {
		t.CashBalance = sc.Budget
		t.Selected = make(map[int]bool)
		t.Committed = nil
		t.HasSubmitted = false
	}
	m.timeRemaining = m.roundDurationSeconds
	m.status = StatusActive
	m.broadcast.Publish("round_opened", m.stateViewLocked())
}

func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusActive {
		return fmt.Errorf("%w: cannot pause from %s", ErrWrongState, m.status)
	}
	m.status = StatusPaused
	m.broadcast.Publish("paused", nil)
	return nil
}

func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPaused {
		return fmt.Errorf("%w: cannot resume from %s", ErrWrongState, m.status)
	}
	m.status = StatusActive
	m.broadcast.Publish("resumed", nil)
	return nil
}

// EndRound closes the current round on the admin's signal. Safe to race
// with timer expiry: whichever acquires the closing flag first runs the
// consolidation, the other is a no-op.
func (m *Manager) EndRound() error {
	return m.closeRound("admin")
}

func (m *Manager) NextRound() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusResults {
		return fmt.Errorf("%w: cannot advance from %s", ErrWrongState, m.status)
	}
	if m.currentRound >= MaxRounds {
		m.status = StatusComplete
		m.broadcast.Publish("game_complete", m.stateViewLocked())
		m.log.Info("game complete", "game_id", m.gameID)
		return nil
	}
	m.currentRound++
	m.openRoundLocked()
	m.log.Info("round opened", "round", m.currentRound)
	return nil
}

// Reset tears the session down to a fresh lobby. Team slots, histories and
// the round counter are discarded; configuration is kept.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameID = uuid.NewString()
	m.status = StatusLobby
	m.currentRound = 0
	m.timeRemaining = 0
	m.closing = false
	// Discard any mid-round event mutations along with the teams.
	m.scenarios = scenarioMap(m.baseScenarios)
	m.teams = make(map[int]*Team)
	m.nameIndex = make(map[string]int)
	m.tokenIndex = make(map[string]int)
	m.broadcast.Publish("reset", nil)
	m.log.Info("game reset", "game_id", m.gameID)
	return nil
}

// InjectEvent mutates the active round's scenario mid-round: a market shock
// headline, an extra growth decline the round will contribute, and a budget
// delta applied to every team. Committed submissions are not disturbed; a
// negative budget delta never cuts a team below what it has already drafted.
func (m *Manager) InjectEvent(headline string, declineDelta, budgetDelta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusActive && m.status != StatusPaused {
		return fmt.Errorf("%w: events need an open round", ErrWrongState)
	}
	sc := m.scenarios[m.currentRound]
	if strings.TrimSpace(headline) != "" {
		sc.Headline = strings.TrimSpace(headline)
	}
	sc.ExtraDecline += declineDelta
	sc.Budget += budgetDelta
	for _, t := range m.teams {
		next := t.CashBalance + budgetDelta
		floor := m.catalog.TotalCost(t.finalIDs())
		if next < floor {
			next = floor
		}
		t.CashBalance = next
	}
	m.broadcast.Publish("scenario_event", ScenarioView{
		Round: sc.Round, Headline: sc.Headline, Narrative: sc.Narrative, Budget: sc.Budget,
	})
	m.log.Info("scenario event injected", "round", m.currentRound, "decline_delta", declineDelta, "budget_delta", budgetDelta)
	return nil
}

// closeRound consolidates every team exactly once. The closing flag flips
// before any engine call, so late toggles and a second trigger both bounce.
func (m *Manager) closeRound(trigger string) error {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return nil
	}
	if m.status != StatusActive && m.status != StatusPaused {
		m.mu.Unlock()
		if m.status == StatusResults {
			return nil
		}
		return fmt.Errorf("%w: cannot end round from %s", ErrWrongState, m.status)
	}
	m.closing = true

	round := m.currentRound
	sc := m.scenarios[round]

	ids := make([]int, 0, len(m.teams))
	for id := range m.teams {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	archived := make([]RoundSnapshot, 0, len(ids))
	archivedTeams := make([]*Team, 0, len(ids))
	for _, id := range ids {
		t := m.teams[id]
		snap := m.consolidateTeamLocked(t, round, sc)
		t.History = append(t.History, snap)
		archived = append(archived, snap)
		archivedTeams = append(archivedTeams, t)
	}

	m.timeRemaining = 0
	m.status = StatusResults
	m.closing = false
	view := m.stateViewLocked()
	gameID := m.gameID
	m.mu.Unlock()

	m.log.Info("round closed", "round", round, "trigger", trigger, "teams", len(ids))
	m.broadcast.Publish("round_closed", view)
	if m.archive != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for i, snap := range archived {
				t := archivedTeams[i]
				if err := m.archive.SaveSnapshot(ctx, gameID, t.ID, t.Name, snap); err != nil {
					m.log.Error("snapshot archive failed", "team_id", t.ID, "round", snap.Round, "err", err)
				}
			}
		}()
	}
	return nil
}

// consolidateTeamLocked runs the engine for one team. Engine failure is
// isolated: the snapshot carries the error and the team's price goes flat,
// while every other team proceeds normally.
func (m *Manager) consolidateTeamLocked(t *Team, round int, sc *catalog.Scenario) RoundSnapshot {
	final := t.finalIDs()
	snap := RoundSnapshot{
		Round:         round,
		DecisionIDs:   final,
		CostSpent:     m.catalog.TotalCost(final),
		AutoSubmitted: !t.HasSubmitted,
	}

	startPrice := engine.InitialSharePrice
	if n := len(t.History); n > 0 {
		startPrice = t.History[n-1].SharePrice
	}

	proj, err := m.engine.Project(round, final, t.priorDeclines(), startPrice)
	if err != nil {
		m.log.Error("projection failed", "team_id", t.ID, "round", round, "err", err)
		snap.Err = err.Error()
		snap.SharePrice = startPrice
		snap.ForwardPrice = startPrice
		snap.GrowthDecline = m.fallbackDeclineLocked(final) + sc.ExtraDecline
		return snap
	}
	snap.SharePrice = proj.SharePrice
	snap.ForwardPrice = proj.ForwardPrice
	snap.TSR = proj.TSR
	snap.GrowthDecline = proj.CurrentRoundDecline + sc.ExtraDecline
	snap.SkippedDecisionIDs = proj.SkippedDecisionIDs
	if len(proj.SkippedDecisionIDs) > 0 {
		m.log.Warn("unknown decision ids skipped", "team_id", t.ID, "round", round, "ids", proj.SkippedDecisionIDs)
	}
	return snap
}

// fallbackDeclineLocked recomputes the skipped-sustain decline without the
// engine, so a failed projection still carries its growth penalty forward.
func (m *Manager) fallbackDeclineLocked(selected []int) float64 {
	chosen := make(map[int]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}
	skipped := 0
	for _, id := range m.catalog.SustainIDs() {
		if !chosen[id] {
			skipped++
		}
	}
	return float64(skipped) * m.engine.Params().DeclinePerSkippedSustain
}
