package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"boardroom/internal/catalog"
	"boardroom/internal/engine"
	"boardroom/internal/game"
	"boardroom/internal/store"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type decisionsPayload struct {
	Decisions []catalog.Decision `json:"decisions"`
}

type leaderboardPayload struct {
	Leaderboard []game.LeaderboardRow `json:"leaderboard"`
}

type historyPayload struct {
	GameID  string          `json:"game_id"`
	History []store.GameRow `json:"history"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		printWarn(label + " is required.")
	}
}

func renderState(state game.StateView) {
	accent.Printf("Boardroom — %s\n", state.Status)
	if state.CurrentRound > 0 {
		fmt.Printf("Round %d of %d   clock %s\n", state.CurrentRound, game.MaxRounds, clock(state.TimeRemaining))
	}
	if sc := state.Scenario; sc != nil {
		warn.Printf("%s\n", sc.Headline)
		if sc.Narrative != "" {
			fmt.Println(sc.Narrative)
		}
		fmt.Printf("Round budget: %s\n", money(sc.Budget))
	}
	if len(state.Teams) > 0 {
		fmt.Println()
		fmt.Printf("%-4s %-20s %-10s %-8s %s\n", "ID", "Team", "Price", "Rounds", "Status")
		for _, t := range state.Teams {
			status := "drafting"
			if t.HasSubmitted {
				status = "submitted"
			}
			fmt.Printf("%-4d %-20s %-10s %-8d %s\n", t.TeamID, truncate(t.TeamName, 20), money(t.SharePrice), t.RoundsPlayed, status)
		}
	}
}

func renderDecisions(raw map[string]any) error {
	payload, err := decodeInto[decisionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("Decision deck")
	fmt.Printf("%-4s %-38s %-10s %-8s %s\n", "ID", "Name", "Category", "Cost", "Risk")
	for _, d := range payload.Decisions {
		risk := ""
		if d.IsRisky {
			risk = danger.Sprint("risky")
		}
		fmt.Printf("%-4d %-38s %-10s %-8s %s\n", d.ID, truncate(d.Name, 38), d.Category, money(d.Cost), risk)
	}
	return nil
}

func renderTeam(view game.TeamView) {
	accent.Printf("%s (team %d)\n", view.TeamName, view.TeamID)
	fmt.Printf("Budget remaining: %s   spent: %s\n", money(view.CashBalance-view.CostSpent), money(view.CostSpent))
	if view.HasSubmitted {
		success.Println("Submitted.")
	}
	if len(view.DecisionIDs) == 0 {
		printInfo("No decisions selected.")
	} else {
		fmt.Printf("Selected: %v\n", view.DecisionIDs)
	}
	for _, snap := range view.History {
		line := fmt.Sprintf("Round %d: %s  (TSR %s)  decisions %v", snap.Round, money(snap.SharePrice), percent(snap.TSR), snap.DecisionIDs)
		if snap.AutoSubmitted {
			line += "  [auto]"
		}
		if snap.Err != "" {
			danger.Println(line + "  valuation failed: " + snap.Err)
			continue
		}
		fmt.Println(line)
	}
}

func renderLeaderboard(raw map[string]any) error {
	payload, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("Leaderboard")
	fmt.Printf("%-6s %-20s %-10s %s\n", "Rank", "Team", "Price", "TSR")
	for _, row := range payload.Leaderboard {
		fmt.Printf("%-6d %-20s %-10s %s\n", row.Rank, truncate(row.TeamName, 20), money(row.SharePrice), percent(row.TSR))
	}
	return nil
}

func renderHistory(raw map[string]any) error {
	payload, err := decodeInto[historyPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("Game %s\n", payload.GameID)
	if len(payload.History) == 0 {
		printInfo("No archived rounds.")
		return nil
	}
	fmt.Printf("%-6s %-20s %-10s %-10s %-8s %s\n", "Round", "Team", "Price", "TSR", "Spent", "Notes")
	for _, row := range payload.History {
		notes := ""
		if row.AutoSubmitted {
			notes = "[auto]"
		}
		if row.EngineError != "" {
			notes = strings.TrimSpace(notes + " " + danger.Sprint("valuation failed"))
		}
		fmt.Printf("%-6d %-20s %-10s %-10s %-8s %s\n", row.Round, truncate(row.TeamName, 20), money(row.SharePrice), percent(row.TSR), money(row.CostSpent), notes)
	}
	return nil
}

func renderProjection(proj engine.Projection) {
	accent.Printf("Round %d valuation\n", proj.Round)
	fmt.Printf("Share price:      %s\n", money(proj.SharePrice))
	fmt.Printf("Forward price:    %s\n", money(proj.ForwardPrice))
	fmt.Printf("TSR:              %s\n", percent(proj.TSR))
	fmt.Printf("Enterprise value: %s\n", money(proj.EnterpriseValue))
	fmt.Printf("Equity value:     %s\n", money(proj.EquityValue))
	fmt.Printf("10y NPV:          %s   PV of terminal: %s\n", money(proj.NPV10Year), money(proj.PVTerminalValue))
	if proj.SkippedSustainCount > 0 {
		warn.Printf("Skipped sustain decisions: %d (growth decline %.3f from next year on)\n", proj.SkippedSustainCount, proj.CurrentRoundDecline)
	}
	if len(proj.SkippedDecisionIDs) > 0 {
		warn.Printf("Ignored unknown decision ids: %v\n", proj.SkippedDecisionIDs)
	}
	fmt.Println()
	fmt.Printf("%-6s %-12s %-12s %-12s %-12s\n", "FY", "Revenue", "EBITDA", "FCF", "PV")
	for _, y := range proj.Years {
		fmt.Printf("%-6d %-12s %-12s %-12s %-12s\n", y.FiscalYear, money(y.RevenueTotal), money(y.EBITDA), money(y.FCF), money(y.PresentValue))
	}
}

func renderJSON(raw any) error {
	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func money(v float64) string {
	if v < 0 {
		return danger.Sprintf("-%.2f", -v)
	}
	return fmt.Sprintf("%.2f", v)
}

func percent(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v*100)
	if v > 0 {
		return success.Sprint(s)
	}
	if v < 0 {
		return danger.Sprint(s)
	}
	return s
}

func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
