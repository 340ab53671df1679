package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"boardroom/internal/catalog"
	cl "boardroom/internal/cli"
	"boardroom/internal/config"
	"boardroom/internal/engine"
	"boardroom/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	adminKey := cfg.AdminKey

	root := &cobra.Command{
		Use:          "brd",
		Short:        "Boardroom CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newJoinCmd(&apiBase),
		newLeaveCmd(),
		newStateCmd(&apiBase),
		newDecisionsCmd(&apiBase),
		newTeamCmd(&apiBase),
		newToggleCmd(&apiBase),
		newDraftCmd(&apiBase),
		newSubmitCmd(&apiBase),
		newUnsubmitCmd(&apiBase),
		newRecapCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newSyncCmd(&apiBase),
		newSimCmd(),
		newAdminCmd(&apiBase, &adminKey),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func teamClient(apiBase *string) (*cl.Client, error) {
	session, err := cl.LoadSession()
	if err != nil {
		return nil, err
	}
	client := newClient(apiBase)
	client.TeamToken = session.Token
	return client, nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

// offline detects transport failures as opposed to API rejections. Only
// transport failures are worth queueing; a 4xx would fail again on replay.
func offline(err error) bool {
	if err == nil {
		return false
	}
	return !strings.Contains(err.Error(), "api status")
}

func queueCommand(method, path string, body map[string]any) {
	if err := syncq.Push(syncq.Command{Method: method, Path: path, Body: body}); err != nil {
		printError(fmt.Sprintf("Could not queue command: %v", err))
		return
	}
	printWarn("API unreachable. Command queued, run `brd sync` when back online.")
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join [team-name]",
		Short: "Claim a team slot (or rejoin with a saved session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(apiBase)

			if session, err := cl.LoadSession(); err == nil {
				result, err := client.Rejoin(ctx, session.Token)
				if err == nil {
					printSuccess(fmt.Sprintf("Rejoined as %s (team %d).", result.TeamName, result.TeamID))
					return nil
				}
				printWarn("Saved session is stale, joining fresh.")
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				var err error
				name, err = promptRequired("Team name")
				if err != nil {
					return err
				}
			}
			result, err := client.Join(ctx, name)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{TeamID: result.TeamID, TeamName: result.TeamName, Token: result.Token}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Joined as %s (team %d). Session saved.", result.TeamName, result.TeamID))
			return nil
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the saved team session",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printInfo("Session cleared.")
			return nil
		},
	}
}

func newStateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the game state and round clock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			state, err := newClient(apiBase).State(ctx)
			if err != nil {
				return err
			}
			renderState(state)
			return nil
		},
	}
}

func newDecisionsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "decisions",
		Short: "List the decision deck",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			raw, err := newClient(apiBase).Decisions(ctx)
			if err != nil {
				return err
			}
			return renderDecisions(raw)
		},
	}
}

func newTeamCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "team",
		Short: "Show your team, budget and draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.Team(ctx)
			if err != nil {
				return err
			}
			renderTeam(view)
			return nil
		},
	}
}

func newToggleCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <decision-id>",
		Short: "Add or remove a decision in your draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("decision id must be a number: %q", args[0])
			}
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.Toggle(ctx, id)
			if err != nil {
				if offline(err) {
					queueCommand(http.MethodPost, fmt.Sprintf("/v1/team/decisions/%d/toggle", id), nil)
					return nil
				}
				return err
			}
			renderTeam(view)
			return nil
		},
	}
}

func newDraftCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "draft [decision-id...]",
		Short: "Replace your draft with the given decision set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, a := range args {
				id, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("decision id must be a number: %q", a)
				}
				ids = append(ids, id)
			}
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.Draft(ctx, ids)
			if err != nil {
				if offline(err) {
					body := map[string]any{"decision_ids": ids}
					queueCommand(http.MethodPut, "/v1/team/draft", body)
					return nil
				}
				return err
			}
			renderTeam(view)
			return nil
		},
	}
}

func newSubmitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Lock in your draft for this round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.Submit(ctx)
			if err != nil {
				if offline(err) {
					queueCommand(http.MethodPost, "/v1/team/submit", nil)
					return nil
				}
				return err
			}
			printSuccess("Submitted.")
			renderTeam(view)
			return nil
		},
	}
}

func newUnsubmitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubmit",
		Short: "Reopen your submission for editing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.Unsubmit(ctx)
			if err != nil {
				return err
			}
			printInfo("Submission reopened.")
			renderTeam(view)
			return nil
		},
	}
}

func newRecapCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recap",
		Short: "Show the valuation behind your last closed round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			proj, err := client.Recap(ctx)
			if err != nil {
				return err
			}
			renderProjection(proj)
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the share-price ranking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			raw, err := newClient(apiBase).Leaderboard(ctx)
			if err != nil {
				return err
			}
			return renderLeaderboard(raw)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			commands, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(commands) == 0 {
				printInfo("Queue is empty.")
				return nil
			}
			client, err := teamClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()

			var remaining []syncq.Command
			replayed := 0
			for i, c := range commands {
				if _, err := client.Do(ctx, c.Method, c.Path, c.Body); err != nil {
					if offline(err) {
						// Still unreachable: keep this and everything after
						// it so replay order is preserved.
						remaining = commands[i:]
						break
					}
					printWarn(fmt.Sprintf("%s %s rejected: %v", c.Method, c.Path, err))
				}
				replayed++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Replayed %d of %d queued commands.", replayed, len(commands)))
			return nil
		},
	}
}

// newSimCmd projects a decision set locally without a server, useful for
// dry-running strategies between rounds.
func newSimCmd() *cobra.Command {
	var round int
	var contentPath string
	cmd := &cobra.Command{
		Use:   "sim [decision-id...]",
		Short: "Run an offline valuation for a decision set",
		RunE: func(_ *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, a := range args {
				id, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("decision id must be a number: %q", a)
				}
				ids = append(ids, id)
			}
			deck, _, err := loadDeck(contentPath)
			if err != nil {
				return err
			}
			eng, err := engine.New(deck, engine.DefaultParams())
			if err != nil {
				return err
			}
			proj, err := eng.Project(round, ids, nil, engine.InitialSharePrice)
			if err != nil {
				var degenerate *engine.DegenerateValuationError
				if errors.As(err, &degenerate) {
					printError(err.Error())
					return nil
				}
				return err
			}
			renderProjection(*proj)
			return nil
		},
	}
	cmd.Flags().IntVar(&round, "round", 1, "round number to simulate")
	cmd.Flags().StringVar(&contentPath, "content", "", "YAML content file (default: built-in deck)")
	return cmd
}

func loadDeck(path string) (*catalog.Catalog, []catalog.Scenario, error) {
	if path == "" {
		deck, err := catalog.Builtin()
		if err != nil {
			return nil, nil, err
		}
		return deck, catalog.BuiltinScenarios(), nil
	}
	return catalog.LoadFile(path)
}

func newAdminCmd(apiBase, adminKey *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Facilitator controls",
	}
	admin.PersistentFlags().StringVar(adminKey, "key", *adminKey, "admin key (or BRD_ADMIN_KEY)")

	adminClient := func() (*cl.Client, error) {
		if strings.TrimSpace(*adminKey) == "" {
			return nil, fmt.Errorf("admin key required: pass --key or set BRD_ADMIN_KEY")
		}
		client := newClient(apiBase)
		client.AdminKey = strings.TrimSpace(*adminKey)
		return client, nil
	}

	for _, action := range []struct {
		use, short, path string
	}{
		{"start", "Open round 1", "start"},
		{"pause", "Freeze the round clock", "pause"},
		{"resume", "Unfreeze the round clock", "resume"},
		{"end-round", "Close the current round now", "end-round"},
		{"next-round", "Advance from results to the next round", "next-round"},
		{"reset", "Discard the game and return to the lobby", "reset"},
	} {
		a := action
		admin.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := adminClient()
				if err != nil {
					return err
				}
				ctx, cancel := cmdContext(cmd)
				defer cancel()
				state, err := client.AdminAction(ctx, a.path)
				if err != nil {
					return err
				}
				renderState(state)
				return nil
			},
		})
	}

	var teamCount, roundSeconds int
	configure := &cobra.Command{
		Use:   "configure",
		Short: "Set team count and round duration (lobby only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminClient()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			state, err := client.AdminConfigure(ctx, teamCount, roundSeconds)
			if err != nil {
				return err
			}
			renderState(state)
			return nil
		},
	}
	configure.Flags().IntVar(&teamCount, "teams", 6, "number of team slots")
	configure.Flags().IntVar(&roundSeconds, "seconds", 600, "round duration in seconds")
	admin.AddCommand(configure)

	var headline string
	var declineDelta, budgetDelta float64
	event := &cobra.Command{
		Use:   "event",
		Short: "Inject a market event into the open round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminClient()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			state, err := client.AdminEvent(ctx, headline, declineDelta, budgetDelta)
			if err != nil {
				return err
			}
			renderState(state)
			return nil
		},
	}
	event.Flags().StringVar(&headline, "headline", "", "scenario headline override")
	event.Flags().Float64Var(&declineDelta, "decline", 0, "extra growth decline this round contributes")
	event.Flags().Float64Var(&budgetDelta, "budget", 0, "budget change applied to every team")
	admin.AddCommand(event)

	admin.AddCommand(&cobra.Command{
		Use:   "history [game-id]",
		Short: "Show the archived rounds of a game (current game by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminClient()
			if err != nil {
				return err
			}
			gameID := ""
			if len(args) == 1 {
				gameID = args[0]
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			raw, err := client.AdminHistory(ctx, gameID)
			if err != nil {
				return err
			}
			return renderHistory(raw)
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "overview",
		Short: "Show the full facilitator overview",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminClient()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			raw, err := client.AdminOverview(ctx)
			if err != nil {
				return err
			}
			return renderJSON(raw)
		},
	})

	return admin
}
