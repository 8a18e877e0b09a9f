package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mimus-sim/mimus/internal/action"
)

// runStats accumulates outcomes of a scripted run.
type runStats struct {
	Agents    int            `json:"agents"`
	Rounds    int            `json:"rounds"`
	Actions   int            `json:"actions"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByType    map[string]int `json:"by_type"`
	ByError   map[string]int `json:"by_error,omitempty"`
	Tables    map[string]int `json:"tables,omitempty"`
	Elapsed   string         `json:"elapsed"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted simulation with random agents",
		Long: `Run a self-contained simulation: a population of scripted agents
signs up and then acts for a number of rounds, posting, reacting,
following, and reading their recommended feeds.

Useful for exercising a recommendation strategy end to end without
attaching real agents over MCP.

Example:
  mimus run --agents 20 --rounds 50
  MIMUS_RECSYS_STRATEGY=hot mimus run --agents 50 --rounds 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, _ := cmd.Flags().GetInt("agents")
			rounds, _ := cmd.Flags().GetInt("rounds")
			scriptSeed, _ := cmd.Flags().GetInt64("seed")
			if agents <= 0 {
				return fmt.Errorf("agents must be positive, got %d", agents)
			}
			if rounds < 0 {
				return fmt.Errorf("rounds must be non-negative, got %d", rounds)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// SIGINT/SIGTERM stop the script; the engine still drains
			// and closes the store below.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := startEngine(ctx, cfg)
			if err != nil {
				return err
			}

			if scriptSeed == 0 {
				scriptSeed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewPCG(uint64(scriptSeed), uint64(scriptSeed)+1))

			started := time.Now()
			stats := driveAgents(ctx, e, rng, agents, rounds)
			stats.Elapsed = time.Since(started).Round(time.Millisecond).String()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if counts, err := e.tableCounts(shutdownCtx); err == nil {
				stats.Tables = counts
			}
			if err := e.shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}

			fmt.Printf("Simulated %d agents over %d rounds in %s\n",
				stats.Agents, stats.Rounds, stats.Elapsed)
			fmt.Printf("Actions: %d (%d succeeded, %d failed)\n",
				stats.Actions, stats.Succeeded, stats.Failed)
			for _, t := range action.Types {
				if n := stats.ByType[string(t)]; n > 0 {
					fmt.Printf("  %-20s %d\n", t, n)
				}
			}
			if len(stats.ByError) > 0 {
				fmt.Println("Failures:")
				for _, msg := range sortedKeys(stats.ByError) {
					fmt.Printf("  %-50s %d\n", msg, stats.ByError[msg])
				}
			}
			if len(stats.Tables) > 0 {
				fmt.Println("Store:")
				for _, table := range sortedKeys(stats.Tables) {
					fmt.Printf("  %-10s %d rows\n", table, stats.Tables[table])
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("agents", 10, "Number of scripted agents")
	cmd.Flags().Int("rounds", 20, "Number of action rounds after sign-up")
	cmd.Flags().Int64("seed", 0, "Script seed (0 = derive from current time)")

	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	scriptTopics = []string{
		"coffee", "bikes", "synthesizers", "gardening", "chess",
		"astronomy", "sourdough", "climbing", "jazz", "woodworking",
	}
	scriptVerbs = []string{
		"thinking about", "obsessed with", "learning", "giving up on",
		"finally understanding", "recommending",
	}
)

// driveAgents signs up the population and runs the action rounds. Every
// submitted action is counted; platform-level failures (duplicate
// reactions, missing records) are expected noise, not run errors.
func driveAgents(ctx context.Context, e *engine, rng *rand.Rand, agents, rounds int) *runStats {
	stats := &runStats{
		Agents:  agents,
		Rounds:  rounds,
		ByType:  make(map[string]int),
		ByError: make(map[string]int),
	}

	record := func(typ action.Type, res action.Result) {
		stats.Actions++
		stats.ByType[string(typ)]++
		if res.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
			stats.ByError[res.Error]++
		}
	}

	callers := make([]string, agents)
	var knownPosts []int64

	for i := range callers {
		callers[i] = fmt.Sprintf("agent-%03d", i)
		topic := scriptTopics[rng.IntN(len(scriptTopics))]
		res, err := e.do(ctx, callers[i], action.TypeSignUp, action.Payload{
			Handle: fmt.Sprintf("user%03d", i),
			Name:   fmt.Sprintf("Agent %03d", i),
			Bio:    fmt.Sprintf("Mostly here for %s.", topic),
		})
		if err != nil {
			return stats
		}
		record(action.TypeSignUp, res)
	}

	for round := 0; round < rounds; round++ {
		for _, caller := range callers {
			typ, payload := nextMove(rng, knownPosts)
			res, err := e.do(ctx, caller, typ, payload)
			if err != nil {
				return stats
			}
			record(typ, res)

			if res.PostID != 0 {
				knownPosts = append(knownPosts, res.PostID)
			}
			for _, p := range res.Posts {
				knownPosts = append(knownPosts, p.PostID)
			}
		}
	}

	return stats
}

// nextMove picks a weighted random action for one agent turn.
func nextMove(rng *rand.Rand, knownPosts []int64) (action.Type, action.Payload) {
	pick := func() int64 { return knownPosts[rng.IntN(len(knownPosts))] }

	roll := rng.IntN(100)
	switch {
	case roll < 30:
		return action.TypeCreatePost, action.Payload{
			Content: fmt.Sprintf("%s %s today",
				scriptVerbs[rng.IntN(len(scriptVerbs))],
				scriptTopics[rng.IntN(len(scriptTopics))]),
		}
	case roll < 55:
		return action.TypeRefresh, action.Payload{}
	case roll < 70 && len(knownPosts) > 0:
		return action.TypeLike, action.Payload{PostID: pick()}
	case roll < 80 && len(knownPosts) > 0:
		return action.TypeCreateComment, action.Payload{
			PostID:  pick(),
			Content: "same here",
		}
	case roll < 87 && len(knownPosts) > 0:
		return action.TypeRepost, action.Payload{PostID: pick()}
	case roll < 94:
		return action.TypeTrend, action.Payload{}
	default:
		return action.TypeDoNothing, action.Payload{}
	}
}
