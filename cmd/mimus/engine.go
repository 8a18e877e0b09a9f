package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/channel"
	"github.com/mimus-sim/mimus/internal/config"
	"github.com/mimus-sim/mimus/internal/logging"
	"github.com/mimus-sim/mimus/internal/platform"
	"github.com/mimus-sim/mimus/internal/recsys"
	"github.com/mimus-sim/mimus/internal/simclock"
	"github.com/mimus-sim/mimus/internal/store"
)

// engine bundles a running platform with the channel agents submit on.
type engine struct {
	cfg   *config.Config
	ch    *platform.Chan
	store *store.SQLiteStore
	done  chan error
}

// loadConfig resolves the --config flag, falling back to the default
// search path and environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startEngine assembles the store, clock, recommender, and dispatcher,
// and starts the dispatcher loop. The returned engine's done channel
// yields the dispatcher's exit error once it stops.
func startEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	log := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	logDir := "."
	if cfg.Store.Path != ":memory:" {
		logDir = filepath.Dir(cfg.Store.Path)
	}
	actions := logging.NewActionLogger(logDir, cfg.Logging.Level)

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	seed := cfg.RecSys.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// The recommender and the platform's feed sampler run on different
	// goroutines, so each gets its own generator.
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1))
	recRNG := rand.New(rand.NewPCG(uint64(seed)+2, uint64(seed)+3))

	rec, err := recsys.FromConfig(cfg, recRNG)
	if err != nil {
		st.Close()
		return nil, err
	}

	ch := channel.New[action.Request, action.Result]()
	clock := simclock.New(cfg.SimStart(time.Now()), cfg.Clock.Factor)

	p := platform.New(platform.Options{
		Config:      cfg,
		Channel:     ch,
		Store:       st,
		Clock:       clock,
		Recommender: rec,
		Logger:      log,
		Actions:     actions,
		RNG:         rng,
	})

	e := &engine{cfg: cfg, ch: ch, store: st, done: make(chan error, 1)}
	go func() {
		e.done <- p.Run(ctx)
		actions.Close()
	}()
	return e, nil
}

// do submits one action and blocks for its result.
func (e *engine) do(ctx context.Context, callerID string, typ action.Type, payload action.Payload) (action.Result, error) {
	id, err := e.ch.Submit(action.Request{CallerID: callerID, Type: typ, Payload: payload})
	if err != nil {
		return action.Result{}, fmt.Errorf("submitting %s: %w", typ, err)
	}
	return e.ch.Await(ctx, id)
}

// tableCounts reads the row counts of the main entity tables. Must be
// called before shutdown closes the store.
func (e *engine) tableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range []string{"user", "post", "comment", "follow"} {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %q", table)
		if err := e.store.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s rows: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// shutdown submits an Exit action and waits for the dispatcher to drain
// in-flight handlers and close the store.
func (e *engine) shutdown(ctx context.Context) error {
	id, err := e.ch.Submit(action.Request{Type: action.TypeExit})
	if err == nil {
		if _, err := e.ch.Await(ctx, id); err != nil {
			return err
		}
	}

	select {
	case err := <-e.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
