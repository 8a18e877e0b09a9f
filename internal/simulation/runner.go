// Package simulation provides an in-process end-to-end harness: a real
// SQLite store, a running platform dispatcher, and a submit-and-await
// front end for test scenarios.
package simulation

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/channel"
	"github.com/mimus-sim/mimus/internal/config"
	"github.com/mimus-sim/mimus/internal/platform"
	"github.com/mimus-sim/mimus/internal/recsys"
	"github.com/mimus-sim/mimus/internal/simclock"
	"github.com/mimus-sim/mimus/internal/store"
)

// awaitTimeout bounds how long a scenario waits for any single result.
const awaitTimeout = 5 * time.Second

// Option adjusts the runner's configuration before startup.
type Option func(*config.Config)

// WithStrategy selects the recommendation strategy.
func WithStrategy(name string) Option {
	return func(c *config.Config) { c.RecSys.Strategy = name }
}

// WithRefreshInterval sets the periodic rebuild interval in actions.
func WithRefreshInterval(n int) Option {
	return func(c *config.Config) { c.RecSys.RefreshInterval = n }
}

// WithMaxPosts sets the recommendation list capacity.
func WithMaxPosts(n int) Option {
	return func(c *config.Config) { c.RecSys.MaxPosts = n }
}

// WithFeedSize sets how many posts a Refresh returns.
func WithFeedSize(n int) Option {
	return func(c *config.Config) { c.Platform.FeedSize = n }
}

// WithAllowSelfRating permits rating one's own posts and comments.
func WithAllowSelfRating() Option {
	return func(c *config.Config) { c.Platform.AllowSelfRating = true }
}

// WithClockFactor sets the simulated-time acceleration factor.
func WithClockFactor(f float64) Option {
	return func(c *config.Config) { c.Clock.Factor = f }
}

// Runner owns a live platform and drives scenarios against it.
type Runner struct {
	t     *testing.T
	Store *store.SQLiteStore
	ch    *platform.Chan
	done  chan error
}

// NewRunner starts a platform backed by an isolated SQLite store.
// The platform goroutine runs until Shutdown or test cleanup.
func NewRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "sim.db")
	cfg.RecSys.Seed = 1
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("NewRunner: invalid config: %v", err)
	}

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}

	// The recommender and the platform's feed sampler run on different
	// goroutines, so each gets its own generator.
	rng := rand.New(rand.NewPCG(uint64(cfg.RecSys.Seed), uint64(cfg.RecSys.Seed)+1))
	recRNG := rand.New(rand.NewPCG(uint64(cfg.RecSys.Seed)+2, uint64(cfg.RecSys.Seed)+3))
	rec, err := recsys.FromConfig(cfg, recRNG)
	if err != nil {
		t.Fatalf("NewRunner: failed to build recommender: %v", err)
	}

	ch := channel.New[action.Request, action.Result]()
	clock := simclock.New(cfg.SimStart(time.Now()), cfg.Clock.Factor)

	p := platform.New(platform.Options{
		Config:      cfg,
		Channel:     ch,
		Store:       s,
		Clock:       clock,
		Recommender: rec,
		RNG:         rng,
	})

	r := &Runner{t: t, Store: s, ch: ch, done: make(chan error, 1)}
	go func() {
		r.done <- p.Run(context.Background())
	}()

	t.Cleanup(func() {
		// Idempotent: a second Exit after Shutdown fails on the closed
		// channel and is ignored.
		if id, err := ch.Submit(action.Request{Type: action.TypeExit}); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
			defer cancel()
			_, _ = ch.Await(ctx, id)
			<-r.done
		}
	})

	return r
}

// Do submits one action and blocks for its result.
func (r *Runner) Do(callerID string, typ action.Type, payload action.Payload) action.Result {
	r.t.Helper()

	id, err := r.ch.Submit(action.Request{CallerID: callerID, Type: typ, Payload: payload})
	if err != nil {
		r.t.Fatalf("Do(%s): submit: %v", typ, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()

	res, err := r.ch.Await(ctx, id)
	if err != nil {
		r.t.Fatalf("Do(%s): await: %v", typ, err)
	}
	return res
}

// MustDo submits one action and fails the test if the result is not a
// success.
func (r *Runner) MustDo(callerID string, typ action.Type, payload action.Payload) action.Result {
	r.t.Helper()
	res := r.Do(callerID, typ, payload)
	if !res.Success {
		r.t.Fatalf("MustDo(%s): failed with %q", typ, res.Error)
	}
	return res
}

// SignUp registers a caller and returns the result.
func (r *Runner) SignUp(callerID, handle, bio string) action.Result {
	r.t.Helper()
	return r.MustDo(callerID, action.TypeSignUp, action.Payload{Handle: handle, Name: handle, Bio: bio})
}

// CreatePost publishes a post for the caller and returns its id.
func (r *Runner) CreatePost(callerID, content string) int64 {
	r.t.Helper()
	res := r.MustDo(callerID, action.TypeCreatePost, action.Payload{Content: content})
	return res.PostID
}

// Shutdown stops the platform and reports its exit error.
func (r *Runner) Shutdown() {
	r.t.Helper()

	id, err := r.ch.Submit(action.Request{Type: action.TypeExit})
	if err != nil {
		r.t.Fatalf("Shutdown: submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()

	res, err := r.ch.Await(ctx, id)
	if err != nil {
		r.t.Fatalf("Shutdown: await: %v", err)
	}
	if !res.Success {
		r.t.Fatalf("Shutdown: exit failed: %q", res.Error)
	}
	if err := <-r.done; err != nil {
		r.t.Fatalf("Shutdown: platform returned %v", err)
	}
}
