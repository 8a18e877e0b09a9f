// Package platform implements the single-dispatcher simulation engine.
// One goroutine owns the ingress loop: it dequeues agent requests from
// the correlation channel, stamps them with the simulated clock, and
// dispatches them to handlers. Handler goroutines publish their results
// back under the request's correlation id.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/channel"
	"github.com/mimus-sim/mimus/internal/config"
	"github.com/mimus-sim/mimus/internal/logging"
	"github.com/mimus-sim/mimus/internal/recsys"
	"github.com/mimus-sim/mimus/internal/simclock"
	"github.com/mimus-sim/mimus/internal/store"
)

// Chan is the request/response channel type agents submit against.
type Chan = channel.Channel[action.Request, action.Result]

// Platform dispatches agent actions against the store and maintains the
// recommendation table.
type Platform struct {
	cfg     *config.Config
	ch      *Chan
	store   store.Store
	clock   *simclock.Clock
	rec     recsys.Recommender
	log     *slog.Logger
	actions *logging.ActionLogger

	wg  sync.WaitGroup
	ops int // counted actions since start, drives periodic rebuilds

	// Rebuilds run both on the consumer loop (periodic) and inside
	// UpdateRecTable handler goroutines; recMu keeps them serial so the
	// recommender's internal state is never shared between two Rank calls.
	recMu sync.Mutex

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Options bundles the collaborators a Platform needs.
type Options struct {
	Config      *config.Config
	Channel     *Chan
	Store       store.Store
	Clock       *simclock.Clock
	Recommender recsys.Recommender
	Logger      *slog.Logger
	Actions     *logging.ActionLogger
	RNG         *rand.Rand
}

// New creates a Platform. Logger may be nil; a discarding logger is
// substituted. RNG may be nil; a time-seeded generator is substituted.
func New(opts Options) *Platform {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	rng := opts.RNG
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32))
	}
	return &Platform{
		cfg:     opts.Config,
		ch:      opts.Channel,
		store:   opts.Store,
		clock:   opts.Clock,
		rec:     opts.Recommender,
		log:     log,
		actions: opts.Actions,
		rng:     rng,
	}
}

// Run consumes requests until an Exit action or channel close. On Exit
// it waits for in-flight handlers, closes the store, and acknowledges
// the exit before returning.
func (p *Platform) Run(ctx context.Context) error {
	p.log.Info("platform started",
		"strategy", p.rec.Name(),
		"sim_start", p.clock.Start(),
		"clock_factor", p.clock.Factor())

	for {
		env, ok := p.ch.NextIngress()
		if !ok {
			p.wg.Wait()
			return p.store.Close()
		}

		req := env.Req
		now := p.clock.Now() // action time is fixed at dispatch

		if req.Type == action.TypeExit {
			p.wg.Wait()
			err := p.store.Close()
			if err != nil {
				p.ch.Publish(env.ID, action.Failure(fmt.Sprintf("Closing store: %v.", err)))
			} else {
				p.ch.Publish(env.ID, action.Result{Success: true})
			}
			p.ch.Close()
			p.log.Info("platform stopped", "actions_dispatched", p.ops)
			return err
		}

		if req.Type.Valid() && p.countsTowardRebuild(req.Type) {
			p.ops++
			if interval := p.cfg.RecSys.RefreshInterval; interval > 0 && p.ops%interval == 0 {
				p.rebuildRecommendations(ctx, now)
			}
		}

		p.wg.Add(1)
		go func(id uint64, req action.Request, now time.Time) {
			defer p.wg.Done()
			res := p.dispatch(ctx, req, now)
			p.actions.Log(map[string]any{
				"action":  string(req.Type),
				"caller":  req.CallerID,
				"success": res.Success,
				"error":   res.Error,
			})
			p.ch.Publish(id, res)
		}(env.ID, req, now)
	}
}

// countsTowardRebuild reports whether an action advances the periodic
// rebuild counter. Explicit rebuild requests never count, and Refresh
// only counts when configured to.
func (p *Platform) countsTowardRebuild(t action.Type) bool {
	switch t {
	case action.TypeUpdateRecTable:
		return false
	case action.TypeRefresh:
		return p.cfg.RecSys.CountRefresh
	default:
		return true
	}
}

// dispatch resolves the caller and routes the request to its handler.
// An unknown action type yields a failed result, never a crash.
func (p *Platform) dispatch(ctx context.Context, req action.Request, now time.Time) action.Result {
	if !req.Type.Valid() {
		return action.Failure(fmt.Sprintf("Unknown action type: %s.", req.Type))
	}

	switch req.Type {
	case action.TypeSignUp:
		return p.handleSignUp(ctx, req, now)
	case action.TypeUpdateRecTable:
		p.rebuildRecommendations(ctx, now)
		return action.Result{Success: true}
	}

	user, err := p.store.UserByCaller(ctx, req.CallerID)
	if err != nil {
		return p.storeFailure("resolving caller", err)
	}
	if user == nil {
		return action.Failure("Caller has not signed up.")
	}

	switch req.Type {
	case action.TypeRefresh:
		return p.handleRefresh(ctx, user, now)
	case action.TypeSearchUser:
		return p.handleSearchUser(ctx, user, req, now)
	case action.TypeSearchPosts:
		return p.handleSearchPosts(ctx, user, req, now)
	case action.TypeCreatePost:
		return p.handleCreatePost(ctx, user, req, now)
	case action.TypeRepost:
		return p.handleRepost(ctx, user, req, now)
	case action.TypeLike:
		return p.handlePostReaction(ctx, user, req, now, store.ReactionLike)
	case action.TypeDislike:
		return p.handlePostReaction(ctx, user, req, now, store.ReactionDislike)
	case action.TypeUnlike:
		return p.handleUndoPostReaction(ctx, user, req, now, store.ReactionLike)
	case action.TypeUndoDislike:
		return p.handleUndoPostReaction(ctx, user, req, now, store.ReactionDislike)
	case action.TypeFollow:
		return p.handleFollow(ctx, user, req, now)
	case action.TypeUnfollow:
		return p.handleUnfollow(ctx, user, req, now)
	case action.TypeMute:
		return p.handleMute(ctx, user, req, now)
	case action.TypeUnmute:
		return p.handleUnmute(ctx, user, req, now)
	case action.TypeTrend:
		return p.handleTrend(ctx, user, now)
	case action.TypeCreateComment:
		return p.handleCreateComment(ctx, user, req, now)
	case action.TypeLikeComment:
		return p.handleCommentReaction(ctx, user, req, now, store.ReactionLike)
	case action.TypeDislikeComment:
		return p.handleCommentReaction(ctx, user, req, now, store.ReactionDislike)
	case action.TypeUnlikeComment:
		return p.handleUndoCommentReaction(ctx, user, req, now, store.ReactionLike)
	case action.TypeUndoDislikeComment:
		return p.handleUndoCommentReaction(ctx, user, req, now, store.ReactionDislike)
	case action.TypeDoNothing:
		return p.handleDoNothing(ctx, user, now)
	default:
		return action.Failure(fmt.Sprintf("Unknown action type: %s.", req.Type))
	}
}

// rebuildRecommendations snapshots the world, runs the recommender, and
// atomically replaces the recommendation table.
func (p *Platform) rebuildRecommendations(ctx context.Context, now time.Time) {
	p.recMu.Lock()
	defer p.recMu.Unlock()

	started := time.Now()

	users, err := p.store.AllUsers(ctx)
	if err != nil {
		p.log.Error("rebuild: loading users", "error", err)
		return
	}
	posts, err := p.store.AllPosts(ctx)
	if err != nil {
		p.log.Error("rebuild: loading posts", "error", err)
		return
	}
	liked, err := p.store.ReactedPostIDs(ctx, store.ReactionLike)
	if err != nil {
		p.log.Error("rebuild: loading likes", "error", err)
		return
	}
	disliked, err := p.store.ReactedPostIDs(ctx, store.ReactionDislike)
	if err != nil {
		p.log.Error("rebuild: loading dislikes", "error", err)
		return
	}
	traced, err := p.store.TracedPostIDs(ctx)
	if err != nil {
		p.log.Error("rebuild: loading trace", "error", err)
		return
	}

	snap := &recsys.Snapshot{
		Users:    users,
		Posts:    posts,
		Liked:    liked,
		Disliked: disliked,
		Traced:   traced,
	}
	table, err := p.rec.Rank(ctx, snap)
	if err != nil {
		p.log.Error("rebuild: ranking", "strategy", p.rec.Name(), "error", err)
		return
	}

	if err := p.store.ReplaceRecommendations(ctx, table); err != nil {
		p.log.Error("rebuild: replacing table", "error", err)
		return
	}

	p.log.Debug("recommendation table rebuilt",
		"strategy", p.rec.Name(),
		"users", len(users),
		"posts", len(posts),
		"sim_time", now,
		"took", time.Since(started))
}

// storeFailure logs a store error and returns the generic failure the
// caller sees.
func (p *Platform) storeFailure(op string, err error) action.Result {
	p.log.Error("store operation failed", "op", op, "error", err)
	return action.Failure("Internal store error.")
}

// sample returns up to n elements of ids in random order.
func (p *Platform) sample(ids []int64, n int) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	picked := append([]int64(nil), ids...)
	p.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	if len(picked) > n {
		picked = picked[:n]
	}
	return picked
}
