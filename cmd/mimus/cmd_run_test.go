package main

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/config"
)

func TestNextMoveWithoutPosts(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))

	// With no known posts, the post-addressed branches must never fire.
	for i := 0; i < 500; i++ {
		typ, payload := nextMove(rng, nil)
		switch typ {
		case action.TypeLike, action.TypeCreateComment, action.TypeRepost:
			t.Fatalf("nextMove picked %s with no known posts", typ)
		}
		if payload.PostID != 0 {
			t.Fatalf("nextMove set post id %d with no known posts", payload.PostID)
		}
	}
}

func TestDriveAgents(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "mimus.db")
	cfg.RecSys.Seed = 1
	cfg.RecSys.RefreshInterval = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	ctx := context.Background()
	e, err := startEngine(ctx, cfg)
	if err != nil {
		t.Fatalf("startEngine failed: %v", err)
	}

	const agents, rounds = 4, 6
	rng := rand.New(rand.NewPCG(42, 43))
	stats := driveAgents(ctx, e, rng, agents, rounds)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	want := agents + agents*rounds
	if stats.Actions != want {
		t.Errorf("Actions = %d, want %d", stats.Actions, want)
	}
	if stats.Succeeded+stats.Failed != stats.Actions {
		t.Errorf("Succeeded+Failed = %d, want %d",
			stats.Succeeded+stats.Failed, stats.Actions)
	}
	// Every sign-up succeeds against a fresh store.
	if stats.ByType[string(action.TypeSignUp)] != agents {
		t.Errorf("sign-ups = %d, want %d",
			stats.ByType[string(action.TypeSignUp)], agents)
	}
	if stats.Succeeded < agents {
		t.Errorf("Succeeded = %d, want at least %d", stats.Succeeded, agents)
	}
}
