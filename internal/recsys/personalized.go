package recsys

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/mimus-sim/mimus/internal/embed"
	"github.com/mimus-sim/mimus/internal/store"
	"github.com/mimus-sim/mimus/internal/vecmath"
)

// Personalized ranks candidate posts per user by embedding similarity
// between the user's bio and the post content, adjusted toward posts
// resembling what the user liked and away from what they disliked. A
// configurable fraction of each list is then replaced with random posts
// the user has never interacted with, so feeds do not collapse onto a
// static taste profile.
type Personalized struct {
	limit       int
	exploration float64
	embed       embed.Func
	rng         *rand.Rand
}

// NewPersonalized creates a personalized recommender.
// exploration is the fraction of each list handed to random unseen
// posts, clamped to [0, 1].
func NewPersonalized(limit int, exploration float64, embedFn embed.Func, rng *rand.Rand) *Personalized {
	if exploration < 0 {
		exploration = 0
	}
	if exploration > 1 {
		exploration = 1
	}
	return &Personalized{limit: limit, exploration: exploration, embed: embedFn, rng: rng}
}

func (p *Personalized) Name() string { return "personalized" }

// Rank scores every user's candidate posts and assembles the table.
// Post embeddings are computed once per pass and shared across users.
func (p *Personalized) Rank(ctx context.Context, snap *Snapshot) (map[int64][]int64, error) {
	if len(snap.Posts) <= p.limit {
		return fullTable(snap), nil
	}

	postVecs := make(map[int64][]float32, len(snap.Posts))
	for _, post := range snap.Posts {
		vec, err := p.embed(ctx, post.Content)
		if err != nil {
			return nil, fmt.Errorf("embedding post %d: %w", post.ID, err)
		}
		postVecs[post.ID] = vec
	}

	table := make(map[int64][]int64, len(snap.Users))
	for _, u := range snap.Users {
		selected, err := p.rankForUser(ctx, u, snap, postVecs)
		if err != nil {
			return nil, err
		}
		table[u.ID] = selected
	}
	return table, nil
}

func (p *Personalized) rankForUser(ctx context.Context, u *store.User, snap *Snapshot, postVecs map[int64][]float32) ([]int64, error) {
	// Own posts are never recommended back to their author.
	candidates := make([]*store.Post, 0, len(snap.Posts))
	for _, post := range snap.Posts {
		if post.AuthorID != u.ID {
			candidates = append(candidates, post)
		}
	}
	if len(candidates) <= p.limit {
		ids := make([]int64, len(candidates))
		for i, post := range candidates {
			ids[i] = post.ID
		}
		return ids, nil
	}

	bioVec, err := p.embed(ctx, u.Bio)
	if err != nil {
		return nil, fmt.Errorf("embedding bio of user %d: %w", u.ID, err)
	}

	likedVecs := historyVectors(snap.Liked[u.ID], postVecs)
	dislikedVecs := historyVectors(snap.Disliked[u.ID], postVecs)

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, len(candidates))

	// Base affinity, then its range, then the history adjustment scaled
	// to half that range.
	minBase, maxBase := 1.0, -1.0
	for i, post := range candidates {
		base := vecmath.CosineSimilarity(bioVec, postVecs[post.ID])
		if base < minBase {
			minBase = base
		}
		if base > maxBase {
			maxBase = base
		}
		ranked[i] = scored{id: post.ID, score: base}
	}
	halfRange := (maxBase - minBase) / 2
	if halfRange > 0 {
		for i, post := range candidates {
			likeSim := vecmath.MeanCosine(postVecs[post.ID], likedVecs)
			dislikeSim := vecmath.MeanCosine(postVecs[post.ID], dislikedVecs)
			ranked[i].score += (likeSim - dislikeSim) * halfRange
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	selected := make([]int64, p.limit)
	for i := range selected {
		selected[i] = ranked[i].id
	}

	p.explore(selected, candidates, snap.Traced[u.ID])
	return selected, nil
}

// historyVectors collects the embeddings of the given post ids, skipping
// ids no longer present in the corpus.
func historyVectors(ids []int64, postVecs map[int64][]float32) [][]float32 {
	var vecs [][]float32
	for _, id := range ids {
		if vec, ok := postVecs[id]; ok {
			vecs = append(vecs, vec)
		}
	}
	return vecs
}

// explore replaces a fraction of selected with random posts the user has
// neither been recommended here nor interacted with before.
func (p *Personalized) explore(selected []int64, candidates []*store.Post, traced []int64) {
	k := int(p.exploration * float64(len(selected)))
	if k == 0 {
		return
	}

	var pool []int64
	for _, post := range candidates {
		if !contains(selected, post.ID) && !contains(traced, post.ID) {
			pool = append(pool, post.ID)
		}
	}
	if len(pool) == 0 {
		return
	}

	p.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	positions := p.rng.Perm(len(selected))
	for i := 0; i < k && i < len(pool); i++ {
		selected[positions[i]] = pool[i]
	}
}
