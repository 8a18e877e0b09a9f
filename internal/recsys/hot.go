package recsys

import (
	"context"
	"math"
	"sort"
	"time"
)

// Hot ranks posts by a logarithmic net-vote score plus a recency bonus:
// one order of magnitude of net votes is worth one period of post age.
// Every user receives the same global list.
type Hot struct {
	limit  int
	period float64 // seconds of age per vote magnitude
}

// NewHot creates a hot-score recommender. period is in seconds.
func NewHot(limit int, period float64) *Hot {
	return &Hot{limit: limit, period: period}
}

func (h *Hot) Name() string { return "hot" }

// score computes the hot score of a post relative to epoch.
func (h *Hot) score(likes, dislikes int64, createdAt, epoch time.Time) float64 {
	net := likes - dislikes
	var sign float64
	switch {
	case net > 0:
		sign = 1
	case net < 0:
		sign = -1
	}

	magnitude := float64(net)
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < 1 {
		magnitude = 1
	}

	return sign*math.Log10(magnitude) + createdAt.Sub(epoch).Seconds()/h.period
}

// Rank orders all posts by hot score, best first, and assigns the same
// top slice to every user.
func (h *Hot) Rank(ctx context.Context, snap *Snapshot) (map[int64][]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(snap.Posts) <= h.limit {
		return fullTable(snap), nil
	}

	// Epoch is the oldest post's creation time; only score differences
	// matter, so any fixed reference works.
	epoch := snap.Posts[0].CreatedAt
	for _, p := range snap.Posts[1:] {
		if p.CreatedAt.Before(epoch) {
			epoch = p.CreatedAt
		}
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, len(snap.Posts))
	for i, p := range snap.Posts {
		ranked[i] = scored{id: p.ID, score: h.score(p.LikeCount, p.DislikeCount, p.CreatedAt, epoch)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := make([]int64, h.limit)
	for i := range top {
		top[i] = ranked[i].id
	}

	table := make(map[int64][]int64, len(snap.Users))
	for _, u := range snap.Users {
		table[u.ID] = append([]int64(nil), top...)
	}
	return table, nil
}
