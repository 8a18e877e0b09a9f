package recsys

import (
	"context"
	"math/rand/v2"
)

// Random recommends a uniform random sample of posts to every user.
type Random struct {
	limit int
	rng   *rand.Rand
}

// NewRandom creates a random recommender with the given list capacity.
func NewRandom(limit int, rng *rand.Rand) *Random {
	return &Random{limit: limit, rng: rng}
}

func (r *Random) Name() string { return "random" }

// Rank assigns each user an independent random sample without
// replacement.
func (r *Random) Rank(ctx context.Context, snap *Snapshot) (map[int64][]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(snap.Posts) <= r.limit {
		return fullTable(snap), nil
	}

	ids := allPostIDs(snap)
	table := make(map[int64][]int64, len(snap.Users))
	for _, u := range snap.Users {
		sample := append([]int64(nil), ids...)
		r.rng.Shuffle(len(sample), func(i, j int) {
			sample[i], sample[j] = sample[j], sample[i]
		})
		table[u.ID] = sample[:r.limit]
	}
	return table, nil
}
