// Package recsys generates per-user post recommendations. Three
// strategies are provided: uniform random, a time-decayed hot score, and
// an embedding-based personalized ranking with random exploration.
//
// Strategies are pure over a Snapshot: they read users, posts, and
// interaction history, and return a proposed recommendation table. The
// platform is responsible for persisting the table atomically.
package recsys

import (
	"context"

	"github.com/mimus-sim/mimus/internal/store"
)

// Snapshot is the immutable input to a ranking pass.
type Snapshot struct {
	Users []*store.User
	Posts []*store.Post

	// Liked, Disliked, and Traced map user ids to post ids. Traced covers
	// every post a user has interacted with in any way and feeds the
	// exploration filter of the personalized strategy.
	Liked    map[int64][]int64
	Disliked map[int64][]int64
	Traced   map[int64][]int64
}

// Recommender produces a recommendation table: for each user id, an
// ordered list of post ids, best first, at most the strategy's capacity.
type Recommender interface {
	Name() string
	Rank(ctx context.Context, snap *Snapshot) (map[int64][]int64, error)
}

// allPostIDs returns every post id in snapshot order.
func allPostIDs(snap *Snapshot) []int64 {
	ids := make([]int64, len(snap.Posts))
	for i, p := range snap.Posts {
		ids[i] = p.ID
	}
	return ids
}

// fullTable assigns the complete post list to every user. Used by all
// strategies when the corpus fits within the list capacity.
func fullTable(snap *Snapshot) map[int64][]int64 {
	ids := allPostIDs(snap)
	table := make(map[int64][]int64, len(snap.Users))
	for _, u := range snap.Users {
		table[u.ID] = append([]int64(nil), ids...)
	}
	return table
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
