// Package store provides the relational persistence layer for the
// simulation: users, posts, comments, rating and social edges, the
// recommendation table, and the behavioral trace.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate reports that a uniqueness constraint would be violated:
// an existing handle, an existing edge, or a repeated repost.
var ErrDuplicate = errors.New("store: duplicate record")

// ErrNotFound reports that a referenced entity or edge does not exist.
var ErrNotFound = errors.New("store: record not found")

// User is a registered account. CallerID is the external identity of the
// submitting agent; ID is the internal numeric identity used everywhere
// else. Counter fields are maintained transactionally with edge changes.
type User struct {
	ID             int64
	CallerID       string
	Handle         string
	DisplayName    string
	Bio            string
	CreatedAt      time.Time
	FollowingCount int64
	FollowerCount  int64
}

// Post is an original post or a repost. OriginID is zero for originals
// and the root original's id for reposts. Counter fields are maintained
// transactionally with rating changes.
type Post struct {
	ID           int64
	AuthorID     int64
	OriginID     int64
	Content      string
	CreatedAt    time.Time
	LikeCount    int64
	DislikeCount int64
}

// Comment is a reply attached to a post.
type Comment struct {
	ID           int64
	PostID       int64
	AuthorID     int64
	Content      string
	CreatedAt    time.Time
	LikeCount    int64
	DislikeCount int64
}

// TraceRow records one completed action for a user. PostID is zero for
// actions that do not involve a post.
type TraceRow struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	Action    string
	PostID    int64
	Info      map[string]any
}

// ReactionKind selects the like or dislike edge family.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Store is the persistence interface the platform dispatches against.
// Lookup methods return (nil, nil) when the entity is absent; edge
// mutations return ErrDuplicate or ErrNotFound for constraint failures
// and keep the denormalized counters consistent in the same transaction.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) (int64, error)
	UserByCaller(ctx context.Context, callerID string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*User, error)
	AllUsers(ctx context.Context) ([]*User, error)

	// Posts
	CreatePost(ctx context.Context, p *Post) (int64, error)
	PostByID(ctx context.Context, id int64) (*Post, error)
	PostsByIDs(ctx context.Context, ids []int64) ([]*Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]*Post, error)
	TrendingPosts(ctx context.Context, since time.Time, limit int) ([]*Post, error)
	AllPosts(ctx context.Context) ([]*Post, error)
	HasRepost(ctx context.Context, userID, originID int64) (bool, error)

	// Comments
	CreateComment(ctx context.Context, c *Comment) (int64, error)
	CommentByID(ctx context.Context, id int64) (*Comment, error)
	CommentsByPost(ctx context.Context, postID int64) ([]*Comment, error)

	// Ratings
	AddPostReaction(ctx context.Context, kind ReactionKind, userID, postID int64, at time.Time) (int64, error)
	RemovePostReaction(ctx context.Context, kind ReactionKind, userID, postID int64) error
	AddCommentReaction(ctx context.Context, kind ReactionKind, userID, commentID int64, at time.Time) (int64, error)
	RemoveCommentReaction(ctx context.Context, kind ReactionKind, userID, commentID int64) error

	// Social edges
	FollowUser(ctx context.Context, followerID, followeeID int64, at time.Time) (int64, error)
	UnfollowUser(ctx context.Context, followerID, followeeID int64) error
	MuteUser(ctx context.Context, muterID, muteeID int64, at time.Time) (int64, error)
	UnmuteUser(ctx context.Context, muterID, muteeID int64) error

	// Recommendations
	Recommendations(ctx context.Context, userID int64, limit int) ([]int64, error)
	ReplaceRecommendations(ctx context.Context, table map[int64][]int64) error

	// Trace
	AppendTrace(ctx context.Context, row *TraceRow) error
	TracedPostIDs(ctx context.Context) (map[int64][]int64, error)
	ReactedPostIDs(ctx context.Context, kind ReactionKind) (map[int64][]int64, error)

	Close() error
}
