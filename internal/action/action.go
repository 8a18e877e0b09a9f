// Package action defines the wire protocol between callers and the
// platform dispatcher: the closed set of action types, the request payload,
// and the uniform result record.
package action

import "time"

// Type identifies an action. The set is closed; the dispatcher rejects
// anything outside it with a validation failure instead of crashing.
type Type string

const (
	TypeExit               Type = "Exit"
	TypeRefresh            Type = "Refresh"
	TypeSearchUser         Type = "SearchUser"
	TypeSearchPosts        Type = "SearchPosts"
	TypeCreatePost         Type = "CreatePost"
	TypeLike               Type = "Like"
	TypeUnlike             Type = "Unlike"
	TypeDislike            Type = "Dislike"
	TypeUndoDislike        Type = "UndoDislike"
	TypeFollow             Type = "Follow"
	TypeUnfollow           Type = "Unfollow"
	TypeMute               Type = "Mute"
	TypeUnmute             Type = "Unmute"
	TypeTrend              Type = "Trend"
	TypeSignUp             Type = "SignUp"
	TypeRepost             Type = "Repost"
	TypeUpdateRecTable     Type = "UpdateRecTable"
	TypeCreateComment      Type = "CreateComment"
	TypeLikeComment        Type = "LikeComment"
	TypeUnlikeComment      Type = "UnlikeComment"
	TypeDislikeComment     Type = "DislikeComment"
	TypeUndoDislikeComment Type = "UndoDislikeComment"
	TypeDoNothing          Type = "DoNothing"
)

// Types lists every valid action type.
var Types = []Type{
	TypeExit, TypeRefresh, TypeSearchUser, TypeSearchPosts, TypeCreatePost,
	TypeLike, TypeUnlike, TypeDislike, TypeUndoDislike, TypeFollow,
	TypeUnfollow, TypeMute, TypeUnmute, TypeTrend, TypeSignUp, TypeRepost,
	TypeUpdateRecTable, TypeCreateComment, TypeLikeComment,
	TypeUnlikeComment, TypeDislikeComment, TypeUndoDislikeComment,
	TypeDoNothing,
}

var validTypes = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(Types))
	for _, t := range Types {
		m[t] = struct{}{}
	}
	return m
}()

// Valid reports whether t belongs to the closed action-type set.
func (t Type) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// Request is what a caller submits: its own identity, the action type and
// the action-specific payload fields.
type Request struct {
	CallerID string  `json:"caller_id"`
	Type     Type    `json:"action_type"`
	Payload  Payload `json:"payload"`
}

// Payload carries the inputs for all action types; each handler validates
// the fields it needs and ignores the rest.
type Payload struct {
	Handle       string `json:"handle,omitempty"`
	Name         string `json:"name,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Content      string `json:"content,omitempty"`
	PostID       int64  `json:"post_id,omitempty"`
	CommentID    int64  `json:"comment_id,omitempty"`
	TargetUserID int64  `json:"target_user_id,omitempty"`
	Query        string `json:"query,omitempty"`
}

// Result is the uniform response record. Success is always set; Error is
// set only on failure; the id and list fields are action-specific.
type Result struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	PostID    int64  `json:"post_id,omitempty"`
	CommentID int64  `json:"comment_id,omitempty"`
	LikeID    int64  `json:"like_id,omitempty"`
	DislikeID int64  `json:"dislike_id,omitempty"`
	FollowID  int64  `json:"follow_id,omitempty"`
	MuteID    int64  `json:"mute_id,omitempty"`

	Posts []PostView `json:"posts,omitempty"`
	Users []UserView `json:"users,omitempty"`
}

// Failure builds a failed result with the given error message.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// PostView is a post as returned to callers, with its comments nested.
type PostView struct {
	PostID       int64         `json:"post_id"`
	AuthorID     int64         `json:"author_id"`
	OriginID     int64         `json:"origin_id,omitempty"`
	Content      string        `json:"content"`
	CreatedAt    time.Time     `json:"created_at"`
	LikeCount    int64         `json:"like_count"`
	DislikeCount int64         `json:"dislike_count"`
	Comments     []CommentView `json:"comments,omitempty"`
}

// CommentView is a comment as returned to callers.
type CommentView struct {
	CommentID    int64     `json:"comment_id"`
	PostID       int64     `json:"post_id"`
	AuthorID     int64     `json:"author_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int64     `json:"like_count"`
	DislikeCount int64     `json:"dislike_count"`
}

// UserView is a user profile as returned by searches.
type UserView struct {
	UserID         int64  `json:"user_id"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"display_name"`
	Bio            string `json:"bio"`
	FollowingCount int64  `json:"following_count"`
	FollowerCount  int64  `json:"follower_count"`
}
