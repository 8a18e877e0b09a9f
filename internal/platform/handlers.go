package platform

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mimus-sim/mimus/internal/action"
	"github.com/mimus-sim/mimus/internal/store"
)

// trace records a completed action. Trace failures degrade the result to
// a store failure so the behavioral log never silently loses rows.
func (p *Platform) trace(ctx context.Context, userID int64, at time.Time, actionType action.Type, postID int64, info map[string]any) error {
	return p.store.AppendTrace(ctx, &store.TraceRow{
		UserID:    userID,
		CreatedAt: at,
		Action:    string(actionType),
		PostID:    postID,
		Info:      info,
	})
}

func (p *Platform) handleSignUp(ctx context.Context, req action.Request, now time.Time) action.Result {
	handle := strings.TrimSpace(req.Payload.Handle)
	if handle == "" {
		return action.Failure("Handle must not be empty.")
	}

	existing, err := p.store.UserByCaller(ctx, req.CallerID)
	if err != nil {
		return p.storeFailure("checking caller", err)
	}
	if existing != nil {
		return action.Failure("Caller has already signed up.")
	}

	user := &store.User{
		CallerID:    req.CallerID,
		Handle:      handle,
		DisplayName: req.Payload.Name,
		Bio:         req.Payload.Bio,
		CreatedAt:   now,
	}
	if user.DisplayName == "" {
		user.DisplayName = handle
	}

	id, err := p.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure("User record already exists.")
	}
	if err != nil {
		return p.storeFailure("creating user", err)
	}

	if err := p.trace(ctx, id, now, action.TypeSignUp, 0, map[string]any{"handle": handle}); err != nil {
		return p.storeFailure("tracing sign up", err)
	}
	return action.Result{Success: true, UserID: id}
}

func (p *Platform) handleRefresh(ctx context.Context, user *store.User, now time.Time) action.Result {
	ids, err := p.store.Recommendations(ctx, user.ID, p.cfg.RecSys.MaxPosts)
	if err != nil {
		return p.storeFailure("loading recommendations", err)
	}

	picked := p.sample(ids, p.cfg.Platform.FeedSize)
	posts, err := p.store.PostsByIDs(ctx, picked)
	if err != nil {
		return p.storeFailure("loading feed posts", err)
	}

	views, err := p.postViews(ctx, posts)
	if err != nil {
		return p.storeFailure("loading feed comments", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeRefresh, 0, map[string]any{"returned": len(views)}); err != nil {
		return p.storeFailure("tracing refresh", err)
	}
	return action.Result{Success: true, Posts: views}
}

func (p *Platform) handleSearchUser(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	query := strings.TrimSpace(req.Payload.Query)
	if query == "" {
		return action.Failure("Query must not be empty.")
	}

	users, err := p.store.SearchUsers(ctx, query, p.cfg.Platform.SearchLimit)
	if err != nil {
		return p.storeFailure("searching users", err)
	}

	views := make([]action.UserView, len(users))
	for i, u := range users {
		views[i] = action.UserView{
			UserID:         u.ID,
			Handle:         u.Handle,
			DisplayName:    u.DisplayName,
			Bio:            u.Bio,
			FollowingCount: u.FollowingCount,
			FollowerCount:  u.FollowerCount,
		}
	}

	if err := p.trace(ctx, user.ID, now, action.TypeSearchUser, 0, map[string]any{"query": query, "returned": len(views)}); err != nil {
		return p.storeFailure("tracing user search", err)
	}
	return action.Result{Success: true, Users: views}
}

func (p *Platform) handleSearchPosts(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	query := strings.TrimSpace(req.Payload.Query)
	if query == "" {
		return action.Failure("Query must not be empty.")
	}

	posts, err := p.store.SearchPosts(ctx, query, p.cfg.Platform.SearchLimit)
	if err != nil {
		return p.storeFailure("searching posts", err)
	}

	views, err := p.postViews(ctx, posts)
	if err != nil {
		return p.storeFailure("loading search comments", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeSearchPosts, 0, map[string]any{"query": query, "returned": len(views)}); err != nil {
		return p.storeFailure("tracing post search", err)
	}
	return action.Result{Success: true, Posts: views}
}

func (p *Platform) handleCreatePost(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	content := strings.TrimSpace(req.Payload.Content)
	if content == "" {
		return action.Failure("Content must not be empty.")
	}

	post := &store.Post{AuthorID: user.ID, Content: content, CreatedAt: now}
	id, err := p.store.CreatePost(ctx, post)
	if err != nil {
		return p.storeFailure("creating post", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeCreatePost, id, nil); err != nil {
		return p.storeFailure("tracing post creation", err)
	}
	return action.Result{Success: true, PostID: id}
}

func (p *Platform) handleRepost(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	post, err := p.store.PostByID(ctx, req.Payload.PostID)
	if err != nil {
		return p.storeFailure("loading post", err)
	}
	if post == nil {
		return action.Failure("Post not found.")
	}

	// Reposts always point at the root original, so repost chains
	// collapse to one provenance hop.
	root := post
	if post.OriginID != 0 {
		root, err = p.store.PostByID(ctx, post.OriginID)
		if err != nil {
			return p.storeFailure("loading origin post", err)
		}
		if root == nil {
			return action.Failure("Post not found.")
		}
	}

	repost := &store.Post{
		AuthorID:  user.ID,
		OriginID:  root.ID,
		Content:   root.Content,
		CreatedAt: now,
	}
	id, err := p.store.CreatePost(ctx, repost)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure("Repost record already exists.")
	}
	if err != nil {
		return p.storeFailure("creating repost", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeRepost, id, map[string]any{"origin_post_id": root.ID}); err != nil {
		return p.storeFailure("tracing repost", err)
	}
	return action.Result{Success: true, PostID: id}
}

// reactionRecord names a reaction kind in edge-presence error messages.
func reactionRecord(kind store.ReactionKind) string {
	if kind == store.ReactionLike {
		return "Like"
	}
	return "Dislike"
}

func (p *Platform) handlePostReaction(ctx context.Context, user *store.User, req action.Request, now time.Time, kind store.ReactionKind) action.Result {
	record := reactionRecord(kind)

	post, err := p.store.PostByID(ctx, req.Payload.PostID)
	if err != nil {
		return p.storeFailure("loading post", err)
	}
	if post == nil {
		return action.Failure("Post not found.")
	}
	if !p.cfg.Platform.AllowSelfRating && post.AuthorID == user.ID {
		return action.Failure("Users are not allowed to like/dislike their own posts.")
	}

	id, err := p.store.AddPostReaction(ctx, kind, user.ID, post.ID, now)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure(record + " record already exists.")
	}
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure("Post not found.")
	}
	if err != nil {
		return p.storeFailure("adding reaction", err)
	}

	actionType := action.TypeLike
	res := action.Result{Success: true, LikeID: id}
	if kind == store.ReactionDislike {
		actionType = action.TypeDislike
		res = action.Result{Success: true, DislikeID: id}
	}
	if err := p.trace(ctx, user.ID, now, actionType, post.ID, nil); err != nil {
		return p.storeFailure("tracing reaction", err)
	}
	return res
}

func (p *Platform) handleUndoPostReaction(ctx context.Context, user *store.User, req action.Request, now time.Time, kind store.ReactionKind) action.Result {
	record := reactionRecord(kind)

	err := p.store.RemovePostReaction(ctx, kind, user.ID, req.Payload.PostID)
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure(record + " record does not exist.")
	}
	if err != nil {
		return p.storeFailure("removing reaction", err)
	}

	actionType := action.TypeUnlike
	if kind == store.ReactionDislike {
		actionType = action.TypeUndoDislike
	}
	if err := p.trace(ctx, user.ID, now, actionType, req.Payload.PostID, nil); err != nil {
		return p.storeFailure("tracing reaction removal", err)
	}
	return action.Result{Success: true}
}

func (p *Platform) handleFollow(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	target := req.Payload.TargetUserID
	if target == user.ID {
		return action.Failure("Users cannot follow themselves.")
	}

	targetUser, err := p.store.UserByID(ctx, target)
	if err != nil {
		return p.storeFailure("loading user", err)
	}
	if targetUser == nil {
		return action.Failure("User not found.")
	}

	id, err := p.store.FollowUser(ctx, user.ID, target, now)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure("Follow record already exists.")
	}
	if err != nil {
		return p.storeFailure("creating follow", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeFollow, 0, map[string]any{"followee_id": target}); err != nil {
		return p.storeFailure("tracing follow", err)
	}
	return action.Result{Success: true, FollowID: id}
}

func (p *Platform) handleUnfollow(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	target := req.Payload.TargetUserID

	err := p.store.UnfollowUser(ctx, user.ID, target)
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure("Follow record does not exist.")
	}
	if err != nil {
		return p.storeFailure("removing follow", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeUnfollow, 0, map[string]any{"followee_id": target}); err != nil {
		return p.storeFailure("tracing unfollow", err)
	}
	return action.Result{Success: true}
}

func (p *Platform) handleMute(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	target := req.Payload.TargetUserID
	if target == user.ID {
		return action.Failure("Users cannot mute themselves.")
	}

	targetUser, err := p.store.UserByID(ctx, target)
	if err != nil {
		return p.storeFailure("loading user", err)
	}
	if targetUser == nil {
		return action.Failure("User not found.")
	}

	id, err := p.store.MuteUser(ctx, user.ID, target, now)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure("Mute record already exists.")
	}
	if err != nil {
		return p.storeFailure("creating mute", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeMute, 0, map[string]any{"mutee_id": target}); err != nil {
		return p.storeFailure("tracing mute", err)
	}
	return action.Result{Success: true, MuteID: id}
}

func (p *Platform) handleUnmute(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	target := req.Payload.TargetUserID

	err := p.store.UnmuteUser(ctx, user.ID, target)
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure("Mute record does not exist.")
	}
	if err != nil {
		return p.storeFailure("removing mute", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeUnmute, 0, map[string]any{"mutee_id": target}); err != nil {
		return p.storeFailure("tracing unmute", err)
	}
	return action.Result{Success: true}
}

func (p *Platform) handleTrend(ctx context.Context, user *store.User, now time.Time) action.Result {
	since := now.Add(-p.cfg.Platform.TrendWindow)
	posts, err := p.store.TrendingPosts(ctx, since, p.cfg.Platform.TrendSize)
	if err != nil {
		return p.storeFailure("loading trending posts", err)
	}

	views, err := p.postViews(ctx, posts)
	if err != nil {
		return p.storeFailure("loading trend comments", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeTrend, 0, map[string]any{"returned": len(views)}); err != nil {
		return p.storeFailure("tracing trend", err)
	}
	return action.Result{Success: true, Posts: views}
}

func (p *Platform) handleCreateComment(ctx context.Context, user *store.User, req action.Request, now time.Time) action.Result {
	content := strings.TrimSpace(req.Payload.Content)
	if content == "" {
		return action.Failure("Content must not be empty.")
	}

	post, err := p.store.PostByID(ctx, req.Payload.PostID)
	if err != nil {
		return p.storeFailure("loading post", err)
	}
	if post == nil {
		return action.Failure("Post not found.")
	}

	comment := &store.Comment{PostID: post.ID, AuthorID: user.ID, Content: content, CreatedAt: now}
	id, err := p.store.CreateComment(ctx, comment)
	if err != nil {
		return p.storeFailure("creating comment", err)
	}

	if err := p.trace(ctx, user.ID, now, action.TypeCreateComment, post.ID, map[string]any{"comment_id": id}); err != nil {
		return p.storeFailure("tracing comment creation", err)
	}
	return action.Result{Success: true, CommentID: id}
}

func (p *Platform) handleCommentReaction(ctx context.Context, user *store.User, req action.Request, now time.Time, kind store.ReactionKind) action.Result {
	record := reactionRecord(kind)

	comment, err := p.store.CommentByID(ctx, req.Payload.CommentID)
	if err != nil {
		return p.storeFailure("loading comment", err)
	}
	if comment == nil {
		return action.Failure("Comment not found.")
	}
	if !p.cfg.Platform.AllowSelfRating && comment.AuthorID == user.ID {
		return action.Failure("Users are not allowed to like/dislike their own comments.")
	}

	id, err := p.store.AddCommentReaction(ctx, kind, user.ID, comment.ID, now)
	if errors.Is(err, store.ErrDuplicate) {
		return action.Failure("Comment " + strings.ToLower(record) + " record already exists.")
	}
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure("Comment not found.")
	}
	if err != nil {
		return p.storeFailure("adding comment reaction", err)
	}

	actionType := action.TypeLikeComment
	res := action.Result{Success: true, CommentID: comment.ID, LikeID: id}
	if kind == store.ReactionDislike {
		actionType = action.TypeDislikeComment
		res = action.Result{Success: true, CommentID: comment.ID, DislikeID: id}
	}
	if err := p.trace(ctx, user.ID, now, actionType, comment.PostID, map[string]any{"comment_id": comment.ID}); err != nil {
		return p.storeFailure("tracing comment reaction", err)
	}
	return res
}

func (p *Platform) handleUndoCommentReaction(ctx context.Context, user *store.User, req action.Request, now time.Time, kind store.ReactionKind) action.Result {
	record := reactionRecord(kind)

	comment, err := p.store.CommentByID(ctx, req.Payload.CommentID)
	if err != nil {
		return p.storeFailure("loading comment", err)
	}
	if comment == nil {
		return action.Failure("Comment not found.")
	}

	err = p.store.RemoveCommentReaction(ctx, kind, user.ID, comment.ID)
	if errors.Is(err, store.ErrNotFound) {
		return action.Failure("Comment " + strings.ToLower(record) + " record does not exist.")
	}
	if err != nil {
		return p.storeFailure("removing comment reaction", err)
	}

	actionType := action.TypeUnlikeComment
	if kind == store.ReactionDislike {
		actionType = action.TypeUndoDislikeComment
	}
	if err := p.trace(ctx, user.ID, now, actionType, comment.PostID, map[string]any{"comment_id": comment.ID}); err != nil {
		return p.storeFailure("tracing comment reaction removal", err)
	}
	return action.Result{Success: true, CommentID: comment.ID}
}

func (p *Platform) handleDoNothing(ctx context.Context, user *store.User, now time.Time) action.Result {
	if err := p.trace(ctx, user.ID, now, action.TypeDoNothing, 0, nil); err != nil {
		return p.storeFailure("tracing idle action", err)
	}
	return action.Result{Success: true}
}

// postViews expands posts into caller-facing views with their comments.
func (p *Platform) postViews(ctx context.Context, posts []*store.Post) ([]action.PostView, error) {
	views := make([]action.PostView, 0, len(posts))
	for _, post := range posts {
		comments, err := p.store.CommentsByPost(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		commentViews := make([]action.CommentView, len(comments))
		for i, c := range comments {
			commentViews[i] = action.CommentView{
				CommentID:    c.ID,
				PostID:       c.PostID,
				AuthorID:     c.AuthorID,
				Content:      c.Content,
				CreatedAt:    c.CreatedAt,
				LikeCount:    c.LikeCount,
				DislikeCount: c.DislikeCount,
			}
		}
		views = append(views, action.PostView{
			PostID:       post.ID,
			AuthorID:     post.AuthorID,
			OriginID:     post.OriginID,
			Content:      post.Content,
			CreatedAt:    post.CreatedAt,
			LikeCount:    post.LikeCount,
			DislikeCount: post.DislikeCount,
			Comments:     commentViews,
		})
	}
	return views, nil
}
