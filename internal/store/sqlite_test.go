package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *SQLiteStore, callerID, handle string) *User {
	t.Helper()
	u := &User{
		CallerID:    callerID,
		Handle:      handle,
		DisplayName: handle,
		Bio:         "bio of " + handle,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if _, err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", handle, err)
	}
	return u
}

func mustCreatePost(t *testing.T, s *SQLiteStore, authorID int64, content string, at time.Time) *Post {
	t.Helper()
	p := &Post{AuthorID: authorID, Content: content, CreatedAt: at}
	if _, err := s.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return p
}

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "agent-1", "alice")
	if u.ID != 1 {
		t.Errorf("first user id = %d, want 1", u.ID)
	}

	got, err := s.UserByCaller(ctx, "agent-1")
	if err != nil {
		t.Fatalf("UserByCaller: %v", err)
	}
	if got == nil || got.Handle != "alice" || got.Bio != "bio of alice" {
		t.Errorf("UserByCaller = %+v, want alice", got)
	}

	// Absent caller yields (nil, nil)
	got, err = s.UserByCaller(ctx, "ghost")
	if err != nil || got != nil {
		t.Errorf("UserByCaller(ghost) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "agent-1", "alice")

	tests := []struct {
		name     string
		callerID string
		handle   string
	}{
		{"same caller", "agent-1", "other"},
		{"same handle", "agent-2", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{CallerID: tt.callerID, Handle: tt.handle, CreatedAt: time.Now()}
			if _, err := s.CreateUser(ctx, u); !errors.Is(err, ErrDuplicate) {
				t.Errorf("CreateUser = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestRepostUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	original := mustCreatePost(t, s, alice.ID, "hello", time.Now())

	repost := &Post{AuthorID: bob.ID, OriginID: original.ID, Content: original.Content, CreatedAt: time.Now()}
	if _, err := s.CreatePost(ctx, repost); err != nil {
		t.Fatalf("first repost: %v", err)
	}

	dup := &Post{AuthorID: bob.ID, OriginID: original.ID, Content: original.Content, CreatedAt: time.Now()}
	if _, err := s.CreatePost(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second repost = %v, want ErrDuplicate", err)
	}

	has, err := s.HasRepost(ctx, bob.ID, original.ID)
	if err != nil || !has {
		t.Errorf("HasRepost = (%v, %v), want (true, nil)", has, err)
	}
	has, err = s.HasRepost(ctx, alice.ID, original.ID)
	if err != nil || has {
		t.Errorf("HasRepost(alice) = (%v, %v), want (false, nil)", has, err)
	}
}

func TestPostReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	post := mustCreatePost(t, s, alice.ID, "hello", time.Now())

	likeID, err := s.AddPostReaction(ctx, ReactionLike, bob.ID, post.ID, time.Now())
	if err != nil {
		t.Fatalf("AddPostReaction: %v", err)
	}
	if likeID != 1 {
		t.Errorf("like id = %d, want 1", likeID)
	}

	got, _ := s.PostByID(ctx, post.ID)
	if got.LikeCount != 1 {
		t.Errorf("LikeCount = %d, want 1", got.LikeCount)
	}

	// Duplicate like rejected, counter unchanged
	if _, err := s.AddPostReaction(ctx, ReactionLike, bob.ID, post.ID, time.Now()); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate like = %v, want ErrDuplicate", err)
	}
	got, _ = s.PostByID(ctx, post.ID)
	if got.LikeCount != 1 {
		t.Errorf("LikeCount after duplicate = %d, want 1", got.LikeCount)
	}

	// Unlike restores the counter
	if err := s.RemovePostReaction(ctx, ReactionLike, bob.ID, post.ID); err != nil {
		t.Fatalf("RemovePostReaction: %v", err)
	}
	got, _ = s.PostByID(ctx, post.ID)
	if got.LikeCount != 0 {
		t.Errorf("LikeCount after unlike = %d, want 0", got.LikeCount)
	}

	// Unlike without a like is ErrNotFound
	if err := s.RemovePostReaction(ctx, ReactionLike, bob.ID, post.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unlike absent = %v, want ErrNotFound", err)
	}

	// Reacting to a missing post is ErrNotFound
	if _, err := s.AddPostReaction(ctx, ReactionDislike, bob.ID, 999, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("dislike missing post = %v, want ErrNotFound", err)
	}
}

func TestCommentReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	post := mustCreatePost(t, s, alice.ID, "hello", time.Now())

	comment := &Comment{PostID: post.ID, AuthorID: bob.ID, Content: "nice", CreatedAt: time.Now()}
	if _, err := s.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	if _, err := s.AddCommentReaction(ctx, ReactionDislike, alice.ID, comment.ID, time.Now()); err != nil {
		t.Fatalf("AddCommentReaction: %v", err)
	}
	got, _ := s.CommentByID(ctx, comment.ID)
	if got.DislikeCount != 1 {
		t.Errorf("DislikeCount = %d, want 1", got.DislikeCount)
	}

	if err := s.RemoveCommentReaction(ctx, ReactionDislike, alice.ID, comment.ID); err != nil {
		t.Fatalf("RemoveCommentReaction: %v", err)
	}
	got, _ = s.CommentByID(ctx, comment.ID)
	if got.DislikeCount != 0 {
		t.Errorf("DislikeCount after undo = %d, want 0", got.DislikeCount)
	}

	comments, err := s.CommentsByPost(ctx, post.ID)
	if err != nil || len(comments) != 1 {
		t.Errorf("CommentsByPost = (%d comments, %v), want 1", len(comments), err)
	}
}

func TestFollowCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")

	if _, err := s.FollowUser(ctx, alice.ID, bob.ID, time.Now()); err != nil {
		t.Fatalf("FollowUser: %v", err)
	}

	a, _ := s.UserByID(ctx, alice.ID)
	b, _ := s.UserByID(ctx, bob.ID)
	if a.FollowingCount != 1 || a.FollowerCount != 0 {
		t.Errorf("alice counters = (%d, %d), want (1, 0)", a.FollowingCount, a.FollowerCount)
	}
	if b.FollowingCount != 0 || b.FollowerCount != 1 {
		t.Errorf("bob counters = (%d, %d), want (0, 1)", b.FollowingCount, b.FollowerCount)
	}

	// Duplicate follow leaves counters untouched
	if _, err := s.FollowUser(ctx, alice.ID, bob.ID, time.Now()); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate follow = %v, want ErrDuplicate", err)
	}
	a, _ = s.UserByID(ctx, alice.ID)
	if a.FollowingCount != 1 {
		t.Errorf("alice FollowingCount after duplicate = %d, want 1", a.FollowingCount)
	}

	if err := s.UnfollowUser(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("UnfollowUser: %v", err)
	}
	a, _ = s.UserByID(ctx, alice.ID)
	b, _ = s.UserByID(ctx, bob.ID)
	if a.FollowingCount != 0 || b.FollowerCount != 0 {
		t.Errorf("counters after unfollow = (%d, %d), want (0, 0)", a.FollowingCount, b.FollowerCount)
	}

	if err := s.UnfollowUser(ctx, alice.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unfollow absent = %v, want ErrNotFound", err)
	}
}

func TestMute(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")

	if _, err := s.MuteUser(ctx, alice.ID, bob.ID, time.Now()); err != nil {
		t.Fatalf("MuteUser: %v", err)
	}
	if _, err := s.MuteUser(ctx, alice.ID, bob.ID, time.Now()); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate mute = %v, want ErrDuplicate", err)
	}
	if err := s.UnmuteUser(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("UnmuteUser: %v", err)
	}
	if err := s.UnmuteUser(ctx, alice.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unmute absent = %v, want ErrNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	mustCreateUser(t, s, "agent-2", "bob")
	mustCreatePost(t, s, alice.ID, "go generics are here", time.Now())
	mustCreatePost(t, s, alice.ID, "unrelated", time.Now())

	users, err := s.SearchUsers(ctx, "ali", 10)
	if err != nil || len(users) != 1 || users[0].Handle != "alice" {
		t.Errorf("SearchUsers(ali) = (%v, %v), want alice", users, err)
	}

	posts, err := s.SearchPosts(ctx, "generics", 10)
	if err != nil || len(posts) != 1 {
		t.Errorf("SearchPosts(generics) = (%d, %v), want 1", len(posts), err)
	}

	// LIKE wildcards in queries are treated literally
	posts, err = s.SearchPosts(ctx, "%", 10)
	if err != nil || len(posts) != 0 {
		t.Errorf("SearchPosts(%%) = (%d, %v), want 0", len(posts), err)
	}
}

func TestTrendingPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	carol := mustCreateUser(t, s, "agent-3", "carol")

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := mustCreatePost(t, s, alice.ID, "old hit", t0.Add(-48*time.Hour))
	fresh := mustCreatePost(t, s, alice.ID, "fresh", t0)
	popular := mustCreatePost(t, s, alice.ID, "popular", t0.Add(time.Hour))

	for _, userID := range []int64{bob.ID, carol.ID} {
		if _, err := s.AddPostReaction(ctx, ReactionLike, userID, popular.ID, t0); err != nil {
			t.Fatalf("AddPostReaction: %v", err)
		}
	}
	if _, err := s.AddPostReaction(ctx, ReactionLike, bob.ID, old.ID, t0); err != nil {
		t.Fatalf("AddPostReaction: %v", err)
	}

	got, err := s.TrendingPosts(ctx, t0.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("TrendingPosts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TrendingPosts returned %d posts, want 2 (old one excluded)", len(got))
	}
	if got[0].ID != popular.ID || got[1].ID != fresh.ID {
		t.Errorf("TrendingPosts order = [%d, %d], want [%d, %d]", got[0].ID, got[1].ID, popular.ID, fresh.ID)
	}
}

func TestPostsByIDsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	p1 := mustCreatePost(t, s, alice.ID, "one", time.Now())
	p2 := mustCreatePost(t, s, alice.ID, "two", time.Now())
	p3 := mustCreatePost(t, s, alice.ID, "three", time.Now())

	got, err := s.PostsByIDs(ctx, []int64{p3.ID, p1.ID, 999, p2.ID})
	if err != nil {
		t.Fatalf("PostsByIDs: %v", err)
	}
	want := []int64{p3.ID, p1.ID, p2.ID}
	if len(got) != len(want) {
		t.Fatalf("PostsByIDs returned %d posts, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.ID != want[i] {
			t.Errorf("PostsByIDs[%d] = %d, want %d", i, p.ID, want[i])
		}
	}
}

func TestReplaceRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	p1 := mustCreatePost(t, s, alice.ID, "one", time.Now())
	p2 := mustCreatePost(t, s, alice.ID, "two", time.Now())

	table := map[int64][]int64{
		alice.ID: {p2.ID, p1.ID},
		bob.ID:   {p1.ID},
	}
	if err := s.ReplaceRecommendations(ctx, table); err != nil {
		t.Fatalf("ReplaceRecommendations: %v", err)
	}

	got, err := s.Recommendations(ctx, alice.ID, 10)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(got) != 2 || got[0] != p2.ID || got[1] != p1.ID {
		t.Errorf("Recommendations(alice) = %v, want [%d, %d]", got, p2.ID, p1.ID)
	}

	// A second replace fully supersedes the first
	if err := s.ReplaceRecommendations(ctx, map[int64][]int64{alice.ID: {p1.ID}}); err != nil {
		t.Fatalf("ReplaceRecommendations: %v", err)
	}
	got, _ = s.Recommendations(ctx, alice.ID, 10)
	if len(got) != 1 || got[0] != p1.ID {
		t.Errorf("Recommendations after replace = %v, want [%d]", got, p1.ID)
	}
	got, _ = s.Recommendations(ctx, bob.ID, 10)
	if len(got) != 0 {
		t.Errorf("Recommendations(bob) after replace = %v, want empty", got)
	}
}

func TestTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	post := mustCreatePost(t, s, alice.ID, "hello", time.Now())

	rows := []*TraceRow{
		{UserID: alice.ID, CreatedAt: time.Now(), Action: "CreatePost", PostID: post.ID},
		{UserID: alice.ID, CreatedAt: time.Now(), Action: "Trend", Info: map[string]any{"returned": 0}},
		{UserID: alice.ID, CreatedAt: time.Now(), Action: "Like", PostID: post.ID},
	}
	for _, row := range rows {
		if err := s.AppendTrace(ctx, row); err != nil {
			t.Fatalf("AppendTrace(%s): %v", row.Action, err)
		}
	}

	traced, err := s.TracedPostIDs(ctx)
	if err != nil {
		t.Fatalf("TracedPostIDs: %v", err)
	}
	// Two post-linked rows collapse to one distinct post id
	if got := traced[alice.ID]; len(got) != 1 || got[0] != post.ID {
		t.Errorf("TracedPostIDs(alice) = %v, want [%d]", got, post.ID)
	}
}

func TestReactedPostIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "agent-1", "alice")
	bob := mustCreateUser(t, s, "agent-2", "bob")
	p1 := mustCreatePost(t, s, alice.ID, "one", time.Now())
	p2 := mustCreatePost(t, s, alice.ID, "two", time.Now())

	if _, err := s.AddPostReaction(ctx, ReactionLike, bob.ID, p1.ID, time.Now()); err != nil {
		t.Fatalf("AddPostReaction: %v", err)
	}
	if _, err := s.AddPostReaction(ctx, ReactionDislike, bob.ID, p2.ID, time.Now()); err != nil {
		t.Fatalf("AddPostReaction: %v", err)
	}

	liked, err := s.ReactedPostIDs(ctx, ReactionLike)
	if err != nil {
		t.Fatalf("ReactedPostIDs(like): %v", err)
	}
	if got := liked[bob.ID]; len(got) != 1 || got[0] != p1.ID {
		t.Errorf("liked[bob] = %v, want [%d]", got, p1.ID)
	}

	disliked, err := s.ReactedPostIDs(ctx, ReactionDislike)
	if err != nil {
		t.Fatalf("ReactedPostIDs(dislike): %v", err)
	}
	if got := disliked[bob.ID]; len(got) != 1 || got[0] != p2.ID {
		t.Errorf("disliked[bob] = %v, want [%d]", got, p2.ID)
	}
}

func TestFreshDatabasePerRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	mustCreateUser(t, s1, "agent-1", "alice")
	s1.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore (second run): %v", err)
	}
	defer s2.Close()

	users, err := s2.AllUsers(context.Background())
	if err != nil {
		t.Fatalf("AllUsers: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("second run found %d users, want 0", len(users))
	}
}

func TestValidateIntegrity(t *testing.T) {
	s := newTestStore(t)
	if err := ValidateIntegrity(context.Background(), s.DB()); err != nil {
		t.Errorf("ValidateIntegrity on fresh store: %v", err)
	}
}
