package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence.
// Every run starts from an empty database: any existing file at the
// configured path is removed before the schema is created.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a fresh SQLiteStore at dbPath.
// ":memory:" keeps the database in memory.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		// Fresh database per run, including WAL sidecars
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to remove stale database file %s: %w", p, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for integrity checks in tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreateUser inserts a new user and returns its id.
// Returns ErrDuplicate if the caller id or handle is already taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user WHERE caller_id = ? OR handle = ?`,
		u.CallerID, u.Handle).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check user uniqueness: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user (caller_id, handle, name, bio, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.CallerID, u.Handle, u.DisplayName, u.Bio, formatTime(u.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get user id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit user: %w", err)
	}
	u.ID = id
	return id, nil
}

const userColumns = `user_id, caller_id, handle, name, bio, created_at, num_followings, num_followers`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.CallerID, &u.Handle, &u.DisplayName, &u.Bio,
		&createdAt, &u.FollowingCount, &u.FollowerCount)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// UserByCaller returns the user registered under callerID, or (nil, nil)
// if none exists.
func (s *SQLiteStore) UserByCaller(ctx context.Context, callerID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user WHERE caller_id = ?`, callerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by caller: %w", err)
	}
	return u, nil
}

// UserByID returns the user with the given id, or (nil, nil) if none exists.
func (s *SQLiteStore) UserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user WHERE user_id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return u, nil
}

// SearchUsers returns users whose handle, name, or bio contains query,
// ordered by id.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM user
		 WHERE handle LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\' OR bio LIKE ? ESCAPE '\'
		 ORDER BY user_id LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AllUsers returns every user ordered by id.
func (s *SQLiteStore) AllUsers(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM user ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const postColumns = `post_id, user_id, origin_post_id, content, created_at, num_likes, num_dislikes`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	var createdAt string
	err := row.Scan(&p.ID, &p.AuthorID, &p.OriginID, &p.Content,
		&createdAt, &p.LikeCount, &p.DislikeCount)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// CreatePost inserts a post and returns its id.
// A repost (OriginID != 0) by a user who already reposted the same
// original returns ErrDuplicate.
func (s *SQLiteStore) CreatePost(ctx context.Context, p *Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if p.OriginID != 0 {
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM post WHERE user_id = ? AND origin_post_id = ?`,
			p.AuthorID, p.OriginID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("failed to check repost uniqueness: %w", err)
		}
		if exists > 0 {
			return 0, ErrDuplicate
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO post (user_id, origin_post_id, content, created_at) VALUES (?, ?, ?, ?)`,
		p.AuthorID, p.OriginID, p.Content, formatTime(p.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get post id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit post: %w", err)
	}
	p.ID = id
	return id, nil
}

// PostByID returns the post with the given id, or (nil, nil) if none exists.
func (s *SQLiteStore) PostByID(ctx context.Context, id int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM post WHERE post_id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}
	return p, nil
}

// PostsByIDs returns the posts with the given ids, in the order given.
// Missing ids are skipped.
func (s *SQLiteStore) PostsByIDs(ctx context.Context, ids []int64) ([]*Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM post WHERE post_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*Post, len(ids))
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// SearchPosts returns posts whose content contains query, newest first.
func (s *SQLiteStore) SearchPosts(ctx context.Context, query string, limit int) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM post
		 WHERE content LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, post_id DESC LIMIT ?`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// TrendingPosts returns the most-liked posts created at or after since.
// Ties break toward newer posts.
func (s *SQLiteStore) TrendingPosts(ctx context.Context, since time.Time, limit int) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM post
		 WHERE created_at >= ?
		 ORDER BY num_likes DESC, created_at DESC, post_id DESC LIMIT ?`,
		formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// AllPosts returns every post ordered by id.
func (s *SQLiteStore) AllPosts(ctx context.Context) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM post ORDER BY post_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// HasRepost reports whether userID already reposted the original originID.
func (s *SQLiteStore) HasRepost(ctx context.Context, userID, originID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post WHERE user_id = ? AND origin_post_id = ?`,
		userID, originID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check repost: %w", err)
	}
	return count > 0, nil
}

const commentColumns = `comment_id, post_id, user_id, content, created_at, num_likes, num_dislikes`

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var c Comment
	var createdAt string
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content,
		&createdAt, &c.LikeCount, &c.DislikeCount)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// CreateComment inserts a comment and returns its id.
func (s *SQLiteStore) CreateComment(ctx context.Context, c *Comment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comment (post_id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		c.PostID, c.AuthorID, c.Content, formatTime(c.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get comment id: %w", err)
	}
	c.ID = id
	return id, nil
}

// CommentByID returns the comment with the given id, or (nil, nil) if
// none exists.
func (s *SQLiteStore) CommentByID(ctx context.Context, id int64) (*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comment WHERE comment_id = ?`, id)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query comment: %w", err)
	}
	return c, nil
}

// CommentsByPost returns all comments on a post, oldest first.
func (s *SQLiteStore) CommentsByPost(ctx context.Context, postID int64) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comment WHERE post_id = ? ORDER BY comment_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// reactionTable maps a reaction kind onto its post-level edge table and
// counter column.
func reactionTable(kind ReactionKind) (table, counter string, err error) {
	switch kind {
	case ReactionLike:
		return `"like"`, "num_likes", nil
	case ReactionDislike:
		return `"dislike"`, "num_dislikes", nil
	default:
		return "", "", fmt.Errorf("unknown reaction kind %q", kind)
	}
}

// commentReactionTable maps a reaction kind onto its comment-level edge
// table and counter column.
func commentReactionTable(kind ReactionKind) (table, counter string, err error) {
	switch kind {
	case ReactionLike:
		return "comment_like", "num_likes", nil
	case ReactionDislike:
		return "comment_dislike", "num_dislikes", nil
	default:
		return "", "", fmt.Errorf("unknown reaction kind %q", kind)
	}
}

// AddPostReaction records a like or dislike of a post and increments the
// post's counter in the same transaction.
// Returns ErrNotFound if the post does not exist and ErrDuplicate if the
// user already reacted the same way.
func (s *SQLiteStore) AddPostReaction(ctx context.Context, kind ReactionKind, userID, postID int64, at time.Time) (int64, error) {
	table, counter, err := reactionTable(kind)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post WHERE post_id = ?`, postID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check post: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE user_id = ? AND post_id = ?`,
		userID, postID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check reaction: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, post_id, created_at) VALUES (?, ?, ?)`,
		userID, postID, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("failed to insert reaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get reaction id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE post SET `+counter+` = `+counter+` + 1 WHERE post_id = ?`, postID); err != nil {
		return 0, fmt.Errorf("failed to update post counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reaction: %w", err)
	}
	return id, nil
}

// RemovePostReaction removes a like or dislike of a post and decrements
// the post's counter in the same transaction.
// Returns ErrNotFound if no such reaction exists.
func (s *SQLiteStore) RemovePostReaction(ctx context.Context, kind ReactionKind, userID, postID int64) error {
	table, counter, err := reactionTable(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND post_id = ?`, userID, postID)
	if err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE post SET `+counter+` = `+counter+` - 1 WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to update post counter: %w", err)
	}

	return tx.Commit()
}

// AddCommentReaction records a like or dislike of a comment and
// increments the comment's counter in the same transaction.
func (s *SQLiteStore) AddCommentReaction(ctx context.Context, kind ReactionKind, userID, commentID int64, at time.Time) (int64, error) {
	table, counter, err := commentReactionTable(kind)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comment WHERE comment_id = ?`, commentID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check comment: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE user_id = ? AND comment_id = ?`,
		userID, commentID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check reaction: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, comment_id, created_at) VALUES (?, ?, ?)`,
		userID, commentID, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("failed to insert reaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get reaction id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE comment SET `+counter+` = `+counter+` + 1 WHERE comment_id = ?`, commentID); err != nil {
		return 0, fmt.Errorf("failed to update comment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reaction: %w", err)
	}
	return id, nil
}

// RemoveCommentReaction removes a like or dislike of a comment and
// decrements the comment's counter in the same transaction.
func (s *SQLiteStore) RemoveCommentReaction(ctx context.Context, kind ReactionKind, userID, commentID int64) error {
	table, counter, err := commentReactionTable(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND comment_id = ?`, userID, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE comment SET `+counter+` = `+counter+` - 1 WHERE comment_id = ?`, commentID); err != nil {
		return fmt.Errorf("failed to update comment counter: %w", err)
	}

	return tx.Commit()
}

// FollowUser records a follow edge and updates both users' counters in
// the same transaction.
// Returns ErrDuplicate if the edge already exists.
func (s *SQLiteStore) FollowUser(ctx context.Context, followerID, followeeID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follow WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check follow: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO follow (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
		followerID, followeeID, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("failed to insert follow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get follow id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user SET num_followings = num_followings + 1 WHERE user_id = ?`, followerID); err != nil {
		return 0, fmt.Errorf("failed to update follower counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user SET num_followers = num_followers + 1 WHERE user_id = ?`, followeeID); err != nil {
		return 0, fmt.Errorf("failed to update followee counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit follow: %w", err)
	}
	return id, nil
}

// UnfollowUser removes a follow edge and updates both users' counters in
// the same transaction.
// Returns ErrNotFound if the edge does not exist.
func (s *SQLiteStore) UnfollowUser(ctx context.Context, followerID, followeeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM follow WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user SET num_followings = num_followings - 1 WHERE user_id = ?`, followerID); err != nil {
		return fmt.Errorf("failed to update follower counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user SET num_followers = num_followers - 1 WHERE user_id = ?`, followeeID); err != nil {
		return fmt.Errorf("failed to update followee counter: %w", err)
	}

	return tx.Commit()
}

// MuteUser records a mute edge.
// Returns ErrDuplicate if the edge already exists.
func (s *SQLiteStore) MuteUser(ctx context.Context, muterID, muteeID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mute WHERE muter_id = ? AND mutee_id = ?`,
		muterID, muteeID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check mute: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO mute (muter_id, mutee_id, created_at) VALUES (?, ?, ?)`,
		muterID, muteeID, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("failed to insert mute: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get mute id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit mute: %w", err)
	}
	return id, nil
}

// UnmuteUser removes a mute edge.
// Returns ErrNotFound if the edge does not exist.
func (s *SQLiteStore) UnmuteUser(ctx context.Context, muterID, muteeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mute WHERE muter_id = ? AND mutee_id = ?`, muterID, muteeID)
	if err != nil {
		return fmt.Errorf("failed to delete mute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Recommendations returns the ranked post ids recommended to userID.
func (s *SQLiteStore) Recommendations(ctx context.Context, userID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id FROM rec WHERE user_id = ? ORDER BY rank LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceRecommendations swaps the entire recommendation table for the
// given assignment in one transaction. Readers never observe a partially
// rebuilt table.
func (s *SQLiteStore) ReplaceRecommendations(ctx context.Context, table map[int64][]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rec`); err != nil {
		return fmt.Errorf("failed to clear recommendations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rec (user_id, rank, post_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare recommendation insert: %w", err)
	}
	defer stmt.Close()

	for userID, postIDs := range table {
		for rank, postID := range postIDs {
			if _, err := stmt.ExecContext(ctx, userID, rank, postID); err != nil {
				return fmt.Errorf("failed to insert recommendation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// AppendTrace records a completed action in the trace table.
func (s *SQLiteStore) AppendTrace(ctx context.Context, row *TraceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var postID sql.NullInt64
	if row.PostID != 0 {
		postID = sql.NullInt64{Int64: row.PostID, Valid: true}
	}

	var info sql.NullString
	if len(row.Info) > 0 {
		data, err := json.Marshal(row.Info)
		if err != nil {
			return fmt.Errorf("failed to marshal trace info: %w", err)
		}
		info = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trace (user_id, created_at, action, post_id, info) VALUES (?, ?, ?, ?, ?)`,
		row.UserID, formatTime(row.CreatedAt), row.Action, postID, info)
	if err != nil {
		return fmt.Errorf("failed to insert trace row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trace id: %w", err)
	}
	row.ID = id
	return nil
}

// TracedPostIDs returns, per user, the distinct post ids that user has
// interacted with according to the trace.
func (s *SQLiteStore) TracedPostIDs(ctx context.Context) (map[int64][]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id, post_id FROM trace WHERE post_id IS NOT NULL ORDER BY user_id, post_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	return collectUserPostPairs(rows)
}

// ReactedPostIDs returns, per user, the post ids the user has liked or
// disliked.
func (s *SQLiteStore) ReactedPostIDs(ctx context.Context, kind ReactionKind) (map[int64][]int64, error) {
	table, _, err := reactionTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, post_id FROM `+table+` ORDER BY user_id, post_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	return collectUserPostPairs(rows)
}

func collectUserPostPairs(rows *sql.Rows) (map[int64][]int64, error) {
	result := make(map[int64][]int64)
	for rows.Next() {
		var userID, postID int64
		if err := rows.Scan(&userID, &postID); err != nil {
			return nil, fmt.Errorf("failed to scan user/post pair: %w", err)
		}
		result[userID] = append(result[userID], postID)
	}
	return result, rows.Err()
}
