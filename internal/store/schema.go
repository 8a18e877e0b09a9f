package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store. "like" and
// "dislike" are quoted because LIKE is an SQL keyword; the original and
// repost rows share the post table, distinguished by origin_post_id.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS user (
    user_id INTEGER PRIMARY KEY AUTOINCREMENT,
    caller_id TEXT NOT NULL UNIQUE,
    handle TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    bio TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    num_followings INTEGER NOT NULL DEFAULT 0,
    num_followers INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS post (
    post_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    origin_post_id INTEGER NOT NULL DEFAULT 0,  -- 0 for originals
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    num_likes INTEGER NOT NULL DEFAULT 0,
    num_dislikes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_post_user ON post(user_id);
CREATE INDEX IF NOT EXISTS idx_post_created ON post(created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_post_repost
    ON post(user_id, origin_post_id) WHERE origin_post_id != 0;

CREATE TABLE IF NOT EXISTS comment (
    comment_id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES post(post_id),
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    num_likes INTEGER NOT NULL DEFAULT 0,
    num_dislikes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_comment_post ON comment(post_id);

CREATE TABLE IF NOT EXISTS "like" (
    like_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    post_id INTEGER NOT NULL REFERENCES post(post_id),
    created_at TEXT NOT NULL,
    UNIQUE (user_id, post_id)
);

CREATE TABLE IF NOT EXISTS "dislike" (
    dislike_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    post_id INTEGER NOT NULL REFERENCES post(post_id),
    created_at TEXT NOT NULL,
    UNIQUE (user_id, post_id)
);

CREATE TABLE IF NOT EXISTS comment_like (
    comment_like_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    comment_id INTEGER NOT NULL REFERENCES comment(comment_id),
    created_at TEXT NOT NULL,
    UNIQUE (user_id, comment_id)
);

CREATE TABLE IF NOT EXISTS comment_dislike (
    comment_dislike_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    comment_id INTEGER NOT NULL REFERENCES comment(comment_id),
    created_at TEXT NOT NULL,
    UNIQUE (user_id, comment_id)
);

CREATE TABLE IF NOT EXISTS follow (
    follow_id INTEGER PRIMARY KEY AUTOINCREMENT,
    follower_id INTEGER NOT NULL REFERENCES user(user_id),
    followee_id INTEGER NOT NULL REFERENCES user(user_id),
    created_at TEXT NOT NULL,
    UNIQUE (follower_id, followee_id)
);

CREATE TABLE IF NOT EXISTS mute (
    mute_id INTEGER PRIMARY KEY AUTOINCREMENT,
    muter_id INTEGER NOT NULL REFERENCES user(user_id),
    mutee_id INTEGER NOT NULL REFERENCES user(user_id),
    created_at TEXT NOT NULL,
    UNIQUE (muter_id, mutee_id)
);

-- Recommendation table, replaced wholesale on each rebuild
CREATE TABLE IF NOT EXISTS rec (
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    rank INTEGER NOT NULL,
    post_id INTEGER NOT NULL REFERENCES post(post_id),
    PRIMARY KEY (user_id, rank)
);

-- Behavioral trace, one row per completed action
CREATE TABLE IF NOT EXISTS trace (
    trace_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(user_id),
    created_at TEXT NOT NULL,
    action TEXT NOT NULL,
    post_id INTEGER,  -- NULL for actions not tied to a post
    info TEXT         -- JSON
);
CREATE INDEX IF NOT EXISTS idx_trace_user ON trace(user_id);
CREATE INDEX IF NOT EXISTS idx_trace_post ON trace(post_id) WHERE post_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	// Validate database integrity before migrations
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	// Currently only one version, no migrations needed
	_ = currentVersion
	return nil
}

// ValidateIntegrity runs SQLite integrity checks on the database.
// It runs PRAGMA integrity_check and PRAGMA foreign_key_check.
// Returns an error if any issues are found.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}

// ResetSchema drops all tables and recreates the schema.
// Only use for testing.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	tables := []string{
		"trace",
		"rec",
		"mute",
		"follow",
		"comment_dislike",
		"comment_like",
		`"dislike"`,
		`"like"`,
		"comment",
		"post",
		"user",
		"schema_version",
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return InitSchema(ctx, db)
}
