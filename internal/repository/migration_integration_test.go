//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillbase/quillbase/internal/testutil"
	"github.com/quillbase/quillbase/migrations"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tables := []string{
		"users",
		"api_keys",
		"blogs",
		"blog_posts",
		"contacts",
		"contact_messages",
		"contact_pins",
		"pages",
		"videos",
		"schema_migrations",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_BlogPostsTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"owner_id",
		"blog_id",
		"title",
		"content",
		"tags",
		"created_at",
		"updated_at",
		"deleted_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "blog_posts", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in blog_posts table", col)
			}
		})
	}
}

func TestIntegrationMigration_Constraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)
	if err := testutil.ResetSchema(ctx, pool, "blogs", "videos"); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	// Posts must reference an existing blog
	_, err := pool.Exec(ctx, `
		INSERT INTO blog_posts (id, blog_id, title, created_at, updated_at)
		VALUES ('p1', 'missing', 'Title', NOW(), NOW())
	`)
	if err == nil {
		t.Error("Expected foreign key violation for unknown blog_id")
	}

	// Blog titles are limited to 50 characters
	_, err = pool.Exec(ctx, `
		INSERT INTO blogs (id, title, created_at, updated_at)
		VALUES ('b1', repeat('x', 51), NOW(), NOW())
	`)
	if err == nil {
		t.Error("Expected length violation for blog title > 50 chars")
	}

	// Likes never go negative
	_, err = pool.Exec(ctx, `
		INSERT INTO videos (id, title, url, likes, created_at, updated_at)
		VALUES ('v1', 'Video', 'https://example.com', -1, NOW(), NOW())
	`)
	if err == nil {
		t.Error("Expected check constraint violation for negative likes")
	}
}

func TestIntegrationMigration_RollbackPages(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	all, err := migrations.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	var pages migrations.Migration
	for _, m := range all {
		if m.Name == "pages" {
			pages = m
		}
	}

	if _, err := pool.Exec(ctx, pages.Down); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}

	exists, err := tableExists(ctx, pool, "pages")
	if err != nil {
		t.Fatalf("tableExists failed: %v", err)
	}
	if exists {
		t.Error("pages table should not exist after rollback")
	}

	if _, err := pool.Exec(ctx, pages.Up); err != nil {
		t.Fatalf("reapply up migration: %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	// Already applied by newMigrationTestEnv
	applied, err := migrations.Up(ctx, pool)
	if err != nil {
		t.Fatalf("second Up should not fail: %v", err)
	}
	if applied != 0 {
		t.Errorf("second Up applied %d migrations, want 0", applied)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables 
			WHERE table_schema = 'public' 
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns 
			WHERE table_schema = 'public' 
			AND table_name = $1 
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.DatabaseURL(t)

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if _, err := migrations.Up(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return ctx, pool
}
