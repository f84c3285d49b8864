package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

var (
	postgresOnce sync.Once
	postgresURL  string
	postgresErr  error

	redisOnce sync.Once
	redisURL  string
	redisErr  error
)

// DatabaseURL returns DATABASE_URL, or starts a throwaway PostgreSQL
// container shared by the whole test binary. The test is skipped when
// neither is available.
func DatabaseURL(t testing.TB) string {
	t.Helper()
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if testing.Short() {
		t.Skip("DATABASE_URL not set and containers disabled in short mode")
	}

	postgresOnce.Do(func() {
		postgresURL, postgresErr = startContainer(testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "quillbase",
				"POSTGRES_PASSWORD": "quillbase",
				"POSTGRES_DB":       "quillbase_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}, "postgres://quillbase:quillbase@%s/quillbase_test?sslmode=disable")
	})
	if postgresErr != nil {
		t.Skipf("postgres unavailable: %v", postgresErr)
	}
	return postgresURL
}

// RedisURL returns REDIS_URL, or starts a throwaway Redis container shared
// by the whole test binary.
func RedisURL(t testing.TB) string {
	t.Helper()
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	if testing.Short() {
		t.Skip("REDIS_URL not set and containers disabled in short mode")
	}

	redisOnce.Do(func() {
		redisURL, redisErr = startContainer(testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		}, "redis://%s/0")
	})
	if redisErr != nil {
		t.Skipf("redis unavailable: %v", redisErr)
	}
	return redisURL
}

// startContainer runs req and formats urlFormat with the host:port of its
// first exposed port. Containers are reaped by testcontainers when the
// process exits.
func startContainer(req testcontainers.ContainerRequest, urlFormat string) (string, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start %s: %w", req.Image, err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return "", fmt.Errorf("container endpoint: %w", err)
	}

	return fmt.Sprintf(urlFormat, endpoint), nil
}

// NewRedis connects to RedisURL and flushes the database.
func NewRedis(t testing.TB) *redis.Client {
	t.Helper()

	opts, err := redis.ParseURL(RedisURL(t))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	if err := FlushRedis(context.Background(), client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates the tables of the named migrations, in
// the order given.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool, names ...string) error {
	for _, name := range names {
		if err := migrations.Reset(ctx, pool, name); err != nil {
			return err
		}
	}
	return nil
}

// ResetAllSchemas resets every migration.
func ResetAllSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	all, err := migrations.All()
	if err != nil {
		return err
	}
	for _, m := range all {
		if err := migrations.Reset(ctx, pool, m.Name); err != nil {
			return err
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, superuser bool) *model.User {
	t.Helper()
	id := UniqueID("user")
	return &model.User{
		ID:          id,
		Email:       id + "@example.com",
		FirstName:   "Test",
		LastName:    "User",
		IsSuperuser: superuser,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            fmt.Sprintf("key-%d", now.UnixNano()),
		UserID:        userID,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:     "qb_test_",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// NewTestBlog creates an unsaved blog with a unique title.
func NewTestBlog(t testing.TB) *model.Blog {
	t.Helper()
	return &model.Blog{Title: UniqueID("blog")}
}

// NewTestPost creates an unsaved blog post.
func NewTestPost(t testing.TB) *model.BlogPost {
	t.Helper()
	return &model.BlogPost{
		Title:   UniqueID("post"),
		Content: "Lorem ipsum",
		Tags:    []string{"go", "test"},
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
