// README: Test helpers for Postgres/Redis-backed packages (skip when env is unset, apply migrations).
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"wayfarer/internal/infra"
)

// OpenDB connects to WAYFARER_TEST_DSN, applies migrations, and truncates the given tables.
// The test is skipped when the variable is unset.
func OpenDB(t *testing.T, truncate ...string) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("WAYFARER_TEST_DSN")
	if dsn == "" {
		t.Skip("WAYFARER_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	root, err := repoRoot()
	if err != nil {
		t.Fatalf("locate repo root: %v", err)
	}
	if err := infra.ApplyMigrations(ctx, db, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(truncate) > 0 {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(truncate, ", ")+" CASCADE"); err != nil {
			t.Fatalf("truncate %v: %v", truncate, err)
		}
	}
	return db
}

// OpenRedis connects to WAYFARER_TEST_REDIS, skipping the test when it is unset.
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("WAYFARER_TEST_REDIS")
	if addr == "" {
		t.Skip("WAYFARER_TEST_REDIS not set; skipping redis-backed tests")
	}
	rdb, err := infra.NewRedis(context.Background(), addr)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}
