// README: Completion quota tests (lazy monthly reset, exhaustion, first use).
package aiusage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"wayfarer/internal/testutil"
)

func setupTestService(t *testing.T, monthly int) (*Service, *pgxpool.Pool) {
	t.Helper()
	db := testutil.OpenDB(t, "ai_usage")
	return NewService(NewStore(db, monthly)), db
}

func remaining(t *testing.T, db *pgxpool.Pool, uid string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(context.Background(), "SELECT tokens_remaining FROM ai_usage WHERE uid = $1", uid).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	return n
}

func TestUseTokenCrossMonthReset(t *testing.T) {
	svc, db := setupTestService(t, 0)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "INSERT INTO ai_usage VALUES ('user_reset', 0, '2000-01')"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.UseToken(ctx, "user_reset"); err != nil {
		t.Fatalf("UseToken after cross-month reset: %v", err)
	}
	if got := remaining(t, db, "user_reset"); got != DefaultTokens-1 {
		t.Fatalf("remaining = %d, want %d", got, DefaultTokens-1)
	}
}

func TestUseTokenExhausted(t *testing.T) {
	svc, db := setupTestService(t, 0)
	ctx := context.Background()

	month := time.Now().UTC().Format("2006-01")
	if _, err := db.Exec(ctx, "INSERT INTO ai_usage VALUES ('user_zero', 0, $1)", month); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.UseToken(ctx, "user_zero"); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
}

func TestUseTokenConfiguredAllowance(t *testing.T) {
	svc, db := setupTestService(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.UseToken(ctx, "user_new"); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	if got := remaining(t, db, "user_new"); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
	if err := svc.UseToken(ctx, "user_new"); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("third use err = %v", err)
	}

	u, err := svc.Usage(ctx, "user_new")
	if err != nil || u.Remaining != 0 {
		t.Fatalf("usage = %+v, %v", u, err)
	}
	u, err = svc.Usage(ctx, "nobody")
	if err != nil || u.Remaining != 2 {
		t.Fatalf("unknown usage = %+v, %v", u, err)
	}
}
