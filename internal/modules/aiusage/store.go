// README: Completion quota store backed by PostgreSQL (one row per user, lazily reset each month).
package aiusage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db      *pgxpool.Pool
	monthly int
	now     func() time.Time
}

// NewStore returns a Store granting monthly completions per user. Non-positive means DefaultTokens.
func NewStore(db *pgxpool.Pool, monthly int) *Store {
	if monthly <= 0 {
		monthly = DefaultTokens
	}
	return &Store{db: db, monthly: monthly, now: time.Now}
}

func (s *Store) month() string {
	return s.now().UTC().Format("2006-01")
}

// UseToken atomically resets a stale month and deducts one completion.
// Returns ErrInsufficientTokens when no row was updated (exhausted, or user absent).
func (s *Store) UseToken(ctx context.Context, uid string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET
			tokens_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_month = $1
		WHERE uid = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)
	`, s.month(), s.monthly, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// EnsureUser creates the user's row with a full allowance. Existing rows are left alone.
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, s.monthly, s.month())
	return err
}

// Get reports the allowance left this month. Unknown users and stale months read as a full allowance.
func (s *Store) Get(ctx context.Context, uid string) (Usage, error) {
	u := Usage{UID: uid, Remaining: s.monthly, Month: s.month()}
	var remaining int
	var month string
	err := s.db.QueryRow(ctx, `
		SELECT tokens_remaining, last_reset_month FROM ai_usage WHERE uid = $1
	`, uid).Scan(&remaining, &month)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return Usage{}, err
	}
	if month == u.Month {
		u.Remaining = remaining
	}
	return u, nil
}
