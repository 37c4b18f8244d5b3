// README: Session store backed by PostgreSQL (sessions row + ordered turns, plan/location as JSONB).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wayfarer/internal/conversation"
	"wayfarer/internal/maps"
	"wayfarer/internal/plan"
	"wayfarer/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateSession inserts the session row and its initial turns in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_sessions (id, owner_uid, created_at, updated_at)
		VALUES ($1, $2, $3, $3)`,
		string(sess.ID), sess.OwnerUID, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for _, t := range sess.Snapshot.Transcript {
		if _, err := tx.Exec(ctx, insertTurnSQL, string(sess.ID), t.Seq, string(t.Role), t.Content, t.CreatedAt); err != nil {
			return fmt.Errorf("insert turn %d: %w", t.Seq, err)
		}
	}
	return tx.Commit(ctx)
}

const insertTurnSQL = `
	INSERT INTO chat_turns (session_id, seq, role, content, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (session_id, seq) DO NOTHING`

// AppendTurns stores turns by sequence number, all or nothing. A seq that is already stored means
// the caller's transcript is behind the persisted one: nothing is written and ErrSeqConflict is
// returned.
func (s *Store) AppendTurns(ctx context.Context, id types.ID, turns ...conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range turns {
		batch.Queue(insertTurnSQL, string(id), t.Seq, string(t.Role), t.Content, t.CreatedAt)
	}
	batch.Queue(`UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`, string(id))

	br := tx.SendBatch(ctx, batch)
	conflict := false
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("append turns: %w", err)
		}
		if i < len(turns) && tag.RowsAffected() == 0 {
			conflict = true
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("append turns: %w", err)
	}
	if conflict {
		return ErrSeqConflict
	}
	return tx.Commit(ctx)
}

// SavePlan overwrites the stored plan and location. nil values clear them.
func (s *Store) SavePlan(ctx context.Context, id types.ID, p *plan.TripPlan, loc *maps.Location) error {
	planJSON, err := marshalNullable(p)
	if err != nil {
		return err
	}
	locJSON, err := marshalNullable(loc)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE chat_sessions
		SET plan = $1, location = $2, updated_at = NOW()
		WHERE id = $3`,
		planJSON, locJSON, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Load returns the session with its transcript in seq order.
func (s *Store) Load(ctx context.Context, id types.ID) (*Session, error) {
	var (
		sess     Session
		rawID    string
		planJSON []byte
		locJSON  []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_uid, created_at, plan, location
		FROM chat_sessions
		WHERE id = $1`, string(id),
	).Scan(&rawID, &sess.OwnerUID, &sess.CreatedAt, &planJSON, &locJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.ID = types.ID(rawID)

	if len(planJSON) > 0 {
		var p plan.TripPlan
		if err := json.Unmarshal(planJSON, &p); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		sess.Snapshot.Plan = &p
	}
	if len(locJSON) > 0 {
		var loc maps.Location
		if err := json.Unmarshal(locJSON, &loc); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		sess.Location = &loc
	}

	rows, err := s.db.Query(ctx, `
		SELECT seq, role, content, created_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY seq`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t conversation.Turn
		var role string
		if err := rows.Scan(&t.Seq, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = conversation.Role(role)
		sess.Snapshot.Transcript = append(sess.Snapshot.Transcript, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
