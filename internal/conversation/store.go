// README: Append-only transcript plus the current trip plan, behind one mutex.
package conversation

import (
	"strings"
	"sync"
	"time"

	"wayfarer/internal/plan"
)

// Store owns a session's transcript and its current plan.
// All methods are safe for concurrent use; appends are serialized so Seq order is stable.
type Store struct {
	mu         sync.Mutex
	transcript []Turn
	plan       *plan.TripPlan
	now        func() time.Time
}

// NewStore returns a store seeded with the assistant greeting.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.transcript = []Turn{{Seq: 0, Role: RoleAssistant, Content: Greeting, CreatedAt: s.now()}}
	return s
}

// Restore rebuilds a store from persisted turns and plan. Turns are renumbered by position.
func Restore(turns []Turn, p *plan.TripPlan) (*Store, error) {
	if len(turns) == 0 {
		return nil, ErrEmptyTranscript
	}
	s := &Store{now: time.Now, plan: p.Clone()}
	s.transcript = make([]Turn, len(turns))
	for i, t := range turns {
		t.Seq = i
		s.transcript[i] = t
	}
	return s, nil
}

// Reset replaces the transcript and plan with persisted state that has moved on elsewhere.
// Turns are renumbered by position. Returns ErrEmptyTranscript for no turns.
func (s *Store) Reset(turns []Turn, p *plan.TripPlan) error {
	if len(turns) == 0 {
		return ErrEmptyTranscript
	}
	fresh := make([]Turn, len(turns))
	for i, t := range turns {
		t.Seq = i
		fresh[i] = t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = fresh
	s.plan = p.Clone()
	return nil
}

// AppendUser trims text and appends it as a user turn.
// Returns ErrEmptyInput, without touching the transcript, when nothing is left after trimming.
func (s *Store) AppendUser(text string) (Turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Turn{}, ErrEmptyInput
	}
	return s.append(RoleUser, trimmed), nil
}

// AppendAssistant appends text verbatim as an assistant turn.
func (s *Store) AppendAssistant(text string) Turn {
	return s.append(RoleAssistant, text)
}

func (s *Store) append(role Role, content string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Turn{Seq: len(s.transcript), Role: role, Content: content, CreatedAt: s.now()}
	s.transcript = append(s.transcript, t)
	return t
}

// SetPlan replaces the current plan wholesale. nil clears it.
func (s *Store) SetPlan(p *plan.TripPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = p.Clone()
}

// Plan returns a copy of the current plan, or nil.
func (s *Store) Plan() *plan.TripPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan.Clone()
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Snapshot returns a deep copy of the transcript and plan; mutating it does not affect the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]Turn, len(s.transcript))
	copy(turns, s.transcript)
	return Snapshot{Transcript: turns, Plan: s.plan.Clone()}
}
