// README: Session registry: one TripPlanner per session, with optional persistence, locking, quota, and geocoding.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wayfarer/internal/ai"
	"wayfarer/internal/conversation"
	"wayfarer/internal/logger"
	"wayfarer/internal/maps"
	"wayfarer/internal/plan"
	"wayfarer/internal/service"
	"wayfarer/internal/types"
)

// Repository persists sessions. *Store implements it.
type Repository interface {
	CreateSession(ctx context.Context, sess *Session) error
	AppendTurns(ctx context.Context, id types.ID, turns ...conversation.Turn) error
	SavePlan(ctx context.Context, id types.ID, p *plan.TripPlan, loc *maps.Location) error
	Load(ctx context.Context, id types.ID) (*Session, error)
}

// SnapshotCache is the lock + snapshot half of *Cache.
type SnapshotCache interface {
	Acquire(ctx context.Context, id types.ID) (string, bool, error)
	Release(ctx context.Context, id types.ID, token string) error
	Put(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id types.ID) (*Session, error)
}

// Quota charges one completion to a user.
type Quota interface {
	UseToken(ctx context.Context, uid string) error
}

// Locator resolves a plan destination to coordinates.
type Locator interface {
	Locate(ctx context.Context, destination string) (*maps.Location, error)
}

// Deps are the optional collaborators of a Service. Nil fields switch the concern off.
type Deps struct {
	Repo    Repository
	Cache   SnapshotCache
	Quota   Quota
	Locator Locator
	Timeout time.Duration
}

type entry struct {
	id        types.ID
	owner     string
	createdAt time.Time
	store     *conversation.Store
	planner   *service.TripPlanner

	mu       sync.Mutex
	location *maps.Location
}

func (e *entry) setLocation(loc *maps.Location) {
	e.mu.Lock()
	e.location = loc
	e.mu.Unlock()
}

func (e *entry) getLocation() *maps.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.location == nil {
		return nil
	}
	loc := *e.location
	return &loc
}

func (e *entry) view() *Session {
	return &Session{
		ID:        e.id,
		OwnerUID:  e.owner,
		CreatedAt: e.createdAt,
		Snapshot:  e.planner.Snapshot(),
		Location:  e.getLocation(),
	}
}

type Service struct {
	completer ai.Completer
	deps      Deps
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[types.ID]*entry
}

func NewService(completer ai.Completer, deps Deps) *Service {
	return &Service{
		completer: completer,
		deps:      deps,
		log:       logger.Log.Named("session"),
		sessions:  make(map[types.ID]*entry),
	}
}

// Create starts a new conversation owned by ownerUID.
func (s *Service) Create(ctx context.Context, ownerUID string) (*Session, error) {
	ownerUID = strings.TrimSpace(ownerUID)
	if ownerUID == "" {
		return nil, ErrMissingOwner
	}
	e := s.newEntry(types.NewID(), ownerUID, time.Now().UTC(), conversation.NewStore(), nil)
	sess := e.view()

	if s.deps.Repo != nil {
		if err := s.deps.Repo.CreateSession(ctx, sess); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.sessions[e.id] = e
	s.mu.Unlock()

	s.cache(ctx, sess)
	s.log.Info("session created", zap.String("session_id", string(e.id)), zap.String("owner", ownerUID))
	return sess, nil
}

// Get returns the current view of a session owned by callerUID.
func (s *Service) Get(ctx context.Context, id types.ID, callerUID string) (*Session, error) {
	e, err := s.authorize(ctx, id, callerUID)
	if err != nil {
		return nil, err
	}
	return e.view(), nil
}

// Send submits one user message.
//
// It returns service.ErrBusy while another submission for the session is outstanding (on this
// instance or, with a cache, on any instance), conversation.ErrEmptyInput for blank text, and the
// quota's error when the owner is out of completions. Quota is only charged for a submission that
// holds the planner. Persistence, geocoding, and cache failures are logged only.
func (s *Service) Send(ctx context.Context, id types.ID, callerUID, text string) (*Reply, error) {
	e, err := s.authorize(ctx, id, callerUID)
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("session_id", string(id)))

	locked := false
	if s.deps.Cache != nil {
		token, ok, err := s.deps.Cache.Acquire(ctx, id)
		switch {
		case err != nil:
			log.Warn("session lock unavailable; relying on in-process single flight", zap.Error(err))
		case !ok:
			return nil, service.ErrBusy
		default:
			locked = true
			defer func() {
				if err := s.deps.Cache.Release(context.WithoutCancel(ctx), id, token); err != nil {
					log.Warn("release session lock", zap.Error(err))
				}
			}()
		}
	}

	// Runs inside the planner's single-flight section, before the user turn is appended.
	admit := func(ctx context.Context) error {
		if locked {
			s.refresh(ctx, log, e)
		}
		if s.deps.Quota != nil {
			return s.deps.Quota.UseToken(ctx, e.owner)
		}
		return nil
	}
	ex, err := e.planner.SubmitAdmitted(ctx, text, admit)
	if err != nil {
		return nil, err
	}

	// The turn has happened; record it even if the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if s.deps.Repo != nil {
		ex = s.persistTurns(persistCtx, log, e, ex)
	}
	if ex.PlanUpdated {
		loc := s.locate(persistCtx, log, e, ex.Plan.Destination)
		e.setLocation(loc)
		if s.deps.Repo != nil {
			if err := s.deps.Repo.SavePlan(persistCtx, id, ex.Plan, loc); err != nil {
				log.Error("persist plan", zap.Error(err))
			}
		}
	}

	sess := e.view()
	s.cache(persistCtx, sess)
	return &Reply{
		Turn:        ex.Reply,
		Plan:        sess.Snapshot.Plan,
		PlanUpdated: ex.PlanUpdated,
		Location:    sess.Location,
		Failed:      ex.Failed,
	}, nil
}

// refresh adopts history another instance stored while this one held the session in memory.
func (s *Service) refresh(ctx context.Context, log *zap.Logger, e *entry) {
	stored, err := s.load(ctx, e.id)
	if err != nil {
		log.Warn("refresh session", zap.Error(err))
		return
	}
	if len(stored.Snapshot.Transcript) <= e.store.Len() {
		return
	}
	if err := e.store.Reset(stored.Snapshot.Transcript, stored.Snapshot.Plan); err != nil {
		log.Warn("refresh session", zap.Error(err))
		return
	}
	e.setLocation(stored.Location)
	log.Info("adopted newer stored history", zap.Int("turns", len(stored.Snapshot.Transcript)))
}

// persistTurns stores the exchange. When the stored transcript has moved past ours, the exchange
// is rebased onto it and stored under the next free seqs instead of being dropped.
func (s *Service) persistTurns(ctx context.Context, log *zap.Logger, e *entry, ex service.Exchange) service.Exchange {
	err := s.deps.Repo.AppendTurns(ctx, e.id, ex.User, ex.Reply)
	if err == nil {
		return ex
	}
	if !errors.Is(err, ErrSeqConflict) {
		log.Error("persist turns", zap.Error(err))
		return ex
	}

	stored, err := s.deps.Repo.Load(ctx, e.id)
	if err != nil {
		log.Error("reload diverged session", zap.Error(err))
		return ex
	}
	p := stored.Snapshot.Plan
	if ex.PlanUpdated {
		p = ex.Plan
	} else {
		e.setLocation(stored.Location)
	}
	if err := e.store.Reset(stored.Snapshot.Transcript, p); err != nil {
		log.Error("reload diverged session", zap.Error(err))
		return ex
	}
	if ex.User, err = e.store.AppendUser(ex.User.Content); err != nil {
		log.Error("rebase user turn", zap.Error(err))
		return ex
	}
	ex.Reply = e.store.AppendAssistant(ex.Reply.Content)
	log.Warn("transcript was behind stored history; rebased turn", zap.Int("seq", ex.User.Seq))

	if err := s.deps.Repo.AppendTurns(ctx, e.id, ex.User, ex.Reply); err != nil {
		log.Error("persist rebased turns", zap.Error(err))
	}
	return ex
}

// ClearPlan removes the session's plan and location.
func (s *Service) ClearPlan(ctx context.Context, id types.ID, callerUID string) error {
	e, err := s.authorize(ctx, id, callerUID)
	if err != nil {
		return err
	}
	e.planner.ClearPlan()
	e.setLocation(nil)
	if s.deps.Repo != nil {
		if err := s.deps.Repo.SavePlan(ctx, id, nil, nil); err != nil {
			s.log.Error("clear persisted plan", zap.String("session_id", string(id)), zap.Error(err))
		}
	}
	s.cache(ctx, e.view())
	return nil
}

func (s *Service) authorize(ctx context.Context, id types.ID, callerUID string) (*entry, error) {
	if !types.IsValidID(string(id)) {
		return nil, ErrNotFound
	}
	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(callerUID) != e.owner {
		return nil, ErrForbidden
	}
	return e, nil
}

// lookup finds a session in memory, then the cache, then the repository.
func (s *Service) lookup(ctx context.Context, id types.ID) (*entry, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	store, err := conversation.Restore(sess.Snapshot.Transcript, sess.Snapshot.Plan)
	if err != nil {
		return nil, err
	}
	fresh := s.newEntry(sess.ID, sess.OwnerUID, sess.CreatedAt, store, sess.Location)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e, nil
	}
	s.sessions[id] = fresh
	return fresh, nil
}

func (s *Service) load(ctx context.Context, id types.ID) (*Session, error) {
	if s.deps.Cache != nil {
		sess, err := s.deps.Cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("read cached session", zap.String("session_id", string(id)), zap.Error(err))
		}
		if sess != nil && len(sess.Snapshot.Transcript) > 0 {
			return sess, nil
		}
	}
	if s.deps.Repo != nil {
		return s.deps.Repo.Load(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *Service) newEntry(id types.ID, owner string, createdAt time.Time, store *conversation.Store, loc *maps.Location) *entry {
	planner := service.NewTripPlanner(store, s.completer,
		service.WithTimeout(s.deps.Timeout),
		service.WithLogger(logger.Log.With(zap.String("session_id", string(id)))),
	)
	return &entry{id: id, owner: owner, createdAt: createdAt, store: store, planner: planner, location: loc}
}

// locate reuses the previous location when the destination did not change.
func (s *Service) locate(ctx context.Context, log *zap.Logger, e *entry, destination string) *maps.Location {
	if s.deps.Locator == nil || strings.TrimSpace(destination) == "" {
		return nil
	}
	if prev := e.getLocation(); prev != nil && prev.Query == strings.TrimSpace(destination) {
		return prev
	}
	loc, err := s.deps.Locator.Locate(ctx, destination)
	if err != nil {
		log.Warn("geocode destination", zap.String("destination", destination), zap.Error(err))
		return nil
	}
	return loc
}

func (s *Service) cache(ctx context.Context, sess *Session) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Put(ctx, sess); err != nil {
		s.log.Warn("cache session", zap.String("session_id", string(sess.ID)), zap.Error(err))
	}
}
