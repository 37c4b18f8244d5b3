// README: Trip planner turn loop (single flight, bounded completion, plan extraction).
package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wayfarer/internal/ai"
	"wayfarer/internal/conversation"
	"wayfarer/internal/logger"
	"wayfarer/internal/plan"
)

// DefaultCompletionTimeout bounds a single completion call.
const DefaultCompletionTimeout = 30 * time.Second

// FallbackReply is appended as the assistant turn whenever the completion call fails.
const FallbackReply = "I'm having trouble connecting right now. Could you try again?"

// ErrBusy is returned when a submission arrives while a completion is outstanding.
var ErrBusy = errors.New("a reply is still being generated")

// State is the request lifecycle of a TripPlanner.
type State int32

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// Exchange is what one accepted submission produced.
type Exchange struct {
	User        conversation.Turn
	Reply       conversation.Turn
	Plan        *plan.TripPlan // the plan extracted from this reply, nil if none
	PlanUpdated bool
	Failed      bool // the completion call failed and Reply carries FallbackReply
}

// TripPlanner runs the conversation loop for one session: user turn, prompt, completion,
// plan extraction, assistant turn. At most one completion is in flight at a time.
type TripPlanner struct {
	store     *conversation.Store
	completer ai.Completer
	timeout   time.Duration
	state     atomic.Int32
	log       *zap.Logger
}

// Option customizes a TripPlanner.
type Option func(*TripPlanner)

// WithTimeout overrides DefaultCompletionTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(p *TripPlanner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger attaches scoped fields (e.g. session id) to everything the planner logs.
func WithLogger(l *zap.Logger) Option {
	return func(p *TripPlanner) {
		if l != nil {
			p.log = l
		}
	}
}

// NewTripPlanner wires a planner around store. A nil store starts a fresh conversation.
func NewTripPlanner(store *conversation.Store, completer ai.Completer, opts ...Option) *TripPlanner {
	if store == nil {
		store = conversation.NewStore()
	}
	p := &TripPlanner{
		store:     store,
		completer: completer,
		timeout:   DefaultCompletionTimeout,
		log:       logger.Log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the current lifecycle state.
func (p *TripPlanner) State() State {
	return State(p.state.Load())
}

// Snapshot returns a detached view of the transcript and current plan.
func (p *TripPlanner) Snapshot() conversation.Snapshot {
	return p.store.Snapshot()
}

// ClearPlan drops the current plan. This is the only way a plan is removed.
func (p *TripPlanner) ClearPlan() {
	p.store.SetPlan(nil)
}

// Submit processes one user message.
//
// It returns ErrBusy if another submission is in flight and conversation.ErrEmptyInput for
// blank text; in both cases nothing is appended and no completion is dispatched.
// Completion failures are not returned: they become a FallbackReply turn and leave the plan as is.
func (p *TripPlanner) Submit(ctx context.Context, text string) (Exchange, error) {
	return p.SubmitAdmitted(ctx, text, nil)
}

// Admission is consulted once a submission holds the planner and its text is non-blank.
// A non-nil error rejects the submission before anything is appended.
type Admission func(ctx context.Context) error

// SubmitAdmitted is Submit with an admission step run while the submission already holds the
// planner, so a rejected or busy submission never reaches admit. admit's error is returned as is.
func (p *TripPlanner) SubmitAdmitted(ctx context.Context, text string, admit Admission) (Exchange, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingResponse)) {
		return Exchange{}, ErrBusy
	}
	defer p.state.Store(int32(StateIdle))

	if strings.TrimSpace(text) == "" {
		return Exchange{}, conversation.ErrEmptyInput
	}
	if admit != nil {
		if err := admit(ctx); err != nil {
			return Exchange{}, err
		}
	}

	userTurn, err := p.store.AppendUser(text)
	if err != nil {
		return Exchange{}, err
	}

	ex := Exchange{User: userTurn}
	raw, err := p.complete(ctx, userTurn.Content)
	if err != nil {
		p.log.Warn("completion failed; replying with fallback",
			zap.Error(err),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		)
		ex.Reply = p.store.AppendAssistant(FallbackReply)
		ex.Failed = true
		return ex, nil
	}

	display, extracted := plan.Extract(raw)
	ex.Reply = p.store.AppendAssistant(display)
	if extracted != nil {
		p.store.SetPlan(extracted)
		ex.Plan = extracted
		ex.PlanUpdated = true
		p.log.Info("trip plan updated", zap.String("destination", extracted.Destination))
	}
	return ex, nil
}

func (p *TripPlanner) complete(ctx context.Context, userText string) (string, error) {
	if p.completer == nil {
		return "", errors.New("no completion provider configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// A provider that ignores ctx must not hold the session past the timeout.
	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)
	prompt := ai.BuildPrompt(userText)
	go func() {
		raw, err := p.completer.Complete(callCtx, prompt)
		done <- result{raw, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.raw == "" {
			return "", ai.ErrEmptyResponse
		}
		return r.raw, nil
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}
