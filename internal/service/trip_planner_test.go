// README: Trip planner turn-loop tests (plan replace/preserve, fallback, single flight).
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wayfarer/internal/ai"
	"wayfarer/internal/conversation"
	"wayfarer/internal/plan"
)

const (
	parisReply = "Paris it is!\nTRAVEL_PLAN_JSON:\n" +
		`{"destination":"Paris, France","duration":"5 days","budget":"$2,000","highlights":["Louvre"],"tips":["Buy a Navigo pass"],"accommodation":"Le Marais"}`
	romeReply = "Switching to Rome.\nTRAVEL_PLAN_JSON:\n" +
		`{"destination":"Rome, Italy","duration":"3 days","budget":"$1,200"}`
	brokenReply = "Here is a plan.\nTRAVEL_PLAN_JSON:\n{destination: Tokyo}"
)

// scriptedCompleter returns canned replies in order and records every prompt it receives.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "ok", nil
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func mustSubmit(t *testing.T, p *TripPlanner, text string) Exchange {
	t.Helper()
	ex, err := p.Submit(context.Background(), text)
	if err != nil {
		t.Fatalf("submit %q: %v", text, err)
	}
	return ex
}

func TestSubmitAppendsUserAndAssistantTurns(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"Where would you like to go?"}}
	p := NewTripPlanner(nil, c)

	ex := mustSubmit(t, p, "  I want a vacation  ")
	if ex.User.Content != "I want a vacation" || ex.User.Role != conversation.RoleUser {
		t.Fatalf("user turn = %+v", ex.User)
	}
	if ex.Reply.Content != "Where would you like to go?" || ex.Reply.Role != conversation.RoleAssistant {
		t.Fatalf("reply turn = %+v", ex.Reply)
	}
	if ex.PlanUpdated || ex.Plan != nil || ex.Failed {
		t.Fatalf("unexpected exchange flags: %+v", ex)
	}

	snap := p.Snapshot()
	if len(snap.Transcript) != 3 {
		t.Fatalf("transcript len = %d, want 3", len(snap.Transcript))
	}
	if !strings.Contains(c.prompts[0], `"I want a vacation"`) {
		t.Errorf("prompt should embed trimmed user text:\n%s", c.prompts[0])
	}
	if p.State() != StateIdle {
		t.Errorf("state = %s after submit", p.State())
	}
}

func TestSubmitExtractsPlan(t *testing.T) {
	p := NewTripPlanner(nil, &scriptedCompleter{replies: []string{parisReply}})

	ex := mustSubmit(t, p, "Paris for 5 days, $2000, art and food")
	if !ex.PlanUpdated || ex.Plan == nil || ex.Plan.Destination != "Paris, France" {
		t.Fatalf("exchange = %+v", ex)
	}
	if ex.Reply.Content != "Paris it is!" {
		t.Errorf("reply should drop the plan block, got %q", ex.Reply.Content)
	}
	if got := p.Snapshot().Plan; got == nil || got.Destination != "Paris, France" {
		t.Fatalf("store plan = %+v", got)
	}
}

func TestSecondPlanReplacesFirst(t *testing.T) {
	p := NewTripPlanner(nil, &scriptedCompleter{replies: []string{parisReply, romeReply}})
	mustSubmit(t, p, "Paris please")
	mustSubmit(t, p, "Actually, Rome")

	want := &plan.TripPlan{Destination: "Rome, Italy", Duration: "3 days", Budget: "$1,200"}
	if got := p.Snapshot().Plan; !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %+v\nwant %+v (nothing inherited from Paris)", got, want)
	}
}

func TestMalformedPlanKeepsPreviousPlan(t *testing.T) {
	p := NewTripPlanner(nil, &scriptedCompleter{replies: []string{parisReply, brokenReply}})
	mustSubmit(t, p, "Paris please")
	before := p.Snapshot().Plan

	ex := mustSubmit(t, p, "Now Tokyo")
	if ex.PlanUpdated || ex.Plan != nil {
		t.Fatalf("malformed plan should not update: %+v", ex)
	}
	if ex.Reply.Content != brokenReply {
		t.Errorf("reply should be raw text on parse failure, got %q", ex.Reply.Content)
	}
	if got := p.Snapshot().Plan; !reflect.DeepEqual(got, before) {
		t.Fatalf("plan changed to %+v", got)
	}
}

func TestNoMarkerKeepsPreviousPlan(t *testing.T) {
	p := NewTripPlanner(nil, &scriptedCompleter{replies: []string{parisReply, "Any dietary needs?"}})
	mustSubmit(t, p, "Paris please")
	mustSubmit(t, p, "What about food?")
	if got := p.Snapshot().Plan; got == nil || got.Destination != "Paris, France" {
		t.Fatalf("plan = %+v", got)
	}
}

func TestBlankSubmissionIsRejectedSilently(t *testing.T) {
	c := &scriptedCompleter{}
	p := NewTripPlanner(nil, c)
	before := p.Snapshot()

	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := p.Submit(context.Background(), in); !errors.Is(err, conversation.ErrEmptyInput) {
			t.Fatalf("Submit(%q) err = %v, want ErrEmptyInput", in, err)
		}
	}
	if !reflect.DeepEqual(p.Snapshot(), before) {
		t.Fatal("blank submission changed state")
	}
	if c.calls() != 0 {
		t.Fatalf("blank submission dispatched %d completions", c.calls())
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s, want idle", p.State())
	}
}

func TestCompletionFailureAppendsFallback(t *testing.T) {
	c := &scriptedCompleter{
		replies: []string{parisReply},
		errs:    []error{nil, errors.New("dial tcp: connection refused")},
	}
	p := NewTripPlanner(nil, c)
	mustSubmit(t, p, "Paris please")
	planBefore := p.Snapshot().Plan
	lenBefore := len(p.Snapshot().Transcript)

	ex := mustSubmit(t, p, "Add a day trip")
	if !ex.Failed || ex.Reply.Content != FallbackReply || ex.Reply.Role != conversation.RoleAssistant {
		t.Fatalf("exchange = %+v", ex)
	}
	snap := p.Snapshot()
	if len(snap.Transcript) != lenBefore+2 {
		t.Fatalf("expected user + one fallback turn, got %d new turns", len(snap.Transcript)-lenBefore)
	}
	if !reflect.DeepEqual(snap.Plan, planBefore) {
		t.Fatal("failure changed the plan")
	}

	// conversation keeps working afterwards
	ex = mustSubmit(t, p, "Try again")
	if ex.Failed {
		t.Fatal("next submission should succeed")
	}
}

func TestEmptyResponseIsFallback(t *testing.T) {
	c := ai.CompleterFunc(func(context.Context, string) (string, error) { return "", nil })
	ex := mustSubmit(t, NewTripPlanner(nil, c), "hello")
	if !ex.Failed || ex.Reply.Content != FallbackReply {
		t.Fatalf("exchange = %+v", ex)
	}
}

func TestNilCompleterIsFallback(t *testing.T) {
	ex := mustSubmit(t, NewTripPlanner(nil, nil), "hello")
	if !ex.Failed || ex.Reply.Content != FallbackReply {
		t.Fatalf("exchange = %+v", ex)
	}
}

func TestTimeoutIsFallback(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	// ignores ctx on purpose
	c := ai.CompleterFunc(func(context.Context, string) (string, error) {
		<-release
		return parisReply, nil
	})
	p := NewTripPlanner(nil, c, WithTimeout(20*time.Millisecond))

	start := time.Now()
	ex := mustSubmit(t, p, "hello")
	if !ex.Failed || ex.Reply.Content != FallbackReply {
		t.Fatalf("exchange = %+v", ex)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
	if p.Snapshot().Plan != nil {
		t.Fatal("timed-out reply must not set a plan")
	}
}

func TestSubmitIsSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := ai.CompleterFunc(func(ctx context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "first reply", nil
	})
	p := NewTripPlanner(nil, c)

	firstDone := make(chan Exchange, 1)
	go func() {
		ex, err := p.Submit(context.Background(), "first")
		if err != nil {
			t.Errorf("first submit: %v", err)
		}
		firstDone <- ex
	}()

	<-started
	if p.State() != StateAwaitingResponse {
		t.Fatalf("state = %s while awaiting", p.State())
	}
	lenDuring := len(p.Snapshot().Transcript)
	if _, err := p.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit err = %v, want ErrBusy", err)
	}
	if len(p.Snapshot().Transcript) != lenDuring {
		t.Fatal("rejected submission changed the transcript")
	}

	close(release)
	ex := <-firstDone
	if ex.Reply.Content != "first reply" {
		t.Fatalf("first reply = %q", ex.Reply.Content)
	}
	if calls.Load() != 1 {
		t.Fatalf("completions dispatched = %d, want 1", calls.Load())
	}

	if _, err := p.Submit(context.Background(), "third"); err != nil {
		t.Fatalf("submit after completion: %v", err)
	}
}

func TestClearPlan(t *testing.T) {
	p := NewTripPlanner(nil, &scriptedCompleter{replies: []string{parisReply}})
	mustSubmit(t, p, "Paris")
	p.ClearPlan()
	if p.Snapshot().Plan != nil {
		t.Fatal("plan not cleared")
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateAwaitingResponse.String() != "awaiting_response" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}

func TestAdmissionRejectionLeavesNoTrace(t *testing.T) {
	c := &scriptedCompleter{}
	p := NewTripPlanner(nil, c)
	before := p.Snapshot()
	errDenied := errors.New("out of tokens")

	_, err := p.SubmitAdmitted(context.Background(), "Paris", func(context.Context) error { return errDenied })
	if !errors.Is(err, errDenied) {
		t.Fatalf("err = %v, want admission error", err)
	}
	if !reflect.DeepEqual(p.Snapshot(), before) || c.calls() != 0 {
		t.Fatal("rejected admission changed state or dispatched a completion")
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s, want idle", p.State())
	}
}

func TestAdmissionSkippedForBlankAndBusy(t *testing.T) {
	var admitted atomic.Int32
	admit := func(context.Context) error {
		admitted.Add(1)
		return nil
	}

	started := make(chan struct{})
	release := make(chan struct{})
	c := ai.CompleterFunc(func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-release
		return "done", nil
	})
	p := NewTripPlanner(nil, c)

	if _, err := p.SubmitAdmitted(context.Background(), "  ", admit); !errors.Is(err, conversation.ErrEmptyInput) {
		t.Fatalf("blank err = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.SubmitAdmitted(context.Background(), "first", admit)
		done <- err
	}()
	<-started
	if _, err := p.SubmitAdmitted(context.Background(), "second", admit); !errors.Is(err, ErrBusy) {
		t.Fatalf("second err = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first: %v", err)
	}
	if got := admitted.Load(); got != 1 {
		t.Fatalf("admission ran %d times, want 1 (accepted submission only)", got)
	}
}
