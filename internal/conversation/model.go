// README: Transcript turns, roles, and the read-only snapshot handed to renderers.
package conversation

import (
	"errors"
	"time"

	"wayfarer/internal/plan"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Greeting seeds every new transcript.
const Greeting = "Hi! I'm your AI travel assistant. I can help you plan amazing trips tailored to your preferences. Tell me about your dream destination, budget, travel dates, or what kind of experience you're looking for!"

// QuickPrompts are offered to the user while the transcript holds only the greeting.
var QuickPrompts = []string{
	"Plan a 7-day trip to Japan for $3000",
	"Romantic getaway in Europe",
	"Adventure trip under $2000",
	"Family vacation with kids",
}

var (
	ErrEmptyInput      = errors.New("message is empty")
	ErrEmptyTranscript = errors.New("transcript must contain at least one turn")
)

// Turn is one message. Seq is its zero-based position in the transcript.
type Turn struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a detached copy of a Store's state.
type Snapshot struct {
	Transcript []Turn         `json:"transcript"`
	Plan       *plan.TripPlan `json:"plan"`
}

// Fresh reports whether nothing beyond the greeting has been said yet.
func (s Snapshot) Fresh() bool {
	return len(s.Transcript) <= 1
}

// Suggestions returns QuickPrompts while the snapshot is fresh, nil afterwards.
func (s Snapshot) Suggestions() []string {
	if !s.Fresh() {
		return nil
	}
	out := make([]string, len(QuickPrompts))
	copy(out, QuickPrompts)
	return out
}
