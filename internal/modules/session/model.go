// README: Session records, sentinel errors, and the per-turn result returned to handlers.
package session

import (
	"errors"
	"time"

	"wayfarer/internal/conversation"
	"wayfarer/internal/maps"
	"wayfarer/internal/plan"
	"wayfarer/internal/types"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrForbidden    = errors.New("session belongs to another user")
	ErrMissingOwner = errors.New("caller uid is required")
	ErrSeqConflict  = errors.New("turn sequence already stored")
)

// Session is the persisted and cached view of one conversation.
type Session struct {
	ID        types.ID              `json:"id"`
	OwnerUID  string                `json:"owner_uid"`
	CreatedAt time.Time             `json:"created_at"`
	Snapshot  conversation.Snapshot `json:"snapshot"`
	Location  *maps.Location        `json:"location,omitempty"`
}

// Reply is the outcome of one Send.
type Reply struct {
	Turn        conversation.Turn
	Plan        *plan.TripPlan // current plan after the turn, nil if none
	PlanUpdated bool
	Location    *maps.Location
	Failed      bool
}
