// README: Chat session handlers (create, view, send a message, read or clear the plan).
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/conversation"
	"wayfarer/internal/http/middleware"
	"wayfarer/internal/maps"
	"wayfarer/internal/modules/session"
	"wayfarer/internal/plan"
	"wayfarer/internal/types"
)

type SessionHandler struct {
	sessions *session.Service
}

func NewSessionHandler(sessions *session.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type createSessionReq struct {
	UID string `json:"uid"`
}

type sendMessageReq struct {
	Message string `json:"message"`
}

type sessionResp struct {
	SessionID   types.ID            `json:"session_id"`
	OwnerUID    string              `json:"owner_uid"`
	CreatedAt   time.Time           `json:"created_at"`
	Transcript  []conversation.Turn `json:"transcript"`
	Plan        *plan.TripPlan      `json:"plan"`
	Location    *maps.Location      `json:"location"`
	Suggestions []string            `json:"suggestions"`
}

type messageResp struct {
	Reply       string            `json:"reply"`
	Turn        conversation.Turn `json:"turn"`
	Plan        *plan.TripPlan    `json:"plan"`
	PlanUpdated bool              `json:"plan_updated"`
	Location    *maps.Location    `json:"location"`
	Failed      bool              `json:"failed"`
}

type planResp struct {
	Plan     *plan.TripPlan `json:"plan"`
	Location *maps.Location `json:"location"`
}

func toSessionResp(s *session.Session) sessionResp {
	suggestions := s.Snapshot.Suggestions()
	if suggestions == nil {
		suggestions = []string{}
	}
	return sessionResp{
		SessionID:   s.ID,
		OwnerUID:    s.OwnerUID,
		CreatedAt:   s.CreatedAt,
		Transcript:  s.Snapshot.Transcript,
		Plan:        s.Snapshot.Plan,
		Location:    s.Location,
		Suggestions: suggestions,
	}
}

// Suggestions handles GET /api/suggestions.
func (h *SessionHandler) Suggestions(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"greeting":    conversation.Greeting,
		"suggestions": conversation.Snapshot{}.Suggestions(),
	})
}

// Create handles POST /api/sessions. The body uid is only used when the request is not authenticated.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	uid := middleware.CallerUID(c)
	if uid == "" {
		uid = strings.TrimSpace(req.UID)
	}

	sess, err := h.sessions.Create(c.Request.Context(), uid)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toSessionResp(sess))
}

// Get handles GET /api/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toSessionResp(sess))
}

// Send handles POST /api/sessions/:id/messages.
func (h *SessionHandler) Send(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	reply, err := h.sessions.Send(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c), req.Message)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, messageResp{
		Reply:       reply.Turn.Content,
		Turn:        reply.Turn,
		Plan:        reply.Plan,
		PlanUpdated: reply.PlanUpdated,
		Location:    reply.Location,
		Failed:      reply.Failed,
	})
}

// GetPlan handles GET /api/sessions/:id/plan. plan is null until the assistant proposes one.
func (h *SessionHandler) GetPlan(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, planResp{Plan: sess.Snapshot.Plan, Location: sess.Location})
}

// ClearPlan handles DELETE /api/sessions/:id/plan.
func (h *SessionHandler) ClearPlan(c *gin.Context) {
	if err := h.sessions.ClearPlan(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c)); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
