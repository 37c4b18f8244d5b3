// README: Completion quota handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/http/middleware"
	"wayfarer/internal/modules/aiusage"
)

type UsageHandler struct {
	usage *aiusage.Service
}

func NewUsageHandler(usage *aiusage.Service) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// Get handles GET /api/usage for the calling user.
func (h *UsageHandler) Get(c *gin.Context) {
	uid := middleware.CallerUID(c)
	if uid == "" {
		writeError(c, http.StatusUnauthorized, "caller uid is required")
		return
	}
	u, err := h.usage.Usage(c.Request.Context(), uid)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}
