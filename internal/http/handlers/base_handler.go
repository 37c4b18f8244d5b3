// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wayfarer/internal/conversation"
	"wayfarer/internal/logger"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/session"
	"wayfarer/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrMissingOwner):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBusy):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, aiusage.ErrInsufficientTokens):
		writeError(c, http.StatusTooManyRequests, err.Error())
	default:
		logger.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
