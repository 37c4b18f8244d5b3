// README: Nearby places for a session's current plan destination.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/http/middleware"
	"wayfarer/internal/maps"
	"wayfarer/internal/modules/session"
	"wayfarer/internal/types"
)

// PlaceSearcher is satisfied by *maps.PlaceFinder.
type PlaceSearcher interface {
	Search(ctx context.Context, destination, query string) ([]maps.Place, error)
}

type PlacesHandler struct {
	sessions *session.Service
	places   PlaceSearcher
}

func NewPlacesHandler(sessions *session.Service, places PlaceSearcher) *PlacesHandler {
	return &PlacesHandler{sessions: sessions, places: places}
}

// List handles GET /api/sessions/:id/places?q=...
func (h *PlacesHandler) List(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	if sess.Snapshot.Plan == nil || sess.Snapshot.Plan.Destination == "" {
		writeError(c, http.StatusConflict, "session has no plan yet")
		return
	}

	destination := sess.Snapshot.Plan.Destination
	places, err := h.places.Search(c.Request.Context(), destination, c.Query("q"))
	if errors.Is(err, maps.ErrNoMatch) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusBadGateway, "place search failed")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"destination": destination, "places": places})
}
