// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/http/handlers"
	"wayfarer/internal/http/middleware"
	"wayfarer/internal/infra"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/session"
)

func NewRouter(
	sessionService *session.Service,
	usageService *aiusage.Service,
	placeSearcher handlers.PlaceSearcher,
	verifier infra.TokenVerifier,
) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(verifier))

	sessionHandler := handlers.NewSessionHandler(sessionService)
	api.GET("/suggestions", sessionHandler.Suggestions)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.POST("/sessions/:id/messages", sessionHandler.Send)
	api.GET("/sessions/:id/plan", sessionHandler.GetPlan)
	api.DELETE("/sessions/:id/plan", sessionHandler.ClearPlan)

	if usageService != nil {
		usageHandler := handlers.NewUsageHandler(usageService)
		api.GET("/usage", usageHandler.Get)
	}

	if placeSearcher != nil {
		placesHandler := handlers.NewPlacesHandler(sessionService, placeSearcher)
		api.GET("/sessions/:id/places", placesHandler.List)
	}

	return r
}
