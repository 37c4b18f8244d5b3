// README: API gateway; builds the gin engine and delegates to module services.
package http

import (
	"net/http"

	"wayfarer/internal/http/handlers"
	"wayfarer/internal/infra"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/session"
)

type ServerDeps struct {
	Sessions *session.Service
	Usage    *aiusage.Service       // optional
	Places   handlers.PlaceSearcher // optional
	Verifier infra.TokenVerifier    // optional; nil trusts the X-User-ID header
}

type Server struct {
	sessions *session.Service
	usage    *aiusage.Service
	places   handlers.PlaceSearcher
	verifier infra.TokenVerifier
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		sessions: deps.Sessions,
		usage:    deps.Usage,
		places:   deps.Places,
		verifier: deps.Verifier,
	}
}

func (s *Server) Routes() http.Handler {
	return NewRouter(s.sessions, s.usage, s.places, s.verifier)
}
