// Package server provides the HTTP inspection server for managed streams.
// It implements a RESTful API for creating streams, appending elements,
// querying statistics, requesting closure, and tapping live element flow
// over server-sent events. The package supports CORS handling and middleware
// integration for logging and error handling.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/sluiceio/sluice/internal/common/httpx"
	"github.com/sluiceio/sluice/internal/common/logtrace"
	"github.com/sluiceio/sluice/internal/common/middleware"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/pkg/api"
)

// SluiceServer provides the main HTTP server for stream inspection.
// Manages routing, middleware, and endpoint handling for stream operations.
type SluiceServer struct {
	Router *chi.Mux // HTTP router for request handling
}

// CreateNewServer creates a new SluiceServer instance.
// Returns the server instance and any error encountered during creation.
func CreateNewServer() (*SluiceServer, error) {
	s := &SluiceServer{}
	s.Router = chi.NewRouter()
	return s, nil
}

// MountHandlers sets up all HTTP routes and middleware for the server.
// Configures logging, panic handling, CORS, and resource endpoints.
func (s *SluiceServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in sluice router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// mountResourceHandlers registers all resource endpoints on the router.
// Sets up stream management routes and system endpoints.
func (s *SluiceServer) mountResourceHandlers(r chi.Router) {
	r.Route("/streams", func(r chi.Router) {
		Router(r)
	})
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

// getVersion handles version information requests.
// Returns server and API version information in JSON format.
func (s *SluiceServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &api.VersionResponse{
		ServerVersion: "Sluice Inspection Server: " + Version,
		APIVersion:    APIVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// getReadiness handles health check requests.
// Returns readiness status for load balancer and monitoring systems.
func (s *SluiceServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	rsp := &api.ReadyResponse{
		Status:  "ready",
		Streams: ActiveStreamManager().Count(),
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// HandleCORS provides CORS middleware for cross-origin requests.
// Configures allowed origins, methods, headers, and credentials handling.
func (s *SluiceServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, //TODO: Change this to specific origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Link", "Location", "X-Sluice-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
