// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/okian/armory/internal/app"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
)

// DefaultMaxBatch caps the number of characters in one POST.
const DefaultMaxBatch = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CharacterOverview(ctx context.Context, realm, name, region string) (model.CharacterOverview, error)
	Overviews(ctx context.Context, ids []model.CharacterIdentifier, region string) (service.BatchResult, error)
	TeamOverviews(ctx context.Context, team, region string) (service.BatchResult, error)
	InvalidateCharacter(ctx context.Context, realm, name string) error
}

// BatchResult is the body of every multi-character response.
type BatchResult = service.BatchResult

// Server wires HTTP routes for the overview API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	charactersHandler *CharactersHandler

	origins []string
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the origins answered with CORS headers.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMaxBatch caps the number of characters accepted by POST /api/characters/overview.
func WithMaxBatch(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.charactersHandler.maxBatch = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		charactersHandler: NewCharactersHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(router *mux.Router) {
	router.Use(RequestIDMiddleware, CORSMiddleware(s.origins...), MetricsMiddleware, LoggingMiddleware(s.logger))

	router.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet)

	// Specific paths first; {realm} would otherwise swallow "overview".
	characters := router.PathPrefix("/api/characters").Subrouter()
	characters.HandleFunc("/overview", s.charactersHandler.HandleTeamQuery).Methods(http.MethodGet)
	characters.HandleFunc("/overview", s.charactersHandler.HandleBatch).Methods(http.MethodPost)
	characters.HandleFunc("/overview/{team}", s.charactersHandler.HandleTeam).Methods(http.MethodGet)
	characters.HandleFunc("/{realm}/{name}", s.charactersHandler.HandleCharacter).Methods(http.MethodGet)
	characters.HandleFunc("/{realm}/{name}/cache", s.charactersHandler.HandleInvalidate).Methods(http.MethodDelete)
	characters.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.Register(router)
	return router
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service error onto a status code and error body.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := service.ErrorKind(err)
	writeError(w, statusFor(kind), kind, err)
}

func statusFor(kind string) int {
	switch kind {
	case service.KindInvalid:
		return http.StatusBadRequest
	case service.KindNotFound, service.KindUnknownTeam:
		return http.StatusNotFound
	case service.KindTimeout:
		return http.StatusGatewayTimeout
	case service.KindToken, service.KindUpstream, service.KindMalformed, service.KindMerge:
		return http.StatusBadGateway
	case service.KindBackpressure:
		return http.StatusTooManyRequests
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isClientGone(r *http.Request) bool {
	return errors.Is(r.Context().Err(), context.Canceled)
}
