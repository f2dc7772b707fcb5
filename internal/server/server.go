// Package server exposes the HTTP API: CRUD for profiles, channels,
// servers and schedules, the programming run and score endpoints, stored
// results with CSV export, and the job event stream over SSE and
// websocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"chanplan/internal/auth"
	"chanplan/internal/cache"
	"chanplan/internal/catalog"
	"chanplan/internal/generator"
	"chanplan/internal/jobs"
	"chanplan/internal/log"
	"chanplan/internal/media"
	"chanplan/internal/sink"
	"chanplan/internal/store"
	"chanplan/internal/suggest"
	"chanplan/internal/tmdb"
	"chanplan/internal/version"
)

type Server struct {
	router chi.Router
	store  *store.Store
	jobs   *jobs.Coordinator
	gen    *generator.Generator
	log    zerolog.Logger

	auth       *auth.Service
	corsOrigin string
	loc        *time.Location
	hot        cache.Cache
	version    *version.Checker

	// Collaborator seams. Production wiring uses the real factories;
	// tests substitute fakes.
	factory   catalog.Factory
	newSink   func(endpoint, token string) sink.Sink
	suggester suggest.Suggester
	enricher  catalog.Enricher
	newTMDB   func(apiKey string) tmdbClient
}

// tmdbClient is the slice of the TMDB client the settings test endpoint
// uses.
type tmdbClient interface {
	TestConnection(ctx context.Context) error
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithAuth enables API-key protection on all /api routes.
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithLocation sets the zone used for schedule start times when a channel
// has none of its own.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithCache sets the hot cache handed to TMDB clients.
func WithCache(c cache.Cache) Option {
	return func(s *Server) { s.hot = c }
}

func WithVersionChecker(c *version.Checker) Option {
	return func(s *Server) { s.version = c }
}

// WithServerFactory overrides media client construction.
func WithServerFactory(f catalog.Factory) Option {
	return func(s *Server) { s.factory = f }
}

// WithSinkFactory overrides sink construction for schedule pushes.
func WithSinkFactory(f func(endpoint, token string) sink.Sink) Option {
	return func(s *Server) { s.newSink = f }
}

// WithSuggester overrides the LLM client used for schedule suggestions.
func WithSuggester(sg suggest.Suggester) Option {
	return func(s *Server) { s.suggester = sg }
}

// WithEnricher overrides the metadata enricher used by pool builds.
func WithEnricher(e catalog.Enricher) Option {
	return func(s *Server) { s.enricher = e }
}

func NewServer(st *store.Store, coord *jobs.Coordinator, opts ...Option) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		store:   st,
		jobs:    coord,
		gen:     generator.New(),
		log:     log.WithComponent("server"),
		loc:     time.Local,
		hot:     cache.NewNoop(),
		factory: media.NewContentServer,
		newSink: func(endpoint, token string) sink.Sink { return sink.NewHTTP(endpoint, token) },
	}
	srv.newTMDB = func(apiKey string) tmdbClient { return tmdb.New(apiKey, srv.hot) }
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
