package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/app"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	srv  *http.Server
	app  *app.App
	addr string
}

func NewServer(config Config, app *app.App) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	return &Server{
		addr: addr,
		app:  app,
		srv:  &http.Server{Addr: addr},
	}
}

func (s *Server) Start(_ context.Context) error {
	s.srv.Handler = loggingMiddleware(s.Router())

	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Router exposes the route table so tests can drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/setup", s.setupAdmin)
		r.Get("/me", s.currentProfile)
	})

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", s.listProfiles)
		r.Post("/", s.createProfile)
		r.Get("/{id}", s.getProfile)
		r.Put("/{id}/timezone", s.updateProfileTimezone)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.listEvents)
		r.Post("/", s.createEvent)
		r.Get("/user/{profileID}", s.listEventsForProfile)
		r.Get("/{id}", s.getEvent)
		r.Put("/{id}", s.updateEvent)
		r.Get("/{id}/logs", s.listEventLogs)
	})

	return r
}
