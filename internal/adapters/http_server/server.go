package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
)

// Options controls per-route limits. Zero values fall back to the defaults below.
type Options struct {
	RequestTimeout time.Duration
	ChatTimeout    time.Duration
	FormRatePerMin int
	ChatRatePerMin int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.ChatTimeout <= 0 {
		o.ChatTimeout = 45 * time.Second
	}
	if o.FormRatePerMin <= 0 {
		o.FormRatePerMin = 10
	}
	if o.ChatRatePerMin <= 0 {
		o.ChatRatePerMin = 20
	}
	return o
}

type Server struct {
	mux  *chi.Mux
	opts Options
}

func New(o Options) *Server {
	m := chi.NewRouter()

	// middlewares must be registered before any route
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	m.Use(render.SetContentType(render.ContentTypeJSON))

	return &Server{mux: m, opts: o.withDefaults()}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
