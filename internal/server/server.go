package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadflow/internal/enrich"
	"github.com/sells-group/leadflow/internal/leadgen"
	"github.com/sells-group/leadflow/internal/store"
)

// Config tunes request handling.
type Config struct {
	DefaultCap  int
	MaxCap      int
	BulkToken   string
	CORSOrigins []string
}

func (c Config) withDefaults() Config {
	if c.DefaultCap <= 0 {
		c.DefaultCap = 20
	}
	if c.MaxCap <= 0 {
		c.MaxCap = 50
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	return c
}

// Server exposes the lead pipeline over HTTP.
type Server struct {
	store    store.Store
	importer *leadgen.Importer
	enricher *enrich.Enricher
	bulk     *enrich.BulkRunner
	cfg      Config
}

func New(st store.Store, importer *leadgen.Importer, enricher *enrich.Enricher, bulk *enrich.BulkRunner, cfg Config) *Server {
	return &Server{
		store:    st,
		importer: importer,
		enricher: enricher,
		bulk:     bulk,
		cfg:      cfg.withDefaults(),
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/leads", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/automation", s.handleAutomation)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/bulk-enrich", s.handleBulkEnrich)
	})
	return r
}
