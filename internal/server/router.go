package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/novumlogic/bookmatch/internal/recommend"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

//go:embed welcome.html
var pageFS embed.FS

var welcomeTmpl = template.Must(template.ParseFS(pageFS, "welcome.html"))

// Config holds router configuration.
type Config struct {
	Logger    *logging.Logger
	Env       string
	Recommend *recommend.Handler
	// Usage is mounted at /usage when the usage ledger is enabled.
	Usage *recommend.UsageHandler
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Recoverer(cfg.Logger))

	r.Get("/", welcome(cfg.Env))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Recommend != nil {
		r.Post("/generate-recommendations", cfg.Recommend.GenerateRecommendations)
	}

	if cfg.Usage != nil {
		r.Get("/usage", cfg.Usage.GetUsage)
	}

	return r
}

func welcome(env string) http.HandlerFunc {
	data := struct{ Env string }{Env: env}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		welcomeTmpl.Execute(w, data)
	}
}
