package handlers

import (
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/felo/mail-render/internal/config"
	"github.com/felo/mail-render/internal/db"
	"github.com/felo/mail-render/internal/pipeline"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	db        *db.DB
	cache     *db.RenderCache
	cfg       *config.Config
	processor *pipeline.Processor
	log       zerolog.Logger
	templates *template.Template
}

// New creates a new Handlers instance
func New(database *db.DB, cfg *config.Config, processor *pipeline.Processor, log zerolog.Logger) *Handlers {
	return &Handlers{
		db:        database,
		cfg:       cfg,
		processor: processor,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// WithCache enables the render cache
func (h *Handlers) WithCache(cache *db.RenderCache) *Handlers {
	h.cache = cache
	return h
}

var templateFuncs = template.FuncMap{
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
	"ago": humanize.Time,
}

// LoadTemplates loads HTML templates from the given filesystem
func (h *Handlers) LoadTemplates(assets fs.FS) error {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(assets, "templates/*.html")
	if err != nil {
		return err
	}
	h.templates = tmpl
	return nil
}

// Routes registers every endpoint on a new router
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Index)
	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/render", h.Render)
		r.Post("/render/batch", h.RenderBatch)
		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.UploadMessage)
		r.Delete("/messages/{id}", h.DeleteMessage)
	})

	r.Get("/messages/{id}", h.ViewMessage)
	r.Get("/messages/{id}/text", h.MessageText)
	r.Get("/messages/{id}/attachments/{attachmentID}", h.DownloadAttachment)

	return r
}

// Healthz reports whether the database is reachable
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
