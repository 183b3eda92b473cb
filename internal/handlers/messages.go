package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/felo/mail-render/internal/db"
	"github.com/felo/mail-render/internal/parser"
	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/internal/sanitize"
)

// previewCSP confines a rendered message; images are limited to data: URIs
// unless external images were requested
func previewCSP(opts sanitize.Options) string {
	img := "img-src data:"
	if opts.LoadExternalImages {
		img = "img-src data: https: http:"
	}
	return "default-src 'none'; " + img + "; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'; frame-ancestors 'self'"
}

type uploadResponse struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

type messageSummary struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Snippet   string `json:"snippet"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UploadMessage stores a raw RFC 5322 message sent as the request body
func (h *Handlers) UploadMessage(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if limit, err := h.cfg.MaxUploadBytes(); err == nil && limit > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(limit))
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	parsed, err := parser.ParseEML(bytes.NewReader(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message: "+err.Error())
		return
	}

	m := &db.Message{
		Subject: parsed.Subject,
		Sender:  parsed.Sender,
		Snippet: parsed.Snippet,
		Raw:     raw,
	}
	id, err := h.db.InsertMessage(m)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.log.Info().Str("message_id", id).Int("bytes", len(raw)).Msg("message uploaded")
	writeJSON(w, http.StatusCreated, uploadResponse{ID: id, Subject: parsed.Subject, Snippet: parsed.Snippet})
}

// ListMessages returns uploaded messages, newest first
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.db.ListMessages(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	out := make([]messageSummary, 0, len(msgs))
	for _, m := range msgs {
		s := messageSummary{ID: m.ID, Subject: m.Subject, Sender: m.Sender, Snippet: m.Snippet, Size: m.Size}
		if m.CreatedAt.Valid {
			s.CreatedAt = m.CreatedAt.Time.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// DeleteMessage removes an uploaded message and its cached renders
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeleteMessage(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		h.log.Error().Err(err).Str("message_id", id).Msg("failed to delete message")
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Index lists uploaded messages
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.db.ListMessages(100)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"PageTitle": "Messages - Mail Render",
		"Messages":  msgs,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.log.Error().Err(err).Msg("template error")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// loadStored parses an uploaded message
func (h *Handlers) loadStored(id string) (*parser.ParsedEmail, error) {
	stored, err := h.db.GetMessage(id)
	if err != nil {
		return nil, err
	}
	return parser.ParseEML(bytes.NewReader(stored.Raw))
}

// renderStored renders an uploaded message, going through the cache
func (h *Handlers) renderStored(ctx context.Context, id string, opts sanitize.Options) (*parser.ParsedEmail, pipeline.Result, error) {
	parsed, err := h.loadStored(id)
	if err != nil {
		return nil, pipeline.Result{}, err
	}
	key := uploadKey(id, opts)
	if res, ok := h.cached(key); ok {
		return parsed, res, nil
	}

	res, err := h.processor.Process(ctx, pipeline.Message{
		ID:      id,
		Snippet: parsed.Snippet,
		Payload: parsed.Root,
		Fetcher: parsed.Store,
	}, opts)
	if err != nil {
		return parsed, pipeline.Result{}, err
	}
	h.store(key, res)
	return parsed, res, nil
}

// queryOptions reads ?images=1&theme=dark on top of the configured defaults
func (h *Handlers) queryOptions(r *http.Request) (sanitize.Options, error) {
	q := r.URL.Query()
	var images *bool
	if v := q.Get("images"); v != "" {
		b := v == "1" || strings.EqualFold(v, "true")
		images = &b
	}
	return h.renderOptions(images, q.Get("theme"))
}

func (h *Handlers) storedError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Str("message_id", id).Msg("failed to render message")
	http.Error(w, "Failed to render message", http.StatusInternalServerError)
}

// ViewMessage serves the sandboxed HTML rendering of an uploaded message
func (h *Handlers) ViewMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts, err := h.queryOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	parsed, res, err := h.renderStored(r.Context(), id, opts)
	if err != nil {
		h.storedError(w, id, err)
		return
	}

	pageTitle := "Message - Mail Render"
	if parsed.Subject != "" {
		pageTitle = parsed.Subject + " - Mail Render"
	}
	data := map[string]interface{}{
		"PageTitle": pageTitle,
		"Result":    res,
		"Theme":     string(opts.Theme),
		// ProcessedHTML is the sanitizer's output and safe to embed as is
		"Body": template.HTML(res.ProcessedHTML),
	}

	w.Header().Set("Content-Security-Policy", previewCSP(opts))
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "preview.html", data); err != nil {
		h.log.Error().Err(err).Msg("template error")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// MessageText serves the plain-text projection of an uploaded message
func (h *Handlers) MessageText(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts, err := h.queryOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, res, err := h.renderStored(r.Context(), id, opts)
	if err != nil {
		h.storedError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	io.WriteString(w, res.PlainText)
}
