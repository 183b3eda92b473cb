package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/felo/mail-render/internal/sanitize"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if limit, err := h.cfg.MaxUploadBytes(); err == nil && limit > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(limit))
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// renderOptions applies request overrides to the configured defaults
func (h *Handlers) renderOptions(loadImages *bool, theme string) (sanitize.Options, error) {
	opts := h.cfg.RenderOptions()
	if loadImages != nil {
		opts.LoadExternalImages = *loadImages
	}
	if theme != "" {
		t, err := sanitize.ParseTheme(theme)
		if err != nil {
			return opts, err
		}
		opts.Theme = t
	}
	return opts, nil
}
