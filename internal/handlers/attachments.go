package handlers

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// sanitizeFilename removes dangerous characters from attachment filenames
func sanitizeFilename(filename string) string {
	// Remove path separators, including Windows ones
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "." || filename == "/" {
		filename = ""
	}

	// Remove any control characters and quotes
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, filename)

	if len(cleaned) > 255 {
		cleaned = cleaned[:255]
	}

	if cleaned == "" {
		cleaned = "download.bin"
	}

	return cleaned
}

// DownloadAttachment serves one attachment of an uploaded message
func (h *Handlers) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attachmentID := chi.URLParam(r, "attachmentID")

	parsed, err := h.loadStored(id)
	if err != nil {
		h.storedError(w, id, err)
		return
	}

	for _, att := range parsed.Attachments {
		if att.ID != attachmentID {
			continue
		}
		data := parsed.Store[att.ID]

		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{
				"filename": sanitizeFilename(att.Filename),
			}))
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Write(data)
		return
	}

	http.Error(w, "Attachment not found", http.StatusNotFound)
}
