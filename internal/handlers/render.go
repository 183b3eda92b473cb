package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"google.golang.org/api/gmail/v1"

	"github.com/felo/mail-render/internal/db"
	"github.com/felo/mail-render/internal/inline"
	"github.com/felo/mail-render/internal/message"
	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/internal/sanitize"
)

// maxBatchSize bounds the messages accepted by one batch request
const maxBatchSize = 100

type renderRequest struct {
	Message            *gmail.Message    `json:"message"`
	Attachments        map[string]string `json:"attachments"`
	LoadExternalImages *bool             `json:"loadExternalImages"`
	Theme              string            `json:"theme"`
}

type batchRequest struct {
	Messages []*gmail.Message `json:"messages"`
	// Attachments maps message ID to attachment ID to base64url bytes
	Attachments        map[string]map[string]string `json:"attachments"`
	LoadExternalImages *bool                        `json:"loadExternalImages"`
	Theme              string                       `json:"theme"`
}

type renderResponse struct {
	ID string `json:"id,omitempty"`
	pipeline.Result
	Cached bool   `json:"cached,omitempty"`
	Error  string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []renderResponse `json:"results"`
}

var errMissingMessage = errors.New("message is required")

// fromGmail converts an API payload. A payload that cannot be converted
// leaves Payload nil so the pipeline degrades the message to its snippet.
func (h *Handlers) fromGmail(gm *gmail.Message, encoded map[string]string) (pipeline.Message, error) {
	if gm == nil {
		return pipeline.Message{}, errMissingMessage
	}
	msg := pipeline.Message{ID: gm.Id, Snippet: gm.Snippet}

	if len(encoded) > 0 {
		fetcher, err := inline.StaticFetcherFromEncoded(encoded)
		if err != nil {
			return msg, err
		}
		msg.Fetcher = fetcher
	}

	payload, err := message.FromGmail(gm.Payload)
	if err != nil {
		h.log.Debug().Err(err).Str("message_id", gm.Id).Msg("unusable payload")
		return msg, nil
	}
	msg.Payload = payload
	return msg, nil
}

// renderKey is where one rendering lives in the render cache
type renderKey struct {
	key       string
	messageID string
}

func uploadKey(id string, opts sanitize.Options) renderKey {
	return renderKey{key: db.CacheKey(db.SourceUpload, id, "", opts), messageID: id}
}

// apiKey covers the whole client-supplied content, so a payload resent with
// other parts or attachments under the same ID is rendered again
func apiKey(gm *gmail.Message, encoded map[string]string, opts sanitize.Options) renderKey {
	if gm == nil || gm.Id == "" {
		return renderKey{}
	}
	return renderKey{
		key:       db.CacheKey(db.SourceAPI, gm.Id, contentDigest(gm, encoded), opts),
		messageID: string(db.SourceAPI) + ":" + gm.Id,
	}
}

func contentDigest(gm *gmail.Message, encoded map[string]string) string {
	h := sha256.New()
	payload, _ := json.Marshal(gm.Payload)
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(gm.Snippet))

	ids := make([]string, 0, len(encoded))
	for id := range encoded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.Write([]byte{0})
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(encoded[id]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (h *Handlers) cached(k renderKey) (pipeline.Result, bool) {
	if h.cache == nil || k.key == "" {
		return pipeline.Result{}, false
	}
	res, ok, err := h.cache.Get(k.key)
	if err != nil {
		h.log.Warn().Err(err).Str("message_id", k.messageID).Msg("render cache read failed")
		return pipeline.Result{}, false
	}
	return res, ok
}

func (h *Handlers) store(k renderKey, res pipeline.Result) {
	if h.cache == nil || k.key == "" {
		return
	}
	if err := h.cache.Put(k.key, k.messageID, res); err != nil {
		h.log.Warn().Err(err).Str("message_id", k.messageID).Msg("render cache write failed")
	}
}

func toResponse(br pipeline.BatchResult) renderResponse {
	resp := renderResponse{ID: br.ID, Result: br.Result}
	if br.Err != nil {
		resp.Error = br.Err.Error()
	}
	return resp
}

// Render processes one Gmail API message
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := h.renderOptions(req.LoadExternalImages, req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := h.fromGmail(req.Message, req.Attachments)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := apiKey(req.Message, req.Attachments, opts)
	if res, ok := h.cached(key); ok {
		writeJSON(w, http.StatusOK, renderResponse{ID: msg.ID, Result: res, Cached: true})
		return
	}

	results := h.processor.ProcessBatch(r.Context(), []pipeline.Message{msg}, opts)
	if results[0].Err == nil {
		h.store(key, results[0].Result)
	}
	writeJSON(w, http.StatusOK, toResponse(results[0]))
}

// RenderBatch processes many Gmail API messages. Results are in request
// order; failed messages carry an error and their snippet.
func (h *Handlers) RenderBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many messages in one batch")
		return
	}
	opts, err := h.renderOptions(req.LoadExternalImages, req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]renderResponse, len(req.Messages))
	var (
		pending []pipeline.Message
		slots   []int
		keys    []renderKey
	)
	for i, gm := range req.Messages {
		encoded := attachmentsFor(req.Attachments, gm)
		msg, err := h.fromGmail(gm, encoded)
		if err != nil {
			out[i] = renderResponse{ID: msg.ID, Error: err.Error()}
			continue
		}
		key := apiKey(gm, encoded, opts)
		if res, ok := h.cached(key); ok {
			out[i] = renderResponse{ID: msg.ID, Result: res, Cached: true}
			continue
		}
		pending = append(pending, msg)
		slots = append(slots, i)
		keys = append(keys, key)
	}

	for j, br := range h.processor.ProcessBatch(r.Context(), pending, opts) {
		if br.Err == nil {
			h.store(keys[j], br.Result)
		}
		out[slots[j]] = toResponse(br)
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: out})
}

func attachmentsFor(all map[string]map[string]string, gm *gmail.Message) map[string]string {
	if gm == nil || all == nil {
		return nil
	}
	return all[gm.Id]
}
