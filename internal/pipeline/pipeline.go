// Package pipeline runs a message through extraction, inline image
// resolution, sanitization and plain-text projection.
package pipeline

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/felo/mail-render/internal/extract"
	"github.com/felo/mail-render/internal/inline"
	"github.com/felo/mail-render/internal/message"
	"github.com/felo/mail-render/internal/plaintext"
	"github.com/felo/mail-render/internal/sanitize"
)

// ErrNoPayload is returned for a message without a content tree
var ErrNoPayload = errors.New("message has no payload")

// Message is one unit of work
type Message struct {
	ID      string
	Snippet string
	Payload *message.Part
	// Fetcher serves the message's inline attachments; nil leaves every
	// cid: reference unresolved
	Fetcher inline.Fetcher
}

// Result is what a renderer needs to display a message
type Result struct {
	ProcessedHTML    string `json:"processedHtml"`
	PlainText        string `json:"plainText"`
	HasBlockedImages bool   `json:"hasBlockedImages"`
}

// Processor composes the pipeline stages. It holds no per-message state and
// is safe for concurrent use.
type Processor struct {
	resolver    *inline.Resolver
	sanitizer   *sanitize.Sanitizer
	log         zerolog.Logger
	concurrency int
}

// NewProcessor creates a processor. resolver may be nil when inline images
// are never resolved.
func NewProcessor(resolver *inline.Resolver, sanitizer *sanitize.Sanitizer, log zerolog.Logger) *Processor {
	if sanitizer == nil {
		sanitizer = sanitize.New(log)
	}
	if resolver == nil {
		resolver = inline.NewResolver(nil, inline.WithLogger(log))
	}
	return &Processor{
		resolver:    resolver,
		sanitizer:   sanitizer,
		log:         log.With().Str("component", "pipeline").Logger(),
		concurrency: runtime.NumCPU(),
	}
}

// WithConcurrency sets the number of batch workers
func (p *Processor) WithConcurrency(workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	p.concurrency = workers
	return p
}

// Concurrency returns the number of batch workers
func (p *Processor) Concurrency() int {
	return p.concurrency
}

// Process renders a single message
func (p *Processor) Process(ctx context.Context, msg Message, opts sanitize.Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if msg.Payload == nil {
		return Result{}, ErrNoPayload
	}

	ex := extract.Body(msg.Payload)
	body := ex.HTML
	if strings.TrimSpace(body) == "" {
		body = extract.PlainToHTML(plaintext.FromHTML(msg.Snippet))
	}

	if len(ex.InlineImages) > 0 && msg.Fetcher != nil {
		resolved := p.resolver.WithFetcher(msg.Fetcher).Resolve(ctx, ex.InlineImages)
		body = resolved.Rewrite(body)
	}

	processed, blocked := p.sanitizer.Transform(body, opts)
	return Result{
		ProcessedHTML:    processed,
		PlainText:        plaintext.FromHTML(sanitize.Readable(processed)),
		HasBlockedImages: blocked,
	}, nil
}

// degraded is shown when a message could not be processed
func degraded(msg Message) Result {
	return Result{PlainText: plaintext.FromHTML(msg.Snippet)}
}
