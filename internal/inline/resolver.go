// Package inline resolves cid: references in an HTML body into data: URIs
// using attachment bytes obtained from a caller-supplied Fetcher.
package inline

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/felo/mail-render/internal/message"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultMaxConcurrent = 4
	fallbackImageType    = "image/png"
)

// Resolved is the outcome of fetching one inline image
type Resolved struct {
	MimeType string
	Data     []byte
	Err      error
}

// OK reports whether the image bytes are available
func (r Resolved) OK() bool {
	return r.Err == nil && len(r.Data) > 0
}

// DataURI returns the embeddable data: URI of the image
func (r Resolved) DataURI() string {
	return "data:" + r.MimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ByteMap maps content IDs to resolved image bytes for a single message
type ByteMap map[string]Resolved

// Resolver fetches inline image bytes with per-fetch timeouts
type Resolver struct {
	fetcher       Fetcher
	timeout       time.Duration
	maxConcurrent int
	maxImageBytes uint64
	log           zerolog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTimeout bounds each individual fetch
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxConcurrent bounds the number of fetches in flight per message
func WithMaxConcurrent(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithMaxImageBytes skips images larger than n bytes (0 = unlimited)
func WithMaxImageBytes(n uint64) Option {
	return func(r *Resolver) {
		r.maxImageBytes = n
	}
}

// WithLogger sets the logger used for fetch diagnostics
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log.With().Str("component", "inline_resolver").Logger()
	}
}

// NewResolver creates a resolver for one fetcher
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:       fetcher,
		timeout:       defaultTimeout,
		maxConcurrent: defaultMaxConcurrent,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithFetcher returns a copy of r bound to another fetcher
func (r *Resolver) WithFetcher(fetcher Fetcher) *Resolver {
	cp := *r
	cp.fetcher = fetcher
	return &cp
}

// Resolve fetches every referenced image concurrently. A failed, timed out
// or oversized fetch only affects its own content ID.
func (r *Resolver) Resolve(ctx context.Context, refs []message.InlineImageRef) ByteMap {
	out := make(ByteMap, len(refs))
	if r == nil || r.fetcher == nil || len(refs) == 0 {
		return out
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.maxConcurrent)
	)

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		cid := message.StripAngleBrackets(ref.ContentID)
		if cid == "" || seen[cid] {
			continue
		}
		seen[cid] = true

		wg.Add(1)
		sem <- struct{}{}
		go func(ref message.InlineImageRef, cid string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.fetchOne(ctx, ref)
			if res.Err != nil {
				r.log.Debug().Err(res.Err).
					Str("content_id", cid).
					Str("attachment_id", ref.AttachmentID).
					Msg("inline image left unresolved")
			}

			mu.Lock()
			out[cid] = res
			mu.Unlock()
		}(ref, cid)
	}

	wg.Wait()
	return out
}

type fetchResult struct {
	data []byte
	err  error
}

// fetchOne bounds a single fetch by the resolver timeout even when the
// fetcher ignores its context; an abandoned fetch finishes in the background
// and its result is dropped.
func (r *Resolver) fetchOne(ctx context.Context, ref message.InlineImageRef) Resolved {
	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fetchResult{err: fmt.Errorf("fetch panicked: %v", rec)}
			}
		}()
		data, err := r.fetcher.FetchAttachment(fctx, ref.AttachmentID)
		done <- fetchResult{data: data, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-fctx.Done():
		return Resolved{Err: fmt.Errorf("fetch attachment %s: %w", ref.AttachmentID, fctx.Err())}
	}

	if res.err != nil {
		return Resolved{Err: fmt.Errorf("fetch attachment %s: %w", ref.AttachmentID, res.err)}
	}
	if r.maxImageBytes > 0 && uint64(len(res.data)) > r.maxImageBytes {
		return Resolved{Err: fmt.Errorf("attachment %s is %s, limit %s",
			ref.AttachmentID, humanize.Bytes(uint64(len(res.data))), humanize.Bytes(r.maxImageBytes))}
	}
	return Resolved{MimeType: imageType(ref.MimeType, res.data), Data: res.data}
}

// imageType keeps the declared type when it is an image type, otherwise
// sniffs the bytes. Non-image types would otherwise end up as data:application/
// URIs, which the sanitizer treats as unsafe.
func imageType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "image/jpg" || declared == "image/pjpeg" {
		return "image/jpeg"
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return fallbackImageType
}

// Rewrite replaces cid: references to resolved images with data: URIs.
// Unresolved references are left as they are.
func (m ByteMap) Rewrite(html string) string {
	if len(m) == 0 || !strings.Contains(strings.ToLower(html), "cid:") {
		return html
	}
	for cid, res := range m {
		if !res.OK() {
			continue
		}
		re, err := cidPattern(cid)
		if err != nil {
			continue
		}
		uri := res.DataURI()
		html = re.ReplaceAllStringFunc(html, func(match string) string {
			sub := re.FindStringSubmatch(match)
			return uri + sub[1]
		})
	}
	return html
}

// cidPattern matches cid:<contentID> up to an attribute or url() boundary
func cidPattern(contentID string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)cid:` + regexp.QuoteMeta(contentID) + `(["'\s>)]|$)`)
}
