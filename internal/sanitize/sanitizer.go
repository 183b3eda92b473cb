// Package sanitize turns untrusted email HTML into a themed fragment that
// is safe to hand to a sandboxed renderer.
package sanitize

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/felo/mail-render/internal/extract"
)

// Sanitizer holds the compiled allowlist. It is safe for concurrent use;
// all per-call state lives in the Options value and the call's own tree.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
	log    zerolog.Logger
}

// New creates a Sanitizer
func New(log zerolog.Logger) *Sanitizer {
	return &Sanitizer{
		policy: emailPolicy(),
		strict: bluemonday.StrictPolicy(),
		log:    log.With().Str("component", "sanitizer").Logger(),
	}
}

// Transform sanitizes html and applies the theme. The boolean is true when
// at least one image was redacted under the current options.
func (s *Sanitizer) Transform(input string, opts Options) (out string, hasBlockedImages bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Msg("transform failed, falling back to text")
			out, hasBlockedImages = s.textFallback(input, opts)
		}
	}()

	fragment, blocked, err := s.transformFragment(input, opts)
	if err != nil {
		s.log.Warn().Err(err).Msg("html transform failed, falling back to text")
		return s.textFallback(input, opts)
	}
	return applyTheme(fragment, opts.Theme), blocked
}

// textFallback drops all markup. Any image in the input counts as blocked.
func (s *Sanitizer) textFallback(input string, opts Options) (string, bool) {
	text := html.UnescapeString(s.strict.Sanitize(input))
	return applyTheme(extract.PlainToHTML(text), opts.Theme), strings.Contains(strings.ToLower(input), "<img")
}

func (s *Sanitizer) transformFragment(input string, opts Options) (string, bool, error) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return "", false, fmt.Errorf("parse html: %w", err)
	}
	body := findBody(doc)
	if body == nil {
		return "", false, nil
	}

	st := &state{opts: opts}
	for _, p := range passes {
		p.run(body, st)
	}

	var b strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", false, fmt.Errorf("render %s: %w", c.Data, err)
		}
	}
	return strings.TrimSpace(s.policy.Sanitize(b.String())), st.hasBlockedImages, nil
}
