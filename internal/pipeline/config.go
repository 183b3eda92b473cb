package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/felo/mail-render/internal/config"
	"github.com/felo/mail-render/internal/inline"
	"github.com/felo/mail-render/internal/sanitize"
)

// FromConfig builds a processor with the configured limits
func FromConfig(cfg *config.Config, log zerolog.Logger) (*Processor, error) {
	maxImage, err := cfg.MaxInlineImageBytes()
	if err != nil {
		return nil, fmt.Errorf("render.max_inline_image_size: %w", err)
	}
	resolver := inline.NewResolver(nil,
		inline.WithTimeout(cfg.Render.FetchTimeout),
		inline.WithMaxConcurrent(cfg.Render.FetchConcurrency),
		inline.WithMaxImageBytes(maxImage),
		inline.WithLogger(log),
	)
	return NewProcessor(resolver, sanitize.New(log), log).
		WithConcurrency(cfg.Render.Concurrency), nil
}
