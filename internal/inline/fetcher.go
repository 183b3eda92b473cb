package inline

import (
	"context"
	"errors"
	"fmt"

	"github.com/felo/mail-render/internal/message"
)

// ErrAttachmentNotFound is returned by fetchers that do not know an ID
var ErrAttachmentNotFound = errors.New("attachment not found")

// Fetcher retrieves the raw bytes of an attachment. Implementations are
// supplied by the caller; this package never does network I/O itself.
type Fetcher interface {
	FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, attachmentID string) ([]byte, error)

// FetchAttachment calls f
func (f FetcherFunc) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	return f(ctx, attachmentID)
}

// StaticFetcher serves attachments already held in memory
type StaticFetcher map[string][]byte

// FetchAttachment returns the stored bytes for attachmentID
func (s StaticFetcher) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := s[attachmentID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", attachmentID, ErrAttachmentNotFound)
	}
	return b, nil
}

// StaticFetcherFromEncoded builds a StaticFetcher from base64url payloads,
// the shape returned by the Gmail attachments endpoint
func StaticFetcherFromEncoded(encoded map[string]string) (StaticFetcher, error) {
	f := make(StaticFetcher, len(encoded))
	for id, data := range encoded {
		b, err := message.DecodeBody(data)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", id, err)
		}
		f[id] = b
	}
	return f, nil
}
