package parser

import (
	"time"

	"github.com/felo/mail-render/internal/inline"
	"github.com/felo/mail-render/internal/message"
)

// ParsedEmail is a raw message turned into a part tree plus the bytes of
// every non-text leaf
type ParsedEmail struct {
	MessageID  string
	Subject    string
	Sender     string
	SenderName string
	Recipients []string
	Date       time.Time
	Snippet    string
	RawHeaders string

	Root        *message.Part
	Attachments []ParsedAttachment
	// Store serves attachment bytes by the IDs assigned in Root
	Store inline.StaticFetcher
}

// ParsedAttachment describes one non-text leaf of the message
type ParsedAttachment struct {
	ID          string
	Filename    string
	ContentType string
	ContentID   string
	Inline      bool
	Size        int64
}
