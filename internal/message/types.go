package message

import (
	"errors"
	"strings"
)

var (
	// ErrNilPart is returned when a payload tree has no root
	ErrNilPart = errors.New("message part is nil")
	// ErrEmptyPart is returned when a root carries neither body nor children
	ErrEmptyPart = errors.New("message part has no body and no children")
)

// Header is a single header field; order is preserved as received
type Header struct {
	Name  string
	Value string
}

// Part is a node of a message content tree.
// A leaf carries BodyData (base64url) and/or an AttachmentID; a multipart
// node carries Children only.
type Part struct {
	MimeType     string
	Headers      []Header
	BodyData     string
	AttachmentID string
	Children     []*Part
}

// InlineImageRef points at an attachment referenced from the body by cid:
type InlineImageRef struct {
	AttachmentID string
	ContentID    string // angle brackets stripped
	MimeType     string
}

// Header returns the first value of the named header (case-insensitive)
func (p *Part) Header(name string) string {
	if p == nil {
		return ""
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// IsLeaf reports whether the part has no children
func (p *Part) IsLeaf() bool {
	return p != nil && len(p.Children) == 0
}

// MediaType returns the lower-cased mime type without parameters
func (p *Part) MediaType() string {
	if p == nil {
		return ""
	}
	mt := p.MimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// ContentID returns the Content-ID header with angle brackets removed
func (p *Part) ContentID() string {
	return StripAngleBrackets(p.Header("Content-ID"))
}

// IsInline reports whether Content-Disposition mentions inline
func (p *Part) IsInline() bool {
	return strings.Contains(strings.ToLower(p.Header("Content-Disposition")), "inline")
}

// Walk visits every node in pre-order; returning false stops the walk
func (p *Part) Walk(fn func(*Part) bool) bool {
	if p == nil {
		return true
	}
	if !fn(p) {
		return false
	}
	for _, c := range p.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// StripAngleBrackets removes every '<' and '>' and surrounding space
func StripAngleBrackets(s string) string {
	return strings.TrimSpace(angleBrackets.Replace(s))
}
