// Package extract selects the renderable body of a message tree and
// collects the inline images it may reference.
package extract

import (
	"html"
	"strings"

	"github.com/felo/mail-render/internal/message"
)

// Extraction is the best body of a message, always as HTML, plus every
// inline image reference found in the tree
type Extraction struct {
	HTML         string
	InlineImages []message.InlineImageRef
}

// Body walks the tree rooted at root and returns the body to render.
// Preference: a root leaf's own body, then the first text/html leaf, then
// the first text/plain leaf in pre-order. A nil tree yields an empty result.
func Body(root *message.Part) Extraction {
	if root == nil {
		return Extraction{}
	}
	return Extraction{
		HTML:         selectBody(root),
		InlineImages: InlineImages(root),
	}
}

func selectBody(root *message.Part) string {
	if root.IsLeaf() && root.BodyData != "" {
		body := decode(root.BodyData)
		if root.MediaType() == "text/plain" {
			return PlainToHTML(body)
		}
		return body
	}

	if p := findLeaf(root, "text/html"); p != nil {
		return decode(p.BodyData)
	}
	if p := findLeaf(root, "text/plain"); p != nil {
		return PlainToHTML(decode(p.BodyData))
	}
	return ""
}

// findLeaf returns the first leaf of the given type in pre-order
func findLeaf(root *message.Part, mediaType string) *message.Part {
	var found *message.Part
	root.Walk(func(p *message.Part) bool {
		if p.IsLeaf() && p.BodyData != "" && p.MediaType() == mediaType {
			found = p
			return false
		}
		return true
	})
	return found
}

// InlineImages collects every inline leaf that has both a Content-ID and
// an attachment handle, regardless of its mime type
func InlineImages(root *message.Part) []message.InlineImageRef {
	var refs []message.InlineImageRef
	root.Walk(func(p *message.Part) bool {
		if !p.IsLeaf() || p.AttachmentID == "" || !p.IsInline() {
			return true
		}
		cid := p.ContentID()
		if cid == "" {
			return true
		}
		refs = append(refs, message.InlineImageRef{
			AttachmentID: p.AttachmentID,
			ContentID:    cid,
			MimeType:     p.MediaType(),
		})
		return true
	})
	return refs
}

// PlainToHTML escapes plain text and turns line breaks into <br> tags
func PlainToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

func decode(data string) string {
	b, err := message.DecodeBody(data)
	if err != nil {
		return ""
	}
	return string(b)
}
