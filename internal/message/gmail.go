package message

import (
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
)

// FromGmail converts a Gmail API payload into a validated Part tree.
// Parts that carry nothing at all are dropped from their parent.
func FromGmail(gp *gmail.MessagePart) (*Part, error) {
	if gp == nil {
		return nil, ErrNilPart
	}
	p := convertGmailPart(gp)
	if p == nil {
		return nil, fmt.Errorf("gmail payload %q: %w", gp.MimeType, ErrEmptyPart)
	}
	return p, nil
}

func convertGmailPart(gp *gmail.MessagePart) *Part {
	if gp == nil {
		return nil
	}

	p := &Part{MimeType: gp.MimeType}
	for _, h := range gp.Headers {
		if h == nil {
			continue
		}
		p.Headers = append(p.Headers, Header{Name: h.Name, Value: h.Value})
	}

	for _, child := range gp.Parts {
		if c := convertGmailPart(child); c != nil {
			p.Children = append(p.Children, c)
		}
	}
	if len(p.Children) > 0 {
		return p
	}

	if gp.Body != nil {
		p.BodyData = gp.Body.Data
		p.AttachmentID = gp.Body.AttachmentId
	}
	if p.BodyData == "" && p.AttachmentID == "" {
		return nil
	}
	return p
}
