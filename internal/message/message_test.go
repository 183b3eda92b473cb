package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestPartHeaderCaseInsensitive(t *testing.T) {
	p := &Part{Headers: []Header{
		{Name: "content-id", Value: "<img1@example.com>"},
		{Name: "Content-Disposition", Value: "INLINE; filename=a.png"},
	}}

	assert.Equal(t, "<img1@example.com>", p.Header("Content-ID"))
	assert.Equal(t, "img1@example.com", p.ContentID())
	assert.True(t, p.IsInline())
	assert.Equal(t, "", p.Header("X-Missing"))
}

func TestPartMediaType(t *testing.T) {
	p := &Part{MimeType: " Text/HTML; charset=utf-8"}
	assert.Equal(t, "text/html", p.MediaType())

	var nilPart *Part
	assert.Equal(t, "", nilPart.MediaType())
	assert.Equal(t, "", nilPart.Header("Subject"))
}

func TestWalkPreOrder(t *testing.T) {
	root := &Part{MimeType: "multipart/mixed", Children: []*Part{
		{MimeType: "multipart/alternative", Children: []*Part{
			{MimeType: "text/plain", BodyData: "YQ"},
			{MimeType: "text/html", BodyData: "Yg"},
		}},
		{MimeType: "image/png", AttachmentID: "att1"},
	}}

	var seen []string
	root.Walk(func(p *Part) bool {
		seen = append(seen, p.MimeType)
		return true
	})

	assert.Equal(t, []string{"multipart/mixed", "multipart/alternative", "text/plain", "text/html", "image/png"}, seen)
}

func TestStripAngleBrackets(t *testing.T) {
	assert.Equal(t, "a@b", StripAngleBrackets(" <a@b> "))
	assert.Equal(t, "a.b", StripAngleBrackets("a.b"))
}

func TestFromGmail(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/related",
		Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "Hi"}},
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: "PGI-aGk8L2I-"}},
			{
				MimeType: "image/png",
				Headers: []*gmail.MessagePartHeader{
					{Name: "Content-ID", Value: "<logo>"},
					{Name: "Content-Disposition", Value: "inline"},
				},
				Body: &gmail.MessagePartBody{AttachmentId: "ANGjdJ"},
			},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Size: 0}},
		},
	}

	p, err := FromGmail(payload)
	require.NoError(t, err)

	assert.Equal(t, "Hi", p.Header("subject"))
	require.Len(t, p.Children, 2, "empty part should be dropped")
	assert.Equal(t, "PGI-aGk8L2I-", p.Children[0].BodyData)
	assert.Equal(t, "ANGjdJ", p.Children[1].AttachmentID)
	assert.Equal(t, "logo", p.Children[1].ContentID())
}

func TestFromGmailRejectsEmpty(t *testing.T) {
	_, err := FromGmail(nil)
	assert.True(t, errors.Is(err, ErrNilPart))

	_, err = FromGmail(&gmail.MessagePart{MimeType: "text/plain"})
	assert.True(t, errors.Is(err, ErrEmptyPart))
}
