package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mail-render/internal/extract"
	"github.com/felo/mail-render/internal/message"
)

const simpleEML = `From: sender@example.com
To: recipient@example.com
Subject: Simple Test Email
Message-ID: <simple123@example.com>
Date: Mon, 1 Jan 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

This is a simple test email.
`

const newsletterEML = `From: Alice Example <alice@example.com>
To: bob@example.com, carol@example.com
Subject: Newsletter
Message-ID: <n1@example.com>
Date: Tue, 2 Jan 2024 09:30:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/related; boundary="rel"

--rel
Content-Type: multipart/alternative; boundary="alt"

--alt
Content-Type: text/plain; charset=utf-8

Plain version
--alt
Content-Type: text/html; charset=utf-8

<p>Hello <img src="cid:logo@example.com"></p>
--alt--
--rel
Content-Type: image/png
Content-Transfer-Encoding: base64
Content-ID: <logo@example.com>
Content-Disposition: inline; filename="logo.png"

AQID
--rel--
--outer
Content-Type: application/pdf; name="report.pdf"
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

JVBERi0=
--outer--
`

func bodyOf(t *testing.T, p *message.Part) string {
	t.Helper()
	b, err := message.DecodeBody(p.BodyData)
	require.NoError(t, err)
	return string(b)
}

func TestParseEML_SimpleEmail(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(simpleEML))
	require.NoError(t, err)

	assert.Equal(t, "Simple Test Email", parsed.Subject)
	assert.Equal(t, "sender@example.com", parsed.Sender)
	assert.Equal(t, "", parsed.SenderName)
	assert.Equal(t, []string{"recipient@example.com"}, parsed.Recipients)
	assert.Equal(t, "<simple123@example.com>", parsed.MessageID)
	assert.Equal(t, 2024, parsed.Date.Year())
	assert.Equal(t, time.January, parsed.Date.Month())
	assert.Contains(t, parsed.RawHeaders, "Subject: Simple Test Email")
	assert.NotContains(t, parsed.RawHeaders, "This is a simple")

	require.NotNil(t, parsed.Root)
	assert.True(t, parsed.Root.IsLeaf())
	assert.Equal(t, "text/plain", parsed.Root.MimeType)
	assert.Contains(t, bodyOf(t, parsed.Root), "This is a simple test email.")
	assert.Equal(t, "This is a simple test email.", parsed.Snippet)
	assert.Empty(t, parsed.Attachments)
}

func TestParseEML_MultipartTree(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(newsletterEML))
	require.NoError(t, err)

	assert.Equal(t, "Alice Example", parsed.SenderName)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, parsed.Recipients)

	root := parsed.Root
	require.NotNil(t, root)
	assert.Equal(t, "multipart/mixed", root.MimeType)
	require.Len(t, root.Children, 2)

	related := root.Children[0]
	assert.Equal(t, "multipart/related", related.MimeType)
	require.Len(t, related.Children, 2)

	alt := related.Children[0]
	require.Len(t, alt.Children, 2)
	assert.Equal(t, "text/plain", alt.Children[0].MimeType)
	assert.Equal(t, "text/html", alt.Children[1].MimeType)
	assert.Contains(t, bodyOf(t, alt.Children[1]), `<img src="cid:logo@example.com">`)

	logo := related.Children[1]
	assert.Equal(t, "part-1.1.2", logo.AttachmentID)
	assert.Empty(t, logo.BodyData)
	assert.Equal(t, "logo@example.com", logo.ContentID())
	assert.True(t, logo.IsInline())

	assert.Equal(t, []byte{1, 2, 3}, []byte(parsed.Store["part-1.1.2"]))
	assert.Equal(t, []byte("%PDF-"), []byte(parsed.Store["part-1.2"]))

	require.Len(t, parsed.Attachments, 2)
	assert.Equal(t, ParsedAttachment{
		ID: "part-1.1.2", Filename: "logo.png", ContentType: "image/png",
		ContentID: "logo@example.com", Inline: true, Size: 3,
	}, parsed.Attachments[0])
	assert.Equal(t, "report.pdf", parsed.Attachments[1].Filename)
	assert.Equal(t, "application/pdf", parsed.Attachments[1].ContentType)
	assert.False(t, parsed.Attachments[1].Inline)

	ex := extract.Body(root)
	assert.Contains(t, ex.HTML, "<p>Hello")
	require.Len(t, ex.InlineImages, 1)
	assert.Equal(t, message.InlineImageRef{
		AttachmentID: "part-1.1.2", ContentID: "logo@example.com", MimeType: "image/png",
	}, ex.InlineImages[0])

	assert.Equal(t, "Hello", parsed.Snippet)
}

func TestParseEML_MIMEEncodedSubject(t *testing.T) {
	eml := "From: sender@example.com\n" +
		"Subject: =?UTF-8?Q?Invitaci=C3=B3n:_Reuni=C3=B3n_de_proyecto?=\n" +
		"Content-Type: text/plain; charset=utf-8\n\n" +
		"This email has a MIME-encoded subject line.\n"

	parsed, err := ParseEML(strings.NewReader(eml))
	require.NoError(t, err)
	assert.Equal(t, "Invitación: Reunión de proyecto", parsed.Subject)
}

func TestParseEML_Windows1252Charset(t *testing.T) {
	eml := "From: sender@example.com\n" +
		"Subject: Windows-1252 Charset Test\n" +
		"Content-Type: text/plain; charset=windows-1252\n" +
		"Content-Transfer-Encoding: quoted-printable\n\n" +
		"caf=E9 costs =805\n"

	parsed, err := ParseEML(strings.NewReader(eml))
	require.NoError(t, err)
	assert.Contains(t, bodyOf(t, parsed.Root), "café costs €5")
}

func TestParseEML_ISO88591Charset(t *testing.T) {
	eml := "From: sender@example.com\n" +
		"Subject: ISO-8859-1 Charset Test\n" +
		"Content-Type: text/plain; charset=iso-8859-1\n" +
		"Content-Transfer-Encoding: 8bit\n\n" +
		"na\xefve r\xe9sum\xe9\n"

	parsed, err := ParseEML(strings.NewReader(eml))
	require.NoError(t, err)
	assert.Contains(t, bodyOf(t, parsed.Root), "naïve résumé")
}

func TestParseEML_UnknownCharsetKeepsBody(t *testing.T) {
	eml := "From: sender@example.com\n" +
		"Subject: Odd charset\n" +
		"Content-Type: text/plain; charset=x-no-such-charset\n\n" +
		"hello anyway\n"

	parsed, err := ParseEML(strings.NewReader(eml))
	require.NoError(t, err)
	assert.Contains(t, bodyOf(t, parsed.Root), "hello anyway")
}

func TestParseEML_MissingHeaders(t *testing.T) {
	eml := "From: sender@example.com\n" +
		"Subject: Missing Headers Test\n\n" +
		"This email is missing some headers.\n"

	parsed, err := ParseEML(strings.NewReader(eml))
	require.NoError(t, err)

	assert.Empty(t, parsed.MessageID)
	assert.True(t, parsed.Date.IsZero())
	assert.Equal(t, "text/plain", parsed.Root.MimeType, "missing Content-Type defaults to text/plain")
	assert.Contains(t, bodyOf(t, parsed.Root), "missing some headers")
}

func TestParseEMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simple.eml")
	require.NoError(t, os.WriteFile(path, []byte(simpleEML), 0o644))

	parsed, err := ParseEMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Simple Test Email", parsed.Subject)

	_, err = ParseEMLFile(filepath.Join(t.TempDir(), "does-not-exist.eml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestDecodeMIMEWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UTF-8 Quoted-Printable", "=?UTF-8?Q?Invitaci=C3=B3n?=", "Invitación"},
		{"UTF-8 Base64", "=?UTF-8?B?SW52aXRhY2nDs24=?=", "Invitación"},
		{"Multiple encoded words", "=?UTF-8?Q?Invitaci=C3=B3n:?= =?UTF-8?Q?_Reuni=C3=B3n?=", "Invitación: Reunión"},
		{"ISO-8859-1", "=?ISO-8859-1?Q?caf=E9?=", "café"},
		{"Plain text (no encoding)", "Simple Subject", "Simple Subject"},
		{"Empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeMIMEWord(tt.input))
		})
	}
}

func TestParseEML_DateParsing(t *testing.T) {
	for _, dateStr := range []string{"Mon, 1 Jan 2024 10:00:00 +0000", "1 Jan 2024 10:00:00 GMT"} {
		t.Run(dateStr, func(t *testing.T) {
			eml := "From: sender@example.com\nSubject: Date Test\nDate: " + dateStr +
				"\nContent-Type: text/plain; charset=utf-8\n\nTest body\n"

			parsed, err := ParseEML(strings.NewReader(eml))
			require.NoError(t, err)
			assert.Equal(t, 2024, parsed.Date.Year())
			assert.Equal(t, time.January, parsed.Date.Month())
		})
	}
}
