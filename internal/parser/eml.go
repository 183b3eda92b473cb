package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"github.com/felo/mail-render/internal/extract"
	"github.com/felo/mail-render/internal/inline"
	"github.com/felo/mail-render/internal/message"
	"github.com/felo/mail-render/internal/plaintext"
)

// SnippetLength is the rune length of ParsedEmail.Snippet
const SnippetLength = 200

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ParseEMLFile parses an .eml file
func ParseEMLFile(filePath string) (*ParsedEmail, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ParseEML(f)
}

// ParseEML parses an RFC 5322 message. Text leaves are kept as body data;
// every other leaf gets an attachment ID of the form part-<path> and its
// bytes go to the Store.
func ParseEML(r io.Reader) (*ParsedEmail, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}

	entity, err := gomessage.Read(bytes.NewReader(buf.Bytes()))
	if err != nil && !recoverable(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	parsed := &ParsedEmail{
		RawHeaders: extractRawHeaders(buf.String()),
		Store:      inline.StaticFetcher{},
	}
	parseHeader(parsed, mail.Header{Header: entity.Header})

	b := &treeBuilder{parsed: parsed}
	root, err := b.build(entity, "1")
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = &message.Part{MimeType: "text/plain", Headers: headersOf(entity.Header)}
	}
	parsed.Root = root
	parsed.Snippet = plaintext.Truncate(plaintext.FromHTML(extract.Body(root).HTML), SnippetLength)
	return parsed, nil
}

// recoverable reports errors after which go-message still returns a usable
// entity with its raw body
func recoverable(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}

func parseHeader(parsed *ParsedEmail, header mail.Header) {
	if msgID := header.Get("Message-Id"); msgID != "" {
		parsed.MessageID = strings.TrimSpace(msgID)
	}

	parsed.Subject = decodeMIMEWord(header.Get("Subject"))

	if fromAddrs, err := header.AddressList("From"); err == nil && len(fromAddrs) > 0 {
		parsed.Sender = fromAddrs[0].Address
		parsed.SenderName = fromAddrs[0].Name
	}

	if toAddrs, err := header.AddressList("To"); err == nil {
		for _, addr := range toAddrs {
			parsed.Recipients = append(parsed.Recipients, addr.Address)
		}
	}

	if date, err := header.Date(); err == nil {
		parsed.Date = date
	}
}

type treeBuilder struct {
	parsed *ParsedEmail
}

// build converts one entity. It returns nil for a multipart node with no
// usable children.
func (b *treeBuilder) build(e *gomessage.Entity, path string) (*message.Part, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	part := &message.Part{
		MimeType: strings.ToLower(mediaType),
		Headers:  headersOf(e.Header),
	}

	if mr := e.MultipartReader(); mr != nil {
		for i := 1; ; i++ {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !recoverable(err) {
				return nil, fmt.Errorf("failed to read part %s.%d: %w", path, i, err)
			}
			c, err := b.build(child, fmt.Sprintf("%s.%d", path, i))
			if err != nil {
				return nil, err
			}
			if c != nil {
				part.Children = append(part.Children, c)
			}
		}
		if len(part.Children) == 0 {
			return nil, nil
		}
		return part, nil
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", path, err)
	}

	disposition, dispParams, _ := e.Header.ContentDisposition()
	isAttachment := strings.EqualFold(disposition, "attachment")
	if !isAttachment && (part.MimeType == "text/plain" || part.MimeType == "text/html") {
		part.BodyData = message.EncodeBody(data)
		return part, nil
	}

	id := "part-" + path
	part.AttachmentID = id
	b.parsed.Store[id] = data

	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	b.parsed.Attachments = append(b.parsed.Attachments, ParsedAttachment{
		ID:          id,
		Filename:    decodeMIMEWord(filename),
		ContentType: part.MimeType,
		ContentID:   part.ContentID(),
		Inline:      part.IsInline(),
		Size:        int64(len(data)),
	})
	return part, nil
}

// headersOf copies the fields of h in order
func headersOf(h gomessage.Header) []message.Header {
	var out []message.Header
	fields := h.Fields()
	for fields.Next() {
		out = append(out, message.Header{Name: fields.Key(), Value: fields.Value()})
	}
	return out
}

// extractRawHeaders extracts the raw header section from the email
func extractRawHeaders(emailContent string) string {
	// Headers end at the first blank line
	parts := strings.SplitN(emailContent, "\r\n\r\n", 2)
	if len(parts) < 2 {
		parts = strings.SplitN(emailContent, "\n\n", 2)
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// decodeMIMEWord decodes MIME-encoded words (RFC 2047)
// Example: =?UTF-8?Q?Invitaci=C3=B3n?= -> Invitación
func decodeMIMEWord(s string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
