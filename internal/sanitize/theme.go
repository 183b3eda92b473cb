package sanitize

import (
	"strings"
	"text/template"
)

// Palette holds the colors of one theme
type Palette struct {
	Text       string
	Background string
	Link       string
	Muted      string
	Border     string
	QuoteBar   string
	Surface    string
}

var palettes = map[Theme]Palette{
	ThemeLight: {
		Text:       "#202124",
		Background: "#ffffff",
		Link:       "#1a73e8",
		Muted:      "#5f6368",
		Border:     "#dadce0",
		QuoteBar:   "#c0c4c9",
		Surface:    "#f1f3f4",
	},
	ThemeDark: {
		Text:       "#e8eaed",
		Background: "#202124",
		Link:       "#8ab4f8",
		Muted:      "#9aa0a6",
		Border:     "#3c4043",
		QuoteBar:   "#5f6368",
		Surface:    "#2d2e30",
	},
}

// PaletteFor returns the palette of t, falling back to light
func PaletteFor(t Theme) Palette {
	if p, ok := palettes[t]; ok {
		return p
	}
	return palettes[ThemeLight]
}

// Every rule is scoped to .mr-email so the stylesheet cannot restyle the
// host document. It contains no url() so it loads nothing.
var stylesheetTmpl = template.Must(template.New("theme").Parse(`
.mr-email{color:{{.Text}};background-color:{{.Background}};font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;font-size:16px;line-height:1.5;word-wrap:break-word;overflow-wrap:anywhere}
.mr-email a{color:{{.Link}};text-decoration:underline}
.mr-email img{max-width:100%;height:auto}
.mr-email table{border-collapse:collapse;max-width:100%}
.mr-email td,.mr-email th{border-color:{{.Border}};vertical-align:top}
.mr-email pre,.mr-email code{background-color:{{.Surface}};font-family:Menlo,Consolas,monospace;white-space:pre-wrap}
.mr-email blockquote{margin:0 0 0 0.8ex;border-left:2px solid {{.QuoteBar}};padding-left:1ex;color:{{.Muted}}}
.mr-email details.mr-quote-toggle{margin:8px 0}
.mr-email details.mr-quote-toggle>summary{cursor:pointer;color:{{.Muted}};font-size:13px;list-style:none}
.mr-email details.mr-quote-toggle>summary::-webkit-details-marker{display:none}
.mr-email .mr-quoted{margin-top:4px}
.mr-email .mr-blocked-image{display:inline-block;padding:4px 8px;border:1px dashed {{.Border}};border-radius:4px;background-color:{{.Surface}};color:{{.Muted}};font-size:12px}
@media (max-width: 600px){.mr-email{font-size:15px}.mr-email table{width:100% !important}.mr-email td,.mr-email th{display:block;width:100% !important}}
`))

// Stylesheet returns the CSS for a theme
func Stylesheet(t Theme) string {
	var b strings.Builder
	if err := stylesheetTmpl.Execute(&b, PaletteFor(t)); err != nil {
		return ""
	}
	return strings.TrimSpace(b.String())
}

// applyTheme wraps a sanitized fragment in the themed container
func applyTheme(fragment string, t Theme) string {
	if _, ok := palettes[t]; !ok {
		t = ThemeLight
	}
	var b strings.Builder
	b.WriteString("<style>")
	b.WriteString(Stylesheet(t))
	b.WriteString("</style>\n<div class=\"mr-email mr-theme-")
	b.WriteString(string(t))
	b.WriteString("\">")
	b.WriteString(fragment)
	b.WriteString("</div>")
	return b.String()
}
