package sanitize

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	targetBlank = regexp.MustCompile(`^_blank$`)
	relTokens   = regexp.MustCompile(`^[a-z]+( [a-z]+)*$`)
)

// emailPolicy is the allowlist applied after the structural passes. It
// removes whatever the passes do not model explicitly: event handlers,
// frames, forms, embedded objects and unsafe link schemes.
func emailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// link attributes are owned by hardenLinks
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("target").Matching(targetBlank).OnElements("a")
	p.AllowAttrs("rel").Matching(relTokens).OnElements("a")

	p.AllowElements(
		"div", "span", "center", "font", "details", "summary",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption", "colgroup", "col",
	)
	p.AllowAttrs("class", "style", "title", "dir", "align", "valign", "bgcolor", "width", "height").Globally()
	p.AllowAttrs("border", "cellpadding", "cellspacing").OnElements("table")
	p.AllowAttrs("colspan", "rowspan", "nowrap").OnElements("td", "th")
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowAttrs("srcset").OnElements("img")

	p.AllowURLSchemes("cid")
	p.AllowDataURIImages()
	return p
}
